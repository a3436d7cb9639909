package packet_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/goreflector/internal/packet"
)

func clientRefs(n int) []packet.ClientRef {
	out := make([]packet.ClientRef, n)
	for i := range out {
		out[i] = packet.ClientRef{Addr: netip.MustParseAddr("10.0.0.1")}
	}
	return out
}

// TestCopyOnWriteSharedPacket checks that make_writable on a
// refcount>1 packet returns a distinct object at refcount 1 and leaves
// the original at refcount-1.
func TestCopyOnWriteSharedPacket(t *testing.T) {
	t.Parallel()

	pkt := packet.New(1, 1234, "udp-0", netip.AddrPort{}, []byte("original"))
	pkt.Retain()
	pkt.Retain()
	require.EqualValues(t, 3, pkt.RefCount())

	rewritten := packet.MakeWritable(pkt, func(orig, dst *packet.Packet) {
		dst.Buffer = []byte("rewritten")
	})

	assert.NotSame(t, pkt, rewritten)
	assert.EqualValues(t, 2, pkt.RefCount())
	assert.EqualValues(t, 1, rewritten.RefCount())
	assert.Equal(t, "original", string(pkt.Buffer))
	assert.Equal(t, "rewritten", string(rewritten.Buffer))
}

// TestMakeWritableInPlaceWhenUnshared covers the refcount==1 branch of
// make_writable: it must return the same object and still invoke copyFn
// with orig == dst, permitting genuine in-place rewrite.
func TestMakeWritableInPlaceWhenUnshared(t *testing.T) {
	t.Parallel()

	pkt := packet.New(1, 1234, "udp-0", netip.AddrPort{}, []byte("original"))

	var sawSame bool
	result := packet.MakeWritable(pkt, func(orig, dst *packet.Packet) {
		sawSame = orig == dst
		dst.Buffer = []byte("rewritten-in-place")
	})

	assert.Same(t, pkt, result)
	assert.True(t, sawSame)
	assert.EqualValues(t, 1, result.RefCount())
	assert.Equal(t, "rewritten-in-place", string(result.Buffer))
}

// TestMaskGetSetOutOfRange covers §4.3's permissive out-of-range
// semantics: indices beyond Clients silently return/ignore.
func TestMaskGetSetOutOfRange(t *testing.T) {
	t.Parallel()

	pkt := packet.New(1, 1234, "udp-0", netip.AddrPort{}, []byte("x"))
	m := packet.NewMeta(pkt, clientRefs(2))

	assert.False(t, m.MaskGet(-1))
	assert.False(t, m.MaskGet(5))
	m.MaskSet(5, true) // no-op, must not panic
	assert.False(t, m.MaskGet(5))
}

// TestMaskAllAndCount checks that mask population tracks the number of
// clients remaining processors will attempt to deliver to.
func TestMaskAllAndCount(t *testing.T) {
	t.Parallel()

	pkt := packet.New(1, 1234, "udp-0", netip.AddrPort{}, []byte("x"))
	m := packet.NewMeta(pkt, clientRefs(3))

	assert.Equal(t, 3, m.MaskCount())

	m.MaskAll(false)
	assert.Equal(t, 0, m.MaskCount())

	m.MaskSet(1, true)
	assert.Equal(t, 1, m.MaskCount())
	assert.True(t, m.MaskGet(1))
	assert.False(t, m.MaskGet(0))
}

// TestMetaCopyBumpsPacketRefcount covers §4.3's meta.copy contract.
func TestMetaCopyBumpsPacketRefcount(t *testing.T) {
	t.Parallel()

	pkt := packet.New(1, 1234, "udp-0", netip.AddrPort{}, []byte("x"))
	m := packet.NewMeta(pkt, clientRefs(2))
	require.EqualValues(t, 1, pkt.RefCount())

	copyM := m.Copy()
	require.EqualValues(t, 2, pkt.RefCount())
	assert.Equal(t, m.MaskCount(), copyM.MaskCount())
}

// TestPoolRoundTrip covers the buffer-supply facade: a packet allocated
// from a Pool returns its buffer to the pool once released.
func TestPoolRoundTrip(t *testing.T) {
	t.Parallel()

	pool := packet.NewPool(128)
	pkt := pool.NewPacket(1, 1234, "udp-0", 64)
	require.Len(t, pkt.Buffer, 64)

	pkt.Release()
}
