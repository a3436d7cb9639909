package processor_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/goreflector/internal/module"
	"github.com/dantte-lp/goreflector/internal/packet"
	"github.com/dantte-lp/goreflector/internal/processor"
)

// TestFilterMasksMatchingBuffer checks that a buffer matching the
// configured sample gets every client masked out, but the record is
// still forwarded (never dropped outright).
func TestFilterMasksMatchingBuffer(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(nil)
	sender := loadProcessor(t, reg, "sender-sink")

	m := processor.NewMaster(reg, nil)
	m.SetSender(sender)

	id := module.ID{Class: module.ClassProcessor, Name: "filter"}
	reg.Register(id, processor.NewFilterInitializer(m))
	h, err := reg.Load(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, h.Params().Set(processor.FilterParamSample, "spam"))
	require.NoError(t, reg.Init(context.Background(), h))
	require.NoError(t, reg.Start(context.Background(), h))
	defer reg.Stop(h)

	pkt := packet.New(1, 1234, "udp-0", netip.AddrPort{}, []byte("spam"))
	meta := packet.NewMeta(pkt, clients(2))
	require.NoError(t, h.PushData(meta))

	waitForLen(t, sender.InputData, 1)

	got := pop(t, sender.InputData)
	assert.Equal(t, 0, got.MaskCount())
}

// TestFilterPassesNonMatchingBuffer checks a non-matching buffer passes
// through with its mask untouched.
func TestFilterPassesNonMatchingBuffer(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(nil)
	sender := loadProcessor(t, reg, "sender-sink")

	m := processor.NewMaster(reg, nil)
	m.SetSender(sender)

	id := module.ID{Class: module.ClassProcessor, Name: "filter"}
	reg.Register(id, processor.NewFilterInitializer(m))
	h, err := reg.Load(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, h.Params().Set(processor.FilterParamSample, "spam"))
	require.NoError(t, reg.Init(context.Background(), h))
	require.NoError(t, reg.Start(context.Background(), h))
	defer reg.Stop(h)

	pkt := packet.New(1, 1234, "udp-0", netip.AddrPort{}, []byte("ham!"))
	meta := packet.NewMeta(pkt, clients(2))
	require.NoError(t, h.PushData(meta))

	waitForLen(t, sender.InputData, 1)

	got := pop(t, sender.InputData)
	assert.Equal(t, 2, got.MaskCount())
}

func waitForLen(t *testing.T, q interface{ Len() int }, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if q.Len() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("queue did not reach length %d in time", want)
}

func pop(t *testing.T, q interface {
	Pop() (any, bool)
}) *packet.Meta {
	t.Helper()
	item, ok := q.Pop()
	require.True(t, ok)
	meta, ok := item.(*packet.Meta)
	require.True(t, ok)
	return meta
}
