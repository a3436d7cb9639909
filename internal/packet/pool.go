package packet

import (
	"net/netip"
	"sync"
)

var zeroAddrPort netip.AddrPort

// DefaultBufferSize is the buffer length a Pool hands out when the
// caller does not need a specific size, large enough for a typical UDP
// datagram without fragmentation.
const DefaultBufferSize = 65507

// Pool is the buffer-supply facade listener modules and copy-on-write
// transform functions draw from. It wraps a sync.Pool of *[]byte,
// following the donor's PacketPool pattern, so steady-state fan-out does
// not allocate a new buffer per datagram (§4.3 "Buffer supply").
type Pool struct {
	sp sync.Pool
}

// NewPool constructs a Pool whose buffers are bufSize bytes long.
func NewPool(bufSize int) *Pool {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	p := &Pool{}
	p.sp.New = func() any {
		buf := make([]byte, bufSize)
		return &buf
	}
	return p
}

// Get returns a buffer from the pool, resliced to length n.
func (p *Pool) Get(n int) []byte {
	bufp := p.sp.Get().(*[]byte)
	buf := *bufp
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	return buf[:n]
}

// put returns buf to the pool; it is unexported because only Packet's
// own Release calls it, keeping pool bookkeeping internal to this
// package (a caller that wants to return a buffer early should release
// the owning Packet instead).
func (p *Pool) put(buf []byte) {
	buf = buf[:cap(buf)]
	p.sp.Put(&buf)
}

// NewPacket builds a Packet whose buffer is drawn from p and whose
// Release returns that buffer to p once the reference count reaches
// zero.
func (p *Pool) NewPacket(sessionID, port int, listener string, n int) *Packet {
	buf := p.Get(n)
	pkt := New(sessionID, port, listener, zeroAddrPort, buf)
	pkt.pool = p
	return pkt
}
