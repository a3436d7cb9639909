// Package packet implements the reflector's shared, reference-counted
// packet payload, its per-fan-out metadata, the immutable processor
// path tuple, and the buffer pool backing all three (§3, §4.3).
package packet

import (
	"net/netip"
	"sync/atomic"
)

// Packet is an immutable payload shared across every fan-out copy via a
// reference count. Once the count exceeds 1, no field may change; only
// MakeWritable may produce a mutable copy (§3).
type Packet struct {
	refs int32

	SessionID int
	Port      int
	Listener  string
	Source    netip.AddrPort
	Buffer    []byte

	pool *Pool
}

// New constructs a packet with a reference count of 1. buffer is taken by
// reference, not copied; callers that need an independent copy should
// draw from a Pool.
func New(sessionID, port int, listener string, source netip.AddrPort, buffer []byte) *Packet {
	return &Packet{
		refs:      1,
		SessionID: sessionID,
		Port:      port,
		Listener:  listener,
		Source:    source,
		Buffer:    buffer,
	}
}

// RefCount returns the packet's current reference count.
func (p *Packet) RefCount() int32 {
	return atomic.LoadInt32(&p.refs)
}

// Retain atomically increments the reference count. Every transfer of
// packet ownership between goroutines must be paired with a Retain on
// the sending side (§4.3).
func (p *Packet) Retain() {
	atomic.AddInt32(&p.refs, 1)
}

// Release atomically decrements the reference count, returning the pool
// buffer (if any) once the count reaches zero. Callers must not touch p
// after a Release that drops the count to zero.
func (p *Packet) Release() {
	if atomic.AddInt32(&p.refs, -1) == 0 {
		if p.pool != nil {
			p.pool.put(p.Buffer)
		}
	}
}

// CopyFn duplicates or rewrites a packet's payload during copy-on-write.
// It may be called with orig == dst for a genuine in-place rewrite, or
// with two distinct packets when an independent copy is required; either
// way it is responsible for populating dst's Buffer (and any other
// fields it needs to change) from orig.
type CopyFn func(orig, dst *Packet)

// MakeWritable returns an exclusively-owned packet. If p's reference
// count is already 1, MakeWritable returns p unchanged (and copyFn is
// still invoked with orig == p, so a processor may rewrite in place
// without branching on refcount itself). Otherwise it allocates a new
// packet, invokes copyFn(p, new), decrements p's reference count, and
// returns the new packet at refcount 1.
func MakeWritable(p *Packet, copyFn CopyFn) *Packet {
	if atomic.LoadInt32(&p.refs) == 1 {
		copyFn(p, p)
		return p
	}

	dst := &Packet{
		refs:      1,
		SessionID: p.SessionID,
		Port:      p.Port,
		Listener:  p.Listener,
		Source:    p.Source,
	}
	copyFn(p, dst)
	p.Release()
	return dst
}
