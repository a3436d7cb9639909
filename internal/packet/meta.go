package packet

import (
	"math/bits"
	"net/netip"
	"time"
)

// ClientRef is the metadata-local copy of a client descriptor: enough to
// address and account for a fan-out recipient without holding the
// session's client-list lock while a packet is in flight (§3, §4.3).
type ClientRef struct {
	Addr       netip.Addr
	LastSeen   time.Time
	Permanent  bool
	ListenerID int
}

// ProfileStamp records when processing reached a named pipeline node,
// an optional profiling timestamp a processor appends when profiling is
// enabled.
type ProfileStamp struct {
	Node string
	At   time.Time
}

// Meta is one fan-out's mutable view over a shared Packet: which clients
// are still valid recipients, where each is in its processor path, and a
// next_node cursor into the path currently being walked (§3, §4.3).
type Meta struct {
	Packet *Packet

	Clients []ClientRef
	mask    []uint64 // one bit per client, §4.3 mask_get/mask_set

	NextNode int

	// Paths holds one *Path per client, indexed the same as Clients; a
	// nil entry is the empty-path sentinel ("send directly to sender").
	Paths []*Path

	Profile []ProfileStamp
}

const maskBits = 64 // MMASK_BITS equivalent: bits per mask word

// NewMeta allocates a metadata block for clients, with every client's
// mask bit initially set to 1 (valid recipient) and no path assigned. It
// does not retain pkt: the caller transfers an existing reference (§4.3
// meta.new contract).
func NewMeta(pkt *Packet, clients []ClientRef) *Meta {
	m := &Meta{
		Packet:  pkt,
		Clients: clients,
		mask:    make([]uint64, (len(clients)+maskBits-1)/maskBits),
		Paths:   make([]*Path, len(clients)),
	}
	m.MaskAll(true)
	return m
}

// Copy deep-copies m, bumping the packet's reference count, for use when
// a processor must split a fan-out while retaining the original (§4.3
// meta.copy). Paths are retained (not deep-copied) since Path content is
// immutable.
func (m *Meta) Copy() *Meta {
	m.Packet.Retain()

	clients := make([]ClientRef, len(m.Clients))
	copy(clients, m.Clients)

	mask := make([]uint64, len(m.mask))
	copy(mask, m.mask)

	paths := make([]*Path, len(m.Paths))
	for i, p := range m.Paths {
		if p != nil {
			p.Retain()
		}
		paths[i] = p
	}

	profile := make([]ProfileStamp, len(m.Profile))
	copy(profile, m.Profile)

	return &Meta{
		Packet:   m.Packet,
		Clients:  clients,
		mask:     mask,
		NextNode: m.NextNode,
		Paths:    paths,
		Profile:  profile,
	}
}

// Free releases m's packet reference and every retained path, mirroring
// the original's meta_free. Call this exactly once per Meta, at the
// sender (§3 lifecycle summary).
func (m *Meta) Free() {
	if m.Packet != nil {
		m.Packet.Release()
	}
	for _, p := range m.Paths {
		if p != nil {
			p.Release()
		}
	}
}

// MaskGet reports whether client i is currently a valid recipient.
// Out-of-range indices silently return false, matching the original's
// permissive semantics (§4.3).
func (m *Meta) MaskGet(i int) bool {
	if i < 0 || i >= len(m.Clients) {
		return false
	}
	word, bit := i/maskBits, uint(i%maskBits)
	return m.mask[word]&(1<<bit) != 0
}

// MaskSet sets or clears client i's validity bit. Out-of-range indices
// are a silent no-op (§4.3).
func (m *Meta) MaskSet(i int, valid bool) {
	if i < 0 || i >= len(m.Clients) {
		return
	}
	word, bit := i/maskBits, uint(i%maskBits)
	if valid {
		m.mask[word] |= 1 << bit
	} else {
		m.mask[word] &^= 1 << bit
	}
}

// MaskAll sets every client's validity bit to valid in one call, used by
// filter-style processors that drop an entire fan-out record (§4.5).
func (m *Meta) MaskAll(valid bool) {
	for i := range m.Clients {
		m.MaskSet(i, valid)
	}
}

// MaskCount returns the number of clients currently marked valid.
func (m *Meta) MaskCount() int {
	count := 0
	for _, word := range m.mask {
		count += bits.OnesCount64(word)
	}
	return count
}

// Stamp appends a profiling timestamp for node; callers that never
// enable profiling simply never call it.
func (m *Meta) Stamp(node string, at time.Time) {
	m.Profile = append(m.Profile, ProfileStamp{Node: node, At: at})
}
