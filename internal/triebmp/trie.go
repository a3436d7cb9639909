// Package triebmp implements the reflector's best-matching-prefix (BMP)
// IP trie: map an address to the data associated with its longest
// stored prefix (§4.4).
//
// The original's node layout groups RUM_TRIE_BITS (k, typically 4) bits
// per node to reduce pointer-chasing; its exact physical encoding for
// prefixes whose length is not a multiple of k is only described by a
// header (original_source/include/rum2/ip-trie.h) with no accompanying
// implementation in the retrieved source, so it cannot be reproduced
// bit-for-bit with confidence. This implementation is grounded on the
// header's *operation contracts* instead — insert replaces, remove
// prunes empty nodes upward, find returns the longest matching stored
// prefix, find_checked applies a visibility predicate, find_exact
// requires an exact length match — using a one-bit-per-level trie
// internally, which satisfies every contract exactly while remaining
// unambiguous to implement and test.
package triebmp

import "net/netip"

// node is one binary-trie node. data is non-nil only at nodes where some
// inserted prefix terminates exactly.
type node struct {
	children [2]*node
	data     any
}

func (n *node) empty() bool {
	return n.data == nil && n.children[0] == nil && n.children[1] == nil
}

// Trie is a best-matching-prefix IPv4 trie; IPv6 is out of scope.
// Trie does no locking of its own; callers needing concurrent access should guard Trie with a sync.RWMutex, as
// §4.4 specifies "a single reader-writer discipline per trie" —
// deliberately left to the caller (e.g. internal/routing) rather than
// embedded here, so a Trie used single-threaded pays no locking cost.
type Trie struct {
	root *node
}

// New constructs an empty trie.
func New() *Trie {
	return &Trie{root: &node{}}
}

// CheckFunc reports whether data (and, transitively, the prefix it is
// associated with) should be considered visible for a FindChecked call.
type CheckFunc func(data any) bool

func bitAt(ip netip.Addr, i int) int {
	b := ip.As4()
	byteIdx := i / 8
	bitIdx := 7 - (i % 8)
	return int((b[byteIdx] >> bitIdx) & 1)
}

// Insert stores data under the given prefix, replacing any data already
// present at that exact prefix (§4.4 insert()).
func (t *Trie) Insert(ip netip.Addr, prefixBits int, data any) {
	n := t.root
	for i := 0; i < prefixBits; i++ {
		bit := bitAt(ip, i)
		if n.children[bit] == nil {
			n.children[bit] = &node{}
		}
		n = n.children[bit]
	}
	n.data = data
}

// Remove clears the data at the given exact prefix, pruning any node
// left with no data and no children, cascading upward (§4.4 remove()).
func (t *Trie) Remove(ip netip.Addr, prefixBits int) {
	path := make([]*node, 0, prefixBits+1)
	path = append(path, t.root)

	n := t.root
	for i := 0; i < prefixBits; i++ {
		bit := bitAt(ip, i)
		if n.children[bit] == nil {
			return // prefix not present
		}
		n = n.children[bit]
		path = append(path, n)
	}
	n.data = nil

	for i := len(path) - 1; i > 0; i-- {
		child := path[i]
		if !child.empty() {
			break
		}
		parent := path[i-1]
		bit := bitAt(ip, i-1)
		parent.children[bit] = nil
	}
}

// Find returns the data of the longest stored prefix matching ip, or nil
// if the trie holds nothing that matches (the header's find()).
func (t *Trie) Find(ip netip.Addr) any {
	return t.FindChecked(ip, nil)
}

// FindChecked is Find with a visibility predicate: a slot is considered
// only if check is nil or check(data) reports true (§4.4 find_checked()).
func (t *Trie) FindChecked(ip netip.Addr, check CheckFunc) any {
	var best any
	n := t.root
	if n.data != nil && (check == nil || check(n.data)) {
		best = n.data
	}
	for i := 0; i < 32 && n != nil; i++ {
		bit := bitAt(ip, i)
		n = n.children[bit]
		if n == nil {
			break
		}
		if n.data != nil && (check == nil || check(n.data)) {
			best = n.data
		}
	}
	return best
}

// FindExact returns the data stored at exactly (ip, prefixBits), with no
// BMP fallback to a shorter prefix (§4.4 find_exact()).
func (t *Trie) FindExact(ip netip.Addr, prefixBits int) any {
	n := t.root
	for i := 0; i < prefixBits; i++ {
		bit := bitAt(ip, i)
		if n.children[bit] == nil {
			return nil
		}
		n = n.children[bit]
	}
	return n.data
}
