// Package routing implements the reflector's AAA routing rules: access
// control decisions for a client address arriving on a given listener,
// keyed by best-matching prefix over the client's source address (§4.5,
// original_source/include/rum2/route.h).
package routing

import (
	"net/netip"
	"sync"

	"github.com/dantte-lp/goreflector/internal/triebmp"
)

// Access is the permission granted to a client, mirroring the original's
// enum raphdr_access (rap-types.h) and used both by routing decisions and
// reported verbatim over the admin protocol's acl method.
type Access int

const (
	AccessReadWrite Access = iota
	AccessReadOnly
	AccessWriteOnly
	AccessNone
)

// String renders Access the way the admin protocol's ACL response does.
func (a Access) String() string {
	switch a {
	case AccessReadWrite:
		return "rw"
	case AccessReadOnly:
		return "ro"
	case AccessWriteOnly:
		return "wo"
	case AccessNone:
		return "none"
	default:
		return "unknown"
	}
}

// Rule is one ACL entry: a prefix, optionally scoped to a single
// listener ID (listener < 0 means "any listener"), granting access.
type Rule struct {
	Prefix   netip.Prefix
	Listener int
	Access   Access
}

// Table is the routing AAA module's rule set: one BMP trie per listener
// scope plus a wildcard trie for rules with no listener restriction.
// Lookups check the listener-specific trie first, then fall back to the
// wildcard trie, matching the original's per-listener/global precedence.
type Table struct {
	mu        sync.RWMutex
	wildcard  *triebmp.Trie
	perListen map[int]*triebmp.Trie
}

// NewTable constructs an empty routing table; every client is denied
// access until rules are added (§4.5's "default deny" posture, since an
// empty trie's Find always returns nil).
func NewTable() *Table {
	return &Table{
		wildcard:  triebmp.New(),
		perListen: make(map[int]*triebmp.Trie),
	}
}

// AddRule installs rule, replacing any rule already present at the same
// (prefix, listener) pair.
func (t *Table) AddRule(rule Rule) {
	t.mu.Lock()
	defer t.mu.Unlock()

	trie := t.trieFor(rule.Listener)
	trie.Insert(rule.Prefix.Addr(), rule.Prefix.Bits(), rule.Access)
}

// RemoveRule deletes the rule at the given (prefix, listener) pair, if
// present.
func (t *Table) RemoveRule(prefix netip.Prefix, listener int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	trie := t.trieFor(listener)
	trie.Remove(prefix.Addr(), prefix.Bits())
}

// trieFor returns the trie for a listener scope, creating it on first
// use. Callers must hold t.mu for writing.
func (t *Table) trieFor(listener int) *triebmp.Trie {
	if listener < 0 {
		return t.wildcard
	}
	trie, ok := t.perListen[listener]
	if !ok {
		trie = triebmp.New()
		t.perListen[listener] = trie
	}
	return trie
}

// Check returns the access permission granted to client on listener,
// checking the listener-scoped rules before falling back to wildcard
// rules, and defaulting to AccessNone when nothing matches
// (route_acl_check's contract).
func (t *Table) Check(client netip.Addr, listener int) Access {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if trie, ok := t.perListen[listener]; ok {
		if data := trie.Find(client); data != nil {
			return data.(Access)
		}
	}
	if data := t.wildcard.Find(client); data != nil {
		return data.(Access)
	}
	return AccessNone
}
