// Package session implements the reflector's per-listener client
// membership: registration, admission, stale eviction, and snapshotting
// (§4.6, original_source/include/rum2/clients.h).
package session

import (
	"net/netip"
	"sync"
	"time"
)

// Client mirrors struct client in clients.h: one membership record.
type Client struct {
	Addr      netip.Addr
	LastSeen  time.Time
	Permanent bool
	Listener  int
}

// NeverExpires is the timeout sentinel meaning "never automatically
// remove this client" (clients_add_tm's timeout == -1).
const NeverExpires = -1

// Session is one listener's client membership and bookkeeping, each
// guarded by its own mutex per §4.6's "one mutex per session" rule.
type Session struct {
	id int

	mu      sync.Mutex
	clients []Client
}

// ID returns the session's identifier, used to establish lock-acquisition
// order for cross-session operations (§4.6).
func (s *Session) ID() int { return s.id }

// Add inserts or refreshes a client, returning true iff membership
// actually changed: a brand-new entry was appended. Refreshing an
// existing client's LastSeen is not itself a "change".
func (s *Session) Add(addr netip.Addr, timeoutSeconds int, permanent bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for i := range s.clients {
		if s.clients[i].Addr == addr {
			s.clients[i].LastSeen = now
			return false
		}
	}

	// A client added with NeverExpires is exempt from EvictStale exactly
	// like one explicitly marked permanent; callers outside this package
	// only need pass one or the other.
	if timeoutSeconds == NeverExpires {
		permanent = true
	}
	s.clients = append(s.clients, Client{
		Addr:      addr,
		LastSeen:  now,
		Permanent: permanent,
		Listener:  s.id,
	})
	return true
}

// Remove deletes the first client whose address matches addr under the
// given prefix length, reporting whether the list changed
// (clients_remove).
func (s *Session) Remove(addr netip.Addr, maskBits int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := netip.PrefixFrom(addr, maskBits)
	for i := range s.clients {
		if prefix.Contains(s.clients[i].Addr) {
			s.clients = append(s.clients[:i], s.clients[i+1:]...)
			return true
		}
	}
	return false
}

// EvictStale removes every non-permanent client whose LastSeen is at or
// before cutoff, reporting whether the list changed
// (clients_remove_stale).
func (s *Session) EvictStale(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	kept := s.clients[:0]
	for _, c := range s.clients {
		if !c.Permanent && !c.LastSeen.After(cutoff) {
			changed = true
			continue
		}
		kept = append(kept, c)
	}
	s.clients = kept
	return changed
}

// Copy returns a freshly allocated snapshot of the client list
// (clients_copy / client_list_copy): caller owns the returned slice.
func (s *Session) Copy() []Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Client, len(s.clients))
	copy(out, s.clients)
	return out
}

// Count returns the number of clients currently in the session.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
