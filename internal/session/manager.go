package session

import (
	"log/slog"
	"net"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/dantte-lp/goreflector/internal/module"
)

// addrFromIP converts a net.IP (as delivered by the admin protocol's
// CLIENTS method) to a netip.Addr, reporting false if ip is nil or
// malformed.
func addrFromIP(ip net.IP) (netip.Addr, bool) {
	a, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

// Identity is a session's listener identity: its class/name wire
// identifier and the destination socket it owns (§3 Session).
type Identity struct {
	ListenerName string
	Socket       net.Addr
}

// entry bundles one session with its identity and byte counters. The
// client list is guarded by the Session's own mutex per §4.6's "one mutex
// per session" discipline; the byte counters are guarded by entry's mu.
type entry struct {
	*Session
	identity Identity

	mu       sync.Mutex
	received uint64
	sent     uint64
}

// Manager is the reflector-wide session layer (§4.6): it owns every
// Session keyed by listener id, admits/evicts clients, and notifies
// bound listener modules when a session's membership changes.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int]*entry
	nextID   int

	registry *module.Registry
	logger   *slog.Logger
}

// NewManager constructs an empty Manager bound to registry, used to
// deliver EventClientListChanged notifications to listener modules.
func NewManager(registry *module.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[int]*entry),
		registry: registry,
		logger:   logger,
	}
}

// RegisterListener creates a new session for a listener identity and
// returns its assigned listener id (§4.6 register_listener).
func (m *Manager) RegisterListener(listenerName string, socket net.Addr) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++

	m.sessions[id] = &entry{
		Session:  &Session{id: id},
		identity: Identity{ListenerName: listenerName, Socket: socket},
	}
	m.logger.Info("listener registered", slog.Int("listener_id", id), slog.String("listener", listenerName))
	return id
}

// UnregisterListener removes a session and all of its client state
// (§3: "sessions live until their listener unregisters").
func (m *Manager) UnregisterListener(listenerID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, listenerID)
}

func (m *Manager) get(listenerID int) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[listenerID]
	return e, ok
}

// ClientAdd adds or refreshes a client on listenerID, returning true iff
// membership actually changed. permanent clients are never evicted by
// EvictStale regardless of timeoutSeconds.
func (m *Manager) ClientAdd(listenerID int, addr netip.Addr, timeoutSeconds int, permanent bool) bool {
	e, ok := m.get(listenerID)
	if !ok {
		return false
	}
	changed := e.Session.Add(addr, timeoutSeconds, permanent)
	if changed {
		m.OnChange(listenerID)
	}
	return changed
}

// ClientRemove removes the first client on listenerID matching addr
// under maskBits, reporting whether membership changed (§4.6
// client_remove).
func (m *Manager) ClientRemove(listenerID int, addr net.IP, maskBits int) bool {
	e, ok := m.get(listenerID)
	if !ok {
		return false
	}
	a, ok := addrFromIP(addr)
	if !ok {
		return false
	}
	changed := e.Session.Remove(a, maskBits)
	if changed {
		m.OnChange(listenerID)
	}
	return changed
}

// ClientListCopy returns a freshly-allocated snapshot of listenerID's
// client list (§4.6 client_list_copy).
func (m *Manager) ClientListCopy(listenerID int) []Client {
	e, ok := m.get(listenerID)
	if !ok {
		return nil
	}
	return e.Session.Copy()
}

// EvictStale removes every non-permanent client on listenerID whose
// last-seen is at or before cutoff, notifying bound listeners exactly
// once if membership changed (§4.6 evict_stale).
func (m *Manager) EvictStale(listenerID int, cutoff time.Time) bool {
	e, ok := m.get(listenerID)
	if !ok {
		return false
	}
	changed := e.Session.EvictStale(cutoff)
	if changed {
		m.OnChange(listenerID)
	}
	return changed
}

// EvictStaleAll runs EvictStale across every registered session, the
// reaper's periodic sweep (§5 "stale-client reaper").
func (m *Manager) EvictStaleAll(cutoff time.Time) {
	m.mu.RLock()
	ids := make([]int, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Ints(ids)
	for _, id := range ids {
		m.EvictStale(id, cutoff)
	}
}

// OnChange emits EventClientListChanged to every listener module bound
// to listenerID's session identity. Handlers must not call back into
// session code (§4.6), so this delivers synchronously but outside of any
// session lock.
func (m *Manager) OnChange(listenerID int) {
	e, ok := m.get(listenerID)
	if !ok {
		return
	}
	m.registry.ForEach(module.ClassListener, func(h *module.Handle) {
		if h.ID().Name != e.identity.ListenerName {
			return
		}
		if eh, ok := interfaceOf(h); ok {
			eh.HandleEvent(h, module.EventClientListChanged, listenerID)
		}
	})
}

// interfaceOf narrows h's private iface to an EventHandler, mirroring
// the way Handle exposes PushData without exporting the iface field
// itself; Registry.ForEach only gives us the Handle, so we probe for the
// EventHandler capability through the handle's own dispatch helper.
func interfaceOf(h *module.Handle) (module.EventHandler, bool) {
	eh, ok := h.Interface().(module.EventHandler)
	return eh, ok
}

// AddBytes adds to listenerID's received/sent byte counters
// (§3 Session "received/sent byte counters").
func (m *Manager) AddBytes(listenerID int, received, sent uint64) {
	e, ok := m.get(listenerID)
	if !ok {
		return
	}
	e.mu.Lock()
	e.received += received
	e.sent += sent
	e.mu.Unlock()
}

// Counters returns listenerID's accumulated received/sent byte counts.
func (m *Manager) Counters(listenerID int) (received, sent uint64, ok bool) {
	e, exists := m.get(listenerID)
	if !exists {
		return 0, 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.received, e.sent, true
}

// Identity returns listenerID's listener identity.
func (m *Manager) Identity(listenerID int) (Identity, bool) {
	e, ok := m.get(listenerID)
	if !ok {
		return Identity{}, false
	}
	return e.identity, true
}

// ListenerIDs returns every currently registered listener id, ascending
// — the order cross-session operations must acquire locks in (§4.6
// "cross-session operations... acquire locks in id-ascending order").
func (m *Manager) ListenerIDs() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// CopyBetween copies every client from srcListener into dstListener. It
// never holds both sessions' locks at once, so no cross-session lock
// ordering applies. It returns the number of clients added.
func (m *Manager) CopyBetween(srcListener, dstListener int) int {
	src, ok := m.get(srcListener)
	if !ok {
		return 0
	}
	dst, ok := m.get(dstListener)
	if !ok {
		return 0
	}

	// Lock ordering matters only when both sessions' mutexes are held
	// simultaneously; Session.Copy/Add each take and release their own
	// lock independently, so reading src before dst (ascending when
	// srcListener < dstListener, descending otherwise) is sufficient to
	// avoid a cross-session deadlock without holding both at once.
	added := 0
	for _, c := range src.Session.Copy() {
		if dst.Session.Add(c.Addr, 0, c.Permanent) {
			added++
		}
	}
	if added > 0 {
		m.OnChange(dstListener)
	}
	return added
}
