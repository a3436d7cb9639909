// Package processor implements the processor master (§4.5,
// original_source/include/rum2/processor.h): path resolution and
// memoization for (source, destination, listener) tuples, plus the
// dispatcher that walks a resolved path, forwarding each fan-out record
// from one processor module to the next until it reaches the sender.
//
// processor.h documents processor_path()'s signature and
// processor_path_pass()'s forwarding contract but, like ip-trie.h, ships
// without the .c file that would pin down exactly how path templates are
// composed from routing rules; this package grounds path *lookup* keyed
// on source address and listener (the same shape as internal/routing's
// AAA table) and records the simplification in DESIGN.md.
package processor

import (
	"log/slog"
	"net/netip"
	"sync"

	"github.com/dantte-lp/goreflector/internal/module"
	"github.com/dantte-lp/goreflector/internal/packet"
	"github.com/dantte-lp/goreflector/internal/triebmp"
)

// PathTemplate is one entry in the master's path table: clients whose
// source address falls under Prefix (optionally scoped to one listener)
// are routed through Processors, in order.
type PathTemplate struct {
	Prefix     netip.Prefix
	Listener   int // -1 means "any listener"
	Processors []string
}

type pathKey struct {
	from     netip.Addr
	listener int
}

// Master resolves and caches processor paths and dispatches metadata
// along them, the Go analogue of the processor/master module.
type Master struct {
	registry *module.Registry

	mu        sync.RWMutex
	wildcard  *triebmp.Trie
	perListen map[int]*triebmp.Trie
	sender    *module.Handle

	cacheMu sync.RWMutex
	cache   map[pathKey]*packet.Path

	logger *slog.Logger
}

// NewMaster constructs a Master bound to registry, used to resolve
// processor names to loaded module handles.
func NewMaster(registry *module.Registry, logger *slog.Logger) *Master {
	if logger == nil {
		logger = slog.Default()
	}
	return &Master{
		registry:  registry,
		wildcard:  triebmp.New(),
		perListen: make(map[int]*triebmp.Trie),
		cache:     make(map[pathKey]*packet.Path),
		logger:    logger,
	}
}

// AddTemplate installs a path template, replacing any template already
// present at the same (prefix, listener).
func (m *Master) AddTemplate(t PathTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trie := m.trieFor(t.Listener)
	trie.Insert(t.Prefix.Addr(), t.Prefix.Bits(), t.Processors)
}

func (m *Master) trieFor(listener int) *triebmp.Trie {
	if listener < 0 {
		return m.wildcard
	}
	trie, ok := m.perListen[listener]
	if !ok {
		trie = triebmp.New()
		m.perListen[listener] = trie
	}
	return trie
}

// Resolve computes the processor path for a client address on listener,
// memoizing by (from, listener) and retaining the cached Path on every
// hit, mirroring processor_path()'s refcount-increment contract. The
// destination address is accepted for interface parity with
// processor_path() and reserved for future per-destination refinement
// (see DESIGN.md); current resolution keys on source and listener alone.
func (m *Master) Resolve(from, to netip.Addr, listener int) *packet.Path {
	_ = to

	key := pathKey{from: from, listener: listener}

	m.cacheMu.RLock()
	if p, ok := m.cache[key]; ok {
		p.Retain()
		m.cacheMu.RUnlock()
		return p
	}
	m.cacheMu.RUnlock()

	names := m.lookupTemplate(from, listener)

	nodes := make([]packet.PathNode, 0, len(names))
	for _, name := range names {
		h, ok := m.registry.Find(module.ClassProcessor, name)
		if !ok {
			m.logger.Warn("path template references unknown processor", slog.String("name", name))
			continue
		}
		nodes = append(nodes, packet.PathNode{ModuleNumber: h.Number(), Name: name})
	}

	// path starts at refcount 1, standing for the cache's own reference;
	// Retain once more below for the caller, matching the cache-hit branch.
	path, err := packet.NewPath(nodes...)
	if err != nil {
		m.logger.Warn("processor path truncated", slog.String("from", from.String()), slog.Any("error", err))
	}

	m.cacheMu.Lock()
	if existing, ok := m.cache[key]; ok {
		existing.Retain()
		m.cacheMu.Unlock()
		return existing
	}
	path.Retain()
	m.cache[key] = path
	m.cacheMu.Unlock()

	return path
}

func (m *Master) lookupTemplate(from netip.Addr, listener int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if trie, ok := m.perListen[listener]; ok {
		if data := trie.Find(from); data != nil {
			return data.([]string)
		}
	}
	if data := m.wildcard.Find(from); data != nil {
		return data.([]string)
	}
	return nil
}

// EvictUnreferenced drops cache entries whose Path has no outstanding
// references beyond the cache's own, freeing memoized paths that no
// in-flight metadata still points at (§3 "freed when no metadata still
// references them").
func (m *Master) EvictUnreferenced() {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	for key, p := range m.cache {
		if p.RefCount() <= 1 {
			p.Release()
			delete(m.cache, key)
		}
	}
}

// CacheSize reports the number of memoized paths currently held, for the
// path-cache-size gauge.
func (m *Master) CacheSize() int {
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()
	return len(m.cache)
}
