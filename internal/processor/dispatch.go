package processor

import (
	"log/slog"

	"github.com/dantte-lp/goreflector/internal/module"
	"github.com/dantte-lp/goreflector/internal/packet"
)

// Dispatch is the processor master's entry point for a freshly built
// fan-out record (§4.5 dispatch step 1): if every valid client shares one
// path, it is forwarded whole; otherwise the record is partitioned by
// per-client path and each partition forwarded independently.
func (m *Master) Dispatch(meta *packet.Meta) {
	groups := partitionByPath(meta)

	if len(groups) <= 1 {
		var path *packet.Path
		if len(groups) == 1 {
			path = groups[0].path
		}
		m.forward(meta, path)
		return
	}

	for _, g := range groups {
		part := meta.Copy()
		restrictTo(part, g.indices)
		m.forward(part, g.path)
	}
	meta.Free()
}

// Pass is processor_path_pass(): a processor calls it once it has
// finished acting on meta, handing control back to the master to advance
// next_node and forward to the next hop, or to the sender when the path
// is exhausted (§4.5 dispatch step 3).
func (m *Master) Pass(meta *packet.Meta) {
	path := activePath(meta)
	meta.NextNode++
	m.forward(meta, path)
}

// SetSender designates the module handle that terminal metadata is
// delivered to once a path is empty or exhausted.
func (m *Master) SetSender(h *module.Handle) {
	m.mu.Lock()
	m.sender = h
	m.mu.Unlock()
}

func (m *Master) forward(meta *packet.Meta, path *packet.Path) {
	if path == nil || path.Empty() || meta.NextNode >= len(path.Nodes) {
		m.toSender(meta)
		return
	}

	node := path.Nodes[meta.NextNode]
	h, ok := m.registry.Find(module.ClassProcessor, node.Name)
	if !ok {
		m.logger.Error("dispatch: processor vanished mid-path", slog.String("name", node.Name))
		m.toSender(meta)
		return
	}
	if err := h.PushData(meta); err != nil {
		m.logger.Error("dispatch: push to processor failed",
			slog.String("name", node.Name), slog.Any("error", err))
	}
}

func (m *Master) toSender(meta *packet.Meta) {
	m.mu.RLock()
	sender := m.sender
	m.mu.RUnlock()

	if sender == nil {
		m.logger.Warn("dispatch: no sender registered, dropping metadata")
		meta.Free()
		return
	}
	if err := sender.PushData(meta); err != nil {
		m.logger.Error("dispatch: push to sender failed", slog.Any("error", err))
	}
}

type pathGroup struct {
	path    *packet.Path
	indices []int
}

// partitionByPath groups the valid (mask bit set) client indices of meta
// by their assigned Path, comparing by pointer identity since Resolve
// returns the same memoized *Path for equal keys.
func partitionByPath(meta *packet.Meta) []pathGroup {
	order := make([]*packet.Path, 0, 4)
	byPath := make(map[*packet.Path][]int)

	for i := range meta.Clients {
		if !meta.MaskGet(i) {
			continue
		}
		var p *packet.Path
		if i < len(meta.Paths) {
			p = meta.Paths[i]
		}
		if _, seen := byPath[p]; !seen {
			order = append(order, p)
		}
		byPath[p] = append(byPath[p], i)
	}

	groups := make([]pathGroup, 0, len(order))
	for _, p := range order {
		groups = append(groups, pathGroup{path: p, indices: byPath[p]})
	}
	return groups
}

// activePath returns the Path shared by meta's valid clients, assuming
// Dispatch has already partitioned meta into a single-path group.
func activePath(meta *packet.Meta) *packet.Path {
	for i := range meta.Clients {
		if meta.MaskGet(i) && i < len(meta.Paths) {
			return meta.Paths[i]
		}
	}
	return nil
}

// restrictTo clears the validity bit of every client index not present
// in keep, turning a full-size Copy into one partition's view.
func restrictTo(meta *packet.Meta, keep []int) {
	set := make(map[int]struct{}, len(keep))
	for _, i := range keep {
		set[i] = struct{}{}
	}
	for i := range meta.Clients {
		if _, ok := set[i]; !ok {
			meta.MaskSet(i, false)
		}
	}
}
