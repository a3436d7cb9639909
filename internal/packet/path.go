package packet

import (
	"fmt"
	"sync/atomic"

	"github.com/dantte-lp/goreflector/internal/errctx"
)

// MaxPathLength bounds the number of processor hops a Path may contain
// (§3, §4.5's compile-time L).
const MaxPathLength = 5

// Path is an immutable, reference-counted ordered tuple of processor
// module handles plus their names, co-located in one allocation (§3).
// Content never changes after construction; Retain/Release manage the
// memoization lifetime described in §4.5.
type Path struct {
	refs  int32
	Nodes []PathNode
}

// PathNode is one hop in a Path: the processor's registry number and its
// display name, kept together so a path can be logged or emitted over
// the admin protocol without a registry lookup.
type PathNode struct {
	ModuleNumber uint32
	Name         string
}

// NewPath constructs a Path at refcount 1. An empty nodes slice is the
// valid "send directly to sender" path (§4.5). A composed path longer
// than MaxPathLength is truncated to the first MaxPathLength hops and
// reported via errctx.KindProcessorTooMany rather than silently dropped
// (§4.5, §7); the returned Path is always usable.
func NewPath(nodes ...PathNode) (*Path, error) {
	if len(nodes) > MaxPathLength {
		truncated := nodes[:MaxPathLength]
		ec := errctx.New()
		err := errctx.Wrap(ec, errctx.KindProcessorTooMany,
			fmt.Errorf("path has %d hops, truncated to %d", len(nodes), MaxPathLength))
		return &Path{refs: 1, Nodes: truncated}, err
	}
	return &Path{refs: 1, Nodes: nodes}, nil
}

// Empty reports whether this is the empty path.
func (p *Path) Empty() bool { return len(p.Nodes) == 0 }

// Retain atomically increments the path's reference count.
func (p *Path) Retain() { atomic.AddInt32(&p.refs, 1) }

// Release atomically decrements the path's reference count. A path at
// refcount zero is eligible for eviction from the processor master's
// memoization cache (§3 "freed when no metadata still references them").
func (p *Path) Release() { atomic.AddInt32(&p.refs, -1) }

// RefCount returns the path's current reference count.
func (p *Path) RefCount() int32 { return atomic.LoadInt32(&p.refs) }
