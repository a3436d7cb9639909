package queue

import (
	"sync"
	"time"
)

// member is satisfied by *Data and *Message: anything a Group can poll
// for emptiness and attach itself to for wake signalling.
type member interface {
	empty() bool
	attach(*Group)
}

// Group is a queue-group: it belongs to exactly one consumer goroutine
// and multiplexes readiness across several queues and external file
// descriptors (§4.2). The wake protocol is a single "something happened"
// flag backed by a buffered channel; spurious wakeups are permitted and
// Wait/TMWait callers must re-check all queues themselves.
type Group struct {
	mu      sync.Mutex
	queues  []member
	ioChans map[int]<-chan struct{}
	wake    chan struct{}
}

// NewGroup constructs an empty queue group.
func NewGroup() *Group {
	return &Group{
		ioChans: make(map[int]<-chan struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Register attaches queues to the group; a queue may belong to several
// groups simultaneously.
func (g *Group) Register(queues ...member) {
	g.mu.Lock()
	g.queues = append(g.queues, queues...)
	g.mu.Unlock()

	for _, q := range queues {
		q.attach(g)
	}
}

// IOAdd registers an external readiness source under fd. Across every
// group in the reflector, fd values must be globally unique (§4.2); this
// type does not itself enforce that, leaving it to the readiness bridge
// that owns fd allocation.
func (g *Group) IOAdd(fd int, ready <-chan struct{}) {
	g.mu.Lock()
	g.ioChans[fd] = ready
	g.mu.Unlock()
}

// IORemove removes fd's readiness source. Removal is synchronous: once
// IORemove returns, the group will never again observe that fd.
func (g *Group) IORemove(fd int) {
	g.mu.Lock()
	delete(g.ioChans, fd)
	g.mu.Unlock()
}

// signal wakes the group's consumer if it is waiting. It never blocks:
// the wake channel has capacity 1 and a pending wake is sufficient, so a
// full channel means a wakeup is already outstanding.
func (g *Group) signal() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// Signal wakes the group's consumer directly, without an associated
// queue push — the "signal()" escape hatch from §4.2.
func (g *Group) Signal() { g.signal() }

// Ready reports whether any registered queue is non-empty or any
// registered fd channel has a pending readiness notification.
func (g *Group) Ready() bool {
	g.mu.Lock()
	queues := append([]member(nil), g.queues...)
	ioChans := make([]<-chan struct{}, 0, len(g.ioChans))
	for _, ch := range g.ioChans {
		ioChans = append(ioChans, ch)
	}
	g.mu.Unlock()

	for _, q := range queues {
		if !q.empty() {
			return true
		}
	}
	for _, ch := range ioChans {
		select {
		case <-ch:
			return true
		default:
		}
	}
	return false
}

// Wait blocks until at least one registered queue becomes non-empty, a
// registered fd signals readable, or the group is woken by Signal.
// Spurious wakeups are permitted; callers must re-check state themselves.
func (g *Group) Wait() {
	if g.Ready() {
		return
	}
	<-g.wake
}

// TMWait is Wait with a timeout; it reports false if the deadline elapsed
// without a wake.
func (g *Group) TMWait(timeout time.Duration) bool {
	if g.Ready() {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-g.wake:
		return true
	case <-timer.C:
		return false
	}
}
