package module

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dantte-lp/goreflector/internal/errctx"
	"github.com/dantte-lp/goreflector/internal/queue"
)

// Handle is a loaded module: its identity, parameters, interface,
// lifecycle state, error context, and private data. Identity is fixed at
// load time; State transitions only via the registry under the
// management master's direction (§3, §4.1).
type Handle struct {
	mu sync.Mutex

	id     ID
	iface  Interface
	params *ParamSet
	errctx *errctx.Context
	state  State
	number uint32

	logger *slog.Logger

	cancel context.CancelFunc

	// InputData is the module's bounded data-queue inbox (§4.1, §4.2);
	// every module gets one at load time regardless of whether it ends
	// up using it (a DataPusher-only module simply never pops it).
	InputData *queue.Data

	// InputMessage is the module's unbounded message-queue inbox.
	InputMessage *queue.Message

	// Data is the module's private state, set by its own Init and read
	// back by Main/Stop/Clean; the registry never inspects it.
	Data any
}

// ID returns the module's (class, name) identity.
func (h *Handle) ID() ID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// Rename overwrites the module's name, used by Namer.Name results during
// load to disambiguate multiple instances of the same class.
func (h *Handle) Rename(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.id.Name = name
}

// State returns the module's current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Number returns the module's reflector-wide unique handle number.
func (h *Handle) Number() uint32 { return h.number }

// Interface returns the module's underlying capability set, letting
// callers that only hold a *Handle (e.g. internal/session's event
// fanout) probe for optional capabilities like EventHandler.
func (h *Handle) Interface() Interface { return h.iface }

// Params returns the module's parameter set.
func (h *Handle) Params() *ParamSet { return h.params }

// ErrCtx returns the module's bounded error-kind stack.
func (h *Handle) ErrCtx() *errctx.Context { return h.errctx }

// Logger returns a logger pre-tagged with this module's identity.
func (h *Handle) Logger() *slog.Logger { return h.logger }

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// PushData delivers item to this module, preferring its synchronous
// DataPusher hook when implemented and falling back to the bounded
// InputData queue otherwise (§4.2, §4.5 dispatch).
func (h *Handle) PushData(item any) error {
	if dp, ok := h.iface.(DataPusher); ok {
		return dp.PushData(h, item)
	}
	h.InputData.Push(item)
	return nil
}
