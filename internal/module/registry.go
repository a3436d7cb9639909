package module

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/dantte-lp/goreflector/internal/errctx"
	"github.com/dantte-lp/goreflector/internal/queue"
)

// DefaultInputDataCapacity bounds a module's input data queue absent an
// explicit per-module override (§4.2).
const DefaultInputDataCapacity = 256

// Initializer constructs a fresh Interface implementation for one module
// instance; it is the Go stand-in for the original's dynamic-plugin
// initialize(handle) entry point (§4.1 load() step 3), registered ahead
// of time under its (class, name) key rather than resolved via dlopen.
type Initializer func() (Interface, []Param, error)

// Registry is the reflector's process-wide module list: it tracks every
// loaded module's identity and lifecycle state, and is the only actor
// allowed to drive lifecycle transitions (§9 "Global lists and
// process-wide state").
type Registry struct {
	mu sync.RWMutex

	initializers map[ID]Initializer
	handles      map[ID]*Handle
	numbers      *numberAllocator

	logger *slog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		initializers: make(map[ID]Initializer),
		handles:      make(map[ID]*Handle),
		numbers:      newNumberAllocator(),
		logger:       logger,
	}
}

// Register associates an Initializer with a (class, name) key, the
// runtime analogue of a dynamic plugin installed at
// <plugin_root>/<class>/<name> (§4.1, §11).
func (r *Registry) Register(id ID, init Initializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initializers[id] = init
}

// Load resolves id to a registered initializer, constructs its Interface,
// validates required vtable slots, checks declared conflicts against
// every already-loaded module, and inserts the result into the registry
// at state Inserted (§4.1 load()).
func (r *Registry) Load(ctx context.Context, id ID) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[id]; exists {
		ec := errctx.New()
		return nil, errctx.Wrap(ec, errctx.KindModuleConflict,
			fmt.Errorf("module %s already loaded", id))
	}

	init, ok := r.initializers[id]
	if !ok {
		ec := errctx.New()
		return nil, errctx.Wrap(ec, errctx.KindModuleInvalid,
			fmt.Errorf("no initializer registered for %s", id))
	}

	iface, params, err := init()
	if err != nil {
		ec := errctx.New()
		return nil, errctx.Wrap(ec, errctx.KindModuleNew, err)
	}
	if iface == nil {
		ec := errctx.New()
		return nil, errctx.Wrap(ec, errctx.KindModuleInterfaceMissing,
			fmt.Errorf("%s: nil interface", id))
	}

	if v, ok := iface.(Versioned); ok {
		if got := v.InterfaceVersion(); got != Version {
			ec := errctx.New()
			return nil, errctx.Wrap(ec, errctx.KindModuleIncompatible,
				fmt.Errorf("%s: interface version %d, runtime expects %d", id, got, Version))
		}
	}

	if c, ok := iface.(Conflicter); ok {
		h := &Handle{id: id}
		for _, pattern := range c.Conflicts(h) {
			for existingID := range r.handles {
				if pattern.Matches(existingID) {
					ec := errctx.New()
					return nil, errctx.Wrap(ec, errctx.KindModuleConflict,
						fmt.Errorf("%s conflicts with loaded module %s", id, existingID))
				}
			}
		}
	}

	number, err := r.numbers.allocate()
	if err != nil {
		ec := errctx.New()
		return nil, errctx.Wrap(ec, errctx.KindModuleLimit, err)
	}

	h := &Handle{
		id:           id,
		iface:        iface,
		params:       NewParamSet(params),
		errctx:       errctx.New(),
		state:        StateInserted,
		number:       number,
		logger:       r.logger.With(slog.String("module", id.String())),
		InputData:    queue.NewData(DefaultInputDataCapacity),
		InputMessage: queue.NewMessage(),
	}

	if namer, ok := iface.(Namer); ok {
		if name, err := namer.Name(h, int(number)); err == nil && name != "" {
			h.id.Name = name
			id = h.id
		}
	}

	r.handles[id] = h
	h.logger.Info("module loaded", slog.Uint64("number", uint64(number)))
	return h, nil
}

// Init drives the Inserted -> Initialised transition by invoking the
// module's Init hook.
func (r *Registry) Init(ctx context.Context, h *Handle) error {
	if err := h.iface.Init(ctx, h); err != nil {
		res := ApplyEvent(h.State(), EventInitFail)
		r.apply(h, res)
		return fmt.Errorf("module %s init: %w", h.ID(), err)
	}
	res := ApplyEvent(h.State(), EventInitSucceed)
	r.apply(h, res)
	return nil
}

// Start drives the Initialised -> Running transition, launching Main on
// its own goroutine. ctx governs cooperative cancellation (§5).
func (r *Registry) Start(ctx context.Context, h *Handle) error {
	runCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	res := ApplyEvent(h.State(), EventStart)
	if !res.Changed {
		cancel()
		return fmt.Errorf("module %s: cannot start from state %s", h.ID(), h.State())
	}
	h.setState(res.NewState)

	for _, action := range res.Actions {
		if action == ActionInvokeMain {
			go h.iface.Main(runCtx, h)
		}
	}
	return nil
}

// Stop drives the Running -> Stopped transition: cancels the module's
// context and invokes its optional Stop hook immediately after.
func (r *Registry) Stop(h *Handle) error {
	res := ApplyEvent(h.State(), EventStop)
	if !res.Changed {
		return fmt.Errorf("module %s: cannot stop from state %s", h.ID(), h.State())
	}
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.apply(h, res)
	return nil
}

// Restart drives Stopped -> Initialised, invoking Clean(forRestart=true)
// then Init again.
func (r *Registry) Restart(ctx context.Context, h *Handle) error {
	res := ApplyEvent(h.State(), EventRestart)
	if !res.Changed {
		return fmt.Errorf("module %s: cannot restart from state %s", h.ID(), h.State())
	}
	for _, action := range res.Actions {
		switch action {
		case ActionInvokeCleanForRestart:
			h.iface.Clean(h, true)
		case ActionInvokeInit:
			if err := h.iface.Init(ctx, h); err != nil {
				failRes := ApplyEvent(StateInserted, EventInitFail)
				r.apply(h, failRes)
				return fmt.Errorf("module %s restart init: %w", h.ID(), err)
			}
		}
	}
	h.setState(res.NewState)
	return nil
}

// Destroy drives (Initialised|Stopped) -> Destroyed, invoking
// Clean(forRestart=false) and removing the module from the registry.
func (r *Registry) Destroy(h *Handle) error {
	res := ApplyEvent(h.State(), EventDestroy)
	if !res.Changed {
		return fmt.Errorf("module %s: cannot destroy from state %s", h.ID(), h.State())
	}
	r.apply(h, res)
	return nil
}

// apply performs the side-effecting Actions a transition specifies and
// commits the new state, mirroring ApplyEvent's pure result.
func (r *Registry) apply(h *Handle, res Result) {
	for _, action := range res.Actions {
		switch action {
		case ActionInvokeStop:
			if s, ok := h.iface.(Stopper); ok {
				s.Stop(h)
			}
		case ActionInvokeClean:
			h.iface.Clean(h, false)
		case ActionRemoveFromRegistry:
			r.mu.Lock()
			for id, other := range r.handles {
				if other == h {
					delete(r.handles, id)
				}
			}
			r.mu.Unlock()
			r.numbers.release(h.number)
		}
	}
	h.setState(res.NewState)
}

// Find returns the loaded module matching class and a literal name or,
// if namePattern compiles as a regular expression, the first match.
// Names are compared against each module's current name, including one
// set by Rename after Load.
func (r *Registry) Find(class Class, namePattern string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handles[ID{Class: class, Name: namePattern}]; ok {
		return h, true
	}
	for _, h := range r.handles {
		if id := h.ID(); id.Class == class && id.Name == namePattern {
			return h, true
		}
	}
	re, err := regexp.Compile(namePattern)
	if err != nil {
		return nil, false
	}
	for _, h := range r.handles {
		if id := h.ID(); id.Class == class && re.MatchString(id.Name) {
			return h, true
		}
	}
	return nil, false
}

// Number returns the reflector-wide handle number for (class, name).
func (r *Registry) Number(class Class, name string) (uint32, bool) {
	h, ok := r.Find(class, name)
	if !ok {
		return 0, false
	}
	return h.Number(), true
}

// ForEach calls fn for every loaded module in class, or every module
// reflector-wide when class is the pseudo-class "reflector".
func (r *Registry) ForEach(class Class, fn func(*Handle)) {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.handles))
	for id, h := range r.handles {
		if class == classAll || id.Class == class {
			handles = append(handles, h)
		}
	}
	r.mu.RUnlock()

	for _, h := range handles {
		fn(h)
	}
}

// ClassAll is the exported spelling of the "reflector" pseudo-class,
// accepted by ForEach to mean every class.
const ClassAll = classAll

// Available returns the IDs registered with an Initializer but not
// currently loaded, restricted to class unless class is ClassAll. This
// is the set §6's AVAIL method reports, distinct from the loaded set
// LIST reports.
func (r *Registry) Available(class Class) []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ID, 0, len(r.initializers))
	for id := range r.initializers {
		if class != classAll && id.Class != class {
			continue
		}
		if _, loaded := r.handles[id]; loaded {
			continue
		}
		out = append(out, id)
	}
	return out
}
