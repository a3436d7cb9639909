package module

import "context"

// AdminRequest is a single administrative request line a module's Config
// hook emits to reconstruct its own state (§6, §9 config save/restore).
type AdminRequest struct {
	Method  string
	Headers map[string]string
	Body    []byte
}

// Notification identifies an intra-reflector notification delivered
// through a module's optional Events hook.
type Notification int

const (
	EventLogSourceAdded Notification = iota
	EventLogSourceRemoved
	EventClientListChanged
)

// Interface is the module capability set (§4.1, §9): every module provides
// Init/Main/Clean; the rest are tested for presence by callers, modeled in
// Go as optional interfaces a concrete module may additionally implement.
type Interface interface {
	// Init performs all allocations, opens sockets, registers queue
	// groups. After success the module must be startable and remain
	// runnable until Stop is called.
	Init(ctx context.Context, m *Handle) error

	// Main is the module's thread body; it must return promptly once
	// ctx is cancelled.
	Main(ctx context.Context, m *Handle)

	// Clean frees everything allocated by Init/Main. When forRestart is
	// false it also frees parameter storage and identity.
	Clean(m *Handle, forRestart bool)
}

// Namer computes a module's final name from its parameters and an integer
// disambiguator, as in the filter processor's "filter-<id>" naming.
type Namer interface {
	Name(m *Handle, id int) (string, error)
}

// Versioned reports the module interface version a module was built
// against. A module that does not implement Versioned is assumed
// compatible (the Go stand-in for a statically linked, same-build
// initializer); one that does is checked against Version at Load time
// and fails with errctx.KindModuleIncompatible on mismatch (§4.1).
type Versioned interface {
	InterfaceVersion() int
}

// Conflicter reports identifiers of modules this one cannot coexist with.
type Conflicter interface {
	Conflicts(m *Handle) []ConflictPattern
}

// Stopper is invoked by Registry.Stop right after the module's context is
// cancelled, to release transient resources. It does not wait for Main to
// return, so Main may still be running while Stop executes.
type Stopper interface {
	Stop(m *Handle)
}

// DataPusher is a synchronous alternative to pushing onto a module's
// input data queue; callers prefer it over the queue when present.
type DataPusher interface {
	PushData(m *Handle, item any) error
}

// MessagePusher is the message-queue analogue of DataPusher.
type MessagePusher interface {
	PushMessage(m *Handle, item any) error
}

// EventHandler receives intra-reflector events such as client-list
// changes or log-source topology changes.
type EventHandler interface {
	HandleEvent(m *Handle, ev Notification, arg any)
}

// Configurer emits administrative requests that reconstruct the module's
// current state, honoring the start-only convention from §6/§9.
type Configurer interface {
	Config(m *Handle, nameOverride string, startOnly bool) []AdminRequest
}
