// Package errctx implements the reflector's bounded error-kind stack: a
// small, per-call-chain record of named failure conditions pushed as an
// error propagates from a leaf cause up through the module, queue, and
// processor layers that handled it.
package errctx

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of named failure conditions the reflector
// recognises. Kinds describe *conditions*, never a source identifier.
type Kind int

const (
	KindUnknown Kind = iota
	KindOutOfMemory
	KindQueueInit
	KindQueueGroupInit
	KindQueueGroupIO
	KindQueueOverflow
	KindInvalidContext
	KindModuleLimit
	KindModuleStart
	KindModuleInterfaceMissing
	KindModuleIncompatible
	KindModuleNotStarted
	KindModuleInvalid
	KindModuleConflict
	KindModuleNew
	KindModuleParameterDescription
	KindModuleParameterValue
	KindModuleParameterSet
	KindModuleSubthread
	KindLogSourceAdd
	KindLogSourceNotFound
	KindLogRegister
	KindListenerInit
	KindListenParameters
	KindProtocolParseLine
	KindProtocolParseHeader
	KindProtocolParseContent
	KindProtocolRequest
	KindProtocolRequestCopy
	KindProtocolResponse
	KindAdminIfaceInit
	KindAdminIfaceParameters
	KindAdminIfaceParser
	KindAdminIfaceLogSource
	KindConfigInit
	KindConfigRead
	KindConfigWrite
	KindSyncRequestInRequest
	KindSenderInit
	KindSessionInit
	KindSessionNew
	KindPacketCopy
	KindTrieInit
	KindTrieInsert
	KindProcessorInit
	KindProcessorParameters
	KindProcessorTooMany
	KindProcessorPush
	KindProcessorProcess
	KindRouteInit
	KindRouteProcess
)

var kindNames = map[Kind]string{
	KindUnknown:                    "Unknown",
	KindOutOfMemory:                "OutOfMemory",
	KindQueueInit:                  "QueueInit",
	KindQueueGroupInit:             "QueueGroupInit",
	KindQueueGroupIO:               "QueueGroupIo",
	KindQueueOverflow:              "QueueOverflow",
	KindInvalidContext:             "InvalidContext",
	KindModuleLimit:                "ModuleLimit",
	KindModuleStart:                "ModuleStart",
	KindModuleInterfaceMissing:     "ModuleInterfaceMissing",
	KindModuleIncompatible:         "ModuleIncompatible",
	KindModuleNotStarted:           "ModuleNotStarted",
	KindModuleInvalid:              "ModuleInvalid",
	KindModuleConflict:             "ModuleConflict",
	KindModuleNew:                  "ModuleNew",
	KindModuleParameterDescription: "ModuleParameterDescription",
	KindModuleParameterValue:       "ModuleParameterValue",
	KindModuleParameterSet:         "ModuleParameterSet",
	KindModuleSubthread:            "ModuleSubthread",
	KindLogSourceAdd:               "LogSourceAdd",
	KindLogSourceNotFound:          "LogSourceNotFound",
	KindLogRegister:                "LogRegister",
	KindListenerInit:               "ListenerInit",
	KindListenParameters:           "ListenParameters",
	KindProtocolParseLine:          "ProtocolParseLine",
	KindProtocolParseHeader:        "ProtocolParseHeader",
	KindProtocolParseContent:       "ProtocolParseContent",
	KindProtocolRequest:            "ProtocolRequest",
	KindProtocolRequestCopy:        "ProtocolRequestCopy",
	KindProtocolResponse:           "ProtocolResponse",
	KindAdminIfaceInit:             "AdminIfaceInit",
	KindAdminIfaceParameters:       "AdminIfaceParameters",
	KindAdminIfaceParser:           "AdminIfaceParser",
	KindAdminIfaceLogSource:        "AdminIfaceLogSource",
	KindConfigInit:                 "ConfigInit",
	KindConfigRead:                 "ConfigRead",
	KindConfigWrite:                "ConfigWrite",
	KindSyncRequestInRequest:       "SyncRequestInRequest",
	KindSenderInit:                 "SenderInit",
	KindSessionInit:                "SessionInit",
	KindSessionNew:                 "SessionNew",
	KindPacketCopy:                 "PacketCopy",
	KindTrieInit:                   "TrieInit",
	KindTrieInsert:                 "TrieInsert",
	KindProcessorInit:              "ProcessorInit",
	KindProcessorParameters:        "ProcessorParameters",
	KindProcessorTooMany:           "ProcessorTooMany",
	KindProcessorPush:              "ProcessorPush",
	KindProcessorProcess:           "ProcessorProcess",
	KindRouteInit:                  "RouteInit",
	KindRouteProcess:               "RouteProcess",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Kind(?)"
}

// MaxDepth bounds the error-kind stack depth.
const MaxDepth = 20

// Context is a bounded, ordered stack of error kinds: leaf cause first,
// semantic kinds pushed on top as the failure unwinds through callers.
// The zero value is an empty, ready-to-use context.
type Context struct {
	stack []Kind
}

// New returns an empty error context.
func New() *Context {
	return &Context{stack: make([]Kind, 0, 4)}
}

// Push records kind at the top of the stack (nearest the leaf cause first
// call, most semantic last). Once MaxDepth entries are present, further
// pushes are dropped silently — mirroring the bounded-stack contract; the
// leaf-most entries, which carry the most diagnostic value, are preserved.
func (c *Context) Push(kind Kind) {
	if c == nil {
		return
	}
	if len(c.stack) >= MaxDepth {
		return
	}
	c.stack = append(c.stack, kind)
}

// Leaf returns the first (deepest, most specific) kind pushed, or
// KindUnknown if the context is empty.
func (c *Context) Leaf() Kind {
	if c == nil || len(c.stack) == 0 {
		return KindUnknown
	}
	return c.stack[0]
}

// Top returns the most recently pushed (outermost, most semantic) kind,
// which is what a caller-facing response should report.
func (c *Context) Top() Kind {
	if c == nil || len(c.stack) == 0 {
		return KindUnknown
	}
	return c.stack[len(c.stack)-1]
}

// Kinds returns the full stack, leaf first.
func (c *Context) Kinds() []Kind {
	if c == nil {
		return nil
	}
	out := make([]Kind, len(c.stack))
	copy(out, c.stack)
	return out
}

// Reset empties the context for reuse across requests.
func (c *Context) Reset() {
	if c == nil {
		return
	}
	c.stack = c.stack[:0]
}

// wrappedKind pairs a Kind with an underlying cause so errors.Is/As and
// %w-wrapping behave normally alongside the kind stack.
type wrappedKind struct {
	kind  Kind
	cause error
}

func (w *wrappedKind) Error() string {
	if w.cause == nil {
		return w.kind.String()
	}
	return fmt.Sprintf("%s: %v", w.kind, w.cause)
}

func (w *wrappedKind) Unwrap() error { return w.cause }

// Wrap pushes kind onto ctx and returns a Go error chaining kind and cause,
// suitable for fmt.Errorf("...: %w", errctx.Wrap(ctx, errctx.KindSessionNew, err)).
func Wrap(ctx *Context, kind Kind, cause error) error {
	ctx.Push(kind)
	return &wrappedKind{kind: kind, cause: cause}
}

// KindOf reports the Kind carried by err, if any, via errors.As.
func KindOf(err error) (Kind, bool) {
	var w *wrappedKind
	if errors.As(err, &w) {
		return w.kind, true
	}
	return KindUnknown, false
}
