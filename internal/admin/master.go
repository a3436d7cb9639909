package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/dantte-lp/goreflector/internal/module"
	"github.com/dantte-lp/goreflector/internal/routing"
	"github.com/dantte-lp/goreflector/internal/session"
)

// Master is the management/master module: it fans out every parsed
// administrative request to the target it names, gated by the
// reflector-wide sync Gate (§4.1, §5, §6).
type Master struct {
	Registry *module.Registry
	Sessions *session.Manager
	Routing  *routing.Table
	Gate     *Gate

	logger *slog.Logger
}

// NewMaster constructs a management master bound to registry, sessions,
// and the routing AAA table.
func NewMaster(registry *module.Registry, sessions *session.Manager, rt *routing.Table, logger *slog.Logger) *Master {
	if logger == nil {
		logger = slog.Default()
	}
	return &Master{
		Registry: registry,
		Sessions: sessions,
		Routing:  rt,
		Gate:     NewGate(),
		logger:   logger,
	}
}

// Handle dispatches one request, gating it through the sync Gate for the
// request's issuing msg-interface, and returns the response to write
// back (§6, §5).
func (m *Master) Handle(ctx context.Context, req *Request, ifaceName string) Response {
	m.Gate.Enter(req.Sync(), ifaceName)
	defer m.Gate.Exit(req.Sync(), ifaceName)

	switch req.Method {
	case MethodStart:
		return m.handleStart(ctx, req)
	case MethodStop:
		return m.handleStop(req)
	case MethodRestart:
		return m.handleRestart(ctx, req)
	case MethodStatus:
		return m.handleStatus(req)
	case MethodList:
		return m.handleList(req)
	case MethodAvail:
		return m.handleAvail(req)
	case MethodClients:
		return m.handleClients(req)
	case MethodSession:
		return m.handleSession(req)
	case MethodACL:
		return m.handleACL(req)
	case MethodLog:
		return NewResponse(req, CodeOK)
	case MethodProcess, MethodPass:
		return NewResponse(req, CodeOK)
	case MethodLogin, MethodLogout, MethodKeepAlive:
		return NewResponse(req, CodeOK)
	default:
		return NewResponse(req, CodeNotImplemented)
	}
}

// target parses the "Target: class/name" header into a module.ID.
func target(req *Request) (module.ID, bool) {
	raw := req.Header("Target")
	class, name, ok := strings.Cut(raw, "/")
	if !ok {
		return module.ID{}, false
	}
	c, ok := module.ParseClass(class)
	if !ok {
		return module.ID{}, false
	}
	return module.ID{Class: c, Name: name}, true
}

func (m *Master) handleStart(ctx context.Context, req *Request) Response {
	id, ok := target(req)
	if !ok {
		return NewResponse(req, CodeBadRequest)
	}
	h, err := m.Registry.Load(ctx, id)
	if err != nil {
		m.logger.Error("start: load failed", slog.String("target", id.String()), slog.Any("error", err))
		return NewResponse(req, CodeConflict)
	}
	if err := m.Registry.Init(ctx, h); err != nil {
		m.logger.Error("start: init failed", slog.String("target", id.String()), slog.Any("error", err))
		return NewResponse(req, CodeInternalError)
	}
	if err := m.Registry.Start(ctx, h); err != nil {
		m.logger.Error("start: start failed", slog.String("target", id.String()), slog.Any("error", err))
		return NewResponse(req, CodeInternalError)
	}
	return NewResponse(req, CodeOK)
}

func (m *Master) handleStop(req *Request) Response {
	id, ok := target(req)
	if !ok {
		return NewResponse(req, CodeBadRequest)
	}
	h, ok := m.Registry.Find(id.Class, id.Name)
	if !ok {
		return NewResponse(req, CodeNotFound)
	}
	if err := m.Registry.Stop(h); err != nil {
		return NewResponse(req, CodeInternalError)
	}
	return NewResponse(req, CodeOK)
}

func (m *Master) handleRestart(ctx context.Context, req *Request) Response {
	id, ok := target(req)
	if !ok {
		return NewResponse(req, CodeBadRequest)
	}
	h, ok := m.Registry.Find(id.Class, id.Name)
	if !ok {
		return NewResponse(req, CodeNotFound)
	}
	if err := m.Registry.Restart(ctx, h); err != nil {
		return NewResponse(req, CodeInternalError)
	}
	return NewResponse(req, CodeOK)
}

func (m *Master) handleStatus(req *Request) Response {
	id, ok := target(req)
	if !ok {
		return NewResponse(req, CodeBadRequest)
	}
	h, ok := m.Registry.Find(id.Class, id.Name)
	if !ok {
		return NewResponse(req, CodeNotFound)
	}
	resp := NewResponse(req, CodeOK)
	resp.Body = []byte(h.State().String())
	return resp
}

func (m *Master) handleList(req *Request) Response {
	classStr := req.Header("Class")
	class := module.ClassAll
	if classStr != "" {
		c, ok := module.ParseClass(classStr)
		if !ok {
			return NewResponse(req, CodeBadRequest)
		}
		class = c
	}

	var names []string
	m.Registry.ForEach(class, func(h *module.Handle) {
		names = append(names, h.ID().String())
	})

	resp := NewResponse(req, CodeOK)
	resp.Body = []byte(strings.Join(names, "\n"))
	return resp
}

func (m *Master) handleAvail(req *Request) Response {
	classStr := req.Header("Class")
	class := module.ClassAll
	if classStr != "" {
		c, ok := module.ParseClass(classStr)
		if !ok {
			return NewResponse(req, CodeBadRequest)
		}
		class = c
	}

	ids := m.Registry.Available(class)
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	sort.Strings(names)

	resp := NewResponse(req, CodeOK)
	resp.Body = []byte(strings.Join(names, "\n"))
	return resp
}

func (m *Master) handleClients(req *Request) Response {
	id, ok := target(req)
	if !ok || id.Class != module.ClassListener {
		return NewResponse(req, CodeBadRequest)
	}
	h, ok := m.Registry.Find(id.Class, id.Name)
	if !ok {
		return NewResponse(req, CodeNotFound)
	}
	listenerID, ok := listenerIDOf(h)
	if !ok {
		return NewResponse(req, CodeNotFound)
	}

	action := strings.ToLower(req.Header("Action"))
	addrHeader := req.Header("Address")

	switch action {
	case "add":
		ip, bits, ok := parseAddress(addrHeader)
		if !ok {
			return NewResponse(req, CodeBadRequest)
		}
		_ = bits
		m.Sessions.ClientAdd(listenerID, ip, 0, false)
		return NewResponse(req, CodeOK)
	case "remove":
		ip, bits, ok := parseCIDR(addrHeader)
		if !ok {
			return NewResponse(req, CodeBadRequest)
		}
		m.Sessions.ClientRemove(listenerID, net.IP(ip.AsSlice()), bits)
		return NewResponse(req, CodeOK)
	case "list", "":
		clients := m.Sessions.ClientListCopy(listenerID)
		lines := make([]string, len(clients))
		for i, c := range clients {
			lines[i] = c.Addr.String()
		}
		resp := NewResponse(req, CodeOK)
		resp.Body = []byte(strings.Join(lines, "\n"))
		return resp
	default:
		return NewResponse(req, CodeBadRequest)
	}
}

func (m *Master) handleSession(req *Request) Response {
	id, ok := target(req)
	if !ok || id.Class != module.ClassListener {
		return NewResponse(req, CodeBadRequest)
	}
	h, ok := m.Registry.Find(id.Class, id.Name)
	if !ok {
		return NewResponse(req, CodeNotFound)
	}
	listenerID, ok := listenerIDOf(h)
	if !ok {
		return NewResponse(req, CodeNotFound)
	}
	received, sent, ok := m.Sessions.Counters(listenerID)
	if !ok {
		return NewResponse(req, CodeNotFound)
	}
	resp := NewResponse(req, CodeOK)
	resp.Body = []byte(fmt.Sprintf("received=%d sent=%d", received, sent))
	return resp
}

func (m *Master) handleACL(req *Request) Response {
	addrHeader := req.Header("Address")
	ip, _, ok := parseCIDR(addrHeader)
	if !ok {
		return NewResponse(req, CodeBadRequest)
	}
	listener := -1
	if l := req.Header("Listener"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			listener = n
		}
	}
	access := m.Routing.Check(ip, listener)
	resp := NewResponse(req, CodeOK)
	resp.Body = []byte(access.String())
	return resp
}

// listenerIDOf reads the listener id a loaded listener module exposes
// through its private Data, the convention listener modules follow so
// the admin master can address sessions without a separate lookup table.
func listenerIDOf(h *module.Handle) (int, bool) {
	type listenerIDer interface{ ListenerID() int }
	if l, ok := h.Data.(listenerIDer); ok {
		return l.ListenerID(), true
	}
	return 0, false
}
