//go:build linux

package netio

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"

	"github.com/dantte-lp/goreflector/internal/errctx"
	"github.com/dantte-lp/goreflector/internal/module"
	"github.com/dantte-lp/goreflector/internal/packet"
	"github.com/dantte-lp/goreflector/internal/processor"
	"github.com/dantte-lp/goreflector/internal/session"
)

// Listener module parameter names (§4, §6 admin Target naming).
const (
	ParamAddr       = "addr"
	ParamReusePort  = "reuseport"
	ParamTTL        = "ttl"
	ParamBufferSize = "buffer_size"
)

const listenerBaseName = "udp"

// NewListenerInitializer returns a module.Initializer for the
// reflector's reference listener module, adapted from the donor's
// internal/netio/listener.go read loop (there a BFD control-packet
// reader drawing from bfd.PacketPool; here a plain UDP datagram reader
// drawing from packet.Pool): it binds a socket, registers a session for
// the listener's client membership, and feeds every received datagram
// into the processor master as a freshly built Meta (§3 lifecycle
// summary: "Packets are created by listener modules").
func NewListenerInitializer(sessions *session.Manager, master *processor.Master, pool *packet.Pool) module.Initializer {
	return func() (module.Interface, []module.Param, error) {
		return &listenerModule{sessions: sessions, master: master, pool: pool}, []module.Param{
			{Name: ParamAddr, Desc: "UDP bind address, host:port", Default: ""},
			{Name: ParamReusePort, Desc: "set SO_REUSEPORT", Default: "false"},
			{Name: ParamTTL, Desc: "outbound TTL / hop limit, 0 = kernel default", Default: "0"},
			{Name: ParamBufferSize, Desc: "receive buffer size in bytes, 0 = packet.DefaultBufferSize", Default: "0"},
		}, nil
	}
}

type listenerModule struct {
	sessions *session.Manager
	master   *processor.Master
	pool     *packet.Pool

	conn       PacketConn
	listenerID int
	localPort  int
	bufSize    int
}

var _ module.Interface = (*listenerModule)(nil)
var _ module.Namer = (*listenerModule)(nil)
var _ module.Stopper = (*listenerModule)(nil)

// Name assigns "udp-<id>" at load time; the admin-visible name is
// re-derived from the bound address once Init runs, via m.Rename (the
// bind address is not yet known when the registry calls Name, since
// parameters are set after Load — a documented simplification of the
// donor's plugin-path naming).
func (l *listenerModule) Name(_ *module.Handle, id int) (string, error) {
	return fmt.Sprintf("%s-%d", listenerBaseName, id), nil
}

// Init parses the bound address, opens the UDP socket, and registers a
// session for this listener's client membership (§4.6 register_listener).
func (l *listenerModule) Init(ctx context.Context, m *module.Handle) error {
	addr, ok := m.Params().Get(ParamAddr)
	if !ok || addr == "" {
		return errctx.Wrap(m.ErrCtx(), errctx.KindListenParameters,
			fmt.Errorf("netio/listener: %s parameter not set", ParamAddr))
	}
	laddr, err := netip.ParseAddrPort(addr)
	if err != nil {
		return errctx.Wrap(m.ErrCtx(), errctx.KindListenParameters,
			fmt.Errorf("netio/listener: parse %s=%q: %w", ParamAddr, addr, err))
	}

	opts := Options{
		ReusePort: paramBool(m, ParamReusePort),
		TTL:       paramInt(m, ParamTTL),
	}

	conn, err := ListenUDP(ctx, laddr, opts)
	if err != nil {
		return errctx.Wrap(m.ErrCtx(), errctx.KindListenerInit,
			fmt.Errorf("netio/listener: %w", err))
	}
	l.conn = conn
	l.localPort = int(conn.LocalAddr().Port())

	l.bufSize = paramInt(m, ParamBufferSize)
	if l.bufSize <= 0 {
		l.bufSize = packet.DefaultBufferSize
	}

	name := fmt.Sprintf("%s-%s", listenerBaseName, addr)
	m.Rename(name)
	l.listenerID = l.sessions.RegisterListener(name, net.UDPAddrFromAddrPort(conn.LocalAddr()))
	m.Data = l

	m.Logger().Info("listener bound", slog.String("addr", addr), slog.Int("listener_id", l.listenerID))
	return nil
}

// ListenerID returns the session layer's id for this listener, read by
// internal/admin's CLIENTS/SESSION handlers via m.Data (§6 Target
// resolution).
func (l *listenerModule) ListenerID() int { return l.listenerID }

// LocalAddr returns the socket's bound local address, available once
// Init has run.
func (l *listenerModule) LocalAddr() netip.AddrPort {
	if l.conn == nil {
		return netip.AddrPort{}
	}
	return l.conn.LocalAddr()
}

// Main reads datagrams until ctx is cancelled, converting each into a
// Packet + Meta pair and handing it to the processor master for
// dispatch.
func (l *listenerModule) Main(ctx context.Context, m *module.Handle) {
	m.Logger().Info("listener started")

	for {
		select {
		case <-ctx.Done():
			m.Logger().Info("listener stopped")
			return
		default:
		}

		pkt := l.pool.NewPacket(l.listenerID, l.localPort, m.ID().Name, l.bufSize)
		n, src, err := l.conn.ReadPacket(pkt.Buffer)
		if err != nil {
			pkt.Release()
			if ctx.Err() != nil {
				return
			}
			m.Logger().Warn("listener read failed", slog.Any("error", err))
			continue
		}
		pkt.Buffer = pkt.Buffer[:n]
		pkt.Source = src

		l.sessions.AddBytes(l.listenerID, uint64(n), 0)

		clients := l.sessions.ClientListCopy(l.listenerID)
		if len(clients) == 0 {
			pkt.Release()
			continue
		}

		refs := make([]packet.ClientRef, len(clients))
		for i, c := range clients {
			refs[i] = packet.ClientRef{
				Addr:       c.Addr,
				LastSeen:   c.LastSeen,
				Permanent:  c.Permanent,
				ListenerID: c.Listener,
			}
		}

		meta := packet.NewMeta(pkt, refs)
		for i, ref := range refs {
			meta.Paths[i] = l.master.Resolve(ref.Addr, src.Addr(), l.listenerID)
		}

		l.master.Dispatch(meta)
	}
}

// Stop closes the socket, which is what actually unblocks Main's
// pending ReadPacket call — ctx cancellation alone does not interrupt a
// blocking read (§5 Stopper: invoked right after ctx is cancelled, not
// after Main returns).
func (l *listenerModule) Stop(_ *module.Handle) {
	if l.conn != nil {
		_ = l.conn.Close()
	}
}

// Clean frees private data and unregisters the listener's session on a
// genuine (non-restart) teardown.
func (l *listenerModule) Clean(m *module.Handle, forRestart bool) {
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	if !forRestart {
		l.sessions.UnregisterListener(l.listenerID)
		m.Rename(listenerBaseName)
	}
}

func paramBool(m *module.Handle, name string) bool {
	v, ok := m.Params().Get(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func paramInt(m *module.Handle, name string) int {
	v, ok := m.Params().Get(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
