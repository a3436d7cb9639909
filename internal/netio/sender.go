//go:build linux

package netio

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/dantte-lp/goreflector/internal/errctx"
	"github.com/dantte-lp/goreflector/internal/module"
	"github.com/dantte-lp/goreflector/internal/packet"
	"github.com/dantte-lp/goreflector/internal/queue"
	"github.com/dantte-lp/goreflector/internal/session"
)

const senderBaseName = "sender"

// NewSenderInitializer returns a module.Initializer for the reflector's
// reference sender module, adapted from the donor's
// internal/netio/sender.go UDP transmit path (there bound to RFC 5880's
// destination ports and GTSM TTL; here a plain per-client UDP write):
// it pops Meta off its input queue, writes the packet buffer to every
// still-valid client, and frees the Meta once sent (§3 lifecycle
// summary: "the last reference to them is destroyed by the sender").
func NewSenderInitializer(sessions *session.Manager) module.Initializer {
	return func() (module.Interface, []module.Param, error) {
		return &senderModule{sessions: sessions}, []module.Param{
			{Name: ParamReusePort, Desc: "set SO_REUSEPORT on the transmit socket", Default: "false"},
			{Name: ParamTTL, Desc: "outbound TTL / hop limit, 0 = kernel default", Default: "0"},
		}, nil
	}
}

type senderModule struct {
	sessions *session.Manager

	conn   PacketConn
	qgroup *queue.Group
}

var _ module.Interface = (*senderModule)(nil)
var _ module.Namer = (*senderModule)(nil)
var _ module.Stopper = (*senderModule)(nil)

func (s *senderModule) Name(_ *module.Handle, _ int) (string, error) {
	return senderBaseName, nil
}

// Init opens an unbound transmit socket and registers a one-queue
// queue group on the module's input data queue, the same readiness
// pattern as the filter processor's Init.
func (s *senderModule) Init(ctx context.Context, m *module.Handle) error {
	opts := Options{
		ReusePort: paramBool(m, ParamReusePort),
		TTL:       paramInt(m, ParamTTL),
	}

	conn, err := DialUDP(ctx, netip.AddrPort{}, opts)
	if err != nil {
		return errctx.Wrap(m.ErrCtx(), errctx.KindSenderInit,
			fmt.Errorf("netio/sender: %w", err))
	}
	s.conn = conn

	s.qgroup = queue.NewGroup()
	s.qgroup.Register(m.InputData)

	m.Logger().Info("sender bound")
	return nil
}

// Main pops Meta off the input queue, transmits to every valid client,
// and frees it.
func (s *senderModule) Main(ctx context.Context, m *module.Handle) {
	m.Logger().Info("sender started")

	for {
		select {
		case <-ctx.Done():
			m.Logger().Info("sender stopped")
			return
		default:
		}

		item, ok := m.InputData.Pop()
		if !ok {
			s.qgroup.Wait()
			continue
		}

		meta, ok := item.(*packet.Meta)
		if !ok || meta == nil || meta.Packet == nil {
			m.Logger().Error("received malformed item on input queue")
			continue
		}

		s.send(m, meta)
	}
}

func (s *senderModule) send(m *module.Handle, meta *packet.Meta) {
	defer meta.Free()

	buf := meta.Packet.Buffer
	var sent uint64

	for i, client := range meta.Clients {
		if !meta.MaskGet(i) {
			continue
		}
		dst := netip.AddrPortFrom(client.Addr, uint16(meta.Packet.Port))
		if err := s.conn.WritePacket(buf, dst); err != nil {
			m.Logger().Warn("sender write failed", slog.String("dst", dst.String()), slog.Any("error", err))
			continue
		}
		sent += uint64(len(buf))
	}

	if sent > 0 {
		s.sessions.AddBytes(meta.Packet.SessionID, 0, sent)
	}
}

// Stop closes the transmit socket. Registry.Stop calls it right after
// cancelling the module's context; Main may not have returned yet.
func (s *senderModule) Stop(_ *module.Handle) {
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// Clean frees private data and, on a genuine teardown, restores the
// pre-Namer base name.
func (s *senderModule) Clean(m *module.Handle, forRestart bool) {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.qgroup = nil
	if !forRestart {
		m.Rename(senderBaseName)
	}
}
