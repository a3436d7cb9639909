//go:build linux

// Package integration_test wires the module registry, the processor
// master, the session layer, and the admin protocol together the way
// cmd/goreflectord's buildRuntime/runDaemon do, and drives the result
// through a real UDP socket and a real admin TCP connection end to end.
package integration_test

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/goreflector/internal/admin"
	"github.com/dantte-lp/goreflector/internal/module"
	"github.com/dantte-lp/goreflector/internal/netio"
	"github.com/dantte-lp/goreflector/internal/packet"
	"github.com/dantte-lp/goreflector/internal/processor"
	"github.com/dantte-lp/goreflector/internal/routing"
	"github.com/dantte-lp/goreflector/internal/session"
)

// localAddrer mirrors internal/netio's test helper: it reads back the
// ephemeral port the kernel assigned the listener module.
type localAddrer interface {
	LocalAddr() netip.AddrPort
}

// freeAddr grabs an ephemeral TCP port on loopback and releases it
// immediately, the same bind-then-close trick used to hand a concrete
// address to a server that binds lazily in its own goroutine.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// TestReflectorEndToEnd loads a listener, a filter processor, and a
// sender, registers a path template routing every client through the
// filter, adds a client over a real admin-protocol connection, and
// confirms a datagram sent to the listener is reflected out the sender
// while a byte-identical "sample" datagram is dropped (§4.5 filter
// masks a full match, §6 CLIENTS/SESSION admin surface).
func TestReflectorEndToEnd(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(nil)
	sessions := session.NewManager(reg, nil)
	rt := routing.NewTable()
	procs := processor.NewMaster(reg, nil)
	pool := packet.NewPool(2048)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listenerID := module.ID{Class: module.ClassListener, Name: "udp-e2e"}
	reg.Register(listenerID, netio.NewListenerInitializer(sessions, procs, pool))
	lh, err := reg.Load(ctx, listenerID)
	require.NoError(t, err)
	require.NoError(t, lh.Params().Set(netio.ParamAddr, "127.0.0.1:0"))
	require.NoError(t, reg.Init(ctx, lh))
	require.NoError(t, reg.Start(ctx, lh))
	defer reg.Stop(lh)

	filterID := module.ID{Class: module.ClassProcessor, Name: "filter"}
	reg.Register(filterID, processor.NewFilterInitializer(procs))
	fh, err := reg.Load(ctx, filterID)
	require.NoError(t, err)
	require.NoError(t, fh.Params().Set(processor.FilterParamSample, "drop-me"))
	require.NoError(t, reg.Init(ctx, fh))
	require.NoError(t, reg.Start(ctx, fh))
	defer reg.Stop(fh)

	senderID := module.ID{Class: module.ClassSender, Name: "sender"}
	reg.Register(senderID, netio.NewSenderInitializer(sessions))
	sh, err := reg.Load(ctx, senderID)
	require.NoError(t, err)
	require.NoError(t, reg.Init(ctx, sh))
	require.NoError(t, reg.Start(ctx, sh))
	defer reg.Stop(sh)

	procs.SetSender(sh)
	procs.AddTemplate(processor.PathTemplate{
		Prefix:     netip.MustParsePrefix("0.0.0.0/0"),
		Listener:   -1,
		Processors: []string{fh.ID().Name},
	})

	listenerIDs := sessions.ListenerIDs()
	require.Len(t, listenerIDs, 1)
	sid := listenerIDs[0]

	adminAddr := freeAddr(t)
	adminMaster := admin.NewMaster(reg, sessions, rt, nil)
	adminSrv := &admin.Server{Addr: adminAddr, Master: adminMaster, Name: "admin"}
	go func() { _ = adminSrv.ListenAndServe(ctx) }()

	var cli *admin.Client
	require.Eventually(t, func() bool {
		c, dialErr := admin.Dial(ctx, adminAddr)
		if dialErr != nil {
			return false
		}
		cli = c
		return true
	}, time.Second, 10*time.Millisecond)
	defer cli.Close()

	resp, err := cli.Do("CLIENTS", map[string]string{
		"Target":  "listener/" + lh.ID().Name,
		"Action":  "add",
		"Address": "127.0.0.1",
	}, nil)
	require.NoError(t, err)
	require.Equal(t, admin.CodeOK, resp.Code)

	bound, ok := lh.Data.(localAddrer)
	require.True(t, ok)

	origin, err := netio.ListenUDP(ctx, netip.MustParseAddrPort("127.0.0.1:0"), netio.Options{})
	require.NoError(t, err)
	defer origin.Close()

	require.NoError(t, origin.WritePacket([]byte("hello"), bound.LocalAddr()))

	require.Eventually(t, func() bool {
		_, sent, ok := sessions.Counters(sid)
		return ok && sent > 0
	}, time.Second, 5*time.Millisecond)

	received, sent, ok := sessions.Counters(sid)
	require.True(t, ok)
	require.EqualValues(t, 5, received)
	require.EqualValues(t, 5, sent)

	statusResp, err := cli.Do("SESSION", map[string]string{
		"Target": "listener/" + lh.ID().Name,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, admin.CodeOK, statusResp.Code)
	require.Contains(t, string(statusResp.Body), "received=5")
	require.Contains(t, string(statusResp.Body), "sent=5")

	// A datagram matching the filter's sample is masked before it ever
	// reaches the sender: the byte counters must not move.
	require.NoError(t, origin.WritePacket([]byte("drop-me"), bound.LocalAddr()))

	time.Sleep(50 * time.Millisecond)
	receivedAfter, sentAfter, ok := sessions.Counters(sid)
	require.True(t, ok)
	require.EqualValues(t, 12, receivedAfter) // "hello" (5) + "drop-me" (7) bytes received
	require.EqualValues(t, 5, sentAfter)       // unchanged: the matching datagram was masked out
}
