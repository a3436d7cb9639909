//go:build linux

package netio_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/goreflector/internal/module"
	"github.com/dantte-lp/goreflector/internal/netio"
	"github.com/dantte-lp/goreflector/internal/packet"
	"github.com/dantte-lp/goreflector/internal/processor"
	"github.com/dantte-lp/goreflector/internal/session"
)

// localAddrer is satisfied by the listener module's private state
// (exposed via module.Handle.Data), letting the test read back the
// ephemeral port the kernel assigned it.
type localAddrer interface {
	LocalAddr() netip.AddrPort
}

// TestListenerSenderRoundTrip exercises the full fan-out path end to
// end: a datagram sent to the listener's bound loopback socket reaches
// the processor master's Dispatch and is handed to the sender, which
// writes it out to the registered client — observed here through the
// session layer's sent-byte counter, since asserting actual reply
// delivery would require the test's stand-in client to share the
// listener's bind port (§3 "destination socket" is one per session, not
// per client).
func TestListenerSenderRoundTrip(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(nil)
	sessions := session.NewManager(reg, nil)
	master := processor.NewMaster(reg, nil)
	pool := packet.NewPool(2048)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listenerID := module.ID{Class: module.ClassListener, Name: "udp-test"}
	reg.Register(listenerID, netio.NewListenerInitializer(sessions, master, pool))
	lh, err := reg.Load(ctx, listenerID)
	require.NoError(t, err)
	require.NoError(t, lh.Params().Set(netio.ParamAddr, "127.0.0.1:0"))
	require.NoError(t, reg.Init(ctx, lh))
	require.NoError(t, reg.Start(ctx, lh))
	defer reg.Stop(lh)

	senderID := module.ID{Class: module.ClassSender, Name: "sender"}
	reg.Register(senderID, netio.NewSenderInitializer(sessions))
	sh, err := reg.Load(ctx, senderID)
	require.NoError(t, err)
	require.NoError(t, reg.Init(ctx, sh))
	require.NoError(t, reg.Start(ctx, sh))
	defer reg.Stop(sh)

	master.SetSender(sh)

	sessionIDs := sessions.ListenerIDs()
	require.Len(t, sessionIDs, 1)
	sid := sessionIDs[0]

	require.True(t, sessions.ClientAdd(sid, netip.MustParseAddr("127.0.0.1"), 0, false))

	bound, ok := lh.Data.(localAddrer)
	require.True(t, ok)

	origin, err := netio.ListenUDP(ctx, netip.MustParseAddrPort("127.0.0.1:0"), netio.Options{})
	require.NoError(t, err)
	defer origin.Close()

	require.NoError(t, origin.WritePacket([]byte("ping"), bound.LocalAddr()))

	require.Eventually(t, func() bool {
		_, sent, ok := sessions.Counters(sid)
		return ok && sent > 0
	}, time.Second, 5*time.Millisecond)

	received, sent, ok := sessions.Counters(sid)
	require.True(t, ok)
	require.EqualValues(t, 4, received)
	require.EqualValues(t, 4, sent)
}
