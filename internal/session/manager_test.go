package session_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/goreflector/internal/module"
	"github.com/dantte-lp/goreflector/internal/session"
)

// TestManagerClientEviction checks that evicting with a cutoff removes
// only the stale, non-permanent client, leaving the rest in insertion
// order.
func TestManagerClientEviction(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(nil)
	mgr := session.NewManager(reg, nil)

	id := mgr.RegisterListener("udp-0.0.0.0:1234", nil)

	a := netip.MustParseAddr("10.0.0.1")
	b := netip.MustParseAddr("10.0.0.2")
	c := netip.MustParseAddr("10.0.0.3")

	base := time.Now()
	require.True(t, mgr.ClientAdd(id, a, 0, false))
	require.True(t, mgr.ClientAdd(id, b, 0, false))
	require.True(t, mgr.ClientAdd(id, c, 0, true)) // permanent

	// Re-add a is a no-op refresh, not a membership change.
	require.False(t, mgr.ClientAdd(id, a, 0, false))

	cutoff := base.Add(time.Hour) // everything added above is before cutoff
	changed := mgr.EvictStale(id, cutoff)
	require.True(t, changed)

	remaining := mgr.ClientListCopy(id)
	require.Len(t, remaining, 1)
	assert.Equal(t, c, remaining[0].Addr)
	assert.True(t, remaining[0].Permanent)
}

// TestManagerClientAddIdempotent checks that Add is idempotent with
// respect to membership.
func TestManagerClientAddIdempotent(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(nil)
	mgr := session.NewManager(reg, nil)
	id := mgr.RegisterListener("udp-0.0.0.0:1234", nil)

	a := netip.MustParseAddr("10.0.0.1")
	require.True(t, mgr.ClientAdd(id, a, 0, false))
	require.False(t, mgr.ClientAdd(id, a, 0, false))

	clients := mgr.ClientListCopy(id)
	assert.Len(t, clients, 1)
}

// TestManagerUnregisterRemovesSession covers §3: "sessions live until
// their listener unregisters".
func TestManagerUnregisterRemovesSession(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(nil)
	mgr := session.NewManager(reg, nil)
	id := mgr.RegisterListener("udp-0.0.0.0:1234", nil)
	mgr.UnregisterListener(id)

	assert.Nil(t, mgr.ClientListCopy(id))
	_, _, ok := mgr.Counters(id)
	assert.False(t, ok)
}

// TestManagerCopyBetween covers the cross-session membership copy used
// by session-merge admin flows, acquiring both sessions without
// deadlocking regardless of id order.
func TestManagerCopyBetween(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(nil)
	mgr := session.NewManager(reg, nil)
	src := mgr.RegisterListener("listener/a", nil)
	dst := mgr.RegisterListener("listener/b", nil)

	mgr.ClientAdd(src, netip.MustParseAddr("10.0.0.1"), 0, false)
	mgr.ClientAdd(src, netip.MustParseAddr("10.0.0.2"), 0, false)

	added := mgr.CopyBetween(src, dst)
	assert.Equal(t, 2, added)
	assert.Len(t, mgr.ClientListCopy(dst), 2)
}
