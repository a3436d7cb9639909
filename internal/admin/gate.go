package admin

import (
	"fmt"
	"sync"

	"github.com/dantte-lp/goreflector/internal/errctx"
)

// Gate is the reflector-wide synchronous request gate (§5 "Synchronous
// request gate", original_source/include/rum2/sync.h): at most one
// synchronous administrative request is in flight at a time, and no
// synchronous request overlaps any asynchronous one. Request-in-request
// (RIR) mode lifts the gate for one named msg-interface module for the
// duration of the enclosing synchronous request it is itself handling.
type Gate struct {
	mu sync.Mutex

	// syncHolder is non-empty while a synchronous request is in flight,
	// set to the iface_name that opened it.
	syncHolder string
	// asyncCount is the number of asynchronous requests currently in
	// flight; a non-zero syncHolder excludes any of these from starting.
	asyncCount int

	// rirName is the one msg-interface module currently permitted to
	// issue further synchronous requests without blocking against its
	// own gate (sync_request_in_request).
	rirName string
	// rirDepth counts the enclosing sync request plus every nested Enter
	// issued under RIR; the gate is actually released only when this
	// reaches zero, so a nested Exit does not prematurely close the
	// enclosing request it is nested inside of.
	rirDepth int

	cond *sync.Cond
}

// NewGate constructs an unlocked Gate.
func NewGate() *Gate {
	g := &Gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Enter blocks until the gate can be entered for a request of the given
// sync-ness from ifaceName, per sync_request()'s contract: "in any time,
// exactly one of: no request is being processed, exactly one synchronous
// request is being processed, any number of asynchronous requests are
// being processed". A request from ifaceName while RIR is enabled for
// that same name bypasses the block (it is itself always treated as
// synchronous, per sync.h).
func (g *Gate) Enter(sync bool, ifaceName string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rirName != "" && g.rirName == ifaceName {
		// RIR: this module's own nested requests are exempt from
		// blocking against the gate it itself is holding open.
		g.rirDepth++
		return
	}

	for {
		if sync {
			if g.syncHolder == "" && g.asyncCount == 0 {
				g.syncHolder = ifaceName
				return
			}
		} else {
			if g.syncHolder == "" {
				g.asyncCount++
				return
			}
		}
		g.cond.Wait()
	}
}

// Exit marks the end of a request begun with Enter (sync_response()),
// waking any goroutines blocked in Enter. Exiting a synchronous request
// also disables RIR if it was enabled for this call's iface_name
// (sync.h: "RIR is disabled automatically at the end of synchronous
// request during which RIR was enabled").
func (g *Gate) Exit(sync bool, ifaceName string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rirName != "" && g.rirName == ifaceName {
		g.rirDepth--
		if g.rirDepth > 0 {
			// A nested request under RIR exited; the enclosing
			// synchronous request that opened RIR is still in flight.
			return
		}
		// The enclosing request itself exited: close RIR and fall
		// through to release the synchronous gate below.
		g.rirName = ""
	}

	if sync {
		if g.syncHolder == ifaceName {
			g.syncHolder = ""
		}
	} else if g.asyncCount > 0 {
		g.asyncCount--
	}
	g.cond.Broadcast()
}

// EnableRIR lifts the gate for ifaceName for the remainder of the
// synchronous request currently held by that same name
// (sync_request_in_request). It fails with KindSyncRequestInRequest if
// ifaceName does not currently hold the synchronous gate.
func (g *Gate) EnableRIR(ifaceName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.syncHolder != ifaceName {
		return errctx.Wrap(errctx.New(), errctx.KindSyncRequestInRequest,
			fmt.Errorf("admin: %s does not hold the synchronous gate", ifaceName))
	}
	g.rirName = ifaceName
	g.rirDepth = 1
	return nil
}

// RIRHolder returns the name currently exempted by EnableRIR, or "" if
// RIR is not active.
func (g *Gate) RIRHolder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rirName
}
