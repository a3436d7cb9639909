package module_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dantte-lp/goreflector/internal/module"
)

// TestLifecycleTransitionTable covers the full lifecycle transition
// table: Uninitialised -> Inserted -> Initialised -> Running ->
// Stopped -> (Restart back to Initialised) | Destroyed.
func TestLifecycleTransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		state       module.State
		event       module.Event
		wantState   module.State
		wantChanged bool
		wantActions []module.Action
	}{
		{
			name:        "Uninitialised+Insert->Inserted",
			state:       module.StateUninitialised,
			event:       module.EventInsert,
			wantState:   module.StateInserted,
			wantChanged: true,
		},
		{
			name:        "Inserted+InitSucceed->Initialised",
			state:       module.StateInserted,
			event:       module.EventInitSucceed,
			wantState:   module.StateInitialised,
			wantChanged: true,
		},
		{
			name:        "Inserted+InitFail->Destroyed",
			state:       module.StateInserted,
			event:       module.EventInitFail,
			wantState:   module.StateDestroyed,
			wantChanged: true,
			wantActions: []module.Action{module.ActionRemoveFromRegistry},
		},
		{
			name:        "Initialised+Start->Running",
			state:       module.StateInitialised,
			event:       module.EventStart,
			wantState:   module.StateRunning,
			wantChanged: true,
			wantActions: []module.Action{module.ActionInvokeMain},
		},
		{
			name:        "Initialised+Destroy->Destroyed",
			state:       module.StateInitialised,
			event:       module.EventDestroy,
			wantState:   module.StateDestroyed,
			wantChanged: true,
			wantActions: []module.Action{module.ActionInvokeClean, module.ActionRemoveFromRegistry},
		},
		{
			name:        "Running+Stop->Stopped",
			state:       module.StateRunning,
			event:       module.EventStop,
			wantState:   module.StateStopped,
			wantChanged: true,
			wantActions: []module.Action{module.ActionInvokeStop},
		},
		{
			name:        "Stopped+Restart->Initialised",
			state:       module.StateStopped,
			event:       module.EventRestart,
			wantState:   module.StateInitialised,
			wantChanged: true,
			wantActions: []module.Action{module.ActionInvokeCleanForRestart, module.ActionInvokeInit},
		},
		{
			name:        "Stopped+Destroy->Destroyed",
			state:       module.StateStopped,
			event:       module.EventDestroy,
			wantState:   module.StateDestroyed,
			wantChanged: true,
			wantActions: []module.Action{module.ActionInvokeClean, module.ActionRemoveFromRegistry},
		},
		{
			name:        "Running+Restart is illegal",
			state:       module.StateRunning,
			event:       module.EventRestart,
			wantState:   module.StateRunning,
			wantChanged: false,
		},
		{
			name:        "Destroyed+Start is illegal",
			state:       module.StateDestroyed,
			event:       module.EventStart,
			wantState:   module.StateDestroyed,
			wantChanged: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := module.ApplyEvent(tt.state, tt.event)

			assert.Equal(t, tt.wantState, got.NewState)
			assert.Equal(t, tt.wantChanged, got.Changed)
			assert.Equal(t, tt.wantActions, got.Actions)
			assert.Equal(t, tt.state, got.OldState)
		})
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "running", module.StateRunning.String())
	assert.Equal(t, "destroyed", module.StateDestroyed.String())
}
