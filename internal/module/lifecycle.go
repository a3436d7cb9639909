package module

// State is a position in the module lifecycle state machine (§3, §4.1).
type State int

const (
	StateUninitialised State = iota
	StateInserted
	StateInitialised
	StateRunning
	StateStopped
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialised:
		return "uninitialised"
	case StateInserted:
		return "inserted"
	case StateInitialised:
		return "initialised"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return "state(?)"
	}
}

// Event drives a lifecycle transition; these are the only triggers the
// management master issues (§4.1: "triggered only by the management
// master").
type Event int

const (
	EventInsert Event = iota
	EventInitSucceed
	EventInitFail
	EventStart
	EventStop
	EventRestart
	EventDestroy
)

func (e Event) String() string {
	switch e {
	case EventInsert:
		return "insert"
	case EventInitSucceed:
		return "init-succeed"
	case EventInitFail:
		return "init-fail"
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventRestart:
		return "restart"
	case EventDestroy:
		return "destroy"
	default:
		return "event(?)"
	}
}

// Action is a side effect the caller must perform in response to a
// transition; the FSM itself is pure and performs no I/O.
type Action int

const (
	ActionNone Action = iota
	ActionInvokeInit
	ActionInvokeMain
	ActionInvokeStop
	ActionInvokeClean
	ActionInvokeCleanForRestart
	ActionRemoveFromRegistry
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionInvokeInit:
		return "invoke-init"
	case ActionInvokeMain:
		return "invoke-main"
	case ActionInvokeStop:
		return "invoke-stop"
	case ActionInvokeClean:
		return "invoke-clean"
	case ActionInvokeCleanForRestart:
		return "invoke-clean-for-restart"
	case ActionRemoveFromRegistry:
		return "remove-from-registry"
	default:
		return "action(?)"
	}
}

type stateEvent struct {
	state State
	event Event
}

type transition struct {
	newState State
	actions  []Action
}

// fsmTable enumerates every legal (state, event) -> (state, actions)
// transition. Anything absent is illegal and ApplyEvent reports it via
// Changed=false.
var fsmTable = map[stateEvent]transition{
	{StateUninitialised, EventInsert}: {StateInserted, nil},

	{StateInserted, EventInitSucceed}: {StateInitialised, nil},
	{StateInserted, EventInitFail}:    {StateDestroyed, []Action{ActionRemoveFromRegistry}},

	{StateInitialised, EventStart}: {StateRunning, []Action{ActionInvokeMain}},
	{StateInitialised, EventDestroy}: {
		StateDestroyed,
		[]Action{ActionInvokeClean, ActionRemoveFromRegistry},
	},

	{StateRunning, EventStop}: {
		StateStopped,
		[]Action{ActionInvokeStop},
	},

	{StateStopped, EventRestart}: {
		StateInitialised,
		[]Action{ActionInvokeCleanForRestart, ActionInvokeInit},
	},
	{StateStopped, EventDestroy}: {
		StateDestroyed,
		[]Action{ActionInvokeClean, ActionRemoveFromRegistry},
	},
}

// Result carries the outcome of applying an Event to a State.
type Result struct {
	OldState State
	NewState State
	Actions  []Action
	Changed  bool
}

// ApplyEvent looks up the transition for (current, event) and returns the
// resulting state and the actions the caller must perform, in order.
// ApplyEvent itself is a pure function: it never touches a Handle.
func ApplyEvent(current State, event Event) Result {
	t, ok := fsmTable[stateEvent{current, event}]
	if !ok {
		return Result{OldState: current, NewState: current, Changed: false}
	}
	return Result{
		OldState: current,
		NewState: t.newState,
		Actions:  t.actions,
		Changed:  true,
	}
}
