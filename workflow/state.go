// Package workflow holds the UI-independent core of blindmark: tab
// navigation, the embed and extract request workflows, and the shared
// loading and error surfaces they render into.
//
// Every workflow is an explicit finite-state machine. Transition is a pure
// function of (State, Event); Render is a pure function of the session's
// states. Only Runner performs I/O, and it does so through a Pending call
// the host executes off its event loop.
package workflow

// Phase is the position of a workflow in its request cycle
type Phase int

const (
	Idle Phase = iota
	Loading
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrorKind classifies why a workflow failed
type ErrorKind int

const (
	NoError ErrorKind = iota
	ValidationFailure
	ServerFailure
	TransportFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ValidationFailure:
		return "validation"
	case ServerFailure:
		return "server"
	case TransportFailure:
		return "transport"
	default:
		return "none"
	}
}

// State is one workflow's persistent state
type State struct {
	Phase     Phase
	LastError string
	Kind      ErrorKind

	// Attempt identifies the trigger that produced this state
	Attempt string

	// Progress is the message shown while Loading
	Progress string
}

// Busy reports whether a request is in flight
func (s State) Busy() bool {
	return s.Phase == Loading
}

// EventType enumerates the inputs of the state machine
type EventType int

const (
	// EventTrigger starts a new attempt and clears prior output
	EventTrigger EventType = iota
	// EventReject fails an attempt before any request is issued
	EventReject
	// EventStart enters Loading
	EventStart
	// EventSucceed resolves a request successfully
	EventSucceed
	// EventFail resolves a request with a server or transport failure
	EventFail
)

// Event drives a Transition
type Event struct {
	Type    EventType
	Attempt string
	Message string
	Kind    ErrorKind
}

// Transition returns the state that follows s on e.
// A trigger is ignored while Loading; every other event must name the
// current attempt and arrive in the matching phase, or s is returned as is.
func Transition(s State, e Event) State {
	if e.Type == EventTrigger {
		if s.Busy() {
			return s
		}
		return State{Phase: Idle, Attempt: e.Attempt}
	}

	if e.Attempt != s.Attempt {
		return s
	}

	switch e.Type {
	case EventReject:
		if s.Phase == Idle {
			return State{Phase: Failed, Attempt: s.Attempt, LastError: e.Message, Kind: ValidationFailure}
		}
	case EventStart:
		if s.Phase == Idle {
			return State{Phase: Loading, Attempt: s.Attempt, Progress: e.Message}
		}
	case EventSucceed:
		if s.Phase == Loading {
			return State{Phase: Succeeded, Attempt: s.Attempt}
		}
	case EventFail:
		if s.Phase == Loading {
			return State{Phase: Failed, Attempt: s.Attempt, LastError: e.Message, Kind: e.Kind}
		}
	}

	return s
}
