package terminal

import "fmt"

// StateKind is the lifecycle phase of a terminal.
type StateKind uint8

const (
	StateInitializing StateKind = iota
	StateReady
	StateRunning
	StateExited
	StateError
	// StateSuspended is set only by hosts that pause a terminal.
	StateSuspended
)

func (k StateKind) String() string {
	switch k {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateError:
		return "error"
	case StateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// State is a terminal state. ExitCode is meaningful for StateExited and
// Message for StateError.
type State struct {
	Kind     StateKind `json:"kind"`
	ExitCode int       `json:"exit_code,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Exited returns the exited state with code.
func Exited(code int) State { return State{Kind: StateExited, ExitCode: code} }

// Failed returns the error state with msg.
func Failed(msg string) State { return State{Kind: StateError, Message: msg} }

// Live reports whether the terminal can still accept input.
func (s State) Live() bool {
	return s.Kind != StateExited && s.Kind != StateError
}

func (s State) String() string {
	switch s.Kind {
	case StateExited:
		return fmt.Sprintf("exited(%d)", s.ExitCode)
	case StateError:
		return fmt.Sprintf("error(%s)", s.Message)
	default:
		return s.Kind.String()
	}
}
