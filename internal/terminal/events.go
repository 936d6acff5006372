package terminal

import (
	"time"

	"github.com/dshills/termcore/internal/scrollback"
)

// EventKind identifies a terminal event.
type EventKind uint8

const (
	EventCreated EventKind = iota
	EventClosed
	EventStateChanged
	EventCommandExecuted
	EventCommandFinished
	EventOutputReceived
	EventWorkingDirectoryChanged
	EventProcessExited
	EventTitleChanged
)

var eventTopics = [...]string{
	EventCreated:                 "terminal.created",
	EventClosed:                  "terminal.closed",
	EventStateChanged:            "terminal.state",
	EventCommandExecuted:         "terminal.command.executed",
	EventCommandFinished:         "terminal.command.finished",
	EventOutputReceived:          "terminal.output",
	EventWorkingDirectoryChanged: "terminal.cwd",
	EventProcessExited:           "terminal.exited",
	EventTitleChanged:            "terminal.title",
}

// Topic returns the bus topic the kind is published under.
func (k EventKind) Topic() string {
	if int(k) < len(eventTopics) {
		return eventTopics[k]
	}
	return "terminal.unknown"
}

func (k EventKind) String() string { return k.Topic() }

// Event is published on the manager's bus. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind       EventKind
	TerminalID string
	Time       time.Time

	// Name and Shell are set for EventCreated.
	Name  string
	Shell ShellType

	// OldState and State are set for EventStateChanged.
	OldState State
	State    State

	// Command is set for EventCommandExecuted and EventCommandFinished.
	Command string

	// Duration, ExitCode and OutputBytes are set for EventCommandFinished.
	// ExitCode is nil when the shell did not report one.
	Duration    time.Duration
	ExitCode    *int
	OutputBytes int

	// Text and LineType are set for EventOutputReceived.
	Text     string
	LineType scrollback.LineType

	// Dir is set for EventWorkingDirectoryChanged and EventCreated.
	Dir string

	// Title is set for EventTitleChanged.
	Title string

	// Code is set for EventProcessExited.
	Code int
}

// Succeeded reports whether a finished command exited with code zero. An
// idle-completed command has no exit code and did not succeed.
func (e Event) Succeeded() bool {
	return e.ExitCode != nil && *e.ExitCode == 0
}

// Err returns ErrCommandFailed for a finished command with a non-zero
// exit code.
func (e Event) Err() error {
	if e.Kind == EventCommandFinished && e.ExitCode != nil && *e.ExitCode != 0 {
		return ErrCommandFailed
	}
	return nil
}
