package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/termcore/internal/event"
	"github.com/dshills/termcore/internal/logging"
	"github.com/dshills/termcore/internal/terminal"
)

func publish(bus *event.Bus[terminal.Event], ev terminal.Event) {
	bus.Publish(ev.Kind.Topic(), ev)
}

func TestRecorderFollowsTerminal(t *testing.T) {
	m, _ := newTestManager(t, Config{Rules: []Rule{CommandFailure()}}, nil)
	bus := event.NewBus[terminal.Event]()
	NewRecorder(m, true, logging.Nop()).Attach(bus)

	publish(bus, terminal.Event{Kind: terminal.EventCreated, TerminalID: "t1", Name: "Terminal 1", Shell: terminal.ShellBash, Dir: "/home/dev"})
	s, ok := m.SessionForTerminal("t1")
	require.True(t, ok)
	assert.Equal(t, "Terminal 1", s.Name)
	assert.Equal(t, "bash", s.Shell)
	assert.Equal(t, "/home/dev", s.WorkingDirectory)

	publish(bus, terminal.Event{Kind: terminal.EventCommandExecuted, TerminalID: "t1", Command: "ls"})
	publish(bus, terminal.Event{Kind: terminal.EventCommandFinished, TerminalID: "t1", Command: "ls", ExitCode: code(0), Duration: time.Second, OutputBytes: 20})
	publish(bus, terminal.Event{Kind: terminal.EventWorkingDirectoryChanged, TerminalID: "t1", Dir: "/tmp"})
	publish(bus, terminal.Event{Kind: terminal.EventCommandFinished, TerminalID: "t1", Command: "false", ExitCode: code(1)})
	publish(bus, terminal.Event{Kind: terminal.EventCommandFinished, TerminalID: "other", Command: "ignored"})

	got, _ := m.Session(s.ID)
	require.Len(t, got.Commands, 2)
	assert.Equal(t, "ls", got.Commands[0].Text)
	assert.Equal(t, "/home/dev", got.Commands[0].WorkingDirectory)
	assert.Equal(t, 20, got.Commands[0].OutputSize)
	assert.True(t, got.Commands[0].Success)
	assert.Equal(t, "/tmp", got.Commands[1].WorkingDirectory)
	assert.False(t, got.Commands[1].Success)
	require.Len(t, got.Bookmarks, 1)
	assert.True(t, got.Bookmarks[0].HasTag("failure"))

	publish(bus, terminal.Event{Kind: terminal.EventProcessExited, TerminalID: "t1", Code: 137})
	got, _ = m.Session(s.ID)
	assert.Equal(t, StateCrashed, got.State)

	// the session is already finished and unbound
	publish(bus, terminal.Event{Kind: terminal.EventClosed, TerminalID: "t1"})
	got, _ = m.Session(s.ID)
	assert.Equal(t, StateCrashed, got.State)
	require.Len(t, m.History(), 1)
}

func TestRecorderClosedTerminates(t *testing.T) {
	m, _ := newTestManager(t, Config{}, nil)
	r := NewRecorder(m, true, logging.Nop())

	r.Handle(terminal.Event{Kind: terminal.EventCreated, TerminalID: "t1", Name: "Terminal 1", Shell: terminal.ShellCustom, Dir: "/tmp"})
	s, ok := m.SessionForTerminal("t1")
	require.True(t, ok)
	assert.Empty(t, s.Shell)

	r.Handle(terminal.Event{Kind: terminal.EventClosed, TerminalID: "t1"})
	got, _ := m.Session(s.ID)
	assert.Equal(t, StateTerminated, got.State)
}

func TestRecorderCleanExit(t *testing.T) {
	m, _ := newTestManager(t, Config{}, nil)
	r := NewRecorder(m, true, logging.Nop())

	r.Handle(terminal.Event{Kind: terminal.EventCreated, TerminalID: "t1", Dir: "/tmp"})
	s, _ := m.SessionForTerminal("t1")
	r.Handle(terminal.Event{Kind: terminal.EventProcessExited, TerminalID: "t1", Code: 0})

	got, _ := m.Session(s.ID)
	assert.Equal(t, StateEnded, got.State)
}

func TestRecorderWithoutAutoCreate(t *testing.T) {
	m, _ := newTestManager(t, Config{}, nil)
	r := NewRecorder(m, false, logging.Nop())

	r.Handle(terminal.Event{Kind: terminal.EventCreated, TerminalID: "t1", Dir: "/tmp"})
	assert.Empty(t, m.Sessions())

	s := m.CreateSession("manual", "t1", "/tmp", "sh")
	r.Handle(terminal.Event{Kind: terminal.EventCommandFinished, TerminalID: "t1", Command: "pwd"})
	got, _ := m.Session(s.ID)
	require.Len(t, got.Commands, 1)
	assert.False(t, got.Commands[0].Success)
	assert.Equal(t, uint64(0), got.Statistics.Successful)
	assert.Equal(t, uint64(1), got.Statistics.Failed)
}
