package session

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/dshills/termcore/internal/event"
	"github.com/dshills/termcore/internal/terminal"
)

// Recorder maps terminal events onto session operations.
type Recorder struct {
	sessions *Manager
	log      zerolog.Logger

	// autoCreate opens a session for every created terminal.
	autoCreate bool
}

// NewRecorder returns a recorder feeding m. With autoCreate set, a session
// named after the terminal is created on terminal.created.
func NewRecorder(m *Manager, autoCreate bool, log zerolog.Logger) *Recorder {
	return &Recorder{sessions: m, autoCreate: autoCreate, log: log}
}

// Attach subscribes the recorder to every terminal topic on bus and
// returns the subscription id.
func (r *Recorder) Attach(bus *event.Bus[terminal.Event]) uint64 {
	return bus.Subscribe("terminal.*", func(_ string, ev terminal.Event) {
		r.Handle(ev)
	})
}

// Handle applies one terminal event.
func (r *Recorder) Handle(ev terminal.Event) {
	if ev.Kind == terminal.EventCreated {
		if r.autoCreate {
			r.sessions.CreateSession(ev.Name, ev.TerminalID, ev.Dir, shellName(ev.Shell))
		}
		return
	}

	s, ok := r.sessions.SessionForTerminal(ev.TerminalID)
	if !ok {
		return
	}

	var err error
	switch ev.Kind {
	case terminal.EventCommandFinished:
		_, err = r.sessions.RecordCommand(s.ID, ev.Command, ev.ExitCode, ev.Duration, ev.OutputBytes)
	case terminal.EventWorkingDirectoryChanged:
		err = r.sessions.SetWorkingDirectory(s.ID, ev.Dir)
	case terminal.EventProcessExited:
		state := StateEnded
		if ev.Code != 0 {
			state = StateCrashed
		}
		err = r.sessions.EndSession(s.ID, state)
	case terminal.EventClosed:
		if !s.State.Finished() {
			err = r.sessions.EndSession(s.ID, StateTerminated)
		}
	}
	if err != nil && !errors.Is(err, ErrSessionEnded) {
		r.log.Warn().Err(err).Str("session", s.ID).Str("event", ev.Kind.String()).Msg("record terminal event")
	}
}

func shellName(t terminal.ShellType) string {
	if t == terminal.ShellCustom {
		return ""
	}
	return t.String()
}
