package terminal

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/termcore/internal/ansi"
	"github.com/dshills/termcore/internal/pty"
	"github.com/dshills/termcore/internal/scrollback"
)

// exitGrace bounds how long a dead process's streams are drained before
// the exit is reported anyway.
const exitGrace = 250 * time.Millisecond

// Options configures a new terminal.
type Options struct {
	// Name is a human-readable name for the terminal.
	Name string

	// Shell selects the shell command.
	Shell ShellType

	// DefaultShell overrides Shell with an explicit command line.
	DefaultShell string

	// WorkingDir is the starting directory (defaults to the current one).
	WorkingDir string

	// Env is merged over the inherited environment.
	Env map[string]string

	// Cols and Rows set the initial size (default 80x24).
	Cols, Rows uint16

	// ScrollbackLines and MaxBufferMemory bound the output buffer.
	ScrollbackLines int
	MaxBufferMemory int

	// HistorySize bounds the input history.
	HistorySize int

	// IdleTimeout completes a running command after this much output
	// silence. Zero waits for the shell to report completion.
	IdleTimeout time.Duration

	// ShellIntegration sets up a shell that supports it to report each
	// command's exit code.
	ShellIntegration bool
}

// stream is one output relay with its own decoder and partial line.
type stream struct {
	ch       <-chan string
	parser   *ansi.Parser
	rest     []ansi.Span
	lineType scrollback.LineType
	closed   bool
}

// pendingCommand is a submitted command awaiting completion.
type pendingCommand struct {
	text    string
	started time.Time
	output  int
}

// Terminal is one shell process with its buffer and input history.
//
// Mutations go through the Manager. The accessors are safe to call from
// event handlers.
type Terminal struct {
	mu sync.RWMutex

	id        string
	name      string
	shell     ShellType
	opts      Options
	createdAt time.Time
	log       zerolog.Logger

	state   State
	session pty.Session
	buffer  *scrollback.Buffer
	history *InputHistory

	cwd          string
	title        string
	bells        int
	lastActivity time.Time

	stdin     chan string
	done      chan struct{}
	streams   []*stream
	running   *pendingCommand
	deadSince time.Time
	closed    bool

	reportedDrops uint64
}

func newTerminal(id string, opts Options, now time.Time, log zerolog.Logger) *Terminal {
	if opts.WorkingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			opts.WorkingDir = wd
		}
	}

	return &Terminal{
		id:           id,
		name:         opts.Name,
		shell:        opts.Shell,
		opts:         opts,
		createdAt:    now,
		log:          log.With().Str("terminal", id).Logger(),
		state:        State{Kind: StateInitializing},
		buffer:       scrollback.New(opts.ScrollbackLines, opts.MaxBufferMemory),
		history:      NewInputHistory(opts.HistorySize),
		cwd:          opts.WorkingDir,
		lastActivity: now,
	}
}

// environ returns the inherited environment with Env, and the
// integration hook for cmd when enabled, merged over it. It is nil when
// nothing is added.
func (t *Terminal) environ(cmd string) []string {
	vars := t.opts.Env
	if t.opts.ShellIntegration {
		if hook := integrationEnv(cmd, vars); len(hook) > 0 {
			merged := make(map[string]string, len(vars)+len(hook))
			for k, v := range vars {
				merged[k] = v
			}
			for k, v := range hook {
				merged[k] = v
			}
			vars = merged
		}
	}
	if len(vars) == 0 {
		return nil
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := os.Environ()
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env
}

// start spawns the shell. A failure leaves the terminal in StateError
// with the reason in the buffer.
func (t *Terminal) start(sp pty.Spawner, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cmd, args, err := hostShellCommand(t.shell, t.opts.DefaultShell)
	if err == nil {
		var s pty.Session
		s, err = sp.Spawn(pty.SpawnOptions{
			Command: cmd,
			Args:    args,
			Dir:     t.cwd,
			Env:     t.environ(cmd),
			Cols:    t.opts.Cols,
			Rows:    t.opts.Rows,
		})
		if err == nil {
			t.attach(s, now)
			t.log.Info().Str("command", cmd).Int("pid", s.PID()).Msg("terminal started")
			return nil
		}
	}

	t.state = Failed(err.Error())
	t.buffer.AddText(scrollback.LineError, "Failed to start process: "+err.Error())
	t.log.Warn().Err(err).Msg("failed to start process")
	return err
}

func (t *Terminal) attach(s pty.Session, now time.Time) {
	t.session = s
	t.done = make(chan struct{})
	t.stdin = make(chan string, inputBuffer)

	stdout := make(chan string, outputBuffer)
	go readRelay(s.Read, stdout, t.done, t.log.With().Str("stream", "stdout").Logger())
	t.streams = append(t.streams, &stream{ch: stdout, parser: ansi.NewParser(), lineType: scrollback.LineNormal})

	if r, ok := s.(pty.StderrReader); ok {
		stderr := make(chan string, outputBuffer)
		go readRelay(r.ReadStderr, stderr, t.done, t.log.With().Str("stream", "stderr").Logger())
		t.streams = append(t.streams, &stream{ch: stderr, parser: ansi.NewParser(), lineType: scrollback.LineError})
	}

	go writeRelay(s, t.stdin, t.log.With().Str("stream", "stdin").Logger())

	t.state = State{Kind: StateReady}
	t.lastActivity = now
	t.buffer.AddText(scrollback.LineSystem, fmt.Sprintf("Terminal started (PID: %d)", s.PID()))
}

// update drains the relays, applies shell signals and checks liveness.
func (t *Terminal) update(now time.Time) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil || t.closed || t.state.Kind == StateExited {
		return nil
	}

	var evs []Event
	for _, st := range t.streams {
		t.drain(st, now, &evs)
	}

	if t.running != nil && t.opts.IdleTimeout > 0 && now.Sub(t.lastActivity) >= t.opts.IdleTimeout {
		t.finishCommand(nil, now, true, &evs)
	}

	if !t.session.IsAlive() {
		if t.deadSince.IsZero() {
			t.deadSince = now
		}
		if t.streamsClosed() || now.Sub(t.deadSince) >= exitGrace {
			t.exit(now, &evs)
		}
	}
	return evs
}

func (t *Terminal) drain(st *stream, now time.Time, evs *[]Event) {
	for !st.closed {
		select {
		case s, ok := <-st.ch:
			if !ok {
				st.closed = true
				return
			}
			t.feed(st, s, now, evs)
		default:
			return
		}
	}
}

func (t *Terminal) streamsClosed() bool {
	for _, st := range t.streams {
		if !st.closed {
			return false
		}
	}
	return true
}

func (t *Terminal) feed(st *stream, chunk string, now time.Time, evs *[]Event) {
	res := st.parser.Parse(chunk)

	lines, rest := ansi.Lines(append(st.rest, res.Spans...))
	st.rest = rest
	for _, spans := range lines {
		t.addOutput(st.lineType, spans, now, evs)
	}
	for _, sig := range res.Signals {
		t.signal(sig, now, evs)
	}
	t.lastActivity = now
}

func (t *Terminal) addOutput(typ scrollback.LineType, spans []ansi.Span, now time.Time, evs *[]Event) {
	line := scrollback.NewLine(typ, spans)
	t.buffer.AddLine(line)
	if t.running != nil {
		t.running.output += len(line.Text())
	}
	*evs = append(*evs, Event{
		Kind:       EventOutputReceived,
		TerminalID: t.id,
		Time:       now,
		Text:       line.Text(),
		LineType:   typ,
	})
}

func (t *Terminal) signal(sig ansi.Signal, now time.Time, evs *[]Event) {
	switch sig.Kind {
	case ansi.SignalWorkingDir:
		if sig.Value == "" || sig.Value == t.cwd {
			return
		}
		t.cwd = sig.Value
		if err := t.session.SetWorkingDirectory(sig.Value); err != nil {
			t.log.Debug().Err(err).Str("dir", sig.Value).Msg("working directory not tracked by session")
		}
		*evs = append(*evs, Event{Kind: EventWorkingDirectoryChanged, TerminalID: t.id, Time: now, Dir: sig.Value})

	case ansi.SignalTitle:
		t.title = sig.Value
		*evs = append(*evs, Event{Kind: EventTitleChanged, TerminalID: t.id, Time: now, Title: sig.Value})

	case ansi.SignalCommandDone:
		if t.running == nil {
			return
		}
		var code *int
		if sig.HasExitCode {
			c := sig.ExitCode
			code = &c
		}
		t.finishCommand(code, now, true, evs)

	case ansi.SignalBell:
		t.bells++
	}
}

// finishCommand completes the running command. With transition set the
// terminal moves from Running back to Ready.
func (t *Terminal) finishCommand(code *int, now time.Time, transition bool, evs *[]Event) {
	cmd := t.running
	t.running = nil

	if transition && t.state.Kind == StateRunning {
		t.setState(State{Kind: StateReady}, now, evs)
	}
	*evs = append(*evs, Event{
		Kind:        EventCommandFinished,
		TerminalID:  t.id,
		Time:        now,
		Command:     cmd.text,
		Duration:    now.Sub(cmd.started),
		ExitCode:    code,
		OutputBytes: cmd.output,
	})
}

func (t *Terminal) exit(now time.Time, evs *[]Event) {
	for _, st := range t.streams {
		if spans := nonEmpty(st.rest); len(spans) > 0 {
			t.addOutput(st.lineType, spans, now, evs)
		}
		st.rest = nil
	}

	code, ok := t.session.ExitCode()
	if !ok {
		code = -1
	}
	if t.running != nil {
		c := code
		t.finishCommand(&c, now, false, evs)
	}

	t.buffer.AddText(scrollback.LineSystem, fmt.Sprintf("Process exited with code: %d", code))
	t.setState(Exited(code), now, evs)
	*evs = append(*evs, Event{Kind: EventProcessExited, TerminalID: t.id, Time: now, Code: code})

	t.log.Info().Int("code", code).Msg("process exited")
}

func (t *Terminal) setState(s State, now time.Time, evs *[]Event) {
	old := t.state
	t.state = s
	if old == s {
		return
	}
	*evs = append(*evs, Event{Kind: EventStateChanged, TerminalID: t.id, Time: now, OldState: old, State: s})
}

func nonEmpty(spans []ansi.Span) []ansi.Span {
	var out []ansi.Span
	for _, s := range spans {
		if s.Text != "" {
			s.EndOfLine = false
			out = append(out, s)
		}
	}
	return out
}

// sendInput queues text for the process. Text ending in a newline is
// recorded as a command.
func (t *Terminal) sendInput(text string, now time.Time) ([]Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil || t.closed || !t.state.Live() {
		return nil, ErrNoProcess
	}

	select {
	case t.stdin <- text:
	default:
		return nil, fmt.Errorf("%w: input queue full", ErrProcessCommunication)
	}
	t.lastActivity = now

	if !strings.HasSuffix(text, "\n") {
		return nil, nil
	}
	cmd := strings.TrimRight(text, "\r\n")
	if cmd == "" {
		return nil, nil
	}

	var evs []Event
	if t.running != nil {
		t.finishCommand(nil, now, false, &evs)
	}

	t.history.Add(cmd)
	t.buffer.AddText(scrollback.LineInput, "$ "+cmd)
	t.running = &pendingCommand{text: cmd, started: now}
	t.setState(State{Kind: StateRunning}, now, &evs)
	evs = append(evs, Event{Kind: EventCommandExecuted, TerminalID: t.id, Time: now, Command: cmd})
	return evs, nil
}

func (t *Terminal) resize(cols, rows uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil || t.closed {
		return ErrNoProcess
	}
	if err := t.session.Resize(cols, rows); err != nil {
		return fmt.Errorf("resize terminal %s: %w", t.id, err)
	}
	t.opts.Cols, t.opts.Rows = cols, rows
	return nil
}

// close stops the relays and returns the session for release.
func (t *Terminal) close() pty.Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.done != nil {
		close(t.done)
		close(t.stdin)
	}
	return t.session
}

// takeDropped returns lines evicted from the buffer since the last call.
func (t *Terminal) takeDropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	dropped := t.buffer.Stats().DroppedLines
	delta := dropped - t.reportedDrops
	t.reportedDrops = dropped
	return delta
}

// ID returns the terminal's unique identifier.
func (t *Terminal) ID() string { return t.id }

// Name returns the terminal's display name.
func (t *Terminal) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

// SetName updates the terminal's display name.
func (t *Terminal) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
}

// Shell returns the configured shell type.
func (t *Terminal) Shell() ShellType { return t.shell }

// CreatedAt returns when the terminal was created.
func (t *Terminal) CreatedAt() time.Time { return t.createdAt }

// State returns the current state.
func (t *Terminal) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// PID returns the shell process id, or -1 without a process.
func (t *Terminal) PID() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.session == nil {
		return -1
	}
	return t.session.PID()
}

// SessionID returns the PTY session id, or "" without a process.
func (t *Terminal) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.session == nil {
		return ""
	}
	return t.session.ID()
}

// WorkingDirectory returns the last reported working directory.
func (t *Terminal) WorkingDirectory() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cwd
}

// Title returns the last title set by the shell.
func (t *Terminal) Title() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.title
}

// Bells returns how many BEL characters the process has written.
func (t *Terminal) Bells() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bells
}

// LastActivity returns the time of the last input or output.
func (t *Terminal) LastActivity() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastActivity
}

// Running returns the command awaiting completion.
func (t *Terminal) Running() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.running == nil {
		return "", false
	}
	return t.running.text, true
}

// Pending returns the unterminated stdout line, such as a prompt.
func (t *Terminal) Pending() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.streams) == 0 {
		return ""
	}
	return ansi.PlainText(t.streams[0].rest)
}

// History returns the input history. It is owned by the caller's control
// goroutine.
func (t *Terminal) History() *InputHistory { return t.history }

// WithBuffer calls fn with the scrollback buffer while holding the
// terminal lock. fn must not retain slices returned by the buffer.
func (t *Terminal) WithBuffer(fn func(b *scrollback.Buffer)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.buffer)
}

// Lines returns a copy of every buffered line.
func (t *Terminal) Lines() []scrollback.Line {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]scrollback.Line(nil), t.buffer.Lines(0, t.buffer.Len())...)
}

// Visible returns a copy of the lines in the viewport.
func (t *Terminal) Visible() []scrollback.Line {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]scrollback.Line(nil), t.buffer.Visible()...)
}

// BufferStats returns the scrollback statistics.
func (t *Terminal) BufferStats() scrollback.Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.buffer.Stats()
}
