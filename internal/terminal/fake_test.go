package terminal

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/termcore/internal/pty"
	"github.com/dshills/termcore/internal/scrollback"
)

// fakeSession is a scripted pty.Session. Output written with emit is read
// by the terminal's relay; input it receives is recorded.
type fakeSession struct {
	id  string
	pid int

	out *io.PipeReader
	pw  *io.PipeWriter

	mu     sync.Mutex
	input  strings.Builder
	alive  bool
	code   int
	cwd    string
	cols   uint16
	rows   uint16
	closed bool
}

func newFakeSession(id string, pid int) *fakeSession {
	r, w := io.Pipe()
	return &fakeSession{id: id, pid: pid, out: r, pw: w, alive: true}
}

func (s *fakeSession) emit(text string) {
	_, _ = s.pw.Write([]byte(text))
}

// exit marks the process dead and closes its output.
func (s *fakeSession) exit(code int) {
	s.mu.Lock()
	s.alive = false
	s.code = code
	s.mu.Unlock()
	_ = s.pw.Close()
}

func (s *fakeSession) written() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input.String()
}

func (s *fakeSession) ID() string { return s.id }
func (s *fakeSession) PID() int   { return s.pid }

func (s *fakeSession) Read(p []byte) (int, error) { return s.out.Read(p) }

func (s *fakeSession) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input.Write(p)
}

func (s *fakeSession) Resize(cols, rows uint16) error {
	if cols == 0 || rows == 0 {
		return pty.ErrInvalidSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cols, s.rows = cols, rows
	return nil
}

func (s *fakeSession) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *fakeSession) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, !s.alive
}

func (s *fakeSession) WaitTimeout(time.Duration) (int, bool) { return s.ExitCode() }
func (s *fakeSession) Terminate() error                      { return nil }
func (s *fakeSession) Kill() error                           { return nil }

func (s *fakeSession) WorkingDirectory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

func (s *fakeSession) SetWorkingDirectory(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cwd = dir
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.alive = false
	s.mu.Unlock()
	_ = s.pw.Close()
	return s.out.Close()
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeSpawner hands out a new fake session per Spawn, or fails with err.
type fakeSpawner struct {
	mu       sync.Mutex
	sessions []*fakeSession
	opts     []pty.SpawnOptions
	err      error
	next     int
}

var errSpawn = errors.New("exec: \"nosuchshell\": executable file not found in $PATH")

func (f *fakeSpawner) Spawn(opts pty.SpawnOptions) (pty.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	f.next++
	s := newFakeSession(fmt.Sprintf("fake-%d", f.next), 1000+f.next)
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeSpawner) Capabilities() pty.Capabilities {
	return pty.Capabilities{Resize: true, Color: true, Unicode: true}
}

func (f *fakeSpawner) session(i int) *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[i]
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestManager returns a manager over a fake spawner with a manual clock
// and a subscription to every event.
func newTestManager(t *testing.T, mutate func(*Config)) (*Manager, *fakeSpawner, *clock, *eventLog) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DefaultShell = "sh"
	cfg.IdleTimeout = 0
	if mutate != nil {
		mutate(&cfg)
	}

	sp := &fakeSpawner{}
	clk := newClock()
	m := NewManager(cfg, sp, WithClock(clk.Now))
	log := &eventLog{}
	m.SubscribeFunc("*", log.record)
	t.Cleanup(func() { _ = m.Shutdown() })
	return m, sp, clk, log
}

// eventLog records every published event.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(_ string, ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func (l *eventLog) of(kind EventKind) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (l *eventLog) reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

// pump calls Update until cond holds or the deadline passes.
func pump(t *testing.T, m *Manager, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		m.Update()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func lineTexts(lines []scrollback.Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text()
	}
	return out
}
