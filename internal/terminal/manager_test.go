package terminal

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dshills/termcore/internal/event"
	"github.com/dshills/termcore/internal/scrollback"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManagerCreate(t *testing.T) {
	m, sp, _, log := newTestManager(t, nil)

	term, err := m.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if term.Name() != "Terminal 1" {
		t.Errorf("expected default name 'Terminal 1', got %q", term.Name())
	}
	if got := term.State().Kind; got != StateReady {
		t.Errorf("expected ready, got %s", got)
	}
	if term.PID() != 1001 {
		t.Errorf("expected pid 1001, got %d", term.PID())
	}
	if active, ok := m.Active(); !ok || active != term {
		t.Error("first terminal should become active")
	}

	if len(sp.opts) != 1 || sp.opts[0].Command != "sh" {
		t.Fatalf("unexpected spawn options: %+v", sp.opts)
	}

	lines := term.Lines()
	if len(lines) != 1 || lines[0].Text() != "Terminal started (PID: 1001)" || lines[0].Type != scrollback.LineSystem {
		t.Errorf("unexpected start lines: %v", lineTexts(lines))
	}

	kinds := log.kinds()
	if len(kinds) != 2 || kinds[0] != EventCreated || kinds[1] != EventStateChanged {
		t.Fatalf("expected created then state events, got %v", kinds)
	}
	sc := log.of(EventStateChanged)[0]
	if sc.OldState.Kind != StateInitializing || sc.State.Kind != StateReady {
		t.Errorf("unexpected transition %s -> %s", sc.OldState, sc.State)
	}

	second, _ := m.Create("build")
	if second.Name() != "build" {
		t.Errorf("expected name 'build', got %q", second.Name())
	}
	if active, _ := m.Active(); active != term {
		t.Error("creating a second terminal should not change the active one")
	}
	if m.Count() != 2 {
		t.Errorf("expected 2 terminals, got %d", m.Count())
	}
	if term.ID() == second.ID() {
		t.Error("terminal ids should be unique")
	}
}

func TestManagerCreateSpawnFailure(t *testing.T) {
	m, sp, _, _ := newTestManager(t, nil)
	sp.err = errSpawn

	term, err := m.Create("broken")
	if err != nil {
		t.Fatalf("Create should not fail on spawn errors: %v", err)
	}

	st := term.State()
	if st.Kind != StateError {
		t.Fatalf("expected error state, got %s", st)
	}
	if !strings.Contains(st.Message, "nosuchshell") {
		t.Errorf("state message should name the failure, got %q", st.Message)
	}
	lines := term.Lines()
	if len(lines) != 1 || lines[0].Type != scrollback.LineError || !strings.HasPrefix(lines[0].Text(), "Failed to start process: ") {
		t.Errorf("unexpected lines: %v", lineTexts(lines))
	}
	if term.PID() != -1 {
		t.Errorf("expected pid -1, got %d", term.PID())
	}

	err = m.SendInput("ls\n")
	if !errors.Is(err, ErrNoProcess) || !errors.Is(err, ErrProcessCommunication) {
		t.Errorf("expected ErrNoProcess, got %v", err)
	}
	if stats := m.Statistics(); stats.Failed != 1 {
		t.Errorf("expected 1 failed terminal, got %+v", stats)
	}
}

func TestManagerInvalidShellCommand(t *testing.T) {
	m, _, _, _ := newTestManager(t, func(c *Config) { c.DefaultShell = "   " })

	term, _ := m.Create("")
	st := term.State()
	if st.Kind != StateError {
		t.Fatalf("expected error state, got %s", st)
	}
	if !strings.Contains(st.Message, ErrInvalidShellCommand.Error()) {
		t.Errorf("expected invalid shell message, got %q", st.Message)
	}
}

func TestManagerCloseReselectsActive(t *testing.T) {
	m, sp, _, log := newTestManager(t, nil)

	a, _ := m.Create("a")
	b, _ := m.Create("b")
	c, _ := m.Create("c")
	if !m.SetActive(b.ID()) {
		t.Fatal("SetActive failed")
	}

	log.reset()
	if !m.Close(b.ID()) {
		t.Fatal("Close should report an existing terminal")
	}
	if active, _ := m.Active(); active != c {
		t.Errorf("expected most recent terminal to become active, got %v", active.Name())
	}
	if !sp.session(1).isClosed() {
		t.Error("closing a terminal should close its session")
	}
	if closed := log.of(EventClosed); len(closed) != 1 || closed[0].TerminalID != b.ID() {
		t.Errorf("expected one closed event for b, got %+v", closed)
	}

	if m.Close(b.ID()) {
		t.Error("second Close should report false")
	}
	if m.Close("nope") {
		t.Error("Close of unknown id should report false")
	}

	m.Close(c.ID())
	if active, _ := m.Active(); active != a {
		t.Error("expected a to become active")
	}
	m.Close(a.ID())
	if _, ok := m.Active(); ok {
		t.Error("expected no active terminal")
	}
	if err := m.SendInput("ls\n"); !errors.Is(err, ErrNoActiveTerminal) {
		t.Errorf("expected ErrNoActiveTerminal, got %v", err)
	}
	if m.SetActive(a.ID()) {
		t.Error("SetActive of a closed terminal should fail")
	}
}

func TestManagerClosingInactiveKeepsSelection(t *testing.T) {
	m, _, _, _ := newTestManager(t, nil)

	a, _ := m.Create("a")
	b, _ := m.Create("b")
	m.Close(b.ID())

	if active, _ := m.Active(); active != a {
		t.Error("closing an inactive terminal should not change the selection")
	}
	list := m.List()
	if len(list) != 1 || list[0] != a {
		t.Errorf("unexpected list after close: %d entries", len(list))
	}
}

func TestManagerSendInput(t *testing.T) {
	m, sp, _, log := newTestManager(t, nil)
	term, _ := m.Create("")
	s := sp.session(0)

	log.reset()
	if err := m.SendInput("ls -la\n"); err != nil {
		t.Fatalf("SendInput failed: %v", err)
	}
	waitFor(t, "input to reach the process", func() bool { return s.written() == "ls -la\n" })

	if got := term.State().Kind; got != StateRunning {
		t.Errorf("expected running, got %s", got)
	}
	if cmd, ok := term.Running(); !ok || cmd != "ls -la" {
		t.Errorf("expected running command 'ls -la', got %q", cmd)
	}
	kinds := log.kinds()
	if len(kinds) != 2 || kinds[0] != EventStateChanged || kinds[1] != EventCommandExecuted {
		t.Fatalf("unexpected events %v", kinds)
	}
	if ev := log.of(EventCommandExecuted)[0]; ev.Command != "ls -la" || ev.TerminalID != term.ID() {
		t.Errorf("unexpected executed event %+v", ev)
	}

	lines := term.Lines()
	last := lines[len(lines)-1]
	if last.Type != scrollback.LineInput || last.Text() != "$ ls -la" {
		t.Errorf("expected input echo line, got %q (%s)", last.Text(), last.Type)
	}

	// keystrokes without a newline are forwarded but not recorded
	log.reset()
	if err := m.SendInputTo(term.ID(), "q"); err != nil {
		t.Fatalf("SendInputTo failed: %v", err)
	}
	waitFor(t, "keystroke", func() bool { return strings.HasSuffix(s.written(), "q") })
	if len(log.kinds()) != 0 {
		t.Errorf("raw keystrokes should not emit events, got %v", log.kinds())
	}
	if term.History().Len() != 1 {
		t.Errorf("expected 1 history entry, got %d", term.History().Len())
	}

	if err := m.SendInputTo("missing", "x"); !errors.Is(err, ErrTerminalNotFound) {
		t.Errorf("expected ErrTerminalNotFound, got %v", err)
	}
}

func TestManagerHistoryNavigation(t *testing.T) {
	m, _, _, _ := newTestManager(t, nil)
	term, _ := m.Create("")

	for _, cmd := range []string{"ls -la\n", "cd /tmp\n", "cd /tmp\n"} {
		if err := m.SendInput(cmd); err != nil {
			t.Fatalf("SendInput(%q) failed: %v", cmd, err)
		}
	}

	h := term.History()
	if got := h.Entries(); len(got) != 2 || got[0] != "ls -la" || got[1] != "cd /tmp" {
		t.Fatalf("unexpected history %v", got)
	}

	if cmd, _ := h.Previous("draft"); cmd != "cd /tmp" {
		t.Errorf("expected 'cd /tmp', got %q", cmd)
	}
	if cmd, _ := h.Previous(""); cmd != "ls -la" {
		t.Errorf("expected 'ls -la', got %q", cmd)
	}
	if cmd, _ := h.Next(); cmd != "cd /tmp" {
		t.Errorf("expected 'cd /tmp', got %q", cmd)
	}
	if cmd, _ := h.Next(); cmd != "draft" {
		t.Errorf("expected saved draft, got %q", cmd)
	}
}

func TestManagerOutputLines(t *testing.T) {
	m, sp, _, log := newTestManager(t, nil)
	term, _ := m.Create("")
	s := sp.session(0)

	go s.emit("hello\r\n\x1b[31merror: boom\x1b[0m\r\n$ ")
	pump(t, m, func() bool { return term.Pending() == "$ " })

	lines := term.Lines()
	got := lineTexts(lines[1:])
	if len(got) != 2 || got[0] != "hello" || got[1] != "error: boom" {
		t.Fatalf("unexpected output lines %v", got)
	}
	if lines[2].Spans[0].Style.Fg.IsDefault() {
		t.Error("expected styled span for colored output")
	}

	out := log.of(EventOutputReceived)
	if len(out) != 2 || out[0].Text != "hello" || out[0].LineType != scrollback.LineNormal {
		t.Errorf("unexpected output events %+v", out)
	}
}

func TestManagerShellSignals(t *testing.T) {
	m, sp, _, log := newTestManager(t, nil)
	term, _ := m.Create("")
	s := sp.session(0)

	if err := m.SendInput("make\n"); err != nil {
		t.Fatal(err)
	}
	go s.emit("building\n\x1b]0;make\x07\x1b]7;file://host/home/dev/src\x07\a\x1b]133;D;2\x07")
	pump(t, m, func() bool { return term.State().Kind == StateReady })

	if term.Title() != "make" {
		t.Errorf("expected title 'make', got %q", term.Title())
	}
	if term.WorkingDirectory() != "/home/dev/src" {
		t.Errorf("expected cwd /home/dev/src, got %q", term.WorkingDirectory())
	}
	if s.WorkingDirectory() != "/home/dev/src" {
		t.Errorf("session cwd not updated, got %q", s.WorkingDirectory())
	}
	if term.Bells() != 1 {
		t.Errorf("expected 1 bell, got %d", term.Bells())
	}

	fin := log.of(EventCommandFinished)
	if len(fin) != 1 {
		t.Fatalf("expected 1 finished event, got %d", len(fin))
	}
	if fin[0].Command != "make" || fin[0].ExitCode == nil || *fin[0].ExitCode != 2 {
		t.Errorf("unexpected finished event %+v", fin[0])
	}
	if fin[0].OutputBytes != len("building") {
		t.Errorf("expected %d output bytes, got %d", len("building"), fin[0].OutputBytes)
	}
	if !errors.Is(fin[0].Err(), ErrCommandFailed) {
		t.Error("non-zero exit should report ErrCommandFailed")
	}
	if len(log.of(EventWorkingDirectoryChanged)) != 1 || len(log.of(EventTitleChanged)) != 1 {
		t.Errorf("expected cwd and title events, got %v", log.kinds())
	}
}

func TestManagerIdleCompletion(t *testing.T) {
	m, sp, clk, log := newTestManager(t, func(c *Config) { c.IdleTimeout = time.Second })
	term, _ := m.Create("")
	s := sp.session(0)

	if err := m.SendInput("git status\n"); err != nil {
		t.Fatal(err)
	}
	go s.emit("clean\n")
	pump(t, m, func() bool { return len(log.of(EventOutputReceived)) == 1 })

	clk.Advance(500 * time.Millisecond)
	m.Update()
	if term.State().Kind != StateRunning {
		t.Fatal("command should still be running before the idle timeout")
	}

	clk.Advance(600 * time.Millisecond)
	m.Update()
	if term.State().Kind != StateReady {
		t.Fatalf("expected ready after idle timeout, got %s", term.State())
	}
	fin := log.of(EventCommandFinished)
	if len(fin) != 1 || fin[0].ExitCode != nil || fin[0].Succeeded() || fin[0].Err() != nil {
		t.Errorf("unexpected finished events %+v", fin)
	}
	if fin[0].Duration != 1100*time.Millisecond {
		t.Errorf("expected duration 1.1s, got %s", fin[0].Duration)
	}
}

func TestManagerProcessExit(t *testing.T) {
	m, sp, _, log := newTestManager(t, nil)
	term, _ := m.Create("")
	s := sp.session(0)

	if err := m.SendInput("exit 3\n"); err != nil {
		t.Fatal(err)
	}
	go func() {
		s.emit("bye\npartial")
		s.exit(3)
	}()
	pump(t, m, func() bool { return term.State().Kind == StateExited })

	if term.State().ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", term.State().ExitCode)
	}
	got := lineTexts(term.Lines())
	want := []string{"bye", "partial", "Process exited with code: 3"}
	if len(got) < len(want) {
		t.Fatalf("unexpected lines %v", got)
	}
	for i, w := range want {
		if g := got[len(got)-len(want)+i]; g != w {
			t.Errorf("line %d: expected %q, got %q", i, w, g)
		}
	}

	fin := log.of(EventCommandFinished)
	if len(fin) != 1 || fin[0].ExitCode == nil || *fin[0].ExitCode != 3 {
		t.Errorf("running command should finish with the exit code, got %+v", fin)
	}
	exits := log.of(EventProcessExited)
	if len(exits) != 1 || exits[0].Code != 3 {
		t.Errorf("expected one exit event with code 3, got %+v", exits)
	}
	kinds := log.kinds()
	if kinds[len(kinds)-1] != EventProcessExited || kinds[len(kinds)-2] != EventStateChanged {
		t.Errorf("exit should end with state change then exited, got %v", kinds)
	}

	if !s.isClosed() {
		t.Error("session should be released after exit")
	}
	if m.Count() != 1 {
		t.Error("terminal should remain until closed")
	}
	if err := m.SendInput("ls\n"); !errors.Is(err, ErrNoProcess) {
		t.Errorf("expected ErrNoProcess after exit, got %v", err)
	}

	m.Update()
	if n := len(log.of(EventProcessExited)); n != 1 {
		t.Errorf("exit should be reported once, got %d", n)
	}
}

func TestManagerCloseOnExit(t *testing.T) {
	m, sp, _, log := newTestManager(t, func(c *Config) { c.CloseOnExit = true })
	term, _ := m.Create("")

	sp.session(0).exit(0)
	pump(t, m, func() bool { return m.Count() == 0 })

	closed := log.of(EventClosed)
	if len(closed) != 1 || closed[0].TerminalID != term.ID() {
		t.Errorf("expected closed event, got %+v", closed)
	}
	kinds := log.kinds()
	if kinds[len(kinds)-2] != EventProcessExited {
		t.Errorf("expected exited before closed, got %v", kinds)
	}
}

func TestManagerConfirmation(t *testing.T) {
	m, _, _, _ := newTestManager(t, func(c *Config) { c.ConfirmClose = true })
	term, _ := m.Create("")

	if m.NeedsCloseConfirmation(term.ID()) {
		t.Error("idle terminal should not need confirmation")
	}
	_ = m.SendInput("sleep 10\n")
	if !m.NeedsCloseConfirmation(term.ID()) {
		t.Error("running terminal should need confirmation")
	}

	m2, _, _, _ := newTestManager(t, func(c *Config) { c.ConfirmClose = false })
	t2, _ := m2.Create("")
	_ = m2.SendInput("sleep 10\n")
	if m2.NeedsCloseConfirmation(t2.ID()) {
		t.Error("confirmation disabled by config")
	}
}

func TestManagerResize(t *testing.T) {
	m, sp, _, _ := newTestManager(t, nil)
	term, _ := m.Create("")

	if err := m.Resize(term.ID(), 120, 40); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	s := sp.session(0)
	if s.cols != 120 || s.rows != 40 {
		t.Errorf("expected 120x40, got %dx%d", s.cols, s.rows)
	}
	if err := m.Resize(term.ID(), 0, 40); err == nil {
		t.Error("expected error for zero size")
	}
	if err := m.Resize("missing", 80, 24); !errors.Is(err, ErrTerminalNotFound) {
		t.Errorf("expected ErrTerminalNotFound, got %v", err)
	}
}

func TestManagerSubscribe(t *testing.T) {
	m, _, _, _ := newTestManager(t, nil)

	sub := m.Subscribe(16)
	defer sub.Close()

	var commands []string
	id := m.SubscribeFunc("terminal.command.*", func(topic string, ev Event) {
		commands = append(commands, topic+":"+ev.Command)
	})

	term, _ := m.Create("")
	_ = m.SendInput("pwd\n")

	evs := sub.Drain()
	if len(evs) != 4 {
		t.Fatalf("expected 4 events, got %d", len(evs))
	}
	if evs[0].Kind != EventCreated || evs[0].TerminalID != term.ID() {
		t.Errorf("unexpected first event %+v", evs[0])
	}
	if len(commands) != 1 || commands[0] != "terminal.command.executed:pwd" {
		t.Errorf("unexpected command events %v", commands)
	}

	if !m.Unsubscribe(id) {
		t.Error("Unsubscribe should find the handler")
	}
	if !event.Match("terminal.*", EventOutputReceived.Topic()) {
		t.Error("output topic should be under terminal.*")
	}
}

func TestManagerStatistics(t *testing.T) {
	m, sp, _, _ := newTestManager(t, nil)
	a, _ := m.Create("a")
	_, _ = m.Create("b")
	_ = m.SendInputTo(a.ID(), "top\n")

	go sp.session(0).emit("one\ntwo\n")
	pump(t, m, func() bool { return a.BufferStats().Lines == 4 })

	st := m.Statistics()
	if st.Terminals != 2 || st.Running != 1 || st.Exited != 0 {
		t.Errorf("unexpected statistics %+v", st)
	}
	if st.Lines != 5 {
		t.Errorf("expected 5 lines across terminals, got %d", st.Lines)
	}
	if st.MemoryBytes <= 0 {
		t.Error("expected memory usage")
	}
	if st.PTY.SessionsCreated != 2 || st.PTY.ActiveSessions != 2 {
		t.Errorf("unexpected pty stats %+v", st.PTY)
	}
}

func TestManagerShutdown(t *testing.T) {
	m, sp, _, log := newTestManager(t, nil)
	_, _ = m.Create("a")
	_, _ = m.Create("b")

	log.reset()
	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("expected no terminals, got %d", m.Count())
	}
	if !sp.session(0).isClosed() || !sp.session(1).isClosed() {
		t.Error("sessions should be closed")
	}
	if n := len(log.of(EventClosed)); n != 2 {
		t.Errorf("expected 2 closed events, got %d", n)
	}
	if _, err := m.Create("c"); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("expected ErrManagerClosed, got %v", err)
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("second Shutdown should be a no-op, got %v", err)
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Shell != ShellCustom || cfg.ScrollbackLines != 10000 || !cfg.ConfirmClose {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.IdleTimeout != 750*time.Millisecond {
		t.Errorf("expected idle timeout 750ms, got %s", cfg.IdleTimeout)
	}
}
