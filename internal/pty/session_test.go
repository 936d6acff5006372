package pty

import (
	"errors"
	"io"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func readAll(t *testing.T, read func([]byte) (int, error)) string {
	t.Helper()
	var sb strings.Builder
	buf := make([]byte, 256)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := read(buf)
		sb.Write(buf[:n])
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("unexpected read error: %v", err)
			}
			break
		}
	}
	return sb.String()
}

func TestPipeSpawnerSeparatesStderr(t *testing.T) {
	requireUnix(t)

	s, err := NewPipeSpawner().Spawn(SpawnOptions{
		Command: "sh",
		Args:    []string{"-c", "echo out; echo err 1>&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	defer s.Close()

	if s.PID() <= 0 {
		t.Errorf("expected positive pid, got %d", s.PID())
	}

	stderr, ok := s.(StderrReader)
	if !ok {
		t.Fatal("pipe session should implement StderrReader")
	}

	if out := readAll(t, s.Read); strings.TrimSpace(out) != "out" {
		t.Errorf("expected stdout 'out', got %q", out)
	}
	if errOut := readAll(t, stderr.ReadStderr); strings.TrimSpace(errOut) != "err" {
		t.Errorf("expected stderr 'err', got %q", errOut)
	}

	code, exited := s.WaitTimeout(5 * time.Second)
	if !exited {
		t.Fatal("process should have exited")
	}
	if code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
	if s.IsAlive() {
		t.Error("IsAlive should be false after exit")
	}
	if got, ok := s.ExitCode(); !ok || got != 3 {
		t.Errorf("ExitCode() = %d, %v", got, ok)
	}

	if err := s.Terminate(); err != nil {
		t.Errorf("Terminate after exit should be a no-op, got %v", err)
	}
	if err := s.Kill(); err != nil {
		t.Errorf("Kill after exit should be a no-op, got %v", err)
	}
}

func TestPipeSpawnerInput(t *testing.T) {
	requireUnix(t)

	s, err := NewPipeSpawner().Spawn(SpawnOptions{Command: "cat"})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	defer s.Close()

	if _, err := s.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	buf := make([]byte, 64)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := string(buf[:n]); got != "hello\n" {
		t.Errorf("expected echo, got %q", got)
	}

	if err := s.Terminate(); err != nil {
		t.Errorf("Terminate failed: %v", err)
	}
	if _, exited := s.WaitTimeout(5 * time.Second); !exited {
		t.Error("process should exit after Terminate")
	}
}

func TestSpawnMissingCommand(t *testing.T) {
	_, err := NewPipeSpawner().Spawn(SpawnOptions{Command: "definitely-not-a-real-shell-xyz"})
	if !errors.Is(err, ErrSpawnFailed) {
		t.Errorf("expected ErrSpawnFailed, got %v", err)
	}
}

func TestSpawnInvalidSize(t *testing.T) {
	_, err := NewPipeSpawner().Spawn(SpawnOptions{Command: "sh", Cols: MaxCols + 1})
	if !errors.Is(err, ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}

func TestSessionResizeValidation(t *testing.T) {
	requireUnix(t)

	s, err := NewPipeSpawner().Spawn(SpawnOptions{Command: "cat"})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	defer s.Close()

	tests := []struct {
		cols, rows uint16
		ok         bool
	}{
		{80, 24, true},
		{0, 24, false},
		{80, 0, false},
		{MaxCols + 1, 24, false},
	}
	for _, tt := range tests {
		err := s.Resize(tt.cols, tt.rows)
		if tt.ok && err != nil {
			t.Errorf("Resize(%d, %d) unexpected error: %v", tt.cols, tt.rows, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidSize) {
			t.Errorf("Resize(%d, %d) expected ErrInvalidSize, got %v", tt.cols, tt.rows, err)
		}
	}
}

func TestSessionWorkingDirectory(t *testing.T) {
	requireUnix(t)

	dir := t.TempDir()
	s, err := NewPipeSpawner().Spawn(SpawnOptions{Command: "cat", Dir: dir})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	defer s.Close()

	if s.WorkingDirectory() != dir {
		t.Errorf("expected %s, got %s", dir, s.WorkingDirectory())
	}

	other := t.TempDir()
	if err := s.SetWorkingDirectory(other); err != nil {
		t.Fatalf("SetWorkingDirectory failed: %v", err)
	}
	if s.WorkingDirectory() != other {
		t.Errorf("expected %s, got %s", other, s.WorkingDirectory())
	}

	if err := s.SetWorkingDirectory(other + "/missing"); !errors.Is(err, ErrIO) {
		t.Errorf("expected ErrIO for missing dir, got %v", err)
	}
}

func TestNativeSpawner(t *testing.T) {
	requireUnix(t)
	if testing.Short() {
		t.Skip("skipping PTY test in short mode")
	}

	sp, err := NewSpawner()
	if err != nil {
		t.Skipf("no native PTY: %v", err)
	}
	if !sp.Capabilities().Resize {
		t.Error("native PTY should support resize")
	}

	s, err := sp.Spawn(SpawnOptions{Command: "sh", Args: []string{"-c", "echo $TERM"}})
	if err != nil {
		t.Skipf("skipping: failed to spawn (may not have PTY): %v", err)
	}
	defer s.Close()

	out := readAll(t, s.Read)
	if !strings.Contains(out, "xterm-256color") {
		t.Errorf("expected TERM in output, got %q", out)
	}
	if _, exited := s.WaitTimeout(5 * time.Second); !exited {
		t.Error("process should have exited")
	}
}

func TestManagerStats(t *testing.T) {
	requireUnix(t)

	m := NewManager(NewPipeSpawner(), zerolog.Nop())
	s, err := m.Spawn(SpawnOptions{Command: "cat"})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	if _, ok := s.(StderrReader); !ok {
		t.Error("wrapped pipe session should keep StderrReader")
	}

	if _, err := s.Write([]byte("abc\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	buf := make([]byte, 16)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	stats := m.Stats()
	if stats.SessionsCreated != 1 {
		t.Errorf("expected 1 session created, got %d", stats.SessionsCreated)
	}
	if stats.BytesWritten != 4 {
		t.Errorf("expected 4 bytes written, got %d", stats.BytesWritten)
	}
	if stats.BytesRead != 4 {
		t.Errorf("expected 4 bytes read, got %d", stats.BytesRead)
	}

	if _, ok := m.Get(s.ID()); !ok {
		t.Error("session should be registered")
	}

	_ = s.Kill()
	s.WaitTimeout(5 * time.Second)
	if n := m.CleanupDead(); n != 1 {
		t.Errorf("expected 1 dead session cleaned, got %d", n)
	}
	if err := m.Remove(s.ID()); !errors.Is(err, ErrProcessNotFound) {
		t.Errorf("expected ErrProcessNotFound, got %v", err)
	}
	if err := m.CloseAll(); err != nil {
		t.Errorf("CloseAll failed: %v", err)
	}
}

func TestHostCapabilities(t *testing.T) {
	caps := HostCapabilities()
	if caps.MaxCols != MaxCols || caps.MaxRows != MaxRows {
		t.Errorf("unexpected max size %dx%d", caps.MaxCols, caps.MaxRows)
	}
	if !caps.Color || !caps.Unicode {
		t.Error("expected color and unicode support")
	}
}

func TestMain(m *testing.M) {
	os.Unsetenv(EnvShellOverride)
	os.Exit(m.Run())
}
