//go:build !windows

package pty

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
)

// unixSpawner starts processes on a pseudo-terminal allocated by creack/pty.
type unixSpawner struct{}

func newPlatformSpawner() (Spawner, error) {
	return unixSpawner{}, nil
}

func (unixSpawner) Spawn(opts SpawnOptions) (Session, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	path, err := exec.LookPath(opts.Command)
	if err != nil {
		return nil, spawnError(opts.Command, err)
	}

	cmd := exec.Command(path, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = terminalEnv(opts.Env)

	file, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: opts.Cols, Rows: opts.Rows})
	if err != nil {
		return nil, spawnError(opts.Command, err)
	}

	return &unixSession{
		id:   uuid.NewString(),
		file: file,
		proc: newProcess(cmd),
	}, nil
}

func (unixSpawner) Capabilities() Capabilities {
	return Capabilities{
		Resize:               true,
		Color:                true,
		Unicode:              true,
		JobControl:           true,
		EnvironmentInjection: true,
		MaxCols:              MaxCols,
		MaxRows:              MaxRows,
		Shells:               AvailableShells(),
	}
}

// unixSession is a child process attached to the PTY master file.
type unixSession struct {
	id   string
	file *os.File
	proc *process

	mu     sync.Mutex
	closed bool
}

func (s *unixSession) ID() string { return s.id }

func (s *unixSession) PID() int { return s.proc.pid() }

func (s *unixSession) Read(p []byte) (int, error) {
	n, err := s.file.Read(p)
	if err != nil {
		// Linux reports EIO on the master once the slave side is gone.
		if errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed) {
			return n, io.EOF
		}
		return n, ioError("read", err)
	}
	return n, nil
}

func (s *unixSession) Write(p []byte) (int, error) {
	n, err := s.file.Write(p)
	if err != nil {
		return n, ioError("write", err)
	}
	return n, nil
}

func (s *unixSession) Resize(cols, rows uint16) error {
	if cols == 0 || rows == 0 || cols > MaxCols || rows > MaxRows {
		return invalidSize(cols, rows)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrProcessNotFound
	}
	if err := pty.Setsize(s.file, &pty.Winsize{Cols: cols, Rows: rows}); err != nil {
		return ioError("resize", err)
	}
	return nil
}

func (s *unixSession) IsAlive() bool { return s.proc.alive() }

func (s *unixSession) ExitCode() (int, bool) { return s.proc.status() }

func (s *unixSession) WaitTimeout(d time.Duration) (int, bool) { return s.proc.waitTimeout(d) }

func (s *unixSession) Terminate() error { return s.proc.terminate() }

func (s *unixSession) Kill() error { return s.proc.kill() }

func (s *unixSession) WorkingDirectory() string { return s.proc.workingDirectory() }

func (s *unixSession) SetWorkingDirectory(dir string) error { return s.proc.setWorkingDirectory(dir) }

// Close terminates the process if it is still running and releases the PTY.
func (s *unixSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	_ = s.proc.terminate()
	return s.file.Close()
}

func terminalEnv(env []string) []string {
	if env == nil {
		env = os.Environ()
	}
	out := make([]string, 0, len(env)+2)
	out = append(out, env...)
	return append(out, "TERM=xterm-256color", "COLORTERM=truecolor")
}
