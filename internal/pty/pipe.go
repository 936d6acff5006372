package pty

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PipeSpawner starts processes on plain pipes instead of a pseudo-terminal.
// stdout and stderr stay separate, window size changes are accepted but
// have no effect, and programs see a non-interactive stdin.
type PipeSpawner struct{}

// NewPipeSpawner returns a spawner backed by os/exec pipes.
func NewPipeSpawner() *PipeSpawner {
	return &PipeSpawner{}
}

// Capabilities reports the reduced feature set of pipe sessions.
func (*PipeSpawner) Capabilities() Capabilities {
	return Capabilities{
		Resize:               false,
		Color:                true,
		Unicode:              true,
		JobControl:           false,
		EnvironmentInjection: true,
		MaxCols:              MaxCols,
		MaxRows:              MaxRows,
		Shells:               AvailableShells(),
	}
}

// Spawn starts opts.Command with its standard streams on pipes.
func (*PipeSpawner) Spawn(opts SpawnOptions) (Session, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, spawnError(opts.Command, err)
	}

	// The read ends are owned here rather than by exec.Cmd so that the
	// waiter's call to Wait cannot close them before output is drained.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, spawnError(opts.Command, err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeFiles(stdoutR, stdoutW)
		return nil, spawnError(opts.Command, err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	closeFiles(stdoutW, stderrW)
	if err != nil {
		closeFiles(stdoutR, stderrR)
		return nil, spawnError(opts.Command, err)
	}

	return &pipeSession{
		id:     uuid.NewString(),
		stdin:  stdin,
		stdout: stdoutR,
		stderr: stderrR,
		proc:   newProcess(cmd),
	}, nil
}

type pipeSession struct {
	id     string
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	proc   *process

	mu     sync.Mutex
	closed bool
}

func (s *pipeSession) ID() string { return s.id }

func (s *pipeSession) PID() int { return s.proc.pid() }

func (s *pipeSession) Read(p []byte) (int, error) {
	return readPipe(s.stdout, p)
}

// ReadStderr reads from the child's stderr pipe.
func (s *pipeSession) ReadStderr(p []byte) (int, error) {
	return readPipe(s.stderr, p)
}

func (s *pipeSession) Write(p []byte) (int, error) {
	n, err := s.stdin.Write(p)
	if err != nil {
		return n, ioError("write", err)
	}
	return n, nil
}

func (s *pipeSession) Resize(cols, rows uint16) error {
	if cols == 0 || rows == 0 || cols > MaxCols || rows > MaxRows {
		return invalidSize(cols, rows)
	}
	return nil
}

func (s *pipeSession) IsAlive() bool { return s.proc.alive() }

func (s *pipeSession) ExitCode() (int, bool) { return s.proc.status() }

func (s *pipeSession) WaitTimeout(d time.Duration) (int, bool) { return s.proc.waitTimeout(d) }

func (s *pipeSession) Terminate() error { return s.proc.terminate() }

func (s *pipeSession) Kill() error { return s.proc.kill() }

func (s *pipeSession) WorkingDirectory() string { return s.proc.workingDirectory() }

func (s *pipeSession) SetWorkingDirectory(dir string) error { return s.proc.setWorkingDirectory(dir) }

// Close closes stdin, terminates the process and releases the output pipes.
func (s *pipeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, err)
	}
	if err := s.proc.terminate(); err != nil {
		errs = append(errs, err)
	}
	_ = s.stdout.Close()
	_ = s.stderr.Close()
	return errors.Join(errs...)
}

func readPipe(r io.Reader, p []byte) (int, error) {
	n, err := r.Read(p)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			return n, io.EOF
		}
		return n, ioError("read", err)
	}
	return n, nil
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
