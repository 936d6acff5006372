package pty

import (
	"io"
	"time"
)

// Size limits accepted by Resize and Spawn.
const (
	MaxCols = 1000
	MaxRows = 1000

	DefaultCols = 80
	DefaultRows = 24
)

// SpawnOptions describes the child process to start.
type SpawnOptions struct {
	// Command is the executable name or path.
	Command string
	// Args are passed to the command, excluding argv[0].
	Args []string
	// Dir is the working directory. Empty uses the current directory.
	Dir string
	// Env is the complete environment. Nil inherits the current process.
	Env []string
	// Cols and Rows set the initial window size. Zero uses 80x24.
	Cols, Rows uint16
}

func (o *SpawnOptions) normalize() error {
	if o.Cols == 0 {
		o.Cols = DefaultCols
	}
	if o.Rows == 0 {
		o.Rows = DefaultRows
	}
	if o.Cols > MaxCols || o.Rows > MaxRows {
		return invalidSize(o.Cols, o.Rows)
	}
	return nil
}

// Spawner starts child processes attached to a pseudo-terminal.
type Spawner interface {
	// Spawn starts the process described by opts.
	Spawn(opts SpawnOptions) (Session, error)

	// Capabilities reports what sessions from this spawner support.
	Capabilities() Capabilities
}

// Session is a running child process and its terminal streams.
//
// Read and Write follow io.Reader and io.Writer. Read returns io.EOF once
// the output stream is closed and fully drained.
type Session interface {
	io.ReadWriteCloser

	// ID returns the session identifier.
	ID() string

	// PID returns the child process id.
	PID() int

	// Resize changes the terminal window size.
	Resize(cols, rows uint16) error

	// IsAlive reports the last-known liveness without blocking.
	IsAlive() bool

	// ExitCode returns the exit status once the process has exited.
	ExitCode() (int, bool)

	// WaitTimeout waits up to d for the process to exit.
	WaitTimeout(d time.Duration) (int, bool)

	// Terminate asks the process to stop. Safe to call repeatedly.
	Terminate() error

	// Kill forcibly stops the process. Safe to call repeatedly.
	Kill() error

	// WorkingDirectory returns the tracked working directory.
	WorkingDirectory() string

	// SetWorkingDirectory updates the tracked working directory.
	SetWorkingDirectory(dir string) error
}

// StderrReader is implemented by sessions that keep stderr separate from
// stdout. PTY-backed sessions merge the two and do not implement it.
type StderrReader interface {
	ReadStderr(p []byte) (int, error)
}
