package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// process tracks an exec.Cmd started by an adapter. A single waiter
// goroutine owns cmd.Wait and publishes the exit status.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu       sync.Mutex
	exitCode int
	dir      string
}

func newProcess(cmd *exec.Cmd) *process {
	p := &process{
		cmd:      cmd,
		done:     make(chan struct{}),
		exitCode: -1,
		dir:      cmd.Dir,
	}
	if p.dir == "" {
		p.dir, _ = os.Getwd()
	}
	go p.wait()
	return p
}

func (p *process) wait() {
	err := p.cmd.Wait()

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	} else {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	}

	p.mu.Lock()
	p.exitCode = code
	p.mu.Unlock()
	close(p.done)
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *process) alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *process) status() (int, bool) {
	if p.alive() {
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, true
}

func (p *process) waitTimeout(d time.Duration) (int, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.status()
	case <-timer.C:
		return 0, false
	}
}

func (p *process) terminate() error {
	if !p.alive() || p.cmd.Process == nil {
		return nil
	}
	return signalError(terminateProcess(p.cmd.Process))
}

func (p *process) kill() error {
	if !p.alive() || p.cmd.Process == nil {
		return nil
	}
	return signalError(p.cmd.Process.Kill())
}

func (p *process) workingDirectory() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dir
}

func (p *process) setWorkingDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return ioError("chdir", err)
	}
	if !info.IsDir() {
		return ioError("chdir", fmt.Errorf("%s is not a directory", dir))
	}
	p.mu.Lock()
	p.dir = dir
	p.mu.Unlock()
	return nil
}

func signalError(err error) error {
	switch {
	case err == nil, errors.Is(err, os.ErrProcessDone):
		return nil
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %w", ErrProcessNotFound, err)
	}
}
