package pty

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// Sentinel errors for the pty package. Every error returned by a Spawner or
// Session matches exactly one of these with errors.Is, except io.EOF which
// is passed through unchanged at the end of a stream.
var (
	// ErrUnsupportedPlatform is returned when no adapter exists for the host OS.
	ErrUnsupportedPlatform = errors.New("pty: unsupported platform")

	// ErrSpawnFailed is returned when the child process could not be started.
	ErrSpawnFailed = errors.New("pty: spawn failed")

	// ErrIO is returned for read or write failures on the session streams.
	ErrIO = errors.New("pty: i/o error")

	// ErrProcessNotFound is returned when the child process is gone.
	ErrProcessNotFound = errors.New("pty: process not found")

	// ErrInvalidSize is returned for zero or oversized dimensions.
	ErrInvalidSize = errors.New("pty: invalid size")

	// ErrPermissionDenied is returned when the OS refuses the operation.
	ErrPermissionDenied = errors.New("pty: permission denied")

	// ErrWouldBlock is returned by non-blocking reads with no data ready.
	ErrWouldBlock = errors.New("pty: operation would block")

	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("pty: timeout")

	// ErrNotImplemented is returned for operations an adapter does not support.
	ErrNotImplemented = errors.New("pty: not implemented")

	// ErrOther wraps failures that fit no other category.
	ErrOther = errors.New("pty: error")
)

func invalidSize(cols, rows uint16) error {
	return fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
}

func spawnError(command string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s: %w: %w", ErrSpawnFailed, command, ErrPermissionDenied, err)
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: command not found: %w", ErrSpawnFailed, command, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrSpawnFailed, command, err)
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
