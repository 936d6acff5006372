package terminal

import (
	"errors"
	"fmt"
)

// Sentinel errors for the terminal package.
var (
	// ErrNoActiveTerminal is returned when input is sent with no active terminal.
	ErrNoActiveTerminal = errors.New("no active terminal")

	// ErrTerminalNotFound is returned when a terminal ID is not found.
	ErrTerminalNotFound = errors.New("terminal not found")

	// ErrProcessCommunication is returned when input cannot reach the process.
	ErrProcessCommunication = errors.New("process communication failed")

	// ErrNoProcess is returned when the terminal has no running process.
	ErrNoProcess = fmt.Errorf("%w: no active process", ErrProcessCommunication)

	// ErrInvalidShellCommand is returned when the shell command is empty.
	ErrInvalidShellCommand = errors.New("invalid shell command")

	// ErrCommandFailed reports a command that finished with a non-zero status.
	ErrCommandFailed = errors.New("command failed")

	// ErrManagerClosed is returned when operations are attempted on a closed manager.
	ErrManagerClosed = errors.New("terminal manager is closed")
)
