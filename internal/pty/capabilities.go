package pty

import (
	"fmt"
	"strings"
)

// Capabilities reports host support for terminal features. Callers must
// check these instead of assuming every platform behaves alike.
type Capabilities struct {
	Resize               bool        `json:"supports_resize"`
	Color                bool        `json:"supports_colors"`
	Unicode              bool        `json:"supports_unicode"`
	JobControl           bool        `json:"supports_job_control"`
	EnvironmentInjection bool        `json:"supports_environment"`
	MaxCols              uint16      `json:"max_cols"`
	MaxRows              uint16      `json:"max_rows"`
	Shells               []ShellInfo `json:"available_shells"`
}

// Backend selects a Spawner implementation.
type Backend string

const (
	// BackendAuto uses the native pseudo-terminal for the host.
	BackendAuto Backend = "auto"
	// BackendPTY is an alias of BackendAuto.
	BackendPTY Backend = "pty"
	// BackendPipe uses plain pipes with stderr kept separate.
	BackendPipe Backend = "pipe"
)

// ParseBackend parses a backend name. Empty means auto.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "", BackendAuto, BackendPTY:
		return BackendAuto, nil
	case BackendPipe:
		return BackendPipe, nil
	default:
		return "", fmt.Errorf("%w: unknown backend %q", ErrOther, s)
	}
}

// NewSpawner returns the native spawner for the running OS. It returns
// ErrUnsupportedPlatform when the host has no usable pseudo-terminal.
func NewSpawner() (Spawner, error) {
	return newPlatformSpawner()
}

// NewSpawnerFor returns the spawner for backend.
func NewSpawnerFor(backend Backend) (Spawner, error) {
	if backend == BackendPipe {
		return NewPipeSpawner(), nil
	}
	return NewSpawner()
}

// HostCapabilities reports the capabilities of the native spawner. When no
// pseudo-terminal is available it reports the pipe fallback's.
func HostCapabilities() Capabilities {
	s, err := NewSpawner()
	if err != nil {
		return NewPipeSpawner().Capabilities()
	}
	return s.Capabilities()
}
