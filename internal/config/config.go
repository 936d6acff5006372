package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the complete termcore configuration.
type Config struct {
	Terminal TerminalConfig `toml:"terminal"`
	Session  SessionConfig  `toml:"session"`
	Log      LogConfig      `toml:"log"`
	Theme    ThemeConfig    `toml:"theme"`
}

// TerminalConfig holds terminal manager settings.
type TerminalConfig struct {
	// DefaultShell overrides the resolved shell command when set.
	DefaultShell string `toml:"default_shell" envconfig:"DEFAULT_SHELL"`

	// Backend selects the process adapter ("auto", "pty", "pipe").
	Backend string `toml:"backend" envconfig:"BACKEND"`

	// ScrollbackLines is the per-terminal line limit.
	ScrollbackLines int `toml:"scrollback_lines" envconfig:"SCROLLBACK_LINES"`

	// DefaultWorkingDir is the starting directory. Empty means the
	// process working directory.
	DefaultWorkingDir string `toml:"default_working_dir" envconfig:"DEFAULT_WORKING_DIR"`

	// EnvironmentVariables are merged over the inherited environment.
	EnvironmentVariables map[string]string `toml:"environment_variables" envconfig:"ENVIRONMENT_VARIABLES"`

	CloseOnExit  bool `toml:"close_on_exit" envconfig:"CLOSE_ON_EXIT"`
	ConfirmClose bool `toml:"confirm_close" envconfig:"CONFIRM_CLOSE"`

	// MaxBufferMemory is the per-terminal memory limit in bytes.
	MaxBufferMemory int `toml:"max_buffer_memory" envconfig:"MAX_BUFFER_MEMORY"`

	// Rendering hints for hosts. The core reads but ignores them.
	FontFamily      string `toml:"font_family" envconfig:"FONT_FAMILY"`
	FontSize        int    `toml:"font_size" envconfig:"FONT_SIZE"`
	CursorBlinkRate int    `toml:"cursor_blink_rate" envconfig:"CURSOR_BLINK_RATE"`

	// CommandIdleTimeout completes a running command after this much
	// output silence when the shell does not report completion.
	CommandIdleTimeout Duration `toml:"command_idle_timeout" envconfig:"COMMAND_IDLE_TIMEOUT"`

	HistorySize int `toml:"history_size" envconfig:"HISTORY_SIZE"`

	// ShellIntegration installs a prompt hook in shells that support one
	// so they report each command's exit code.
	ShellIntegration bool `toml:"shell_integration" envconfig:"SHELL_INTEGRATION"`
}

// SessionConfig holds session tracking and persistence settings.
type SessionConfig struct {
	// SaveDirectory holds saved sessions. Empty selects a directory
	// under the user config dir.
	SaveDirectory string `toml:"save_directory" envconfig:"SESSION_SAVE_DIRECTORY"`

	// Storage selects the store ("file", "sqlite").
	Storage string `toml:"storage" envconfig:"SESSION_STORAGE"`

	SaveOnEnd        bool     `toml:"save_on_end" envconfig:"SESSION_SAVE_ON_END"`
	AutoSaveInterval Duration `toml:"auto_save_interval" envconfig:"SESSION_AUTO_SAVE_INTERVAL"`

	// MaxHistory caps the ended-session history.
	MaxHistory int `toml:"max_history" envconfig:"SESSION_MAX_HISTORY"`

	// MaxCommandHistory caps how many logged commands seed input history.
	MaxCommandHistory int `toml:"max_command_history" envconfig:"SESSION_MAX_COMMAND_HISTORY"`

	AutoBookmarkFailures         bool     `toml:"auto_bookmark_failures" envconfig:"SESSION_AUTO_BOOKMARK_FAILURES"`
	AutoBookmarkLongCommands     Duration `toml:"auto_bookmark_long_commands" envconfig:"SESSION_AUTO_BOOKMARK_LONG_COMMANDS"`
	AutoBookmarkDirectoryChanges bool     `toml:"auto_bookmark_directory_changes" envconfig:"SESSION_AUTO_BOOKMARK_DIRECTORY_CHANGES"`
	AutoBookmarkPatterns         []string `toml:"auto_bookmark_patterns" envconfig:"SESSION_AUTO_BOOKMARK_PATTERNS"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `toml:"level" envconfig:"LOG_LEVEL"`
	Format string `toml:"format" envconfig:"LOG_FORMAT"`
}

// ThemeConfig selects the color theme.
type ThemeConfig struct {
	Name string `toml:"name" envconfig:"THEME"`

	// File optionally loads an extra TOML theme before Name is resolved.
	File string `toml:"file" envconfig:"THEME_FILE"`
}

// Duration is a time.Duration written as a Go duration string.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Terminal: TerminalConfig{
			Backend:              "auto",
			ScrollbackLines:      10000,
			EnvironmentVariables: map[string]string{},
			ConfirmClose:         true,
			MaxBufferMemory:      50 * 1024 * 1024,
			FontFamily:           "monospace",
			FontSize:             12,
			CursorBlinkRate:      500,
			CommandIdleTimeout:   Duration{750 * time.Millisecond},
			HistorySize:          1000,
			ShellIntegration:     true,
		},
		Session: SessionConfig{
			Storage:                  "file",
			SaveOnEnd:                true,
			AutoSaveInterval:         Duration{5 * time.Minute},
			MaxHistory:               1000,
			MaxCommandHistory:        10000,
			AutoBookmarkFailures:     true,
			AutoBookmarkLongCommands: Duration{30 * time.Second},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Theme: ThemeConfig{
			Name: "default",
		},
	}
}

// Dir returns the termcore directory under the user config dir.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "termcore")
}

// DefaultPath returns the default settings file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// SessionDir returns the effective session save directory.
func (c *Config) SessionDir() string {
	if c.Session.SaveDirectory != "" {
		return c.Session.SaveDirectory
	}
	return filepath.Join(Dir(), "sessions")
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	checks := []struct {
		ok   bool
		path string
		msg  string
		val  any
	}{
		{c.Terminal.ScrollbackLines > 0, "terminal.scrollback_lines", "must be positive", c.Terminal.ScrollbackLines},
		{c.Terminal.MaxBufferMemory > 0, "terminal.max_buffer_memory", "must be positive", c.Terminal.MaxBufferMemory},
		{c.Terminal.HistorySize > 0, "terminal.history_size", "must be positive", c.Terminal.HistorySize},
		{c.Terminal.CommandIdleTimeout.Duration >= 0, "terminal.command_idle_timeout", "must not be negative", c.Terminal.CommandIdleTimeout},
		{oneOf(c.Terminal.Backend, "auto", "pty", "pipe"), "terminal.backend", "must be auto, pty or pipe", c.Terminal.Backend},
		{oneOf(c.Session.Storage, "file", "sqlite"), "session.storage", "must be file or sqlite", c.Session.Storage},
		{c.Session.MaxHistory > 0, "session.max_history", "must be positive", c.Session.MaxHistory},
		{c.Session.AutoSaveInterval.Duration >= 0, "session.auto_save_interval", "must not be negative", c.Session.AutoSaveInterval},
		{oneOf(c.Log.Format, "console", "json"), "log.format", "must be console or json", c.Log.Format},
	}
	for _, chk := range checks {
		if !chk.ok {
			return &ValidationError{Path: chk.path, Message: chk.msg, Value: chk.val}
		}
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
