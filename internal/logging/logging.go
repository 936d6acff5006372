// Package logging provides the structured logger shared by termcore components.
//
// Loggers are plain zerolog.Logger values. Components derive a child logger
// with WithComponent and keep it for their lifetime.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Format selects the log encoding.
type Format string

const (
	// FormatConsole writes human-readable lines.
	FormatConsole Format = "console"
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
)

// Config configures the root logger.
type Config struct {
	// Level is the minimum level name: debug, info, warn or error.
	Level string
	// Format is the output encoding. Defaults to console.
	Format Format
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Name is attached to every entry as the "app" field.
	Name string
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: FormatConsole,
		Output: os.Stderr,
		Name:   "termcore",
	}
}

// ParseLevel parses a level name. Unknown names map to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New creates a root logger from cfg.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: !isTerminal(out)}
	}

	ctx := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Name != "" {
		ctx = ctx.Str("app", cfg.Name)
	}
	return ctx.Logger()
}

// WithComponent returns a child logger tagged with the module name.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("module", component).Logger()
}

// WithField returns a child logger carrying one extra field.
func WithField(l zerolog.Logger, key string, value any) zerolog.Logger {
	return l.With().Interface(key, value).Logger()
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
