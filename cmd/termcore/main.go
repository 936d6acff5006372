// Package main is the entry point for the termcore command.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/termcore/internal/config"
	"github.com/dshills/termcore/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// exitError carries a child process exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("process exited with code %d", e.code) }

func main() {
	os.Exit(execute())
}

func execute() int {
	err := newRootCmd().Execute()
	var ee *exitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ee):
		return ee.code
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
}

// app is the state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "termcore",
		Short: "Terminal sessions with command tracking",
		Long: `termcore runs shells behind a pseudo-terminal (or plain pipes), tracks
the commands typed into them and records each shell session.

Sessions are saved on exit and can be listed and inspected later.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format (console, json)")

	root.AddCommand(
		newRunCmd(a),
		newShellsCmd(),
		newSessionsCmd(a),
		newThemesCmd(a),
		newConfigCmd(a),
	)
	return root
}

// init loads the configuration and builds the root logger. Flags
// override the file and the environment.
func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	a.cfg = cfg

	lc := logging.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.Format = logging.Format(cfg.Log.Format)
	a.log = logging.New(lc)
	return nil
}

// settingsPath returns the file the configuration was read from.
func (a *app) settingsPath() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.DefaultPath()
}
