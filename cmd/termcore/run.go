package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/termcore/internal/config"
	"github.com/dshills/termcore/internal/logging"
	"github.com/dshills/termcore/internal/pty"
	"github.com/dshills/termcore/internal/scrollback"
	"github.com/dshills/termcore/internal/session"
	"github.com/dshills/termcore/internal/terminal"
	"github.com/dshills/termcore/internal/theme"
)

// tick is the period of the terminal update loop.
const tick = 20 * time.Millisecond

type runOptions struct {
	shell       string
	dir         string
	backend     string
	theme       string
	template    string
	metricsAddr string
	noColor     bool
}

func newRunCmd(a *app) *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive shell session",
		Long: `Start a shell and relay lines typed on stdin to it.

Every command line is tracked: its output and duration are recorded into a
session that is saved when the shell exits. Long-running commands are
bookmarked automatically.

Exit codes, and the bookmarks for failed commands, need a shell that
reports them with OSC 133;D. For bash a PROMPT_COMMAND hook is installed
unless terminal.shell_integration is off; other shells need their own
integration. Without it a command finishes after output goes quiet and
its outcome is recorded as unknown.

Examples:
  termcore run
  termcore run --shell zsh --dir ~/src
  termcore run --backend pipe
  termcore run --template dev --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx, o, os.Stdin, os.Stdout)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.shell, "shell", "s", "", "Shell command (overrides terminal.default_shell)")
	f.StringVarP(&o.dir, "dir", "d", "", "Starting directory")
	f.StringVar(&o.backend, "backend", "", "Process backend (auto, pty, pipe)")
	f.StringVar(&o.theme, "theme", "", "Color theme")
	f.StringVarP(&o.template, "template", "t", "", "Session template")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.BoolVar(&o.noColor, "no-color", false, "Disable colored output")
	return cmd
}

func (a *app) run(ctx context.Context, o runOptions, stdin *os.File, stdout *os.File) error {
	cfg := a.cfg
	if o.shell != "" {
		cfg.Terminal.DefaultShell = o.shell
	}
	if o.backend == "" {
		o.backend = cfg.Terminal.Backend
	}
	backend, err := pty.ParseBackend(o.backend)
	if err != nil {
		return err
	}
	spawner, err := pty.NewSpawnerFor(backend)
	if err != nil {
		return err
	}

	th, err := resolveTheme(cfg.Theme, o.theme)
	if err != nil {
		return err
	}
	colored := !o.noColor && term.IsTerminal(int(stdout.Fd()))
	interactive := term.IsTerminal(int(stdin.Fd()))

	reg := prometheus.NewRegistry()
	metrics, err := terminal.NewMetrics(reg)
	if err != nil {
		return err
	}
	if o.metricsAddr != "" {
		srv := serveMetrics(o.metricsAddr, reg, a.log)
		defer func() { _ = srv.Close() }()
	}

	store, err := session.OpenStore(cfg.Session, cfg.SessionDir())
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	sessions := session.NewManager(session.ConfigFrom(cfg.Session), store, logging.WithComponent(a.log, "session"))
	if err := sessions.StartAutoSave(); err != nil {
		return err
	}
	defer sessions.StopAutoSave()

	tcfg := terminal.ConfigFrom(cfg.Terminal)
	if cols, rows, err := term.GetSize(int(stdout.Fd())); err == nil {
		tcfg.Cols, tcfg.Rows = uint16(cols), uint16(rows)
	}
	terms := terminal.NewManager(tcfg, spawner,
		terminal.WithLogger(logging.WithComponent(a.log, "terminal")),
		terminal.WithMetrics(metrics),
	)
	defer func() {
		if err := terms.Shutdown(); err != nil {
			a.log.Warn().Err(err).Msg("terminal shutdown")
		}
	}()

	session.NewRecorder(sessions, o.template == "", a.log).Attach(terms.Bus())
	sub := terms.Subscribe(1024)
	defer sub.Close()

	topts := terminal.Options{WorkingDir: o.dir}
	var tmpl session.Template
	if o.template != "" {
		var ok bool
		if tmpl, ok = sessions.Template(o.template); !ok {
			return fmt.Errorf("%w: %s", session.ErrTemplateNotFound, o.template)
		}
		if topts.WorkingDir == "" {
			topts.WorkingDir = tmpl.WorkingDirectory
		}
		topts.Env = tmpl.Environment
	}
	t, err := terms.CreateWith(topts)
	if err != nil {
		return err
	}
	if o.template != "" {
		_, startup, err := sessions.CreateFromTemplate(o.template, t.ID())
		if err != nil {
			return err
		}
		for _, line := range startup {
			if err := terms.SendInputTo(t.ID(), inputLine(line)); err != nil {
				return err
			}
		}
	}

	if w, err := config.Watch(a.settingsPath(), func(c *config.Config, err error) {
		if err != nil {
			a.log.Warn().Err(err).Msg("config reload failed")
			return
		}
		sessions.SetRules(session.ConfigFrom(c.Session).Rules)
		a.log.Info().Msg("config reloaded")
	}); err != nil {
		a.log.Debug().Err(err).Msg("config watch disabled")
	} else {
		defer func() { _ = w.Close() }()
	}

	out := &printer{w: stdout, theme: th, color: colored, echo: !interactive}
	lines := readLines(stdin)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	cols, rows := tcfg.Cols, tcfg.Rows
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				// end of input asks the shell to exit; the loop ends on its exit event
				lines = nil
				line = inputLine("exit")
			}
			if err := terms.SendInputTo(t.ID(), line); err != nil {
				a.log.Warn().Err(err).Msg("send input")
			}

		case ev := <-sub.C():
			if ev.TerminalID != t.ID() {
				continue
			}
			switch ev.Kind {
			case terminal.EventOutputReceived:
				out.line(ev.Text, ev.LineType)
			case terminal.EventTitleChanged:
				out.title(ev.Title)
			case terminal.EventProcessExited:
				logExit(a.log, terms, ev)
				if ev.Code != 0 {
					return &exitError{code: ev.Code}
				}
				return nil
			}

		case <-ticker.C:
			terms.Update()
			out.pending(t.Pending())
			if c, r, err := term.GetSize(int(stdout.Fd())); err == nil && (uint16(c) != cols || uint16(r) != rows) {
				cols, rows = uint16(c), uint16(r)
				if err := terms.Resize(t.ID(), cols, rows); err != nil && !errors.Is(err, pty.ErrInvalidSize) {
					a.log.Debug().Err(err).Msg("resize")
				}
			}
		}
	}
}

func logExit(log zerolog.Logger, terms *terminal.Manager, ev terminal.Event) {
	st := terms.Statistics()
	log.Debug().
		Int("code", ev.Code).
		Int("lines", st.Lines).
		Uint64("bytes_read", st.PTY.BytesRead).
		Uint64("bytes_written", st.PTY.BytesWritten).
		Msg("shell exited")
}

// readLines delivers stdin one terminated line at a time until EOF. The
// terminal only submits a command once its newline arrives.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- inputLine(sc.Text())
		}
	}()
	return ch
}

func inputLine(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}

func resolveTheme(tc config.ThemeConfig, override string) (*theme.Theme, error) {
	if tc.File != "" {
		t, err := theme.LoadFile(tc.File)
		if err != nil {
			return nil, err
		}
		theme.Register(t)
	}
	name := tc.Name
	if override != "" {
		name = override
	}
	if name == "" {
		return theme.Default(), nil
	}
	return theme.Lookup(name)
}

// printer writes terminal output lines to the user's terminal.
type printer struct {
	w     io.Writer
	theme *theme.Theme
	color bool

	// echo prints input lines, which an interactive tty already shows.
	echo bool

	shown      string
	shownWidth int
}

func (p *printer) line(text string, typ scrollback.LineType) {
	if typ == scrollback.LineInput && !p.echo {
		return
	}
	p.shown, p.shownWidth = "", 0
	if !p.color {
		fmt.Fprintf(p.w, "%s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s%s\x1b[0m\n", fg(p.colorFor(typ)), text)
}

// pending shows a partial line such as a prompt once per change. A
// narrower text blanks the cells the previous one left behind.
func (p *printer) pending(text string) {
	if text == "" || text == p.shown {
		return
	}
	width := scrollback.TextLine(scrollback.LineNormal, text).Width()
	fmt.Fprintf(p.w, "\r%s", text)
	if pad := p.shownWidth - width; pad > 0 {
		fmt.Fprint(p.w, strings.Repeat(" ", pad))
		if p.color {
			fmt.Fprintf(p.w, "\x1b[%dD", pad)
		}
	}
	p.shown, p.shownWidth = text, width
}

func (p *printer) title(title string) {
	if p.color {
		fmt.Fprintf(p.w, "\x1b]0;%s\x07", title)
	}
}

func (p *printer) colorFor(typ scrollback.LineType) colorful.Color {
	switch typ {
	case scrollback.LineError:
		return p.theme.Palette[9]
	case scrollback.LineInput:
		return p.theme.Palette[6]
	case scrollback.LineSystem, scrollback.LineDebug:
		return p.theme.Palette[8]
	default:
		return p.theme.Foreground
	}
}

func fg(c colorful.Color) string {
	r, g, b := c.RGB255()
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", r, g, b)
}
