package terminal

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/termcore/internal/config"
	"github.com/dshills/termcore/internal/event"
	"github.com/dshills/termcore/internal/pty"
)

// Config configures a terminal manager.
type Config struct {
	// DefaultShell overrides the shell command for every terminal.
	DefaultShell string

	// Shell is the shell type for new terminals.
	Shell ShellType

	// DefaultWorkingDir is the starting directory for new terminals.
	DefaultWorkingDir string

	// Env is merged over the inherited environment.
	Env map[string]string

	ScrollbackLines int
	MaxBufferMemory int
	HistorySize     int

	// CloseOnExit closes a terminal as soon as its process exits.
	CloseOnExit bool

	// ConfirmClose makes NeedsCloseConfirmation report running terminals.
	ConfirmClose bool

	// IdleTimeout completes commands after output silence.
	IdleTimeout time.Duration

	// ShellIntegration enables the completion hook for every terminal.
	ShellIntegration bool

	Cols, Rows uint16
}

// DefaultConfig returns the built-in manager configuration.
func DefaultConfig() Config {
	return ConfigFrom(config.Default().Terminal)
}

// ConfigFrom maps the [terminal] settings section to a manager Config.
func ConfigFrom(c config.TerminalConfig) Config {
	shell := ShellCustom
	if fields := strings.Fields(c.DefaultShell); len(fields) > 0 {
		shell = ParseShellType(filepath.Base(fields[0]))
	}
	return Config{
		DefaultShell:      c.DefaultShell,
		Shell:             shell,
		DefaultWorkingDir: c.DefaultWorkingDir,
		Env:               c.EnvironmentVariables,
		ScrollbackLines:   c.ScrollbackLines,
		MaxBufferMemory:   c.MaxBufferMemory,
		HistorySize:       c.HistorySize,
		CloseOnExit:       c.CloseOnExit,
		ConfirmClose:      c.ConfirmClose,
		IdleTimeout:       c.CommandIdleTimeout.Duration,
		ShellIntegration:  c.ShellIntegration,
	}
}

// Statistics summarizes every terminal the manager holds.
type Statistics struct {
	Terminals   int       `json:"total_terminals"`
	Running     int       `json:"running_terminals"`
	Exited      int       `json:"exited_terminals"`
	Failed      int       `json:"error_terminals"`
	Lines       int       `json:"total_lines"`
	MemoryBytes int       `json:"total_memory_bytes"`
	PTY         pty.Stats `json:"pty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithBus publishes events on bus instead of a private one.
func WithBus(bus *event.Bus[Event]) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithMetrics records activity on metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns a set of terminals and the active selection.
//
// Create, Close, Update and SendInput are intended for a single control
// goroutine. Read accessors and subscriptions are safe from any goroutine.
type Manager struct {
	mu        sync.RWMutex
	terminals map[string]*Terminal
	order     []string
	active    string

	cfg     Config
	ptys    *pty.Manager
	bus     *event.Bus[Event]
	metrics *Metrics
	log     zerolog.Logger
	now     func() time.Time

	closed atomic.Bool
}

// NewManager creates a manager that starts processes through spawner.
func NewManager(cfg Config, spawner pty.Spawner, opts ...Option) *Manager {
	m := &Manager{
		terminals: make(map[string]*Terminal),
		cfg:       cfg,
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus == nil {
		m.bus = event.NewBus[Event]()
	}
	if m.metrics == nil {
		m.metrics, _ = NewMetrics(nil)
	}
	m.ptys = pty.NewManager(spawner, m.log.With().Str("module", "pty").Logger())
	return m
}

// Create starts a terminal with the manager defaults. An empty name is
// replaced with "Terminal N". A process that fails to start leaves the
// terminal in StateError; only a closed manager returns an error.
func (m *Manager) Create(name string) (*Terminal, error) {
	return m.CreateWith(Options{Name: name})
}

// CreateWith starts a terminal, filling unset options from the manager
// configuration.
func (m *Manager) CreateWith(opts Options) (*Terminal, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	m.applyDefaults(&opts)
	if opts.Name == "" {
		opts.Name = fmt.Sprintf("Terminal %d", m.Count()+1)
	}

	now := m.now()
	t := newTerminal(uuid.NewString(), opts, now, m.log)
	_ = t.start(m.ptys, now)

	m.mu.Lock()
	m.terminals[t.id] = t
	m.order = append(m.order, t.id)
	if m.active == "" {
		m.active = t.id
	}
	m.mu.Unlock()

	m.metrics.active.Inc()
	m.publish(
		Event{Kind: EventCreated, TerminalID: t.id, Time: now, Name: opts.Name, Shell: t.shell, Dir: t.WorkingDirectory()},
		Event{Kind: EventStateChanged, TerminalID: t.id, Time: now, OldState: State{Kind: StateInitializing}, State: t.State()},
	)
	return t, nil
}

func (m *Manager) applyDefaults(opts *Options) {
	if opts.Shell == ShellCustom {
		opts.Shell = m.cfg.Shell
	}
	if opts.DefaultShell == "" {
		opts.DefaultShell = m.cfg.DefaultShell
	}
	if opts.WorkingDir == "" {
		opts.WorkingDir = m.cfg.DefaultWorkingDir
	}
	if opts.Env == nil {
		opts.Env = m.cfg.Env
	}
	if opts.ScrollbackLines <= 0 {
		opts.ScrollbackLines = m.cfg.ScrollbackLines
	}
	if opts.MaxBufferMemory <= 0 {
		opts.MaxBufferMemory = m.cfg.MaxBufferMemory
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = m.cfg.HistorySize
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = m.cfg.IdleTimeout
	}
	if m.cfg.ShellIntegration {
		opts.ShellIntegration = true
	}
	if opts.Cols == 0 {
		opts.Cols = m.cfg.Cols
	}
	if opts.Rows == 0 {
		opts.Rows = m.cfg.Rows
	}
}

// Close closes a terminal and reports whether it existed. Closing the
// active terminal selects the most recently created remaining one.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	t, ok := m.terminals[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.terminals, id)
	m.removeOrder(id)
	if m.active == id {
		m.active = ""
		if n := len(m.order); n > 0 {
			m.active = m.order[n-1]
		}
	}
	m.mu.Unlock()

	if err := m.release(t); err != nil {
		m.log.Debug().Err(err).Str("terminal", id).Msg("close terminal")
	}
	m.metrics.active.Dec()
	m.publish(Event{Kind: EventClosed, TerminalID: id, Time: m.now()})
	return true
}

func (m *Manager) removeOrder(id string) {
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// release closes t and frees its PTY session.
func (m *Manager) release(t *Terminal) error {
	s := t.close()
	if s == nil {
		return nil
	}
	if err := m.ptys.Remove(s.ID()); err != nil && !errors.Is(err, pty.ErrProcessNotFound) {
		return err
	}
	return nil
}

// SetActive selects the terminal that receives SendInput.
func (m *Manager) SetActive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.terminals[id]; !ok {
		return false
	}
	m.active = id
	return true
}

// Active returns the active terminal.
func (m *Manager) Active() (*Terminal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.terminals[m.active]
	return t, ok
}

// Get returns a terminal by ID.
func (m *Manager) Get(id string) (*Terminal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.terminals[id]
	return t, ok
}

// Terminals returns a copy of the terminal map.
func (m *Manager) Terminals() map[string]*Terminal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Terminal, len(m.terminals))
	for id, t := range m.terminals {
		out[id] = t
	}
	return out
}

// List returns terminals in creation order.
func (m *Manager) List() []*Terminal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Terminal, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.terminals[id])
	}
	return out
}

// Count returns the number of terminals.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terminals)
}

// SendInput sends text to the active terminal.
func (m *Manager) SendInput(text string) error {
	t, ok := m.Active()
	if !ok {
		return ErrNoActiveTerminal
	}
	return m.send(t, text)
}

// SendInputTo sends text to the terminal with id.
func (m *Manager) SendInputTo(id, text string) error {
	t, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTerminalNotFound, id)
	}
	return m.send(t, text)
}

func (m *Manager) send(t *Terminal, text string) error {
	evs, err := t.sendInput(text, m.now())
	if err != nil {
		return err
	}
	m.publish(evs...)
	return nil
}

// Resize changes a terminal's window size.
func (m *Manager) Resize(id string, cols, rows uint16) error {
	t, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTerminalNotFound, id)
	}
	return t.resize(cols, rows)
}

// NeedsCloseConfirmation reports whether closing id should be confirmed
// by the user first.
func (m *Manager) NeedsCloseConfirmation(id string) bool {
	t, ok := m.Get(id)
	return ok && m.cfg.ConfirmClose && t.State().Kind == StateRunning
}

// Update drains every terminal once and publishes the resulting events.
// It never blocks on process I/O.
func (m *Manager) Update() {
	for _, t := range m.List() {
		evs := t.update(m.now())
		if dropped := t.takeDropped(); dropped > 0 {
			m.metrics.dropped.Add(float64(dropped))
		}
		m.publish(evs...)

		if exited(evs) {
			if err := m.release(t); err != nil {
				m.log.Debug().Err(err).Str("terminal", t.id).Msg("release session")
			}
			if m.cfg.CloseOnExit {
				m.Close(t.id)
			}
		}
	}
}

func exited(evs []Event) bool {
	for _, ev := range evs {
		if ev.Kind == EventProcessExited {
			return true
		}
	}
	return false
}

// Subscribe returns a channel subscription to every terminal event.
func (m *Manager) Subscribe(buffer int) *event.Subscription[Event] {
	return m.bus.Channel("*", buffer)
}

// SubscribeFunc registers handler for topics matching pattern, such as
// "terminal.command.*".
func (m *Manager) SubscribeFunc(pattern string, handler event.Handler[Event]) uint64 {
	return m.bus.Subscribe(pattern, handler)
}

// Unsubscribe removes a SubscribeFunc registration.
func (m *Manager) Unsubscribe(id uint64) bool {
	return m.bus.Unsubscribe(id)
}

// Bus returns the event bus.
func (m *Manager) Bus() *event.Bus[Event] { return m.bus }

func (m *Manager) publish(evs ...Event) {
	for _, ev := range evs {
		m.metrics.observe(ev)
		m.bus.Publish(ev.Kind.Topic(), ev)
	}
}

// Statistics returns aggregate terminal statistics.
func (m *Manager) Statistics() Statistics {
	var st Statistics
	for _, t := range m.List() {
		st.Terminals++
		switch t.State().Kind {
		case StateRunning:
			st.Running++
		case StateExited:
			st.Exited++
		case StateError:
			st.Failed++
		}
		bs := t.BufferStats()
		st.Lines += bs.Lines
		st.MemoryBytes += bs.Memory
	}
	st.PTY = m.ptys.Stats()
	return st
}

// Capabilities reports what the manager's spawner supports.
func (m *Manager) Capabilities() pty.Capabilities {
	return m.ptys.Capabilities()
}

// Shutdown closes every terminal. Later Create calls fail with
// ErrManagerClosed.
func (m *Manager) Shutdown() error {
	if m.closed.Swap(true) {
		return nil
	}

	m.mu.Lock()
	terminals := make([]*Terminal, 0, len(m.order))
	for _, id := range m.order {
		terminals = append(terminals, m.terminals[id])
	}
	m.terminals = make(map[string]*Terminal)
	m.order = nil
	m.active = ""
	m.mu.Unlock()

	var errs []error
	now := m.now()
	for _, t := range terminals {
		if err := m.release(t); err != nil {
			errs = append(errs, fmt.Errorf("close terminal %s: %w", t.id, err))
		}
		m.metrics.active.Dec()
		m.publish(Event{Kind: EventClosed, TerminalID: t.id, Time: now})
	}
	if err := m.ptys.CloseAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
