package session

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dshills/termcore/internal/config"
)

// Defaults for Config.
const (
	DefaultMaxHistory        = 1000
	DefaultMaxCommandHistory = 10000
)

// Config configures a session manager.
type Config struct {
	// SaveOnEnd saves a session when it ends.
	SaveOnEnd bool

	// AutoSaveInterval is the period of StartAutoSave. Zero disables it.
	AutoSaveInterval time.Duration

	// MaxHistory bounds the ended-session history.
	MaxHistory int

	// MaxCommandHistory bounds CommandHistory.
	MaxCommandHistory int

	// Rules are evaluated for every recorded command.
	Rules []Rule
}

// DefaultConfig returns the built-in session configuration.
func DefaultConfig() Config {
	return ConfigFrom(config.Default().Session)
}

// ConfigFrom maps the [session] settings section to a manager Config.
func ConfigFrom(c config.SessionConfig) Config {
	var rules []Rule
	if c.AutoBookmarkFailures {
		rules = append(rules, CommandFailure())
	}
	if d := c.AutoBookmarkLongCommands.Duration; d > 0 {
		rules = append(rules, LongCommand(d))
	}
	if c.AutoBookmarkDirectoryChanges {
		rules = append(rules, DirectoryChange())
	}
	for _, p := range c.AutoBookmarkPatterns {
		rules = append(rules, CommandPattern(p))
	}
	return Config{
		SaveOnEnd:         c.SaveOnEnd,
		AutoSaveInterval:  c.AutoSaveInterval.Duration,
		MaxHistory:        c.MaxHistory,
		MaxCommandHistory: c.MaxCommandHistory,
		Rules:             rules,
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
		m.bookmarks.now = now
	}
}

// WithBookmarks shares a bookmark manager between session managers.
func WithBookmarks(b *BookmarkManager) Option {
	return func(m *Manager) { m.bookmarks = b }
}

// Manager records commands into sessions and persists them through a
// Store. It is safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	byTerminal map[string]string
	templates  map[string]Template
	history    []HistoryEntry
	saved      map[string]string

	cfg       Config
	store     Store
	bookmarks *BookmarkManager
	log       zerolog.Logger
	now       func() time.Time

	cronMu sync.Mutex
	cron   *cron.Cron
}

// NewManager creates a manager. A nil store disables persistence.
func NewManager(cfg Config, store Store, log zerolog.Logger, opts ...Option) *Manager {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.MaxCommandHistory <= 0 {
		cfg.MaxCommandHistory = DefaultMaxCommandHistory
	}

	m := &Manager{
		sessions:   make(map[string]*Session),
		byTerminal: make(map[string]string),
		templates:  map[string]Template{DefaultTemplate: defaultTemplate()},
		saved:      make(map[string]string),
		cfg:        cfg,
		store:      store,
		bookmarks:  NewBookmarkManager(),
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bookmarks returns the manager's bookmark index.
func (m *Manager) Bookmarks() *BookmarkManager { return m.bookmarks }

// Store returns the manager's store, or nil.
func (m *Manager) Store() Store { return m.store }

// CreateSession starts an active session. An empty dir uses the current
// directory. terminalID may be empty for a detached session.
func (m *Manager) CreateSession(name, terminalID, dir, shell string) *Session {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	now := m.now()
	s := &Session{
		ID:               uuid.NewString(),
		Name:             name,
		TerminalID:       terminalID,
		CreatedAt:        now,
		LastActivity:     now,
		WorkingDirectory: dir,
		Shell:            shell,
		State:            StateActive,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	if terminalID != "" {
		m.byTerminal[terminalID] = s.ID
	}
	snap := s.Clone()
	m.mu.Unlock()

	m.log.Debug().Str("session", s.ID).Str("terminal", terminalID).Msg("session created")
	return snap
}

// CreateFromTemplate starts a session configured by a registered
// template. It returns the template's startup commands for the caller to
// send to the terminal.
func (m *Manager) CreateFromTemplate(name, terminalID string) (*Session, []string, error) {
	m.mu.RLock()
	tmpl, ok := m.templates[name]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	tmpl = tmpl.clone()

	created := m.CreateSession(tmpl.Name, terminalID, tmpl.WorkingDirectory, tmpl.Shell)

	m.mu.Lock()
	s := m.sessions[created.ID]
	s.Description = tmpl.Description
	s.Tags = tmpl.Tags
	s.InitialEnvironment = tmpl.Environment
	s.Rules = tmpl.AutoBookmark
	snap := s.Clone()
	m.mu.Unlock()

	return snap, tmpl.StartupCommands, nil
}

// RegisterTemplate adds or replaces a template.
func (m *Manager) RegisterTemplate(t Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("session: template name is required")
	}
	m.mu.Lock()
	m.templates[t.Name] = t.clone()
	m.mu.Unlock()
	return nil
}

// Template returns a registered template.
func (m *Manager) Template(name string) (Template, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[name]
	return t.clone(), ok
}

// Templates returns every template sorted by name.
func (m *Manager) Templates() []Template {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Template, 0, len(m.templates))
	for _, name := range slices.Sorted(maps.Keys(m.templates)) {
		out = append(out, m.templates[name].clone())
	}
	return out
}

// Rules returns the manager-wide auto-bookmark rules.
func (m *Manager) Rules() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.cfg.Rules)
}

// SetRules replaces the manager-wide auto-bookmark rules.
func (m *Manager) SetRules(rules []Rule) {
	m.mu.Lock()
	m.cfg.Rules = slices.Clone(rules)
	m.mu.Unlock()
}

func (m *Manager) get(id string) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// RecordCommand appends a finished command to a session and returns the
// bookmarks its rules created. A nil exitCode is an unknown outcome and
// counts as a failure.
func (m *Manager) RecordCommand(sessionID, cmd string, exitCode *int, duration time.Duration, outputSize int) ([]Bookmark, error) {
	m.mu.Lock()
	s, err := m.get(sessionID)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if s.State.Finished() {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionEnded, sessionID)
	}

	c := Command{
		Text:             cmd,
		ExecutedAt:       m.now(),
		Duration:         duration,
		WorkingDirectory: s.WorkingDirectory,
		Success:          exitCode != nil && *exitCode == 0,
		OutputSize:       outputSize,
	}
	if exitCode != nil {
		code := *exitCode
		c.ExitCode = &code
	}
	index := s.record(c)

	rules := append(slices.Clone(m.cfg.Rules), s.Rules...)
	marks := EvaluateRules(rules, c, index)
	for i := range marks {
		marks[i].SessionID = s.ID
		s.Bookmarks = append(s.Bookmarks, marks[i])
	}
	m.mu.Unlock()

	for _, b := range marks {
		m.bookmarks.Add(b, sessionID)
		m.log.Debug().Str("session", sessionID).Str("bookmark", b.Name).Msg("auto bookmark")
	}
	return marks, nil
}

// AddBookmark bookmarks a session. A negative commandIndex points at the
// next command to be recorded.
func (m *Manager) AddBookmark(sessionID, name, description string, commandIndex int, important bool, tags []string) (Bookmark, error) {
	m.mu.Lock()
	s, err := m.get(sessionID)
	if err != nil {
		m.mu.Unlock()
		return Bookmark{}, err
	}
	if commandIndex < 0 {
		commandIndex = len(s.Commands)
	}
	b := Bookmark{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		Name:             name,
		Description:      description,
		Timestamp:        m.now(),
		CommandIndex:     commandIndex,
		WorkingDirectory: s.WorkingDirectory,
		Tags:             slices.Clone(tags),
		Important:        important,
	}
	s.Bookmarks = append(s.Bookmarks, b)
	m.mu.Unlock()

	m.bookmarks.Add(b, sessionID)
	return b, nil
}

// RemoveBookmark deletes a bookmark from its session and the index.
func (m *Manager) RemoveBookmark(id string) error {
	b, ok := m.bookmarks.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBookmarkNotFound, id)
	}

	m.mu.Lock()
	if s, ok := m.sessions[b.SessionID]; ok {
		s.Bookmarks = slices.DeleteFunc(s.Bookmarks, func(v Bookmark) bool { return v.ID == id })
	}
	m.mu.Unlock()

	return m.bookmarks.Remove(id)
}

// SetWorkingDirectory updates the directory recorded with later commands.
func (m *Manager) SetWorkingDirectory(sessionID, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}
	s.WorkingDirectory = dir
	s.LastActivity = m.now()
	return nil
}

// Pause marks an active session paused. Resume reverses it.
func (m *Manager) Pause(sessionID string) error {
	return m.transition(sessionID, StateActive, StatePaused)
}

// Resume marks a paused session active.
func (m *Manager) Resume(sessionID string) error {
	return m.transition(sessionID, StatePaused, StateActive)
}

func (m *Manager) transition(id string, from, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.get(id)
	if err != nil {
		return err
	}
	if s.State != from {
		return fmt.Errorf("session %s is %s, not %s", id, s.State, from)
	}
	s.State = to
	return nil
}

// SessionForTerminal returns the most recent session bound to a terminal.
func (m *Manager) SessionForTerminal(terminalID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byTerminal[terminalID]
	if !ok {
		return nil, false
	}
	return m.sessions[id].Clone(), true
}

// Session returns a snapshot of a session.
func (m *Manager) Session(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Sessions returns snapshots of every session, oldest first.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	slices.SortFunc(out, func(a, b *Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// CommandHistory returns the most recent command texts of a session,
// oldest first, for seeding a terminal's input history.
func (m *Manager) CommandHistory(sessionID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	cmds := s.Commands
	if over := len(cmds) - m.cfg.MaxCommandHistory; over > 0 {
		cmds = cmds[over:]
	}
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Text
	}
	return out
}

// EndSession ends a session with a final state, records it in the history
// and saves it when SaveOnEnd is set.
func (m *Manager) EndSession(id string, state State) error {
	if !state.Finished() {
		return fmt.Errorf("session: %s is not a final state", state)
	}

	m.mu.Lock()
	s, err := m.get(id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if s.State.Finished() {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionEnded, id)
	}

	end := m.now()
	s.State = state
	s.Duration = end.Sub(s.CreatedAt)
	if s.TerminalID != "" && m.byTerminal[s.TerminalID] == id {
		delete(m.byTerminal, s.TerminalID)
	}
	snap := s.Clone()
	m.mu.Unlock()

	var key string
	if m.cfg.SaveOnEnd && m.store != nil {
		key, err = m.save(snap)
		if err != nil {
			m.log.Warn().Err(err).Str("session", id).Msg("save on end failed")
		}
	}

	m.mu.Lock()
	m.history = append(m.history, HistoryEntry{
		SessionID:        snap.ID,
		Name:             snap.Name,
		Start:            snap.CreatedAt,
		End:              end,
		FinalState:       state,
		Commands:         len(snap.Commands),
		Duration:         snap.Duration,
		WorkingDirectory: snap.WorkingDirectory,
		SavedAs:          key,
	})
	if over := len(m.history) - m.cfg.MaxHistory; over > 0 {
		clear(m.history[:over])
		m.history = m.history[over:]
	}
	m.mu.Unlock()

	m.log.Info().Str("session", id).Str("state", state.String()).Int("commands", len(snap.Commands)).Msg("session ended")
	return err
}

// History returns the ended-session history, oldest first.
func (m *Manager) History() []HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.history)
}

func (m *Manager) save(s *Session) (string, error) {
	key, err := m.store.Save(s)
	if err != nil {
		return "", fmt.Errorf("save session %s: %w", s.ID, err)
	}
	m.mu.Lock()
	m.saved[s.ID] = key
	m.mu.Unlock()
	return key, nil
}

// SaveSession persists a session and returns its store key.
func (m *Manager) SaveSession(id string) (string, error) {
	if m.store == nil {
		return "", ErrNoStore
	}
	snap, ok := m.Session(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return m.save(snap)
}

// SaveAll persists every session.
func (m *Manager) SaveAll() error {
	if m.store == nil {
		return ErrNoStore
	}
	var errs []error
	for _, s := range m.Sessions() {
		if _, err := m.save(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadSession reads a session from the store and adds it to the manager,
// replacing any session with the same id. Its bookmarks are indexed.
func (m *Manager) LoadSession(key string) (*Session, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	s, err := m.store.Load(key)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if old, ok := m.sessions[s.ID]; ok {
		for _, b := range old.Bookmarks {
			_ = m.bookmarks.Remove(b.ID)
		}
	}
	m.sessions[s.ID] = s
	if s.TerminalID != "" && !s.State.Finished() {
		m.byTerminal[s.TerminalID] = s.ID
	}
	m.saved[s.ID] = key
	snap := s.Clone()
	m.mu.Unlock()

	for _, b := range snap.Bookmarks {
		m.bookmarks.Add(b, snap.ID)
	}
	return snap, nil
}

// SavedKey returns the store key a session was last saved under.
func (m *Manager) SavedKey(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.saved[id]
	return k, ok
}

// StartAutoSave runs SaveAll every AutoSaveInterval until StopAutoSave.
// It does nothing when the interval is zero or no store is configured.
func (m *Manager) StartAutoSave() error {
	if m.cfg.AutoSaveInterval <= 0 || m.store == nil {
		return nil
	}

	m.cronMu.Lock()
	defer m.cronMu.Unlock()
	if m.cron != nil {
		return nil
	}

	c := cron.New()
	spec := "@every " + m.cfg.AutoSaveInterval.String()
	if _, err := c.AddFunc(spec, m.autoSave); err != nil {
		return fmt.Errorf("schedule auto-save: %w", err)
	}
	c.Start()
	m.cron = c
	m.log.Debug().Str("schedule", spec).Msg("auto-save started")
	return nil
}

func (m *Manager) autoSave() {
	if err := m.SaveAll(); err != nil {
		m.log.Warn().Err(err).Msg("auto-save failed")
	}
}

// StopAutoSave stops the auto-save schedule and waits for a running save.
func (m *Manager) StopAutoSave() {
	m.cronMu.Lock()
	c := m.cron
	m.cron = nil
	m.cronMu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
