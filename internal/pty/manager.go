package pty

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Stats summarizes PTY activity.
type Stats struct {
	SessionsCreated int    `json:"sessions_created"`
	ActiveSessions  int    `json:"active_sessions"`
	BytesRead       uint64 `json:"bytes_read"`
	BytesWritten    uint64 `json:"bytes_written"`
}

// Manager tracks sessions started through a Spawner and counts their
// traffic. It is itself a Spawner.
type Manager struct {
	spawner Spawner
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[string]Session
	created  int

	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
}

// NewManager wraps spawner.
func NewManager(spawner Spawner, log zerolog.Logger) *Manager {
	return &Manager{
		spawner:  spawner,
		log:      log,
		sessions: make(map[string]Session),
	}
}

// Spawn starts a session and registers it.
func (m *Manager) Spawn(opts SpawnOptions) (Session, error) {
	s, err := m.spawner.Spawn(opts)
	if err != nil {
		m.log.Debug().Err(err).Str("command", opts.Command).Msg("spawn failed")
		return nil, err
	}

	wrapped := m.wrap(s)

	m.mu.Lock()
	m.sessions[s.ID()] = wrapped
	m.created++
	m.mu.Unlock()

	m.log.Debug().Str("session", s.ID()).Int("pid", s.PID()).Str("command", opts.Command).Msg("session spawned")
	return wrapped, nil
}

// Capabilities returns the wrapped spawner's capabilities.
func (m *Manager) Capabilities() Capabilities {
	return m.spawner.Capabilities()
}

// Get returns a registered session.
func (m *Manager) Get(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove closes and unregisters a session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrProcessNotFound
	}
	return s.Close()
}

// CleanupDead closes and unregisters sessions whose process has exited.
func (m *Manager) CleanupDead() int {
	m.mu.Lock()
	var dead []Session
	for id, s := range m.sessions {
		if !s.IsAlive() {
			dead = append(dead, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range dead {
		_ = s.Close()
	}
	return len(dead)
}

// CloseAll closes every registered session.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]Session)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := 0
	for _, s := range m.sessions {
		if s.IsAlive() {
			active++
		}
	}
	return Stats{
		SessionsCreated: m.created,
		ActiveSessions:  active,
		BytesRead:       m.bytesRead.Load(),
		BytesWritten:    m.bytesWritten.Load(),
	}
}

func (m *Manager) wrap(s Session) Session {
	c := &countingSession{Session: s, m: m}
	if r, ok := s.(StderrReader); ok {
		return &countingStderrSession{countingSession: c, stderr: r}
	}
	return c
}

type countingSession struct {
	Session
	m *Manager
}

func (c *countingSession) Read(p []byte) (int, error) {
	n, err := c.Session.Read(p)
	c.m.bytesRead.Add(uint64(n))
	return n, err
}

func (c *countingSession) Write(p []byte) (int, error) {
	n, err := c.Session.Write(p)
	c.m.bytesWritten.Add(uint64(n))
	return n, err
}

type countingStderrSession struct {
	*countingSession
	stderr StderrReader
}

func (c *countingStderrSession) ReadStderr(p []byte) (int, error) {
	n, err := c.stderr.ReadStderr(p)
	c.m.bytesRead.Add(uint64(n))
	return n, err
}
