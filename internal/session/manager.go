package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reop/addressfinder/internal/logger"
)

// Manager keeps sessions in memory by id and expires idle ones.
type Manager struct {
	historyLimit int
	idleTimeout  time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(historyLimit int, idleTimeout time.Duration) *Manager {
	return &Manager{
		historyLimit: historyLimit,
		idleTimeout:  idleTimeout,
		now:          time.Now,
		sessions:     make(map[string]*Session),
	}
}

// Create starts a new session with a random id.
func (m *Manager) Create(mode Mode) *Session {
	s := New(uuid.NewString(), mode, m.historyLimit)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// GetOrCreate returns the session with id, creating it when missing. Used
// by the voice agent, which names its own session ids.
func (m *Manager) GetOrCreate(id string, mode Mode) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Touch()
		return s
	}
	s := New(id, mode, m.historyLimit)
	m.sessions[s.ID] = s
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.Touch()
	return s, nil
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expire removes sessions idle for longer than the idle timeout and returns
// how many were removed.
func (m *Manager) Expire() int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run expires idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	log := logger.GetLogger("session")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Expire(); n > 0 {
				log.Infof("만료된 세션 %d개 정리 (남은 세션: %d)", n, m.Len())
			}
		}
	}
}
