// Package session maps opaque session identifiers to persistent agents.
//
// Sessions are process-local: created on first use, destroyed on explicit
// delete or, when a TTL is configured, by idle eviction. The map is guarded
// by a read/write lock so lookups on different sessions never contend;
// requests on the same session serialize through the agent's own mutex.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kadirpekel/stentor/pkg/agent"
	"github.com/kadirpekel/stentor/pkg/observability"
)

// Factory builds a fresh agent for a new session.
type Factory func() (*agent.Agent, error)

// Session is one conversation context. The agent inside owns the history.
type Session struct {
	ID        string
	Agent     *agent.Agent
	CreatedAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// LastUsed returns the time of the most recent activity.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Manager owns the session map.
type Manager struct {
	factory Factory

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager(factory Factory) *Manager {
	return &Manager{
		factory:  factory,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for an id, creating it with a fresh agent
// on first reference. Concurrent callers for the same new id race on the
// write lock; the loser discards its agent and adopts the winner's session.
func (m *Manager) GetOrCreate(id string) (*Session, error) {
	m.mu.RLock()
	sess, exists := m.sessions[id]
	m.mu.RUnlock()
	if exists {
		sess.Touch()
		return sess, nil
	}

	a, err := m.factory()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		_ = a.Close()
		existing.Touch()
		return existing, nil
	}

	now := time.Now()
	sess = &Session{
		ID:        id,
		Agent:     a,
		CreatedAt: now,
		lastUsed:  now,
	}
	m.sessions[id] = sess
	count := len(m.sessions)
	m.mu.Unlock()

	slog.Debug("Session created", "session_id", id, "sessions", count)
	m.recordCount(count)
	return sess, nil
}

// Get returns an existing session without creating one.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, exists := m.sessions[id]
	return sess, exists
}

// Delete removes a session, resetting the agent's history first so retained
// message references are released promptly. It reports whether the session
// existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	sess, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !exists {
		return false
	}

	sess.Agent.ResetHistory()
	_ = sess.Agent.Close()

	slog.Debug("Session deleted", "session_id", id, "sessions", count)
	m.recordCount(count)
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the live session ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// StartEviction runs the idle eviction loop until the context is canceled.
// A non-positive TTL disables eviction and returns immediately.
func (m *Manager) StartEviction(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.evictIdle(ttl)
			}
		}
	}()
}

// evictIdle deletes every session idle longer than the TTL.
func (m *Manager) evictIdle(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)

	m.mu.RLock()
	var stale []string
	for id, sess := range m.sessions {
		if sess.LastUsed().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		if m.Delete(id) {
			slog.Info("Evicted idle session", "session_id", id, "ttl", ttl)
		}
	}
}

// Close deletes every session. Used on shutdown.
func (m *Manager) Close() {
	for _, id := range m.IDs() {
		m.Delete(id)
	}
}

func (m *Manager) recordCount(count int) {
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.SetSessionCount(context.Background(), count)
	}
}
