package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yeet-socket/yeet/internal/logging"
	"github.com/yeet-socket/yeet/internal/model"
)

// Store persists session audit records. *repository.SessionRepository
// satisfies it.
type Store interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context, limit int) ([]*model.Session, error)
	SetIdentity(ctx context.Context, id, identity string) error
	RecordPrompt(ctx context.Context, id string, failed bool) error
	Close(ctx context.Context, id string, closedAt time.Time) error
	CloseStale(ctx context.Context, closedAt time.Time) (int, error)
}

// Manager is the server-level session registry. It only bookkeeps: chat
// traffic never waits on it, and store failures are logged, not returned to
// the connection.
type Manager struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// NewManager creates a registry. store may be nil, in which case records
// live only in memory for the lifetime of the process.
func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logging.Module(logger, "session"),
		now:      time.Now,
		sessions: make(map[string]*model.Session),
	}
}

// Recover closes records left open by a previous process.
func (m *Manager) Recover(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	n, err := m.store.CloseStale(ctx, m.now())
	if err != nil {
		return err
	}
	if n > 0 {
		m.logger.Info("Closed stale sessions", zap.Int("count", n))
	}
	return nil
}

// Open registers a newly accepted connection.
func (m *Manager) Open(ctx context.Context, remoteAddr string) *model.Session {
	now := m.now()
	session := &model.Session{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		Status:     model.SessionStatusOpen,
		OpenedAt:   now,
		UpdatedAt:  now,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Create(ctx, session.Clone()); err != nil {
			m.logger.Warn("Failed to persist session", zap.String("session", session.ID), zap.Error(err))
		}
	}

	m.logger.Info("Session opened", zap.String("session", session.ID), zap.String("remote", remoteAddr))
	return session.Clone()
}

// Identify records the identity announced by the peer.
func (m *Manager) Identify(ctx context.Context, id, identity string) {
	if !m.mutate(id, func(s *model.Session) { s.Identity = identity }) {
		return
	}
	if m.store != nil {
		if err := m.store.SetIdentity(ctx, id, identity); err != nil {
			m.logger.Warn("Failed to persist identity", zap.String("session", id), zap.Error(err))
		}
	}
}

// RecordPrompt counts one prompt outcome.
func (m *Manager) RecordPrompt(ctx context.Context, id string, failed bool) {
	ok := m.mutate(id, func(s *model.Session) {
		s.Prompts++
		if failed {
			s.Failures++
		}
	})
	if !ok {
		return
	}
	if m.store != nil {
		if err := m.store.RecordPrompt(ctx, id, failed); err != nil {
			m.logger.Warn("Failed to persist prompt", zap.String("session", id), zap.Error(err))
		}
	}
}

// Close marks a session closed and drops it from the live set.
func (m *Manager) Close(ctx context.Context, id string) {
	now := m.now()

	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	if m.store != nil {
		if err := m.store.Close(ctx, id, now); err != nil {
			m.logger.Warn("Failed to persist close", zap.String("session", id), zap.Error(err))
		}
	}

	m.logger.Info("Session closed",
		zap.String("session", id),
		zap.Int("prompts", session.Prompts),
		zap.Duration("duration", now.Sub(session.OpenedAt)))
}

// Get returns a live session or, with a store, a historical record.
func (m *Manager) Get(ctx context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	if ok {
		session = session.Clone()
	}
	m.mu.RUnlock()

	if ok {
		return session, nil
	}
	if m.store == nil {
		return nil, model.ErrSessionNotFound
	}
	return m.store.GetByID(ctx, id)
}

// List returns sessions newest first. Without a store only live sessions
// are known.
func (m *Manager) List(ctx context.Context, limit int) ([]*model.Session, error) {
	if m.store != nil {
		sessions, err := m.store.List(ctx, limit)
		if err != nil {
			return nil, err
		}
		return m.overlayLive(sessions), nil
	}

	m.mu.RLock()
	sessions := make([]*model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].OpenedAt.Equal(sessions[j].OpenedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].OpenedAt.After(sessions[j].OpenedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// ActiveCount returns the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// overlayLive replaces stored records with the in-memory view of live
// sessions, whose counters may be ahead of a failed write.
func (m *Manager) overlayLive(sessions []*model.Session) []*model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, s := range sessions {
		if live, ok := m.sessions[s.ID]; ok {
			sessions[i] = live.Clone()
		}
	}
	return sessions
}

func (m *Manager) mutate(id string, fn func(*model.Session)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return false
	}
	fn(session)
	session.UpdatedAt = m.now()
	return true
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrSessionNotFound)
}
