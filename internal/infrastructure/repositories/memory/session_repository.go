package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
)

type MemorySessionRepository struct {
	sessions map[domain.SessionID]*domain.LiveSession
	mu       sync.RWMutex
}

func NewMemorySessionRepository() ports.SessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[domain.SessionID]*domain.LiveSession),
	}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *domain.LiveSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("session already exists: %s", session.ID)
	}
	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.LiveSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (r *MemorySessionRepository) Update(ctx context.Context, session *domain.LiveSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; !exists {
		return domain.ErrSessionNotFound
	}
	r.sessions[session.ID] = session.Clone()
	return nil
}

func (r *MemorySessionRepository) ActiveByCourse(ctx context.Context, courseID domain.CourseID) (*domain.LiveSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, session := range r.sessions {
		if session.CourseID == courseID && session.Status == domain.SessionActive {
			return session.Clone(), nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (r *MemorySessionRepository) ListByCourse(ctx context.Context, courseID domain.CourseID) ([]*domain.LiveSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.LiveSession
	for _, session := range r.sessions {
		if session.CourseID == courseID {
			out = append(out, session.Clone())
		}
	}
	// Most recent first.
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (r *MemorySessionRepository) ListActive(ctx context.Context) ([]*domain.LiveSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.LiveSession
	for _, session := range r.sessions {
		if session.Status == domain.SessionActive {
			out = append(out, session.Clone())
		}
	}
	return out, nil
}
