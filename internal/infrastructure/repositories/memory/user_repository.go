package memory

import (
	"context"
	"sync"

	"liveclass/internal/core/domain"
)

type MemoryUserRepository struct {
	users      map[domain.UserID]*domain.User
	byUsername map[string]domain.UserID
	mu         sync.RWMutex
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:      make(map[domain.UserID]*domain.User),
		byUsername: make(map[string]domain.UserID),
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return domain.ErrUserExists
	}

	u := *user
	r.users[user.ID] = &u
	r.byUsername[user.Username] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byUsername[username]
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	u := *r.users[id]
	return &u, nil
}
