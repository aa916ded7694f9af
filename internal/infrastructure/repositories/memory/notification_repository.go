package memory

import (
	"context"
	"sync"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
)

type MemoryNotificationRepository struct {
	byUser map[domain.UserID][]*domain.Notification
	mu     sync.RWMutex
}

func NewMemoryNotificationRepository() ports.NotificationRepository {
	return &MemoryNotificationRepository{
		byUser: make(map[domain.UserID][]*domain.Notification),
	}
}

func (r *MemoryNotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := *notification
	// Newest first.
	r.byUser[n.UserID] = append([]*domain.Notification{&n}, r.byUser[n.UserID]...)
	return nil
}

func (r *MemoryNotificationRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Notification, 0, len(r.byUser[userID]))
	for _, n := range r.byUser[userID] {
		c := *n
		out = append(out, &c)
	}
	return out, nil
}
