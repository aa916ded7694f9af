package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const notificationsPerUserCap = 200

// RedisNotificationRepository keeps the newest notifications per user in
// a capped list under liveclass:notifications:<user>.
type RedisNotificationRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisNotificationRepository(client *redis.Client) ports.NotificationRepository {
	return &RedisNotificationRepository{
		client: client,
		prefix: "liveclass:notifications:",
	}
}

func (r *RedisNotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := r.prefix + string(notification.UserID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, notificationsPerUserCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store notification in Redis: %w", err)
	}
	return nil
}

func (r *RedisNotificationRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.Notification, error) {
	items, err := r.client.LRange(ctx, r.prefix+string(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	out := make([]*domain.Notification, 0, len(items))
	for _, item := range items {
		var n domain.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, nil
}
