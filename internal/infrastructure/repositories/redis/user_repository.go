package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisUserRepository stores accounts under liveclass:user:<id> with a
// username index at liveclass:username:<name>.
type RedisUserRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisUserRepository(client *redis.Client) ports.UserRepository {
	return &RedisUserRepository{
		client: client,
		prefix: "liveclass:",
	}
}

func (r *RedisUserRepository) userKey(id domain.UserID) string {
	return r.prefix + "user:" + string(id)
}

func (r *RedisUserRepository) usernameKey(username string) string {
	return r.prefix + "username:" + username
}

func (r *RedisUserRepository) Create(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	// The username index doubles as the uniqueness check.
	ok, err := r.client.SetNX(ctx, r.usernameKey(user.Username), string(user.ID), 0).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve username: %w", err)
	}
	if !ok {
		return domain.ErrUserExists
	}

	if err := r.client.Set(ctx, r.userKey(user.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store user in Redis: %w", err)
	}
	return nil
}

func (r *RedisUserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	data, err := r.client.Get(ctx, r.userKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Redis: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

func (r *RedisUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	id, err := r.client.Get(ctx, r.usernameKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve username: %w", err)
	}
	return r.GetByID(ctx, domain.UserID(id))
}
