package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// Key layout:
//
//	liveclass:session:<id>            JSON session record
//	liveclass:course:<id>:sessions    set of session ids for the course
//	liveclass:course:<id>:active      the course's active session id
//	liveclass:sessions:active         set of all active session ids
type RedisSessionRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionRepository(client *redis.Client) ports.SessionRepository {
	return &RedisSessionRepository{
		client: client,
		prefix: "liveclass:",
	}
}

func (r *RedisSessionRepository) sessionKey(id domain.SessionID) string {
	return r.prefix + "session:" + string(id)
}

func (r *RedisSessionRepository) courseSessionsKey(id domain.CourseID) string {
	return r.prefix + "course:" + string(id) + ":sessions"
}

func (r *RedisSessionRepository) courseActiveKey(id domain.CourseID) string {
	return r.prefix + "course:" + string(id) + ":active"
}

func (r *RedisSessionRepository) activeSetKey() string {
	return r.prefix + "sessions:active"
}

func (r *RedisSessionRepository) Create(ctx context.Context, session *domain.LiveSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.sessionKey(session.ID), data, 0)
	pipe.SAdd(ctx, r.courseSessionsKey(session.CourseID), string(session.ID))
	if session.Status == domain.SessionActive {
		pipe.Set(ctx, r.courseActiveKey(session.CourseID), string(session.ID), 0)
		pipe.SAdd(ctx, r.activeSetKey(), string(session.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.LiveSession, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session domain.LiveSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *RedisSessionRepository) Update(ctx context.Context, session *domain.LiveSession) error {
	exists, err := r.client.Exists(ctx, r.sessionKey(session.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check session in Redis: %w", err)
	}
	if exists == 0 {
		return domain.ErrSessionNotFound
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.sessionKey(session.ID), data, 0)
	if session.Status == domain.SessionEnded {
		pipe.SRem(ctx, r.activeSetKey(), string(session.ID))
		// Clear the active pointer only if it still names this session.
		pipe.Del(ctx, r.courseActiveKey(session.CourseID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update session in Redis: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) ActiveByCourse(ctx context.Context, courseID domain.CourseID) (*domain.LiveSession, error) {
	id, err := r.client.Get(ctx, r.courseActiveKey(courseID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session pointer: %w", err)
	}

	session, err := r.GetByID(ctx, domain.SessionID(id))
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionActive {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (r *RedisSessionRepository) ListByCourse(ctx context.Context, courseID domain.CourseID) ([]*domain.LiveSession, error) {
	ids, err := r.client.SMembers(ctx, r.courseSessionsKey(courseID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list course sessions: %w", err)
	}

	sessions, err := r.loadAll(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

func (r *RedisSessionRepository) ListActive(ctx context.Context) ([]*domain.LiveSession, error) {
	ids, err := r.client.SMembers(ctx, r.activeSetKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	return r.loadAll(ctx, ids)
}

func (r *RedisSessionRepository) loadAll(ctx context.Context, ids []string) ([]*domain.LiveSession, error) {
	sessions := make([]*domain.LiveSession, 0, len(ids))
	for _, id := range ids {
		session, err := r.GetByID(ctx, domain.SessionID(id))
		if err == domain.ErrSessionNotFound {
			continue // stale index entry
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}
