package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/pkg/distributed"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// presenceTTL bounds how long a crashed instance can leave ghosts in
// the shared registry before their keys expire.
const (
	presenceTTL = 5 * time.Minute
	setTTL      = 10 * time.Minute
)

// presenceRecord is what we store per online user.
type presenceRecord struct {
	InstanceID string           `json:"instance_id"`
	SessionID  domain.SessionID `json:"session_id,omitempty"`
	SeenAt     int64            `json:"seen_at"`
}

// PresenceRegistry mirrors who is in which room, and on which
// instance, into Redis. It answers the cross-instance questions the
// in-memory hub cannot: where is a user connected, and who is in a
// session across the whole fleet.
type PresenceRegistry struct {
	client      *redis.Client
	lockManager *distributed.LockManager
	instanceID  string
	logger      *zap.SugaredLogger
	prefix      string
}

func NewPresenceRegistry(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *PresenceRegistry {
	return &PresenceRegistry{
		client:      client,
		lockManager: distributed.NewLockManager(client, "liveclass:lock:"),
		instanceID:  instanceID,
		logger:      logger,
		prefix:      "liveclass:presence:",
	}
}

// Track records that userID joined sessionID on this instance.
func (r *PresenceRegistry) Track(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) error {
	record := presenceRecord{
		InstanceID: r.instanceID,
		SessionID:  sessionID,
		SeenAt:     time.Now().Unix(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal presence record: %w", err)
	}

	if err := r.client.Set(ctx, r.userKey(userID), data, presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to track presence: %w", err)
	}

	memberKey := r.sessionMembersKey(sessionID)
	if err := r.client.SAdd(ctx, memberKey, string(userID)).Err(); err != nil {
		return fmt.Errorf("failed to add user to session set: %w", err)
	}
	r.client.Expire(ctx, memberKey, setTTL)

	instanceKey := r.instanceUsersKey(r.instanceID)
	if err := r.client.SAdd(ctx, instanceKey, string(userID)).Err(); err != nil {
		return fmt.Errorf("failed to add user to instance set: %w", err)
	}
	r.client.Expire(ctx, instanceKey, setTTL)

	return nil
}

// Untrack removes userID from sessionID's shared member set. The user
// key stays until Offline so user-channel routing keeps working between
// rooms.
func (r *PresenceRegistry) Untrack(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) error {
	if err := r.client.SRem(ctx, r.sessionMembersKey(sessionID), string(userID)).Err(); err != nil {
		return fmt.Errorf("failed to remove user from session set: %w", err)
	}
	return nil
}

// Offline removes every trace of the user once their last socket on
// this instance is gone.
func (r *PresenceRegistry) Offline(ctx context.Context, userID domain.UserID) error {
	record, err := r.getRecord(ctx, userID)
	if err == nil && record.SessionID != "" {
		r.client.SRem(ctx, r.sessionMembersKey(record.SessionID), string(userID))
	}

	r.client.SRem(ctx, r.instanceUsersKey(r.instanceID), string(userID))
	return r.client.Del(ctx, r.userKey(userID)).Err()
}

// InstanceOf reports which instance a user's sockets live on, for
// cross-instance routing decisions.
func (r *PresenceRegistry) InstanceOf(ctx context.Context, userID domain.UserID) (string, error) {
	record, err := r.getRecord(ctx, userID)
	if err != nil {
		return "", err
	}
	return record.InstanceID, nil
}

// SessionMembers lists everyone in the session's room across all
// instances.
func (r *PresenceRegistry) SessionMembers(ctx context.Context, sessionID domain.SessionID) ([]domain.UserID, error) {
	ids, err := r.client.SMembers(ctx, r.sessionMembersKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session members: %w", err)
	}

	members := make([]domain.UserID, len(ids))
	for i, id := range ids {
		members[i] = domain.UserID(id)
	}
	return members, nil
}

// InstanceUsers lists every user whose sockets are on the given
// instance.
func (r *PresenceRegistry) InstanceUsers(ctx context.Context, instanceID string) ([]domain.UserID, error) {
	ids, err := r.client.SMembers(ctx, r.instanceUsersKey(instanceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get instance users: %w", err)
	}

	users := make([]domain.UserID, len(ids))
	for i, id := range ids {
		users[i] = domain.UserID(id)
	}
	return users, nil
}

// Refresh extends a user's presence TTL; call it from the socket ping
// loop so live connections never expire.
func (r *PresenceRegistry) Refresh(ctx context.Context, userID domain.UserID) error {
	return r.client.Expire(ctx, r.userKey(userID), presenceTTL).Err()
}

// CleanupInstance drops everything this instance registered, for a
// clean shutdown. Crashed instances are covered by key TTLs instead.
func (r *PresenceRegistry) CleanupInstance(ctx context.Context, instanceID string) error {
	users, err := r.InstanceUsers(ctx, instanceID)
	if err != nil {
		return err
	}

	for _, userID := range users {
		if err := r.Offline(ctx, userID); err != nil {
			r.logger.Warnw("failed to clear presence during cleanup",
				"user_id", userID,
				"error", err,
			)
		}
	}

	return r.client.Del(ctx, r.instanceUsersKey(instanceID)).Err()
}

// TrySweepLock attempts the fleet-wide lock that elects which instance
// runs the idle-session janitor. Non-blocking: losers just skip the
// sweep and let the winner's renewals hold the lock.
func (r *PresenceRegistry) TrySweepLock(ctx context.Context, ttl time.Duration) (*distributed.DistributedLock, bool, error) {
	lock := r.lockManager.AcquireLock("session-sweep", ttl)
	acquired, err := lock.TryLock(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to try sweep lock: %w", err)
	}
	return lock, acquired, nil
}

func (r *PresenceRegistry) getRecord(ctx context.Context, userID domain.UserID) (*presenceRecord, error) {
	data, err := r.client.Get(ctx, r.userKey(userID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("user %s not present", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence record: %w", err)
	}

	var record presenceRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence record: %w", err)
	}
	return &record, nil
}

func (r *PresenceRegistry) userKey(userID domain.UserID) string {
	return r.prefix + string(userID)
}

func (r *PresenceRegistry) sessionMembersKey(sessionID domain.SessionID) string {
	return fmt.Sprintf("liveclass:session:%s:members", sessionID)
}

func (r *PresenceRegistry) instanceUsersKey(instanceID string) string {
	return fmt.Sprintf("liveclass:instance:%s:users", instanceID)
}
