package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultAcquireTimeout = 30 * time.Second
	acquireRetryDelay     = 100 * time.Millisecond
)

// unlockScript deletes the key only while it still carries our value,
// so a late former holder can never release the next holder's lock.
const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// DistributedLock is a Redis-backed lease. Each handle carries a random
// holder value; while held, a background goroutine renews the TTL at
// half-life so a live holder never expires mid-work.
type DistributedLock struct {
	client    *redis.Client
	key       string
	value     string
	ttl       time.Duration
	stopRenew chan struct{}
}

// NewDistributedLock creates a lock handle; nothing is held until
// Lock or TryLock succeeds.
func NewDistributedLock(client *redis.Client, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client:    client,
		key:       key,
		value:     newHolderValue(),
		ttl:       ttl,
		stopRenew: make(chan struct{}),
	}
}

func newHolderValue() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Lock blocks until the lock is acquired or the default timeout passes.
func (l *DistributedLock) Lock(ctx context.Context) error {
	return l.LockWithTimeout(ctx, defaultAcquireTimeout)
}

// LockWithTimeout polls for the lock until acquired, the timeout
// passes, or ctx is cancelled.
func (l *DistributedLock) LockWithTimeout(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultAcquireTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		acquired, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("lock acquisition timeout")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquireRetryDelay):
		}
	}
}

// TryLock makes a single non-blocking attempt. On success the renewal
// goroutine starts immediately.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to try lock: %w", err)
	}
	if acquired {
		go l.renew(ctx)
	}
	return acquired, nil
}

// Unlock stops renewal and releases the lock. Releasing a lock this
// handle no longer holds is an error.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	close(l.stopRenew)

	result, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to unlock: %w", err)
	}
	if n, ok := result.(int64); !ok || n == 0 {
		return fmt.Errorf("lock was not held by this instance")
	}
	return nil
}

func (l *DistributedLock) renew(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			current, err := l.client.Get(ctx, l.key).Result()
			if err != nil || current != l.value {
				// Expired or taken over; this handle no longer owns it.
				return
			}
			l.client.Expire(ctx, l.key, l.ttl)
		case <-l.stopRenew:
			return
		case <-ctx.Done():
			return
		}
	}
}

// IsLocked reports whether any holder currently has the lock.
func (l *DistributedLock) IsLocked(ctx context.Context) (bool, error) {
	exists, err := l.client.Exists(ctx, l.key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// LockManager hands out locks under a shared key prefix.
type LockManager struct {
	client *redis.Client
	prefix string
}

func NewLockManager(client *redis.Client, prefix string) *LockManager {
	return &LockManager{client: client, prefix: prefix}
}

// AcquireLock builds a lock handle for the prefixed key. The caller
// still has to Lock or TryLock it.
func (lm *LockManager) AcquireLock(key string, ttl time.Duration) *DistributedLock {
	return NewDistributedLock(lm.client, lm.prefix+key, ttl)
}
