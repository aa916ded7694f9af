package services

import (
	"context"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/pkg/utils"

	"go.uber.org/zap"
)

// SessionJanitor force-ends active sessions whose roster has stayed empty
// past the idle timeout, e.g. a tutor who disconnected without calling end.
// Without it an abandoned session would stay "active" forever.
type SessionJanitor struct {
	sessionRepo ports.SessionRepository
	sessions    ports.SessionService
	idleTimeout time.Duration
	interval    time.Duration

	emptySince map[domain.SessionID]time.Time
	stopChan   chan struct{}

	logger *zap.SugaredLogger
}

func NewSessionJanitor(
	sessionRepo ports.SessionRepository,
	sessions ports.SessionService,
	idleTimeout, interval time.Duration,
	logger *zap.SugaredLogger,
) *SessionJanitor {
	return &SessionJanitor{
		sessionRepo: sessionRepo,
		sessions:    sessions,
		idleTimeout: idleTimeout,
		interval:    interval,
		emptySince:  make(map[domain.SessionID]time.Time),
		stopChan:    make(chan struct{}),
		logger:      logger,
	}
}

// Start runs the sweep loop until Stop is called. Disabled when the idle
// timeout is zero.
func (j *SessionJanitor) Start() {
	if j.idleTimeout <= 0 {
		return
	}
	go j.loop()
	j.logger.Infow("session janitor started",
		"idle_timeout", j.idleTimeout, "sweep_interval", j.interval)
}

func (j *SessionJanitor) Stop() {
	select {
	case <-j.stopChan:
	default:
		close(j.stopChan)
	}
}

func (j *SessionJanitor) loop() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ticker.C:
			j.Sweep(context.Background())
		}
	}
}

// Sweep examines every active session once.
func (j *SessionJanitor) Sweep(ctx context.Context) {
	active, err := j.sessionRepo.ListActive(ctx)
	if err != nil {
		j.logger.Warnw("janitor sweep failed", "error", err)
		return
	}

	now := utils.Now()
	seen := make(map[domain.SessionID]struct{}, len(active))

	for _, session := range active {
		seen[session.ID] = struct{}{}

		if len(session.Roster) > 0 {
			delete(j.emptySince, session.ID)
			continue
		}

		since, tracked := j.emptySince[session.ID]
		if !tracked {
			j.emptySince[session.ID] = now
			continue
		}
		if now.Sub(since) < j.idleTimeout {
			continue
		}

		// End on behalf of the owning tutor.
		if _, err := j.sessions.End(ctx, session.ID, session.Tutor); err != nil {
			j.logger.Warnw("janitor failed to end idle session",
				"session_id", session.ID, "error", err)
			continue
		}
		delete(j.emptySince, session.ID)
		j.logger.Infow("idle session force-ended",
			"session_id", session.ID, "course_id", session.CourseID, "empty_for", now.Sub(since))
	}

	// Drop tracking for sessions that ended through the normal path.
	for id := range j.emptySince {
		if _, ok := seen[id]; !ok {
			delete(j.emptySince, id)
		}
	}
}
