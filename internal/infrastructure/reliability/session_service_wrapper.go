package reliability

import (
	"context"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/pkg/circuitbreaker"
	"liveclass/pkg/retry"

	"go.uber.org/zap"
)

// SessionServiceWrapper decorates a SessionService with retry and a
// circuit breaker, for deployments where the session store sits on the
// network. Business rejections are never retried; only infrastructure
// failures are.
type SessionServiceWrapper struct {
	service ports.SessionService
	logger  *zap.SugaredLogger

	retryConfig    retry.Config
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewSessionServiceWrapper(
	service ports.SessionService,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *SessionServiceWrapper {
	// A denied operation is an answer, not an outage.
	retryConfig.NonRetryable = append(retryConfig.NonRetryable,
		domain.ErrForbidden,
		domain.ErrSessionEnded,
		domain.ErrSessionNotFound,
		domain.ErrCourseNotFound,
	)

	wrapper := &SessionServiceWrapper{
		service:        service,
		logger:         logger,
		retryConfig:    retryConfig,
		circuitBreaker: circuitbreaker.New(cbConfig),
	}

	wrapper.circuitBreaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("session store circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return wrapper
}

func (w *SessionServiceWrapper) execute(ctx context.Context, fn func() (*domain.LiveSession, error)) (*domain.LiveSession, error) {
	var result *domain.LiveSession
	err := retry.Do(ctx, w.retryConfig, func() error {
		return w.circuitBreaker.Execute(ctx, func() error {
			var innerErr error
			result, innerErr = fn()
			return innerErr
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (w *SessionServiceWrapper) Start(ctx context.Context, courseID domain.CourseID, tutorID domain.UserID) (*domain.LiveSession, error) {
	if !w.retryConfig.Enabled {
		return w.service.Start(ctx, courseID, tutorID)
	}
	// Start is idempotent, so a retried call lands on the same session.
	return w.execute(ctx, func() (*domain.LiveSession, error) {
		return w.service.Start(ctx, courseID, tutorID)
	})
}

func (w *SessionServiceWrapper) End(ctx context.Context, sessionID domain.SessionID, tutorID domain.UserID) (*domain.LiveSession, error) {
	if !w.retryConfig.Enabled {
		return w.service.End(ctx, sessionID, tutorID)
	}
	return w.execute(ctx, func() (*domain.LiveSession, error) {
		return w.service.End(ctx, sessionID, tutorID)
	})
}

func (w *SessionServiceWrapper) Join(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (*domain.LiveSession, error) {
	if !w.retryConfig.Enabled {
		return w.service.Join(ctx, sessionID, userID)
	}
	return w.execute(ctx, func() (*domain.LiveSession, error) {
		return w.service.Join(ctx, sessionID, userID)
	})
}

func (w *SessionServiceWrapper) Leave(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (*domain.LiveSession, error) {
	if !w.retryConfig.Enabled {
		return w.service.Leave(ctx, sessionID, userID)
	}
	return w.execute(ctx, func() (*domain.LiveSession, error) {
		return w.service.Leave(ctx, sessionID, userID)
	})
}

// Reads pass through: a stale read fails loud at the next mutation.

func (w *SessionServiceWrapper) Get(ctx context.Context, sessionID domain.SessionID) (*domain.LiveSession, error) {
	return w.service.Get(ctx, sessionID)
}

func (w *SessionServiceWrapper) ListByCourse(ctx context.Context, courseID domain.CourseID) ([]*domain.LiveSession, error) {
	return w.service.ListByCourse(ctx, courseID)
}

// CircuitBreakerStats exposes breaker state for diagnostics endpoints.
func (w *SessionServiceWrapper) CircuitBreakerStats() circuitbreaker.Stats {
	return w.circuitBreaker.GetStats()
}
