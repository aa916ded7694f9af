package services

import (
	"context"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/pkg/retry"
	"liveclass/pkg/utils"

	"go.uber.org/zap"
)

// notificationService persists a notification record and pushes it to the
// user's realtime channel. Fire-and-forget: callers never see an error.
type notificationService struct {
	repo     ports.NotificationRepository
	pusher   ports.UserPusher // may be nil
	retryCfg retry.Config
	logger   *zap.SugaredLogger
}

func NewNotificationService(
	repo ports.NotificationRepository,
	pusher ports.UserPusher,
	logger *zap.SugaredLogger,
) ports.Notifier {
	return &notificationService{
		repo:     repo,
		pusher:   pusher,
		retryCfg: retry.DefaultConfig(),
		logger:   logger,
	}
}

func (s *notificationService) Notify(ctx context.Context, userID domain.UserID, title, message string) {
	notification := &domain.Notification{
		ID:        domain.NotificationID(utils.GenerateNotificationID()),
		UserID:    userID,
		Title:     title,
		Message:   message,
		CreatedAt: utils.Now(),
	}

	err := retry.Do(ctx, s.retryCfg, func() error {
		return s.repo.Create(ctx, notification)
	})
	if err != nil {
		s.logger.Warnw("failed to persist notification",
			"user_id", userID, "title", title, "error", err)
		// Still push; a lost record should not cost the realtime notice.
	}

	if s.pusher != nil {
		s.pusher.SendToUser(userID, ports.EventNotification, notification)
	}
}
