package ports

import (
	"context"

	"liveclass/internal/core/domain"
)

type SessionRepository interface {
	Create(ctx context.Context, session *domain.LiveSession) error
	GetByID(ctx context.Context, id domain.SessionID) (*domain.LiveSession, error)
	Update(ctx context.Context, session *domain.LiveSession) error
	// ActiveByCourse returns the course's active session or domain.ErrSessionNotFound.
	ActiveByCourse(ctx context.Context, courseID domain.CourseID) (*domain.LiveSession, error)
	ListByCourse(ctx context.Context, courseID domain.CourseID) ([]*domain.LiveSession, error)
	ListActive(ctx context.Context) ([]*domain.LiveSession, error)
}

type CourseRepository interface {
	GetByID(ctx context.Context, id domain.CourseID) (*domain.Course, error)
	// ActiveEnrollments returns student ids with an active enrollment.
	ActiveEnrollments(ctx context.Context, courseID domain.CourseID) ([]domain.UserID, error)
	// AcceptedTutorRequests returns student ids with an accepted tutor-request.
	AcceptedTutorRequests(ctx context.Context, courseID domain.CourseID) ([]domain.UserID, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.Notification, error)
}
