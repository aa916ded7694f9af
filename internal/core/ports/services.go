package ports

import (
	"context"

	"liveclass/internal/core/domain"
)

type SessionService interface {
	Start(ctx context.Context, courseID domain.CourseID, tutorID domain.UserID) (*domain.LiveSession, error)
	End(ctx context.Context, sessionID domain.SessionID, tutorID domain.UserID) (*domain.LiveSession, error)
	Join(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (*domain.LiveSession, error)
	Leave(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (*domain.LiveSession, error)
	Get(ctx context.Context, sessionID domain.SessionID) (*domain.LiveSession, error)
	ListByCourse(ctx context.Context, courseID domain.CourseID) ([]*domain.LiveSession, error)
}

// AccessService is the authorization gate. Eligibility is recomputed from
// current enrollment data on every call; results are never cached because
// socket connections outlive any single check.
type AccessService interface {
	IsEligible(ctx context.Context, userID domain.UserID, courseID domain.CourseID) (bool, error)
	EligibleStudents(ctx context.Context, courseID domain.CourseID) ([]domain.UserID, error)
}

// SessionEvents receives lifecycle fan-out from the session service.
// Implemented by the signaling hub; delivery is fire-and-forget.
type SessionEvents interface {
	SessionStarted(ctx context.Context, session *domain.LiveSession)
	SessionEnded(ctx context.Context, session *domain.LiveSession)
}

// Notifier creates a notification for a user. Owned by an external
// subsystem; consumed fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, userID domain.UserID, title, message string)
}

// UserPusher delivers an out-of-band event to a user's realtime channel,
// independent of any session room membership.
type UserPusher interface {
	SendToUser(userID domain.UserID, event string, payload interface{})
}

// EventNotification is the event name notification pushes carry on the
// wire. Defined here so publishers need not depend on the socket layer.
const EventNotification = "notification"
