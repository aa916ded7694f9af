package services

import (
	"context"
	"fmt"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/pkg/utils"

	"go.uber.org/zap"
)

type sessionService struct {
	sessionRepo ports.SessionRepository
	courseRepo  ports.CourseRepository
	access      ports.AccessService
	events      ports.SessionEvents
	notifier    ports.Notifier

	// locks serializes every mutation touching one session or one course's
	// active-session slot. Reads under the same keys see consistent state.
	locks *keyedMutex

	logger *zap.SugaredLogger
}

func NewSessionService(
	sessionRepo ports.SessionRepository,
	courseRepo ports.CourseRepository,
	access ports.AccessService,
	events ports.SessionEvents, // may be nil
	notifier ports.Notifier, // may be nil
	logger *zap.SugaredLogger,
) ports.SessionService {
	return &sessionService{
		sessionRepo: sessionRepo,
		courseRepo:  courseRepo,
		access:      access,
		events:      events,
		notifier:    notifier,
		locks:       newKeyedMutex(),
		logger:      logger,
	}
}

func courseKey(id domain.CourseID) string   { return "course:" + string(id) }
func sessionKey(id domain.SessionID) string { return "session:" + string(id) }

// Start creates the course's active session, or returns the existing one
// unchanged. Only the owning tutor may start.
func (s *sessionService) Start(ctx context.Context, courseID domain.CourseID, tutorID domain.UserID) (*domain.LiveSession, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.Tutor != tutorID {
		return nil, domain.ErrForbidden
	}

	s.locks.Lock(courseKey(courseID))
	defer s.locks.Unlock(courseKey(courseID))

	if existing, err := s.sessionRepo.ActiveByCourse(ctx, courseID); err == nil {
		return existing.Clone(), nil
	} else if err != domain.ErrSessionNotFound {
		return nil, err
	}

	now := utils.Now()
	session := &domain.LiveSession{
		ID:        domain.SessionID(utils.GenerateSessionID()),
		CourseID:  courseID,
		Tutor:     tutorID,
		Status:    domain.SessionActive,
		StartedAt: now,
		Roster:    []domain.UserID{tutorID},
		History:   []domain.HistoryEntry{{Participant: tutorID, JoinedAt: now}},
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Infow("live session started",
		"session_id", session.ID,
		"course_id", courseID,
		"tutor_id", tutorID,
	)

	snapshot := session.Clone()
	go s.fanOutStarted(course, snapshot)

	return snapshot, nil
}

// fanOutStarted tells eligible students the tutor went live. Best effort:
// a failed notification never fails the start call.
func (s *sessionService) fanOutStarted(course *domain.Course, session *domain.LiveSession) {
	ctx := context.Background()

	if s.events != nil {
		s.events.SessionStarted(ctx, session)
	}
	if s.notifier == nil {
		return
	}

	students, err := s.access.EligibleStudents(ctx, course.ID)
	if err != nil {
		s.logger.Warnw("session-started fan-out skipped",
			"session_id", session.ID, "error", err)
		return
	}
	title := "Live session started"
	message := fmt.Sprintf("A live session for %q is now running.", course.Title)
	for _, studentID := range students {
		s.notifier.Notify(ctx, studentID, title, message)
	}
}

// End is terminal and idempotent. Ending an already-ended session returns
// it unchanged so client retries stay safe.
func (s *sessionService) End(ctx context.Context, sessionID domain.SessionID, tutorID domain.UserID) (*domain.LiveSession, error) {
	s.locks.Lock(sessionKey(sessionID))
	defer s.locks.Unlock(sessionKey(sessionID))

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Tutor != tutorID {
		return nil, domain.ErrForbidden
	}
	if session.Status == domain.SessionEnded {
		return session.Clone(), nil
	}

	now := utils.Now()
	session.Status = domain.SessionEnded
	session.EndedAt = &now
	for i := range session.History {
		if session.History[i].LeftAt == nil {
			t := now
			session.History[i].LeftAt = &t
		}
	}
	session.Roster = nil

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	s.logger.Infow("live session ended", "session_id", sessionID, "course_id", session.CourseID)

	snapshot := session.Clone()
	if s.events != nil {
		go s.events.SessionEnded(context.Background(), snapshot)
	}
	return snapshot, nil
}

// Join adds an eligible user to the roster and opens a history entry.
// Joining twice without leaving is a no-op.
func (s *sessionService) Join(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (*domain.LiveSession, error) {
	s.locks.Lock(sessionKey(sessionID))
	defer s.locks.Unlock(sessionKey(sessionID))

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionActive {
		return nil, domain.ErrSessionEnded
	}

	eligible, err := s.access.IsEligible(ctx, userID, session.CourseID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, domain.ErrForbidden
	}

	if session.OpenEntry(userID) >= 0 {
		return session.Clone(), nil
	}

	session.Roster = append(session.Roster, userID)
	session.History = append(session.History, domain.HistoryEntry{
		Participant: userID,
		JoinedAt:    utils.Now(),
	})

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}

	s.logger.Infow("participant joined",
		"session_id", sessionID, "user_id", userID, "roster_size", len(session.Roster))
	return session.Clone(), nil
}

// Leave removes the user from the roster and closes their open history
// entry. Leaving when not present is a no-op.
func (s *sessionService) Leave(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (*domain.LiveSession, error) {
	s.locks.Lock(sessionKey(sessionID))
	defer s.locks.Unlock(sessionKey(sessionID))

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	idx := session.OpenEntry(userID)
	if idx < 0 {
		return session.Clone(), nil
	}

	now := utils.Now()
	session.History[idx].LeftAt = &now
	for i, id := range session.Roster {
		if id == userID {
			session.Roster = append(session.Roster[:i], session.Roster[i+1:]...)
			break
		}
	}

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to leave session: %w", err)
	}

	s.logger.Infow("participant left",
		"session_id", sessionID, "user_id", userID, "roster_size", len(session.Roster))
	return session.Clone(), nil
}

func (s *sessionService) Get(ctx context.Context, sessionID domain.SessionID) (*domain.LiveSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

func (s *sessionService) ListByCourse(ctx context.Context, courseID domain.CourseID) ([]*domain.LiveSession, error) {
	sessions, err := s.sessionRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.LiveSession, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, session.Clone())
	}
	return out, nil
}
