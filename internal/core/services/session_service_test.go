package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedEvents struct {
	mu      sync.Mutex
	started []domain.SessionID
	ended   []domain.SessionID
}

func (c *capturedEvents) SessionStarted(ctx context.Context, session *domain.LiveSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, session.ID)
}

func (c *capturedEvents) SessionEnded(ctx context.Context, session *domain.LiveSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended = append(c.ended, session.ID)
}

func (c *capturedEvents) startedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.started)
}

func (c *capturedEvents) endedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ended)
}

type sessionFixture struct {
	courses  *memory.MemoryCourseRepository
	sessions ports.SessionRepository
	access   ports.AccessService
	service  ports.SessionService
	events   *capturedEvents
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	courses := memory.NewMemoryCourseRepository()
	courses.SeedCourse(&domain.Course{ID: "course-1", Title: "Algebra", Tutor: "tutor-1"})
	courses.SeedEnrollment(domain.Enrollment{
		CourseID: "course-1", StudentID: "student-1", Status: domain.EnrollmentActive,
	})
	courses.SeedTutorRequest(domain.TutorRequest{
		CourseID: "course-1", StudentID: "student-2", Status: domain.TutorRequestAccepted,
	})

	sessions := memory.NewMemorySessionRepository()
	access := NewAccessService(courses)
	events := &capturedEvents{}
	service := NewSessionService(sessions, courses, access, events, nil, zap.NewNop().Sugar())

	return &sessionFixture{
		courses:  courses,
		sessions: sessions,
		access:   access,
		service:  service,
		events:   events,
	}
}

func TestSessionService_StartRequiresOwningTutor(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.service.Start(context.Background(), "course-1", "student-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.service.Start(context.Background(), "missing-course", "tutor-1")
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestSessionService_StartIsIdempotent(t *testing.T) {
	f := newSessionFixture(t)

	first, err := f.service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, first.Status)
	assert.Equal(t, []domain.UserID{"tutor-1"}, first.Roster)
	require.Len(t, first.History, 1)
	assert.Nil(t, first.History[0].LeftAt)

	second, err := f.service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestSessionService_StartFansOutToEligibleStudents(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return f.events.startedCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSessionService_JoinAddsRosterAndHistory(t *testing.T) {
	f := newSessionFixture(t)

	session, err := f.service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)

	joined, err := f.service.Join(context.Background(), session.ID, "student-1")
	require.NoError(t, err)
	assert.True(t, joined.InRoster("student-1"))
	assert.Len(t, joined.History, 2)

	// A second join without leaving changes nothing.
	again, err := f.service.Join(context.Background(), session.ID, "student-1")
	require.NoError(t, err)
	assert.Len(t, again.Roster, 2)
	assert.Len(t, again.History, 2)
}

func TestSessionService_JoinDeniedWithoutEligibility(t *testing.T) {
	f := newSessionFixture(t)

	session, err := f.service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)

	_, err = f.service.Join(context.Background(), session.ID, "stranger")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.service.Join(context.Background(), "missing-session", "student-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionService_AcceptedTutorRequestGrantsJoin(t *testing.T) {
	f := newSessionFixture(t)

	session, err := f.service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)

	joined, err := f.service.Join(context.Background(), session.ID, "student-2")
	require.NoError(t, err)
	assert.True(t, joined.InRoster("student-2"))
}

func TestSessionService_LeaveAndRejoinKeepsHistory(t *testing.T) {
	f := newSessionFixture(t)

	session, err := f.service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)

	_, err = f.service.Join(context.Background(), session.ID, "student-1")
	require.NoError(t, err)

	left, err := f.service.Leave(context.Background(), session.ID, "student-1")
	require.NoError(t, err)
	assert.False(t, left.InRoster("student-1"))
	require.Len(t, left.History, 2)
	assert.NotNil(t, left.History[1].LeftAt)

	// Leaving again is a no-op.
	_, err = f.service.Leave(context.Background(), session.ID, "student-1")
	require.NoError(t, err)

	rejoined, err := f.service.Join(context.Background(), session.ID, "student-1")
	require.NoError(t, err)
	assert.True(t, rejoined.InRoster("student-1"))
	assert.Len(t, rejoined.History, 3)
}

func TestSessionService_EndIsTerminalAndIdempotent(t *testing.T) {
	f := newSessionFixture(t)

	session, err := f.service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)
	_, err = f.service.Join(context.Background(), session.ID, "student-1")
	require.NoError(t, err)

	_, err = f.service.End(context.Background(), session.ID, "student-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	ended, err := f.service.End(context.Background(), session.ID, "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEnded, ended.Status)
	assert.Empty(t, ended.Roster)
	require.NotNil(t, ended.EndedAt)
	for _, entry := range ended.History {
		assert.NotNil(t, entry.LeftAt)
	}

	again, err := f.service.End(context.Background(), session.ID, "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, ended.EndedAt.Unix(), again.EndedAt.Unix())

	_, err = f.service.Join(context.Background(), session.ID, "student-1")
	assert.ErrorIs(t, err, domain.ErrSessionEnded)

	assert.Eventually(t, func() bool {
		return f.events.endedCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSessionService_NewSessionAfterEnd(t *testing.T) {
	f := newSessionFixture(t)

	first, err := f.service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)
	_, err = f.service.End(context.Background(), first.ID, "tutor-1")
	require.NoError(t, err)

	second, err := f.service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSessionService_ConcurrentJoinsStayConsistent(t *testing.T) {
	courses := memory.NewMemoryCourseRepository()
	courses.SeedCourse(&domain.Course{ID: "course-1", Title: "Algebra", Tutor: "tutor-1"})

	const students = 20
	for i := 0; i < students; i++ {
		courses.SeedEnrollment(domain.Enrollment{
			CourseID:  "course-1",
			StudentID: domain.UserID(fmt.Sprintf("student-%d", i)),
			Status:    domain.EnrollmentActive,
		})
	}

	sessions := memory.NewMemorySessionRepository()
	service := NewSessionService(sessions, courses, NewAccessService(courses), nil, nil, zap.NewNop().Sugar())

	session, err := service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < students; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := service.Join(context.Background(), session.ID, domain.UserID(fmt.Sprintf("student-%d", n)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	final, err := service.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, final.Roster, students+1)
	assert.Len(t, final.History, students+1)
}

func TestSessionService_ListByCourse(t *testing.T) {
	f := newSessionFixture(t)

	first, err := f.service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)
	_, err = f.service.End(context.Background(), first.ID, "tutor-1")
	require.NoError(t, err)
	_, err = f.service.Start(context.Background(), "course-1", "tutor-1")
	require.NoError(t, err)

	list, err := f.service.ListByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
