package memory

import (
	"context"
	"testing"
	"time"

	"liveclass/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeSession(id domain.SessionID, courseID domain.CourseID, startedAt time.Time) *domain.LiveSession {
	return &domain.LiveSession{
		ID:        id,
		CourseID:  courseID,
		Tutor:     "tutor-1",
		Status:    domain.SessionActive,
		StartedAt: startedAt,
		Roster:    []domain.UserID{"tutor-1"},
		History:   []domain.HistoryEntry{{Participant: "tutor-1", JoinedAt: startedAt}},
	}
}

func TestMemorySessionRepository_CreateAndGet(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	session := activeSession("s-1", "course-1", time.Now())
	require.NoError(t, repo.Create(ctx, session))

	err := repo.Create(ctx, session)
	assert.Error(t, err, "duplicate id must be rejected")

	got, err := repo.GetByID(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, session.CourseID, got.CourseID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemorySessionRepository_ReadsAreSnapshots(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, activeSession("s-1", "course-1", time.Now())))

	first, err := repo.GetByID(ctx, "s-1")
	require.NoError(t, err)
	first.Roster = append(first.Roster, "intruder")
	first.History[0].Participant = "intruder"

	second, err := repo.GetByID(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"tutor-1"}, second.Roster)
	assert.Equal(t, domain.UserID("tutor-1"), second.History[0].Participant)
}

func TestMemorySessionRepository_UpdateRequiresExisting(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	session := activeSession("s-1", "course-1", time.Now())
	assert.ErrorIs(t, repo.Update(ctx, session), domain.ErrSessionNotFound)

	require.NoError(t, repo.Create(ctx, session))
	now := time.Now()
	session.Status = domain.SessionEnded
	session.EndedAt = &now
	require.NoError(t, repo.Update(ctx, session))

	got, err := repo.GetByID(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEnded, got.Status)
	require.NotNil(t, got.EndedAt)
}

func TestMemorySessionRepository_ActiveByCourse(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	ended := activeSession("s-1", "course-1", time.Now().Add(-time.Hour))
	endedAt := time.Now()
	ended.Status = domain.SessionEnded
	ended.EndedAt = &endedAt
	require.NoError(t, repo.Create(ctx, ended))

	_, err := repo.ActiveByCourse(ctx, "course-1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, repo.Create(ctx, activeSession("s-2", "course-1", time.Now())))
	got, err := repo.ActiveByCourse(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("s-2"), got.ID)
}

func TestMemorySessionRepository_ListByCourseNewestFirst(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, repo.Create(ctx, activeSession("s-old", "course-1", base.Add(-2*time.Hour))))
	require.NoError(t, repo.Create(ctx, activeSession("s-new", "course-1", base)))
	require.NoError(t, repo.Create(ctx, activeSession("s-other", "course-2", base)))

	out, err := repo.ListByCourse(ctx, "course-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, domain.SessionID("s-new"), out[0].ID)
	assert.Equal(t, domain.SessionID("s-old"), out[1].ID)
}

func TestMemorySessionRepository_ListActive(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, activeSession("s-1", "course-1", time.Now())))
	ended := activeSession("s-2", "course-2", time.Now())
	ended.Status = domain.SessionEnded
	require.NoError(t, repo.Create(ctx, ended))

	out, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.SessionID("s-1"), out[0].ID)
}
