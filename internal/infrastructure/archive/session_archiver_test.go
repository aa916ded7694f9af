package archive

import (
	"context"
	"testing"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/internal/infrastructure/repositories/memory"
	"liveclass/pkg/archive"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *archive.Store {
	storage, err := archive.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return archive.NewStore(storage, "1.0.0")
}

func endedSession(id domain.SessionID) *domain.LiveSession {
	endedAt := time.Now().UTC()
	return &domain.LiveSession{
		ID:        id,
		CourseID:  "course-1",
		Tutor:     "tutor-1",
		Status:    domain.SessionEnded,
		StartedAt: endedAt.Add(-30 * time.Minute),
		EndedAt:   &endedAt,
		Roster:    []domain.UserID{},
		History: []domain.HistoryEntry{
			{Participant: "student-1", JoinedAt: endedAt.Add(-20 * time.Minute), LeftAt: &endedAt},
		},
	}
}

func TestSessionArchiver_ArchivesEndedSession(t *testing.T) {
	store := newTestStore(t)
	archiver := NewSessionArchiver(store, zap.NewNop().Sugar())

	archiver.SessionEnded(context.Background(), endedSession("session-1"))

	names, err := store.List(context.Background(), "session-")
	require.NoError(t, err)
	require.Len(t, names, 1)

	record, err := store.Read(context.Background(), names[0])
	require.NoError(t, err)
	assert.Equal(t, "course-1", record.Metadata["course_id"])
	assert.Contains(t, string(record.Session), `"session-1"`)
}

func TestRestoreService_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	archiver := NewSessionArchiver(store, zap.NewNop().Sugar())
	repo := memory.NewMemorySessionRepository()
	restore := NewRestoreService(store, repo, zap.NewNop().Sugar())

	session := endedSession("session-1")
	archiver.SessionEnded(context.Background(), session)

	name, err := restore.FindArchiveBySession(context.Background(), "session-1")
	require.NoError(t, err)

	require.NoError(t, restore.RestoreSession(context.Background(), name, RestoreOptions{}))

	got, err := repo.GetByID(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionEnded, got.Status)
	assert.Len(t, got.History, 1)
}

func TestRestoreService_SkipsExistingWithoutOverwrite(t *testing.T) {
	store := newTestStore(t)
	archiver := NewSessionArchiver(store, zap.NewNop().Sugar())
	repo := memory.NewMemorySessionRepository()
	restore := NewRestoreService(store, repo, zap.NewNop().Sugar())

	session := endedSession("session-1")
	require.NoError(t, repo.Create(context.Background(), session))
	archiver.SessionEnded(context.Background(), session)

	name, err := restore.FindArchiveBySession(context.Background(), "session-1")
	require.NoError(t, err)

	require.NoError(t, restore.RestoreSession(context.Background(), name, RestoreOptions{}))
}

func TestRetentionSweeper_DeletesExpired(t *testing.T) {
	store := newTestStore(t)
	sweeper := NewRetentionSweeper(store, RetentionConfig{
		Interval:      time.Hour,
		RetentionDays: 30,
	}, zap.NewNop().Sugar())

	old := endedSession("session-old")
	oldEnd := time.Now().UTC().AddDate(0, 0, -60)
	old.EndedAt = &oldEnd
	fresh := endedSession("session-fresh")

	archiver := NewSessionArchiver(store, zap.NewNop().Sugar())
	archiver.SessionEnded(context.Background(), old)
	archiver.SessionEnded(context.Background(), fresh)

	require.NoError(t, sweeper.Sweep(context.Background()))

	names, err := store.List(context.Background(), "session-")
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Contains(t, names[0], "session-fresh")
}
