package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/pkg/archive"

	"go.uber.org/zap"
)

// namePrefix and nameTimeLayout fix the archive naming scheme; the
// retention sweeper parses ages back out of the names.
const (
	namePrefix     = "session-"
	nameTimeLayout = "20060102-150405"
)

// SessionArchiver writes every ended live session to durable storage
// as it leaves the registry's hot path. It hangs off the session
// lifecycle fan-out, so archiving never adds latency to the end call
// itself and a failed write costs a log line, not the session.
type SessionArchiver struct {
	store  *archive.Store
	logger *zap.SugaredLogger
}

func NewSessionArchiver(store *archive.Store, logger *zap.SugaredLogger) *SessionArchiver {
	return &SessionArchiver{store: store, logger: logger}
}

// SessionStarted implements ports.SessionEvents. Only terminal
// sessions are archived; a start is nothing to persist yet.
func (a *SessionArchiver) SessionStarted(ctx context.Context, session *domain.LiveSession) {}

// SessionEnded implements ports.SessionEvents and writes the final
// session document, roster history included.
func (a *SessionArchiver) SessionEnded(ctx context.Context, session *domain.LiveSession) {
	data, err := json.Marshal(session)
	if err != nil {
		a.logger.Errorw("failed to marshal session for archive",
			"session_id", session.ID, "error", err)
		return
	}

	record := &archive.Record{
		Session: data,
		Metadata: map[string]interface{}{
			"course_id":   string(session.CourseID),
			"tutor":       string(session.Tutor),
			"roster_size": len(session.Roster),
		},
	}

	name := recordName(session)
	if err := a.store.Write(ctx, name, record); err != nil {
		a.logger.Errorw("failed to archive session",
			"session_id", session.ID, "name", name, "error", err)
		return
	}

	a.logger.Infow("session archived", "session_id", session.ID, "name", name)
}

func recordName(session *domain.LiveSession) string {
	endedAt := time.Now()
	if session.EndedAt != nil {
		endedAt = *session.EndedAt
	}
	return fmt.Sprintf("%s%s-%s.json", namePrefix, endedAt.UTC().Format(nameTimeLayout), session.ID)
}
