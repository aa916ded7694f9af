package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/pkg/archive"

	"go.uber.org/zap"
)

// RestoreService puts archived sessions back into the registry's
// store, for rebuilding course history after data loss. Restored
// sessions are always terminal; restoring never resurrects a live
// room.
type RestoreService struct {
	store       *archive.Store
	sessionRepo ports.SessionRepository
	logger      *zap.SugaredLogger
}

func NewRestoreService(store *archive.Store, sessionRepo ports.SessionRepository, logger *zap.SugaredLogger) *RestoreService {
	return &RestoreService{
		store:       store,
		sessionRepo: sessionRepo,
		logger:      logger,
	}
}

// RestoreOptions controls how restores treat sessions that already
// exist in the store.
type RestoreOptions struct {
	OverwriteExisting bool
}

// RestoreSession reads one archive record and writes the session back.
func (rs *RestoreService) RestoreSession(ctx context.Context, name string, options RestoreOptions) error {
	record, err := rs.store.Read(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load archive: %w", err)
	}
	if record.Version == "" {
		return fmt.Errorf("invalid archive: missing version")
	}

	var session domain.LiveSession
	if err := json.Unmarshal(record.Session, &session); err != nil {
		return fmt.Errorf("failed to unmarshal archived session: %w", err)
	}
	if session.Status != domain.SessionEnded {
		return fmt.Errorf("archived session %s is not terminal", session.ID)
	}

	existing, err := rs.sessionRepo.GetByID(ctx, session.ID)
	if err == nil && existing != nil {
		if !options.OverwriteExisting {
			rs.logger.Debugw("skipping existing session", "session_id", session.ID)
			return nil
		}
		if err := rs.sessionRepo.Update(ctx, &session); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
	} else {
		if err := rs.sessionRepo.Create(ctx, &session); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
	}

	rs.logger.Infow("restored session", "session_id", session.ID, "name", name)
	return nil
}

// RestoreCourse restores every archived session and keeps only those
// belonging to courseID.
func (rs *RestoreService) RestoreCourse(ctx context.Context, courseID domain.CourseID, options RestoreOptions) (int, error) {
	names, err := rs.store.List(ctx, namePrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list archives: %w", err)
	}

	restored := 0
	for _, name := range names {
		record, err := rs.store.Read(ctx, name)
		if err != nil {
			rs.logger.Warnw("skipping unreadable archive", "name", name, "error", err)
			continue
		}

		var probe struct {
			CourseID domain.CourseID `json:"course_id"`
		}
		if err := json.Unmarshal(record.Session, &probe); err != nil || probe.CourseID != courseID {
			continue
		}

		if err := rs.RestoreSession(ctx, name, options); err != nil {
			rs.logger.Warnw("failed to restore session", "name", name, "error", err)
			continue
		}
		restored++
	}

	return restored, nil
}

// FindArchiveBySession locates the archive record for a session id.
func (rs *RestoreService) FindArchiveBySession(ctx context.Context, sessionID domain.SessionID) (string, error) {
	names, err := rs.store.List(ctx, namePrefix)
	if err != nil {
		return "", fmt.Errorf("failed to list archives: %w", err)
	}

	suffix := fmt.Sprintf("-%s.json", sessionID)
	for _, name := range names {
		if strings.HasSuffix(name, suffix) {
			return name, nil
		}
	}

	return "", fmt.Errorf("no archive found for session %s", sessionID)
}

// FindArchiveByTime finds the newest archive written at or before the
// target time.
func (rs *RestoreService) FindArchiveByTime(ctx context.Context, targetTime time.Time) (string, error) {
	names, err := rs.store.List(ctx, namePrefix)
	if err != nil {
		return "", fmt.Errorf("failed to list archives: %w", err)
	}

	var closestName string
	var closestTime time.Time
	var found bool

	for _, name := range names {
		stamp, err := parseRecordTime(name)
		if err != nil {
			continue
		}

		if !stamp.After(targetTime) {
			if !found || stamp.After(closestTime) {
				closestName = name
				closestTime = stamp
				found = true
			}
		}
	}

	if !found {
		return "", fmt.Errorf("no archive found before or at target time: %v", targetTime)
	}

	return closestName, nil
}
