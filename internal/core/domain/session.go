package domain

import "time"

type SessionID string

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// HistoryEntry records one joined interval of one participant. Entries are
// append-only; the same user rejoining opens a new entry instead of reusing
// the closed one.
type HistoryEntry struct {
	Participant UserID     `json:"participant"`
	JoinedAt    time.Time  `json:"joined_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
}

type LiveSession struct {
	ID        SessionID      `json:"id"`
	CourseID  CourseID       `json:"course_id"`
	Tutor     UserID         `json:"tutor"`
	Status    SessionStatus  `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Roster    []UserID       `json:"roster"`
	History   []HistoryEntry `json:"history"`
}

// InRoster reports whether the user is currently joined.
func (s *LiveSession) InRoster(userID UserID) bool {
	for _, id := range s.Roster {
		if id == userID {
			return true
		}
	}
	return false
}

// OpenEntry returns the index of the user's open history entry, or -1.
// Roster and open entries are kept in lockstep by the session service.
func (s *LiveSession) OpenEntry(userID UserID) int {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Participant == userID && s.History[i].LeftAt == nil {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy safe to hand out across goroutine boundaries.
func (s *LiveSession) Clone() *LiveSession {
	c := *s
	c.Roster = append([]UserID(nil), s.Roster...)
	c.History = append([]HistoryEntry(nil), s.History...)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}
