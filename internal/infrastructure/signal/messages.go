package signal

import (
	"encoding/json"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
)

// Inbound message types a socket may send.
const (
	TypeJoin   = "join"
	TypeLeave  = "leave"
	TypeSignal = "signal"
)

// Outbound event types.
const (
	EventJoinAck        = "join_ack"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventSignal         = "signal"
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
	EventNotification   = ports.EventNotification
	EventError          = "error"
)

type InboundMessage struct {
	Type      string            `json:"type"`
	SessionID domain.SessionID  `json:"session_id,omitempty"`
	Target    domain.UserID     `json:"target,omitempty"`
	Kind      domain.SignalKind `json:"kind,omitempty"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
}

type OutboundMessage struct {
	Type      string            `json:"type"`
	SessionID domain.SessionID  `json:"session_id,omitempty"`
	CourseID  domain.CourseID   `json:"course_id,omitempty"`
	Success   *bool             `json:"success,omitempty"`
	Message   string            `json:"message,omitempty"`
	Roster    []domain.UserID   `json:"roster,omitempty"`
	UserID    domain.UserID     `json:"user_id,omitempty"`
	From      *SenderIdentity   `json:"from,omitempty"`
	Kind      domain.SignalKind `json:"kind,omitempty"`
	Payload   interface{}       `json:"payload,omitempty"`
}

// SenderIdentity tags relayed signaling with who sent it.
type SenderIdentity struct {
	ID       domain.UserID   `json:"id"`
	Username string          `json:"username"`
	Role     domain.UserRole `json:"role"`
}
