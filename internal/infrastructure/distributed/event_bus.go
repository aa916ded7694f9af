package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"liveclass/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType identifies a cross-instance session event.
type EventType string

const (
	EventSessionStarted EventType = "session.started"
	EventSessionEnded   EventType = "session.ended"
	EventUserJoined     EventType = "user.joined"
	EventUserLeft       EventType = "user.left"
)

// Event is the wire form of a session lifecycle change announced to
// every other instance. The publishing instance stamps InstanceID so
// subscribers can drop their own echoes.
type Event struct {
	Type       EventType        `json:"type"`
	InstanceID string           `json:"instance_id"`
	Timestamp  time.Time        `json:"timestamp"`
	SessionID  domain.SessionID `json:"session_id,omitempty"`
	CourseID   domain.CourseID  `json:"course_id,omitempty"`
	UserID     domain.UserID    `json:"user_id,omitempty"`
	Payload    json.RawMessage  `json:"payload,omitempty"`
}

// SessionEventBus fans session lifecycle events out to every instance
// over Redis pub/sub, so a start or roster change on one node reaches
// sockets connected anywhere.
type SessionEventBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
	channel    string
}

func NewSessionEventBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *SessionEventBus {
	return &SessionEventBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
		channel:    "liveclass:events",
	}
}

// Publish stamps the event with this instance's identity and sends it.
func (eb *SessionEventBus) Publish(ctx context.Context, event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"session_id", event.SessionID,
		"user_id", event.UserID,
	)

	return nil
}

// Subscribe blocks delivering remote events to handler until ctx is
// cancelled. Events published by this instance are skipped; handler
// errors are logged, never fatal.
func (eb *SessionEventBus) Subscribe(ctx context.Context, handler func(*Event) error) error {
	if eb.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	eb.pubsub = eb.client.Subscribe(ctx, eb.channel)
	defer eb.pubsub.Close()

	ch := eb.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			if event.InstanceID == eb.instanceID {
				continue
			}

			if err := handler(&event); err != nil {
				eb.logger.Warnw("error handling event",
					"type", event.Type,
					"error", err,
				)
			}
		}
	}
}

// PublishSessionStarted announces a freshly started live session.
func (eb *SessionEventBus) PublishSessionStarted(ctx context.Context, session *domain.LiveSession) error {
	return eb.Publish(ctx, &Event{
		Type:      EventSessionStarted,
		SessionID: session.ID,
		CourseID:  session.CourseID,
		UserID:    session.Tutor,
	})
}

// PublishSessionEnded announces that a live session reached its
// terminal state.
func (eb *SessionEventBus) PublishSessionEnded(ctx context.Context, session *domain.LiveSession) error {
	return eb.Publish(ctx, &Event{
		Type:      EventSessionEnded,
		SessionID: session.ID,
		CourseID:  session.CourseID,
	})
}

// PublishUserJoined announces a roster join that happened on this
// instance.
func (eb *SessionEventBus) PublishUserJoined(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) error {
	return eb.Publish(ctx, &Event{
		Type:      EventUserJoined,
		SessionID: sessionID,
		UserID:    userID,
	})
}

// PublishUserLeft announces a roster departure that happened on this
// instance.
func (eb *SessionEventBus) PublishUserLeft(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) error {
	return eb.Publish(ctx, &Event{
		Type:      EventUserLeft,
		SessionID: sessionID,
		UserID:    userID,
	})
}

// Close tears down the subscription if one is active.
func (eb *SessionEventBus) Close() error {
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}
