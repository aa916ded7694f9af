package distributed

import (
	"context"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/internal/infrastructure/signal"

	"go.uber.org/zap"
)

// RoomPresence feeds the hub's membership callbacks into the shared
// registry and the event bus. It satisfies signal.Presence, absorbing
// storage failures so socket handling never stalls on Redis.
type RoomPresence struct {
	registry *PresenceRegistry
	bus      *SessionEventBus
	logger   *zap.SugaredLogger
}

func NewRoomPresence(registry *PresenceRegistry, bus *SessionEventBus, logger *zap.SugaredLogger) *RoomPresence {
	return &RoomPresence{registry: registry, bus: bus, logger: logger}
}

func (p *RoomPresence) Joined(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) {
	if err := p.registry.Track(ctx, sessionID, userID); err != nil {
		p.logger.Warnw("presence track failed",
			"session_id", sessionID, "user_id", userID, "error", err)
	}
	if err := p.bus.PublishUserJoined(ctx, sessionID, userID); err != nil {
		p.logger.Warnw("join event publish failed",
			"session_id", sessionID, "user_id", userID, "error", err)
	}
}

func (p *RoomPresence) Left(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) {
	if err := p.registry.Untrack(ctx, sessionID, userID); err != nil {
		p.logger.Warnw("presence untrack failed",
			"session_id", sessionID, "user_id", userID, "error", err)
	}
	if err := p.bus.PublishUserLeft(ctx, sessionID, userID); err != nil {
		p.logger.Warnw("leave event publish failed",
			"session_id", sessionID, "user_id", userID, "error", err)
	}
}

func (p *RoomPresence) Offline(ctx context.Context, userID domain.UserID) {
	if err := p.registry.Offline(ctx, userID); err != nil {
		p.logger.Warnw("presence offline failed",
			"user_id", userID, "error", err)
	}
}

// PublishingSessionEvents decorates a local ports.SessionEvents sink
// with fleet-wide fan-out: the local hub hears the event first, then
// every sibling instance gets it over the bus.
type PublishingSessionEvents struct {
	next   ports.SessionEvents
	bus    *SessionEventBus
	logger *zap.SugaredLogger
}

func NewPublishingSessionEvents(next ports.SessionEvents, bus *SessionEventBus, logger *zap.SugaredLogger) *PublishingSessionEvents {
	return &PublishingSessionEvents{next: next, bus: bus, logger: logger}
}

func (p *PublishingSessionEvents) SessionStarted(ctx context.Context, session *domain.LiveSession) {
	p.next.SessionStarted(ctx, session)
	if err := p.bus.PublishSessionStarted(ctx, session); err != nil {
		p.logger.Warnw("session-started publish failed",
			"session_id", session.ID, "error", err)
	}
}

func (p *PublishingSessionEvents) SessionEnded(ctx context.Context, session *domain.LiveSession) {
	p.next.SessionEnded(ctx, session)
	if err := p.bus.PublishSessionEnded(ctx, session); err != nil {
		p.logger.Warnw("session-ended publish failed",
			"session_id", session.ID, "error", err)
	}
}

// HubBridge applies remote session events to the local hub. Sessions
// live in shared storage, so lifecycle events are re-read locally
// before broadcasting rather than trusting the wire payload.
type HubBridge struct {
	bus      *SessionEventBus
	hub      *signal.Hub
	sessions ports.SessionService
	logger   *zap.SugaredLogger
}

func NewHubBridge(bus *SessionEventBus, hub *signal.Hub, sessions ports.SessionService, logger *zap.SugaredLogger) *HubBridge {
	return &HubBridge{bus: bus, hub: hub, sessions: sessions, logger: logger}
}

// Run blocks consuming remote events until ctx is cancelled.
func (b *HubBridge) Run(ctx context.Context) error {
	return b.bus.Subscribe(ctx, func(event *Event) error {
		return b.handle(ctx, event)
	})
}

func (b *HubBridge) handle(ctx context.Context, event *Event) error {
	switch event.Type {
	case EventSessionStarted:
		session, err := b.sessions.Get(ctx, event.SessionID)
		if err != nil {
			return err
		}
		b.hub.SessionStarted(ctx, session)
	case EventSessionEnded:
		session, err := b.sessions.Get(ctx, event.SessionID)
		if err != nil {
			return err
		}
		b.hub.SessionEnded(ctx, session)
	case EventUserJoined:
		b.hub.RemoteUserJoined(event.SessionID, event.UserID)
	case EventUserLeft:
		b.hub.RemoteUserLeft(event.SessionID, event.UserID)
	default:
		b.logger.Debugw("ignoring unknown event", "type", event.Type)
	}
	return nil
}
