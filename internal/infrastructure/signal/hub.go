package signal

import (
	"context"
	"sync"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"

	"go.uber.org/zap"
)

// Metrics is the slice of the monitoring collector the hub reports to.
type Metrics interface {
	SocketConnected()
	SocketDisconnected()
	RoomCount(n int)
	SignalRelayed(kind string)
	RelayDropped()
}

// Presence mirrors room membership into shared storage so sibling
// instances can see it. Best effort: implementations absorb their own
// failures, the hub never blocks on them.
type Presence interface {
	Joined(ctx context.Context, sessionID domain.SessionID, userID domain.UserID)
	Left(ctx context.Context, sessionID domain.SessionID, userID domain.UserID)
	Offline(ctx context.Context, userID domain.UserID)
}

// Hub owns session rooms and per-user channels. It is an explicit object
// constructed once and passed into every handler; independent hubs do not
// share state. Room membership is socket-scoped; user channels span all of
// a user's sockets.
//
// The hub never inspects relayed payloads. Authorization is re-derived on
// every join and every relay, because sockets outlive any single check.
type Hub struct {
	sessions ports.SessionService
	access   ports.AccessService

	mu    sync.RWMutex
	rooms map[domain.SessionID]map[*Client]struct{}
	users map[domain.UserID]map[*Client]struct{}

	metrics  Metrics  // may be nil
	presence Presence // may be nil
	logger   *zap.SugaredLogger
}

func NewHub(sessions ports.SessionService, access ports.AccessService, metrics Metrics, presence Presence, logger *zap.SugaredLogger) *Hub {
	h := &Hub{
		sessions: sessions,
		access:   access,
		rooms:    make(map[domain.SessionID]map[*Client]struct{}),
		users:    make(map[domain.UserID]map[*Client]struct{}),
		metrics:  metrics,
		presence: presence,
		logger:   logger,
	}
	return h
}

// Register adds a connected socket to its user channel.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if h.users[client.UserID] == nil {
		h.users[client.UserID] = make(map[*Client]struct{})
	}
	h.users[client.UserID][client] = struct{}{}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SocketConnected()
	}
	h.logger.Infow("socket connected", "user_id", client.UserID)
}

// Unregister drops the socket from every room and its user channel, and
// updates the registry for each room it was still in. Covers the abrupt
// disconnect exit path.
func (h *Hub) Unregister(ctx context.Context, client *Client) {
	for _, sessionID := range client.joinedRooms() {
		h.LeaveRoom(ctx, client, sessionID)
	}

	h.mu.Lock()
	lastSocket := false
	if set, ok := h.users[client.UserID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.users, client.UserID)
			lastSocket = true
		}
	}
	h.mu.Unlock()

	client.close()
	if h.metrics != nil {
		h.metrics.SocketDisconnected()
	}
	if lastSocket && h.presence != nil {
		h.presence.Offline(ctx, client.UserID)
	}
	h.logger.Infow("socket disconnected", "user_id", client.UserID)
}

// JoinRoom re-runs the access gate via the registry join, admits the
// socket, and returns the roster snapshot the joiner must receive before
// any signaling for the session is legal. The ack callback is invoked
// after admission and strictly before the "user joined" broadcast, so a
// peer reacting to the broadcast cannot enqueue signaling ahead of the
// joiner's ack. The "user joined" event goes to the rest of the room only.
func (h *Hub) JoinRoom(ctx context.Context, client *Client, sessionID domain.SessionID, ack func(*domain.LiveSession)) (*domain.LiveSession, error) {
	session, err := h.sessions.Join(ctx, sessionID, client.UserID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[*Client]struct{})
	}
	h.rooms[sessionID][client] = struct{}{}
	roomCount := len(h.rooms)
	h.mu.Unlock()

	client.joinedRoom(sessionID)
	if h.metrics != nil {
		h.metrics.RoomCount(roomCount)
	}
	if h.presence != nil {
		h.presence.Joined(ctx, sessionID, client.UserID)
	}

	if ack != nil {
		ack(session)
	}

	h.broadcastToRoom(sessionID, OutboundMessage{
		Type:      EventUserJoined,
		SessionID: sessionID,
		UserID:    client.UserID,
	}, client)

	return session, nil
}

// LeaveRoom removes the socket, updates the registry, and tells the room.
func (h *Hub) LeaveRoom(ctx context.Context, client *Client, sessionID domain.SessionID) {
	h.mu.Lock()
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
	roomCount := len(h.rooms)
	h.mu.Unlock()

	client.leftRoom(sessionID)
	if h.metrics != nil {
		h.metrics.RoomCount(roomCount)
	}
	if h.presence != nil {
		h.presence.Left(ctx, sessionID, client.UserID)
	}

	if _, err := h.sessions.Leave(ctx, sessionID, client.UserID); err != nil {
		h.logger.Warnw("registry leave failed",
			"session_id", sessionID, "user_id", client.UserID, "error", err)
	}

	h.broadcastToRoom(sessionID, OutboundMessage{
		Type:      EventUserLeft,
		SessionID: sessionID,
		UserID:    client.UserID,
	}, nil)
}

// Relay forwards an opaque negotiation payload to the target's sockets
// inside the session room, tagged with the sender's identity. The sender
// must have completed the room join and its eligibility is re-checked
// against current enrollment data; a target socket that never completed
// the join receives nothing. Delivery is at-most-once.
func (h *Hub) Relay(ctx context.Context, client *Client, packet *domain.SignalPacket) error {
	if err := packet.Validate(); err != nil {
		return err
	}
	if !client.inRoom(packet.SessionID) {
		return domain.ErrForbidden
	}

	session, err := h.sessions.Get(ctx, packet.SessionID)
	if err != nil {
		return err
	}
	eligible, err := h.access.IsEligible(ctx, client.UserID, session.CourseID)
	if err != nil {
		return err
	}
	if !eligible {
		return domain.ErrForbidden
	}

	delivered := h.sendToRoomMember(packet.SessionID, packet.To, OutboundMessage{
		Type:      EventSignal,
		SessionID: packet.SessionID,
		Kind:      packet.Kind,
		Payload:   packet.Payload,
		From: &SenderIdentity{
			ID:       client.UserID,
			Username: client.Username,
			Role:     client.Role,
		},
	})

	if h.metrics != nil {
		if delivered {
			h.metrics.SignalRelayed(string(packet.Kind))
		} else {
			h.metrics.RelayDropped()
		}
	}
	// A missed delivery surfaces as a stalled negotiation, never an error.
	return nil
}

// SendToUser implements ports.UserPusher.
func (h *Hub) SendToUser(userID domain.UserID, event string, payload interface{}) {
	h.sendToUserRaw(userID, OutboundMessage{Type: event, Payload: payload})
}

// SessionStarted implements ports.SessionEvents: every eligible student
// hears the tutor went live, whether or not they joined anything yet.
func (h *Hub) SessionStarted(ctx context.Context, session *domain.LiveSession) {
	students, err := h.access.EligibleStudents(ctx, session.CourseID)
	if err != nil {
		h.logger.Warnw("session-started broadcast skipped",
			"session_id", session.ID, "error", err)
		return
	}

	msg := OutboundMessage{
		Type:      EventSessionStarted,
		SessionID: session.ID,
		CourseID:  session.CourseID,
		UserID:    session.Tutor,
	}
	for _, studentID := range students {
		h.sendToUserRaw(studentID, msg)
	}
}

// SessionEnded tells the room and every eligible student, then clears
// the room so stale sockets cannot keep relaying.
func (h *Hub) SessionEnded(ctx context.Context, session *domain.LiveSession) {
	msg := OutboundMessage{
		Type:      EventSessionEnded,
		SessionID: session.ID,
		CourseID:  session.CourseID,
	}

	h.broadcastToRoom(session.ID, msg, nil)

	if students, err := h.access.EligibleStudents(ctx, session.CourseID); err == nil {
		for _, studentID := range students {
			h.sendToUserRaw(studentID, msg)
		}
	}

	h.mu.Lock()
	room := h.rooms[session.ID]
	delete(h.rooms, session.ID)
	roomCount := len(h.rooms)
	h.mu.Unlock()

	for client := range room {
		client.leftRoom(session.ID)
	}
	if h.metrics != nil {
		h.metrics.RoomCount(roomCount)
	}
}

// RemoteUserJoined replays a roster join that happened on a sibling
// instance into the local room, so every participant sees the same
// roster regardless of which node their socket landed on.
func (h *Hub) RemoteUserJoined(sessionID domain.SessionID, userID domain.UserID) {
	h.broadcastToRoom(sessionID, OutboundMessage{
		Type:      EventUserJoined,
		SessionID: sessionID,
		UserID:    userID,
	}, nil)
}

// RemoteUserLeft replays a roster departure from a sibling instance.
func (h *Hub) RemoteUserLeft(sessionID domain.SessionID, userID domain.UserID) {
	h.broadcastToRoom(sessionID, OutboundMessage{
		Type:      EventUserLeft,
		SessionID: sessionID,
		UserID:    userID,
	}, nil)
}

// RoomSize reports current room membership, for health reporting.
func (h *Hub) RoomSize(sessionID domain.SessionID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func (h *Hub) broadcastToRoom(sessionID domain.SessionID, msg OutboundMessage, except *Client) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[sessionID]))
	for client := range h.rooms[sessionID] {
		if client != except {
			members = append(members, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range members {
		client.Send(msg)
	}
}

// sendToRoomMember delivers to the target's sockets that are admitted to
// the session room. Session traffic never reaches a socket outside the
// room, no matter who it is addressed to.
func (h *Hub) sendToRoomMember(sessionID domain.SessionID, userID domain.UserID, msg OutboundMessage) bool {
	h.mu.RLock()
	room := h.rooms[sessionID]
	targets := make([]*Client, 0, len(h.users[userID]))
	for client := range h.users[userID] {
		if _, ok := room[client]; ok {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	delivered := false
	for _, client := range targets {
		if client.Send(msg) {
			delivered = true
		}
	}
	return delivered
}

func (h *Hub) sendToUserRaw(userID domain.UserID, msg OutboundMessage) bool {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.users[userID]))
	for client := range h.users[userID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	delivered := false
	for _, client := range targets {
		if client.Send(msg) {
			delivered = true
		}
	}
	return delivered
}
