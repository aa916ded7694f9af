package signal

import (
	"sync"

	"liveclass/internal/core/domain"
)

// Client is one authenticated socket. A user may hold several clients
// (multiple tabs); each is admitted to rooms independently.
type Client struct {
	UserID   domain.UserID
	Username string
	Role     domain.UserRole

	send chan OutboundMessage

	mu     sync.Mutex
	rooms  map[domain.SessionID]struct{}
	closed bool
}

func NewClient(userID domain.UserID, username string, role domain.UserRole, sendBuffer int) *Client {
	return &Client{
		UserID:   userID,
		Username: username,
		Role:     role,
		send:     make(chan OutboundMessage, sendBuffer),
		rooms:    make(map[domain.SessionID]struct{}),
	}
}

// Send queues a message without blocking. A full buffer drops the message:
// relay delivery is at-most-once and a slow socket must not stall the hub.
func (c *Client) Send(msg OutboundMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Outbox exposes the send queue to the socket write loop.
func (c *Client) Outbox() <-chan OutboundMessage {
	return c.send
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) joinedRoom(id domain.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[id] = struct{}{}
}

func (c *Client) leftRoom(id domain.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, id)
}

func (c *Client) inRoom(id domain.SessionID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[id]
	return ok
}

func (c *Client) joinedRooms() []domain.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.SessionID, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}
