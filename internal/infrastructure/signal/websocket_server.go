package signal

import (
	"context"
	"net/http"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/services"
	"liveclass/pkg/tracing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketServer authenticates sockets and pumps messages between the
// wire and the hub.
type WebSocketServer struct {
	hub  *Hub
	auth services.AuthService

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
	sendBuffer   int

	messageRate  rate.Limit
	messageBurst int

	logger *zap.SugaredLogger
}

type WebSocketServerOptions struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
	// MessagesPerSecond of zero disables per-socket rate limiting.
	MessagesPerSecond float64
	MessageBurst      int
}

func NewWebSocketServer(hub *Hub, auth services.AuthService, opts WebSocketServerOptions, logger *zap.SugaredLogger) *WebSocketServer {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 60 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	return &WebSocketServer{
		hub:          hub,
		auth:         auth,
		pingInterval: opts.PingInterval,
		pongTimeout:  opts.PongTimeout,
		writeTimeout: opts.WriteTimeout,
		sendBuffer:   opts.SendBuffer,
		messageRate:  rate.Limit(opts.MessagesPerSecond),
		messageBurst: opts.MessageBurst,
		logger:       logger,
	}
}

// HandleWebSocket upgrades the connection after validating the JWT passed
// as a query parameter, then serves the socket until it closes.
func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := s.auth.ValidateToken(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	client := NewClient(claims.UserID, claims.Username, claims.Role, s.sendBuffer)
	s.hub.Register(client)
	defer s.hub.Unregister(context.Background(), client)

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan InboundMessage, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg InboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
			messageChan <- msg
		}
	}()

	var limiter *rate.Limiter
	if s.messageRate > 0 {
		limiter = rate.NewLimiter(s.messageRate, s.messageBurst)
	}

	for {
		select {
		case msg := <-messageChan:
			if limiter != nil && !limiter.Allow() {
				s.sendError(client, "rate limit exceeded")
				continue
			}
			if err := s.handleMessage(r.Context(), client, msg); err != nil {
				s.logger.Infow("error handling socket message",
					"user_id", client.UserID, "type", msg.Type, "error", err)
				s.sendError(client, err.Error())
			}

		case out, ok := <-client.Outbox():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteJSON(out); err != nil {
				s.logger.Infow("error writing to socket",
					"user_id", client.UserID, "error", err)
				return
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading from socket",
					"user_id", client.UserID, "error", err)
			}
			return
		}
	}
}

func (s *WebSocketServer) handleMessage(ctx context.Context, client *Client, msg InboundMessage) error {
	ctx, span := tracing.TraceSocketMessage(ctx, msg.Type, string(client.UserID))
	defer span.End()

	switch msg.Type {
	case TypeJoin:
		return s.handleJoin(ctx, client, msg)
	case TypeLeave:
		s.hub.LeaveRoom(ctx, client, msg.SessionID)
		return nil
	case TypeSignal:
		return s.handleSignal(ctx, client, msg)
	default:
		return domain.ErrForbidden
	}
}

// handleJoin always answers with an explicit ack so a rejected client can
// show a message instead of waiting on a silent drop. The ack is queued
// through the hub's join callback so it lands in the outbox before the
// room hears "user joined" and starts signaling back.
func (s *WebSocketServer) handleJoin(ctx context.Context, client *Client, msg InboundMessage) error {
	_, err := s.hub.JoinRoom(ctx, client, msg.SessionID, func(session *domain.LiveSession) {
		ok := true
		client.Send(OutboundMessage{
			Type:      EventJoinAck,
			SessionID: session.ID,
			CourseID:  session.CourseID,
			Success:   &ok,
			Roster:    session.Roster,
		})
	})
	if err != nil {
		failed := false
		client.Send(OutboundMessage{
			Type:      EventJoinAck,
			SessionID: msg.SessionID,
			Success:   &failed,
			Message:   joinRejectionMessage(err),
		})
	}
	return nil
}

func (s *WebSocketServer) handleSignal(ctx context.Context, client *Client, msg InboundMessage) error {
	packet := &domain.SignalPacket{
		SessionID: msg.SessionID,
		From:      client.UserID,
		To:        msg.Target,
		Kind:      msg.Kind,
		Payload:   msg.Payload,
	}

	ctx, span := tracing.TraceRelay(ctx, string(packet.Kind), string(packet.SessionID),
		string(packet.From), string(packet.To))
	defer span.End()

	if err := s.hub.Relay(ctx, client, packet); err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}

func (s *WebSocketServer) sendError(client *Client, message string) {
	client.Send(OutboundMessage{Type: EventError, Message: message})
}

func joinRejectionMessage(err error) string {
	switch err {
	case domain.ErrForbidden:
		return "Not allowed to join this live session"
	case domain.ErrSessionEnded:
		return "This live session has ended"
	case domain.ErrSessionNotFound:
		return "Live session not found"
	default:
		return "Could not join this live session"
	}
}
