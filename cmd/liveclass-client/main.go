package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/internal/infrastructure/recording"
	signalhub "liveclass/internal/infrastructure/signal"
	webrtcinfra "liveclass/internal/infrastructure/webrtc"
	"liveclass/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wireEvent mirrors the socket's outbound frame with the payload kept
// raw, so signaling bodies pass through opaque.
type wireEvent struct {
	Type      string                    `json:"type"`
	SessionID domain.SessionID          `json:"session_id"`
	UserID    domain.UserID             `json:"user_id"`
	Success   *bool                     `json:"success"`
	Message   string                    `json:"message"`
	Roster    []domain.UserID           `json:"roster"`
	From      *signalhub.SenderIdentity `json:"from"`
	Kind      domain.SignalKind         `json:"kind"`
	Payload   json.RawMessage           `json:"payload"`
}

// socketSender serializes every write to the shared websocket; the
// controller's candidate callbacks fire from pion goroutines.
type socketSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socketSender) SendSignal(_ context.Context, packet *domain.SignalPacket) error {
	return s.write(signalhub.InboundMessage{
		Type:      signalhub.TypeSignal,
		SessionID: packet.SessionID,
		Target:    packet.To,
		Kind:      packet.Kind,
		Payload:   packet.Payload,
	})
}

func (s *socketSender) write(msg signalhub.InboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

func main() {
	var (
		server     = flag.String("server", "ws://localhost:8080", "signaling server base URL")
		token      = flag.String("token", "", "JWT access token")
		sessionStr = flag.String("session", "", "live session id to join")
		selfStr    = flag.String("user", "", "own user id (must match the token)")
		roleStr    = flag.String("role", "student", "own role: tutor or student")
		tutorStr   = flag.String("tutor", "", "tutor's user id (roster events carry no role)")
		recordDir  = flag.String("record", "", "directory to record inbound media into (optional)")
		segment    = flag.Duration("segment", time.Minute, "recording segment rotation interval")
		stun       = flag.String("stun", "stun:stun.l.google.com:19302", "STUN server URL")
	)
	flag.Parse()

	zapLogger := logger.New("info")
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if *token == "" || *sessionStr == "" || *selfStr == "" {
		log.Fatalw("missing required flags", "required", "-token -session -user")
	}

	sessionID := domain.SessionID(*sessionStr)
	self := domain.UserID(*selfStr)
	selfRole := domain.RoleStudent
	if *roleStr == string(domain.RoleTutor) {
		selfRole = domain.RoleTutor
	}
	tutorID := domain.UserID(*tutorStr)
	roleOf := func(id domain.UserID) domain.UserRole {
		if id == tutorID {
			return domain.RoleTutor
		}
		return domain.RoleStudent
	}

	wsURL, err := url.Parse(*server)
	if err != nil {
		log.Fatalw("invalid server URL", "server", *server, "error", err)
	}
	wsURL.Path = "/ws"
	wsURL.RawQuery = url.Values{"token": {*token}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		log.Fatalw("failed to connect", "url", wsURL.Host, "error", err)
	}
	defer conn.Close()

	sender := &socketSender{conn: conn}

	var recorder *recording.SessionRecorder
	if *recordDir != "" {
		recorder, err = recording.NewSessionRecorder(sessionID, *recordDir, *segment, log)
		if err != nil {
			log.Fatalw("failed to set up recorder", "dir", *recordDir, "error", err)
		}
		defer recorder.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// No capture device bindings here: this client receives (and
	// optionally records); it still answers offers so the sender side
	// completes negotiation.
	controller := webrtcinfra.NewSessionController(
		sessionID, self, selfRole, sender, nil, []string{*stun}, cancel, log)
	defer controller.Close()
	if recorder != nil {
		controller.SetRecorder(recorder)
	}

	if err := sender.write(signalhub.InboundMessage{
		Type:      signalhub.TypeJoin,
		SessionID: sessionID,
	}); err != nil {
		log.Fatalw("failed to send join", "error", err)
	}

	events := make(chan wireEvent, 16)
	readErr := make(chan error, 1)
	go func() {
		for {
			var ev wireEvent
			if err := conn.ReadJSON(&ev); err != nil {
				readErr <- err
				return
			}
			events <- ev
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case ev := <-events:
			if ev.Type == signalhub.EventJoinAck && (ev.Success == nil || !*ev.Success) {
				log.Fatalw("join rejected", "session_id", sessionID, "message", ev.Message)
			}
			if err := handleEvent(ctx, controller, self, roleOf, ev, log); err != nil {
				log.Warnw("event handling failed", "type", ev.Type, "error", err)
			}
			if ev.Type == signalhub.EventSessionEnded && ev.SessionID == sessionID {
				log.Infow("session ended", "session_id", sessionID)
				return
			}

		case err := <-readErr:
			log.Infow("connection closed", "error", err)
			return

		case <-sigCh:
			log.Infow("leaving session", "session_id", sessionID)
			sender.write(signalhub.InboundMessage{
				Type:      signalhub.TypeLeave,
				SessionID: sessionID,
			})
			return

		case <-ctx.Done():
			return
		}
	}
}

func handleEvent(
	ctx context.Context,
	controller *webrtcinfra.SessionController,
	self domain.UserID,
	roleOf func(domain.UserID) domain.UserRole,
	ev wireEvent,
	log *zap.SugaredLogger,
) error {
	switch ev.Type {
	case signalhub.EventJoinAck:
		log.Infow("joined session", "session_id", ev.SessionID, "roster", ev.Roster)
		for _, id := range ev.Roster {
			if id == self {
				continue
			}
			if err := controller.HandleUserJoined(ctx, id, roleOf(id)); err != nil {
				return err
			}
		}
		return nil

	case signalhub.EventUserJoined:
		log.Infow("user joined", "user_id", ev.UserID)
		return controller.HandleUserJoined(ctx, ev.UserID, roleOf(ev.UserID))

	case signalhub.EventUserLeft:
		log.Infow("user left", "user_id", ev.UserID)
		controller.HandleUserLeft(ev.UserID)
		return nil

	case signalhub.EventSignal:
		if ev.From == nil {
			return nil
		}
		return controller.HandleSignal(ctx, ev.From.ID, ev.From.Role, &domain.SignalPacket{
			SessionID: ev.SessionID,
			From:      ev.From.ID,
			To:        self,
			Kind:      ev.Kind,
			Payload:   ev.Payload,
		})

	case signalhub.EventSessionEnded:
		controller.Close()
		return nil

	case signalhub.EventError:
		log.Infow("server reported error", "message", ev.Message)
		return nil

	default:
		return nil
	}
}
