package webrtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"liveclass/internal/core/domain"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// SignalSender pushes a negotiation packet toward one remote participant
// through the signaling channel.
type SignalSender interface {
	SendSignal(ctx context.Context, packet *domain.SignalPacket) error
}

// SessionController drives the client side of a live session: one peer
// connection per remote participant, glare-free negotiation, and a single
// guaranteed teardown whichever way the session ends.
type SessionController struct {
	sessionID domain.SessionID
	self      domain.UserID
	selfRole  domain.UserRole

	signals SignalSender
	capture *CaptureSource
	api     *webrtc.API
	pcCfg   webrtc.Configuration

	mu    sync.Mutex
	peers map[domain.UserID]*PeerManager

	recorder RemoteTrackSink // may be nil

	closeOnce sync.Once
	onClosed  func()

	logger *zap.SugaredLogger
}

func NewSessionController(
	sessionID domain.SessionID,
	self domain.UserID,
	selfRole domain.UserRole,
	signals SignalSender,
	capture *CaptureSource,
	iceServers []string,
	onClosed func(),
	logger *zap.SugaredLogger,
) *SessionController {
	cfg := webrtc.Configuration{}
	for _, url := range iceServers {
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{URLs: []string{url}})
	}

	c := &SessionController{
		sessionID: sessionID,
		self:      self,
		selfRole:  selfRole,
		signals:   signals,
		capture:   capture,
		api:       webrtc.NewAPI(),
		pcCfg:     cfg,
		peers:     make(map[domain.UserID]*PeerManager),
		onClosed:  onClosed,
		logger:    logger,
	}

	if capture != nil {
		capture.OnVideoSwap(c.replaceVideoEverywhere)
	}
	return c
}

// SetRecorder attaches a sink for inbound media, typically a session
// recorder. Attach before any peer exists; entries created earlier are
// not retrofitted.
func (c *SessionController) SetRecorder(sink RemoteTrackSink) {
	c.mu.Lock()
	c.recorder = sink
	c.mu.Unlock()
}

// shouldInitiate breaks the glare symmetrically on both sides: the tutor
// always offers, and between two students the lexicographically smaller
// id offers. Exactly one side ever takes the initiator role.
func (c *SessionController) shouldInitiate(remoteID domain.UserID, remoteRole domain.UserRole) bool {
	if c.selfRole == domain.RoleTutor {
		return true
	}
	if remoteRole == domain.RoleTutor {
		return false
	}
	return string(c.self) < string(remoteID)
}

// HandleUserJoined reacts to a roster addition. When this side holds the
// initiator role it dials out immediately; otherwise it waits for the
// remote offer.
func (c *SessionController) HandleUserJoined(ctx context.Context, remoteID domain.UserID, remoteRole domain.UserRole) error {
	if remoteID == c.self {
		return nil
	}
	if !c.shouldInitiate(remoteID, remoteRole) {
		return nil
	}

	peer, err := c.ensurePeer(remoteID, remoteRole)
	if err != nil {
		return err
	}

	offer, err := peer.CreateOffer()
	if err != nil {
		// Already negotiating with this remote; nothing to do.
		c.logger.Debugw("skipping offer", "remote_id", remoteID, "error", err)
		return nil
	}
	return c.sendDescription(ctx, remoteID, domain.SignalOffer, offer)
}

// HandleUserLeft tears down the entry for one departed participant. The
// rest of the session continues undisturbed.
func (c *SessionController) HandleUserLeft(remoteID domain.UserID) {
	c.dropPeer(remoteID)
}

// HandleSignal dispatches one relayed packet. Candidates for unknown
// remotes are discarded quietly: they trail a teardown and are not an
// error.
func (c *SessionController) HandleSignal(ctx context.Context, from domain.UserID, fromRole domain.UserRole, packet *domain.SignalPacket) error {
	switch packet.Kind {
	case domain.SignalOffer:
		return c.handleOffer(ctx, from, fromRole, packet.Payload)
	case domain.SignalAnswer:
		return c.handleAnswer(from, packet.Payload)
	case domain.SignalICECandidate:
		return c.handleCandidate(from, packet.Payload)
	default:
		return fmt.Errorf("unknown signal kind: %q", packet.Kind)
	}
}

func (c *SessionController) handleOffer(ctx context.Context, from domain.UserID, fromRole domain.UserRole, payload json.RawMessage) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return fmt.Errorf("failed to decode offer: %w", err)
	}

	peer, err := c.ensurePeer(from, fromRole)
	if err != nil {
		return err
	}

	answer, err := peer.HandleOffer(offer)
	if err != nil {
		c.dropPeer(from)
		return err
	}
	return c.sendDescription(ctx, from, domain.SignalAnswer, answer)
}

func (c *SessionController) handleAnswer(from domain.UserID, payload json.RawMessage) error {
	peer := c.peer(from)
	if peer == nil {
		return fmt.Errorf("answer from %s without a pending offer", from)
	}

	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return fmt.Errorf("failed to decode answer: %w", err)
	}
	if err := peer.HandleAnswer(answer); err != nil {
		c.dropPeer(from)
		return err
	}
	return nil
}

func (c *SessionController) handleCandidate(from domain.UserID, payload json.RawMessage) error {
	peer := c.peer(from)
	if peer == nil {
		return nil
	}

	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return fmt.Errorf("failed to decode candidate: %w", err)
	}
	return peer.AddICECandidate(candidate)
}

// SetAudioEnabled mutes or unmutes the local microphone. Purely local:
// no renegotiation, no signaling.
func (c *SessionController) SetAudioEnabled(enabled bool) {
	if c.capture != nil {
		c.capture.SetAudioEnabled(enabled)
	}
}

// SetVideoEnabled toggles the local camera feed.
func (c *SessionController) SetVideoEnabled(enabled bool) {
	if c.capture != nil {
		c.capture.SetVideoEnabled(enabled)
	}
}

// SwitchVideoDevice swaps the camera; the replacement track lands in
// every live entry via ReplaceTrack, with no offer/answer round.
func (c *SessionController) SwitchVideoDevice(deviceID string) error {
	if c.capture == nil {
		return fmt.Errorf("no capture source attached")
	}
	return c.capture.SwitchVideoDevice(deviceID)
}

// PeerCount reports live entries; used by status displays and tests.
func (c *SessionController) PeerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.peers)
}

// PeerState reports the negotiation state for one remote, or StateClosed
// when no entry exists.
func (c *SessionController) PeerState(remoteID domain.UserID) NegotiationState {
	peer := c.peer(remoteID)
	if peer == nil {
		return StateClosed
	}
	return peer.State()
}

// Close runs the teardown exactly once, whichever exit path reaches it
// first: explicit leave, session-ended broadcast, transport loss, or
// context cancellation. All entries close, capture devices release, and
// the owner's callback fires.
func (c *SessionController) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		peers := make([]*PeerManager, 0, len(c.peers))
		for _, peer := range c.peers {
			peers = append(peers, peer)
		}
		c.peers = make(map[domain.UserID]*PeerManager)
		c.mu.Unlock()

		for _, peer := range peers {
			peer.Close()
		}
		if c.capture != nil {
			c.capture.Close()
		}
		if c.onClosed != nil {
			c.onClosed()
		}
		c.logger.Infow("session controller closed",
			"session_id", c.sessionID, "peers_closed", len(peers))
	})
}

func (c *SessionController) ensurePeer(remoteID domain.UserID, remoteRole domain.UserRole) (*PeerManager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if peer, ok := c.peers[remoteID]; ok {
		return peer, nil
	}

	peer, err := NewPeerManager(remoteID, remoteRole, c.api, c.pcCfg, c.peerFailed, c.logger)
	if err != nil {
		return nil, err
	}
	if c.recorder != nil {
		peer.SetRemoteTrackSink(c.recorder)
	}

	peer.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		payload, err := json.Marshal(candidate)
		if err != nil {
			return
		}
		packet := &domain.SignalPacket{
			SessionID: c.sessionID,
			From:      c.self,
			To:        remoteID,
			Kind:      domain.SignalICECandidate,
			Payload:   payload,
		}
		if err := c.signals.SendSignal(context.Background(), packet); err != nil {
			c.logger.Debugw("candidate send failed", "remote_id", remoteID, "error", err)
		}
	})

	if c.capture != nil {
		if err := peer.AddTracks(c.capture.AudioTrack(), c.capture.VideoTrack()); err != nil {
			peer.Close()
			return nil, err
		}
	}

	c.peers[remoteID] = peer
	return peer, nil
}

func (c *SessionController) peer(remoteID domain.UserID) *PeerManager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peers[remoteID]
}

// peerFailed is the terminal-state callback from one entry. Only that
// entry is dropped.
func (c *SessionController) peerFailed(remoteID domain.UserID) {
	c.dropPeer(remoteID)
}

func (c *SessionController) dropPeer(remoteID domain.UserID) {
	c.mu.Lock()
	peer, ok := c.peers[remoteID]
	if ok {
		delete(c.peers, remoteID)
	}
	c.mu.Unlock()

	if ok {
		peer.Close()
	}
}

func (c *SessionController) replaceVideoEverywhere(track webrtc.TrackLocal) {
	c.mu.Lock()
	peers := make([]*PeerManager, 0, len(c.peers))
	for _, peer := range c.peers {
		peers = append(peers, peer)
	}
	c.mu.Unlock()

	for _, peer := range peers {
		if err := peer.ReplaceVideoTrack(track); err != nil {
			c.logger.Warnw("video track replacement failed",
				"remote_id", peer.RemoteID, "error", err)
		}
	}
}

func (c *SessionController) sendDescription(ctx context.Context, to domain.UserID, kind domain.SignalKind, desc webrtc.SessionDescription) error {
	payload, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	packet := &domain.SignalPacket{
		SessionID: c.sessionID,
		From:      c.self,
		To:        to,
		Kind:      kind,
		Payload:   payload,
	}
	return c.signals.SendSignal(ctx, packet)
}
