package webrtc

import (
	"fmt"
	"sync"
	"time"

	"liveclass/internal/core/domain"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// NegotiationState is the explicit lifecycle of one peer connection entry.
type NegotiationState string

const (
	StateIdle        NegotiationState = "idle"
	StateNegotiating NegotiationState = "negotiating"
	StateConnected   NegotiationState = "connected"
	StateClosed      NegotiationState = "closed"
)

const keyframeInterval = 3 * time.Second

// RemoteTrackSink consumes inbound media from a remote participant,
// e.g. a session recorder. Consumers own the read loop they start.
type RemoteTrackSink interface {
	ConsumeTrack(remoteID domain.UserID, track *webrtc.TrackRemote)
}

// PeerManager owns the connection to one remote participant. Entries fail
// independently: tearing one down never touches its siblings.
type PeerManager struct {
	RemoteID   domain.UserID
	RemoteRole domain.UserRole

	pc *webrtc.PeerConnection

	mu    sync.Mutex
	state NegotiationState

	closeOnce sync.Once
	done      chan struct{}

	// onTerminal fires once when the underlying transport reports a
	// terminal state, so the owner can drop the entry.
	onTerminal func(domain.UserID)

	sinkMu sync.RWMutex
	sink   RemoteTrackSink

	logger *zap.SugaredLogger
}

func NewPeerManager(
	remoteID domain.UserID,
	remoteRole domain.UserRole,
	api *webrtc.API,
	cfg webrtc.Configuration,
	onTerminal func(domain.UserID),
	logger *zap.SugaredLogger,
) (*PeerManager, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	m := &PeerManager{
		RemoteID:   remoteID,
		RemoteRole: remoteRole,
		pc:         pc,
		state:      StateIdle,
		done:       make(chan struct{}),
		onTerminal: onTerminal,
		logger:     logger,
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			m.setState(StateConnected)
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			m.logger.Infow("peer transport terminal",
				"remote_id", remoteID, "state", state.String())
			m.Close()
			if m.onTerminal != nil {
				m.onTerminal(remoteID)
			}
		}
	})

	// Ask the remote for a keyframe periodically while its video flows,
	// so late joins and camera switches render quickly.
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if sink := m.remoteSink(); sink != nil {
			sink.ConsumeTrack(remoteID, track)
		}
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		go m.keyframeLoop(uint32(track.SSRC()))
	})

	return m, nil
}

// SetRemoteTrackSink attaches a consumer for inbound media. Set it
// before negotiation so no early tracks are missed.
func (m *PeerManager) SetRemoteTrackSink(sink RemoteTrackSink) {
	m.sinkMu.Lock()
	m.sink = sink
	m.sinkMu.Unlock()
}

func (m *PeerManager) remoteSink() RemoteTrackSink {
	m.sinkMu.RLock()
	defer m.sinkMu.RUnlock()
	return m.sink
}

func (m *PeerManager) State() NegotiationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *PeerManager) setState(s NegotiationState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateClosed {
		m.state = s
	}
}

// OnICECandidate registers the trickle callback; candidates surface as
// they are gathered and go out through the signaling relay.
func (m *PeerManager) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	m.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		fn(c.ToJSON())
	})
}

// AddTracks attaches the local capture tracks before negotiation.
func (m *PeerManager) AddTracks(tracks ...webrtc.TrackLocal) error {
	for _, track := range tracks {
		if track == nil {
			continue
		}
		if _, err := m.pc.AddTrack(track); err != nil {
			return fmt.Errorf("failed to add track: %w", err)
		}
	}
	return nil
}

// CreateOffer starts negotiation. Legal only from the idle state; a
// mid-negotiation entry never re-offers.
func (m *PeerManager) CreateOffer() (webrtc.SessionDescription, error) {
	m.mu.Lock()
	if m.state != StateIdle {
		state := m.state
		m.mu.Unlock()
		return webrtc.SessionDescription{}, fmt.Errorf("cannot offer in state %s", state)
	}
	m.state = StateNegotiating
	m.mu.Unlock()

	offer, err := m.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := m.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description: %w", err)
	}
	return offer, nil
}

// HandleOffer applies a remote offer and produces the answer.
func (m *PeerManager) HandleOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	m.setState(StateNegotiating)

	if err := m.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set remote offer: %w", err)
	}
	answer, err := m.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create answer: %w", err)
	}
	if err := m.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description: %w", err)
	}
	return answer, nil
}

// HandleAnswer applies the remote answer to an offer we sent.
func (m *PeerManager) HandleAnswer(answer webrtc.SessionDescription) error {
	if m.State() != StateNegotiating {
		return fmt.Errorf("unexpected answer in state %s", m.State())
	}
	if err := m.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to set remote answer: %w", err)
	}
	return nil
}

// AddICECandidate appends a trickled candidate.
func (m *PeerManager) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return m.pc.AddICECandidate(candidate)
}

// ReplaceVideoTrack swaps the outgoing video track in place, without
// renegotiation. Audio senders are untouched.
func (m *PeerManager) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	for _, sender := range m.pc.GetSenders() {
		current := sender.Track()
		if current == nil || current.Kind() != webrtc.RTPCodecTypeVideo {
			continue
		}
		if err := sender.ReplaceTrack(track); err != nil {
			return fmt.Errorf("failed to replace video track: %w", err)
		}
	}
	return nil
}

// Close is idempotent and safe from any goroutine, including pion
// callbacks.
func (m *PeerManager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.state = StateClosed
		m.mu.Unlock()
		close(m.done)
		if err := m.pc.Close(); err != nil {
			m.logger.Debugw("peer connection close", "remote_id", m.RemoteID, "error", err)
		}
	})
}

func (m *PeerManager) keyframeLoop(ssrc uint32) {
	ticker := time.NewTicker(keyframeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			pli := &rtcp.PictureLossIndication{MediaSSRC: ssrc}
			if err := m.pc.WriteRTCP([]rtcp.Packet{pli}); err != nil {
				return
			}
		}
	}
}
