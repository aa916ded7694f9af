package webrtc

import (
	"context"
	"sync"
	"testing"

	"liveclass/internal/core/domain"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedSignals struct {
	mu      sync.Mutex
	packets []*domain.SignalPacket
}

func (s *capturedSignals) SendSignal(_ context.Context, packet *domain.SignalPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = append(s.packets, packet)
	return nil
}

func (s *capturedSignals) sent() []*domain.SignalPacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.SignalPacket(nil), s.packets...)
}

func newTestController(t *testing.T, self domain.UserID, role domain.UserRole, onClosed func()) (*SessionController, *capturedSignals) {
	t.Helper()
	signals := &capturedSignals{}
	c := NewSessionController(
		"session-1", self, role, signals, nil, nil, onClosed, zap.NewNop().Sugar())
	t.Cleanup(c.Close)
	return c, signals
}

func TestSessionController_InitiatorTieBreak(t *testing.T) {
	tests := []struct {
		name       string
		self       domain.UserID
		selfRole   domain.UserRole
		remote     domain.UserID
		remoteRole domain.UserRole
		want       bool
	}{
		{"tutor always offers", "tutor-1", domain.RoleTutor, "student-1", domain.RoleStudent, true},
		{"student yields to tutor", "student-1", domain.RoleStudent, "tutor-1", domain.RoleTutor, false},
		{"smaller student id offers", "student-1", domain.RoleStudent, "student-2", domain.RoleStudent, true},
		{"larger student id waits", "student-2", domain.RoleStudent, "student-1", domain.RoleStudent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t, tt.self, tt.selfRole, nil)
			assert.Equal(t, tt.want, c.shouldInitiate(tt.remote, tt.remoteRole))
		})
	}
}

func TestSessionController_InitiatorDialsOnJoin(t *testing.T) {
	c, signals := newTestController(t, "tutor-1", domain.RoleTutor, nil)

	err := c.HandleUserJoined(context.Background(), "student-1", domain.RoleStudent)
	require.NoError(t, err)

	assert.Equal(t, 1, c.PeerCount())
	assert.Equal(t, StateNegotiating, c.PeerState("student-1"))

	packets := signals.sent()
	require.Len(t, packets, 1)
	assert.Equal(t, domain.SignalOffer, packets[0].Kind)
	assert.Equal(t, domain.UserID("student-1"), packets[0].To)
	assert.Equal(t, domain.UserID("tutor-1"), packets[0].From)
}

func TestSessionController_NonInitiatorWaitsForOffer(t *testing.T) {
	c, signals := newTestController(t, "student-2", domain.RoleStudent, nil)

	err := c.HandleUserJoined(context.Background(), "student-1", domain.RoleStudent)
	require.NoError(t, err)

	assert.Equal(t, 0, c.PeerCount())
	assert.Empty(t, signals.sent())
}

func TestSessionController_IgnoresOwnJoin(t *testing.T) {
	c, signals := newTestController(t, "tutor-1", domain.RoleTutor, nil)

	err := c.HandleUserJoined(context.Background(), "tutor-1", domain.RoleTutor)
	require.NoError(t, err)
	assert.Equal(t, 0, c.PeerCount())
	assert.Empty(t, signals.sent())
}

func TestSessionController_RepeatedJoinDoesNotReoffer(t *testing.T) {
	c, signals := newTestController(t, "tutor-1", domain.RoleTutor, nil)

	require.NoError(t, c.HandleUserJoined(context.Background(), "student-1", domain.RoleStudent))
	require.NoError(t, c.HandleUserJoined(context.Background(), "student-1", domain.RoleStudent))

	assert.Equal(t, 1, c.PeerCount())
	assert.Len(t, signals.sent(), 1, "mid-negotiation entry must not re-offer")
}

func TestSessionController_AnswerWithoutPendingOffer(t *testing.T) {
	c, _ := newTestController(t, "tutor-1", domain.RoleTutor, nil)

	err := c.HandleSignal(context.Background(), "student-1", domain.RoleStudent, &domain.SignalPacket{
		SessionID: "session-1",
		Kind:      domain.SignalAnswer,
		Payload:   []byte(`{"type":"answer","sdp":""}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a pending offer")
}

func TestSessionController_CandidateForUnknownRemoteIsDiscarded(t *testing.T) {
	c, _ := newTestController(t, "tutor-1", domain.RoleTutor, nil)

	err := c.HandleSignal(context.Background(), "student-1", domain.RoleStudent, &domain.SignalPacket{
		SessionID: "session-1",
		Kind:      domain.SignalICECandidate,
		Payload:   []byte(`{"candidate":"candidate:1 1 udp 1 127.0.0.1 40000 typ host"}`),
	})
	assert.NoError(t, err)
}

func TestSessionController_UserLeftDropsOnlyThatPeer(t *testing.T) {
	c, _ := newTestController(t, "tutor-1", domain.RoleTutor, nil)

	require.NoError(t, c.HandleUserJoined(context.Background(), "student-1", domain.RoleStudent))
	require.NoError(t, c.HandleUserJoined(context.Background(), "student-2", domain.RoleStudent))
	require.Equal(t, 2, c.PeerCount())

	c.HandleUserLeft("student-1")

	assert.Equal(t, 1, c.PeerCount())
	assert.Equal(t, StateClosed, c.PeerState("student-1"))
	assert.NotEqual(t, StateClosed, c.PeerState("student-2"))
}

func TestSessionController_CloseRunsOnce(t *testing.T) {
	closed := 0
	c, _ := newTestController(t, "tutor-1", domain.RoleTutor, func() { closed++ })
	require.NoError(t, c.HandleUserJoined(context.Background(), "student-1", domain.RoleStudent))

	c.Close()
	c.Close()

	assert.Equal(t, 1, closed)
	assert.Equal(t, 0, c.PeerCount())
	assert.Equal(t, StateClosed, c.PeerState("student-1"))
}

func TestPeerManager_OfferOnlyFromIdle(t *testing.T) {
	pm, err := NewPeerManager(
		"student-1", domain.RoleStudent, webrtc.NewAPI(), webrtc.Configuration{}, nil, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(pm.Close)

	_, err = pm.CreateOffer()
	require.NoError(t, err)
	assert.Equal(t, StateNegotiating, pm.State())

	_, err = pm.CreateOffer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot offer in state")
}

func TestPeerManager_AnswerRequiresNegotiation(t *testing.T) {
	pm, err := NewPeerManager(
		"student-1", domain.RoleStudent, webrtc.NewAPI(), webrtc.Configuration{}, nil, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(pm.Close)

	err = pm.HandleAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected answer")
}

func TestPeerManager_CloseIsIdempotent(t *testing.T) {
	pm, err := NewPeerManager(
		"student-1", domain.RoleStudent, webrtc.NewAPI(), webrtc.Configuration{}, nil, zap.NewNop().Sugar())
	require.NoError(t, err)

	pm.Close()
	pm.Close()
	assert.Equal(t, StateClosed, pm.State())
}
