package services

import (
	"testing"
	"time"

	"liveclass/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_TokenRoundTrip(t *testing.T) {
	auth := NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)

	token, err := auth.GenerateToken("user-1", "alice", domain.RoleTutor)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, domain.RoleTutor, claims.Role)
}

func TestAuthService_RefreshTokenCarriesOnlyUserID(t *testing.T) {
	auth := NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)

	token, err := auth.GenerateRefreshToken("user-1")
	require.NoError(t, err)

	claims, err := auth.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), claims.UserID)
	assert.Empty(t, claims.Username)
	assert.Empty(t, claims.Role)
}

func TestAuthService_RejectsForeignSignature(t *testing.T) {
	auth := NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)
	other := NewAuthService("other-secret", 15*time.Minute, 24*time.Hour)

	token, err := other.GenerateToken("user-1", "alice", domain.RoleStudent)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_RejectsExpiredToken(t *testing.T) {
	auth := NewAuthService("test-secret", -time.Minute, 24*time.Hour)

	token, err := auth.GenerateToken("user-1", "alice", domain.RoleStudent)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthService_RejectsGarbage(t *testing.T) {
	auth := NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)

	_, err := auth.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
