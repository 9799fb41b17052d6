package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("super-secret-key", "bazaar", time.Hour)

	signed, issued, err := m.Issue("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := m.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID())
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, "bazaar", claims.Issuer)
}

func TestExpiredToken(t *testing.T) {
	m := NewManager("super-secret-key", "bazaar", -time.Minute)

	signed, _, err := m.Issue("u1")
	require.NoError(t, err)

	_, err = m.Parse(signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRejectsForeignTokens(t *testing.T) {
	m1 := NewManager("secret1", "bazaar", time.Hour)
	m2 := NewManager("secret2", "bazaar", time.Hour)
	m3 := NewManager("secret1", "someone-else", time.Hour)

	signed, _, err := m1.Issue("u1")
	require.NoError(t, err)

	_, err = m2.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m3.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m1.Parse("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	revoked, err := s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// a token that already expired is not kept
	require.NoError(t, s.Revoke(ctx, "jti-old", time.Now().Add(-time.Minute)))
	require.NoError(t, s.Revoke(ctx, "jti-2", time.Now().Add(time.Hour)))
	revoked, err = s.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = s.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}
