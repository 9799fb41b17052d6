package token

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only against a real server: REDIS_URL=redis://localhost:6379/0 go test ./pkg/token
func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, url)
	require.NoError(t, err)
	defer store.Close()

	jti := uuid.NewString()
	revoked, err := store.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, jti, time.Now().Add(time.Minute)))
	revoked, err = store.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)

	// already expired tokens are not stored
	old := uuid.NewString()
	require.NoError(t, store.Revoke(ctx, old, time.Now().Add(-time.Minute)))
	revoked, err = store.IsRevoked(ctx, old)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not-a-url")
	assert.Error(t, err)
}
