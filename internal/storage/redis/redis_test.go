package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRevokedKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "denylist:access:abc", revokedKey("abc"))
}

func TestNewUnreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := New(ctx, "127.0.0.1:1", "", 0)
	assert.ErrorContains(t, err, "storage.redis.New")
}

func TestRevokeAccessTokenSkipsExpired(t *testing.T) {
	t.Parallel()

	r := &RedisRepo{}

	assert.NoError(t, r.RevokeAccessToken(context.Background(), "jti", 0))
}
