// AngelaMos | 2026
// redis_test.go

package core_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/arphoto/backend/internal/config"
	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

func TestNewRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	ctx := context.Background()

	r, err := core.NewRedis(ctx, config.RedisConfig{URL: "redis://" + mr.Addr(), PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	require.NoError(t, r.Ping(ctx))

	require.NoError(t, mr.Set("session:a", "{}"))
	require.NoError(t, mr.Set("session:b", "{}"))

	n, err := r.KeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NotNil(t, r.PoolStats())

	mr.Close()
	assert.Error(t, r.Ping(ctx))
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := core.NewRedis(context.Background(), config.RedisConfig{URL: "not a url"})
	assert.Error(t, err)
}
