package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client, "rl:", 3, time.Minute)

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "client-a 1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.EqualValues(t, 3-(i+1), res.Remaining)
	}

	res, err := l.Allow(ctx, "client-a 1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.EqualValues(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// a different key has its own window
	res, err = l.Allow(ctx, "client-b 1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(2, time.Minute)

	res, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, err = l.Allow(ctx, "k")
	require.NoError(t, err)

	res, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}
