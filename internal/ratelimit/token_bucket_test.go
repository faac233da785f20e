package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/streamgate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalBucketRefills(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bucket := NewLocalBucket()
	bucket.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "status:10.0.0.1", 1, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}

	res, err := bucket.Allow(ctx, "status:10.0.0.1", 1, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	other, err := bucket.Allow(ctx, "status:10.0.0.2", 1, 3)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "buckets are per key")

	now = now.Add(1500 * time.Millisecond)
	res, err = bucket.Allow(ctx, "status:10.0.0.1", 1, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLocalBucketValidates(t *testing.T) {
	bucket := NewLocalBucket()
	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidLimits)
}

func TestPublicLimiter(t *testing.T) {
	disabled := NewPublicLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: false}}, nil, zap.NewNop())
	assert.False(t, disabled.Enabled())
	res, err := disabled.Allow(context.Background(), "status", "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	limiter := NewPublicLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, PublicRate: 0.5, PublicBurst: 1}}, nil, zap.NewNop())
	require.True(t, limiter.Enabled())

	res, err = limiter.Allow(context.Background(), "status", "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = limiter.Allow(context.Background(), "status", "1.1.1.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	res, err = limiter.Allow(context.Background(), "drafts", "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "routes are limited separately")
}
