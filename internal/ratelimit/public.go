package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/streamgate/internal/config"
	"go.uber.org/zap"
)

// PublicLimiter throttles unauthenticated endpoints per client and route.
type PublicLimiter struct {
	bucket Bucket
	rate   float64
	burst  int
}

func NewPublicLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *PublicLimiter {
	limits := cfg.RateLimit
	if !limits.Enabled || limits.PublicRate <= 0 || limits.PublicBurst <= 0 {
		return nil
	}
	if client == nil {
		log.Info("redis not configured, public rate limits are per instance")
		return NewPublicLimiterWithBucket(NewLocalBucket(), limits.PublicRate, limits.PublicBurst)
	}
	return NewPublicLimiterWithBucket(NewRedisBucket(client, cfg.AppName+":ratelimit:"), limits.PublicRate, limits.PublicBurst)
}

func NewPublicLimiterWithBucket(bucket Bucket, rate float64, burst int) *PublicLimiter {
	return &PublicLimiter{bucket: bucket, rate: rate, burst: burst}
}

func (l *PublicLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *PublicLimiter) Allow(ctx context.Context, route, clientIP string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key := strings.TrimSpace(route) + ":" + strings.TrimSpace(clientIP)
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
