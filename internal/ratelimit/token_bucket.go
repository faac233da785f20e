package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  local refill = (delta / 1000) * rate
  tokens = math.min(burst, tokens + refill)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens)}
`

var (
	ErrEmptyKey      = errors.New("rate limiter key is empty")
	ErrInvalidLimits = errors.New("rate limiter rate and burst must be positive")
)

type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Bucket is a token bucket keyed by caller.
type Bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (Result, error)
}

type RedisBucket struct {
	client redis.UniversalClient
	script *redis.Script
	prefix string
}

func NewRedisBucket(client redis.UniversalClient, prefix string) *RedisBucket {
	return &RedisBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
		prefix: prefix,
	}
}

func (b *RedisBucket) Allow(ctx context.Context, key string, rate float64, burst int) (Result, error) {
	if err := validate(key, rate, burst); err != nil {
		return Result{}, err
	}

	ttl := bucketTTL(rate, burst)
	res, err := b.script.Run(ctx, b.client, []string{b.prefix + key}, rate, burst, int64(ttl/time.Millisecond)).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 2 {
		return Result{}, errors.New("invalid rate limit script response")
	}

	allowed, _ := res[0].(int64)
	remaining := 0.0
	if raw, ok := res[1].(string); ok {
		remaining, _ = strconv.ParseFloat(raw, 64)
	}
	return result(allowed == 1, remaining, rate), nil
}

type localState struct {
	tokens float64
	ts     time.Time
}

// LocalBucket keeps buckets in process memory.
type LocalBucket struct {
	mu      sync.Mutex
	buckets map[string]*localState
	now     func() time.Time
}

func NewLocalBucket() *LocalBucket {
	return &LocalBucket{buckets: map[string]*localState{}, now: time.Now}
}

func (b *LocalBucket) Allow(_ context.Context, key string, rate float64, burst int) (Result, error) {
	if err := validate(key, rate, burst); err != nil {
		return Result{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	state, ok := b.buckets[key]
	if !ok {
		state = &localState{tokens: float64(burst), ts: now}
		b.buckets[key] = state
	} else {
		elapsed := now.Sub(state.ts).Seconds()
		if elapsed > 0 {
			state.tokens = math.Min(float64(burst), state.tokens+elapsed*rate)
		}
		state.ts = now
	}

	allowed := state.tokens >= 1
	if allowed {
		state.tokens--
	}
	b.evict(now, rate, burst)
	return result(allowed, state.tokens, rate), nil
}

// evict drops full buckets that have been idle past their TTL.
func (b *LocalBucket) evict(now time.Time, rate float64, burst int) {
	if len(b.buckets) < 1024 {
		return
	}
	ttl := bucketTTL(rate, burst)
	for key, state := range b.buckets {
		if now.Sub(state.ts) > ttl {
			delete(b.buckets, key)
		}
	}
}

func result(allowed bool, remaining float64, rate float64) Result {
	out := Result{Allowed: allowed, Remaining: int(remaining)}
	if !allowed {
		if needed := 1.0 - remaining; needed > 0 {
			out.RetryAfter = time.Duration(needed / rate * float64(time.Second))
		}
	}
	return out
}

func validate(key string, rate float64, burst int) error {
	if key == "" {
		return ErrEmptyKey
	}
	if rate <= 0 || burst <= 0 {
		return ErrInvalidLimits
	}
	return nil
}

func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
