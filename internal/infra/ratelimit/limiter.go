// Package ratelimit implements a Redis token bucket shared by all API instances.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"parkshare/config"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const keyPrefix = "parkshare:ratelimit:"

var bucketScript = goredis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = interval_ms - (now_ms - last_refill)
		if retry_after_ms < 0 then retry_after_ms = 0 end
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// Result is the outcome of one token request.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter takes tokens from per-key buckets.
type Limiter struct {
	rdb *goredis.Client
	cfg config.RateLimitConfig
	now func() time.Time
}

// Params defines the dependencies of the limiter
type Params struct {
	fx.In

	Config *config.Config
	Redis  *goredis.Client `optional:"true"`
}

// New returns nil when rate limiting is disabled or Redis is not configured.
func New(params Params) *Limiter {
	if params.Config.RateLimit == nil || !params.Config.RateLimit.Enabled || params.Redis == nil {
		return nil
	}

	return NewLimiter(params.Redis, *params.Config.RateLimit)
}

// NewLimiter creates a limiter over an existing client.
func NewLimiter(rdb *goredis.Client, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{rdb: rdb, cfg: cfg, now: time.Now}
}

// Allow takes one token from the bucket of key.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	vals, err := bucketScript.Run(ctx, l.rdb, []string{keyPrefix + key},
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL/time.Second),
	).Slice()
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to run token bucket")
	}
	if len(vals) != 3 {
		return Result{}, errors.Errorf("unexpected token bucket result: %v", vals)
	}

	return Result{
		Allowed:    asInt64(vals[0]) == 1,
		Limit:      l.cfg.Capacity,
		Remaining:  asInt64(vals[1]),
		RetryAfter: time.Duration(asInt64(vals[2])) * time.Millisecond,
	}, nil
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}
