package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/model-booking/internal/config"
	"github.com/iliyamo/model-booking/internal/logger"
)

// takeScript refills the bucket by whole intervals and then takes one token
// if there is one. It returns {allowed, tokens_left, wait_ms}.
var takeScript = redis.NewScript(`
local now      = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill   = tonumber(ARGV[3])
local every    = tonumber(ARGV[4])
local ttl_ms   = tonumber(ARGV[5])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local stamp  = tonumber(redis.call('HGET', KEYS[1], 'stamp'))
if tokens == nil or stamp == nil then
  tokens = capacity
  stamp = now
end

local steps = math.floor(math.max(0, now - stamp) / every)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  stamp = stamp + steps * every
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.max(0, every - (now - stamp))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'stamp', stamp)
redis.call('PEXPIRE', KEYS[1], ttl_ms)
return { allowed, tokens, wait }
`)

type bucketDecision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// tokenBucket is a per-key token bucket kept in Redis so every instance
// shares the same budget.
type tokenBucket struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
	now func() time.Time
}

func (b *tokenBucket) take(ctx context.Context, key string) (bucketDecision, error) {
	res, err := takeScript.Run(ctx, b.rdb, []string{key},
		b.now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		b.cfg.TTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return bucketDecision{}, err
	}
	if len(res) != 3 {
		return bucketDecision{}, redis.Nil
	}
	return bucketDecision{
		Allowed:    res[0] == 1,
		Remaining:  res[1],
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// rateKey joins the parts named in cfg.KeyStrategy, e.g. "ip_user_route".
// The user part is the authenticated subject when an earlier middleware set
// one, otherwise "anon".
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	for _, p := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
		switch p {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			id := SubjectFrom(c).ID
			if id == "" {
				id = "anon"
			}
			parts = append(parts, "user", id)
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	if len(parts) == 1 {
		parts = append(parts, "ip", c.RealIP())
	}
	return strings.Join(parts, ":")
}

// NewTokenBucket limits requests per key. Redis errors let the request
// through rather than turning a cache outage into an API outage.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *logger.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = logger.Discard()
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * cfg.RefillInterval
	}
	bucket := &tokenBucket{cfg: cfg, rdb: rdb, now: time.Now}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			d, err := bucket.take(c.Request().Context(), key)
			if err != nil {
				log.Warn("ratelimit: redis error, allowing request", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.Allowed {
				return next(c)
			}

			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			log.Debug("ratelimit: blocked", "key", key, "retry_after", d.RetryAfter)
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"code":    "RATE_LIMITED",
				"message": "rate limit exceeded",
				"details": map[string]any{"retry_after": secs},
			})
		}
	}
}
