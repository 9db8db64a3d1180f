package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/model-booking/internal/config"
)

// cachedResponse is what a cache entry holds in Redis.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// bodyRecorder tees the response to the client and keeps a copy up to
// limit bytes. A body over the limit is marked and never cached.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (r *bodyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.limit > 0 && r.buf.Len()+len(b) > r.limit {
			r.overflow = true
			r.buf.Reset()
		} else {
			r.buf.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

type responseCache struct {
	cfg     config.CacheConfig
	rdb     *redis.Client
	methods map[string]bool
	ttl     time.Duration
}

// key hashes the parts of the request selected by cfg.KeyStrategy. The
// request path is used rather than the route pattern so /v1/models/a and
// /v1/models/b are cached separately.
func (rc *responseCache) key(c echo.Context) string {
	r := c.Request()
	var src string
	switch strings.ToLower(rc.cfg.KeyStrategy) {
	case "route":
		src = r.URL.Path
	case "full_url":
		src = r.Method + " " + r.URL.Path + "?" + r.URL.RawQuery
	default: // route_query
		src = r.URL.Path + "?" + r.URL.RawQuery
	}
	sum := sha256.Sum256([]byte(src))
	return rc.cfg.Prefix + ":" + hex.EncodeToString(sum[:16])
}

func (rc *responseCache) lookup(ctx context.Context, key string) (cachedResponse, bool) {
	raw, err := rc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return cachedResponse{}, false
	}
	var cr cachedResponse
	if json.Unmarshal(raw, &cr) != nil || cr.Status == 0 {
		return cachedResponse{}, false
	}
	return cr, true
}

func (rc *responseCache) store(key string, cr cachedResponse) {
	raw, err := json.Marshal(cr)
	if err != nil {
		return
	}
	// The request context may already be done once the handler returned.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = rc.rdb.Set(ctx, key, raw, rc.ttl).Err()
}

func replay(c echo.Context, cr cachedResponse) error {
	h := c.Response().Header()
	for k, vals := range cr.Header {
		if strings.EqualFold(k, echo.HeaderContentLength) {
			continue
		}
		h[k] = append([]string(nil), vals...)
	}
	h.Set("X-Cache", "HIT")
	c.Response().WriteHeader(cr.Status)
	_, err := c.Response().Write(cr.Body)
	return err
}

// NewRedisCache caches 200 responses of the configured methods, headers
// included, for cfg.TTL. Requests carrying a bearer token bypass it since
// their responses may depend on the caller.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	rc := &responseCache{cfg: cfg, rdb: rdb, methods: cfg.MethodSet(), ttl: cfg.TTL}
	if rc.ttl <= 0 {
		rc.ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rc.methods[strings.ToUpper(c.Request().Method)] || BearerToken(c) != "" {
				return next(c)
			}
			key := rc.key(c)
			if cr, ok := rc.lookup(c.Request().Context(), key); ok {
				return replay(c, cr)
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}
			header := c.Response().Header().Clone()
			header.Del("X-Cache")
			rc.store(key, cachedResponse{Status: rec.status, Header: header, Body: bytes.Clone(rec.buf.Bytes())})
			return nil
		}
	}
}

// PurgeCache deletes every cached response under cfg.Prefix. Catalog writes
// call it so readers never see a stale listing for longer than one request.
func PurgeCache(ctx context.Context, cfg config.CacheConfig, rdb *redis.Client) error {
	if rdb == nil {
		return nil
	}
	iter := rdb.Scan(ctx, 0, cfg.Prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}
