package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/busstation/station/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size+int64(len(b)) <= cw.limit {
		cw.buf.Write(b)
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// ResponseCache serves repeated GETs of read-mostly catalog routes from
// Redis and drops every cached entry when a write under those routes
// succeeds, so readers never see a catalog older than the last write.
type ResponseCache struct {
	cfg    config.CacheConfig
	rdb    *redis.Client
	logger *zap.Logger
}

// NewResponseCache returns a cache; with caching disabled or no Redis
// client its middleware is a no-op.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, logger *zap.Logger) *ResponseCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, logger: logger}
}

func (rc *ResponseCache) enabled() bool { return rc.cfg.Enabled && rc.rdb != nil }

func (rc *ResponseCache) covers(path string) bool {
	for _, p := range rc.cfg.Routes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

// Middleware returns the echo middleware.  It must run after
// authentication so that rejected requests never reach the cache.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	if !rc.enabled() {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if !rc.covers(path) {
				return next(c)
			}
			if c.Request().Method != http.MethodGet {
				return rc.invalidateAfter(c, next)
			}
			return rc.serve(c, next)
		}
	}
}

func (rc *ResponseCache) serve(c echo.Context, next echo.HandlerFunc) error {
	ctx := c.Request().Context()
	key := rc.key(c)

	if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
		if status, hdr, body, ok := decodePayload(bs); ok {
			for k, vals := range hdr {
				if strings.EqualFold(k, "Content-Length") {
					continue
				}
				for _, v := range vals {
					c.Response().Header().Add(k, v)
				}
			}
			c.Response().Header().Set("X-Cache", "HIT")
			c.Response().WriteHeader(status)
			_, err := c.Response().Write(body)
			return err
		}
	}

	cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
	c.Response().Writer = cw
	c.Response().Header().Set("X-Cache", "MISS")
	if err := next(c); err != nil {
		return err
	}
	if cw.status != http.StatusOK || (cw.limit > 0 && cw.size > cw.limit) {
		return nil
	}
	hdr := c.Response().Header().Clone()
	hdr.Del("X-Cache")
	payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
	if err != nil {
		return nil
	}
	if err := rc.rdb.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
		rc.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (rc *ResponseCache) invalidateAfter(c echo.Context, next echo.HandlerFunc) error {
	err := next(c)
	if status := c.Response().Status; err == nil && status >= 200 && status < 300 {
		if n, derr := rc.Invalidate(context.WithoutCancel(c.Request().Context())); derr != nil {
			rc.logger.Warn("cache invalidation failed", zap.Error(derr))
		} else {
			rc.logger.Debug("cache invalidated", zap.Int("keys", n))
		}
	}
	return err
}

// Invalidate deletes every cached response and reports how many keys
// were removed.
func (rc *ResponseCache) Invalidate(ctx context.Context) (int, error) {
	if !rc.enabled() {
		return 0, nil
	}
	return DelPattern(ctx, rc.rdb, rc.cfg.Prefix+":*")
}

// DelPattern deletes keys matching pattern.  The scan runs to completion
// before anything is deleted, since deleting under a moving cursor can
// skip keys.  SCAN may report a key twice, so the matches are
// deduplicated; DEL then runs in batches of 100.
func DelPattern(ctx context.Context, rdb *redis.Client, pattern string) (int, error) {
	const batchSize = 100
	var keys []string
	seen := make(map[string]struct{})
	iter := rdb.Scan(ctx, 0, pattern, batchSize).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}

	total := 0
	for len(keys) > 0 {
		n := min(batchSize, len(keys))
		deleted, err := rdb.Del(ctx, keys[:n]...).Result()
		if err != nil {
			return total, err
		}
		total += int(deleted)
		keys = keys[n:]
	}
	return total, nil
}

// key builds a stable cache key honoring prefix/strategy.  Catalog reads
// are the same for every user, so the default ignores identity.
func (rc *ResponseCache) key(c echo.Context) string {
	r := c.Request()
	var tail string
	switch rc.cfg.KeyStrategy {
	case "route":
		tail = "route:" + r.URL.Path
	case "user_route_query":
		tail = fmt.Sprintf("user:%s:route:%s:q:%s", rateKeyUser(c), r.URL.Path, r.URL.RawQuery)
	default: // route_query
		tail = "route:" + r.URL.Path + ":q:" + r.URL.RawQuery
	}
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%x", rc.cfg.Prefix, sum[:])
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
