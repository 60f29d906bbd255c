package service

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mathieu-neron/segvote/internal/metrics"
	"github.com/mathieu-neron/segvote/internal/model"
	"github.com/mathieu-neron/segvote/pkg/hash"
)

const (
	invalidateTimeout = 5 * time.Second
	scanBatch         = 100
)

// OpenRedis connects to redis. It returns nil when redis is disabled or
// unreachable; callers then run without cache and with a fail-open lock.
func OpenRedis(ctx context.Context, enabled bool, redisURL string, logger zerolog.Logger) *redis.Client {
	if !enabled || redisURL == "" {
		logger.Info().Msg("redis: disabled")
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error().Err(err).Msg("redis: invalid URL, caching disabled")
		return nil
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error().Err(err).Msg("redis: connection failed, caching disabled")
		_ = rdb.Close()
		return nil
	}

	logger.Info().Msg("redis: connected, caching enabled")
	return rdb
}

// Cache keys. Sibling services read the same keyspace, so the shapes are fixed.

func SegmentsByVideoKey(videoID model.VideoID, service model.Service) string {
	return "segments.v4." + string(service) + ".videoID." + string(videoID)
}

func SegmentGroupsKey(videoID model.VideoID, service model.Service, cid string) string {
	return "segments.groups.v4." + string(service) + ".videoID." + string(videoID) + "." + cid
}

func SegmentGroupsPattern(videoID model.VideoID, service model.Service) string {
	return SegmentGroupsKey(videoID, service, "*")
}

func SegmentsByHashKey(hashed model.HashedVideoID, service model.Service) string {
	return "segments.v4." + string(service) + "." + prefix(string(hashed), 4)
}

func LabelsByVideoKey(videoID model.VideoID, service model.Service) string {
	return "labels.v1." + string(service) + ".videoID." + string(videoID)
}

func LabelsByHashKey(hashed model.HashedVideoID, service model.Service) string {
	return "labels.v1." + string(service) + "." + prefix(string(hashed), 3)
}

func ReputationKey(userID model.HashedUserID) string {
	return "reputation.user.v2." + string(userID)
}

func TempVIPKey(userID model.HashedUserID) string {
	return "vip.temp." + string(userID)
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

// InvalidationKeys returns the exact keys derived from a segment. When ref.CID
// is empty the grouped views are dropped by pattern instead.
func InvalidationKeys(ref model.SegmentCacheRef) []string {
	hashed := ref.HashedVideoID
	if hashed == "" {
		hashed = model.HashedVideoID(hash.SHA256Hex(string(ref.VideoID)))
	}
	service := ref.Service
	if service == "" {
		service = model.ServiceYouTube
	}

	keys := []string{
		SegmentsByVideoKey(ref.VideoID, service),
		SegmentsByHashKey(hashed, service),
		LabelsByVideoKey(ref.VideoID, service),
		LabelsByHashKey(hashed, service),
	}
	if ref.CID != "" {
		keys = append(keys, SegmentGroupsKey(ref.VideoID, service, ref.CID))
	}
	if ref.UserID != "" {
		keys = append(keys, ReputationKey(ref.UserID))
	}
	return keys
}

// CacheService owns the shared redis cache. A nil client turns every
// operation into a no-op.
type CacheService struct {
	rdb     *redis.Client
	runner  Runner
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewCacheService(rdb *redis.Client, runner Runner, logger zerolog.Logger, m *metrics.Metrics) *CacheService {
	return &CacheService{
		rdb:     rdb,
		runner:  runner,
		logger:  logger.With().Str("component", "cache").Logger(),
		metrics: m,
	}
}

// Client returns the underlying Redis client (for health checks). May be nil.
func (c *CacheService) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}

// InvalidateSegment drops every cached view derived from the segment in the
// background. Failures are logged and counted, never returned.
func (c *CacheService) InvalidateSegment(ref model.SegmentCacheRef) {
	if c == nil || c.rdb == nil {
		return
	}
	keys := InvalidationKeys(ref)
	var pattern string
	if ref.CID == "" {
		service := ref.Service
		if service == "" {
			service = model.ServiceYouTube
		}
		pattern = SegmentGroupsPattern(ref.VideoID, service)
	}

	c.runner.Go(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, invalidateTimeout)
		defer cancel()

		for _, key := range keys {
			if err := c.rdb.Del(ctx, key).Err(); err != nil {
				c.metrics.CacheInvalidateError()
				c.logger.Error().Err(err).Str("key", key).Msg("cache delete failed")
			}
		}
		if pattern != "" {
			c.deletePattern(ctx, pattern)
		}
	})
}

func (c *CacheService) deletePattern(ctx context.Context, pattern string) {
	iter := c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			c.metrics.CacheInvalidateError()
			c.logger.Error().Err(err).Str("key", iter.Val()).Msg("cache delete failed")
		}
	}
	if err := iter.Err(); err != nil {
		c.metrics.CacheInvalidateError()
		c.logger.Error().Err(err).Str("pattern", pattern).Msg("cache scan failed")
	}
}

// ReadThrough returns the cached value at key, or loads it and caches the
// result for ttl. Cache failures fall back to load.
func ReadThrough[T any](ctx context.Context, c *CacheService, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	if c == nil || c.rdb == nil {
		return load(ctx)
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			c.metrics.CacheHit()
			return v, nil
		}
		c.logger.Warn().Str("key", key).Msg("undecodable cache entry, reloading")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	c.metrics.CacheMiss()

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return v, nil
	}
	if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return v, nil
}

// Close shuts down the Redis connection.
func (c *CacheService) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
