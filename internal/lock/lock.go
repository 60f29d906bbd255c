// Package lock provides the named, time-bounded mutual exclusion used to
// serialize votes. Acquisition fails open when the shared backend is
// unreachable.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mathieu-neron/segvote/internal/metrics"
	"github.com/mathieu-neron/segvote/internal/model"
)

// DefaultTimeout is the lease used when callers pass a zero ttl.
const DefaultTimeout = 20 * time.Second

const releaseTimeout = 2 * time.Second

// Locker acquires named leases.
type Locker interface {
	// Acquire returns a held lease, or false when another holder owns key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool)
	// ForceUnlock drops key regardless of holder, for recovering stuck keys.
	ForceUnlock(ctx context.Context, key string) error
}

// Lease is a held lock. Release is idempotent and safe on a nil Lease.
type Lease struct {
	once    sync.Once
	release func()
}

// NewLease wraps release, which runs at most once.
func NewLease(release func()) *Lease {
	return &Lease{release: release}
}

func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if l.release != nil {
			l.release()
		}
	})
}

// VoteKey is the lock key serializing one user's votes on one segment.
func VoteKey(segmentID model.SegmentID, userID model.RawUserID) string {
	return "voteOnSponsorTime:" + string(segmentID) + "." + string(userID)
}

// New returns a RedisLocker, or a NoopLocker when rdb is nil.
func New(rdb *redis.Client, logger zerolog.Logger, m *metrics.Metrics) Locker {
	if rdb == nil {
		logger.Info().Str("component", "lock").Msg("redis disabled, vote lock runs fail-open")
		return NoopLocker{}
	}
	return NewRedisLocker(rdb, logger, m)
}

// releaseScript deletes the key only while it still holds our token, so a
// lease that outlived its ttl cannot drop a newer holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX on a shared Redis.
type RedisLocker struct {
	rdb     *redis.Client
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewRedisLocker(rdb *redis.Client, logger zerolog.Logger, m *metrics.Metrics) *RedisLocker {
	return &RedisLocker{
		rdb:     rdb,
		logger:  logger.With().Str("component", "lock").Logger(),
		metrics: m,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool) {
	if ttl <= 0 {
		ttl = DefaultTimeout
	}
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		l.logger.Error().Err(err).Str("key", key).Msg("lock backend unavailable, proceeding unlocked")
		l.metrics.Lock("fail_open")
		return &Lease{}, true
	}
	if !ok {
		l.metrics.Lock("contended")
		return nil, false
	}

	l.metrics.Lock("acquired")
	return &Lease{release: func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			l.logger.Error().Err(err).Str("key", key).Msg("lock release failed")
		}
	}}, true
}

func (l *RedisLocker) ForceUnlock(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, key).Err()
}

// NoopLocker always grants the lease.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string, time.Duration) (*Lease, bool) {
	return &Lease{}, true
}

func (NoopLocker) ForceUnlock(context.Context, string) error { return nil }
