package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathieu-neron/segvote/internal/metrics"
	"github.com/mathieu-neron/segvote/internal/model"
	segtestutil "github.com/mathieu-neron/segvote/internal/testutil"
)

func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis, *metrics.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	m := metrics.New(prometheus.NewRegistry())
	return NewCacheService(rdb, segtestutil.SyncRunner{}, zerolog.Nop(), m), mr, m
}

func TestCacheKeys(t *testing.T) {
	const hash model.HashedVideoID = "abcdef0123"
	svc := model.ServiceYouTube

	assert.Equal(t, "segments.v4.YouTube.videoID.vid", SegmentsByVideoKey("vid", svc))
	assert.Equal(t, "segments.groups.v4.YouTube.videoID.vid.c1", SegmentGroupsKey("vid", svc, "c1"))
	assert.Equal(t, "segments.groups.v4.YouTube.videoID.vid.*", SegmentGroupsPattern("vid", svc))
	assert.Equal(t, "segments.v4.YouTube.abcd", SegmentsByHashKey(hash, svc))
	assert.Equal(t, "labels.v1.YouTube.videoID.vid", LabelsByVideoKey("vid", svc))
	assert.Equal(t, "labels.v1.YouTube.abc", LabelsByHashKey(hash, svc))
	assert.Equal(t, "reputation.user.v2.u1", ReputationKey("u1"))
	assert.Equal(t, "vip.temp.u1", TempVIPKey("u1"))
}

func TestInvalidationKeys(t *testing.T) {
	keys := InvalidationKeys(model.SegmentCacheRef{
		VideoID:       "vid",
		HashedVideoID: "abcdef",
		Service:       model.ServiceYouTube,
		CID:           "c1",
		UserID:        "u1",
	})
	assert.ElementsMatch(t, []string{
		"segments.v4.YouTube.videoID.vid",
		"segments.v4.YouTube.abcd",
		"labels.v1.YouTube.videoID.vid",
		"labels.v1.YouTube.abc",
		"segments.groups.v4.YouTube.videoID.vid.c1",
		"reputation.user.v2.u1",
	}, keys)
}

func TestInvalidationKeys_DerivesHashAndService(t *testing.T) {
	keys := InvalidationKeys(model.SegmentCacheRef{VideoID: "vid"})
	hashed := testHasher.VideoID("vid")

	assert.Contains(t, keys, SegmentsByHashKey(hashed, model.ServiceYouTube))
	assert.Len(t, keys, 4, "no grouped or reputation key without cid or user")
}

func TestInvalidateSegment_WildcardGroups(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ref := model.SegmentCacheRef{VideoID: "vid", HashedVideoID: "abcdef", Service: model.ServiceYouTube, UserID: "u1"}

	doomed := append(InvalidationKeys(ref),
		SegmentGroupsKey("vid", ref.Service, "c1"),
		SegmentGroupsKey("vid", ref.Service, "c2"),
	)
	for _, k := range doomed {
		require.NoError(t, mr.Set(k, "x"))
	}
	survivor := SegmentsByVideoKey("other", ref.Service)
	require.NoError(t, mr.Set(survivor, "x"))

	c.InvalidateSegment(ref)

	for _, k := range doomed {
		assert.False(t, mr.Exists(k), k)
	}
	assert.True(t, mr.Exists(survivor))
}

func TestInvalidateSegment_KnownCID(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ref := model.SegmentCacheRef{VideoID: "vid", HashedVideoID: "abcdef", Service: model.ServiceYouTube, CID: "c1"}

	require.NoError(t, mr.Set(SegmentGroupsKey("vid", ref.Service, "c1"), "x"))
	require.NoError(t, mr.Set(SegmentGroupsKey("vid", ref.Service, "c2"), "x"))

	c.InvalidateSegment(ref)

	assert.False(t, mr.Exists(SegmentGroupsKey("vid", ref.Service, "c1")))
	assert.True(t, mr.Exists(SegmentGroupsKey("vid", ref.Service, "c2")))
}

func TestInvalidateSegment_FailuresAreCounted(t *testing.T) {
	c, mr, m := newTestCache(t)
	mr.Close()

	assert.NotPanics(t, func() {
		c.InvalidateSegment(model.SegmentCacheRef{VideoID: "vid"})
	})
	assert.Greater(t, testutil.ToFloat64(m.CacheInvalidateErrs), 0.0)
}

func TestInvalidateSegment_DisabledCache(t *testing.T) {
	var nilCache *CacheService
	assert.NotPanics(t, func() { nilCache.InvalidateSegment(model.SegmentCacheRef{VideoID: "vid"}) })

	c := NewCacheService(nil, segtestutil.SyncRunner{}, zerolog.Nop(), nil)
	assert.NotPanics(t, func() { c.InvalidateSegment(model.SegmentCacheRef{VideoID: "vid"}) })
}

func TestReadThrough(t *testing.T) {
	c, mr, m := newTestCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	v, err := ReadThrough(ctx, c, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)
	assert.True(t, mr.Exists("k"))
	assert.Greater(t, mr.TTL("k"), time.Duration(0))

	v, err = ReadThrough(ctx, c, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)
	assert.Equal(t, 1, calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses))
}

func TestReadThrough_CorruptEntryReloads(t *testing.T) {
	c, mr, _ := newTestCache(t)
	require.NoError(t, mr.Set("k", "{not json"))

	v, err := ReadThrough(context.Background(), c, "k", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestReadThrough_LoadErrorNotCached(t *testing.T) {
	c, mr, _ := newTestCache(t)
	boom := errors.New("boom")

	_, err := ReadThrough(context.Background(), c, "k", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestReadThrough_BackendDown(t *testing.T) {
	c, mr, _ := newTestCache(t)
	mr.Close()

	v, err := ReadThrough(context.Background(), c, "k", time.Minute, func(context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestReadThrough_Disabled(t *testing.T) {
	calls := 0
	for range 2 {
		_, err := ReadThrough(context.Background(), nil, "k", time.Minute, func(context.Context) (int, error) {
			calls++
			return 1, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}
