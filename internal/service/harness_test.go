package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mathieu-neron/segvote/internal/config"
	"github.com/mathieu-neron/segvote/internal/metrics"
	"github.com/mathieu-neron/segvote/internal/model"
	"github.com/mathieu-neron/segvote/internal/testutil"
	"github.com/mathieu-neron/segvote/internal/videoapi"
)

const (
	testSegment model.SegmentID = "seg-1"
	testVideo   model.VideoID   = "video-1"
)

// testHasher is shared so the iterated hashes are computed once per identity.
var testHasher = NewHasher("test-salt", 1)

func raw(name string) model.RawUserID {
	return model.RawUserID(name + strings.Repeat("x", 40))
}

func hashed(name string) model.HashedUserID {
	return testHasher.UserID(raw(name))
}

type harness struct {
	store   *testutil.MemStore
	locker  *testutil.FakeLocker
	videos  *testutil.FakeVideos
	queue   *testutil.RecordingQueue
	rdb     *redis.Client
	mr      *miniredis.Miniredis
	cache   *CacheService
	metrics *metrics.Metrics
	svc     *VoteService
}

// newHarness wires a VoteService over in-memory fakes and a miniredis cache.
func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		store:   testutil.NewMemStore(),
		locker:  testutil.NewFakeLocker(),
		videos:  testutil.NewFakeVideos(),
		queue:   &testutil.RecordingQueue{},
		rdb:     rdb,
		mr:      mr,
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	logger := zerolog.Nop()
	h.cache = NewCacheService(rdb, testutil.SyncRunner{}, logger, h.metrics)

	categories := NewCategoryService(h.store, h.store, h.store, h.store, h.store, h.cache, config.DefaultCategorySupport, logger)
	durations := NewDurationService(h.store, h.store, h.videos, h.cache, logger, h.metrics)

	h.svc = NewVoteService(VoteDeps{
		Segments:   h.store,
		LockCats:   h.store,
		Users:      h.store,
		Votes:      h.store,
		Hasher:     testHasher,
		Trust:      NewTrustService(h.store, rdb, h.videos, logger),
		Locker:     h.locker,
		Cache:      h.cache,
		Categories: categories,
		Durations:  h.queue,
		Refresher:  durations,
		Metrics:    h.metrics,
		Logger:     logger,
	}, VoteOptions{
		MinUserIDLength:   30,
		MaxActiveWarnings: 1,
		WarningExpiry:     16 * time.Hour,
		LockTimeout:       20 * time.Second,
	})

	h.store.PutSegment(model.Segment{
		UUID:          testSegment,
		VideoID:       testVideo,
		HashedVideoID: testHasher.VideoID(testVideo),
		Category:      "sponsor",
		ActionType:    model.ActionSkip,
		StartTime:     10,
		EndTime:       20,
		VideoDuration: 300,
		UserID:        hashed("submitter"),
		TimeSubmitted: 1000,
	})
	return h
}

// updateSegment rewrites the test segment.
func (h *harness) updateSegment(fn func(*model.Segment)) {
	s := h.store.Segment(testSegment)
	fn(&s)
	h.store.PutSegment(s)
}

// reputable gives the user a counted submission in category.
func (h *harness) reputable(name string, category model.Category) {
	h.store.PutSegment(model.Segment{
		UUID:          model.SegmentID("rep-" + name + "-" + string(category)),
		VideoID:       "other-video",
		Category:      category,
		ActionType:    model.ActionSkip,
		UserID:        hashed(name),
		TimeSubmitted: 1,
	})
}

func (h *harness) vip(name string) {
	h.store.AddVIP(hashed(name))
}

func (h *harness) vote(name, ip string, t model.VoteType) model.VoteResult {
	return h.svc.Vote(context.Background(), model.VoteRequest{
		IP:        ip,
		SegmentID: testSegment,
		UserID:    raw(name),
		Type:      &t,
	})
}

func (h *harness) categoryVote(name, ip string, c model.Category) model.VoteResult {
	return h.svc.Vote(context.Background(), model.VoteRequest{
		IP:        ip,
		SegmentID: testSegment,
		UserID:    raw(name),
		Category:  &c,
	})
}

func (h *harness) votes() int {
	return h.store.Segment(testSegment).Votes
}

func videoDetails(channelID string) videoapi.Details {
	return videoapi.Details{Duration: 300, ChannelID: channelID}
}
