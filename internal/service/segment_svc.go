package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/mathieu-neron/segvote/internal/model"
)

// ErrInvalidHashPrefix is returned for prefixes that are not 4-32 lowercase hex characters.
var ErrInvalidHashPrefix = errors.New("hash prefix must be 4-32 hex characters")

var hashPrefixRe = regexp.MustCompile(`^[0-9a-f]{4,32}$`)

// cachedPrefixLen is the prefix length cached lists are keyed on. Longer
// prefixes are filtered from the cached list in memory.
const cachedPrefixLen = 4

// SegmentService serves visible segments through the read-through cache.
type SegmentService struct {
	segments SegmentStore
	cache    *CacheService
	ttl      time.Duration
}

func NewSegmentService(segments SegmentStore, cache *CacheService, ttl time.Duration) *SegmentService {
	return &SegmentService{segments: segments, cache: cache, ttl: ttl}
}

// ListByVideo returns the visible segments of one video.
func (s *SegmentService) ListByVideo(ctx context.Context, videoID model.VideoID, service model.Service) ([]model.SegmentResponse, error) {
	return ReadThrough(ctx, s.cache, SegmentsByVideoKey(videoID, service), s.ttl,
		func(ctx context.Context) ([]model.SegmentResponse, error) {
			segments, err := s.segments.ListVisibleByVideo(ctx, videoID, service)
			if err != nil {
				return nil, err
			}
			out := make([]model.SegmentResponse, 0, len(segments))
			for i := range segments {
				out = append(out, segments[i].ToResponse())
			}
			return out, nil
		})
}

// ListByHashPrefix returns visible segments grouped by video for every video
// whose hashed ID starts with prefix.
func (s *SegmentService) ListByHashPrefix(ctx context.Context, prefix string, service model.Service) ([]model.VideoSegments, error) {
	prefix = strings.ToLower(prefix)
	if !hashPrefixRe.MatchString(prefix) {
		return nil, ErrInvalidHashPrefix
	}

	short := model.HashedVideoID(prefix[:cachedPrefixLen])
	groups, err := ReadThrough(ctx, s.cache, SegmentsByHashKey(short, service), s.ttl,
		func(ctx context.Context) ([]model.VideoSegments, error) {
			segments, err := s.segments.ListVisibleByHashPrefix(ctx, string(short), service)
			if err != nil {
				return nil, err
			}
			return groupByVideo(segments), nil
		})
	if err != nil {
		return nil, err
	}

	if len(prefix) == cachedPrefixLen {
		return groups, nil
	}
	filtered := make([]model.VideoSegments, 0, len(groups))
	for _, g := range groups {
		if strings.HasPrefix(string(g.Hash), prefix) {
			filtered = append(filtered, g)
		}
	}
	return filtered, nil
}

// groupByVideo expects segments ordered by video.
func groupByVideo(segments []model.Segment) []model.VideoSegments {
	groups := make([]model.VideoSegments, 0)
	for i := range segments {
		seg := &segments[i]
		if n := len(groups); n == 0 || groups[n-1].VideoID != seg.VideoID {
			groups = append(groups, model.VideoSegments{VideoID: seg.VideoID, Hash: seg.HashedVideoID})
		}
		last := &groups[len(groups)-1]
		last.Segments = append(last.Segments, seg.ToResponse())
	}
	return groups
}
