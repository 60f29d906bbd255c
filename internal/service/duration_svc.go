package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/mathieu-neron/segvote/internal/metrics"
	"github.com/mathieu-neron/segvote/internal/model"
	"github.com/mathieu-neron/segvote/internal/videoapi"
)

// durationTolerance is how far, in seconds, a stored duration may drift from
// the API before segments are considered stale.
const durationTolerance = 2.0

// DurationService keeps stored video durations consistent with the video API.
type DurationService struct {
	segments SegmentStore
	lockCats LockCategoryStore
	videos   VideoDetailsFetcher
	cache    *CacheService
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

func NewDurationService(segments SegmentStore, lockCats LockCategoryStore, videos VideoDetailsFetcher, cache *CacheService, logger zerolog.Logger, m *metrics.Metrics) *DurationService {
	return &DurationService{
		segments: segments,
		lockCats: lockCats,
		videos:   videos,
		cache:    cache,
		logger:   logger.With().Str("component", "duration").Logger(),
		metrics:  m,
	}
}

// Recheck hides the video's segments when the newest visible submission was
// made against a different cut of the video, and clears its lock records.
func (s *DurationService) Recheck(ctx context.Context, videoID model.VideoID, service model.Service) error {
	details, err := s.videos.GetVideoDetails(ctx, videoID, true)
	if errors.Is(err, videoapi.ErrNotFound) {
		s.metrics.DurationCheck("unknown")
		return nil
	}
	if err != nil {
		s.metrics.DurationCheck("error")
		return fmt.Errorf("fetch video details: %w", err)
	}
	if details.Duration == 0 {
		s.metrics.DurationCheck("unknown")
		return nil
	}

	latest, err := s.segments.LatestVisibleSubmission(ctx, videoID, service)
	if err != nil {
		s.metrics.DurationCheck("error")
		return err
	}
	if latest == nil || math.Abs(latest.VideoDuration-details.Duration) <= durationTolerance {
		s.metrics.DurationCheck("consistent")
		return nil
	}

	hidden, err := s.segments.HideSubmittedBefore(ctx, videoID, service, latest.TimeSubmitted)
	if err != nil {
		s.metrics.DurationCheck("error")
		return err
	}
	if err := s.lockCats.DeleteByVideo(ctx, videoID, service); err != nil {
		s.metrics.DurationCheck("error")
		return err
	}

	s.cache.InvalidateSegment(model.SegmentCacheRef{
		VideoID:       videoID,
		HashedVideoID: latest.HashedVideoID,
		Service:       service,
	})
	s.metrics.DurationCheck("hidden")
	s.logger.Info().
		Str("video_id", string(videoID)).
		Float64("stored", latest.VideoDuration).
		Float64("api", details.Duration).
		Int64("hidden", hidden).
		Msg("video duration changed, stale segments hidden")
	return nil
}

// RefreshSegment updates the segment's stored duration when the API reports
// a different length.
func (s *DurationService) RefreshSegment(ctx context.Context, seg *model.Segment) error {
	details, err := s.videos.GetVideoDetails(ctx, seg.VideoID, false)
	if err != nil {
		return fmt.Errorf("fetch video details: %w", err)
	}
	if details.Duration <= 0 || math.Abs(seg.VideoDuration-details.Duration) <= durationTolerance {
		return nil
	}
	return s.segments.SetVideoDuration(ctx, seg.UUID, details.Duration)
}
