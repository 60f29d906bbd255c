package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathieu-neron/segvote/internal/model"
)

type videoRef struct {
	videoID model.VideoID
	service model.Service
}

// Rechecker is the work a DurationWorker batches.
type Rechecker interface {
	Recheck(ctx context.Context, videoID model.VideoID, service model.Service) error
}

// DurationWorker coalesces duration rechecks. If 50 downvotes hit video X in
// one window, the API is asked once.
type DurationWorker struct {
	svc      Rechecker
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[videoRef]struct{}
}

func NewDurationWorker(svc Rechecker, interval time.Duration, logger zerolog.Logger) *DurationWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &DurationWorker{
		svc:      svc,
		interval: interval,
		logger:   logger.With().Str("component", "duration-worker").Logger(),
		pending:  make(map[videoRef]struct{}),
	}
}

// Enqueue schedules a recheck. It never blocks on the check itself.
func (w *DurationWorker) Enqueue(videoID model.VideoID, service model.Service) {
	w.mu.Lock()
	w.pending[videoRef{videoID, service}] = struct{}{}
	w.mu.Unlock()
}

// Start flushes pending rechecks every interval until ctx is cancelled, then
// runs a final flush.
func (w *DurationWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("starting")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			w.Flush(flushCtx)
			cancel()
			w.logger.Info().Msg("stopping (context cancelled)")
			return
		}
	}
}

// Flush drains the pending set and returns how many videos were checked
// without error.
func (w *DurationWorker) Flush(ctx context.Context) int {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return 0
	}
	batch := w.pending
	w.pending = make(map[videoRef]struct{})
	w.mu.Unlock()

	checked := 0
	for ref := range batch {
		if err := w.svc.Recheck(ctx, ref.videoID, ref.service); err != nil {
			w.logger.Error().Err(err).Str("video_id", string(ref.videoID)).Msg("duration recheck failed")
			continue
		}
		checked++
	}

	w.logger.Debug().Int("checked", checked).Int("batch", len(batch)).Msg("batch complete")
	return checked
}
