package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TaskRunner runs fire-and-forget work on detached goroutines, bounded by a
// semaphore. Work submitted while the runner is saturated or stopped is
// dropped and logged; callers never wait on it.
type TaskRunner struct {
	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewTaskRunner(maxConcurrent int, logger zerolog.Logger) *TaskRunner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskRunner{
		sem:    make(chan struct{}, maxConcurrent),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "tasks").Logger(),
	}
}

// Go schedules fn. The context passed to fn is cancelled when Stop times out.
func (r *TaskRunner) Go(fn func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		r.logger.Warn().Msg("runner stopped, dropping background task")
		return
	}

	select {
	case r.sem <- struct{}{}:
	default:
		r.logger.Warn().Int("max", cap(r.sem)).Msg("runner saturated, dropping background task")
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.sem }()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error().Interface("panic", rec).Msg("background task panicked")
			}
		}()
		fn(r.ctx)
	}()
}

// Stop refuses new work and waits up to timeout for running tasks. It
// reports whether every task finished in time.
func (r *TaskRunner) Stop(timeout time.Duration) bool {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return true
	case <-time.After(timeout):
		r.cancel()
		r.logger.Warn().Dur("timeout", timeout).Msg("background tasks cancelled at shutdown")
		return false
	}
}
