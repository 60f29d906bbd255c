package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/mathieu-neron/segvote/internal/lock"
	"github.com/mathieu-neron/segvote/internal/model"
	"github.com/mathieu-neron/segvote/internal/videoapi"
)

// FakeLocker is an in-process lock.Locker honoring mutual exclusion.
type FakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewFakeLocker() *FakeLocker {
	return &FakeLocker{held: make(map[string]bool)}
}

func (l *FakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (*lock.Lease, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false
	}
	l.held[key] = true
	return lock.NewLease(func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}), true
}

func (l *FakeLocker) ForceUnlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// Hold marks key as held by someone else.
func (l *FakeLocker) Hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = true
}

// Held reports whether key is currently held.
func (l *FakeLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key]
}

// FakeVideos serves canned video details.
type FakeVideos struct {
	mu      sync.Mutex
	details map[model.VideoID]videoapi.Details
	calls   int

	Err error
	// Delay holds each lookup until it elapses or the context is done.
	Delay time.Duration
}

func NewFakeVideos() *FakeVideos {
	return &FakeVideos{details: make(map[model.VideoID]videoapi.Details)}
}

func (f *FakeVideos) Set(videoID model.VideoID, d videoapi.Details) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[videoID] = d
}

func (f *FakeVideos) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeVideos) GetVideoDetails(ctx context.Context, videoID model.VideoID, _ bool) (*videoapi.Details, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	d, ok := f.details[videoID]
	if !ok {
		return nil, videoapi.ErrNotFound
	}
	return &d, nil
}

// SyncRunner runs background work inline so tests can assert on its effects.
type SyncRunner struct{}

func (SyncRunner) Go(fn func(ctx context.Context)) { fn(context.Background()) }

// RecordingQueue records duration recheck requests.
type RecordingQueue struct {
	mu     sync.Mutex
	videos []model.VideoID
}

func (q *RecordingQueue) Enqueue(videoID model.VideoID, _ model.Service) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.videos = append(q.videos, videoID)
}

func (q *RecordingQueue) Videos() []model.VideoID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.VideoID(nil), q.videos...)
}
