package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestTaskRunner_RunsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := NewTaskRunner(4, zerolog.Nop())
	var ran atomic.Int32
	for range 4 {
		r.Go(func(context.Context) { ran.Add(1) })
	}

	assert.True(t, r.Stop(time.Second))
	assert.Equal(t, int32(4), ran.Load())
}

func TestTaskRunner_DropsWhenSaturated(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := NewTaskRunner(1, zerolog.Nop())
	release := make(chan struct{})
	started := make(chan struct{})
	r.Go(func(context.Context) {
		close(started)
		<-release
	})
	<-started

	var ran atomic.Bool
	r.Go(func(context.Context) { ran.Store(true) })

	close(release)
	assert.True(t, r.Stop(time.Second))
	assert.False(t, ran.Load(), "task beyond capacity must be dropped")
}

func TestTaskRunner_StopTimeoutCancelsContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := NewTaskRunner(2, zerolog.Nop())
	r.Go(func(ctx context.Context) { <-ctx.Done() })

	assert.False(t, r.Stop(20*time.Millisecond))
}

func TestTaskRunner_RejectsAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := NewTaskRunner(2, zerolog.Nop())
	r.Stop(time.Second)

	var ran atomic.Bool
	r.Go(func(context.Context) { ran.Store(true) })
	assert.False(t, ran.Load())
}

func TestTaskRunner_RecoversPanics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := NewTaskRunner(2, zerolog.Nop())
	r.Go(func(context.Context) { panic("boom") })
	assert.True(t, r.Stop(time.Second))
}
