package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propie/pkg/requestcontext"
)

func TestDispatcher_RunsQueuedJobs(t *testing.T) {
	d := NewDispatcher(WithWorkers(2))
	d.Start()

	var ran atomic.Int32
	for range 10 {
		require.NoError(t, d.Enqueue(context.Background(), "job", func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, int32(10), ran.Load())
}

func TestDispatcher_JobOutlivesRequestContext(t *testing.T) {
	d := NewDispatcher(WithWorkers(1))

	ctx, cancel := context.WithCancel(requestcontext.WithRequestID(context.Background(), "req-1"))
	var (
		seenID  string
		seenErr error
	)
	require.NoError(t, d.Enqueue(ctx, "job", func(ctx context.Context) error {
		seenID = requestcontext.RequestID(ctx)
		seenErr = ctx.Err()
		return nil
	}))
	cancel()

	d.Start()
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, "req-1", seenID)
	assert.NoError(t, seenErr)
}

func TestDispatcher_FullQueueRejects(t *testing.T) {
	d := NewDispatcher(WithQueueSize(1))
	noop := func(context.Context) error { return nil }

	require.NoError(t, d.Enqueue(context.Background(), "first", noop))
	assert.ErrorIs(t, d.Enqueue(context.Background(), "second", noop), ErrQueueFull)

	d.Start()
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_ClosedRejects(t *testing.T) {
	d := NewDispatcher()
	d.Start()
	require.NoError(t, d.Shutdown(context.Background()))

	err := d.Enqueue(context.Background(), "late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrDispatcherClosed)
	// second shutdown is harmless
	assert.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_FailuresAndPanicsDoNotStopWorkers(t *testing.T) {
	d := NewDispatcher(WithWorkers(1), WithJobTimeout(time.Second))
	d.Start()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	require.NoError(t, d.Enqueue(context.Background(), "fails", func(context.Context) error { return errors.New("boom") }))
	require.NoError(t, d.Enqueue(context.Background(), "panics", func(context.Context) error { panic("boom") }))
	require.NoError(t, d.Enqueue(context.Background(), "after", record("after")))

	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, []string{"after"}, order)
}

func TestDispatcher_ShutdownHonoursDeadline(t *testing.T) {
	d := NewDispatcher(WithWorkers(1))
	d.Start()

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, d.Enqueue(context.Background(), "slow", func(context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)
}

func TestDispatcher_JobTimeout(t *testing.T) {
	d := NewDispatcher(WithWorkers(1), WithJobTimeout(10*time.Millisecond))
	d.Start()

	var err error
	require.NoError(t, d.Enqueue(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		err = ctx.Err()
		return err
	}))
	require.NoError(t, d.Shutdown(context.Background()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
