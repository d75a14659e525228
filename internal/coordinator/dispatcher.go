package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"propie/internal/coordinator/metrics"
)

var (
	ErrQueueFull        = errors.New("dispatcher queue full")
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

const (
	defaultQueueSize  = 1024
	defaultWorkers    = 4
	defaultJobTimeout = 10 * time.Second
)

type job struct {
	name string
	ctx  context.Context
	run  func(ctx context.Context) error
}

// Dispatcher runs side effects on a bounded queue after their transition has
// committed. Enqueue never blocks: a full queue is reported to the caller.
type Dispatcher struct {
	queue      chan job
	workers    int
	jobTimeout time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu      sync.RWMutex
	closed  bool
	started sync.Once
	wg      sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan job, n)
		}
	}
}

func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithJobTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.jobTimeout = t
		}
	}
}

func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		queue:      make(chan job, defaultQueueSize),
		workers:    defaultWorkers,
		jobTimeout: defaultJobTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.started.Do(func() {
		for range d.workers {
			d.wg.Add(1)
			go d.work()
		}
	})
}

// Enqueue schedules fn. The job keeps ctx's values (request ID, actor) but
// not its cancellation, since the request usually ends first.
func (d *Dispatcher) Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(name)
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- job{name: name, ctx: context.WithoutCancel(ctx), run: fn}:
		if d.metrics != nil {
			d.metrics.Enqueued.WithLabelValues(name).Inc()
			d.metrics.QueueDepth.Inc()
		}
		return nil
	default:
		d.drop(name)
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or for
// ctx to end, whichever comes first.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.Start()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		if d.metrics != nil {
			d.metrics.QueueDepth.Dec()
		}
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.jobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "coordinator job panicked", "job", j.name, "panic", r)
			d.fail(j.name)
		}
	}()
	if err := j.run(ctx); err != nil {
		d.logger.WarnContext(ctx, "coordinator job failed", "job", j.name, "error", err)
		d.fail(j.name)
	}
}

func (d *Dispatcher) drop(name string) {
	if d.metrics != nil {
		d.metrics.Dropped.WithLabelValues(name).Inc()
	}
}

func (d *Dispatcher) fail(name string) {
	if d.metrics != nil {
		d.metrics.Failures.WithLabelValues(name).Inc()
	}
}
