package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"

	"propie/pkg/platform/sentinel"
)

// RedisOptions tune the RedLock mutex used per entity.
type RedisOptions struct {
	Expiry      time.Duration
	Tries       int
	RetryDelay  time.Duration
	DriftFactor float64
}

// DefaultRedisOptions fit short transitions: a few database round trips.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Expiry:      10 * time.Second,
		Tries:       20,
		RetryDelay:  100 * time.Millisecond,
		DriftFactor: 0.01,
	}
}

// RedisLocker is a distributed Locker for multi-instance deployments.
type RedisLocker struct {
	rs     *redsync.Redsync
	opts   RedisOptions
	logger *slog.Logger
}

type RedisOption func(*RedisLocker)

func WithRedisOptions(opts RedisOptions) RedisOption {
	return func(l *RedisLocker) {
		l.opts = opts
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

func NewRedisLocker(client goredislib.UniversalClient, opts ...RedisOption) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	l := &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   DefaultRedisOptions(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, errEmptyKey
	}
	mutex := l.rs.NewMutex(
		key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
		redsync.WithDriftFactor(l.opts.DriftFactor),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire %s: %w: %w", key, sentinel.ErrLockNotAcquired, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
				l.logger.WarnContext(ctx, "failed to release lock",
					"lock_key", key,
					"unlock_ok", ok,
					"error", err,
				)
			}
		})
	}, nil
}
