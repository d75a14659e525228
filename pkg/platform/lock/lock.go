// Package lock serializes work per entity.
//
// Every state transition on a reservation or grant claim runs under the lock
// for that entity's key, so two transitions on the same entity never
// interleave while transitions on different entities run in parallel.
package lock

import (
	"context"
	"errors"

	"propie/pkg/platform/tx"
)

// Locker serializes work on one key.
// Acquisition failures wrap sentinel.ErrLockNotAcquired.
type Locker interface {
	// WithLock runs fn while holding the lock named key.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
	// Acquire takes the lock and returns the function that releases it.
	// Release is safe to call more than once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

var errEmptyKey = errors.New("lock key cannot be empty")

// Key builds the lock key for one entity, e.g. lock:reservation:<id>.
func Key(kind, id string) string {
	return "lock:" + kind + ":" + id
}

// WithUnitLock runs fn under the lock for key. Outside a unit of work it is
// WithLock. Inside one, the lock is held until the outermost unit commits or
// rolls back, so nobody reads the entity's uncommitted state and the unit's
// rollback never overwrites a later writer.
func WithUnitLock(ctx context.Context, l Locker, key string, fn func(ctx context.Context) error) error {
	if !tx.InUnit(ctx) {
		return l.WithLock(ctx, key, fn)
	}
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	if !tx.AfterUnit(ctx, release) {
		defer release()
	}
	return fn(ctx)
}
