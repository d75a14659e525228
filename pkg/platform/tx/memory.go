package tx

import (
	"context"
	"sync"

	dErrors "propie/pkg/domain-errors"
)

type journalKey struct{}

// journal records compensating actions for writes made inside a memory unit.
type journal struct {
	mu   sync.Mutex
	undo []func()
}

func (j *journal) add(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.undo = append(j.undo, fn)
}

func (j *journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// OnRollback registers undo to run if the enclosing memory unit fails.
// Outside a unit the write is final and undo is dropped.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.add(undo)
	}
}

// MemoryRunner provides all-or-nothing semantics for the in-memory stores by
// replaying registered undo actions in reverse order when the unit fails.
// Writes are visible to other readers before commit, so every entity written
// inside a unit must stay locked until the unit ends (see lock.WithUnitLock).
type MemoryRunner struct{}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	ctx, u := begin(ctx)
	defer u.finish()

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}
