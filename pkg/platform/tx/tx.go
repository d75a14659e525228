// Package tx defines the atomic unit of work shared by stores and services.
//
// A Runner opens a unit, hands the caller a context that carries it, and
// commits when the callback returns nil. Stores look the unit up from the
// context, so every write made with that context joins it. Nested RunInTx
// calls join the outer unit rather than opening a new one. Work registered
// with AfterUnit runs once the outermost unit has ended.
package tx

import (
	"context"
	"database/sql"
	"sync"
)

// Runner executes fn atomically.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

type unitKey struct{}

// unit collects work that must wait until the outermost unit has committed
// or rolled back.
type unit struct {
	mu    sync.Mutex
	after []func()
}

func begin(ctx context.Context) (context.Context, *unit) {
	u := &unit{}
	return context.WithValue(ctx, unitKey{}, u), u
}

// finish runs the registered callbacks in reverse order of registration.
func (u *unit) finish() {
	u.mu.Lock()
	after := u.after
	u.after = nil
	u.mu.Unlock()
	for i := len(after) - 1; i >= 0; i-- {
		after[i]()
	}
}

// InUnit reports whether ctx belongs to an open unit of work.
func InUnit(ctx context.Context) bool {
	_, ok := ctx.Value(unitKey{}).(*unit)
	return ok
}

// AfterUnit registers fn to run once the outermost unit in ctx has ended,
// whether it committed or rolled back. It returns false, without keeping fn,
// when ctx is not inside a unit.
func AfterUnit(ctx context.Context, fn func()) bool {
	u, ok := ctx.Value(unitKey{}).(*unit)
	if !ok {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.after = append(u.after, fn)
	return true
}
