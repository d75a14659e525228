package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "propie/pkg/domain-errors"
)

func TestMemoryRunner_RollsBackInReverseOrder(t *testing.T) {
	runner := NewMemoryRunner()
	var order []int
	state := 0

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		state = 1
		OnRollback(ctx, func() { order = append(order, 1); state = 0 })
		state = 2
		OnRollback(ctx, func() { order = append(order, 2); state = 1 })
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, []int{2, 1}, order)
	assert.Equal(t, 0, state)
}

func TestMemoryRunner_CommitDiscardsUndo(t *testing.T) {
	runner := NewMemoryRunner()
	called := false

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { called = true })
		return nil
	})

	require.NoError(t, err)
	assert.False(t, called)
}

func TestMemoryRunner_NestedJoinsOuter(t *testing.T) {
	runner := NewMemoryRunner()
	undone := 0

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		inner := runner.RunInTx(ctx, func(ctx context.Context) error {
			OnRollback(ctx, func() { undone++ })
			return nil
		})
		require.NoError(t, inner)
		return errors.New("outer fails after inner succeeded")
	})

	require.Error(t, err)
	assert.Equal(t, 1, undone, "inner write must be undone with the outer unit")
}

func TestMemoryRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemoryRunner().RunInTx(ctx, func(context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestAfterUnit(t *testing.T) {
	runner := NewMemoryRunner()

	t.Run("runs after rollback", func(t *testing.T) {
		var events []string
		err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
			OnRollback(ctx, func() { events = append(events, "undo") })
			require.True(t, AfterUnit(ctx, func() { events = append(events, "first") }))
			require.True(t, AfterUnit(ctx, func() { events = append(events, "second") }))
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.Equal(t, []string{"undo", "second", "first"}, events)
	})

	t.Run("nested registration waits for the outer unit", func(t *testing.T) {
		ran := false
		err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
			require.NoError(t, runner.RunInTx(ctx, func(ctx context.Context) error {
				AfterUnit(ctx, func() { ran = true })
				return nil
			}))
			assert.False(t, ran, "inner return does not end the unit")
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
	})

	t.Run("outside a unit", func(t *testing.T) {
		assert.False(t, InUnit(context.Background()))
		assert.False(t, AfterUnit(context.Background(), func() { t.Fatal("must not be kept") }))
	})
}
