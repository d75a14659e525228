package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeNotFound, "reservation not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeValidation))
	})

	t.Run("matches wrapped code through fmt wrapping", func(t *testing.T) {
		inner := New(CodeConcurrencyConflict, "version mismatch")
		err := fmt.Errorf("save reservation: %w", Wrap(inner, CodeInternal, "persist failed"))
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeConcurrencyConflict))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, GetCode(errors.New("boom")))
	})
}

func TestWrap_NilStaysNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestInvalidTransition(t *testing.T) {
	err := InvalidTransition("reservation", "CONFIRMED", "PENDING")

	require.Error(t, err)
	assert.True(t, Is(err, CodeInvalidTransition))

	te, ok := AsTransition(err)
	require.True(t, ok)
	assert.Equal(t, "CONFIRMED", te.Current)
	assert.Equal(t, []string{"PENDING"}, te.Required)
	assert.Contains(t, err.Error(), "requires [PENDING]")
}

func TestErrorsIs_MatchesByCodeAndMessage(t *testing.T) {
	err := fmt.Errorf("load: %w", New(CodeNotFound, "claim not found"))

	assert.ErrorIs(t, err, New(CodeNotFound, "claim not found"))
	assert.ErrorIs(t, err, &Error{Code: CodeNotFound})
	assert.NotErrorIs(t, err, New(CodeNotFound, "reservation not found"))
}
