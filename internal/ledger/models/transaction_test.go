package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTx(t *testing.T, txType TransactionType, amount string, status TransactionStatus) *Transaction {
	t.Helper()
	tx, err := NewTransaction(id.NewTransactionID(), uuid.New(), ParentReservation, txType, decimal.RequireFromString(amount), status, "ref", now)
	require.NoError(t, err)
	return tx
}

func TestNewTransaction_Invariants(t *testing.T) {
	parent := uuid.New()
	cases := []struct {
		name   string
		parent uuid.UUID
		kind   ParentKind
		typ    TransactionType
		amount decimal.Decimal
		status TransactionStatus
	}{
		{"nil parent", uuid.Nil, ParentReservation, TypeRefund, decimal.NewFromInt(1), StatusCompleted},
		{"unknown kind", parent, "LOAN", TypeRefund, decimal.NewFromInt(1), StatusCompleted},
		{"unknown type", parent, ParentReservation, "CHARGEBACK", decimal.NewFromInt(1), StatusCompleted},
		{"zero amount", parent, ParentReservation, TypeRefund, decimal.Zero, StatusCompleted},
		{"negative amount", parent, ParentReservation, TypeRefund, decimal.NewFromInt(-5), StatusCompleted},
		{"created failed", parent, ParentReservation, TypeRefund, decimal.NewFromInt(1), StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTransaction(id.NewTransactionID(), tc.parent, tc.kind, tc.typ, tc.amount, tc.status, "", now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func TestTransaction_FinalizeOnce(t *testing.T) {
	tx := newTx(t, TypeReservationFee, "500", StatusPending)
	require.NoError(t, tx.CanFinalize())

	tx.ApplyCompleted("card", "", now)
	assert.Equal(t, StatusCompleted, tx.Status)
	assert.Equal(t, "ref", tx.Reference, "empty reference keeps the original")
	require.NotNil(t, tx.ProcessedAt)

	err := tx.CanFinalize()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestRefundableBalance(t *testing.T) {
	txs := []*Transaction{
		newTx(t, TypeReservationFee, "500.00", StatusCompleted),
		newTx(t, TypeDepositApplied, "250.00", StatusCompleted),
		newTx(t, TypeReservationFee, "99.00", StatusPending),
		newTx(t, TypeRefund, "100.00", StatusCompleted),
	}
	assert.True(t, decimal.RequireFromString("650").Equal(RefundableBalance(txs)))
}
