package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
)

// ParentKind names the aggregate a transaction belongs to.
type ParentKind string

const (
	ParentReservation ParentKind = "RESERVATION"
	ParentGrantClaim  ParentKind = "GRANT_CLAIM"
)

func (k ParentKind) IsValid() bool {
	return k == ParentReservation || k == ParentGrantClaim
}

// TransactionType classifies a money movement.
type TransactionType string

const (
	TypeReservationFee TransactionType = "RESERVATION_FEE"
	TypeFundsReceived  TransactionType = "FUNDS_RECEIVED"
	TypeDepositApplied TransactionType = "DEPOSIT_APPLIED"
	TypeRefund         TransactionType = "REFUND"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TypeReservationFee, TypeFundsReceived, TypeDepositApplied, TypeRefund:
		return true
	}
	return false
}

// TransactionStatus moves PENDING -> COMPLETED | FAILED exactly once.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Transaction is an append-only ledger record. Amount is always positive;
// Type decides whether it adds to or takes from the parent's balance.
type Transaction struct {
	ID            id.TransactionID  `json:"id"`
	ParentID      uuid.UUID         `json:"parent_id"`
	ParentKind    ParentKind        `json:"parent_kind"`
	Type          TransactionType   `json:"type"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        TransactionStatus `json:"status"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Reference     string            `json:"reference,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	ProcessedAt   *time.Time        `json:"processed_at,omitempty"`
}

// NewTransaction validates construction invariants. Transactions start either
// PENDING (awaiting confirmation) or COMPLETED (settled at creation).
func NewTransaction(
	txID id.TransactionID,
	parentID uuid.UUID,
	kind ParentKind,
	txType TransactionType,
	amount decimal.Decimal,
	status TransactionStatus,
	reference string,
	now time.Time,
) (*Transaction, error) {
	if parentID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transaction parent is required")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid transaction parent kind")
	}
	if !txType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid transaction type")
	}
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transaction amount must be positive")
	}
	if status != StatusPending && status != StatusCompleted {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transactions start PENDING or COMPLETED")
	}

	t := &Transaction{
		ID:         txID,
		ParentID:   parentID,
		ParentKind: kind,
		Type:       txType,
		Amount:     amount.Round(2),
		Status:     status,
		Reference:  reference,
		CreatedAt:  now,
	}
	if status == StatusCompleted {
		processed := now
		t.ProcessedAt = &processed
	}
	return t, nil
}

// CanFinalize checks the transaction has not left PENDING yet.
func (t *Transaction) CanFinalize() error {
	if t.Status != StatusPending {
		return dErrors.InvalidTransition("transaction", string(t.Status), string(StatusPending))
	}
	return nil
}

func (t *Transaction) ApplyCompleted(method, reference string, now time.Time) {
	t.Status = StatusCompleted
	if method != "" {
		t.PaymentMethod = method
	}
	if reference != "" {
		t.Reference = reference
	}
	t.ProcessedAt = &now
}

func (t *Transaction) ApplyFailed(reason string, now time.Time) {
	t.Status = StatusFailed
	t.FailureReason = reason
	t.ProcessedAt = &now
}

// Effect is the signed contribution to the parent's refundable balance.
// Only settled money counts.
func (t *Transaction) Effect() decimal.Decimal {
	if t.Status != StatusCompleted {
		return decimal.Zero
	}
	if t.Type == TypeRefund {
		return t.Amount.Neg()
	}
	return t.Amount
}

// RefundableBalance sums the signed effects of a parent's transactions.
func RefundableBalance(txs []*Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Effect())
	}
	return total
}
