package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"propie/internal/ledger/models"
	"propie/internal/ledger/store"
	dErrors "propie/pkg/domain-errors"
	"propie/pkg/platform/tx"
	"propie/pkg/requestcontext"
)

type LedgerServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemoryStore
	service *Service
	parent  uuid.UUID
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s.store = store.NewInMemory()
	svc, err := New(s.store)
	s.Require().NoError(err)
	s.service = svc
	s.parent = uuid.New()
}

func (s *LedgerServiceSuite) record(txType models.TransactionType, amount string, status models.TransactionStatus, ref string) *models.Transaction {
	t, err := s.service.RecordTransaction(s.ctx, RecordRequest{
		ParentID:   s.parent,
		ParentKind: models.ParentReservation,
		Type:       txType,
		Amount:     decimal.RequireFromString(amount),
		Status:     status,
		Reference:  ref,
	})
	s.Require().NoError(err)
	return t
}

// =============================================================================
// RecordTransaction
// =============================================================================

func (s *LedgerServiceSuite) TestRecordTransaction() {
	s.Run("rounds to cents and stamps request time", func() {
		t := s.record(models.TypeReservationFee, "500.004", models.StatusPending, "RES-1")
		s.Equal("500.00", t.Amount.StringFixed(2))
		s.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), t.CreatedAt)
		s.Nil(t.ProcessedAt)
	})

	s.Run("invalid amount is a validation error", func() {
		_, err := s.service.RecordTransaction(s.ctx, RecordRequest{
			ParentID: s.parent, ParentKind: models.ParentReservation,
			Type: models.TypeReservationFee, Amount: decimal.Zero, Status: models.StatusPending,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("deposit applied is recorded once per reference", func() {
		s.record(models.TypeDepositApplied, "100", models.StatusCompleted, "claim-1")
		_, err := s.service.RecordTransaction(s.ctx, RecordRequest{
			ParentID: s.parent, ParentKind: models.ParentReservation,
			Type: models.TypeDepositApplied, Amount: decimal.NewFromInt(100),
			Status: models.StatusCompleted, Reference: "claim-1",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// =============================================================================
// Settlement
// =============================================================================

func (s *LedgerServiceSuite) TestMarkCompleted() {
	pending := s.record(models.TypeReservationFee, "500", models.StatusPending, "RES-1")

	done, err := s.service.MarkCompleted(s.ctx, pending.ID, "card", "PAY-42")
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, done.Status)
	s.Equal("PAY-42", done.Reference)

	s.Run("second settlement is rejected", func() {
		_, err := s.service.MarkFailed(s.ctx, pending.ID, "declined")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		stored, err := s.store.FindByID(s.ctx, pending.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, stored.Status, "settled row never changes again")
	})
}

func (s *LedgerServiceSuite) TestMarkFailed_DoesNotCountTowardBalance() {
	pending := s.record(models.TypeReservationFee, "10", models.StatusPending, "x")
	_, err := s.service.MarkFailed(s.ctx, pending.ID, "declined")
	s.Require().NoError(err)

	balance, err := s.service.RefundableBalance(s.ctx, s.parent)
	s.Require().NoError(err)
	s.True(balance.IsZero(), "failed payments do not count toward the balance")
}

// =============================================================================
// Refund
// =============================================================================

func (s *LedgerServiceSuite) TestRefund() {
	s.record(models.TypeReservationFee, "500", models.StatusCompleted, "RES-1")

	s.Run("refund beyond balance fails", func() {
		_, err := s.service.Refund(s.ctx, s.parent, models.ParentReservation, decimal.NewFromInt(501), "cancel")
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
	})

	s.Run("partial refunds consume the balance", func() {
		_, err := s.service.Refund(s.ctx, s.parent, models.ParentReservation, decimal.NewFromInt(200), "partial")
		s.Require().NoError(err)

		balance, err := s.service.RefundableBalance(s.ctx, s.parent)
		s.Require().NoError(err)
		s.Equal("300.00", balance.StringFixed(2))

		_, err = s.service.Refund(s.ctx, s.parent, models.ParentReservation, decimal.NewFromInt(301), "again")
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
	})

	s.Run("non-positive amount is rejected", func() {
		_, err := s.service.Refund(s.ctx, s.parent, models.ParentReservation, decimal.Zero, "zero")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Unit of work
// =============================================================================

func (s *LedgerServiceSuite) TestWritesRollBackWithCallerUnit() {
	runner := tx.NewMemoryRunner()

	err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
		_, err := s.service.RecordTransaction(ctx, RecordRequest{
			ParentID: s.parent, ParentKind: models.ParentReservation,
			Type: models.TypeReservationFee, Amount: decimal.NewFromInt(5), Status: models.StatusCompleted,
		})
		s.Require().NoError(err)
		return errors.New("parent transition failed")
	})
	s.Require().Error(err)

	txs, err := s.service.ListByParent(s.ctx, s.parent)
	s.Require().NoError(err)
	s.Empty(txs)
}

func (s *LedgerServiceSuite) TestFindPendingByReference() {
	s.record(models.TypeReservationFee, "500", models.StatusCompleted, "RES-1")
	pending := s.record(models.TypeReservationFee, "500", models.StatusPending, "RES-2")

	found, err := s.service.FindPendingByReference(s.ctx, s.parent, "RES-2")
	s.Require().NoError(err)
	s.Equal(pending.ID, found.ID)

	_, err = s.service.FindPendingByReference(s.ctx, s.parent, "RES-1")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "completed rows are not pending")
}
