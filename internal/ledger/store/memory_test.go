package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"propie/internal/ledger/models"
	id "propie/pkg/domain"
	"propie/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newTx(parent uuid.UUID, txType models.TransactionType, ref string) *models.Transaction {
	t, err := models.NewTransaction(id.NewTransactionID(), parent, models.ParentReservation, txType,
		decimal.NewFromInt(100), models.StatusPending, ref, time.Now())
	s.Require().NoError(err)
	return t
}

func (s *InMemoryStoreSuite) TestCreateAndList() {
	parent := uuid.New()
	first := s.newTx(parent, models.TypeReservationFee, "a")
	second := s.newTx(parent, models.TypeReservationFee, "b")
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))
	s.Require().NoError(s.store.Create(s.ctx, s.newTx(uuid.New(), models.TypeReservationFee, "other")))

	txs, err := s.store.ListByParent(s.ctx, parent)
	s.Require().NoError(err)
	s.Require().Len(txs, 2)
	s.Equal(first.ID, txs[0].ID, "insertion order is preserved")

	txs[0].Amount = decimal.NewFromInt(1)
	again, err := s.store.FindByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.True(again.Amount.Equal(decimal.NewFromInt(100)), "returned rows are copies")
}

func (s *InMemoryStoreSuite) TestFinalizeOnlyFromPending() {
	t := s.newTx(uuid.New(), models.TypeReservationFee, "a")
	s.Require().NoError(s.store.Create(s.ctx, t))

	t.ApplyCompleted("card", "", time.Now())
	s.Require().NoError(s.store.Finalize(s.ctx, t))
	s.ErrorIs(s.store.Finalize(s.ctx, t), sentinel.ErrAlreadyFinalized)

	missing := s.newTx(uuid.New(), models.TypeReservationFee, "x")
	s.ErrorIs(s.store.Finalize(s.ctx, missing), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestDepositAppliedUniquePerReference() {
	parent := uuid.New()
	first := s.newTx(parent, models.TypeDepositApplied, "claim-1")
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.ErrorIs(s.store.Create(s.ctx, s.newTx(parent, models.TypeDepositApplied, "claim-1")), sentinel.ErrConflict)
	s.NoError(s.store.Create(s.ctx, s.newTx(parent, models.TypeDepositApplied, "claim-2")))
}
