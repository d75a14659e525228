//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"propie/internal/grantclaim/models"
	id "propie/pkg/domain"
	"propie/pkg/platform/sentinel"
	"propie/pkg/platform/tx"
	"propie/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	store  *PostgresStore
	runner tx.Runner
	ctx    context.Context
	now    time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.runner = tx.NewSQLRunner(s.pg.DB)
	s.ctx = context.Background()
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx))
}

func (s *PostgresStoreSuite) newClaim() *models.GrantClaim {
	buyer := id.NewUserID()
	c, err := models.NewGrantClaim(id.NewClaimID(), buyer, "P-1", nil,
		decimal.RequireFromString("20000.00"), id.Actor{ID: buyer, Role: id.RoleBuyer}, s.now)
	s.Require().NoError(err)
	return c
}

func (s *PostgresStoreSuite) save(fn func(ctx context.Context) error) {
	s.Require().NoError(s.runner.RunInTx(s.ctx, fn))
}

func (s *PostgresStoreSuite) TestRoundTripWithHistory() {
	c := s.newClaim()
	s.save(func(ctx context.Context) error { return s.store.Create(ctx, c) })

	buyer := id.Actor{ID: c.BuyerID, Role: id.RoleBuyer}
	dev := id.Actor{ID: id.NewUserID(), Role: id.RoleDeveloper}
	s.save(func(ctx context.Context) error {
		loaded, err := s.store.FindByID(ctx, c.ID)
		if err != nil {
			return err
		}
		s.Require().NoError(loaded.RecordAccessCode("AC-1", s.now.Add(time.Hour), buyer, s.now))
		s.Require().NoError(loaded.SubmitAccessCode(buyer, s.now))
		s.Require().NoError(loaded.ProcessAccessCode(true, "looks good", dev, s.now))
		s.Require().NoError(loaded.AddNote("internal", true, dev, s.now))
		return s.store.Update(ctx, loaded)
	})

	found, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAccessCodeApproved, found.Status)
	s.Equal(int64(2), found.Version)
	s.Require().NotNil(found.DeveloperID)
	s.Equal(dev.ID, *found.DeveloperID)
	s.Require().Len(found.StatusHistory, 4)
	s.Nil(found.StatusHistory[0].PreviousStatus)
	s.Equal(models.StatusAccessCodeSubmitted, *found.StatusHistory[3].PreviousStatus)
	s.Equal("looks good", found.StatusHistory[3].Note)
	s.Require().Len(found.Notes, 1)
	s.True(found.Notes[0].Private)
	s.False(found.ApprovedAmount.Valid)
	s.NoError(found.CheckInvariants())
}

func (s *PostgresStoreSuite) TestUpdateVersionCheck() {
	c := s.newClaim()
	s.save(func(ctx context.Context) error { return s.store.Create(ctx, c) })

	stale := c.Clone()
	s.Require().NoError(c.Cancel("", id.Actor{ID: c.BuyerID, Role: id.RoleBuyer}, s.now))
	s.save(func(ctx context.Context) error { return s.store.Update(ctx, c) })

	s.Require().NoError(stale.AddNote("late", false, id.Actor{Role: id.RoleAdmin}, s.now))
	err := s.runner.RunInTx(s.ctx, func(ctx context.Context) error { return s.store.Update(ctx, stale) })
	s.ErrorIs(err, sentinel.ErrStaleVersion)
}

func (s *PostgresStoreSuite) TestFindExpiringUsesCurrentDeadline() {
	due := s.newClaim()
	s.Require().NoError(due.RecordAccessCode("AC-1", s.now.Add(time.Minute),
		id.Actor{ID: due.BuyerID, Role: id.RoleBuyer}, s.now))
	closed := s.newClaim()
	s.Require().NoError(closed.RecordAccessCode("AC-2", s.now.Add(time.Minute),
		id.Actor{ID: closed.BuyerID, Role: id.RoleBuyer}, s.now))
	s.Require().NoError(closed.Cancel("", id.Actor{Role: id.RoleAdmin}, s.now))

	s.save(func(ctx context.Context) error {
		if err := s.store.Create(ctx, due); err != nil {
			return err
		}
		return s.store.Create(ctx, closed)
	})

	ids, err := s.store.FindExpiring(s.ctx, s.now.Add(time.Hour), 10)
	s.Require().NoError(err)
	s.Equal([]id.ClaimID{due.ID}, ids)
}

func (s *PostgresStoreSuite) TestListByDeveloper() {
	dev := id.NewUserID()
	c := s.newClaim()
	c.DeveloperID = &dev
	s.save(func(ctx context.Context) error { return s.store.Create(ctx, c) })

	all, err := s.store.ListByDeveloper(s.ctx, dev)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Len(all[0].StatusHistory, 1)

	filtered, err := s.store.ListByDeveloper(s.ctx, dev, models.StatusCompleted)
	s.Require().NoError(err)
	s.Empty(filtered)
}

func (s *PostgresStoreSuite) TestFindByIDLocksRowOnlyInsideUnit() {
	c := s.newClaim()
	s.save(func(ctx context.Context) error { return s.store.Create(ctx, c) })
	const grab = `SELECT id FROM grant_claims WHERE id = $1::uuid FOR UPDATE NOWAIT`

	_, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	var got string
	s.Require().NoError(s.pg.DB.QueryRowContext(s.ctx, grab, c.ID.String()).Scan(&got))

	err = s.runner.RunInTx(s.ctx, func(ctx context.Context) error {
		if _, err := s.store.FindByID(ctx, c.ID); err != nil {
			return err
		}
		return s.pg.DB.QueryRowContext(s.ctx, grab, c.ID.String()).Scan(&got)
	})
	s.Error(err, "row should stay locked by the open unit")
}
