package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"propie/internal/coordinator/mocks"
	"propie/internal/coordinator/ports"
	claimmodels "propie/internal/grantclaim/models"
	reservationmodels "propie/internal/reservation/models"
	id "propie/pkg/domain"
)

// inlineQueue runs jobs on the caller's goroutine so mock expectations are
// settled by the time the observer returns.
type inlineQueue struct {
	err  error
	jobs []string
}

func (q *inlineQueue) Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, name)
	_ = fn(ctx)
	return nil
}

type CoordinatorSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	notifier  *mocks.MockNotifier
	journey   *mocks.MockJourneyTracker
	documents *mocks.MockDocumentRegistry
	queue     *inlineQueue
	coord     *Coordinator
	now       time.Time
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.journey = mocks.NewMockJourneyTracker(s.ctrl)
	s.documents = mocks.NewMockDocumentRegistry(s.ctrl)
	s.queue = &inlineQueue{}
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	coord, err := New(s.notifier, s.journey, s.queue,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithDocumentRegistry(s.documents),
	)
	s.Require().NoError(err)
	s.coord = coord
}

func (s *CoordinatorSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *CoordinatorSuite) reservation(status reservationmodels.Status) *reservationmodels.Reservation {
	return &reservationmodels.Reservation{
		ID:                id.NewReservationID(),
		Reference:         "RES-1",
		PropertyID:        "P-1",
		BuyerID:           id.NewUserID(),
		Status:            status,
		FeeAmount:         decimal.NewFromInt(5000),
		AmountPaid:        decimal.NewFromInt(5000),
		OutstandingAmount: decimal.Zero,
		BuyerDetails:      reservationmodels.BuyerDetails{Name: "Ada Lovelace", Email: "ada@example.com"},
		PropertySnapshot:  reservationmodels.PropertySnapshot{Name: "Plot 7"},
		UpdatedAt:         s.now,
	}
}

func (s *CoordinatorSuite) claim(status claimmodels.Status) *claimmodels.GrantClaim {
	dev := id.NewUserID()
	return &claimmodels.GrantClaim{
		ID:          id.NewClaimID(),
		Reference:   "HTB-1",
		BuyerID:     id.NewUserID(),
		DeveloperID: &dev,
		PropertyID:  "P-1",
		Status:      status,
		UpdatedAt:   s.now,
	}
}

func (s *CoordinatorSuite) TestNew() {
	s.Run("rejects missing collaborators", func() {
		_, err := New(nil, s.journey, s.queue)
		s.Error(err)
		_, err = New(s.notifier, nil, s.queue)
		s.Error(err)
		_, err = New(s.notifier, s.journey, nil)
		s.Error(err)
	})
}

func (s *CoordinatorSuite) TestReservationConfirmed() {
	s.Run("advances the journey and sends the confirmation", func() {
		r := s.reservation(reservationmodels.StatusConfirmed)
		s.journey.EXPECT().AdvancePhase(gomock.Any(), r.BuyerID, ports.PhaseReservation).Return(nil)
		s.notifier.EXPECT().SendReservationConfirmation(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, n ports.ReservationNotice) error {
				s.Equal(r.ID, n.ReservationID)
				s.Equal("CONFIRMED", n.Status)
				s.Equal("5000.00", n.AmountPaid)
				s.Equal("0.00", n.Outstanding)
				s.Equal("ada@example.com", n.BuyerEmail)
				s.Equal(s.now, n.OccurredAt)
				return nil
			})

		s.Empty(s.coord.ReservationConfirmed(context.Background(), r))
	})

	s.Run("collaborator failures never surface", func() {
		r := s.reservation(reservationmodels.StatusConfirmed)
		s.journey.EXPECT().AdvancePhase(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("down"))
		s.notifier.EXPECT().SendReservationConfirmation(gomock.Any(), gomock.Any()).Return(errors.New("down"))

		s.Empty(s.coord.ReservationConfirmed(context.Background(), r))
	})

	s.Run("a full queue becomes a warning per job", func() {
		s.queue.err = ErrQueueFull
		defer func() { s.queue.err = nil }()

		warnings := s.coord.ReservationConfirmed(context.Background(), s.reservation(reservationmodels.StatusConfirmed))
		s.Len(warnings, 2)
		s.Contains(warnings[0], jobJourneyAdvance)
		s.Contains(warnings[1], ErrQueueFull.Error())
	})
}

func (s *CoordinatorSuite) TestReservationClosed() {
	s.Run("expired reservations carry the expiry reason", func() {
		r := s.reservation(reservationmodels.StatusExpired)
		s.notifier.EXPECT().SendReservationCancelled(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, n ports.ReservationNotice) error {
				s.Equal(reservationmodels.ExpiryReason, n.Reason)
				s.Equal("EXPIRED", n.Status)
				return nil
			})
		s.Empty(s.coord.ReservationClosed(context.Background(), r))
	})

	s.Run("cancelled reservations carry the closing note", func() {
		r := s.reservation(reservationmodels.StatusCancelled)
		r.Notes = []reservationmodels.Note{{Body: "cancelled: buyer withdrew"}}
		s.notifier.EXPECT().SendReservationCancelled(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, n ports.ReservationNotice) error {
				s.Equal("cancelled: buyer withdrew", n.Reason)
				return nil
			})
		s.Empty(s.coord.ReservationClosed(context.Background(), r))
	})
}

func (s *CoordinatorSuite) TestClaimNotifications() {
	s.Run("status change includes the previous status", func() {
		c := s.claim(claimmodels.StatusFundsRequested)
		s.notifier.EXPECT().SendClaimStatusChanged(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, n ports.ClaimNotice) error {
				s.Equal(c.ID, n.ClaimID)
				s.Equal("FUNDS_REQUESTED", n.Status)
				s.Equal("CLAIM_CODE_ISSUED", n.PreviousStatus)
				s.Require().NotNil(n.DeveloperID)
				s.Equal(*c.DeveloperID, *n.DeveloperID)
				return nil
			})
		s.Empty(s.coord.ClaimStatusChanged(context.Background(), c, claimmodels.StatusClaimCodeIssued))
	})

	s.Run("access code approval", func() {
		c := s.claim(claimmodels.StatusAccessCodeApproved)
		s.notifier.EXPECT().SendAccessCodeApproved(gomock.Any(), gomock.Any()).Return(nil)
		s.Empty(s.coord.AccessCodeApproved(context.Background(), c))
		s.Equal([]string{jobAccessCodeApproved}, s.queue.jobs[len(s.queue.jobs)-1:])
	})

	s.Run("closed dispatcher becomes a warning", func() {
		s.queue.err = ErrDispatcherClosed
		defer func() { s.queue.err = nil }()
		warnings := s.coord.ClaimStatusChanged(context.Background(), s.claim(claimmodels.StatusExpired), claimmodels.StatusFundsRequested)
		s.Require().Len(warnings, 1)
		s.Contains(warnings[0], "dispatcher closed")
	})
}

func (s *CoordinatorSuite) TestDocumentAttached() {
	s.Run("links the reference with the registry", func() {
		c := s.claim(claimmodels.StatusClaimCodeIssued)
		doc := claimmodels.DocumentRef{
			ID: id.NewDocumentID(), URL: "https://docs.example.com/a.pdf", Name: "a.pdf", Kind: "evidence",
			AttachedBy: id.Actor{ID: id.NewUserID(), Role: id.RoleDeveloper}, AttachedAt: s.now,
		}
		s.documents.EXPECT().Link(gomock.Any(), c.ID, ports.DocumentLink{
			DocumentID: doc.ID, URL: doc.URL, Name: doc.Name, Kind: doc.Kind, AttachedBy: doc.AttachedBy, AttachedAt: s.now,
		}).Return(nil)
		s.Empty(s.coord.DocumentAttached(context.Background(), c, doc))
	})

	s.Run("no registry configured is a no-op", func() {
		coord, err := New(s.notifier, s.journey, s.queue)
		s.Require().NoError(err)
		s.Empty(coord.DocumentAttached(context.Background(), s.claim(claimmodels.StatusInitiated), claimmodels.DocumentRef{}))
	})
}
