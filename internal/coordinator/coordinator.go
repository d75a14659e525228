// Package coordinator bridges the reservation and grant claim lifecycles and
// pushes one-way notifications to the outside collaborators.
//
// Deposit application is the only synchronous bridge (see DepositBridge): it
// runs inside the claim's unit of work so both sides commit or neither does.
// Everything else is queued on the Dispatcher after the triggering transition
// has committed.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"propie/internal/coordinator/ports"
	claimmodels "propie/internal/grantclaim/models"
	reservationmodels "propie/internal/reservation/models"
	id "propie/pkg/domain"
	"propie/pkg/requestcontext"
)

const (
	jobReservationConfirmed = "reservation_confirmed"
	jobReservationClosed    = "reservation_closed"
	jobJourneyAdvance       = "journey_advance"
	jobClaimStatusChanged   = "claim_status_changed"
	jobAccessCodeApproved   = "access_code_approved"
	jobDocumentLinked       = "document_linked"
)

// Enqueuer accepts post-commit jobs without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Coordinator observes committed reservation and claim transitions and
// queues the matching collaborator calls.
type Coordinator struct {
	notifier  ports.Notifier
	journey   ports.JourneyTracker
	documents ports.DocumentRegistry
	queue     Enqueuer
	logger    *slog.Logger
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithDocumentRegistry enables linking attached documents. Without it
// attachments stay local to the claim.
func WithDocumentRegistry(d ports.DocumentRegistry) Option {
	return func(c *Coordinator) {
		c.documents = d
	}
}

func New(notifier ports.Notifier, journey ports.JourneyTracker, queue Enqueuer, opts ...Option) (*Coordinator, error) {
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if journey == nil {
		return nil, errors.New("journey tracker is required")
	}
	if queue == nil {
		return nil, errors.New("dispatcher is required")
	}
	c := &Coordinator{
		notifier: notifier,
		journey:  journey,
		queue:    queue,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ReservationConfirmed advances the buyer's journey and sends the confirmation.
func (c *Coordinator) ReservationConfirmed(ctx context.Context, r *reservationmodels.Reservation) []string {
	buyerID := r.BuyerID
	notice := reservationNotice(ctx, r)
	var warnings []string
	warnings = c.enqueue(ctx, warnings, jobJourneyAdvance, func(ctx context.Context) error {
		return c.journey.AdvancePhase(ctx, buyerID, ports.PhaseReservation)
	})
	warnings = c.enqueue(ctx, warnings, jobReservationConfirmed, func(ctx context.Context) error {
		return c.notifier.SendReservationConfirmation(ctx, notice)
	})
	return warnings
}

// ReservationClosed tells the buyer a reservation was cancelled or expired.
func (c *Coordinator) ReservationClosed(ctx context.Context, r *reservationmodels.Reservation) []string {
	notice := reservationNotice(ctx, r)
	notice.Reason = closingReason(r)
	return c.enqueue(ctx, nil, jobReservationClosed, func(ctx context.Context) error {
		return c.notifier.SendReservationCancelled(ctx, notice)
	})
}

func (c *Coordinator) ClaimStatusChanged(
	ctx context.Context,
	claim *claimmodels.GrantClaim,
	previous claimmodels.Status,
) []string {
	notice := claimNotice(ctx, claim)
	notice.PreviousStatus = previous.String()
	return c.enqueue(ctx, nil, jobClaimStatusChanged, func(ctx context.Context) error {
		return c.notifier.SendClaimStatusChanged(ctx, notice)
	})
}

func (c *Coordinator) AccessCodeApproved(ctx context.Context, claim *claimmodels.GrantClaim) []string {
	notice := claimNotice(ctx, claim)
	return c.enqueue(ctx, nil, jobAccessCodeApproved, func(ctx context.Context) error {
		return c.notifier.SendAccessCodeApproved(ctx, notice)
	})
}

func (c *Coordinator) DocumentAttached(
	ctx context.Context,
	claim *claimmodels.GrantClaim,
	doc claimmodels.DocumentRef,
) []string {
	if c.documents == nil {
		return nil
	}
	claimID := claim.ID
	link := ports.DocumentLink{
		DocumentID: doc.ID,
		URL:        doc.URL,
		Name:       doc.Name,
		Kind:       doc.Kind,
		AttachedBy: doc.AttachedBy,
		AttachedAt: doc.AttachedAt,
	}
	return c.enqueue(ctx, nil, jobDocumentLinked, func(ctx context.Context) error {
		return c.documents.Link(ctx, claimID, link)
	})
}

func (c *Coordinator) enqueue(ctx context.Context, warnings []string, name string, fn func(ctx context.Context) error) []string {
	if err := c.queue.Enqueue(ctx, name, fn); err != nil {
		c.logger.WarnContext(ctx, "coordinator job not queued",
			"job", name,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return append(warnings, fmt.Sprintf("%s not sent: %v", name, err))
	}
	return warnings
}

func reservationNotice(ctx context.Context, r *reservationmodels.Reservation) ports.ReservationNotice {
	return ports.ReservationNotice{
		ReservationID: r.ID,
		Reference:     r.Reference,
		BuyerID:       r.BuyerID,
		BuyerName:     r.BuyerDetails.Name,
		BuyerEmail:    r.BuyerDetails.Email,
		PropertyID:    r.PropertyID,
		PropertyName:  r.PropertySnapshot.Name,
		Status:        r.Status.String(),
		AmountPaid:    r.AmountPaid.StringFixed(2),
		Outstanding:   r.OutstandingAmount.StringFixed(2),
		OccurredAt:    occurredAt(ctx, r.UpdatedAt),
	}
}

func claimNotice(ctx context.Context, claim *claimmodels.GrantClaim) ports.ClaimNotice {
	var developerID *id.UserID
	if claim.DeveloperID != nil {
		d := *claim.DeveloperID
		developerID = &d
	}
	return ports.ClaimNotice{
		ClaimID:     claim.ID,
		Reference:   claim.Reference,
		BuyerID:     claim.BuyerID,
		DeveloperID: developerID,
		PropertyID:  claim.PropertyID,
		Status:      claim.Status.String(),
		OccurredAt:  occurredAt(ctx, claim.UpdatedAt),
	}
}

func closingReason(r *reservationmodels.Reservation) string {
	if r.Status == reservationmodels.StatusExpired {
		return reservationmodels.ExpiryReason
	}
	if n := len(r.Notes); n > 0 {
		return r.Notes[n-1].Body
	}
	return ""
}

func occurredAt(ctx context.Context, fallback time.Time) time.Time {
	if !fallback.IsZero() {
		return fallback
	}
	return requestcontext.Now(ctx)
}
