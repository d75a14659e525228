package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"propie/internal/grantclaim/models"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
	"propie/pkg/requestcontext"
)

// InitiateRequest carries the input for opening a claim.
type InitiateRequest struct {
	BuyerID         id.UserID
	PropertyID      id.PropertyID
	DeveloperID     *id.UserID
	RequestedAmount decimal.Decimal
}

// UpdateClaimCodeRequest carries the developer's claim code submission.
type UpdateClaimCodeRequest struct {
	Code           string
	Expiry         time.Time
	ApprovedAmount decimal.Decimal
	Evidence       *models.DocumentRef
}

// Initiate opens a claim in INITIATED.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.initiate",
		trace.WithAttributes(attribute.String("property_id", string(req.PropertyID))))
	defer span.End()

	if req.BuyerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "buyer ID is required")
	}
	if req.PropertyID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "property ID is required")
	}
	if !req.RequestedAmount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, "requested amount must be positive")
	}
	actor := requestcontext.Actor(ctx)
	if actor.Role == id.RoleBuyer && actor.ID != req.BuyerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "buyers may only claim for themselves")
	}

	c, err := models.NewGrantClaim(id.NewClaimID(), req.BuyerID, req.PropertyID, req.DeveloperID,
		req.RequestedAmount, actor, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid grant claim")
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create grant claim")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "grant_claim_initiated",
		"claim_id", c.ID.String(),
		"reference", c.Reference,
		"buyer_id", c.BuyerID.String(),
		"property_id", string(c.PropertyID),
		"requested", c.RequestedAmount.StringFixed(2),
	)
	if s.metrics != nil {
		s.metrics.ClaimsInitiated.Inc()
	}
	return &models.Result{Claim: c}, nil
}

// RecordAccessCode stores the access code the buyer received from the scheme.
func (s *Service) RecordAccessCode(ctx context.Context, cid id.ClaimID, code string, expiry time.Time) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.record_access_code")
	defer span.End()

	ch, err := s.execute(ctx, cid, "record_access_code", func(ctx context.Context, c *models.GrantClaim) error {
		return c.RecordAccessCode(code, expiry, requestcontext.Actor(ctx), requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, "grant_claim_access_code_recorded", ch), nil
}

// SubmitAccessCode hands the access code to the developer for review.
func (s *Service) SubmitAccessCode(ctx context.Context, cid id.ClaimID) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.submit_access_code")
	defer span.End()

	ch, err := s.execute(ctx, cid, "submit_access_code", func(ctx context.Context, c *models.GrantClaim) error {
		return c.SubmitAccessCode(requestcontext.Actor(ctx), requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, "grant_claim_access_code_submitted", ch), nil
}

// ProcessAccessCode approves or rejects the submitted access code. Approval
// notifies the buyer without waiting on delivery.
func (s *Service) ProcessAccessCode(ctx context.Context, cid id.ClaimID, approve bool, note string) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.process_access_code",
		trace.WithAttributes(attribute.Bool("approve", approve)))
	defer span.End()

	ch, err := s.execute(ctx, cid, "process_access_code", func(ctx context.Context, c *models.GrantClaim) error {
		return c.ProcessAccessCode(approve, note, requestcontext.Actor(ctx), requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	res := s.finish(ctx, "grant_claim_access_code_processed", ch, "approved", boolString(approve))
	if approve {
		res.Warnings = append(res.Warnings, s.observer.AccessCodeApproved(ctx, ch.claim)...)
	}
	return res, nil
}

// UpdateClaimCode records the claim code issued after approval together with
// the approved amount and the evidence document.
func (s *Service) UpdateClaimCode(ctx context.Context, cid id.ClaimID, req UpdateClaimCodeRequest) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.update_claim_code")
	defer span.End()

	ch, err := s.execute(ctx, cid, "update_claim_code", func(ctx context.Context, c *models.GrantClaim) error {
		return c.IssueClaimCode(req.Code, req.Expiry, req.ApprovedAmount, req.Evidence,
			requestcontext.Actor(ctx), requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	res := s.finish(ctx, "grant_claim_code_issued", ch, "approved_amount", ch.claim.ApprovedAmount.Decimal.StringFixed(2))
	if docs := ch.claim.Documents; len(docs) > 0 {
		res.Warnings = append(res.Warnings, s.observer.DocumentAttached(ctx, ch.claim, docs[len(docs)-1])...)
	}
	return res, nil
}

func (s *Service) RequestFunds(ctx context.Context, cid id.ClaimID, note string) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.request_funds")
	defer span.End()

	ch, err := s.execute(ctx, cid, "request_funds", func(ctx context.Context, c *models.GrantClaim) error {
		return c.RequestFunds(note, requestcontext.Actor(ctx), requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, "grant_claim_funds_requested", ch), nil
}

// MarkFundsReceived records the drawdown and its ledger entry on the claim.
func (s *Service) MarkFundsReceived(ctx context.Context, cid id.ClaimID, received decimal.Decimal) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.mark_funds_received")
	defer span.End()

	ch, err := s.execute(ctx, cid, "mark_funds_received", func(ctx context.Context, c *models.GrantClaim) error {
		if err := c.ReceiveFunds(received, requestcontext.Actor(ctx), requestcontext.Now(ctx)); err != nil {
			return err
		}
		return s.recordFundsReceived(ctx, c, c.DrawdownAmount.Decimal)
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, "grant_claim_funds_received", ch, "drawdown", ch.claim.DrawdownAmount.Decimal.StringFixed(2)), nil
}

// MarkDepositApplied applies part of the drawdown to the buyer's active
// reservation on the same property. The reservation change commits or rolls
// back with the claim transition.
func (s *Service) MarkDepositApplied(ctx context.Context, cid id.ClaimID, amount decimal.Decimal) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.mark_deposit_applied")
	defer span.End()

	if s.deposits == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "deposit applier not configured")
	}

	var applied *models.AppliedDeposit
	ch, err := s.execute(ctx, cid, "mark_deposit_applied", func(ctx context.Context, c *models.GrantClaim) error {
		actor := requestcontext.Actor(ctx)
		if err := c.CanApplyDeposit(amount, actor); err != nil {
			return err
		}
		var err error
		applied, err = s.deposits.ApplyDeposit(ctx, c, amount)
		if err != nil {
			return err
		}
		return c.ApplyDeposit(amount, *applied, actor, requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DepositsApplied.Inc()
	}
	return s.finish(ctx, "grant_claim_deposit_applied", ch,
		"reservation_id", applied.ReservationID.String(),
		"applied", applied.Applied.StringFixed(2),
		"outstanding", applied.Outstanding.StringFixed(2),
	), nil
}

func (s *Service) Complete(ctx context.Context, cid id.ClaimID) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.complete")
	defer span.End()

	ch, err := s.execute(ctx, cid, "complete", func(ctx context.Context, c *models.GrantClaim) error {
		return c.Complete(requestcontext.Actor(ctx), requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, "grant_claim_completed", ch), nil
}

func (s *Service) Cancel(ctx context.Context, cid id.ClaimID, reason string) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.cancel")
	defer span.End()

	ch, err := s.execute(ctx, cid, "cancel", func(ctx context.Context, c *models.GrantClaim) error {
		return c.Cancel(reason, requestcontext.Actor(ctx), requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, "grant_claim_cancelled", ch, "reason", reason), nil
}

// AddNote annotates a claim in any status. It adds no history entry.
func (s *Service) AddNote(ctx context.Context, cid id.ClaimID, body string, private bool) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.add_note")
	defer span.End()

	actor := requestcontext.Actor(ctx)
	if private && actor.Role == id.RoleBuyer {
		return nil, dErrors.New(dErrors.CodeForbidden, "buyers cannot write private notes")
	}
	ch, err := s.execute(ctx, cid, "add_note", func(ctx context.Context, c *models.GrantClaim) error {
		return c.AddNote(body, private, actor, requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, "grant_claim_note_added", ch, "private", boolString(private)), nil
}

// AttachDocument links an uploaded document to an open claim. The document
// registry hears about it after commit; a failure there is only a warning.
func (s *Service) AttachDocument(ctx context.Context, cid id.ClaimID, ref models.DocumentRef) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.attach_document")
	defer span.End()

	var attached models.DocumentRef
	ch, err := s.execute(ctx, cid, "attach_document", func(ctx context.Context, c *models.GrantClaim) error {
		if err := c.AttachDocument(ref, requestcontext.Actor(ctx), requestcontext.Now(ctx)); err != nil {
			return err
		}
		attached = c.Documents[len(c.Documents)-1]
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := s.finish(ctx, "grant_claim_document_attached", ch, "document_id", ref.ID.String())
	res.Warnings = append(res.Warnings, s.observer.DocumentAttached(ctx, ch.claim, attached)...)
	return res, nil
}

// Get returns a claim, hiding private notes from buyers.
func (s *Service) Get(ctx context.Context, cid id.ClaimID) (*models.GrantClaim, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.get")
	defer span.End()

	c, err := s.load(ctx, cid)
	if err != nil {
		return nil, err
	}
	actor := requestcontext.Actor(ctx)
	if err := c.CanAct(actor); err != nil {
		return nil, err
	}
	return c.VisibleTo(actor), nil
}

// History returns the claim's status walk, oldest first.
func (s *Service) History(ctx context.Context, cid id.ClaimID) ([]models.StatusHistoryEntry, error) {
	c, err := s.Get(ctx, cid)
	if err != nil {
		return nil, err
	}
	return c.StatusHistory, nil
}

func (s *Service) ListByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.GrantClaim, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.list_by_buyer")
	defer span.End()

	actor := requestcontext.Actor(ctx)
	if actor.Role == id.RoleBuyer && actor.ID != buyerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "buyers may only list their own claims")
	}
	claims, err := s.store.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grant claims")
	}
	for i, c := range claims {
		claims[i] = c.VisibleTo(actor)
	}
	return claims, nil
}

// ListByDeveloper backs the developer dashboard. A nil status lists all.
func (s *Service) ListByDeveloper(ctx context.Context, developerID id.UserID, status *models.Status) ([]*models.GrantClaim, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.list_by_developer")
	defer span.End()

	actor := requestcontext.Actor(ctx)
	switch {
	case actor.Role == id.RoleBuyer:
		return nil, dErrors.New(dErrors.CodeForbidden, "buyers cannot list developer claims")
	case actor.Role == id.RoleDeveloper && actor.ID != developerID:
		return nil, dErrors.New(dErrors.CodeForbidden, "developers may only list their own claims")
	}

	var statuses []models.Status
	if status != nil {
		if !status.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown claim status")
		}
		statuses = append(statuses, *status)
	}
	claims, err := s.store.ListByDeveloper(ctx, developerID, statuses...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grant claims")
	}
	return claims, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
