package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	ledgermodels "propie/internal/ledger/models"
	ledgersvc "propie/internal/ledger/service"
	"propie/internal/reservation/models"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
	"propie/pkg/platform/lock"
	"propie/pkg/platform/sentinel"
	"propie/pkg/requestcontext"
)

// CreateRequest carries the input for opening a reservation.
type CreateRequest struct {
	PropertyID       id.PropertyID
	BuyerID          id.UserID
	Type             models.Type
	FeeAmount        decimal.Decimal
	BuyerDetails     models.BuyerDetails
	PropertySnapshot models.PropertySnapshot
}

func (r CreateRequest) validate() error {
	if r.PropertyID == "" {
		return dErrors.New(dErrors.CodeValidation, "property ID is required")
	}
	if r.BuyerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "buyer ID is required")
	}
	if _, err := models.ParseType(string(r.Type)); err != nil {
		return err
	}
	if !r.FeeAmount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "fee amount must be positive")
	}
	return nil
}

// Create opens a PENDING reservation and records the fee it is waiting for.
// A property can have only one active reservation at a time.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.create",
		trace.WithAttributes(attribute.String("property_id", string(req.PropertyID))))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}
	if actor := requestcontext.Actor(ctx); actor.Role == id.RoleBuyer && actor.ID != req.BuyerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "buyers may only reserve for themselves")
	}

	now := requestcontext.Now(ctx)
	r, err := models.NewReservation(id.NewReservationID(), req.PropertyID, req.BuyerID, req.Type,
		req.FeeAmount, req.BuyerDetails, req.PropertySnapshot, s.ttls.For(req.Type), now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid reservation")
	}

	err = lock.WithUnitLock(ctx, s.locker, lock.Key("property", string(req.PropertyID)), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.store.Create(ctx, r); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.New(dErrors.CodeConflict, "property already has an active reservation")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create reservation")
			}
			_, err := s.ledger.RecordTransaction(ctx, ledgersvc.RecordRequest{
				ParentID:   uuid.UUID(r.ID),
				ParentKind: ledgermodels.ParentReservation,
				Type:       ledgermodels.TypeReservationFee,
				Amount:     r.FeeAmount,
				Status:     ledgermodels.StatusPending,
				Reference:  r.Reference,
			})
			return err
		})
	})
	if err != nil {
		return nil, translateLockError(err)
	}

	s.logAudit(ctx, "reservation_created",
		"reservation_id", r.ID.String(),
		"reference", r.Reference,
		"property_id", string(r.PropertyID),
		"buyer_id", r.BuyerID.String(),
		"type", string(r.Type),
		"fee", r.FeeAmount.StringFixed(2),
	)
	if s.metrics != nil {
		s.metrics.IncrementCreated(string(r.Type))
	}
	return &models.Result{Reservation: r}, nil
}

// ConfirmPayment settles the pending transaction with transactionRef and
// moves the reservation to CONFIRMED.
func (s *Service) ConfirmPayment(ctx context.Context, rid id.ReservationID, transactionRef, paymentMethod string) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.confirm_payment")
	defer span.End()

	excess := decimal.Zero
	r, err := s.execute(ctx, rid, models.ActionConfirmPayment, func(ctx context.Context, r *models.Reservation) error {
		if err := r.CanConfirmPayment(); err != nil {
			return err
		}
		pending, err := s.ledger.FindPendingByReference(ctx, uuid.UUID(r.ID), transactionRef)
		if err != nil {
			return err
		}
		settled, err := s.ledger.MarkCompleted(ctx, pending.ID, paymentMethod, "")
		if err != nil {
			return err
		}
		paidBefore := r.AmountPaid
		if err := r.ApplyPaymentConfirmed(settled.Amount, requestcontext.Now(ctx)); err != nil {
			return err
		}
		// A deposit may already have covered part of the fee.
		excess = settled.Amount.Sub(r.AmountPaid.Sub(paidBefore))
		if !excess.IsPositive() {
			return nil
		}
		_, err = s.ledger.Refund(ctx, uuid.UUID(r.ID), ledgermodels.ParentReservation, excess, r.Reference)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "reservation_confirmed",
		"reservation_id", r.ID.String(),
		"transaction_ref", transactionRef,
		"amount_paid", r.AmountPaid.StringFixed(2),
		"refunded", excess.StringFixed(2),
	)
	return &models.Result{Reservation: r, Warnings: s.observer.ReservationConfirmed(ctx, r)}, nil
}

// Extend pushes the expiry of a CONFIRMED reservation out by additionalDays.
func (s *Service) Extend(ctx context.Context, rid id.ReservationID, additionalDays int) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.extend",
		trace.WithAttributes(attribute.Int("additional_days", additionalDays)))
	defer span.End()

	if err := models.ValidateExtension(additionalDays); err != nil {
		return nil, err
	}
	r, err := s.execute(ctx, rid, models.ActionExtend, func(ctx context.Context, r *models.Reservation) error {
		return r.ApplyExtension(additionalDays, requestcontext.Actor(ctx), requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "reservation_extended",
		"reservation_id", r.ID.String(),
		"expires_at", r.ExpiresAt.Format(time.RFC3339),
	)
	return &models.Result{Reservation: r}, nil
}

// Cancel closes an active reservation and refunds anything paid.
func (s *Service) Cancel(ctx context.Context, rid id.ReservationID, reason string) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.cancel")
	defer span.End()

	r, err := s.terminate(ctx, rid, models.ActionCancel, reason)
	if err != nil {
		return nil, err
	}
	return &models.Result{Reservation: r, Warnings: s.observer.ReservationClosed(ctx, r)}, nil
}

// terminate is the shared cancel/expire path. The refund joins the
// reservation's unit of work, so a failed refund leaves the reservation open.
func (s *Service) terminate(ctx context.Context, rid id.ReservationID, action models.Action, reason string) (*models.Reservation, error) {
	var refunded decimal.Decimal
	r, err := s.execute(ctx, rid, action, func(ctx context.Context, r *models.Reservation) error {
		now := requestcontext.Now(ctx)
		switch action {
		case models.ActionExpire:
			if !r.IsDue(now) {
				return errNotDue
			}
			if err := r.ApplyExpired(now); err != nil {
				return err
			}
		default:
			if err := r.ApplyCancelled(reason, requestcontext.Actor(ctx), now); err != nil {
				return err
			}
		}
		if !r.AmountPaid.IsPositive() {
			return nil
		}
		refund, err := s.ledger.Refund(ctx, uuid.UUID(r.ID), ledgermodels.ParentReservation, r.AmountPaid, r.Reference)
		if err != nil {
			return err
		}
		refunded = refund.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := "reservation_cancelled"
	if r.Status == models.StatusExpired {
		event = "reservation_expired"
	}
	s.logAudit(ctx, event,
		"reservation_id", r.ID.String(),
		"reason", reason,
		"refunded", refunded.StringFixed(2),
	)
	return r, nil
}

// Convert marks a CONFIRMED reservation as having become a sale.
func (s *Service) Convert(ctx context.Context, rid id.ReservationID) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.convert")
	defer span.End()

	r, err := s.execute(ctx, rid, models.ActionConvert, func(ctx context.Context, r *models.Reservation) error {
		return r.ApplyConverted(requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "reservation_converted", "reservation_id", r.ID.String())
	return &models.Result{Reservation: r}, nil
}

// ApplyDeposit reduces the outstanding fee of the buyer's active reservation
// on propertyID by a grant deposit. It returns the reservation and the amount
// actually applied, which may be less than amount once the fee is covered.
// Callers inside a unit of work get the reservation change and its ledger row
// in that same unit.
func (s *Service) ApplyDeposit(
	ctx context.Context,
	buyerID id.UserID,
	propertyID id.PropertyID,
	claimID id.ClaimID,
	amount decimal.Decimal,
) (*models.Reservation, decimal.Decimal, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.apply_deposit")
	defer span.End()

	active, err := s.store.FindActive(ctx, buyerID, propertyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, decimal.Zero, dErrors.New(dErrors.CodeNotFound, "no active reservation for buyer and property")
		}
		return nil, decimal.Zero, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find reservation")
	}

	var applied decimal.Decimal
	r, err := s.execute(ctx, active.ID, models.ActionApplyDeposit, func(ctx context.Context, r *models.Reservation) error {
		reduction, err := r.ApplyDeposit(amount, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		applied = reduction
		if !reduction.IsPositive() {
			return nil
		}
		_, err = s.ledger.RecordTransaction(ctx, ledgersvc.RecordRequest{
			ParentID:   uuid.UUID(r.ID),
			ParentKind: ledgermodels.ParentReservation,
			Type:       ledgermodels.TypeDepositApplied,
			Amount:     reduction,
			Status:     ledgermodels.StatusCompleted,
			Reference:  DepositReference(claimID),
		})
		return err
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	s.logAudit(ctx, "reservation_deposit_applied",
		"reservation_id", r.ID.String(),
		"claim_id", claimID.String(),
		"applied", applied.StringFixed(2),
		"outstanding", r.OutstandingAmount.StringFixed(2),
	)
	return r, applied, nil
}

// DepositReference is the ledger reference of a deposit applied from a grant claim.
func DepositReference(claimID id.ClaimID) string {
	return "claim:" + claimID.String()
}

// Get returns a reservation with its ledger transactions.
func (s *Service) Get(ctx context.Context, rid id.ReservationID) (*models.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.get")
	defer span.End()

	r, err := s.load(ctx, rid)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, r, ""); err != nil {
		return nil, err
	}
	txs, err := s.ledger.ListByParent(ctx, uuid.UUID(r.ID))
	if err != nil {
		return nil, err
	}
	r.Transactions = txs
	return r, nil
}

// ListByBuyer returns the buyer's reservations, newest first.
func (s *Service) ListByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.list_by_buyer")
	defer span.End()

	if actor := requestcontext.Actor(ctx); actor.Role == id.RoleBuyer && actor.ID != buyerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "buyers may only list their own reservations")
	}
	out, err := s.store.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reservations")
	}
	return out, nil
}

// ListActive returns every reservation still holding a property.
func (s *Service) ListActive(ctx context.Context) ([]*models.Reservation, error) {
	out, err := s.store.FindByStatus(ctx, models.ActiveStatuses...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active reservations")
	}
	return out, nil
}
