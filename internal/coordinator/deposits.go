package coordinator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"propie/internal/coordinator/metrics"
	claimmodels "propie/internal/grantclaim/models"
	reservationmodels "propie/internal/reservation/models"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
	"propie/pkg/requestcontext"
)

// ReservationDeposits applies a grant deposit to the buyer's active
// reservation on the property.
type ReservationDeposits interface {
	ApplyDeposit(
		ctx context.Context,
		buyerID id.UserID,
		propertyID id.PropertyID,
		claimID id.ClaimID,
		amount decimal.Decimal,
	) (*reservationmodels.Reservation, decimal.Decimal, error)
}

// DepositBridge reduces the linked reservation's outstanding fee when a
// claim's deposit is applied. It is called inside the claim's transaction and
// under its lock, so the reservation lock is always taken second.
type DepositBridge struct {
	reservations ReservationDeposits
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type DepositOption func(*DepositBridge)

func WithDepositLogger(logger *slog.Logger) DepositOption {
	return func(b *DepositBridge) {
		b.logger = logger
	}
}

func WithDepositMetrics(m *metrics.Metrics) DepositOption {
	return func(b *DepositBridge) {
		b.metrics = m
	}
}

func NewDepositBridge(reservations ReservationDeposits, opts ...DepositOption) (*DepositBridge, error) {
	if reservations == nil {
		return nil, errors.New("reservation deposits are required")
	}
	b := &DepositBridge{
		reservations: reservations,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *DepositBridge) ApplyDeposit(
	ctx context.Context,
	claim *claimmodels.GrantClaim,
	amount decimal.Decimal,
) (*claimmodels.AppliedDeposit, error) {
	r, applied, err := b.reservations.ApplyDeposit(ctx, claim.BuyerID, claim.PropertyID, claim.ID, amount)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "deposit applied without a reservation")
	}
	if b.metrics != nil {
		b.metrics.Deposits.Inc()
	}
	b.logger.InfoContext(ctx, "grant deposit applied to reservation",
		"claim_id", claim.ID.String(),
		"reservation_id", r.ID.String(),
		"requested", amount.StringFixed(2),
		"applied", applied.StringFixed(2),
		"outstanding", r.OutstandingAmount.StringFixed(2),
		"request_id", requestcontext.RequestID(ctx),
	)
	return &claimmodels.AppliedDeposit{
		ReservationID:        r.ID,
		ReservationReference: r.Reference,
		Applied:              applied,
		Outstanding:          r.OutstandingAmount,
	}, nil
}
