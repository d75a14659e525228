package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"propie/internal/grantclaim/metrics"
	"propie/internal/grantclaim/models"
	ledgermodels "propie/internal/ledger/models"
	ledgersvc "propie/internal/ledger/service"
	"propie/pkg/attrs"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
	"propie/pkg/platform/lock"
	"propie/pkg/platform/sentinel"
	"propie/pkg/platform/tx"
	"propie/pkg/requestcontext"
)

// Store is the persistence port for grant claims. Update appends any history
// entries added since the claim was loaded.
//
// Error contract: ErrNotFound for missing rows, ErrStaleVersion when Update
// loses a race.
type Store interface {
	Create(ctx context.Context, c *models.GrantClaim) error
	FindByID(ctx context.Context, cid id.ClaimID) (*models.GrantClaim, error)
	ListByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.GrantClaim, error)
	ListByDeveloper(ctx context.Context, developerID id.UserID, statuses ...models.Status) ([]*models.GrantClaim, error)
	FindExpiring(ctx context.Context, now time.Time, limit int) ([]id.ClaimID, error)
	Update(ctx context.Context, c *models.GrantClaim) error
}

// Ledger records money movements on the claim itself.
type Ledger interface {
	RecordTransaction(ctx context.Context, req ledgersvc.RecordRequest) (*ledgermodels.Transaction, error)
}

// DepositApplier reduces the linked reservation's outstanding fee. It runs
// inside the claim's unit of work and under the claim's lock.
type DepositApplier interface {
	ApplyDeposit(ctx context.Context, c *models.GrantClaim, amount decimal.Decimal) (*models.AppliedDeposit, error)
}

// StatusObserver is told about committed changes. It must not block; the
// returned strings are surfaced to the caller as warnings.
type StatusObserver interface {
	ClaimStatusChanged(ctx context.Context, c *models.GrantClaim, previous models.Status) []string
	AccessCodeApproved(ctx context.Context, c *models.GrantClaim) []string
	DocumentAttached(ctx context.Context, c *models.GrantClaim, doc models.DocumentRef) []string
}

type noopObserver struct{}

func (noopObserver) ClaimStatusChanged(context.Context, *models.GrantClaim, models.Status) []string {
	return nil
}
func (noopObserver) AccessCodeApproved(context.Context, *models.GrantClaim) []string { return nil }
func (noopObserver) DocumentAttached(context.Context, *models.GrantClaim, models.DocumentRef) []string {
	return nil
}

const defaultSweepBatch = 500

// Service owns the grant claim state machine.
type Service struct {
	store      Store
	ledger     Ledger
	deposits   DepositApplier
	locker     lock.Locker
	tx         tx.Runner
	observer   StatusObserver
	sweepBatch int
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithDepositApplier(d DepositApplier) Option {
	return func(s *Service) {
		s.deposits = d
	}
}

func WithObserver(o StatusObserver) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

func WithSweepBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sweepBatch = n
		}
	}
}

func New(store Store, ledger Ledger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("grant claim store is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	s := &Service{
		store:      store,
		ledger:     ledger,
		locker:     lock.NewLocalLocker(),
		tx:         tx.NewMemoryRunner(),
		observer:   noopObserver{},
		sweepBatch: defaultSweepBatch,
		logger:     slog.Default(),
		tracer:     otel.Tracer("propie/grantclaim"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// change is what execute hands back after a committed mutation.
type change struct {
	claim    *models.GrantClaim
	previous models.Status
}

func (c change) statusChanged() bool {
	return c.claim.Status != c.previous
}

// execute is the single load -> compute -> persist path for claims.
func (s *Service) execute(
	ctx context.Context,
	cid id.ClaimID,
	operation string,
	fn func(ctx context.Context, c *models.GrantClaim) error,
) (change, error) {
	var out change
	err := lock.WithUnitLock(ctx, s.locker, lock.Key("claim", cid.String()), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			c, err := s.load(ctx, cid)
			if err != nil {
				return err
			}
			if err := c.CanAct(requestcontext.Actor(ctx)); err != nil {
				return err
			}
			previous := c.Status
			if err := fn(ctx, c); err != nil {
				return err
			}
			if err := c.CheckInvariants(); err != nil {
				return err
			}
			if err := s.store.Update(ctx, c); err != nil {
				if errors.Is(err, sentinel.ErrStaleVersion) {
					return dErrors.Wrap(err, dErrors.CodeConcurrencyConflict, "grant claim was modified concurrently")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save grant claim")
			}
			out = change{claim: c, previous: previous}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, models.ErrNotDue) {
			return change{}, err
		}
		if errors.Is(err, sentinel.ErrLockNotAcquired) {
			err = dErrors.Wrap(err, dErrors.CodeConcurrencyConflict, "grant claim is busy, retry")
		}
		if s.metrics != nil {
			s.metrics.IncrementFailure(operation, string(dErrors.GetCode(err)))
		}
		return change{}, err
	}
	if s.metrics != nil && out.statusChanged() {
		s.metrics.IncrementTransition(string(out.claim.Status))
	}
	return out, nil
}

// finish logs the committed change and collects post-commit warnings.
func (s *Service) finish(ctx context.Context, event string, ch change, attributes ...any) *models.Result {
	attributes = append([]any{
		"claim_id", ch.claim.ID.String(),
		"status", string(ch.claim.Status),
	}, attributes...)
	if ch.statusChanged() {
		attributes = append(attributes, "previous_status", string(ch.previous))
	}
	s.logAudit(ctx, event, attributes...)

	res := &models.Result{Claim: ch.claim.VisibleTo(requestcontext.Actor(ctx))}
	if ch.statusChanged() {
		res.Warnings = append(res.Warnings, s.observer.ClaimStatusChanged(ctx, ch.claim, ch.previous)...)
	}
	return res
}

func (s *Service) load(ctx context.Context, cid id.ClaimID) (*models.GrantClaim, error) {
	c, err := s.store.FindByID(ctx, cid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "grant claim not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load grant claim")
	}
	return c, nil
}

func (s *Service) recordFundsReceived(ctx context.Context, c *models.GrantClaim, amount decimal.Decimal) error {
	_, err := s.ledger.RecordTransaction(ctx, ledgersvc.RecordRequest{
		ParentID:   uuid.UUID(c.ID),
		ParentKind: ledgermodels.ParentGrantClaim,
		Type:       ledgermodels.TypeFundsReceived,
		Amount:     amount,
		Status:     ledgermodels.StatusCompleted,
		Reference:  c.Reference,
	})
	return err
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if actor := requestcontext.Actor(ctx); actor.Role != "" {
		attributes = append(attributes, "actor", actor.String())
	}
	trace.SpanFromContext(ctx).AddEvent(event, trace.WithAttributes(attrs.SpanAttributes(attributes)...))
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}
