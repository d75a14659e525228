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

	ledgermodels "propie/internal/ledger/models"
	ledgersvc "propie/internal/ledger/service"
	"propie/internal/reservation/metrics"
	"propie/internal/reservation/models"
	"propie/pkg/attrs"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
	"propie/pkg/platform/lock"
	"propie/pkg/platform/sentinel"
	"propie/pkg/platform/tx"
	"propie/pkg/requestcontext"
)

// Store is the persistence port for reservations.
//
// Error contract: ErrNotFound for missing rows, ErrConflict when the property
// already has an active reservation, ErrStaleVersion when Update loses a race.
type Store interface {
	Create(ctx context.Context, r *models.Reservation) error
	FindByID(ctx context.Context, rid id.ReservationID) (*models.Reservation, error)
	FindActive(ctx context.Context, buyerID id.UserID, propertyID id.PropertyID) (*models.Reservation, error)
	ListByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.Reservation, error)
	FindByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Reservation, error)
	FindExpiring(ctx context.Context, now time.Time, limit int) ([]id.ReservationID, error)
	// Update persists r if the stored version still equals r.Version and bumps it.
	Update(ctx context.Context, r *models.Reservation) error
}

// Ledger is the slice of the financial ledger reservations write through.
type Ledger interface {
	RecordTransaction(ctx context.Context, req ledgersvc.RecordRequest) (*ledgermodels.Transaction, error)
	MarkCompleted(ctx context.Context, txID id.TransactionID, method, reference string) (*ledgermodels.Transaction, error)
	FindPendingByReference(ctx context.Context, parentID uuid.UUID, reference string) (*ledgermodels.Transaction, error)
	Refund(ctx context.Context, parentID uuid.UUID, kind ledgermodels.ParentKind, amount decimal.Decimal, reference string) (*ledgermodels.Transaction, error)
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]*ledgermodels.Transaction, error)
}

// MilestoneObserver is told about milestones after they commit. It must not
// block; the returned strings are surfaced to the caller as warnings.
type MilestoneObserver interface {
	ReservationConfirmed(ctx context.Context, r *models.Reservation) []string
	ReservationClosed(ctx context.Context, r *models.Reservation) []string
}

type noopObserver struct{}

func (noopObserver) ReservationConfirmed(context.Context, *models.Reservation) []string { return nil }
func (noopObserver) ReservationClosed(context.Context, *models.Reservation) []string    { return nil }

const defaultSweepBatch = 500

// Service owns the reservation state machine. Every mutation runs under the
// reservation's lock inside one unit of work that also carries its ledger rows.
type Service struct {
	store      Store
	ledger     Ledger
	locker     lock.Locker
	tx         tx.Runner
	observer   MilestoneObserver
	ttls       models.TTLPolicy
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

// WithObserver registers the coordinator that reacts to confirmed and closed reservations.
func WithObserver(o MilestoneObserver) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithTTLPolicy overrides the hold period per reservation type.
func WithTTLPolicy(p models.TTLPolicy) Option {
	return func(s *Service) {
		s.ttls = p
	}
}

// WithSweepBatch caps how many reservations one sweep pass examines.
func WithSweepBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sweepBatch = n
		}
	}
}

func New(store Store, ledger Ledger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("reservation store is required")
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
		ttls:       models.DefaultTTLs(),
		sweepBatch: defaultSweepBatch,
		logger:     slog.Default(),
		tracer:     otel.Tracer("propie/reservation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// errNotDue marks a sweep candidate that stopped being due before it was locked.
var errNotDue = errors.New("reservation not due")

// execute is the single load -> compute -> persist path. fn mutates the
// freshly loaded reservation; ledger writes it makes join the same unit.
func (s *Service) execute(
	ctx context.Context,
	rid id.ReservationID,
	action models.Action,
	fn func(ctx context.Context, r *models.Reservation) error,
) (*models.Reservation, error) {
	var out *models.Reservation
	err := lock.WithUnitLock(ctx, s.locker, lock.Key("reservation", rid.String()), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			r, err := s.load(ctx, rid)
			if err != nil {
				return err
			}
			if err := authorize(ctx, r, action); err != nil {
				return err
			}
			if err := fn(ctx, r); err != nil {
				return err
			}
			if err := r.CheckInvariants(); err != nil {
				return err
			}
			if err := s.store.Update(ctx, r); err != nil {
				if errors.Is(err, sentinel.ErrStaleVersion) {
					return dErrors.Wrap(err, dErrors.CodeConcurrencyConflict, "reservation was modified concurrently")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save reservation")
			}
			out = r
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, errNotDue) {
			return nil, err
		}
		err = translateLockError(err)
		if s.metrics != nil {
			s.metrics.IncrementFailure(string(action), string(dErrors.GetCode(err)))
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(action), string(out.Status), out.Status.IsTerminal())
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, rid id.ReservationID) (*models.Reservation, error) {
	r, err := s.store.FindByID(ctx, rid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "reservation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reservation")
	}
	return r, nil
}

func translateLockError(err error) error {
	if errors.Is(err, sentinel.ErrLockNotAcquired) {
		return dErrors.Wrap(err, dErrors.CodeConcurrencyConflict, "reservation is busy, retry")
	}
	return err
}

// authorize checks the acting role against the action and keeps buyers to
// their own reservations. Calls without an actor come from in-process
// collaborators and are trusted.
func authorize(ctx context.Context, r *models.Reservation, action models.Action) error {
	actor := requestcontext.Actor(ctx)
	if actor.Role == "" {
		return nil
	}
	if action != "" && !models.Permits(actor.Role, action) {
		return dErrors.New(dErrors.CodeForbidden, string(actor.Role)+" may not "+string(action))
	}
	if actor.Role == id.RoleBuyer && actor.ID != r.BuyerID {
		return dErrors.New(dErrors.CodeForbidden, "reservation belongs to another buyer")
	}
	return nil
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
