package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"propie/internal/ledger/metrics"
	"propie/internal/ledger/models"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
	"propie/pkg/platform/sentinel"
	"propie/pkg/platform/tx"
	"propie/pkg/requestcontext"
)

// Store is the persistence port for ledger rows.
type Store interface {
	Create(ctx context.Context, t *models.Transaction) error
	FindByID(ctx context.Context, txID id.TransactionID) (*models.Transaction, error)
	ListByParent(ctx context.Context, parentID uuid.UUID) ([]*models.Transaction, error)
	Finalize(ctx context.Context, t *models.Transaction) error
}

// Service is the only writer of ledger transactions. Callers that change a
// reservation or claim pass their unit-of-work context so ledger rows commit
// or roll back together with the parent.
type Service struct {
	store   Store
	tx      tx.Runner
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
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

// WithTxRunner sets the runner used when a call arrives outside a unit of work.
func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	s := &Service{
		store:  store,
		tx:     tx.NewMemoryRunner(),
		logger: slog.Default(),
		tracer: otel.Tracer("propie/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RecordRequest describes a new ledger row.
type RecordRequest struct {
	ParentID      uuid.UUID
	ParentKind    models.ParentKind
	Type          models.TransactionType
	Amount        decimal.Decimal
	Status        models.TransactionStatus
	Reference     string
	PaymentMethod string
}

func (s *Service) RecordTransaction(ctx context.Context, req RecordRequest) (*models.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.record_transaction",
		trace.WithAttributes(attribute.String("ledger.type", string(req.Type))))
	defer span.End()

	t, err := models.NewTransaction(id.NewTransactionID(), req.ParentID, req.ParentKind, req.Type,
		req.Amount, req.Status, req.Reference, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	t.PaymentMethod = req.PaymentMethod

	if err := s.store.Create(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "ledger transaction already recorded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record transaction")
	}

	s.logger.InfoContext(ctx, "ledger transaction recorded",
		"transaction_id", t.ID,
		"parent_id", t.ParentID,
		"type", t.Type,
		"status", t.Status,
		"amount", t.Amount.StringFixed(2),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementRecorded(string(t.Type), string(t.Status))
	}
	return t, nil
}

// MarkCompleted settles a PENDING transaction. Empty method or reference keep
// the stored values.
func (s *Service) MarkCompleted(ctx context.Context, txID id.TransactionID, method, reference string) (*models.Transaction, error) {
	return s.finalize(ctx, txID, func(t *models.Transaction) {
		t.ApplyCompleted(method, reference, requestcontext.Now(ctx))
	})
}

// MarkFailed records that a PENDING payment did not go through.
func (s *Service) MarkFailed(ctx context.Context, txID id.TransactionID, reason string) (*models.Transaction, error) {
	return s.finalize(ctx, txID, func(t *models.Transaction) {
		t.ApplyFailed(reason, requestcontext.Now(ctx))
	})
}

func (s *Service) finalize(ctx context.Context, txID id.TransactionID, apply func(*models.Transaction)) (*models.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.finalize")
	defer span.End()

	var out *models.Transaction
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.store.FindByID(ctx, txID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "transaction not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transaction")
		}
		if err := t.CanFinalize(); err != nil {
			return err
		}
		apply(t)
		if err := s.store.Finalize(ctx, t); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyFinalized) {
				return dErrors.InvalidTransition("transaction", "finalized", string(models.StatusPending))
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize transaction")
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "ledger transaction settled",
		"transaction_id", out.ID,
		"status", out.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncrementSettled(string(out.Status))
	}
	return out, nil
}

// Refund records a COMPLETED REFUND that reduces the parent's balance by amount.
// It fails with CodeInsufficientBalance when amount exceeds what was settled
// and not yet refunded.
func (s *Service) Refund(ctx context.Context, parentID uuid.UUID, kind models.ParentKind, amount decimal.Decimal, reference string) (*models.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.refund")
	defer span.End()

	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, "refund amount must be positive")
	}

	var out *models.Transaction
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		balance, err := s.RefundableBalance(ctx, parentID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(balance) {
			return dErrors.New(dErrors.CodeInsufficientBalance, "refund exceeds refundable balance of "+balance.StringFixed(2))
		}
		out, err = s.RecordTransaction(ctx, RecordRequest{
			ParentID:   parentID,
			ParentKind: kind,
			Type:       models.TypeRefund,
			Amount:     amount,
			Status:     models.StatusCompleted,
			Reference:  reference,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.AddRefunded(out.Amount)
	}
	return out, nil
}

// RefundableBalance is the settled amount not yet refunded for a parent.
func (s *Service) RefundableBalance(ctx context.Context, parentID uuid.UUID) (decimal.Decimal, error) {
	txs, err := s.ListByParent(ctx, parentID)
	if err != nil {
		return decimal.Zero, err
	}
	return models.RefundableBalance(txs), nil
}

func (s *Service) ListByParent(ctx context.Context, parentID uuid.UUID) ([]*models.Transaction, error) {
	txs, err := s.store.ListByParent(ctx, parentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transactions")
	}
	return txs, nil
}

// FindPendingByReference finds the PENDING transaction a payment confirmation refers to.
func (s *Service) FindPendingByReference(ctx context.Context, parentID uuid.UUID, reference string) (*models.Transaction, error) {
	txs, err := s.ListByParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	for _, t := range txs {
		if t.Status == models.StatusPending && t.Reference == reference {
			return t, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "no pending transaction with reference "+reference)
}
