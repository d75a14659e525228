package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"propie/internal/ledger/models"
	id "propie/pkg/domain"
	"propie/pkg/platform/sentinel"
	txcontext "propie/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists ledger rows. Writes join the transaction carried in
// the context when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const transactionColumns = `id, parent_id, parent_kind, tx_type, amount, status,
	payment_method, reference, failure_reason, created_at, processed_at`

func (s *PostgresStore) Create(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO ledger_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(t.ID),
		t.ParentID,
		string(t.ParentKind),
		string(t.Type),
		t.Amount,
		string(t.Status),
		t.PaymentMethod,
		t.Reference,
		t.FailureReason,
		t.CreatedAt,
		t.ProcessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert ledger transaction: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert ledger transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE id = $1`
	t, err := scanTransaction(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(txID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find ledger transaction: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListByParent(ctx context.Context, parentID uuid.UUID) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE parent_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list ledger transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger transactions: %w", err)
	}
	return out, nil
}

// Finalize updates status only while the stored row is still PENDING, so a
// transaction can be settled exactly once even without an outer lock.
func (s *PostgresStore) Finalize(ctx context.Context, t *models.Transaction) error {
	query := `
		UPDATE ledger_transactions
		SET status = $2, payment_method = $3, reference = $4, failure_reason = $5, processed_at = $6
		WHERE id = $1 AND status = 'PENDING'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(t.ID),
		string(t.Status),
		t.PaymentMethod,
		t.Reference,
		t.FailureReason,
		t.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("finalize ledger transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize ledger transaction: %w", err)
	}
	if n == 0 {
		if _, findErr := s.FindByID(ctx, t.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("transaction %s: %w", t.ID, sentinel.ErrAlreadyFinalized)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		txID, parentID             uuid.UUID
		kind, txType, status       string
		amount                     decimal.Decimal
		method, reference, failure string
		createdAt                  time.Time
		processedAt                sql.NullTime
	)
	if err := row.Scan(&txID, &parentID, &kind, &txType, &amount, &status,
		&method, &reference, &failure, &createdAt, &processedAt); err != nil {
		return nil, err
	}
	t := &models.Transaction{
		ID:            id.TransactionID(txID),
		ParentID:      parentID,
		ParentKind:    models.ParentKind(kind),
		Type:          models.TransactionType(txType),
		Amount:        amount,
		Status:        models.TransactionStatus(status),
		PaymentMethod: method,
		Reference:     reference,
		FailureReason: failure,
		CreatedAt:     createdAt,
	}
	if processedAt.Valid {
		p := processedAt.Time
		t.ProcessedAt = &p
	}
	return t, nil
}
