package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"propie/internal/reservation/models"
	id "propie/pkg/domain"
	"propie/pkg/platform/sentinel"
	txcontext "propie/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists reservations. Reads made inside a transaction take a
// row lock so the load -> save window cannot interleave across processes.
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

const reservationColumns = `id, reference, property_id, buyer_id, reservation_type, status,
	fee_amount, amount_paid, outstanding_amount, buyer_details, property_snapshot, notes,
	created_at, updated_at, expires_at, confirmed_at, cancelled_at, expired_at, converted_at,
	extended_at, version`

func (s *PostgresStore) Create(ctx context.Context, r *models.Reservation) error {
	buyer, snapshot, notes, err := marshalDocuments(r)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	exec := s.execer(ctx)
	_, err = exec.ExecContext(ctx, query,
		uuid.UUID(r.ID),
		r.Reference,
		string(r.PropertyID),
		uuid.UUID(r.BuyerID),
		string(r.Type),
		string(r.Status),
		r.FeeAmount,
		r.AmountPaid,
		r.OutstandingAmount,
		buyer,
		snapshot,
		notes,
		r.CreatedAt,
		r.UpdatedAt,
		r.ExpiresAt,
		r.ConfirmedAt,
		r.CancelledAt,
		r.ExpiredAt,
		r.ConvertedAt,
		r.ExtendedAt,
		r.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert reservation: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, rid id.ReservationID) (*models.Reservation, error) {
	exec := s.execer(ctx)
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if _, inTx := txcontext.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	r, err := scanReservation(exec.QueryRowContext(ctx, query, uuid.UUID(rid)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindActive(ctx context.Context, buyerID id.UserID, propertyID id.PropertyID) (*models.Reservation, error) {
	exec := s.execer(ctx)
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE buyer_id = $1 AND property_id = $2 AND status = ANY($3)
	`
	r, err := scanReservation(exec.QueryRowContext(ctx, query,
		uuid.UUID(buyerID), string(propertyID), statusArray(models.ActiveStatuses)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active reservation: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE buyer_id = $1
		ORDER BY created_at DESC
	`
	return s.list(ctx, "list reservations by buyer", query, uuid.UUID(buyerID))
}

func (s *PostgresStore) FindByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = ANY($1)
		ORDER BY created_at DESC
	`
	return s.list(ctx, "list reservations by status", query, statusArray(statuses))
}

func (s *PostgresStore) FindExpiring(ctx context.Context, now time.Time, limit int) ([]id.ReservationID, error) {
	query := `
		SELECT id
		FROM reservations
		WHERE status = ANY($1) AND expires_at <= $2
		ORDER BY expires_at
		LIMIT $3
	`
	exec := s.execer(ctx)
	rows, err := exec.QueryContext(ctx, query, statusArray(models.ActiveStatuses), now, limit)
	if err != nil {
		return nil, fmt.Errorf("find expiring reservations: %w", err)
	}
	defer rows.Close()

	var out []id.ReservationID
	for rows.Next() {
		var rid uuid.UUID
		if err := rows.Scan(&rid); err != nil {
			return nil, fmt.Errorf("scan expiring reservation: %w", err)
		}
		out = append(out, id.ReservationID(rid))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expiring reservations: %w", err)
	}
	return out, nil
}

// Update writes every mutable column when the stored version matches, then
// advances r.Version.
func (s *PostgresStore) Update(ctx context.Context, r *models.Reservation) error {
	_, _, notes, err := marshalDocuments(r)
	if err != nil {
		return err
	}
	query := `
		UPDATE reservations
		SET status = $3, amount_paid = $4, outstanding_amount = $5, notes = $6,
			updated_at = $7, expires_at = $8, confirmed_at = $9, cancelled_at = $10,
			expired_at = $11, converted_at = $12, extended_at = $13, version = version + 1
		WHERE id = $1 AND version = $2
	`
	exec := s.execer(ctx)
	res, err := exec.ExecContext(ctx, query,
		uuid.UUID(r.ID),
		r.Version,
		string(r.Status),
		r.AmountPaid,
		r.OutstandingAmount,
		notes,
		r.UpdatedAt,
		r.ExpiresAt,
		r.ConfirmedAt,
		r.CancelledAt,
		r.ExpiredAt,
		r.ConvertedAt,
		r.ExtendedAt,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reservation %s at version %d: %w", r.ID, r.Version, sentinel.ErrStaleVersion)
	}
	r.Version++
	return nil
}

func (s *PostgresStore) list(ctx context.Context, op, query string, args ...any) ([]*models.Reservation, error) {
	exec := s.execer(ctx)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]*models.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return out, nil
}

func statusArray(statuses []models.Status) any {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return pq.Array(out)
}

func marshalDocuments(r *models.Reservation) (buyer, snapshot, notes []byte, err error) {
	if buyer, err = json.Marshal(r.BuyerDetails); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal buyer details: %w", err)
	}
	if snapshot, err = json.Marshal(r.PropertySnapshot); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal property snapshot: %w", err)
	}
	if notes, err = json.Marshal(r.Notes); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal notes: %w", err)
	}
	return buyer, snapshot, notes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		rid, buyerID                           uuid.UUID
		reference, propertyID, resType, status string
		fee, paid, outstanding                 decimal.Decimal
		buyerJSON, snapshotJSON, notesJSON     []byte
		createdAt, updatedAt, expiresAt        time.Time
		confirmedAt, cancelledAt, expiredAt    sql.NullTime
		convertedAt, extendedAt                sql.NullTime
		version                                int64
	)
	if err := row.Scan(&rid, &reference, &propertyID, &buyerID, &resType, &status,
		&fee, &paid, &outstanding, &buyerJSON, &snapshotJSON, &notesJSON,
		&createdAt, &updatedAt, &expiresAt, &confirmedAt, &cancelledAt, &expiredAt, &convertedAt,
		&extendedAt, &version); err != nil {
		return nil, err
	}

	r := &models.Reservation{
		ID:                id.ReservationID(rid),
		Reference:         reference,
		PropertyID:        id.PropertyID(propertyID),
		BuyerID:           id.UserID(buyerID),
		Type:              models.Type(resType),
		Status:            models.Status(status),
		FeeAmount:         fee,
		AmountPaid:        paid,
		OutstandingAmount: outstanding,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
		ExpiresAt:         expiresAt,
		ConfirmedAt:       nullTime(confirmedAt),
		CancelledAt:       nullTime(cancelledAt),
		ExpiredAt:         nullTime(expiredAt),
		ConvertedAt:       nullTime(convertedAt),
		ExtendedAt:        nullTime(extendedAt),
		Version:           version,
	}
	if err := json.Unmarshal(buyerJSON, &r.BuyerDetails); err != nil {
		return nil, fmt.Errorf("unmarshal buyer details: %w", err)
	}
	if err := json.Unmarshal(snapshotJSON, &r.PropertySnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal property snapshot: %w", err)
	}
	if err := json.Unmarshal(notesJSON, &r.Notes); err != nil {
		return nil, fmt.Errorf("unmarshal notes: %w", err)
	}
	return r, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
