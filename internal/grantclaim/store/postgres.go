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

	"propie/internal/grantclaim/models"
	id "propie/pkg/domain"
	"propie/pkg/platform/sentinel"
	txcontext "propie/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists claims in grant_claims and their walk in
// grant_claim_status_history. Create and Update should run inside a unit of
// work so the row and its history land together.
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

const claimColumns = `id, reference, buyer_id, developer_id, property_id, status,
	requested_amount, approved_amount, drawdown_amount, deposit_applied_amount,
	access_code, access_code_expiry, claim_code, claim_code_expiry, deadline,
	documents, notes, created_at, updated_at, version`

func (s *PostgresStore) Create(ctx context.Context, c *models.GrantClaim) error {
	documents, notes, err := marshalDocuments(c)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO grant_claims (` + claimColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	exec := s.execer(ctx)
	_, err = exec.ExecContext(ctx, query,
		uuid.UUID(c.ID),
		c.Reference,
		uuid.UUID(c.BuyerID),
		nullUserID(c.DeveloperID),
		string(c.PropertyID),
		string(c.Status),
		c.RequestedAmount,
		c.ApprovedAmount,
		c.DrawdownAmount,
		c.DepositAppliedAmount,
		nullString(c.AccessCode),
		c.AccessCodeExpiry,
		nullString(c.ClaimCode),
		c.ClaimCodeExpiry,
		c.Deadline(),
		documents,
		notes,
		c.CreatedAt,
		c.UpdatedAt,
		c.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert grant claim: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert grant claim: %w", err)
	}
	return s.appendHistory(ctx, exec, c.ID, c.StatusHistory)
}

func (s *PostgresStore) FindByID(ctx context.Context, cid id.ClaimID) (*models.GrantClaim, error) {
	exec := s.execer(ctx)
	query := `SELECT ` + claimColumns + ` FROM grant_claims WHERE id = $1`
	if _, inTx := txcontext.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	c, err := scanClaim(exec.QueryRowContext(ctx, query, uuid.UUID(cid)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find grant claim: %w", err)
	}
	if c.StatusHistory, err = s.history(ctx, exec, cid); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) ListByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.GrantClaim, error) {
	query := `
		SELECT ` + claimColumns + `
		FROM grant_claims
		WHERE buyer_id = $1
		ORDER BY created_at DESC
	`
	return s.list(ctx, "list grant claims by buyer", query, uuid.UUID(buyerID))
}

func (s *PostgresStore) ListByDeveloper(ctx context.Context, developerID id.UserID, statuses ...models.Status) ([]*models.GrantClaim, error) {
	if len(statuses) == 0 {
		query := `
			SELECT ` + claimColumns + `
			FROM grant_claims
			WHERE developer_id = $1
			ORDER BY created_at DESC
		`
		return s.list(ctx, "list grant claims by developer", query, uuid.UUID(developerID))
	}
	query := `
		SELECT ` + claimColumns + `
		FROM grant_claims
		WHERE developer_id = $1 AND status = ANY($2)
		ORDER BY created_at DESC
	`
	return s.list(ctx, "list grant claims by developer", query, uuid.UUID(developerID), statusArray(statuses))
}

// FindExpiring relies on the deadline column, which is written from the
// status-dependent deadline on every save and is NULL for closed claims.
func (s *PostgresStore) FindExpiring(ctx context.Context, now time.Time, limit int) ([]id.ClaimID, error) {
	query := `
		SELECT id
		FROM grant_claims
		WHERE deadline IS NOT NULL AND deadline <= $1
		ORDER BY deadline
		LIMIT $2
	`
	exec := s.execer(ctx)
	rows, err := exec.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find expiring grant claims: %w", err)
	}
	defer rows.Close()

	var out []id.ClaimID
	for rows.Next() {
		var cid uuid.UUID
		if err := rows.Scan(&cid); err != nil {
			return nil, fmt.Errorf("scan expiring grant claim: %w", err)
		}
		out = append(out, id.ClaimID(cid))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expiring grant claims: %w", err)
	}
	return out, nil
}

// Update writes the mutable columns under a version check and appends the
// history entries the database has not seen yet.
func (s *PostgresStore) Update(ctx context.Context, c *models.GrantClaim) error {
	documents, notes, err := marshalDocuments(c)
	if err != nil {
		return err
	}
	query := `
		UPDATE grant_claims
		SET developer_id = $3, status = $4, approved_amount = $5, drawdown_amount = $6,
			deposit_applied_amount = $7, access_code = $8, access_code_expiry = $9,
			claim_code = $10, claim_code_expiry = $11, deadline = $12, documents = $13,
			notes = $14, updated_at = $15, version = version + 1
		WHERE id = $1 AND version = $2
	`
	exec := s.execer(ctx)
	res, err := exec.ExecContext(ctx, query,
		uuid.UUID(c.ID),
		c.Version,
		nullUserID(c.DeveloperID),
		string(c.Status),
		c.ApprovedAmount,
		c.DrawdownAmount,
		c.DepositAppliedAmount,
		nullString(c.AccessCode),
		c.AccessCodeExpiry,
		nullString(c.ClaimCode),
		c.ClaimCodeExpiry,
		c.Deadline(),
		documents,
		notes,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update grant claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update grant claim: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("grant claim %s at version %d: %w", c.ID, c.Version, sentinel.ErrStaleVersion)
	}

	var stored int
	err = exec.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM grant_claim_status_history WHERE claim_id = $1`, uuid.UUID(c.ID)).Scan(&stored)
	if err != nil {
		return fmt.Errorf("count status history: %w", err)
	}
	if stored > len(c.StatusHistory) {
		return fmt.Errorf("grant claim %s would drop status history", c.ID)
	}
	if err := s.appendHistory(ctx, exec, c.ID, c.StatusHistory[stored:]); err != nil {
		return err
	}
	c.Version++
	return nil
}

func (s *PostgresStore) appendHistory(ctx context.Context, exec dbExecutor, cid id.ClaimID, entries []models.StatusHistoryEntry) error {
	query := `
		INSERT INTO grant_claim_status_history
			(id, claim_id, seq, previous_status, new_status, actor_id, actor_role, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, e := range entries {
		var previous sql.NullString
		if e.PreviousStatus != nil {
			previous = sql.NullString{String: string(*e.PreviousStatus), Valid: true}
		}
		actorID := e.Actor.ID
		_, err := exec.ExecContext(ctx, query,
			uuid.UUID(e.ID),
			uuid.UUID(cid),
			e.Seq,
			previous,
			string(e.NewStatus),
			nullUserID(&actorID),
			string(e.Actor.Role),
			nullString(e.Note),
			e.Timestamp,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("append status history seq %d: %w", e.Seq, sentinel.ErrStaleVersion)
			}
			return fmt.Errorf("append status history: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) history(ctx context.Context, exec dbExecutor, cid id.ClaimID) ([]models.StatusHistoryEntry, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, seq, previous_status, new_status, actor_id, actor_role, note, created_at
		FROM grant_claim_status_history
		WHERE claim_id = $1
		ORDER BY seq
	`, uuid.UUID(cid))
	if err != nil {
		return nil, fmt.Errorf("load status history: %w", err)
	}
	defer rows.Close()

	out := make([]models.StatusHistoryEntry, 0)
	for rows.Next() {
		var (
			entryID        uuid.UUID
			seq            int
			previous, note sql.NullString
			newStatus      string
			actorID        uuid.NullUUID
			actorRole      string
			createdAt      time.Time
		)
		if err := rows.Scan(&entryID, &seq, &previous, &newStatus, &actorID, &actorRole, &note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		e := models.StatusHistoryEntry{
			ID:        id.EntryID(entryID),
			Seq:       seq,
			NewStatus: models.Status(newStatus),
			Actor:     id.Actor{Role: id.Role(actorRole)},
			Note:      note.String,
			Timestamp: createdAt,
		}
		if previous.Valid {
			prev := models.Status(previous.String)
			e.PreviousStatus = &prev
		}
		if actorID.Valid {
			e.Actor.ID = id.UserID(actorID.UUID)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) list(ctx context.Context, op, query string, args ...any) ([]*models.GrantClaim, error) {
	exec := s.execer(ctx)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make([]*models.GrantClaim, 0)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, c)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}

	// history is loaded after the cursor closes; a tx connection serves one query at a time
	for _, c := range out {
		if c.StatusHistory, err = s.history(ctx, exec, c.ID); err != nil {
			return nil, err
		}
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

func marshalDocuments(c *models.GrantClaim) (documents, notes []byte, err error) {
	if documents, err = json.Marshal(c.Documents); err != nil {
		return nil, nil, fmt.Errorf("marshal documents: %w", err)
	}
	if notes, err = json.Marshal(c.Notes); err != nil {
		return nil, nil, fmt.Errorf("marshal notes: %w", err)
	}
	return documents, notes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*models.GrantClaim, error) {
	var (
		cid, buyerID                        uuid.UUID
		developerID                         uuid.NullUUID
		reference, propertyID, status       string
		requested                           decimal.Decimal
		approved, drawdown, applied         decimal.NullDecimal
		accessCode, claimCode               sql.NullString
		accessExpiry, claimExpiry, deadline sql.NullTime
		documentsJSON, notesJSON            []byte
		createdAt, updatedAt                time.Time
		version                             int64
	)
	if err := row.Scan(&cid, &reference, &buyerID, &developerID, &propertyID, &status,
		&requested, &approved, &drawdown, &applied,
		&accessCode, &accessExpiry, &claimCode, &claimExpiry, &deadline,
		&documentsJSON, &notesJSON, &createdAt, &updatedAt, &version); err != nil {
		return nil, err
	}

	c := &models.GrantClaim{
		ID:                   id.ClaimID(cid),
		Reference:            reference,
		BuyerID:              id.UserID(buyerID),
		PropertyID:           id.PropertyID(propertyID),
		Status:               models.Status(status),
		RequestedAmount:      requested,
		ApprovedAmount:       approved,
		DrawdownAmount:       drawdown,
		DepositAppliedAmount: applied,
		AccessCode:           accessCode.String,
		AccessCodeExpiry:     nullTime(accessExpiry),
		ClaimCode:            claimCode.String,
		ClaimCodeExpiry:      nullTime(claimExpiry),
		CreatedAt:            createdAt,
		UpdatedAt:            updatedAt,
		Version:              version,
	}
	if developerID.Valid {
		dev := id.UserID(developerID.UUID)
		c.DeveloperID = &dev
	}
	if err := json.Unmarshal(documentsJSON, &c.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	if err := json.Unmarshal(notesJSON, &c.Notes); err != nil {
		return nil, fmt.Errorf("unmarshal notes: %w", err)
	}
	return c, nil
}

func nullUserID(u *id.UserID) uuid.NullUUID {
	if u == nil || u.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*u), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
