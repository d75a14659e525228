package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"propie/internal/ledger/models"
	id "propie/pkg/domain"
	"propie/pkg/platform/sentinel"
	"propie/pkg/platform/tx"
)

// Error Contract:
// - ErrNotFound when the transaction does not exist
// - ErrAlreadyFinalized when a status change targets a row that already left PENDING
// - ErrConflict when a DEPOSIT_APPLIED row with the same parent and reference exists
//
// Writes made inside a tx.MemoryRunner unit are undone if the unit fails.

// InMemoryStore keeps ledger rows in memory for tests and single-process dev.
type InMemoryStore struct {
	mu       sync.RWMutex
	rows     map[id.TransactionID]*models.Transaction
	byParent map[uuid.UUID][]id.TransactionID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		rows:     make(map[id.TransactionID]*models.Transaction),
		byParent: make(map[uuid.UUID][]id.TransactionID),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[t.ID]; exists {
		return fmt.Errorf("transaction %s: %w", t.ID, sentinel.ErrConflict)
	}
	if t.Type == models.TypeDepositApplied {
		for _, existingID := range s.byParent[t.ParentID] {
			existing := s.rows[existingID]
			if existing.Type == models.TypeDepositApplied && existing.Reference == t.Reference {
				return fmt.Errorf("deposit already applied for %s: %w", t.Reference, sentinel.ErrConflict)
			}
		}
	}

	stored := *t
	s.rows[t.ID] = &stored
	s.byParent[t.ParentID] = append(s.byParent[t.ParentID], t.ID)

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.rows, t.ID)
		ids := s.byParent[t.ParentID]
		for i := len(ids) - 1; i >= 0; i-- {
			if ids[i] == t.ID {
				s.byParent[t.ParentID] = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, txID id.TransactionID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.rows[txID]
	if !ok {
		return nil, fmt.Errorf("transaction not found: %w", sentinel.ErrNotFound)
	}
	out := *t
	return &out, nil
}

func (s *InMemoryStore) ListByParent(_ context.Context, parentID uuid.UUID) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byParent[parentID]
	out := make([]*models.Transaction, 0, len(ids))
	for _, txID := range ids {
		t := *s.rows[txID]
		out = append(out, &t)
	}
	return out, nil
}

// Finalize persists a PENDING -> COMPLETED/FAILED change.
func (s *InMemoryStore) Finalize(ctx context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rows[t.ID]
	if !ok {
		return fmt.Errorf("transaction not found: %w", sentinel.ErrNotFound)
	}
	if current.Status != models.StatusPending {
		return fmt.Errorf("transaction %s: %w", t.ID, sentinel.ErrAlreadyFinalized)
	}

	previous := *current
	updated := *t
	s.rows[t.ID] = &updated

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rows[t.ID] = &previous
	})
	return nil
}
