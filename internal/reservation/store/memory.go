package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"propie/internal/reservation/models"
	id "propie/pkg/domain"
	"propie/pkg/platform/sentinel"
	"propie/pkg/platform/tx"
)

// Error Contract:
// - ErrNotFound when the reservation does not exist
// - ErrConflict when the property already has an active reservation
// - ErrStaleVersion when Update sees a version other than the one loaded
//
// Reads and writes copy, so callers never share memory with the store.

// InMemoryStore keeps reservations in memory for tests and single-process dev.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[id.ReservationID]*models.Reservation
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{rows: make(map[id.ReservationID]*models.Reservation)}
}

func (s *InMemoryStore) Create(ctx context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[r.ID]; exists {
		return fmt.Errorf("reservation %s: %w", r.ID, sentinel.ErrConflict)
	}
	for _, existing := range s.rows {
		if existing.PropertyID == r.PropertyID && models.IsActive(existing.Status) {
			return fmt.Errorf("property %s already reserved: %w", r.PropertyID, sentinel.ErrConflict)
		}
	}
	s.rows[r.ID] = r.Clone()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.rows, r.ID)
	})
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, rid id.ReservationID) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[rid]
	if !ok {
		return nil, fmt.Errorf("reservation not found: %w", sentinel.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) FindActive(_ context.Context, buyerID id.UserID, propertyID id.PropertyID) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rows {
		if r.BuyerID == buyerID && r.PropertyID == propertyID && models.IsActive(r.Status) {
			return r.Clone(), nil
		}
	}
	return nil, fmt.Errorf("active reservation not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByBuyer(_ context.Context, buyerID id.UserID) ([]*models.Reservation, error) {
	return s.filter(func(r *models.Reservation) bool { return r.BuyerID == buyerID }), nil
}

func (s *InMemoryStore) FindByStatus(_ context.Context, statuses ...models.Status) ([]*models.Reservation, error) {
	want := make(map[models.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	return s.filter(func(r *models.Reservation) bool { return want[r.Status] }), nil
}

// FindExpiring returns active reservations due at now, oldest expiry first.
func (s *InMemoryStore) FindExpiring(_ context.Context, now time.Time, limit int) ([]id.ReservationID, error) {
	s.mu.RLock()
	due := make([]*models.Reservation, 0)
	for _, r := range s.rows {
		if r.IsDue(now) {
			due = append(due, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]id.ReservationID, len(due))
	for i, r := range due {
		out[i] = r.ID
	}
	return out, nil
}

func (s *InMemoryStore) Update(ctx context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rows[r.ID]
	if !ok {
		return fmt.Errorf("reservation not found: %w", sentinel.ErrNotFound)
	}
	if current.Version != r.Version {
		return fmt.Errorf("reservation %s at version %d: %w", r.ID, r.Version, sentinel.ErrStaleVersion)
	}
	r.Version++
	s.rows[r.ID] = r.Clone()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rows[current.ID] = current
	})
	return nil
}

// filter returns copies of matching rows, newest first.
func (s *InMemoryStore) filter(match func(*models.Reservation) bool) []*models.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Reservation, 0)
	for _, r := range s.rows {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
