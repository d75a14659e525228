package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"propie/internal/grantclaim/models"
	id "propie/pkg/domain"
	"propie/pkg/platform/sentinel"
	"propie/pkg/platform/tx"
)

// Error Contract:
// - ErrNotFound when the claim does not exist
// - ErrConflict when the ID or reference is already taken
// - ErrStaleVersion when Update sees a version other than the one loaded

// InMemoryStore keeps claims, history included, in memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[id.ClaimID]*models.GrantClaim
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{rows: make(map[id.ClaimID]*models.GrantClaim)}
}

func (s *InMemoryStore) Create(ctx context.Context, c *models.GrantClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[c.ID]; exists {
		return fmt.Errorf("grant claim %s: %w", c.ID, sentinel.ErrConflict)
	}
	s.rows[c.ID] = c.Clone()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.rows, c.ID)
	})
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, cid id.ClaimID) (*models.GrantClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.rows[cid]
	if !ok {
		return nil, fmt.Errorf("grant claim not found: %w", sentinel.ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *InMemoryStore) ListByBuyer(_ context.Context, buyerID id.UserID) ([]*models.GrantClaim, error) {
	return s.filter(func(c *models.GrantClaim) bool { return c.BuyerID == buyerID }), nil
}

// ListByDeveloper returns claims assigned to the developer. No statuses means any status.
func (s *InMemoryStore) ListByDeveloper(_ context.Context, developerID id.UserID, statuses ...models.Status) ([]*models.GrantClaim, error) {
	want := make(map[models.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	return s.filter(func(c *models.GrantClaim) bool {
		if c.DeveloperID == nil || *c.DeveloperID != developerID {
			return false
		}
		return len(want) == 0 || want[c.Status]
	}), nil
}

// FindExpiring returns claims whose current deadline passed, earliest first.
func (s *InMemoryStore) FindExpiring(_ context.Context, now time.Time, limit int) ([]id.ClaimID, error) {
	s.mu.RLock()
	due := make([]*models.GrantClaim, 0)
	for _, c := range s.rows {
		if c.IsDue(now) {
			due = append(due, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool { return due[i].Deadline().Before(*due[j].Deadline()) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]id.ClaimID, len(due))
	for i, c := range due {
		out[i] = c.ID
	}
	return out, nil
}

func (s *InMemoryStore) Update(ctx context.Context, c *models.GrantClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rows[c.ID]
	if !ok {
		return fmt.Errorf("grant claim not found: %w", sentinel.ErrNotFound)
	}
	if current.Version != c.Version {
		return fmt.Errorf("grant claim %s at version %d: %w", c.ID, c.Version, sentinel.ErrStaleVersion)
	}
	if len(c.StatusHistory) < len(current.StatusHistory) {
		return fmt.Errorf("grant claim %s would drop status history", c.ID)
	}
	c.Version++
	s.rows[c.ID] = c.Clone()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rows[current.ID] = current
	})
	return nil
}

func (s *InMemoryStore) filter(match func(*models.GrantClaim) bool) []*models.GrantClaim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.GrantClaim, 0)
	for _, c := range s.rows {
		if match(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
