// Package expiry runs the periodic sweep that closes reservations and grant
// claims whose deadlines have passed.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"propie/internal/expiry/metrics"
	claimsvc "propie/internal/grantclaim/service"
	reservationsvc "propie/internal/reservation/service"
)

const defaultInterval = 5 * time.Minute

// ReservationSweeper expires due reservations.
type ReservationSweeper interface {
	ExpireSweep(ctx context.Context, now time.Time) (reservationsvc.SweepReport, error)
}

// ClaimSweeper expires grant claims whose code deadline passed.
type ClaimSweeper interface {
	ExpireSweep(ctx context.Context, now time.Time) (claimsvc.SweepReport, error)
}

// Report is the outcome of one tick.
type Report struct {
	Now          time.Time                  `json:"now"`
	Reservations reservationsvc.SweepReport `json:"reservations"`
	Claims       claimsvc.SweepReport       `json:"claims"`
}

// Scheduler drives both sweeps on a fixed interval. Runs never overlap.
type Scheduler struct {
	reservations ReservationSweeper
	claims       ClaimSweeper
	interval     time.Duration
	clock        func() time.Time
	logger       *slog.Logger
	metrics      *metrics.Metrics

	running sync.Mutex
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func New(reservations ReservationSweeper, claims ClaimSweeper, opts ...Option) (*Scheduler, error) {
	if reservations == nil || claims == nil {
		return nil, errors.New("both sweepers are required")
	}
	s := &Scheduler{
		reservations: reservations,
		claims:       claims,
		interval:     defaultInterval,
		clock:        func() time.Time { return time.Now().UTC() },
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run ticks until ctx is cancelled. A failed tick is logged and the next one
// still runs.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "expiry scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "expiry scheduler stopped")
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx, s.clock()); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
			}
		}
	}
}

// RunOnce sweeps reservations and claims concurrently against a single now.
// The two sweeps touch disjoint entities, so one failing does not stop the other.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (Report, error) {
	s.running.Lock()
	defer s.running.Unlock()

	start := time.Now()
	report := Report{Now: now}

	var g errgroup.Group
	g.Go(func() error {
		r, err := s.reservations.ExpireSweep(ctx, now)
		report.Reservations = r
		s.record(ctx, "reservation", r.Expired, r.Skipped, r.Failed, err)
		if err != nil {
			return fmt.Errorf("reservation sweep: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		r, err := s.claims.ExpireSweep(ctx, now)
		report.Claims = r
		s.record(ctx, "grant_claim", r.Expired, r.Skipped, r.Failed, err)
		if err != nil {
			return fmt.Errorf("grant claim sweep: %w", err)
		}
		return nil
	})
	err := g.Wait()

	if s.metrics != nil {
		s.metrics.ObserveDuration(time.Since(start))
	}
	s.logger.InfoContext(ctx, "expiry sweep finished",
		"now", now,
		"reservations_expired", report.Reservations.Expired,
		"reservations_skipped", report.Reservations.Skipped,
		"claims_expired", report.Claims.Expired,
		"claims_skipped", report.Claims.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, err
}

func (s *Scheduler) record(ctx context.Context, kind string, expired, skipped, failed int, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSweep(kind, expired, skipped, failed)
	if err != nil && ctx.Err() == nil {
		s.metrics.IncrementSweepError(kind)
	}
}
