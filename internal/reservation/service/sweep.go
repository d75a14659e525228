package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"propie/internal/reservation/models"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
	"propie/pkg/requestcontext"
)

// SweepReport summarizes one expiry pass.
type SweepReport struct {
	Examined int `json:"examined"`
	Expired  int `json:"expired"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// ExpireSweep closes every active reservation whose hold lapsed at or before
// now. Each candidate goes through the same locked path as Cancel, so a
// reservation changed by a caller in the meantime is re-checked and skipped
// if no longer due. Running it twice for the same now changes nothing the
// second time.
//
// When ctx is cancelled the reservation in flight is finished and the sweep
// stops with ctx's error.
func (s *Service) ExpireSweep(ctx context.Context, now time.Time) (SweepReport, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.expire_sweep")
	defer span.End()

	var report SweepReport
	ctx = requestcontext.WithActor(requestcontext.WithTime(ctx, now), id.SystemActor)

	due, err := s.store.FindExpiring(ctx, now, s.sweepBatch)
	if err != nil {
		return report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find expiring reservations")
	}

	for _, rid := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Examined++

		r, err := s.terminate(context.WithoutCancel(ctx), rid, models.ActionExpire, models.ExpiryReason)
		switch {
		case err == nil:
			report.Expired++
			for _, w := range s.observer.ReservationClosed(ctx, r) {
				s.logger.WarnContext(ctx, "expiry follow-up failed", "reservation_id", rid.String(), "warning", w)
			}
		case errors.Is(err, errNotDue),
			dErrors.HasCode(err, dErrors.CodeInvalidTransition),
			dErrors.HasCode(err, dErrors.CodeConcurrencyConflict):
			report.Skipped++
			s.logger.DebugContext(ctx, "reservation skipped by expiry sweep",
				"reservation_id", rid.String(),
				"reason", err.Error(),
			)
		default:
			report.Failed++
			s.logger.ErrorContext(ctx, "failed to expire reservation",
				"reservation_id", rid.String(),
				"error", err,
			)
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.expired", report.Expired),
		attribute.Int("sweep.skipped", report.Skipped),
	)
	return report, nil
}
