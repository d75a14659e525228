package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"propie/internal/grantclaim/models"
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

// ExpireSweep expires every claim whose current code deadline passed at or
// before now, acting as SYSTEM through the normal transition table. Claims
// that moved on since they were selected are re-checked under their lock and
// skipped.
func (s *Service) ExpireSweep(ctx context.Context, now time.Time) (SweepReport, error) {
	ctx, span := s.tracer.Start(ctx, "grantclaim.expire_sweep")
	defer span.End()

	var report SweepReport
	ctx = requestcontext.WithActor(requestcontext.WithTime(ctx, now), id.SystemActor)

	due, err := s.store.FindExpiring(ctx, now, s.sweepBatch)
	if err != nil {
		return report, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find expiring grant claims")
	}

	for _, cid := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Examined++

		entityCtx := context.WithoutCancel(ctx)
		ch, err := s.execute(entityCtx, cid, "expire", func(ctx context.Context, c *models.GrantClaim) error {
			return c.Expire(now)
		})
		switch {
		case err == nil:
			report.Expired++
			s.finish(entityCtx, "grant_claim_expired", ch)
		case errors.Is(err, models.ErrNotDue),
			dErrors.HasCode(err, dErrors.CodeInvalidTransition),
			dErrors.HasCode(err, dErrors.CodeConcurrencyConflict):
			report.Skipped++
			s.logger.DebugContext(ctx, "grant claim skipped by expiry sweep",
				"claim_id", cid.String(),
				"reason", err.Error(),
			)
		default:
			report.Failed++
			s.logger.ErrorContext(ctx, "failed to expire grant claim",
				"claim_id", cid.String(),
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
