package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"propie/internal/expiry"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
	"propie/pkg/platform/httputil"
	"propie/pkg/requestcontext"
)

// ExpiryRunner runs one sweep on demand.
type ExpiryRunner interface {
	RunOnce(ctx context.Context, now time.Time) (expiry.Report, error)
}

type adminHandler struct {
	expiry ExpiryRunner
	logger *slog.Logger
}

func newAdminHandler(runner ExpiryRunner, logger *slog.Logger) *adminHandler {
	return &adminHandler{expiry: runner, logger: logger}
}

func (h *adminHandler) Register(r chi.Router) {
	r.Post("/admin/expiry/run", h.handleRunExpiry)
}

// handleRunExpiry runs both sweeps with the request time as "now". The sweep
// acts as SYSTEM regardless of who triggered it.
func (h *adminHandler) handleRunExpiry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	if actor.Role != id.RoleAdmin {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "only admins may trigger an expiry sweep"))
		return
	}

	report, err := h.expiry.RunOnce(ctx, requestcontext.Now(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "on-demand expiry sweep failed",
			"error", err,
			"actor", actor.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "expiry sweep failed"))
		return
	}
	h.logger.InfoContext(ctx, "on-demand expiry sweep",
		"actor", actor.String(),
		"reservations_expired", report.Reservations.Expired,
		"claims_expired", report.Claims.Expired,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, report)
}
