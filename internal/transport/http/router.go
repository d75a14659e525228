// Package httptransport assembles the public HTTP surface: the versioned
// lifecycle API, the admin trigger and the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"propie/internal/platform/metrics"
	"propie/internal/platform/middleware"
	authmw "propie/pkg/platform/middleware/auth"
	request "propie/pkg/platform/middleware/request"
	"propie/pkg/platform/middleware/requesttime"
)

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig carries everything the router mounts. Nil handlers are skipped.
type RouterConfig struct {
	Logger         *slog.Logger
	Validator      authmw.JWTValidator
	HTTPMetrics    *metrics.HTTPMetrics
	Modules        []Registrar
	Expiry         ExpiryRunner
	Health         []HealthCheck
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(cfg.HTTPMetrics))

	r.Handle("/metrics", metrics.Handler())
	r.Get("/health", healthHandler(cfg.Health))

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(timeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(authmw.RequireActor(cfg.Validator, logger))

		for _, m := range cfg.Modules {
			m.Register(r)
		}
		if cfg.Expiry != nil {
			newAdminHandler(cfg.Expiry, logger).Register(r)
		}
	})
	return r
}
