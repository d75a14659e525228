package httpserver

import (
	"net/http"

	"propie/internal/platform/config"
)

// New builds the API server. Slow clients are cut off by the header and
// write timeouts; the per-request deadline is applied by the router.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
