package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"propie/internal/platform/config"
)

func TestNew(t *testing.T) {
	handler := http.NotFoundHandler()
	srv := New(config.Server{
		Addr:              ":9000",
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      2 * time.Second,
		IdleTimeout:       3 * time.Second,
	}, handler)

	assert.Equal(t, ":9000", srv.Addr)
	assert.Equal(t, time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 2*time.Second, srv.WriteTimeout)
	assert.Equal(t, 3*time.Second, srv.IdleTimeout)
	assert.NotNil(t, srv.Handler)
}
