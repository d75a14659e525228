package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"propie/internal/expiry"
	jwttoken "propie/internal/jwt_token"
	ledgersvc "propie/internal/ledger/service"
	ledgerstore "propie/internal/ledger/store"
	reservationhandler "propie/internal/reservation/handler"
	reservationsvc "propie/internal/reservation/service"
	reservationstore "propie/internal/reservation/store"
	id "propie/pkg/domain"
	"propie/pkg/platform/tx"
)

type fakeExpiry struct {
	calls int
	now   time.Time
	err   error
}

func (f *fakeExpiry) RunOnce(_ context.Context, now time.Time) (expiry.Report, error) {
	f.calls++
	f.now = now
	if f.err != nil {
		return expiry.Report{}, f.err
	}
	report := expiry.Report{Now: now}
	report.Reservations.Expired = 2
	return report, nil
}

type RouterSuite struct {
	suite.Suite
	jwt    *jwttoken.JWTService
	expiry *fakeExpiry
	health error
	router http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.jwt = jwttoken.NewJWTService("test-secret", "propie-auth", "propie-transactions")
	s.expiry = &fakeExpiry{}
	s.health = nil

	runner := tx.NewMemoryRunner()
	ledger, err := ledgersvc.New(ledgerstore.NewInMemory(), ledgersvc.WithTxRunner(runner))
	s.Require().NoError(err)
	reservations, err := reservationsvc.New(reservationstore.NewInMemory(), ledger, reservationsvc.WithTxRunner(runner))
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = NewRouter(RouterConfig{
		Logger:    logger,
		Validator: jwttoken.NewAdapter(s.jwt),
		Modules:   []Registrar{reservationhandler.New(reservations, logger)},
		Expiry:    s.expiry,
		Health: []HealthCheck{{Name: "database", Check: func(context.Context) error {
			return s.health
		}}},
	})
}

func (s *RouterSuite) token(role id.Role) string {
	token, err := s.jwt.GenerateToken(id.NewUserID(), role, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *RouterSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) TestHealth() {
	s.Run("healthy", func() {
		rec := s.do(http.MethodGet, "/health", "", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"database":"ok"`)
		s.NotEmpty(rec.Header().Get("X-Request-ID"))
	})

	s.Run("failing dependency", func() {
		s.health = errors.New("connection refused")
		rec := s.do(http.MethodGet, "/health", "", nil)
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.Contains(rec.Body.String(), "connection refused")
	})
}

func (s *RouterSuite) TestMetricsIsPublic() {
	rec := s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestAPIRequiresToken() {
	rec := s.do(http.MethodGet, "/v1/reservations", "", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/v1/reservations", "not-a-jwt", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterSuite) TestReservationsMountedUnderV1() {
	rec := s.do(http.MethodPost, "/v1/reservations", s.token(id.RoleBuyer), map[string]any{
		"property_id": "P-router",
		"type":        "TEMPORARY_HOLD",
		"fee_amount":  "250",
		"buyer":       map[string]any{"name": "Ada Lovelace", "email": "ada@example.com"},
		"property":    map[string]any{"name": "Plot 7", "address": "1 Mill Lane", "price": "300000"},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.True(strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))

	rec = s.do(http.MethodGet, "/reservations", s.token(id.RoleBuyer), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterSuite) TestAdminExpiryRun() {
	s.Run("admins trigger a sweep", func() {
		rec := s.do(http.MethodPost, "/v1/admin/expiry/run", s.token(id.RoleAdmin), nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal(1, s.expiry.calls)
		s.False(s.expiry.now.IsZero())

		var report expiry.Report
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &report))
		s.Equal(2, report.Reservations.Expired)
	})

	s.Run("other roles are refused", func() {
		calls := s.expiry.calls
		for _, role := range []id.Role{id.RoleBuyer, id.RoleDeveloper} {
			rec := s.do(http.MethodPost, "/v1/admin/expiry/run", s.token(role), nil)
			s.Equal(http.StatusForbidden, rec.Code)
		}
		s.Equal(calls, s.expiry.calls)
	})

	s.Run("sweep failure hides internals", func() {
		s.expiry.err = errors.New("pq: connection reset")
		defer func() { s.expiry.err = nil }()
		rec := s.do(http.MethodPost, "/v1/admin/expiry/run", s.token(id.RoleAdmin), nil)
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(rec.Body.String(), "pq:")
	})
}

func TestUnknownRouteStillGetsRequestID(t *testing.T) {
	r := NewRouter(RouterConfig{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
