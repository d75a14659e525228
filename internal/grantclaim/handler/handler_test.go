package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propie/internal/grantclaim/service"
	"propie/internal/grantclaim/store"
	ledgersvc "propie/internal/ledger/service"
	ledgerstore "propie/internal/ledger/store"
	id "propie/pkg/domain"
	"propie/pkg/platform/tx"
	"propie/pkg/requestcontext"
)

const actorHeader = "X-Test-Actor"

type testActors struct {
	buyer     id.Actor
	developer id.Actor
}

func newClaimRouter(t *testing.T) (http.Handler, testActors) {
	t.Helper()
	runner := tx.NewMemoryRunner()
	ledger, err := ledgersvc.New(ledgerstore.NewInMemory(), ledgersvc.WithTxRunner(runner))
	require.NoError(t, err)
	svc, err := service.New(store.NewInMemory(), ledger, service.WithTxRunner(runner))
	require.NoError(t, err)

	actors := testActors{
		buyer:     id.Actor{ID: id.NewUserID(), Role: id.RoleBuyer},
		developer: id.Actor{ID: id.NewUserID(), Role: id.RoleDeveloper},
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			switch req.Header.Get(actorHeader) {
			case "buyer":
				ctx = requestcontext.WithActor(ctx, actors.buyer)
			case "developer":
				ctx = requestcontext.WithActor(ctx, actors.developer)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	New(svc, logger).Register(r)
	return r, actors
}

func do(t *testing.T, h http.Handler, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequestWithContext(context.Background(), method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(actorHeader, actor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) ResultResponse {
	t.Helper()
	var res ResultResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return res
}

func TestGrantClaimWorkflowOverHTTP(t *testing.T) {
	router, actors := newClaimRouter(t)

	rec := do(t, router, http.MethodPost, "/grant-claims", "buyer",
		map[string]any{"property_id": "PLOT-9", "requested_amount": "30000"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeResult(t, rec)
	assert.Equal(t, "INITIATED", created.Claim.Status)
	assert.Equal(t, actors.buyer.ID.String(), created.Claim.BuyerID)

	base := "/grant-claims/" + created.Claim.ID
	expiry := time.Now().Add(30 * 24 * time.Hour).UTC()

	rec = do(t, router, http.MethodPost, base+"/access-code", "buyer",
		map[string]any{"code": "AC-77", "expiry": expiry})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, base+"/access-code/submit", "buyer", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, base+"/access-code/decision", "buyer", map[string]any{"approve": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/access-code/decision", "developer", map[string]any{"approve": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decodeResult(t, rec)
	assert.Equal(t, "ACCESS_CODE_APPROVED", approved.Claim.Status)
	assert.Equal(t, actors.developer.ID.String(), approved.Claim.DeveloperID)

	rec = do(t, router, http.MethodPost, base+"/request-funds", "developer", map[string]any{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/claim-code", "developer", map[string]any{
		"code":            "CC-1",
		"expiry":          expiry,
		"approved_amount": "30000",
		"evidence":        map[string]any{"id": id.NewDocumentID().String(), "url": "https://docs.example.com/a.pdf"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	issued := decodeResult(t, rec)
	assert.Equal(t, "30000.00", issued.Claim.ApprovedAmount)
	assert.Len(t, issued.Claim.Documents, 1)

	rec = do(t, router, http.MethodPost, base+"/request-funds", "developer", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, base+"/history", "buyer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	require.Len(t, history.History, 6)
	assert.Nil(t, history.History[0].PreviousStatus)

	rec = do(t, router, http.MethodGet, "/grant-claims?status=FUNDS_REQUESTED", "developer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list.Claims, 1)
}

func TestGrantClaimRequestValidation(t *testing.T) {
	router, _ := newClaimRouter(t)

	tests := []struct {
		name   string
		actor  string
		path   string
		body   any
		status int
	}{
		{"unauthenticated", "", "/grant-claims", map[string]any{"property_id": "P", "requested_amount": "1"}, http.StatusUnauthorized},
		{"zero amount", "buyer", "/grant-claims", map[string]any{"property_id": "P", "requested_amount": "0"}, http.StatusBadRequest},
		{"unknown field", "buyer", "/grant-claims", map[string]any{"property_id": "P", "requested_amount": "1", "x": 1}, http.StatusBadRequest},
		{"bad claim id", "buyer", "/grant-claims/not-a-uuid/cancel", map[string]any{}, http.StatusBadRequest},
		{"missing claim", "buyer", "/grant-claims/" + id.NewClaimID().String() + "/cancel", map[string]any{}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, tt.path, tt.actor, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}
