package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "propie/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "internal_error", body["error"])
		_, ok := body["error_description"]
		assert.False(t, ok, "internal errors must not leak their message")
	})

	t.Run("invalid transition reports current and required status", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.InvalidTransition("reservation", "CONFIRMED", "PENDING"))

		require.Equal(t, http.StatusConflict, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "invalid_transition", body["error"])
		assert.Contains(t, body["error_description"], "CONFIRMED")
	})

	t.Run("status mapping", func(t *testing.T) {
		cases := map[dErrors.Code]int{
			dErrors.CodeValidation:          http.StatusBadRequest,
			dErrors.CodeForbidden:           http.StatusForbidden,
			dErrors.CodeNotFound:            http.StatusNotFound,
			dErrors.CodeConcurrencyConflict: http.StatusConflict,
			dErrors.CodeInsufficientBalance: http.StatusUnprocessableEntity,
		}
		for code, want := range cases {
			assert.Equal(t, want, StatusFor(code), string(code))
		}
	})
}

type sampleRequest struct {
	Amount string `json:"amount" validate:"required"`
	Days   int    `json:"days" validate:"gte=1,lte=365"`
}

func (r *sampleRequest) Validate() error {
	if strings.HasPrefix(r.Amount, "-") {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	decode := func(body string) (*sampleRequest, *httptest.ResponseRecorder, bool) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		w := httptest.NewRecorder()
		req, ok := DecodeAndPrepare[sampleRequest](w, r, logger, r.Context(), "req-1")
		return req, w, ok
	}

	t.Run("valid body", func(t *testing.T) {
		req, _, ok := decode(`{"amount":"500.00","days":7}`)
		require.True(t, ok)
		assert.Equal(t, 7, req.Days)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, w, ok := decode(`{"amount":`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("tag validation", func(t *testing.T) {
		_, w, ok := decode(`{"amount":"1","days":0}`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "days failed gte")
	})

	t.Run("custom validation", func(t *testing.T) {
		_, w, ok := decode(`{"amount":"-1","days":3}`)
		assert.False(t, ok)
		assert.Contains(t, w.Body.String(), "amount must be positive")
	})
}
