package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/crystalbeauty/pkg/errors"
	"github.com/utafrali/crystalbeauty/pkg/logger"
	"github.com/utafrali/crystalbeauty/pkg/validator"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusTeapot, map[string]int{"count": 2})

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())
}

func TestWriteData_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, []string{"SKU1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":["SKU1"]}`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"app error", apperrors.NotFound("product", "SKU1"), http.StatusNotFound, "NOT_FOUND", "product with id SKU1 not found"},
		{"login required", apperrors.LoginRequired(), http.StatusUnauthorized, "UNAUTHORIZED", "please log in to continue"},
		{"wrapped app error", fmt.Errorf("cart: %w", apperrors.InvalidInput("quantity must be at least 1")), http.StatusBadRequest, "INVALID_INPUT", "quantity must be at least 1"},
		{"sentinel not found", fmt.Errorf("load: %w", apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND", "resource not found"},
		{"sentinel unauthorized", apperrors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "please log in to continue"},
		{"sentinel unavailable", apperrors.ErrServiceUnavail, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service temporarily unavailable"},
		{"unknown error hidden", fmt.Errorf("redis: connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
			WriteError(rec, req, tt.err, logger.Discard())

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.msg, resp.Error.Message)
			assert.Nil(t, resp.Data)
		})
	}
}

func TestWriteError_RequestIDAndLogging(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("storefront-test", "info", &buf)

	ctx := logger.WithCorrelationID(context.Background(), "corr-42")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/orders", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	WriteError(rec, req, fmt.Errorf("backend exploded"), l)

	resp := decode(t, rec)
	assert.Equal(t, "corr-42", resp.Error.RequestID)
	assert.Contains(t, buf.String(), "backend exploded")
	assert.Contains(t, buf.String(), "/api/v1/checkout/orders")

	buf.Reset()
	WriteError(httptest.NewRecorder(), req, apperrors.NotFound("order", "1"), l)
	assert.Zero(t, buf.Len(), "client errors are not logged")
}

func TestWriteError_PrefersContextLogger(t *testing.T) {
	var ctxBuf, fallbackBuf bytes.Buffer
	ctxLogger := logger.NewWithWriter("ctx", "info", &ctxBuf)
	fallback := logger.NewWithWriter("fallback", "info", &fallbackBuf)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req = req.WithContext(logger.NewContext(req.Context(), ctxLogger))
	WriteError(httptest.NewRecorder(), req, fmt.Errorf("boom"), fallback)

	assert.NotZero(t, ctxBuf.Len())
	assert.Zero(t, fallbackBuf.Len())
}

func TestWriteValidationError(t *testing.T) {
	type body struct {
		ProductID string `json:"product_id" validate:"required"`
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wishlist", nil)

	rec := httptest.NewRecorder()
	WriteValidationError(rec, req, validator.Validate(body{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "is required", resp.Error.Fields["product_id"])

	rec = httptest.NewRecorder()
	WriteValidationError(rec, req, fmt.Errorf("decode request body: unexpected EOF"))
	resp = decode(t, rec)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "unexpected EOF")
}
