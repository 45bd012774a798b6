package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/errors"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func requestWithID(method, id string) *http.Request {
	req := httptest.NewRequest(method, "/orders", nil)
	return req.WithContext(logger.WithRequestID(req.Context(), id))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// --- WriteJSON ---

func TestWriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]bool{"success": true})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

// --- WriteError ---

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, requestWithID(http.MethodPost, "req-1"), apperrors.Unauthorized("Authorization required"), testLogger())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "Authorization required", resp.Error)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Empty(t, resp.Errors)
}

func TestWriteError_AppErrorWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := apperrors.ValidationFailed([]string{"payment_reference is required"})
	WriteError(rec, requestWithID(http.MethodPost, "req-2"), err, testLogger())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "Validation failed", resp.Error)
	assert.Equal(t, []string{"payment_reference is required"}, resp.Errors)
}

func TestWriteError_WrappedInternalKeepsMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("place order: %w", apperrors.Internal("Failed to create order", fmt.Errorf("db down")))
	WriteError(rec, requestWithID(http.MethodPost, "req-3"), err, testLogger())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "Failed to create order", resp.Error)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestWriteError_Sentinels(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"timeout", fmt.Errorf("op: %w", apperrors.ErrTimeout), http.StatusGatewayTimeout, "Request timed out"},
		{"conflict", apperrors.ErrConflict, http.StatusConflict, "Conflict"},
		{"unknown", fmt.Errorf("something unexpected"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, requestWithID(http.MethodPost, "req"), tt.err, testLogger())

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec).Error)
		})
	}
}

func TestWriteError_PrefersContextLogger(t *testing.T) {
	var buf safeBuffer
	ctxLogger := slog.New(slog.NewJSONHandler(&buf, nil))
	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req = req.WithContext(logger.NewContext(context.Background(), ctxLogger))

	rec := httptest.NewRecorder()
	WriteError(rec, req, fmt.Errorf("boom"), testLogger())

	assert.Contains(t, buf.String(), "request failed")
}

// --- MethodNotAllowed ---

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	MethodNotAllowed(rec, requestWithID(http.MethodGet, "req-6"), "POST, OPTIONS")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Allow"))
	assert.Equal(t, "req-6", decode(t, rec).RequestID)
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
