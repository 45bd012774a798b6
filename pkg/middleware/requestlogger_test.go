package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/logger"
)

func TestRequestLogger_EnrichesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logger.NewWithWriter("order-service", "info", &buf)

	h := RequestID(RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).InfoContext(r.Context(), "handler log")
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set(RequestIDHeader, "req-enrich")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "handler log", line["msg"])
	assert.Equal(t, "req-enrich", line["request_id"])
	assert.Equal(t, "order-service", line["service"])
}

func TestRequestLogger_WithTracingAddsTraceIDs(t *testing.T) {
	setupTracer(t)

	var buf bytes.Buffer
	base := logger.NewWithWriter("order-service", "info", &buf)

	h := Tracing("order-service")(RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("traced")
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/orders", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotEmpty(t, line["trace_id"])
	assert.NotEmpty(t, line["span_id"])
}
