package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/errors"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/logger"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Success   bool     `json:"success"`
	Error     string   `json:"error"`
	Errors    []string `json:"errors,omitempty"`
	RequestID string   `json:"request_id"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorResponse derived from err. AppErrors keep their
// status, message and detail list; anything else is reported by sentinel
// class with a generic message so internals never leak to the caller.
// It prefers the request-scoped logger from context over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.RequestIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logInternal(r, l, err)
		}
		WriteJSON(w, appErr.Status, ErrorResponse{
			Error:     appErr.Message,
			Errors:    appErr.Details,
			RequestID: requestID,
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	message := "Internal server error"
	switch status {
	case http.StatusBadRequest:
		message = err.Error()
	case http.StatusUnauthorized:
		message = "Unauthorized"
	case http.StatusNotFound:
		message = "Not found"
	case http.StatusConflict:
		message = "Conflict"
	case http.StatusGatewayTimeout:
		message = "Request timed out"
	case http.StatusServiceUnavailable:
		message = "Service unavailable"
	}

	if status >= http.StatusInternalServerError {
		logInternal(r, l, err)
	}

	WriteJSON(w, status, ErrorResponse{Error: message, RequestID: requestID})
}

func logInternal(r *http.Request, l *slog.Logger, err error) {
	l.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}

// MethodNotAllowed writes a 405 with the Allow header set.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	w.Header().Set("Allow", allow)
	WriteJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:     "Method not allowed",
		RequestID: logger.RequestIDFromContext(r.Context()),
	})
}
