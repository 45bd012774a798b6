package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/httputil"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/logger"
)

// Recovery turns a panic in the handler chain into a 500 response.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{
					Error:     "Internal server error",
					RequestID: logger.RequestIDFromContext(r.Context()),
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
