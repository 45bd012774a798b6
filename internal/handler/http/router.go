package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/health"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/middleware"
)

const serviceName = "order-fulfillment"

// NewRouter creates a chi router with the order endpoint, health checks and
// metrics registered.
func NewRouter(
	orderHandler *OrderHandler,
	healthHandler *health.Handler,
	cors middleware.CORSConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.RequestLogging(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.CORS(cors))
		r.MethodNotAllowed(orderHandler.MethodNotAllowed)

		r.Post("/", orderHandler.CreateOrder)
		r.Options("/", orderHandler.Preflight)
	})

	return r
}
