package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/auth"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/service"
	apperrors "github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/errors"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/httputil"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/logger"
)

// IdempotencyKeyHeader lets a client retry a checkout without creating a
// second order.
const IdempotencyKeyHeader = "Idempotency-Key"

const allowedMethods = "POST, OPTIONS"

// OrderPlacer runs the order workflow.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*domain.PlaceOrderResult, error)
}

// OrderHandler handles HTTP requests for the order endpoint.
type OrderHandler struct {
	service        OrderPlacer
	requestTimeout time.Duration
	logger         *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler. A non-positive
// requestTimeout leaves the request deadline to the server.
func NewOrderHandler(svc OrderPlacer, requestTimeout time.Duration, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service:        svc,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// --- Response DTOs ---

// OrderSummary is the order as returned to the checkout page. Amounts are
// JSON numbers, matching the request.
type OrderSummary struct {
	ID             string      `json:"id"`
	OrderNumber    string      `json:"order_number"`
	Status         string      `json:"status"`
	PaymentStatus  string      `json:"payment_status"`
	TotalAmount    json.Number `json:"total_amount"`
	DiscountAmount json.Number `json:"discount_amount"`
	CouponCode     string      `json:"coupon_code,omitempty"`
	IsFreeOrder    bool        `json:"is_free_order"`
	CreatedAt      time.Time   `json:"created_at"`
}

// CreateOrderResponse is the 200 body of a placed order.
type CreateOrderResponse struct {
	Success          bool               `json:"success"`
	Order            OrderSummary       `json:"order"`
	GTMPurchaseData  domain.GTMPurchase `json:"gtm_purchase_data"`
	Message          string             `json:"message"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
	RequestID        string             `json:"request_id"`
}

// --- Handlers ---

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("Invalid JSON in request body"), h.logger)
		return
	}

	ctx := r.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	result, err := h.service.PlaceOrder(ctx, service.PlaceOrderInput{
		Request:        &req,
		Token:          auth.BearerToken(r.Header.Get("Authorization")),
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if result.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	httputil.WriteJSON(w, http.StatusOK, newCreateOrderResponse(r, result, time.Since(start)))
}

// Preflight handles OPTIONS /api/v1/orders. CORS headers are already set
// by the middleware.
func (h *OrderHandler) Preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// MethodNotAllowed answers every other method on the order endpoint.
func (h *OrderHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.MethodNotAllowed(w, r, allowedMethods)
}

func newCreateOrderResponse(r *http.Request, result *domain.PlaceOrderResult, elapsed time.Duration) CreateOrderResponse {
	o := result.Order
	message := "Order created successfully"
	if o.IsFreeOrder {
		message = "Free order created successfully"
	}
	return CreateOrderResponse{
		Success: true,
		Order: OrderSummary{
			ID:             o.ID,
			OrderNumber:    o.OrderNumber,
			Status:         o.Status,
			PaymentStatus:  o.PaymentStatus,
			TotalAmount:    amount(o.TotalAmount),
			DiscountAmount: amount(o.DiscountAmount),
			CouponCode:     o.CouponCode,
			IsFreeOrder:    o.IsFreeOrder,
			CreatedAt:      o.CreatedAt,
		},
		GTMPurchaseData:  domain.NewGTMPurchase(o),
		Message:          message,
		ProcessingTimeMs: elapsed.Milliseconds(),
		RequestID:        logger.RequestIDFromContext(r.Context()),
	}
}

func amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
