package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/repository"
	apperrors "github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/errors"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/logger"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/timeout"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/tracing"
)

var tracer = tracing.Tracer("github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/service")

// TokenVerifier resolves a bearer token to the calling user.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.User, error)
}

// OrderEventPublisher announces created orders.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order, kitCodes []string) error
}

// OrderServiceDeps wires the components PlaceOrder sequences. Events and
// Idempotency are optional.
type OrderServiceDeps struct {
	Verifier      TokenVerifier
	Writer        *OrderWriter
	Coupons       *CouponLedger
	Inventory     *InventoryDecrementer
	Kits          *KitProvisioner
	Cart          *CartReconciler
	Notifications *NotificationDispatcher
	Events        OrderEventPublisher
	Idempotency   repository.IdempotencyStore

	IdempotencyTTL time.Duration
	StepTimeout    time.Duration
	Logger         *slog.Logger
}

// OrderService runs the order fulfillment workflow.
type OrderService struct {
	verifier       TokenVerifier
	writer         *OrderWriter
	coupons        *CouponLedger
	inventory      *InventoryDecrementer
	kits           *KitProvisioner
	cart           *CartReconciler
	notifications  *NotificationDispatcher
	events         OrderEventPublisher
	idempotency    repository.IdempotencyStore
	idempotencyTTL time.Duration
	stepTimeout    time.Duration
	logger         *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(deps OrderServiceDeps) *OrderService {
	return &OrderService{
		verifier:       deps.Verifier,
		writer:         deps.Writer,
		coupons:        deps.Coupons,
		inventory:      deps.Inventory,
		kits:           deps.Kits,
		cart:           deps.Cart,
		notifications:  deps.Notifications,
		events:         deps.Events,
		idempotency:    deps.Idempotency,
		idempotencyTTL: deps.IdempotencyTTL,
		stepTimeout:    deps.StepTimeout,
		logger:         deps.Logger,
	}
}

// PlaceOrderInput is one checkout submission.
type PlaceOrderInput struct {
	Request        *domain.OrderRequest
	Token          string
	IdempotencyKey string
}

// PlaceOrder validates and authenticates the request, writes the order and
// then runs every follow-up step. Only validation, authentication and the
// order write can fail the call; once the order exists the follow-up steps
// are logged and the result is always returned.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.PlaceOrderResult, error) {
	req := in.Request
	if req == nil {
		return nil, apperrors.InvalidInput("request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if in.Token == "" {
		return nil, apperrors.Unauthorized("Authorization required")
	}
	user, err := s.verifier.Verify(ctx, in.Token)
	if err != nil {
		s.log(ctx).WarnContext(ctx, "bearer token rejected", slog.String("error", err.Error()))
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}
	ctx = logger.WithUserID(ctx, user.ID)

	idemKey, replay, err := s.reserveIdempotencyKey(ctx, user.ID, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	if sum := req.ItemsSubtotal(); !sum.Equal(req.Subtotal) {
		s.log(ctx).WarnContext(ctx, "subtotal does not match order lines",
			slog.String("declared_subtotal", req.Subtotal.StringFixed(2)),
			slog.String("recalculated_subtotal", sum.StringFixed(2)),
		)
	}

	steps := &stepRecorder{}
	order, err := s.createOrder(ctx, steps, req, user.ID)
	if err != nil {
		s.releaseIdempotencyKey(ctx, idemKey)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Timeout("Request timed out", err)
		}
		return nil, apperrors.Internal("Failed to create order", err)
	}

	// The order is final from here on. Follow-up steps ignore request
	// cancellation but stay within the request deadline, each also bounded
	// by its own timeout.
	fctx, cancel := followUpContext(ctx)
	defer cancel()
	result := s.fulfill(fctx, steps, req, order)
	result.Steps = steps.list()

	s.completeIdempotencyKey(context.WithoutCancel(ctx), idemKey, result)

	s.log(ctx).InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("total_amount", order.TotalAmount.StringFixed(2)),
		slog.Bool("is_free_order", order.IsFreeOrder),
		slog.Any("steps", result.Steps),
	)
	return result, nil
}

// followUpContext detaches ctx from cancellation and keeps its deadline, so
// steps still running at the deadline are abandoned and the response goes out.
func followUpContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if dl, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, dl)
	}
	return detached, func() {}
}

func (s *OrderService) createOrder(ctx context.Context, steps *stepRecorder, req *domain.OrderRequest, userID string) (order *domain.Order, err error) {
	start := time.Now()
	ctx, end := tracing.StartSpan(ctx, tracer, "order."+domain.StepCreateOrder,
		attribute.Int("order.items", len(req.Items)),
	)
	defer func() { end(err) }()

	order, err = s.writer.Create(ctx, req, userID)
	steps.record(domain.StepCreateOrder, err, time.Since(start))
	if err != nil {
		s.log(ctx).ErrorContext(ctx, "order creation failed", slog.String("error", err.Error()))
		return nil, err
	}
	return order, nil
}

// fulfill runs the advisory steps. None of their failures escape.
func (s *OrderService) fulfill(ctx context.Context, steps *stepRecorder, req *domain.OrderRequest, order *domain.Order) *domain.PlaceOrderResult {
	result := &domain.PlaceOrderResult{Order: order}

	var g errgroup.Group
	g.Go(func() error {
		if !req.HasCouponRedemption() {
			steps.skip(domain.StepRecordCoupon)
			return nil
		}
		s.runStep(ctx, steps, order.ID, domain.StepRecordCoupon, func(ctx context.Context) error {
			return s.coupons.Record(ctx, &domain.CouponRedemption{
				CouponID:       req.CouponID,
				UserID:         order.UserID,
				OrderID:        order.ID,
				DiscountAmount: req.DiscountAmount,
			})
		})
		return nil
	})
	g.Go(func() error {
		s.runStep(ctx, steps, order.ID, domain.StepReduceInventory, func(ctx context.Context) error {
			_, err := s.inventory.Reduce(ctx, order.Items)
			return err
		})
		return nil
	})
	_ = g.Wait()

	s.runStep(ctx, steps, order.ID, domain.StepProvisionKits, func(ctx context.Context) error {
		regs, err := s.kits.Provision(ctx, order.ID)
		if err != nil {
			return err
		}
		result.KitCodes = regs.KitCodes
		return nil
	})

	s.runStep(ctx, steps, order.ID, domain.StepClearCart, func(ctx context.Context) error {
		res, err := s.cart.Clear(ctx, order.UserID)
		if err != nil {
			return err
		}
		result.Cart = res
		return nil
	})

	if s.events != nil {
		s.runStep(ctx, steps, order.ID, domain.StepPublishEvent, func(ctx context.Context) error {
			return timeout.Run(ctx, "publish order.created", s.stepTimeout, func(ctx context.Context) error {
				return s.events.PublishOrderCreated(ctx, order, result.KitCodes)
			})
		})
	} else {
		steps.skip(domain.StepPublishEvent)
	}

	dispatched := s.notifications.Dispatch(ctx, OrderNotification{
		Order:    order,
		Request:  req,
		KitCodes: result.KitCodes,
	})
	if dispatched {
		steps.add(domain.WorkflowStep{Name: domain.StepNotify, Status: domain.StepDispatched})
		workflowSteps.WithLabelValues(domain.StepNotify, domain.StepDispatched).Inc()
	} else {
		steps.skip(domain.StepNotify)
	}

	return result
}

// runStep runs one advisory step inside its own span. A failure is logged
// with the order id and recorded, never returned.
func (s *OrderService) runStep(ctx context.Context, steps *stepRecorder, orderID, name string, fn func(context.Context) error) {
	start := time.Now()
	sctx, end := tracing.StartSpan(ctx, tracer, "order."+name, attribute.String("order.id", orderID))
	err := fn(sctx)
	end(err)
	steps.record(name, err, time.Since(start))

	if err != nil {
		attrs := []any{
			slog.String("order_id", orderID),
			slog.String("step", name),
			slog.String("error", err.Error()),
		}
		if kits := FailedKits(err); len(kits) > 0 {
			attrs = append(attrs, slog.Any("failed_kits", kits))
		}
		s.log(ctx).ErrorContext(ctx, "order follow-up step failed", attrs...)
	}
}

func (s *OrderService) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}

// reserveIdempotencyKey returns the scoped key when this request now owns
// it, or a stored result to replay. Store failures fall back to running
// without a key.
func (s *OrderService) reserveIdempotencyKey(ctx context.Context, userID, key string) (string, *domain.PlaceOrderResult, error) {
	if key == "" || s.idempotency == nil {
		return "", nil, nil
	}
	scoped := userID + ":" + key

	data, err := s.idempotency.Reserve(ctx, scoped, s.idempotencyTTL)
	switch {
	case errors.Is(err, repository.ErrIdempotencyInFlight):
		return "", nil, apperrors.Conflict("A request with this Idempotency-Key is already in progress")
	case err != nil:
		s.log(ctx).WarnContext(ctx, "idempotency store unavailable, continuing without key",
			slog.String("error", err.Error()),
		)
		return "", nil, nil
	case data == nil:
		return scoped, nil, nil
	}

	var stored domain.PlaceOrderResult
	if err := json.Unmarshal(data, &stored); err != nil || stored.Order == nil {
		s.log(ctx).WarnContext(ctx, "unreadable idempotent result, continuing without key",
			slog.Any("error", err),
		)
		return "", nil, nil
	}
	stored.Replayed = true
	s.log(ctx).InfoContext(ctx, "replaying idempotent order result",
		slog.String("order_id", stored.Order.ID),
	)
	return "", &stored, nil
}

func (s *OrderService) completeIdempotencyKey(ctx context.Context, key string, result *domain.PlaceOrderResult) {
	if key == "" {
		return
	}
	data, err := json.Marshal(result)
	if err == nil {
		err = s.idempotency.Complete(ctx, key, data, s.idempotencyTTL)
	}
	if err != nil {
		s.log(ctx).WarnContext(ctx, "failed to store idempotent result, releasing key",
			slog.String("order_id", result.Order.ID),
			slog.String("error", err.Error()),
		)
		s.releaseIdempotencyKey(ctx, key)
	}
}

func (s *OrderService) releaseIdempotencyKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idempotency.Release(context.WithoutCancel(ctx), key); err != nil {
		s.log(ctx).WarnContext(ctx, "failed to release idempotency key", slog.String("error", err.Error()))
	}
}

// WaitForNotifications blocks until detached email sends finish or ctx ends.
func (s *OrderService) WaitForNotifications(ctx context.Context) error {
	return s.notifications.Wait(ctx)
}

// stepRecorder collects step outcomes. Coupon and inventory record
// concurrently.
type stepRecorder struct {
	mu    sync.Mutex
	steps []domain.WorkflowStep
}

func (r *stepRecorder) record(name string, err error, d time.Duration) {
	step := domain.WorkflowStep{Name: name, Status: domain.StepCompleted, Duration: d}
	if err != nil {
		step.Status = domain.StepFailed
		step.Error = err.Error()
	}
	workflowSteps.WithLabelValues(name, step.Status).Inc()
	r.add(step)
}

func (r *stepRecorder) skip(name string) {
	workflowSteps.WithLabelValues(name, domain.StepSkipped).Inc()
	r.add(domain.WorkflowStep{Name: name, Status: domain.StepSkipped})
}

func (r *stepRecorder) add(step domain.WorkflowStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *stepRecorder) list() []domain.WorkflowStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.WorkflowStep(nil), r.steps...)
}
