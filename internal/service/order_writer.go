package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/repository"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/timeout"
)

// OrderWriterConfig bounds the order write.
type OrderWriterConfig struct {
	MaxAttempts   int
	InsertTimeout time.Duration
	ItemsTimeout  time.Duration
	Currency      string
}

// OrderWriter creates an order header and its items as one unit. When the
// items insert fails the header is deleted again, and the whole attempt is
// retried with linear backoff.
type OrderWriter struct {
	repo   repository.OrderRepository
	cfg    OrderWriterConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewOrderWriter creates a new OrderWriter. MaxAttempts below 1 means 1.
func NewOrderWriter(repo repository.OrderRepository, cfg OrderWriterConfig, logger *slog.Logger) *OrderWriter {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &OrderWriter{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Create writes the order for req on behalf of userID. It returns the
// persisted order with store-assigned fields, or the last attempt's error
// once every attempt has failed.
func (w *OrderWriter) Create(ctx context.Context, req *domain.OrderRequest, userID string) (*domain.Order, error) {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		order, err := w.attempt(ctx, req, userID)
		if err == nil {
			orderCreateAttempts.WithLabelValues("success").Inc()
			if attempt > 1 {
				w.logger.InfoContext(ctx, "order created after retry",
					slog.String("order_id", order.ID),
					slog.Int("attempt", attempt),
				)
			}
			return order, nil
		}

		orderCreateAttempts.WithLabelValues("failure").Inc()
		lastErr = err
		w.logger.WarnContext(ctx, "order create attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", w.cfg.MaxAttempts),
			slog.String("error", err.Error()),
		)

		if attempt == w.cfg.MaxAttempts {
			break
		}
		if err := w.sleep(ctx, retryBackoff(attempt)); err != nil {
			return nil, fmt.Errorf("create order: %w (last attempt: %v)", err, lastErr)
		}
	}
	return nil, fmt.Errorf("create order failed after %d attempts: %w", w.cfg.MaxAttempts, lastErr)
}

func (w *OrderWriter) attempt(ctx context.Context, req *domain.OrderRequest, userID string) (*domain.Order, error) {
	order := domain.NewOrder(req, userID, w.cfg.Currency)

	err := timeout.Run(ctx, "insert order", w.cfg.InsertTimeout, func(ctx context.Context) error {
		return w.repo.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, fmt.Errorf("insert order header: %w", err)
	}

	items := domain.BuildItems(order.ID, req.Items)
	err = timeout.Run(ctx, "insert order items", w.cfg.ItemsTimeout, func(ctx context.Context) error {
		return w.repo.CreateItems(ctx, items)
	})
	if err != nil {
		w.compensate(ctx, order.ID, err)
		return nil, fmt.Errorf("insert order items: %w", err)
	}

	order.Items = items
	return order, nil
}

// compensate deletes a header whose items could not be written. It runs
// detached from the request deadline so an expiring request still cleans up.
func (w *OrderWriter) compensate(ctx context.Context, orderID string, cause error) {
	cctx := context.WithoutCancel(ctx)
	err := timeout.Run(cctx, "delete order", w.cfg.InsertTimeout, func(ctx context.Context) error {
		return w.repo.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to delete order header after items insert failed",
			slog.String("order_id", orderID),
			slog.String("items_error", cause.Error()),
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.WarnContext(ctx, "deleted order header after items insert failed",
		slog.String("order_id", orderID),
		slog.String("items_error", cause.Error()),
	)
}

// retryBackoff is min(1000·attempt, 2000) milliseconds.
func retryBackoff(attempt int) time.Duration {
	return min(time.Duration(attempt)*time.Second, 2*time.Second)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
