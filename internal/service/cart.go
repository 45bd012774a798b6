package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/repository"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/timeout"
)

// CartClearer is one way of emptying a user's cart.
type CartClearer interface {
	// Method names the strategy in results, logs and metrics.
	Method() string

	// ClearCart empties the cart and returns how many rows it removed.
	ClearCart(ctx context.Context, userID string) (int64, error)
}

// rpcClearer calls the atomic delete_user_cart_items function.
type rpcClearer struct{ repo repository.CartRepository }

func (c rpcClearer) Method() string { return domain.CartMethodRPC }

func (c rpcClearer) ClearCart(ctx context.Context, userID string) (int64, error) {
	return c.repo.DeleteUserCartItems(ctx, userID)
}

// directDeleteClearer deletes cart_items rows for the user's carts. A user
// without a cart has nothing to clear.
type directDeleteClearer struct{ repo repository.CartRepository }

func (c directDeleteClearer) Method() string { return domain.CartMethodDirectDelete }

func (c directDeleteClearer) ClearCart(ctx context.Context, userID string) (int64, error) {
	ids, err := c.repo.FindCartIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return c.repo.DeleteCartItems(ctx, ids)
}

// nuclearClearer deletes the cart rows themselves.
type nuclearClearer struct{ repo repository.CartRepository }

func (c nuclearClearer) Method() string { return domain.CartMethodNuclear }

func (c nuclearClearer) ClearCart(ctx context.Context, userID string) (int64, error) {
	return c.repo.DeleteCarts(ctx, userID)
}

// DefaultCartClearers returns the three strategies from least to most invasive.
func DefaultCartClearers(repo repository.CartRepository) []CartClearer {
	return []CartClearer{
		rpcClearer{repo: repo},
		directDeleteClearer{repo: repo},
		nuclearClearer{repo: repo},
	}
}

// CartClearAttempt is one failed strategy.
type CartClearAttempt struct {
	Method string
	Err    error
}

// CartClearError is returned when every strategy failed.
type CartClearError struct {
	Attempts []CartClearAttempt
}

func (e *CartClearError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Method, a.Err)
	}
	return "all cart clearing methods failed: " + strings.Join(parts, "; ")
}

func (e *CartClearError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}

// CartReconciler empties a user's cart by trying each strategy in order
// until one succeeds.
type CartReconciler struct {
	clearers []CartClearer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewCartReconciler creates a new CartReconciler.
func NewCartReconciler(clearers []CartClearer, stepTimeout time.Duration, logger *slog.Logger) *CartReconciler {
	return &CartReconciler{clearers: clearers, timeout: stepTimeout, logger: logger}
}

// Clear empties userID's cart. It returns the method that succeeded, or a
// *CartClearError carrying every strategy's failure.
func (r *CartReconciler) Clear(ctx context.Context, userID string) (*domain.CartClearResult, error) {
	var attempts []CartClearAttempt
	for _, c := range r.clearers {
		method := c.Method()
		n, err := timeout.Do(ctx, "clear cart ("+method+")", r.timeout, func(ctx context.Context) (int64, error) {
			return c.ClearCart(ctx, userID)
		})
		if err == nil {
			cartClears.WithLabelValues(method).Inc()
			return &domain.CartClearResult{Method: method, ItemsCleared: n}, nil
		}

		attempts = append(attempts, CartClearAttempt{Method: method, Err: err})
		r.logger.WarnContext(ctx, "cart clearing method failed",
			slog.String("user_id", userID),
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
	}

	cartClears.WithLabelValues("failed").Inc()
	return nil, &CartClearError{Attempts: attempts}
}
