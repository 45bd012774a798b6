package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
)

// OrderRepository persists order headers and lines. The two inserts are
// separate statements; callers compensate with DeleteOrder when the item
// insert fails.
type OrderRepository interface {
	// CreateOrder inserts the header and fills in ID, OrderNumber and CreatedAt.
	CreateOrder(ctx context.Context, o *domain.Order) error

	// CreateItems inserts all lines in one batch and fills in their IDs.
	CreateItems(ctx context.Context, items []domain.OrderItem) error

	// DeleteOrder removes a header. Deleting a missing order is not an error.
	DeleteOrder(ctx context.Context, orderID string) error
}

// CouponRepository records coupon usage.
type CouponRepository interface {
	CreateRedemption(ctx context.Context, r *domain.CouponRedemption) error
	IncrementUsage(ctx context.Context, couponID string) error
}

// InventoryRepository wraps the atomic stock reduction function.
type InventoryRepository interface {
	ReduceStock(ctx context.Context, kitID string, quantity int) (*domain.StockLevel, error)
}

// KitRepository wraps the bulk kit registration function.
type KitRepository interface {
	CreateKitRegistrations(ctx context.Context, orderID string) (*domain.KitRegistrations, error)
}

// CartRepository exposes the three ways of emptying a user's cart.
type CartRepository interface {
	// DeleteUserCartItems calls the server-side function and returns the
	// number of items removed.
	DeleteUserCartItems(ctx context.Context, userID string) (int64, error)

	// FindCartIDs lists the user's cart ids.
	FindCartIDs(ctx context.Context, userID string) ([]string, error)

	// DeleteCartItems removes every item in the given carts.
	DeleteCartItems(ctx context.Context, cartIDs []string) (int64, error)

	// DeleteCarts removes the user's cart rows, and with them their items.
	DeleteCarts(ctx context.Context, userID string) (int64, error)
}

// ErrIdempotencyInFlight is returned by Reserve when the key is held by a
// request that has not finished.
var ErrIdempotencyInFlight = errors.New("idempotency key in flight")

// IdempotencyStore remembers completed order results per Idempotency-Key.
type IdempotencyStore interface {
	// Reserve claims key for ttl. It returns the stored result when the key
	// already completed, ErrIdempotencyInFlight when it is held, or
	// (nil, nil) when the caller now owns the key.
	Reserve(ctx context.Context, key string, ttl time.Duration) ([]byte, error)

	// Complete stores the result for a reserved key.
	Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error

	// Release drops a reservation so the key can be retried.
	Release(ctx context.Context, key string) error
}
