package postgres

import (
	"context"
	"fmt"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/database"
)

const (
	deleteUserCartItemsSQL = `SELECT delete_user_cart_items($1)`
	findCartIDsSQL         = `SELECT id FROM carts WHERE user_id = $1`
	deleteCartItemsSQL     = `DELETE FROM cart_items WHERE cart_id = ANY($1)`
	deleteCartsSQL         = `DELETE FROM carts WHERE user_id = $1`
)

// CartRepository implements repository.CartRepository using PostgreSQL.
type CartRepository struct {
	pool database.DBTX
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool database.DBTX) *CartRepository {
	return &CartRepository{pool: pool}
}

// DeleteUserCartItems empties the user's cart through the server-side function.
func (r *CartRepository) DeleteUserCartItems(ctx context.Context, userID string) (_ int64, err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteUserCartItems", deleteUserCartItemsSQL)
	defer func() { end(err) }()

	var deleted int64
	if err = r.pool.QueryRow(ctx, deleteUserCartItemsSQL, userID).Scan(&deleted); err != nil {
		return 0, fmt.Errorf("delete_user_cart_items: %w", err)
	}
	return deleted, nil
}

// FindCartIDs returns the ids of every cart owned by userID.
func (r *CartRepository) FindCartIDs(ctx context.Context, userID string) (_ []string, err error) {
	ctx, end := database.TraceQuery(ctx, "FindCartIDs", findCartIDsSQL)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, findCartIDsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("find carts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan cart id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate carts: %w", err)
	}
	return ids, nil
}

// DeleteCartItems removes every item that belongs to one of cartIDs.
func (r *CartRepository) DeleteCartItems(ctx context.Context, cartIDs []string) (_ int64, err error) {
	if len(cartIDs) == 0 {
		return 0, nil
	}

	ctx, end := database.TraceQuery(ctx, "DeleteCartItems", deleteCartItemsSQL)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, deleteCartItemsSQL, cartIDs)
	if err != nil {
		return 0, fmt.Errorf("delete cart items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteCarts removes the user's cart rows. Items go with them.
func (r *CartRepository) DeleteCarts(ctx context.Context, userID string) (_ int64, err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteCarts", deleteCartsSQL)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, deleteCartsSQL, userID)
	if err != nil {
		return 0, fmt.Errorf("delete carts: %w", err)
	}
	return tag.RowsAffected(), nil
}
