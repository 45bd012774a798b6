package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/database"
	apperrors "github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/errors"
)

// reduce_stock locks the kit row, subtracts the quantity and returns the
// new level in one statement.
const reduceStockSQL = `SELECT kit_id, remaining_quantity FROM reduce_stock($1, $2)`

// InventoryRepository implements repository.InventoryRepository using PostgreSQL.
type InventoryRepository struct {
	pool database.DBTX
}

// NewInventoryRepository creates a new PostgreSQL-backed inventory repository.
func NewInventoryRepository(pool database.DBTX) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// ReduceStock subtracts quantity from kitID and returns the remaining level.
func (r *InventoryRepository) ReduceStock(ctx context.Context, kitID string, quantity int) (_ *domain.StockLevel, err error) {
	ctx, end := database.TraceQuery(ctx, "ReduceStock", reduceStockSQL)
	defer func() { end(err) }()

	var level domain.StockLevel
	err = r.pool.QueryRow(ctx, reduceStockSQL, kitID, quantity).
		Scan(&level.KitID, &level.RemainingQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("kit", kitID)
		}
		return nil, fmt.Errorf("reduce stock for kit %s by %d: %w", kitID, quantity, err)
	}
	return &level, nil
}
