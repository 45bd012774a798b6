package postgres

import (
	"context"
	"fmt"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/database"
)

const insertRedemptionSQL = `
	INSERT INTO coupon_usage (coupon_id, user_id, order_id, discount_amount)
	VALUES ($1, $2, $3, $4)
	RETURNING used_at`

const incrementCouponUsageSQL = `SELECT increment_coupon_usage($1)`

// CouponRepository implements repository.CouponRepository using PostgreSQL.
type CouponRepository struct {
	pool database.DBTX
}

// NewCouponRepository creates a new PostgreSQL-backed coupon repository.
func NewCouponRepository(pool database.DBTX) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// CreateRedemption appends a usage row and sets RedeemedAt.
func (r *CouponRepository) CreateRedemption(ctx context.Context, red *domain.CouponRedemption) (err error) {
	ctx, end := database.TraceQuery(ctx, "InsertCouponRedemption", insertRedemptionSQL)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, insertRedemptionSQL,
		red.CouponID,
		red.UserID,
		red.OrderID,
		red.DiscountAmount,
	).Scan(&red.RedeemedAt)
	if err != nil {
		return fmt.Errorf("insert coupon redemption: %w", err)
	}
	return nil
}

// IncrementUsage bumps the coupon's usage counter through the server-side function.
func (r *CouponRepository) IncrementUsage(ctx context.Context, couponID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "IncrementCouponUsage", incrementCouponUsageSQL)
	defer func() { end(err) }()

	if _, err = r.pool.Exec(ctx, incrementCouponUsageSQL, couponID); err != nil {
		return fmt.Errorf("increment usage of coupon %s: %w", couponID, err)
	}
	return nil
}
