package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/repository"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/timeout"
)

// CouponLedger records coupon redemptions and usage counts.
type CouponLedger struct {
	repo    repository.CouponRepository
	timeout time.Duration
}

// NewCouponLedger creates a new CouponLedger. stepTimeout bounds each statement.
func NewCouponLedger(repo repository.CouponRepository, stepTimeout time.Duration) *CouponLedger {
	return &CouponLedger{repo: repo, timeout: stepTimeout}
}

// Record appends the redemption and then increments the coupon's usage
// counter. The counter is left alone when the redemption insert fails.
func (l *CouponLedger) Record(ctx context.Context, r *domain.CouponRedemption) error {
	err := timeout.Run(ctx, "insert coupon redemption", l.timeout, func(ctx context.Context) error {
		return l.repo.CreateRedemption(ctx, r)
	})
	if err != nil {
		return fmt.Errorf("record redemption of coupon %s: %w", r.CouponID, err)
	}

	err = timeout.Run(ctx, "increment coupon usage", l.timeout, func(ctx context.Context) error {
		return l.repo.IncrementUsage(ctx, r.CouponID)
	})
	if err != nil {
		return fmt.Errorf("increment usage of coupon %s: %w", r.CouponID, err)
	}
	return nil
}
