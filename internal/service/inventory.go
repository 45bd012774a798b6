package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/repository"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/timeout"
)

// StockReductionError is one item whose stock could not be reduced.
type StockReductionError struct {
	KitID    string
	Quantity int
	Err      error
}

func (e *StockReductionError) Error() string {
	return fmt.Sprintf("kit %s (qty %d): %v", e.KitID, e.Quantity, e.Err)
}

func (e *StockReductionError) Unwrap() error {
	return e.Err
}

// InventoryError reports the items that failed in one Reduce call. The
// remaining items were reduced.
type InventoryError struct {
	Items []*StockReductionError
	Total int
}

func (e *InventoryError) Error() string {
	msgs := make([]string, len(e.Items))
	for i, it := range e.Items {
		msgs[i] = it.Error()
	}
	return fmt.Sprintf("stock reduction failed for %d of %d items: %s",
		len(e.Items), e.Total, strings.Join(msgs, "; "))
}

func (e *InventoryError) Unwrap() []error {
	errs := make([]error, len(e.Items))
	for i, it := range e.Items {
		errs[i] = it
	}
	return errs
}

// InventoryDecrementer reduces stock for every order line concurrently.
type InventoryDecrementer struct {
	repo    repository.InventoryRepository
	timeout time.Duration
}

// NewInventoryDecrementer creates a new InventoryDecrementer. stepTimeout
// bounds each per-item call.
func NewInventoryDecrementer(repo repository.InventoryRepository, stepTimeout time.Duration) *InventoryDecrementer {
	return &InventoryDecrementer{repo: repo, timeout: stepTimeout}
}

// Reduce issues one stock reduction per item and waits for all of them.
// Every item is attempted regardless of the others; the returned levels
// cover the items that succeeded and the error is an *InventoryError
// listing the rest.
func (d *InventoryDecrementer) Reduce(ctx context.Context, items []domain.OrderItem) ([]domain.StockLevel, error) {
	levels := make([]*domain.StockLevel, len(items))
	failures := make([]*StockReductionError, len(items))

	var g errgroup.Group
	for i, item := range items {
		g.Go(func() error {
			level, err := timeout.Do(ctx, "reduce stock", d.timeout, func(ctx context.Context) (*domain.StockLevel, error) {
				return d.repo.ReduceStock(ctx, item.KitID, item.Quantity)
			})
			if err != nil {
				failures[i] = &StockReductionError{KitID: item.KitID, Quantity: item.Quantity, Err: err}
				return nil
			}
			levels[i] = level
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.StockLevel, 0, len(items))
	for _, l := range levels {
		if l != nil {
			out = append(out, *l)
		}
	}

	invErr := &InventoryError{Total: len(items)}
	for _, f := range failures {
		if f != nil {
			invErr.Items = append(invErr.Items, f)
		}
	}
	if len(invErr.Items) > 0 {
		return out, invErr
	}
	return out, nil
}

// FailedKits lists the kit ids in an *InventoryError, or nil for other errors.
func FailedKits(err error) []string {
	var invErr *InventoryError
	if !errors.As(err, &invErr) {
		return nil
	}
	ids := make([]string, len(invErr.Items))
	for i, it := range invErr.Items {
		ids[i] = it.KitID
	}
	return ids
}
