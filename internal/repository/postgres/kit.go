package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/database"
)

const createKitRegistrationsSQL = `
	SELECT registrations_created, kit_codes FROM create_kit_registrations($1)`

// KitRepository implements repository.KitRepository using PostgreSQL.
type KitRepository struct {
	pool database.DBTX
}

// NewKitRepository creates a new PostgreSQL-backed kit registration repository.
func NewKitRepository(pool database.DBTX) *KitRepository {
	return &KitRepository{pool: pool}
}

// CreateKitRegistrations provisions one registration per purchased unit of
// orderID. An empty function result yields a zero count and no codes.
func (r *KitRepository) CreateKitRegistrations(ctx context.Context, orderID string) (_ *domain.KitRegistrations, err error) {
	ctx, end := database.TraceQuery(ctx, "CreateKitRegistrations", createKitRegistrationsSQL)
	defer func() { end(err) }()

	var (
		count int
		codes []string
	)
	err = r.pool.QueryRow(ctx, createKitRegistrationsSQL, orderID).Scan(&count, &codes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.KitRegistrations{}, nil
		}
		return nil, fmt.Errorf("create kit registrations for order %s: %w", orderID, err)
	}
	return &domain.KitRegistrations{Count: count, KitCodes: codes}, nil
}
