package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/repository"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/timeout"
)

// ErrNoKitRegistrations is returned when provisioning produced no codes.
var ErrNoKitRegistrations = errors.New("no kit registrations created")

// KitProvisioner creates kit registrations for a new order.
type KitProvisioner struct {
	repo    repository.KitRepository
	timeout time.Duration
}

// NewKitProvisioner creates a new KitProvisioner.
func NewKitProvisioner(repo repository.KitRepository, stepTimeout time.Duration) *KitProvisioner {
	return &KitProvisioner{repo: repo, timeout: stepTimeout}
}

// Provision creates one registration per purchased unit of orderID and
// returns the generated kit codes. An empty result is ErrNoKitRegistrations.
func (p *KitProvisioner) Provision(ctx context.Context, orderID string) (*domain.KitRegistrations, error) {
	regs, err := timeout.Do(ctx, "create kit registrations", p.timeout, func(ctx context.Context) (*domain.KitRegistrations, error) {
		return p.repo.CreateKitRegistrations(ctx, orderID)
	})
	if err != nil {
		return nil, fmt.Errorf("provision kits for order %s: %w", orderID, err)
	}
	if regs == nil || (regs.Count == 0 && len(regs.KitCodes) == 0) {
		return nil, fmt.Errorf("provision kits for order %s: %w", orderID, ErrNoKitRegistrations)
	}
	return regs, nil
}
