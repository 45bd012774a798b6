package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
)

// --- Provision Tests ---

func TestKitProvisioner_Provision(t *testing.T) {
	repo := new(mockKitRepository)
	repo.On("CreateKitRegistrations", mock.Anything, "order-1").
		Return(&domain.KitRegistrations{Count: 2, KitCodes: []string{"KIT-1", "KIT-2"}}, nil)

	regs, err := NewKitProvisioner(repo, time.Second).Provision(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"KIT-1", "KIT-2"}, regs.KitCodes)
}

func TestKitProvisioner_EmptyResult(t *testing.T) {
	repo := new(mockKitRepository)
	repo.On("CreateKitRegistrations", mock.Anything, "order-1").Return(&domain.KitRegistrations{}, nil)

	regs, err := NewKitProvisioner(repo, time.Second).Provision(context.Background(), "order-1")
	assert.Nil(t, regs)
	assert.ErrorIs(t, err, ErrNoKitRegistrations)
}

func TestKitProvisioner_RepoError(t *testing.T) {
	repo := new(mockKitRepository)
	repo.On("CreateKitRegistrations", mock.Anything, "order-1").Return(nil, errors.New("rpc failed"))

	_, err := NewKitProvisioner(repo, time.Second).Provision(context.Background(), "order-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc failed")
}
