package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/sender"
)

// --- Mock Order Repository ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) CreateOrder(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderRepository) CreateItems(ctx context.Context, items []domain.OrderItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *mockOrderRepository) DeleteOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

// --- Mock Coupon Repository ---

type mockCouponRepository struct {
	mock.Mock
}

func (m *mockCouponRepository) CreateRedemption(ctx context.Context, r *domain.CouponRedemption) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *mockCouponRepository) IncrementUsage(ctx context.Context, couponID string) error {
	args := m.Called(ctx, couponID)
	return args.Error(0)
}

// --- Mock Inventory Repository ---

type mockInventoryRepository struct {
	mock.Mock
}

func (m *mockInventoryRepository) ReduceStock(ctx context.Context, kitID string, quantity int) (*domain.StockLevel, error) {
	args := m.Called(ctx, kitID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StockLevel), args.Error(1)
}

// --- Mock Kit Repository ---

type mockKitRepository struct {
	mock.Mock
}

func (m *mockKitRepository) CreateKitRegistrations(ctx context.Context, orderID string) (*domain.KitRegistrations, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KitRegistrations), args.Error(1)
}

// --- Mock Cart Repository ---

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) DeleteUserCartItems(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCartRepository) FindCartIDs(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockCartRepository) DeleteCartItems(ctx context.Context, cartIDs []string) (int64, error) {
	args := m.Called(ctx, cartIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCartRepository) DeleteCarts(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock Idempotency Store ---

type mockIdempotencyStore struct {
	mock.Mock
}

func (m *mockIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockIdempotencyStore) Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, result, ttl)
	return args.Error(0)
}

func (m *mockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// --- Mock Sender ---

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Name() string { return "mock" }

func (m *mockSender) Send(ctx context.Context, msg *sender.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// --- Mock Token Verifier ---

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, token string) (*domain.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// --- Mock Event Publisher ---

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order, kitCodes []string) error {
	args := m.Called(ctx, order, kitCodes)
	return args.Error(0)
}

// --- Test Fixtures ---

func testAddress() *domain.Address {
	return &domain.Address{
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        "jane@example.com",
		AddressLine1: "12 Lake Rd",
		City:         "Kelowna",
		Province:     "BC",
		PostalCode:   "V1Y 1A1",
		Country:      "CA",
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// paidRequest is two lines totalling 45.00 with a payment reference.
func paidRequest() *domain.OrderRequest {
	return &domain.OrderRequest{
		ShippingAddress: testAddress(),
		BillingAddress:  testAddress(),
		Items: []domain.OrderItemRequest{
			{KitID: "kit-a", Quantity: 1, UnitPrice: dec("25.00"), ProductName: "Basic Water Test"},
			{KitID: "kit-b", Quantity: 2, UnitPrice: dec("7.50"), ProductName: "Metals Add-on"},
		},
		Subtotal:         dec("40.00"),
		TaxAmount:        dec("5.00"),
		TotalAmount:      decPtr("45.00"),
		PaymentReference: "pi_123",
	}
}

// freeRequest is fully discounted by a coupon.
func freeRequest() *domain.OrderRequest {
	return &domain.OrderRequest{
		ShippingAddress: testAddress(),
		BillingAddress:  testAddress(),
		Items: []domain.OrderItemRequest{
			{KitID: "kit-a", Quantity: 1, UnitPrice: dec("25.00"), ProductName: "Basic Water Test"},
		},
		Subtotal:       dec("25.00"),
		DiscountAmount: dec("25.00"),
		TotalAmount:    decPtr("0"),
		CouponID:       "coupon-1",
		CouponCode:     "FREEKIT",
		IsFreeOrder:    true,
	}
}

// assignOrderIdentity mimics the store filling RETURNING columns.
func assignOrderIdentity(id, number string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		o := args.Get(1).(*domain.Order)
		o.ID = id
		o.OrderNumber = number
		o.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
}
