package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/errors"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/validator"
)

// Order lifecycle values set at creation.
const (
	OrderStatusConfirmed         = "confirmed"
	PaymentStatusPaid            = "paid"
	PaymentStatusNotRequired     = "not_required"
	FulfillmentStatusUnfulfilled = "unfulfilled"

	PaymentMethodFree = "free"
	PaymentMethodCard = "card"
)

// User is the authenticated purchaser.
type User struct {
	ID    string
	Email string
}

// Address is a shipping or billing address as captured at checkout.
type Address struct {
	FirstName    string `json:"first_name" validate:"max=100"`
	LastName     string `json:"last_name" validate:"max=100"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        string `json:"phone,omitempty"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	Province     string `json:"province"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

// FullName joins first and last name.
func (a *Address) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	default:
		return a.FirstName + " " + a.LastName
	}
}

// OrderItemRequest is one cart line as submitted by the checkout page.
type OrderItemRequest struct {
	KitID              string          `json:"kit_id" validate:"required"`
	Quantity           int             `json:"quantity" validate:"gt=0"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	ProductName        string          `json:"product_name" validate:"required,max=255"`
	ProductDescription string          `json:"product_description,omitempty"`
}

// OrderRequest is the checkout payload. Monetary fields are the totals the
// payment step already captured.
type OrderRequest struct {
	ShippingAddress  *Address           `json:"shipping_address" validate:"required"`
	BillingAddress   *Address           `json:"billing_address" validate:"required"`
	Items            []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Subtotal         decimal.Decimal    `json:"subtotal"`
	DiscountAmount   decimal.Decimal    `json:"discount_amount"`
	TaxAmount        decimal.Decimal    `json:"tax_amount"`
	ShippingCost     decimal.Decimal    `json:"shipping_cost"`
	TotalAmount      *decimal.Decimal   `json:"total_amount" validate:"required"`
	CouponID         string             `json:"coupon_id,omitempty"`
	CouponCode       string             `json:"coupon_code,omitempty"`
	PaymentReference string             `json:"payment_reference,omitempty"`
	PaymentMethod    string             `json:"payment_method,omitempty"`
	IsFreeOrder      bool               `json:"is_free_order"`
}

// Validate checks the request before any side effect. All failed rules are
// returned together as a ValidationFailed AppError.
func (r *OrderRequest) Validate() error {
	var msgs []string
	if err := validator.Validate(r); err != nil {
		var valErr *validator.ValidationError
		if !errors.As(err, &valErr) {
			return apperrors.InvalidInput(err.Error())
		}
		msgs = valErr.Messages()
	}

	nonNegative := func(field string, v decimal.Decimal) {
		if v.IsNegative() {
			msgs = append(msgs, field+" must be greater than or equal to 0")
		}
	}
	nonNegative("subtotal", r.Subtotal)
	nonNegative("discount_amount", r.DiscountAmount)
	nonNegative("tax_amount", r.TaxAmount)
	nonNegative("shipping_cost", r.ShippingCost)
	for i, item := range r.Items {
		nonNegative(fmt.Sprintf("items[%d].unit_price", i), item.UnitPrice)
	}

	if r.TotalAmount != nil {
		nonNegative("total_amount", *r.TotalAmount)
		if r.RequiresPayment() && r.PaymentReference == "" {
			msgs = append(msgs, "payment_reference is required")
		}
		if r.IsFreeOrder && !r.TotalAmount.IsZero() {
			msgs = append(msgs, "is_free_order requires total_amount of 0")
		}
	}

	if len(msgs) > 0 {
		return apperrors.ValidationFailed(msgs)
	}
	return nil
}

// RequiresPayment reports whether the order total is above zero.
func (r *OrderRequest) RequiresPayment() bool {
	return r.TotalAmount != nil && r.TotalAmount.IsPositive()
}

// Free reports whether no payment was taken for this order.
func (r *OrderRequest) Free() bool {
	return r.IsFreeOrder || !r.RequiresPayment()
}

// HasCouponRedemption reports whether a coupon with a positive discount was applied.
func (r *OrderRequest) HasCouponRedemption() bool {
	return r.CouponID != "" && r.DiscountAmount.IsPositive()
}

// CustomerEmail returns the first address email present, or "".
func (r *OrderRequest) CustomerEmail() string {
	if r.ShippingAddress != nil && r.ShippingAddress.Email != "" {
		return r.ShippingAddress.Email
	}
	if r.BillingAddress != nil {
		return r.BillingAddress.Email
	}
	return ""
}

// ItemsSubtotal recomputes the subtotal from quantity × unit_price.
func (r *OrderRequest) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range r.Items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// PaymentDetails is stored with the order. Free and paid orders record
// different shapes.
type PaymentDetails struct {
	Method    string          `json:"method"`
	Reference string          `json:"reference,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
	CouponID  string          `json:"coupon_id,omitempty"`
}

// Order is a persisted order header. ID, OrderNumber and CreatedAt are
// assigned by the store.
type Order struct {
	ID                string          `json:"id"`
	OrderNumber       string          `json:"order_number"`
	UserID            string          `json:"user_id"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"payment_status"`
	FulfillmentStatus string          `json:"fulfillment_status"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
	ShippingCost      decimal.Decimal `json:"shipping_cost"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Currency          string          `json:"currency"`
	CouponID          string          `json:"coupon_id,omitempty"`
	CouponCode        string          `json:"coupon_code,omitempty"`
	PaymentReference  string          `json:"payment_reference,omitempty"`
	PaymentMethod     string          `json:"payment_method"`
	PaymentDetails    PaymentDetails  `json:"payment_details"`
	IsFreeOrder       bool            `json:"is_free_order"`
	CustomerEmail     string          `json:"customer_email,omitempty"`
	ShippingAddress   Address         `json:"shipping_address"`
	BillingAddress    Address         `json:"billing_address"`
	Items             []OrderItem     `json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
}

// OrderItem is one persisted order line.
type OrderItem struct {
	ID                 string          `json:"id,omitempty"`
	OrderID            string          `json:"order_id"`
	KitID              string          `json:"kit_id"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	TotalPrice         decimal.Decimal `json:"total_price"`
	ProductName        string          `json:"product_name"`
	ProductDescription string          `json:"product_description,omitempty"`
}

// NewOrder derives an unsaved Order from a validated request.
func NewOrder(req *OrderRequest, userID, currency string) *Order {
	free := req.Free()
	o := &Order{
		UserID:            userID,
		Status:            OrderStatusConfirmed,
		PaymentStatus:     PaymentStatusPaid,
		FulfillmentStatus: FulfillmentStatusUnfulfilled,
		Subtotal:          req.Subtotal,
		DiscountAmount:    req.DiscountAmount,
		TaxAmount:         req.TaxAmount,
		ShippingCost:      req.ShippingCost,
		TotalAmount:       *req.TotalAmount,
		Currency:          currency,
		CouponID:          req.CouponID,
		CouponCode:        req.CouponCode,
		IsFreeOrder:       free,
		CustomerEmail:     req.CustomerEmail(),
		ShippingAddress:   *req.ShippingAddress,
		BillingAddress:    *req.BillingAddress,
	}

	if free {
		o.PaymentStatus = PaymentStatusNotRequired
		o.PaymentMethod = PaymentMethodFree
		o.PaymentDetails = PaymentDetails{
			Method:   PaymentMethodFree,
			Amount:   decimal.Zero,
			Reason:   "order total is zero",
			CouponID: req.CouponID,
		}
		return o
	}

	o.PaymentReference = req.PaymentReference
	o.PaymentMethod = req.PaymentMethod
	if o.PaymentMethod == "" {
		o.PaymentMethod = PaymentMethodCard
	}
	o.PaymentDetails = PaymentDetails{
		Method:    o.PaymentMethod,
		Reference: req.PaymentReference,
		Amount:    *req.TotalAmount,
	}
	return o
}

// BuildItems creates the order lines for orderID, computing each total
// price as quantity × unit price.
func BuildItems(orderID string, items []OrderItemRequest) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, OrderItem{
			OrderID:            orderID,
			KitID:              it.KitID,
			Quantity:           it.Quantity,
			UnitPrice:          it.UnitPrice,
			TotalPrice:         it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))),
			ProductName:        it.ProductName,
			ProductDescription: it.ProductDescription,
		})
	}
	return out
}
