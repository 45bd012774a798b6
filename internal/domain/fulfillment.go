package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponRedemption links a coupon use to an order.
type CouponRedemption struct {
	CouponID       string
	UserID         string
	OrderID        string
	DiscountAmount decimal.Decimal
	RedeemedAt     time.Time
}

// StockLevel is the state returned by the stock reduction function.
type StockLevel struct {
	KitID             string `json:"kit_id"`
	RemainingQuantity int    `json:"remaining_quantity"`
}

// KitRegistrations is the result of bulk provisioning for one order.
type KitRegistrations struct {
	Count    int      `json:"count"`
	KitCodes []string `json:"kit_codes"`
}

// Cart clearing methods, from least to most invasive.
const (
	CartMethodRPC          = "rpc"
	CartMethodDirectDelete = "direct_delete"
	CartMethodNuclear      = "nuclear"
)

// CartClearResult reports which method emptied the cart.
type CartClearResult struct {
	Method       string `json:"method"`
	ItemsCleared int64  `json:"items_cleared"`
}
