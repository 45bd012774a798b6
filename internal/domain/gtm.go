package domain

// GTMPurchase is the analytics payload the checkout page pushes to the tag
// manager data layer after a purchase.
type GTMPurchase struct {
	TransactionID string    `json:"transaction_id"`
	Value         float64   `json:"value"`
	Tax           float64   `json:"tax"`
	Shipping      float64   `json:"shipping"`
	Currency      string    `json:"currency"`
	Coupon        string    `json:"coupon,omitempty"`
	Items         []GTMItem `json:"items"`
}

// GTMItem is one purchased line.
type GTMItem struct {
	ItemID   string  `json:"item_id"`
	ItemName string  `json:"item_name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// NewGTMPurchase builds the purchase event for o.
func NewGTMPurchase(o *Order) GTMPurchase {
	items := make([]GTMItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, GTMItem{
			ItemID:   it.KitID,
			ItemName: it.ProductName,
			Price:    it.UnitPrice.InexactFloat64(),
			Quantity: it.Quantity,
		})
	}
	return GTMPurchase{
		TransactionID: o.OrderNumber,
		Value:         o.TotalAmount.InexactFloat64(),
		Tax:           o.TaxAmount.InexactFloat64(),
		Shipping:      o.ShippingCost.InexactFloat64(),
		Currency:      o.Currency,
		Coupon:        o.CouponCode,
		Items:         items,
	}
}
