package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/database"
)

const insertOrderSQL = `
	INSERT INTO orders (user_id, status, payment_status, fulfillment_status,
		subtotal, discount_amount, tax_amount, shipping_cost, total_amount, currency,
		coupon_id, coupon_code, payment_reference, payment_method, payment_details,
		is_free_order, customer_email, shipping_address, billing_address)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::uuid, NULLIF($12, ''),
		NULLIF($13, ''), $14, $15, $16, NULLIF($17, ''), $18, $19)
	RETURNING id, order_number, created_at`

const insertItemsPrefix = `
	INSERT INTO order_items (order_id, kit_id, quantity, unit_price, total_price,
		product_name, product_description)
	VALUES `

const insertItemsSuffix = ` RETURNING id`

const itemColumns = 7

const deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateOrder inserts the order header. The store assigns id, order number
// and creation time.
func (r *OrderRepository) CreateOrder(ctx context.Context, o *domain.Order) (err error) {
	shippingJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}
	paymentJSON, err := json.Marshal(o.PaymentDetails)
	if err != nil {
		return fmt.Errorf("marshal payment details: %w", err)
	}

	ctx, end := database.TraceQuery(ctx, "InsertOrder", insertOrderSQL)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, insertOrderSQL,
		o.UserID,
		o.Status,
		o.PaymentStatus,
		o.FulfillmentStatus,
		o.Subtotal,
		o.DiscountAmount,
		o.TaxAmount,
		o.ShippingCost,
		o.TotalAmount,
		o.Currency,
		o.CouponID,
		o.CouponCode,
		o.PaymentReference,
		o.PaymentMethod,
		paymentJSON,
		o.IsFreeOrder,
		o.CustomerEmail,
		shippingJSON,
		billingJSON,
	).Scan(&o.ID, &o.OrderNumber, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// CreateItems inserts every line with one multi-row statement, so either
// all lines are written or none are.
func (r *OrderRepository) CreateItems(ctx context.Context, items []domain.OrderItem) (err error) {
	if len(items) == 0 {
		return nil
	}

	query, args := buildInsertItems(items)

	ctx, end := database.TraceQuery(ctx, "InsertOrderItems", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= len(items) {
			return fmt.Errorf("insert order items: more ids returned than rows inserted")
		}
		if err = rows.Scan(&items[i].ID); err != nil {
			return fmt.Errorf("scan order item id: %w", err)
		}
		i++
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	if i != len(items) {
		return fmt.Errorf("insert order items: inserted %d of %d rows", i, len(items))
	}
	return nil
}

func buildInsertItems(items []domain.OrderItem) (string, []any) {
	var b strings.Builder
	b.WriteString(insertItemsPrefix)
	args := make([]any, 0, len(items)*itemColumns)
	for i, it := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * itemColumns
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, NULLIF($%d, ''))",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args,
			it.OrderID,
			it.KitID,
			it.Quantity,
			it.UnitPrice,
			it.TotalPrice,
			it.ProductName,
			it.ProductDescription,
		)
	}
	b.WriteString(insertItemsSuffix)
	return b.String(), args
}

// DeleteOrder removes an order header. Items cascade.
func (r *OrderRepository) DeleteOrder(ctx context.Context, orderID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteOrder", deleteOrderSQL)
	defer func() { end(err) }()

	if _, err = r.pool.Exec(ctx, deleteOrderSQL, orderID); err != nil {
		return fmt.Errorf("delete order %s: %w", orderID, err)
	}
	return nil
}
