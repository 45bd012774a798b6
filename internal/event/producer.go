package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	pkgkafka "github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/kafka"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/logger"
)

// TopicOrderCreated carries a snapshot of every newly created order.
var TopicOrderCreated = pkgkafka.Topic("order", "created")

// Event type, aggregate and source identifiers.
const (
	EventTypeOrderCreated = "order.created"
	AggregateTypeOrder    = "order"
	SourceOrderService    = "order-service"
)

// OrderCreatedData is the payload for an order.created event.
type OrderCreatedData struct {
	ID             string          `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         string          `json:"user_id"`
	Status         string          `json:"status"`
	PaymentStatus  string          `json:"payment_status"`
	Items          []OrderItemData `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	IsFreeOrder    bool            `json:"is_free_order"`
	KitCodes       []string        `json:"kit_codes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// OrderItemData is the event payload for an order item.
type OrderItemData struct {
	ID         string          `json:"id"`
	KitID      string          `json:"kit_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Publisher writes an event to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes order domain events.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new order event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order.created event with the order
// snapshot and any provisioned kit codes.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order, kitCodes []string) error {
	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{
			ID:         item.ID,
			KitID:      item.KitID,
			Name:       item.ProductName,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		}
	}

	data := OrderCreatedData{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		Items:          items,
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		TaxAmount:      order.TaxAmount,
		ShippingCost:   order.ShippingCost,
		TotalAmount:    order.TotalAmount,
		Currency:       order.Currency,
		CouponCode:     order.CouponCode,
		IsFreeOrder:    order.IsFreeOrder,
		KitCodes:       kitCodes,
		CreatedAt:      order.CreatedAt,
	}

	event, err := pkgkafka.NewEvent(EventTypeOrderCreated, order.ID, AggregateTypeOrder, SourceOrderService, data)
	if err != nil {
		return fmt.Errorf("create order.created event: %w", err)
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		event.WithRequestID(id)
	}
	event.WithMetadata("order_number", order.OrderNumber)

	if err := p.kafka.Publish(ctx, TopicOrderCreated, event); err != nil {
		return fmt.Errorf("publish order.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.created event",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
	)
	return nil
}
