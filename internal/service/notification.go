package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/domain"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/sender"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/logger"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/timeout"
)

// NotificationConfig selects templates and recipients. Enabled is false
// when no email API key is configured.
type NotificationConfig struct {
	Enabled            bool
	CustomerTemplateID string
	AdminTemplateID    string
	AdminEmail         string
	Timeout            time.Duration
}

// OrderNotification is everything the two emails render.
type OrderNotification struct {
	Order    *domain.Order
	Request  *domain.OrderRequest
	KitCodes []string
}

// NotificationDispatcher sends the customer confirmation and the admin
// notice in a detached goroutine. Outcomes only reach the logs.
type NotificationDispatcher struct {
	sender sender.Sender
	cfg    NotificationConfig
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewNotificationDispatcher creates a new NotificationDispatcher.
func NewNotificationDispatcher(s sender.Sender, cfg NotificationConfig, logger *slog.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{sender: s, cfg: cfg, logger: logger}
}

// Enabled reports whether Dispatch will send anything.
func (d *NotificationDispatcher) Enabled() bool {
	return d.cfg.Enabled && d.sender != nil
}

// Dispatch launches the sends and returns immediately. It reports false
// when notifications are disabled. The sends outlive ctx's cancellation but
// keep its values for logging and tracing.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, n OrderNotification) bool {
	if !d.Enabled() {
		d.logger.InfoContext(ctx, "email notifications disabled, skipping",
			slog.String("order_id", n.Order.ID),
		)
		return false
	}

	msgs := d.compose(n)
	dctx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				d.logger.ErrorContext(dctx, "notification dispatch panicked",
					slog.String("order_id", n.Order.ID),
					slog.Any("panic", rec),
				)
			}
		}()
		d.sendAll(dctx, n.Order.ID, msgs)
	}()
	return true
}

// Wait blocks until every dispatched send has finished or ctx is done.
func (d *NotificationDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for notifications: %w", ctx.Err())
	}
}

type namedMessage struct {
	kind string
	msg  *sender.Message
}

// sendAll attempts every message. One failure does not stop the others.
func (d *NotificationDispatcher) sendAll(ctx context.Context, orderID string, msgs []namedMessage) {
	l := logger.WithContext(ctx, d.logger)
	for _, m := range msgs {
		err := timeout.Run(ctx, "send "+m.kind+" email", d.cfg.Timeout, func(ctx context.Context) error {
			return d.sender.Send(ctx, m.msg)
		})
		if err != nil {
			l.ErrorContext(ctx, "failed to send order email",
				slog.String("order_id", orderID),
				slog.String("kind", m.kind),
				slog.String("sender", d.sender.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		l.InfoContext(ctx, "order email sent",
			slog.String("order_id", orderID),
			slog.String("kind", m.kind),
		)
	}
}

func (d *NotificationDispatcher) compose(n OrderNotification) []namedMessage {
	var msgs []namedMessage
	if email := n.Order.CustomerEmail; email != "" {
		msgs = append(msgs, namedMessage{kind: "customer", msg: &sender.Message{
			TemplateID:    d.cfg.CustomerTemplateID,
			Email:         email,
			DataVariables: customerVariables(n),
		}})
	}
	msgs = append(msgs, namedMessage{kind: "admin", msg: &sender.Message{
		TemplateID:    d.cfg.AdminTemplateID,
		Email:         d.cfg.AdminEmail,
		DataVariables: adminVariables(n),
	}})
	return msgs
}

func customerVariables(n OrderNotification) map[string]any {
	o := n.Order
	return map[string]any{
		"customerName":    customerName(o),
		"orderNumber":     o.OrderNumber,
		"orderDate":       o.CreatedAt.Format("January 2, 2006"),
		"orderTotal":      o.TotalAmount.StringFixed(2),
		"subtotal":        o.Subtotal.StringFixed(2),
		"discountAmount":  o.DiscountAmount.StringFixed(2),
		"taxAmount":       o.TaxAmount.StringFixed(2),
		"shippingCost":    o.ShippingCost.StringFixed(2),
		"couponCode":      o.CouponCode,
		"isFreeOrder":     o.IsFreeOrder,
		"itemsSummary":    itemsSummary(o.Items),
		"shippingAddress": formatAddress(o.ShippingAddress),
	}
}

func adminVariables(n OrderNotification) map[string]any {
	o := n.Order
	return map[string]any{
		"orderNumber":     o.OrderNumber,
		"orderId":         o.ID,
		"customerName":    customerName(o),
		"customerEmail":   o.CustomerEmail,
		"orderTotal":      o.TotalAmount.StringFixed(2),
		"paymentStatus":   o.PaymentStatus,
		"paymentMethod":   o.PaymentMethod,
		"couponCode":      o.CouponCode,
		"isFreeOrder":     o.IsFreeOrder,
		"itemsSummary":    itemsSummary(o.Items),
		"kitCount":        len(n.KitCodes),
		"kitCodes":        strings.Join(n.KitCodes, ", "),
		"shippingAddress": formatAddress(o.ShippingAddress),
		"orderDate":       o.CreatedAt.Format(time.RFC3339),
	}
}

func customerName(o *domain.Order) string {
	if name := o.ShippingAddress.FullName(); name != "" {
		return name
	}
	if name := o.BillingAddress.FullName(); name != "" {
		return name
	}
	return "Customer"
}

func itemsSummary(items []domain.OrderItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%d x %s", it.Quantity, it.ProductName)
	}
	return strings.Join(parts, ", ")
}

func formatAddress(a domain.Address) string {
	var parts []string
	for _, p := range []string{a.AddressLine1, a.AddressLine2, a.City, a.Province, a.PostalCode, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
