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
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/internal/sender"
	"github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/logger"
)

func testNotificationConfig() NotificationConfig {
	return NotificationConfig{
		Enabled:            true,
		CustomerTemplateID: "tmpl-customer",
		AdminTemplateID:    "tmpl-admin",
		AdminEmail:         "orders@example.com",
		Timeout:            time.Second,
	}
}

func testNotification() OrderNotification {
	req := paidRequest()
	order := domain.NewOrder(req, "user-1", "CAD")
	order.ID = "order-1"
	order.OrderNumber = "MWQ-1001"
	order.Items = domain.BuildItems(order.ID, req.Items)
	return OrderNotification{Order: order, Request: req, KitCodes: []string{"KIT-1", "KIT-2", "KIT-3"}}
}

func waitDispatched(t *testing.T, d *NotificationDispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

// --- Dispatch Tests ---

func TestNotificationDispatcher_SendsCustomerAndAdmin(t *testing.T) {
	s := new(mockSender)
	s.On("Send", mock.Anything, mock.MatchedBy(func(m *sender.Message) bool {
		return m.TemplateID == "tmpl-customer" && m.Email == "jane@example.com" &&
			m.DataVariables["orderNumber"] == "MWQ-1001" && m.DataVariables["orderTotal"] == "45.00"
	})).Return(nil).Once()
	s.On("Send", mock.Anything, mock.MatchedBy(func(m *sender.Message) bool {
		return m.TemplateID == "tmpl-admin" && m.Email == "orders@example.com" &&
			m.DataVariables["kitCount"] == 3 && m.DataVariables["kitCodes"] == "KIT-1, KIT-2, KIT-3"
	})).Return(nil).Once()

	d := NewNotificationDispatcher(s, testNotificationConfig(), logger.Discard())
	assert.True(t, d.Dispatch(context.Background(), testNotification()))
	waitDispatched(t, d)
	s.AssertExpectations(t)
}

func TestNotificationDispatcher_NoCustomerEmail(t *testing.T) {
	s := new(mockSender)
	s.On("Send", mock.Anything, mock.MatchedBy(func(m *sender.Message) bool {
		return m.TemplateID == "tmpl-admin"
	})).Return(nil).Once()

	n := testNotification()
	n.Order.CustomerEmail = ""

	d := NewNotificationDispatcher(s, testNotificationConfig(), logger.Discard())
	d.Dispatch(context.Background(), n)
	waitDispatched(t, d)
	s.AssertExpectations(t)
	s.AssertNumberOfCalls(t, "Send", 1)
}

func TestNotificationDispatcher_CustomerFailureStillSendsAdmin(t *testing.T) {
	s := new(mockSender)
	s.On("Send", mock.Anything, mock.MatchedBy(func(m *sender.Message) bool {
		return m.TemplateID == "tmpl-customer"
	})).Return(errors.New("loops: 400")).Once()
	s.On("Send", mock.Anything, mock.MatchedBy(func(m *sender.Message) bool {
		return m.TemplateID == "tmpl-admin"
	})).Return(nil).Once()

	d := NewNotificationDispatcher(s, testNotificationConfig(), logger.Discard())
	d.Dispatch(context.Background(), testNotification())
	waitDispatched(t, d)
	s.AssertExpectations(t)
}

func TestNotificationDispatcher_Disabled(t *testing.T) {
	s := new(mockSender)
	cfg := testNotificationConfig()
	cfg.Enabled = false

	d := NewNotificationDispatcher(s, cfg, logger.Discard())
	assert.False(t, d.Dispatch(context.Background(), testNotification()))
	waitDispatched(t, d)
	s.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestNotificationDispatcher_OutlivesRequestContext(t *testing.T) {
	s := new(mockSender)
	s.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			time.Sleep(20 * time.Millisecond)
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	d := NewNotificationDispatcher(s, testNotificationConfig(), logger.Discard())
	d.Dispatch(ctx, testNotification())
	cancel()

	waitDispatched(t, d)
	s.AssertNumberOfCalls(t, "Send", 2)
}

func TestNotificationDispatcher_WaitHonorsContext(t *testing.T) {
	s := new(mockSender)
	release := make(chan struct{})
	s.On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).Return(nil)

	d := NewNotificationDispatcher(s, testNotificationConfig(), logger.Discard())
	d.Dispatch(context.Background(), testNotification())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	close(release)
	waitDispatched(t, d)
}

func TestItemsSummaryAndAddress(t *testing.T) {
	n := testNotification()
	assert.Equal(t, "1 x Basic Water Test, 2 x Metals Add-on", itemsSummary(n.Order.Items))
	assert.Equal(t, "12 Lake Rd, Kelowna, BC, V1Y 1A1, CA", formatAddress(n.Order.ShippingAddress))
	assert.Equal(t, "Jane Doe", customerName(n.Order))
}
