package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/models"
)

type MockOrderHandler struct {
	mock.Mock
}

func (m *MockOrderHandler) HandleCheckout(ctx context.Context, ev models.CheckoutEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockOrderHandler) HandleCheckoutCreated(ctx context.Context, ev models.CheckoutCreatedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockOrderHandler) HandlePaymentSucceeded(ctx context.Context, ev models.PaymentEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockOrderHandler) HandlePaymentFailed(ctx context.Context, ev models.PaymentEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func envelope(t *testing.T, eventType string, data any) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(eventType, "test", data)
	require.NoError(t, err)
	return env
}

func TestHandle_RoutesEvents(t *testing.T) {
	orderID := "0b4f7c3e-8d6a-4a57-9a8e-3f4c1f6b2a10"
	checkout := models.CheckoutEvent{CheckoutID: "chk-1", UserID: "user-1", Items: []models.CheckoutItem{{VMID: "vm-1", Quantity: 1}}}
	created := models.CheckoutCreatedEvent{OrderID: orderID, PaymentID: "pay-1", CheckoutURL: "https://checkout.test"}
	paid := models.PaymentEvent{PaymentID: "pay-1", OrderID: &orderID, Status: "succeeded"}
	failed := models.PaymentEvent{PaymentID: "pay-1", OrderID: &orderID, Status: "failed"}

	h := new(MockOrderHandler)
	h.On("HandleCheckout", mock.Anything, checkout).Return(nil).Once()
	h.On("HandleCheckoutCreated", mock.Anything, created).Return(nil).Once()
	h.On("HandlePaymentSucceeded", mock.Anything, paid).Return(nil).Once()
	h.On("HandlePaymentFailed", mock.Anything, failed).Return(nil).Once()

	c := NewEventConsumer(h, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, c.Handle(ctx, envelope(t, events.CartCheckedOut, checkout)))
	require.NoError(t, c.Handle(ctx, envelope(t, events.PaymentCheckoutCreated, created)))
	require.NoError(t, c.Handle(ctx, envelope(t, events.PaymentSucceeded, paid)))
	require.NoError(t, c.Handle(ctx, envelope(t, events.PaymentFailed, failed)))

	h.AssertExpectations(t)
}

func TestHandle_IgnoresUnknownAndMalformed(t *testing.T) {
	h := new(MockOrderHandler)
	c := NewEventConsumer(h, zap.NewNop())

	require.NoError(t, c.Handle(context.Background(), envelope(t, events.UserRegistered, map[string]string{"id": "u"})))

	env := envelope(t, events.PaymentSucceeded, nil)
	env.Data = json.RawMessage(`[1,2,3]`)
	require.NoError(t, c.Handle(context.Background(), env))

	h.AssertNotCalled(t, "HandlePaymentSucceeded", mock.Anything, mock.Anything)
}

func TestHandleSQSBatch_ReportsOnlyFailedRecords(t *testing.T) {
	h := new(MockOrderHandler)
	h.On("HandleCheckout", mock.Anything, mock.MatchedBy(func(ev models.CheckoutEvent) bool {
		return ev.CheckoutID == "ok"
	})).Return(nil)
	h.On("HandleCheckout", mock.Anything, mock.MatchedBy(func(ev models.CheckoutEvent) bool {
		return ev.CheckoutID == "retry"
	})).Return(errors.New("database unavailable"))

	body := func(checkoutID string) string {
		raw, err := json.Marshal(envelope(t, events.CartCheckedOut, models.CheckoutEvent{CheckoutID: checkoutID}))
		require.NoError(t, err)
		return string(raw)
	}
	// SNS delivers with its own notification wrapper unless raw delivery is on.
	wrapped, err := json.Marshal(map[string]string{"Type": "Notification", "Message": body("ok")})
	require.NoError(t, err)

	batch := lambdaevents.SQSEvent{Records: []lambdaevents.SQSMessage{
		{MessageId: "m1", Body: body("ok")},
		{MessageId: "m2", Body: body("retry")},
		{MessageId: "m3", Body: "not json"},
		{MessageId: "m4", Body: string(wrapped)},
	}}

	resp, err := NewEventConsumer(h, zap.NewNop()).HandleSQSBatch(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "m2", resp.BatchItemFailures[0].ItemIdentifier)
	h.AssertNumberOfCalls(t, "HandleCheckout", 3)
}
