package consumers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/models"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/services"
)

type stubService struct {
	services.PaymentService
	requests []models.PaymentRequest
	err      error
}

func (s *stubService) HandlePaymentRequest(_ context.Context, req models.PaymentRequest) error {
	s.requests = append(s.requests, req)
	return s.err
}

func envelope(t *testing.T, eventType string, data any) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(eventType, "instance-service", data)
	require.NoError(t, err)
	return env
}

func TestHandle_ForwardsPaymentRequest(t *testing.T) {
	svc := &stubService{}
	c := NewPaymentRequestConsumer(svc, zap.NewNop())

	req := models.PaymentRequest{OrderID: "order-1", UserID: "user-1", Amount: 1999, Currency: "usd"}
	require.NoError(t, c.Handle(context.Background(), envelope(t, events.PaymentRequested, req)))

	require.Len(t, svc.requests, 1)
	assert.Equal(t, req, svc.requests[0])
}

func TestHandle_PropagatesErrorForRedelivery(t *testing.T) {
	svc := &stubService{err: errors.New("stripe unavailable")}
	c := NewPaymentRequestConsumer(svc, zap.NewNop())

	err := c.Handle(context.Background(), envelope(t, events.PaymentRequested, models.PaymentRequest{OrderID: "o"}))
	assert.Error(t, err)
}

func TestHandle_IgnoresOtherEvents(t *testing.T) {
	svc := &stubService{}
	c := NewPaymentRequestConsumer(svc, zap.NewNop())

	require.NoError(t, c.Handle(context.Background(), envelope(t, events.CartCheckedOut, map[string]string{"checkout_id": "c"})))
	assert.Empty(t, svc.requests)
}

func TestHandle_DropsMalformedPayload(t *testing.T) {
	svc := &stubService{}
	c := NewPaymentRequestConsumer(svc, zap.NewNop())

	env := envelope(t, events.PaymentRequested, nil)
	env.Data = []byte(`"not an object"`)
	require.NoError(t, c.Handle(context.Background(), env))
	assert.Empty(t, svc.requests)
}
