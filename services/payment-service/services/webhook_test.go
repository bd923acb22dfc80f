package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/gateway"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/models"
)

func webhookEvent(t *testing.T, id, eventType string, object any) *gateway.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &gateway.Event{ID: id, Type: eventType, Raw: raw}
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	h := newHarness()
	h.stripe.eventErr = errors.New("signature mismatch")

	err := h.svc.HandleWebhook(context.Background(), []byte("{}"), "t=1,v1=bad")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestHandleWebhook_PaymentIntentSucceededDeduplicated(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)
	h.stripe.event = webhookEvent(t, "evt_1", "payment_intent.succeeded", map[string]any{"id": "pi_1"})

	require.NoError(t, h.svc.HandleWebhook(ctx, nil, "sig"))
	require.NoError(t, h.svc.HandleWebhook(ctx, nil, "sig"))

	assert.Equal(t, models.StatusSucceeded, h.repo.status(uuid.MustParse(res.PaymentID)))
	assert.Equal(t, []string{events.PaymentSucceeded}, h.publisher.types())
}

func TestHandleWebhook_DeclinedAttemptThenRetrySucceeds(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)
	paymentID := uuid.MustParse(res.PaymentID)

	h.stripe.event = webhookEvent(t, "evt_1", "payment_intent.payment_failed", map[string]any{
		"id":                 "pi_1",
		"last_payment_error": map[string]any{"message": "Your card was declined."},
	})
	require.NoError(t, h.svc.HandleWebhook(ctx, nil, "sig"))

	stored, err := h.repo.GetPaymentByID(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, stored.Status)
	assert.Equal(t, "Your card was declined.", stored.LastError)
	assert.Empty(t, h.publisher.types())

	h.stripe.intents["pi_1"].Status = "succeeded"
	h.stripe.event = webhookEvent(t, "evt_2", "payment_intent.succeeded", map[string]any{"id": "pi_1"})
	require.NoError(t, h.svc.HandleWebhook(ctx, nil, "sig"))

	confirmed, err := h.svc.Confirm(ctx, alice, "pi_1", "pi_1_secret")
	require.NoError(t, err)
	assert.True(t, confirmed.Success)
	assert.Equal(t, models.StatusSucceeded, h.repo.status(paymentID))
	assert.Equal(t, []string{events.PaymentSucceeded}, h.publisher.types())
}

func TestHandleWebhook_TerminalStatusNotOverwritten(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)

	h.stripe.event = webhookEvent(t, "evt_1", "payment_intent.canceled", map[string]any{"id": "pi_1"})
	require.NoError(t, h.svc.HandleWebhook(ctx, nil, "sig"))

	h.stripe.event = webhookEvent(t, "evt_2", "payment_intent.succeeded", map[string]any{"id": "pi_1"})
	require.NoError(t, h.svc.HandleWebhook(ctx, nil, "sig"))

	assert.Equal(t, models.StatusCanceled, h.repo.status(uuid.MustParse(res.PaymentID)))
	assert.Equal(t, []string{events.PaymentFailed}, h.publisher.types())
}

func TestHandleWebhook_ExpiredCheckoutFails(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateCheckoutSession(ctx, alice, CheckoutInput{VMID: "vm-1"})
	require.NoError(t, err)
	h.stripe.event = webhookEvent(t, "evt_1", "checkout.session.expired", map[string]any{"id": "cs_1"})

	require.NoError(t, h.svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, models.StatusFailed, h.repo.status(uuid.MustParse(res.PaymentID)))
	assert.Equal(t, []string{events.PaymentFailed}, h.publisher.types())
}

func TestHandleWebhook_CheckoutCompletedForOrder(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	orderID := uuid.New()

	require.NoError(t, h.svc.HandlePaymentRequest(ctx, models.PaymentRequest{
		OrderID: orderID.String(), UserID: "user-alice", Amount: 2500,
	}))

	h.stripe.event = webhookEvent(t, "evt_9", "checkout.session.completed", map[string]any{
		"id":             "cs_1",
		"payment_status": "paid",
	})
	require.NoError(t, h.svc.HandleWebhook(ctx, nil, "sig"))

	require.Equal(t, []string{events.PaymentCheckoutCreated, events.PaymentSucceeded}, h.publisher.types())
	ev := h.publisher.events[1].Data.(models.PaymentEvent)
	require.NotNil(t, ev.OrderID)
	assert.Equal(t, orderID.String(), *ev.OrderID)
	assert.Equal(t, int64(2500), ev.Amount)
}

func TestHandleWebhook_UnpaidCheckoutIgnored(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.CreateCheckoutSession(ctx, alice, CheckoutInput{VMID: "vm-1"})
	require.NoError(t, err)
	h.stripe.event = webhookEvent(t, "evt_1", "checkout.session.completed", map[string]any{
		"id":             "cs_1",
		"payment_status": "unpaid",
	})

	require.NoError(t, h.svc.HandleWebhook(ctx, nil, "sig"))
	assert.Empty(t, h.publisher.types())
}

func TestHandleWebhook_FallsBackToMetadata(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)
	h.stripe.event = webhookEvent(t, "evt_1", "payment_intent.succeeded", map[string]any{
		"id":       "pi_unknown",
		"metadata": map[string]string{"payment_id": res.PaymentID},
	})

	require.NoError(t, h.svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, models.StatusSucceeded, h.repo.status(uuid.MustParse(res.PaymentID)))
}

func TestHandleWebhook_UnknownPaymentAcknowledged(t *testing.T) {
	h := newHarness()
	h.stripe.event = webhookEvent(t, "evt_1", "payment_intent.succeeded", map[string]any{"id": "pi_nobody"})

	assert.NoError(t, h.svc.HandleWebhook(context.Background(), nil, "sig"))
	assert.Empty(t, h.publisher.types())
}

func TestHandleWebhook_FailureReleasesEvent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)
	h.repo.transitionErr = errors.New("connection reset")
	h.stripe.event = webhookEvent(t, "evt_1", "payment_intent.succeeded", map[string]any{"id": "pi_1"})

	err = h.svc.HandleWebhook(ctx, nil, "sig")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	assert.Equal(t, []string{"evt_1"}, h.repo.forgotten)

	h.repo.transitionErr = nil
	require.NoError(t, h.svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, []string{events.PaymentSucceeded}, h.publisher.types())
}

func TestHandleWebhook_UnhandledType(t *testing.T) {
	h := newHarness()
	h.stripe.event = webhookEvent(t, "evt_1", "customer.created", map[string]any{"id": "cus_1"})

	assert.NoError(t, h.svc.HandleWebhook(context.Background(), nil, "sig"))
}
