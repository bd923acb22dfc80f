package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/catalog"
	"github.com/yashrajoria/vm-marketplace/pkg/events"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/models"
)

var alice = Actor{UserID: "user-alice", Email: "alice@example.com"}

type harness struct {
	svc       PaymentService
	repo      *memPaymentRepo
	stripe    *fakeGateway
	publisher *recordingPublisher
}

func newHarness() *harness {
	h := &harness{
		repo:      newMemPaymentRepo(),
		stripe:    newFakeGateway(),
		publisher: &recordingPublisher{},
	}
	listings := fakeCatalog{
		"vm-1": {ID: "vm-1", Name: "Ubuntu Dev Box", Price: 19.99, Status: "available", Regions: []string{"us-east-1"}},
		"vm-2": {ID: "vm-2", Name: "Rented Box", Price: 5, Status: "rented"},
	}
	h.svc = NewPaymentService(h.repo, h.stripe, listings, h.publisher, nil,
		Options{FrontendURL: "https://app.test"}, zap.NewNop())
	return h
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr), "expected *errors.Error, got %v", err)
	return appErr.Code
}

func TestCreateIntent_PricesServerSide(t *testing.T) {
	h := newHarness()

	res, err := h.svc.CreateIntent(context.Background(), alice, IntentInput{VMID: "vm-1", Quantity: 3, Region: "us-east-1"})
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", res.ClientSecret)

	assert.Equal(t, int64(5997), h.stripe.lastIntent.Amount)
	assert.Equal(t, "usd", h.stripe.lastIntent.Currency)
	assert.Equal(t, "cus_user-alice", h.stripe.lastIntent.CustomerID)
	assert.Equal(t, map[string]string{
		"vm_id":      "vm-1",
		"quantity":   "3",
		"region":     "us-east-1",
		"user_id":    "user-alice",
		"payment_id": res.PaymentID,
	}, h.stripe.lastIntent.Metadata)

	stored, err := h.repo.GetPaymentByID(context.Background(), uuid.MustParse(res.PaymentID))
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, stored.Status)
	assert.Equal(t, models.MethodIntent, stored.Method)
	assert.Equal(t, "pi_1", *stored.StripePaymentID)
}

func TestCreateIntent_ReusesCustomer(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)
	_, err = h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, h.stripe.customers)
	assert.Equal(t, int64(1999), h.stripe.lastIntent.Amount)
}

func TestCreateIntent_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   IntentInput
		code int
	}{
		{"quantity too large", IntentInput{VMID: "vm-1", Quantity: 11}, http.StatusBadRequest},
		{"negative quantity", IntentInput{VMID: "vm-1", Quantity: -1}, http.StatusBadRequest},
		{"unknown listing", IntentInput{VMID: "missing"}, http.StatusNotFound},
		{"listing not available", IntentInput{VMID: "vm-2"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			_, err := h.svc.CreateIntent(context.Background(), alice, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, statusOf(t, err))
			assert.Empty(t, h.repo.payments)
		})
	}
}

func TestCreateIntent_StripeFailure(t *testing.T) {
	h := newHarness()
	h.stripe.createErr = errors.New("card network down")

	_, err := h.svc.CreateIntent(context.Background(), alice, IntentInput{VMID: "vm-1"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, statusOf(t, err))
}

func TestCreateCheckoutSession(t *testing.T) {
	h := newHarness()
	orderID := uuid.New()

	res, err := h.svc.CreateCheckoutSession(context.Background(), alice, CheckoutInput{VMID: "vm-1", OrderID: orderID.String()})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", res.SessionID)
	assert.Equal(t, "https://checkout.test/cs_1", res.URL)

	p := h.stripe.lastSession
	assert.Equal(t, "https://app.test/dashboard?success=true", p.SuccessURL)
	assert.Equal(t, "https://app.test/dashboard?canceled=true", p.CancelURL)
	require.Len(t, p.Items, 1)
	assert.Equal(t, int64(1999), p.Items[0].UnitAmount)
	assert.Equal(t, int64(1), p.Items[0].Quantity)
	assert.Equal(t, orderID.String(), p.Metadata["order_id"])

	stored, err := h.repo.GetPaymentByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, models.MethodCheckout, stored.Method)
	assert.Equal(t, res.URL, stored.CheckoutURL)
}

func TestCreateCheckoutSession_InvalidOrderID(t *testing.T) {
	h := newHarness()

	_, err := h.svc.CreateCheckoutSession(context.Background(), alice, CheckoutInput{VMID: "vm-1", OrderID: "nope"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestConfirm_MissingInformation(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Confirm(context.Background(), alice, "pi_1", "")
	require.Error(t, err)
	assert.EqualError(t, err, "Missing payment information")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestConfirm_SucceededPublishesOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1", Quantity: 2, Region: "us-east-1"})
	require.NoError(t, err)
	h.stripe.intents["pi_1"].Status = "succeeded"

	first, err := h.svc.Confirm(ctx, alice, "pi_1", res.ClientSecret)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, "Payment confirmed and VM deployment initiated", first.Message)
	assert.Equal(t, res.PaymentID, first.PaymentID)

	second, err := h.svc.Confirm(ctx, alice, "pi_1", res.ClientSecret)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, []string{events.PaymentSucceeded}, h.publisher.types())
	ev := h.publisher.events[0].Data.(models.PaymentEvent)
	assert.Equal(t, "vm-1", ev.VMID)
	assert.Equal(t, 2, ev.Quantity)
	assert.Equal(t, int64(3998), ev.Amount)
	assert.Nil(t, ev.OrderID)
}

func TestConfirm_NotSucceeded(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)

	_, err = h.svc.Confirm(ctx, alice, "pi_1", res.ClientSecret)
	require.Error(t, err)
	assert.EqualError(t, err, "Payment not successful")
	assert.Empty(t, h.publisher.types())
}

func TestConfirm_SettledElsewhereWithoutSuccess(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)
	h.stripe.intents["pi_1"].Status = "succeeded"
	h.repo.settle(uuid.MustParse(res.PaymentID), models.StatusCanceled)

	_, err = h.svc.Confirm(ctx, alice, "pi_1", res.ClientSecret)
	require.Error(t, err)
	assert.EqualError(t, err, "Payment not successful")
	assert.Empty(t, h.publisher.types())
}

func TestConfirm_OtherUsersPayment(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)
	h.stripe.intents["pi_1"].Status = "succeeded"

	_, err = h.svc.Confirm(ctx, Actor{UserID: "mallory"}, "pi_1", res.ClientSecret)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestConfirm_WrongClientSecret(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)
	h.stripe.intents["pi_1"].Status = "succeeded"

	_, err = h.svc.Confirm(ctx, alice, "pi_1", "pi_1_guess")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestStatus_RefreshesFromStripe(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)
	id := uuid.MustParse(res.PaymentID)

	st, err := h.svc.Status(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, st.Status)
	assert.Equal(t, int64(1999), st.Amount)
	assert.Equal(t, "usd", st.Currency)

	h.stripe.intents["pi_1"].Status = "succeeded"
	st, err = h.svc.Status(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, st.Status)
	assert.Equal(t, []string{events.PaymentSucceeded}, h.publisher.types())
}

func TestStatus_CanceledReportsFailed(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)
	h.stripe.intents["pi_1"].Status = "canceled"

	st, err := h.svc.Status(ctx, alice, uuid.MustParse(res.PaymentID))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, st.Status)
	assert.Equal(t, models.StatusCanceled, h.repo.status(uuid.MustParse(res.PaymentID)))
	assert.Equal(t, []string{events.PaymentFailed}, h.publisher.types())
}

func TestStatus_CheckoutPaid(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateCheckoutSession(ctx, alice, CheckoutInput{VMID: "vm-1"})
	require.NoError(t, err)
	h.stripe.sessions[res.SessionID].PaymentStatus = "paid"

	st, err := h.svc.Status(ctx, alice, uuid.MustParse(res.PaymentID))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, st.Status)
}

func TestStatus_NotFound(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.svc.CreateIntent(ctx, alice, IntentInput{VMID: "vm-1"})
	require.NoError(t, err)

	_, err = h.svc.Status(ctx, Actor{UserID: "bob"}, uuid.MustParse(res.PaymentID))
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = h.svc.Status(ctx, alice, uuid.New())
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestHandlePaymentRequest_CreatesAndAnnouncesSession(t *testing.T) {
	h := newHarness()
	orderID := uuid.New()
	req := models.PaymentRequest{
		OrderID:  orderID.String(),
		UserID:   "user-alice",
		Currency: "usd",
		Items: []models.PaymentRequestItem{
			{VMID: "vm-1", Name: "Ubuntu Dev Box", Region: "us-east-1", Quantity: 2, Price: 19.99},
			{VMID: "vm-3", Name: "GPU Node", Region: "eu-west-1", Quantity: 1, Price: 120},
		},
	}

	require.NoError(t, h.svc.HandlePaymentRequest(context.Background(), req))

	require.Len(t, h.stripe.lastSession.Items, 2)
	assert.Equal(t, "Ubuntu Dev Box (us-east-1)", h.stripe.lastSession.Items[0].Name)
	assert.Equal(t, int64(1999), h.stripe.lastSession.Items[0].UnitAmount)

	stored, err := h.repo.GetPaymentByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(15998), stored.Amount)
	assert.Equal(t, "https://checkout.test/cs_1", stored.CheckoutURL)

	require.Equal(t, []string{events.PaymentCheckoutCreated}, h.publisher.types())
	ev := h.publisher.events[0].Data.(models.CheckoutCreatedEvent)
	assert.Equal(t, orderID.String(), ev.OrderID)
	assert.Equal(t, stored.ID.String(), ev.PaymentID)
	assert.Equal(t, stored.CheckoutURL, ev.CheckoutURL)
}

func TestHandlePaymentRequest_DuplicateReusesSession(t *testing.T) {
	h := newHarness()
	req := models.PaymentRequest{OrderID: uuid.NewString(), UserID: "user-alice", Amount: 4200}

	require.NoError(t, h.svc.HandlePaymentRequest(context.Background(), req))
	require.NoError(t, h.svc.HandlePaymentRequest(context.Background(), req))

	assert.Equal(t, 1, h.stripe.sessionCalls)
	assert.Equal(t, []string{events.PaymentCheckoutCreated, events.PaymentCheckoutCreated}, h.publisher.types())
	first := h.publisher.events[0].Data.(models.CheckoutCreatedEvent)
	second := h.publisher.events[1].Data.(models.CheckoutCreatedEvent)
	assert.Equal(t, first, second)
}

func TestHandlePaymentRequest_MalformedDropped(t *testing.T) {
	h := newHarness()

	err := h.svc.HandlePaymentRequest(context.Background(), models.PaymentRequest{OrderID: "not-a-uuid", UserID: "u"})
	assert.NoError(t, err)
	assert.Zero(t, h.stripe.sessionCalls)
}

func TestHandlePaymentRequest_StripeFailureRetries(t *testing.T) {
	h := newHarness()
	h.stripe.createErr = errors.New("stripe unavailable")
	req := models.PaymentRequest{OrderID: uuid.NewString(), UserID: "user-alice", Amount: 1000}

	require.Error(t, h.svc.HandlePaymentRequest(context.Background(), req))

	h.stripe.createErr = nil
	require.NoError(t, h.svc.HandlePaymentRequest(context.Background(), req))
	assert.Len(t, h.repo.payments, 1)
	assert.Equal(t, []string{events.PaymentCheckoutCreated}, h.publisher.types())
}

var _ catalog.Client = fakeCatalog{}
