package gateway

import (
	"context"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

type StripeClient struct {
	api           *client.API
	webhookSecret string
}

func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	return &StripeClient{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
	}
}

func (s *StripeClient) CreatePaymentIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, err
	}
	return toIntent(pi), nil
}

func (s *StripeClient) GetPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, err
	}
	return toIntent(pi), nil
}

func (s *StripeClient) CreateCheckoutSession(ctx context.Context, p SessionParams) (*Session, error) {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.Currency),
				UnitAmount: stripe.Int64(it.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          items,
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return toSession(sess), nil
}

func (s *StripeClient) GetCheckoutSession(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, err
	}
	return toSession(sess), nil
}

func (s *StripeClient) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	cus, err := s.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return cus.ID, nil
}

func (s *StripeClient) DefaultPaymentMethod(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cus, err := s.api.Customers.Get(customerID, params)
	if err != nil {
		return "", err
	}
	if cus.InvoiceSettings == nil || cus.InvoiceSettings.DefaultPaymentMethod == nil {
		return "", nil
	}
	return cus.InvoiceSettings.DefaultPaymentMethod.ID, nil
}

func (s *StripeClient) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	params.Context = ctx
	_, err := s.api.Customers.Update(customerID, params)
	return err
}

func (s *StripeClient) ListCards(ctx context.Context, customerID string) ([]Card, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Context = ctx

	cards := []Card{}
	it := s.api.PaymentMethods.List(params)
	for it.Next() {
		cards = append(cards, toCard(it.PaymentMethod()))
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

func (s *StripeClient) GetPaymentMethod(ctx context.Context, id string) (*Card, error) {
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx
	pm, err := s.api.PaymentMethods.Get(id, params)
	if err != nil {
		return nil, err
	}
	card := toCard(pm)
	return &card, nil
}

func (s *StripeClient) AttachPaymentMethod(ctx context.Context, id, customerID string) (*Card, error) {
	params := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	pm, err := s.api.PaymentMethods.Attach(id, params)
	if err != nil {
		return nil, err
	}
	card := toCard(pm)
	return &card, nil
}

func (s *StripeClient) DetachPaymentMethod(ctx context.Context, id string) error {
	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx
	_, err := s.api.PaymentMethods.Detach(id, params)
	return err
}

// ConstructEvent verifies the Stripe-Signature header. API version mismatches
// are tolerated because only a few stable fields are read.
func (s *StripeClient) ConstructEvent(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil {
		out.Raw = ev.Data.Raw
	}
	return out, nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

func toSession(sess *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            sess.ID,
		URL:           sess.URL,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		Metadata:      sess.Metadata,
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	return out
}

func toCard(pm *stripe.PaymentMethod) Card {
	c := Card{ID: pm.ID}
	if pm.Card != nil {
		c.Brand = string(pm.Card.Brand)
		c.Last4 = pm.Card.Last4
		c.ExpMonth = pm.Card.ExpMonth
		c.ExpYear = pm.Card.ExpYear
	}
	if pm.Customer != nil {
		c.CustomerID = pm.Customer.ID
	}
	return c
}
