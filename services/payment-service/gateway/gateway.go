package gateway

import (
	"context"
	"encoding/json"
)

// Intent is the subset of a Stripe PaymentIntent the service uses.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	Metadata     map[string]string
}

type IntentParams struct {
	Amount     int64
	Currency   string
	CustomerID string
	Metadata   map[string]string
}

type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type SessionParams struct {
	Currency   string
	Items      []LineItem
	CustomerID string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// Session is the subset of a Stripe Checkout Session the service uses.
type Session struct {
	ID              string
	URL             string
	Status          string
	PaymentStatus   string
	PaymentIntentID string
	Metadata        map[string]string
}

type Card struct {
	ID         string `json:"id"`
	Brand      string `json:"brand"`
	Last4      string `json:"last4"`
	ExpMonth   int64  `json:"exp_month"`
	ExpYear    int64  `json:"exp_year"`
	CustomerID string `json:"-"`
}

// Event is a verified webhook event.
type Event struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

// StripeGateway wraps the Stripe API calls the payment service makes.
type StripeGateway interface {
	CreatePaymentIntent(ctx context.Context, p IntentParams) (*Intent, error)
	GetPaymentIntent(ctx context.Context, id string) (*Intent, error)

	CreateCheckoutSession(ctx context.Context, p SessionParams) (*Session, error)
	GetCheckoutSession(ctx context.Context, id string) (*Session, error)

	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	DefaultPaymentMethod(ctx context.Context, customerID string) (string, error)
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	ListCards(ctx context.Context, customerID string) ([]Card, error)
	GetPaymentMethod(ctx context.Context, id string) (*Card, error)
	AttachPaymentMethod(ctx context.Context, id, customerID string) (*Card, error)
	DetachPaymentMethod(ctx context.Context, id string) error

	ConstructEvent(payload []byte, signature string) (*Event, error)
}
