package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types exchanged between services.
const (
	UserRegistered         = "user.registered"
	ListingCreated         = "listing.created"
	ProviderApproved       = "provider.approved"
	CartCheckedOut         = "cart.checked_out"
	PaymentRequested       = "payment.requested"
	PaymentCheckoutCreated = "payment.checkout_created"
	PaymentSucceeded       = "payment.succeeded"
	PaymentFailed          = "payment.failed"
	InstanceDeployed       = "instance.deployed"
	InstanceFailed         = "instance.failed"
)

// Envelope wraps every message on the bus.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Source     string          `json:"source"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// snsNotification is the wrapper SNS adds when delivering to an SQS subscription
// without raw message delivery.
type snsNotification struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// NewEnvelope marshals data into a fresh envelope.
func NewEnvelope(eventType, source string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		Source:     source,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

// Decode parses a message body, unwrapping the SNS notification envelope first
// when present.
func Decode(body []byte) (Envelope, error) {
	var note snsNotification
	if err := json.Unmarshal(body, &note); err == nil && note.Type == "Notification" && note.Message != "" {
		body = []byte(note.Message)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// Bind unmarshals the envelope payload into v.
func (e Envelope) Bind(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
