package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
)

func TestConstructEvent_VerifiesSignature(t *testing.T) {
	const secret = "whsec_test"
	client := NewStripeClient("sk_test_123", secret)

	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","api_version":"2020-08-27","data":{"object":{"id":"pi_1","object":"payment_intent","status":"succeeded"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	ev, err := client.ConstructEvent(payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "payment_intent.succeeded", ev.Type)
	assert.Contains(t, string(ev.Raw), `"pi_1"`)

	_, err = client.ConstructEvent(payload, "t=1,v1=deadbeef")
	assert.Error(t, err)
}
