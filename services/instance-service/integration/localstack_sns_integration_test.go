package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/models"
)

// Runs only when RUN_LOCALSTACK_INTEGRATION=true and LocalStack is reachable
// at AWS_ENDPOINT. INSTANCE_EVENTS_TOPIC must be subscribed by
// INSTANCE_TEST_QUEUE_URL.
func TestInstanceEvents_LocalStack(t *testing.T) {
	if os.Getenv("RUN_LOCALSTACK_INTEGRATION") != "true" {
		t.Skip("skipping localstack integration test; set RUN_LOCALSTACK_INTEGRATION=true to run")
	}
	topic := os.Getenv("INSTANCE_EVENTS_TOPIC")
	queue := os.Getenv("INSTANCE_TEST_QUEUE_URL")
	if topic == "" || queue == "" {
		t.Fatalf("INSTANCE_EVENTS_TOPIC and INSTANCE_TEST_QUEUE_URL must be set for integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger := zap.NewNop()
	cfg := events.Config{Bus: events.BusSNS, Source: "integration-test"}

	pub, err := events.NewTopicPublisher(ctx, cfg, topic, logger)
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, events.InstanceDeployed, models.InstanceEvent{InstanceID: "it-1", Status: models.InstanceRunning}))

	sub, err := events.NewSubscriber(ctx, cfg, queue, logger)
	require.NoError(t, err)

	got := make(chan models.InstanceEvent, 1)
	go func() {
		_ = sub.Run(ctx, func(_ context.Context, env events.Envelope) error {
			var ev models.InstanceEvent
			if env.Type == events.InstanceDeployed && env.Bind(&ev) == nil && ev.InstanceID == "it-1" {
				select {
				case got <- ev:
				default:
				}
			}
			return nil
		})
	}()

	select {
	case ev := <-got:
		require.Equal(t, models.InstanceRunning, ev.Status)
	case <-ctx.Done():
		t.Fatal("timed out waiting for instance event")
	}
}
