//go:build integration

package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"

	"booking-service/internal/infra/storage/memory"
)

const paymentsTopic = "payments.events.v1"

func setupKafka(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
	})
	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	admin, err := sarama.NewClusterAdmin(brokers, cfg)
	require.NoError(t, err)
	defer admin.Close()
	require.NoError(t, admin.CreateTopic(paymentsTopic, &sarama.TopicDetail{NumPartitions: 1, ReplicationFactor: 1}, false))
	return brokers
}

func TestPaymentEventsRoundTrip(t *testing.T) {
	brokers := setupKafka(t)
	ctx := context.Background()

	producer, err := NewProducer(brokers, nil)
	require.NoError(t, err)
	defer producer.Close()

	succeeded := []byte(`{"specversion":"1.0","id":"evt-1","type":"payment.intent.succeeded.v1","data":{"payment_intent_id":"pi_1"}}`)
	headers := map[string]string{"ce_type": "payment.intent.succeeded.v1"}
	require.NoError(t, producer.Publish(ctx, paymentsTopic, "pi_1", succeeded, headers))
	require.NoError(t, producer.Publish(ctx, paymentsTopic, "pi_1", succeeded, headers))
	require.NoError(t, producer.Publish(ctx, paymentsTopic, "pi_2",
		[]byte(`{"specversion":"1.0","id":"evt-2","type":"payment.intent.canceled.v1","data":{"payment_intent_id":"pi_2"}}`), nil))

	stub := &settlementBus{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	consumer, err := NewConsumer(brokers, "booking-test-"+uuid.NewString()[:8], nil,
		PaymentEventsHandler{Commands: stub.bus(), Inbox: memory.NewInbox(), Logger: logger}, logger)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Run(runCtx, []string{paymentsTopic}) }()

	require.Eventually(t, func() bool {
		return stub.confirmed.Load() == 1 && stub.cancelled.Load() == 1
	}, 60*time.Second, 200*time.Millisecond)

	cancel()
	<-done
	require.NoError(t, consumer.Close())
	assert.Equal(t, int32(1), stub.confirmed.Load(), "redelivered events are applied once")
}
