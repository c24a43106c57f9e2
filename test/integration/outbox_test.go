package integration

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderkafka "marketplace-backend/internal/order/infrastructure/kafka"
	orderpg "marketplace-backend/internal/order/infrastructure/postgres"
	"marketplace-backend/pkg/logging"
	"marketplace-backend/pkg/outbox"
)

func createTopic(t *testing.T, brokers []string, topic string) {
	t.Helper()
	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestOutboxRelayPublishesToKafka drives one outbox row through the relay and
// reads it back from the topic.
func TestOutboxRelayPublishesToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	pool := setupPool(t)

	brokers, terminate, err := StartKafka(ctx)
	require.NoError(t, err)
	t.Cleanup(terminate)

	const topic = "marketplace.order.events"
	createTopic(t, brokers, topic)

	log := logging.New("integration-test")
	store := orderpg.NewOutboxStore(log, pool)
	writer := orderkafka.NewWriter(brokers)
	t.Cleanup(func() { _ = writer.Close() })
	relay := outbox.NewRelay(log, store, outbox.NewDispatcher(log, writer, topic), "relay-1")

	orderID := uuid.New()
	_, err = pool.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, status)
		VALUES ('order', $1, 'OrderPlaced', $2, 'pending')
	`, orderID.String(), fmt.Sprintf(`{"order_id":%q}`, orderID))
	require.NoError(t, err)

	relayCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	go func() { _ = relay.Run(relayCtx) }()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: "integration-test",
	})
	t.Cleanup(func() { _ = reader.Close() })

	readCtx, cancelRead := context.WithTimeout(ctx, 30*time.Second)
	defer cancelRead()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)

	assert.Equal(t, orderID.String(), string(msg.Key))
	var eventType string
	for _, h := range msg.Headers {
		if h.Key == "event_type" {
			eventType = string(h.Value)
		}
	}
	assert.Equal(t, "OrderPlaced", eventType)

	require.Eventually(t, func() bool {
		var status string
		if err := pool.QueryRow(ctx,
			`SELECT status FROM outbox WHERE aggregate_id = $1`, orderID.String()).Scan(&status); err != nil {
			return false
		}
		return status == "sent"
	}, 10*time.Second, 200*time.Millisecond)
}
