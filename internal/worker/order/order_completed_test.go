package order_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/config"
	"github.com/Additional-Code/tableorder/internal/messaging"
	ordersvc "github.com/Additional-Code/tableorder/internal/service/order"
	"github.com/Additional-Code/tableorder/internal/worker"
	workerorder "github.com/Additional-Code/tableorder/internal/worker/order"
)

type recordingNotifier struct {
	mu   sync.Mutex
	ids  []string
	fail error
}

func (n *recordingNotifier) NotifyOrderCompleted(_ context.Context, orderID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, orderID)
	return n.fail
}

func (n *recordingNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.ids...)
}

// channelClient hands queued messages to the first consumer, then blocks.
type channelClient struct {
	topic    string
	messages chan messaging.Message
}

func (c *channelClient) Publish(_ context.Context, key, value []byte) error {
	c.messages <- messaging.Message{Topic: c.topic, Key: key, Value: value}
	return nil
}

func (c *channelClient) Consume(ctx context.Context, handler messaging.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.messages:
			_ = handler(ctx, msg)
		}
	}
}

func (c *channelClient) Topic() string { return c.topic }

func TestOrderCompletedHandler(t *testing.T) {
	client := &channelClient{topic: "orders.completed"}
	notifier := &recordingNotifier{}
	reg := workerorder.NewOrderCompletedHandler(workerorder.HandlerParams{Client: client, Notifier: notifier, Logger: zap.NewNop()})
	require.Equal(t, "orders.completed", reg.Topic)

	payload, err := json.Marshal(ordersvc.OrderCompletedEvent{ID: "o-1", TableID: "t-1", TotalAmount: 15000})
	require.NoError(t, err)

	require.NoError(t, reg.Handler(context.Background(), messaging.Message{Topic: reg.Topic, Value: payload}))
	require.NoError(t, reg.Handler(context.Background(), messaging.Message{Topic: reg.Topic, Value: []byte("not json")}))
	require.Equal(t, []string{"o-1"}, notifier.seen())

	notifier.fail = errors.New("webhook down")
	require.Error(t, reg.Handler(context.Background(), messaging.Message{Topic: reg.Topic, Value: payload}))
}

func TestEngineDispatchesToHandler(t *testing.T) {
	client := &channelClient{topic: "orders.completed", messages: make(chan messaging.Message, 4)}
	notifier := &recordingNotifier{}
	cfg := config.Config{Messaging: config.Messaging{
		Enabled: true,
		Workers: config.Worker{Enabled: true, Concurrency: 2, PollInterval: 10 * time.Millisecond},
	}}

	engine := worker.NewEngine(worker.Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: cfg,
		Registrations: []worker.HandlerRegistration{
			workerorder.NewOrderCompletedHandler(workerorder.HandlerParams{Client: client, Notifier: notifier, Logger: zap.NewNop()}),
		},
	})
	require.NoError(t, engine.Start(context.Background()))

	for _, id := range []string{"a", "b", "c"} {
		payload, err := json.Marshal(ordersvc.OrderCompletedEvent{ID: id})
		require.NoError(t, err)
		require.NoError(t, client.Publish(context.Background(), []byte("order-"+id), payload))
	}

	require.Eventually(t, func() bool { return len(notifier.seen()) == 3 }, time.Second, 5*time.Millisecond)
	require.ElementsMatch(t, []string{"a", "b", "c"}, notifier.seen())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, engine.Stop(ctx))
}

func TestEngineDisabledDoesNotConsume(t *testing.T) {
	client := &channelClient{topic: "orders.completed", messages: make(chan messaging.Message, 1)}
	engine := worker.NewEngine(worker.Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: config.Config{Messaging: config.Messaging{Enabled: true}},
	})

	require.NoError(t, engine.Start(context.Background()))
	require.NoError(t, engine.Stop(context.Background()))
}
