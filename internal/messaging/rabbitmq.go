package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/config"
)

// rabbitClient publishes to a durable topic exchange and consumes from one queue bound
// to the configured routing key. Topic reports the routing key.
type rabbitClient struct {
	cfg    config.RabbitMQ
	logger *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	publish *amqp.Channel
}

func newRabbitClient(lc fx.Lifecycle, cfg config.Messaging, logger *zap.Logger) (Client, error) {
	client := &rabbitClient{cfg: cfg.RabbitMQ, logger: logger.Named("rabbitmq")}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			client.mu.Lock()
			defer client.mu.Unlock()
			return client.connectLocked()
		},
		OnStop: func(ctx context.Context) error {
			client.logger.Info("closing rabbitmq client")
			return client.close()
		},
	})

	return client, nil
}

func (r *rabbitClient) connectLocked() error {
	if r.conn != nil && !r.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := r.declare(ch); err != nil {
		_ = conn.Close()
		return err
	}

	r.conn = conn
	r.publish = ch
	r.logger.Info("rabbitmq connected",
		zap.String("exchange", r.cfg.Exchange),
		zap.String("queue", r.cfg.Queue),
	)
	return nil
}

func (r *rabbitClient) declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(r.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", r.cfg.Exchange, err)
	}
	if _, err := ch.QueueDeclare(r.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", r.cfg.Queue, err)
	}
	if err := ch.QueueBind(r.cfg.Queue, r.cfg.RoutingKey, r.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", r.cfg.Queue, err)
	}
	return nil
}

func (r *rabbitClient) Publish(ctx context.Context, key []byte, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.connectLocked(); err != nil {
		return err
	}
	return r.publish.PublishWithContext(ctx, r.cfg.Exchange, r.cfg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    string(key),
		Timestamp:    time.Now().UTC(),
		Body:         value,
	})
}

// Consume opens a dedicated channel so each worker gets its own prefetch window.
// Failed deliveries are nacked with requeue.
func (r *rabbitClient) Consume(ctx context.Context, handler Handler) error {
	ch, err := r.consumerChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(r.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set rabbitmq qos: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, r.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", r.cfg.Queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			if err := handler(ctx, fromDelivery(d)); err != nil {
				r.logger.Error("message handler failed", zap.Error(err), zap.Uint64("delivery_tag", d.DeliveryTag))
				if nackErr := d.Nack(false, true); nackErr != nil {
					r.logger.Warn("nack failed", zap.Error(nackErr))
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				r.logger.Warn("ack failed", zap.Error(err))
			}
		}
	}
}

func (r *rabbitClient) consumerChannel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.connectLocked(); err != nil {
		return nil, err
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	return ch, nil
}

func (r *rabbitClient) Topic() string { return r.cfg.RoutingKey }

func (r *rabbitClient) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn, r.publish = nil, nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

func fromDelivery(d amqp.Delivery) Message {
	var headers map[string]string
	if len(d.Headers) > 0 {
		headers = make(map[string]string, len(d.Headers))
		for k, v := range d.Headers {
			headers[k] = fmt.Sprint(v)
		}
	}
	return Message{
		Topic:   d.RoutingKey,
		Key:     []byte(d.MessageId),
		Value:   d.Body,
		Headers: headers,
		Offset:  int64(d.DeliveryTag),
		Time:    d.Timestamp,
	}
}
