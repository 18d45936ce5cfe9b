package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/messaging"
	ordersvc "github.com/Additional-Code/tableorder/internal/service/order"
	"github.com/Additional-Code/tableorder/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/tableorder/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderCompletedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// HandlerParams defines dependencies for the order handlers.
type HandlerParams struct {
	fx.In

	Client   messaging.Client
	Notifier ordersvc.CompletionNotifier
	Logger   *zap.Logger
}

// NewOrderCompletedHandler sends the completion notification for each
// OrderCompletedEvent. Undecodable payloads are logged and dropped; notification
// failures are returned so the bus redelivers the event.
func NewOrderCompletedHandler(p HandlerParams) worker.HandlerRegistration {
	logger := p.Logger.Named("worker.order")

	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.completed", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.OrderCompletedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil || event.ID == "" {
			logger.Error("dropping undecodable order completed event", zap.Error(err), zap.ByteString("key", msg.Key))
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		span.SetAttributes(attribute.String("order.id", event.ID))

		if err := p.Notifier.NotifyOrderCompleted(ctx, event.ID); err != nil {
			logger.Warn("completion notification failed", zap.String("order_id", event.ID), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "notify failed")
			return err
		}

		logger.Info("order completed event processed",
			zap.String("order_id", event.ID),
			zap.String("table_id", event.TableID),
			zap.Int64("total_amount", event.TotalAmount),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   p.Client.Topic(),
		Handler: handler,
	}
}
