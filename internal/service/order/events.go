package order

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/entity"
)

// OrderCompletedEvent is emitted when an order transitions to Completed.
type OrderCompletedEvent struct {
	ID          string    `json:"id"`
	TableID     string    `json:"table_id"`
	PayerName   string    `json:"payer_name,omitempty"`
	TotalAmount int64     `json:"total_amount"`
	CompletedAt time.Time `json:"completed_at"`
}

// CompletionNotifier delivers the completion message for an order.
type CompletionNotifier interface {
	NotifyOrderCompleted(ctx context.Context, orderID string) error
}

func (s *Service) orderCompleted(ctx context.Context, order *entity.Order, at time.Time) {
	if s.events.enabled && s.publisher != nil {
		s.publishOrderCompleted(ctx, order, at)
		return
	}
	if s.notifier == nil {
		return
	}

	// Without a bus the notification runs in the background so it never blocks the caller.
	notifyCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.notifier.NotifyOrderCompleted(notifyCtx, order.ID); err != nil && s.logger != nil {
			s.logger.Warn("completion notification failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}()
}

func (s *Service) publishOrderCompleted(ctx context.Context, order *entity.Order, at time.Time) {
	event := OrderCompletedEvent{
		ID:          order.ID,
		TableID:     order.TableID,
		PayerName:   order.PayerName,
		TotalAmount: order.TotalAmount(),
		CompletedAt: at,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal order completed", zap.Error(err))
		}
		return
	}
	if err := s.publisher.Publish(ctx, []byte("order-"+order.ID), payload); err != nil {
		if s.logger != nil {
			s.logger.Error("publish order completed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
}
