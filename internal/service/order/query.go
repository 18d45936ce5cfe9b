package order

import (
	"context"

	"github.com/samber/lo"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/entity"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

// History is the visible order list of one table or of the whole venue.
type History struct {
	Orders     []*entity.Order
	TotalSpent int64
}

// Get loads the full order aggregate.
func (s *Service) Get(ctx context.Context, orderID string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, s.lookupError(span, err)
	}
	return order, nil
}

// History lists visible orders with a positive total, newest first. TotalSpent sums
// every listed order that is not a pending pre-order.
func (s *Service) History(ctx context.Context, tableID string) (*History, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.History", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	orders, err := s.orders.ListVisible(ctx, tableID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load orders", errorbank.WithCause(err))
	}

	listed := lo.Filter(orders, func(o *entity.Order, _ int) bool { return o.Listed() })
	spent := lo.SumBy(listed, func(o *entity.Order) int64 {
		if o.Status == entity.StatusPreOrder {
			return 0
		}
		return o.TotalAmount()
	})
	return &History{Orders: listed, TotalSpent: spent}, nil
}

// Delete removes an order with its lines and adjustment entries.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Delete", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return s.orders.WithTx(tx).Delete(ctx, orderID)
	})
	if err != nil {
		return s.lookupError(span, err)
	}
	if s.logger != nil {
		s.logger.Info("order deleted", zap.String("order_id", orderID))
	}
	return nil
}
