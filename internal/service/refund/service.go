package refund

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/database"
	"github.com/Additional-Code/tableorder/internal/entity"
	orderrepo "github.com/Additional-Code/tableorder/internal/repository/order"
	ordersvc "github.com/Additional-Code/tableorder/internal/service/order"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tableorder/service/refund")

// Outcome describes what a full refund did.
type Outcome string

const (
	// OutcomeStatusRefunded means a lineless order was marked Refunded.
	OutcomeStatusRefunded Outcome = "status_refunded"
	// OutcomeAdjusted means refund entries were appended for the remaining quantities.
	OutcomeAdjusted Outcome = "adjusted"
	// OutcomeNothingToRefund means every line was already fully refunded.
	OutcomeNothingToRefund Outcome = "nothing_to_refund"
)

// FullRefund reports the result of RefundFull.
type FullRefund struct {
	Order   *entity.Order
	Outcome Outcome
	Entries []*entity.AdjustmentEntry
}

// Line is the refundable state of one food within an order.
type Line struct {
	FoodID    int64
	Name      string
	Price     int64
	Ordered   int
	Refunded  int
	Remaining int
}

// Amount is the value still refundable for the food.
func (l Line) Amount() int64 {
	return int64(l.Remaining) * l.Price
}

// Summary lists what may still be refunded from an order.
type Summary struct {
	Order *entity.Order
	Lines []Line
}

// RemainingAmount sums the refundable value of every line.
func (s *Summary) RemainingAmount() int64 {
	return lo.SumBy(s.Lines, func(l Line) int64 { return l.Amount() })
}

// Service appends refund and stock-correction entries to the adjustment ledger. Order
// lines are never modified; every mutation locks the order row first so concurrent
// refunds see each other's entries.
type Service struct {
	conns  *database.Connections
	orders *orderrepo.Repository
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Orders      *orderrepo.Repository
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		conns:  p.Connections,
		orders: p.Orders,
		logger: p.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RefundLine refunds quantity units of one food of a completed order.
func (s *Service) RefundLine(ctx context.Context, orderID string, foodID int64, quantity int) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "RefundService.RefundLine", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Int64("food.id", foodID),
		attribute.Int("refund.quantity", quantity),
	))
	defer span.End()

	var order *entity.Order
	err := s.withLockedOrder(ctx, orderID, func(ctx context.Context, orders *orderrepo.Repository, locked *entity.Order) error {
		if locked.Status != entity.StatusCompleted {
			return ErrOrderNotCompleted
		}
		entry, err := s.entryFor(locked, foodID, quantity, entity.ReasonRefund, locked.RefundableQuantity(foodID))
		if err != nil {
			return err
		}
		if err := orders.AppendAdjustments(ctx, []*entity.AdjustmentEntry{entry}); err != nil {
			return err
		}
		locked.Adjustments = append(locked.Adjustments, entry)
		order = locked
		return nil
	})
	if err != nil {
		return nil, s.mapError(span, err)
	}

	if s.logger != nil {
		s.logger.Info("order line refunded",
			zap.String("order_id", orderID),
			zap.Int64("food_id", foodID),
			zap.Int("quantity", quantity),
		)
	}
	return order, nil
}

// RefundFull voids whatever is left of a completed order. An order without lines is
// marked Refunded. An order with lines gets refund entries for every remaining quantity
// and keeps its Completed status. A repeated call finds nothing left and writes nothing.
func (s *Service) RefundFull(ctx context.Context, orderID string) (*FullRefund, error) {
	ctx, span := serviceTracer.Start(ctx, "RefundService.RefundFull", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	var result *FullRefund
	err := s.withLockedOrder(ctx, orderID, func(ctx context.Context, orders *orderrepo.Repository, locked *entity.Order) error {
		if locked.Status != entity.StatusCompleted {
			return ErrOrderNotCompleted
		}

		if !locked.HasLines() {
			now := s.now()
			if err := orders.UpdateStatus(ctx, locked.ID, entity.StatusRefunded, now); err != nil {
				return err
			}
			locked.Status = entity.StatusRefunded
			locked.UpdatedAt = now
			result = &FullRefund{Order: locked, Outcome: OutcomeStatusRefunded}
			return nil
		}

		entries := make([]*entity.AdjustmentEntry, 0)
		for _, foodID := range locked.FoodIDs() {
			remaining := locked.RefundableQuantity(foodID)
			if remaining <= 0 {
				continue
			}
			entry, err := s.entryFor(locked, foodID, remaining, entity.ReasonRefund, remaining)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		if len(entries) == 0 {
			result = &FullRefund{Order: locked, Outcome: OutcomeNothingToRefund}
			return nil
		}
		if err := orders.AppendAdjustments(ctx, entries); err != nil {
			return err
		}
		locked.Adjustments = append(locked.Adjustments, entries...)
		result = &FullRefund{Order: locked, Outcome: OutcomeAdjusted, Entries: entries}
		return nil
	})
	if err != nil {
		return nil, s.mapError(span, err)
	}

	if s.logger != nil {
		s.logger.Info("order fully refunded",
			zap.String("order_id", orderID),
			zap.String("outcome", string(result.Outcome)),
			zap.Int("entries", len(result.Entries)),
		)
	}
	return result, nil
}

// AdjustLine records a stock correction (sold out, unavailable or damaged) against an
// order that has not been refunded. The quantity is capped by the effective quantity.
func (s *Service) AdjustLine(ctx context.Context, orderID string, foodID int64, quantity int, reason entity.AdjustmentReason) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "RefundService.AdjustLine", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Int64("food.id", foodID),
		attribute.String("adjustment.reason", string(reason)),
	))
	defer span.End()

	if !reason.Valid() || reason == entity.ReasonRefund {
		return nil, s.mapError(span, ErrInvalidReason)
	}

	var order *entity.Order
	err := s.withLockedOrder(ctx, orderID, func(ctx context.Context, orders *orderrepo.Repository, locked *entity.Order) error {
		if locked.Status == entity.StatusRefunded {
			return ErrOrderRefunded
		}
		entry, err := s.entryFor(locked, foodID, quantity, reason, locked.EffectiveQuantity(foodID))
		if err != nil {
			return err
		}
		if err := orders.AppendAdjustments(ctx, []*entity.AdjustmentEntry{entry}); err != nil {
			return err
		}
		locked.Adjustments = append(locked.Adjustments, entry)
		order = locked
		return nil
	})
	if err != nil {
		return nil, s.mapError(span, err)
	}

	if s.logger != nil {
		s.logger.Info("order line adjusted",
			zap.String("order_id", orderID),
			zap.Int64("food_id", foodID),
			zap.Int("quantity", quantity),
			zap.String("reason", string(reason)),
		)
	}
	return order, nil
}

// Refundable summarizes the remaining refundable quantity of every food in the order.
func (s *Service) Refundable(ctx context.Context, orderID string) (*Summary, error) {
	ctx, span := serviceTracer.Start(ctx, "RefundService.Refundable", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, s.mapError(span, err)
	}

	lines := lo.Map(order.FoodIDs(), func(foodID int64, _ int) Line {
		price, _ := order.LinePrice(foodID)
		line := Line{
			FoodID:    foodID,
			Price:     price,
			Ordered:   order.OrderedQuantity(foodID),
			Refunded:  order.AdjustedQuantity(foodID, entity.ReasonRefund),
			Remaining: order.RefundableQuantity(foodID),
		}
		if first, ok := lo.Find(order.Lines, func(l *entity.OrderLine) bool { return l.FoodID == foodID }); ok && first.Food != nil {
			line.Name = first.Food.Name
		}
		return line
	})
	return &Summary{Order: order, Lines: lines}, nil
}

func (s *Service) withLockedOrder(ctx context.Context, orderID string, fn func(context.Context, *orderrepo.Repository, *entity.Order) error) error {
	return s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		orders := s.orders.WithTx(tx)
		if err := orders.LockByID(ctx, orderID); err != nil {
			return err
		}
		order, err := orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		return fn(ctx, orders, order)
	})
}

// entryFor builds a negative ledger entry after checking quantity against remaining.
func (s *Service) entryFor(order *entity.Order, foodID int64, quantity int, reason entity.AdjustmentReason, remaining int) (*entity.AdjustmentEntry, error) {
	price, ok := order.LinePrice(foodID)
	if !ok {
		return nil, ErrFoodNotInOrder
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if quantity > remaining {
		return nil, &exceedsError{requested: quantity, remaining: remaining}
	}
	return &entity.AdjustmentEntry{
		OrderID:   order.ID,
		FoodID:    foodID,
		Quantity:  -quantity,
		Price:     price,
		Reason:    reason,
		CreatedAt: s.now(),
	}, nil
}

type exceedsError struct {
	requested int
	remaining int
}

func (e *exceedsError) Error() string { return ErrExceedsAvailable.Error() }

func (e *exceedsError) Unwrap() error { return ErrExceedsAvailable }

func (s *Service) mapError(span trace.Span, err error) error {
	var exceeds *exceedsError
	switch {
	case errors.Is(err, orderrepo.ErrNotFound):
		return errorbank.NotFound("order not found", errorbank.WithCause(ordersvc.ErrOrderNotFound))
	case errors.As(err, &exceeds):
		return errorbank.BadRequest("requested quantity exceeds the remaining quantity",
			errorbank.WithCause(ErrExceedsAvailable),
			errorbank.WithDetail("requested", exceeds.requested),
			errorbank.WithDetail("remaining", exceeds.remaining))
	case errors.Is(err, ErrOrderNotCompleted):
		return errorbank.BadRequest("only completed orders can be refunded", errorbank.WithCause(err))
	case errors.Is(err, ErrOrderRefunded):
		return errorbank.BadRequest("refunded orders cannot be adjusted", errorbank.WithCause(err))
	case errors.Is(err, ErrInvalidQuantity):
		return errorbank.BadRequest("quantity must be at least 1", errorbank.WithCause(err))
	case errors.Is(err, ErrFoodNotInOrder):
		return errorbank.BadRequest("food is not part of this order", errorbank.WithCause(err))
	case errors.Is(err, ErrInvalidReason):
		return errorbank.BadRequest("reason must be sold_out, unavailable or damaged", errorbank.WithCause(err))
	case database.IsContention(err):
		span.RecordError(err)
		span.SetStatus(codes.Error, "contention")
		return errorbank.Contention("the order is busy, please try again", errorbank.WithCause(err))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		if s.logger != nil {
			s.logger.Error("refund failed", zap.Error(err))
		}
		return errorbank.Internal("failed to update order ledger", errorbank.WithCause(err))
	}
}
