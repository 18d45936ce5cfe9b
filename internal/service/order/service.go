package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/config"
	"github.com/Additional-Code/tableorder/internal/database"
	"github.com/Additional-Code/tableorder/internal/entity"
	"github.com/Additional-Code/tableorder/internal/messaging"
	foodrepo "github.com/Additional-Code/tableorder/internal/repository/food"
	orderrepo "github.com/Additional-Code/tableorder/internal/repository/order"
	tablerepo "github.com/Additional-Code/tableorder/internal/repository/table"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tableorder/service/order")

// Item is one requested line of a new order.
type Item struct {
	FoodID   int64
	Quantity int
}

// Service admits orders against the locked menu catalog and owns order status.
type Service struct {
	conns     *database.Connections
	orders    *orderrepo.Repository
	foods     *foodrepo.Repository
	tables    *tablerepo.Repository
	logger    *zap.Logger
	publisher messaging.Client
	notifier  CompletionNotifier
	events    eventsConfig
	admission config.Admission
	metrics   admissionMetrics
	now       func() time.Time
}

type eventsConfig struct {
	enabled bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Orders      *orderrepo.Repository
	Foods       *foodrepo.Repository
	Tables      *tablerepo.Repository
	Config      config.Config
	Logger      *zap.Logger
	Publisher   messaging.Client   `optional:"true"`
	Notifier    CompletionNotifier `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		conns:     p.Connections,
		orders:    p.Orders,
		foods:     p.Foods,
		tables:    p.Tables,
		logger:    p.Logger,
		publisher: p.Publisher,
		notifier:  p.Notifier,
		events:    eventsConfig{enabled: p.Config.Messaging.Enabled && p.Config.Messaging.Driver != "noop"},
		admission: p.Config.Admission,
		metrics:   newAdmissionMetrics(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder admits a paid order. The whole check-then-write sequence runs in one
// transaction holding row locks on every requested food, and lock contention is
// retried with exponential backoff up to the configured bound.
func (s *Service) CreateOrder(ctx context.Context, tableID string, items []Item) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("table.id", tableID),
		attribute.Int("order.items", len(items)),
	))
	defer span.End()

	if err := validateItems(items); err != nil {
		return nil, err
	}

	var (
		order    *entity.Order
		attempts int
	)
	backoff := retry.WithMaxRetries(uint64(s.admission.MaxRetries), retry.NewExponential(s.admission.RetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			s.metrics.retry(ctx)
		}
		admitted, err := s.admit(ctx, tableID, items)
		if err != nil {
			if database.IsContention(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		order = admitted
		return nil
	})
	span.SetAttributes(attribute.Int("admission.attempts", attempts))
	if err != nil {
		return nil, s.admissionError(ctx, span, err)
	}

	s.metrics.record(ctx, outcomeAdmitted)
	if s.logger != nil {
		s.logger.Info("order admitted",
			zap.String("order_id", order.ID),
			zap.String("table_id", tableID),
			zap.Int64("total", order.TotalAmount()),
			zap.Int("attempts", attempts),
		)
	}
	return order, nil
}

func (s *Service) admit(ctx context.Context, tableID string, items []Item) (*entity.Order, error) {
	var order *entity.Order
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) (err error) {
		restore, err := database.SetLockTimeout(ctx, tx, s.admission.LockTimeout)
		if err != nil {
			return err
		}
		defer func() {
			if restoreErr := restore(ctx); restoreErr != nil {
				err = errors.Join(err, restoreErr)
			}
		}()

		tables, foods, orders := s.tables.WithTx(tx), s.foods.WithTx(tx), s.orders.WithTx(tx)

		if _, err := tables.GetByID(ctx, tableID); err != nil {
			if errors.Is(err, tablerepo.ErrNotFound) {
				return ErrTableNotFound
			}
			return err
		}

		locked, err := foods.LockByIDs(ctx, distinctFoodIDs(items))
		if err != nil {
			return err
		}

		visible, err := orders.CountVisibleByTable(ctx, tableID)
		if err != nil {
			return err
		}

		if err := checkItems(items, locked, visible == 0); err != nil {
			return err
		}

		order = s.newOrder(tableID, entity.StatusCompleted, items, locked)
		return orders.Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CreatePreOrder records an order awaiting a bank transfer of totalAmount from payer.
// Rules are re-validated against a fresh read of the catalog but no food rows are
// locked.
func (s *Service) CreatePreOrder(ctx context.Context, tableID, payerName string, totalAmount int64, items []Item) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.CreatePreOrder", trace.WithAttributes(
		attribute.String("table.id", tableID),
		attribute.Int64("order.pre_order_amount", totalAmount),
	))
	defer span.End()

	if payerName == "" {
		return nil, errorbank.BadRequest("payer name is required")
	}
	if totalAmount < 1 {
		return nil, errorbank.BadRequest("total amount must be at least 1")
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	var order *entity.Order
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		tables, foods, orders := s.tables.WithTx(tx), s.foods.WithTx(tx), s.orders.WithTx(tx)

		if _, err := tables.GetByID(ctx, tableID); err != nil {
			if errors.Is(err, tablerepo.ErrNotFound) {
				return ErrTableNotFound
			}
			return err
		}

		current, err := foods.GetByIDs(ctx, distinctFoodIDs(items))
		if err != nil {
			return err
		}

		visible, err := orders.CountVisibleByTable(ctx, tableID)
		if err != nil {
			return err
		}

		if err := checkItems(items, current, visible == 0); err != nil {
			return err
		}

		order = s.newOrder(tableID, entity.StatusPreOrder, items, current)
		order.PayerName = payerName
		order.PreOrderAmount = lo.ToPtr(totalAmount)
		return orders.Create(ctx, order)
	})
	if err != nil {
		return nil, s.admissionError(ctx, span, err)
	}

	s.metrics.record(ctx, outcomeAdmitted)
	if s.logger != nil {
		s.logger.Info("pre-order created",
			zap.String("order_id", order.ID),
			zap.String("table_id", tableID),
			zap.Int64("amount", totalAmount),
		)
	}
	return order, nil
}

// TransitionStatus sets the status unconditionally. Moving to Completed emits the
// completion event.
func (s *Service) TransitionStatus(ctx context.Context, orderID string, status entity.OrderStatus) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.TransitionStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	if !status.Valid() {
		return nil, errorbank.BadRequest("invalid order status", errorbank.WithDetail("status", status))
	}

	at := s.now()
	if err := s.orders.UpdateStatus(ctx, orderID, status, at); err != nil {
		return nil, s.lookupError(span, err)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, s.lookupError(span, err)
	}

	if status == entity.StatusCompleted {
		s.orderCompleted(ctx, order, at)
	}
	return order, nil
}

// Complete is the guarded PreOrder to Completed transition used by staff.
func (s *Service) Complete(ctx context.Context, orderID string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Complete", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	at := s.now()
	changed, err := s.orders.CompletePreOrder(ctx, orderID, at)
	if err != nil {
		return nil, s.lookupError(span, err)
	}
	if !changed {
		return nil, errorbank.BadRequest("only pre-orders can be completed", errorbank.WithCause(ErrOrderNotPreOrder))
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, s.lookupError(span, err)
	}
	s.orderCompleted(ctx, order, at)
	return order, nil
}

func (s *Service) newOrder(tableID string, status entity.OrderStatus, items []Item, foods map[int64]*entity.Food) *entity.Order {
	now := s.now()
	order := &entity.Order{
		ID:        uuid.NewString(),
		TableID:   tableID,
		Status:    status,
		IsVisible: true,
		OrderDate: now,
		CreatedAt: now,
		UpdatedAt: now,
		Lines:     make([]*entity.OrderLine, 0, len(items)),
	}
	for _, item := range items {
		food := foods[item.FoodID]
		order.Lines = append(order.Lines, &entity.OrderLine{
			OrderID:  order.ID,
			FoodID:   food.ID,
			Quantity: item.Quantity,
			Price:    food.Price,
			Food:     food,
		})
	}
	return order
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return errorbank.BadRequest("order must contain at least one item")
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return errorbank.BadRequest("item quantity must be at least 1", errorbank.WithDetail("food_id", item.FoodID))
		}
	}
	return nil
}

func distinctFoodIDs(items []Item) []int64 {
	return lo.Uniq(lo.Map(items, func(item Item, _ int) int64 { return item.FoodID }))
}

// checkItems applies the admission rules to a consistent snapshot of the requested
// foods: existence first, the first-order main dish rule, then sold-out, collecting
// every sold-out name so nothing is partially admitted.
func checkItems(items []Item, foods map[int64]*entity.Food, firstOrder bool) error {
	for _, item := range items {
		if _, ok := foods[item.FoodID]; !ok {
			return &missingFoodError{id: item.FoodID}
		}
	}

	if firstOrder {
		hasMain := lo.SomeBy(items, func(item Item) bool {
			return foods[item.FoodID].Category == entity.CategoryMain
		})
		if !hasMain {
			return ErrFirstOrderMissingMainDish
		}
	}

	var soldOut []string
	for _, id := range distinctFoodIDs(items) {
		if food := foods[id]; food.SoldOut {
			soldOut = append(soldOut, food.Name)
		}
	}
	if len(soldOut) > 0 {
		return &SoldOutError{Names: soldOut}
	}
	return nil
}

type missingFoodError struct {
	id int64
}

func (e *missingFoodError) Error() string { return ErrFoodNotFound.Error() }

func (e *missingFoodError) Unwrap() error { return ErrFoodNotFound }

// admissionError maps admission failures onto the errorbank taxonomy and records the
// outcome.
func (s *Service) admissionError(ctx context.Context, span trace.Span, err error) error {
	var (
		soldOut *SoldOutError
		missing *missingFoodError
	)
	switch {
	case errors.As(err, &soldOut):
		s.metrics.record(ctx, outcomeRejected)
		return errorbank.BadRequest(soldOut.Error(),
			errorbank.WithCause(soldOut),
			errorbank.WithDetail("sold_out", soldOut.Names))
	case errors.As(err, &missing):
		s.metrics.record(ctx, outcomeRejected)
		return errorbank.NotFound("food not found",
			errorbank.WithCause(ErrFoodNotFound),
			errorbank.WithDetail("food_id", missing.id))
	case errors.Is(err, ErrTableNotFound):
		s.metrics.record(ctx, outcomeRejected)
		return errorbank.NotFound("table not found", errorbank.WithCause(ErrTableNotFound))
	case errors.Is(err, ErrFirstOrderMissingMainDish):
		s.metrics.record(ctx, outcomeRejected)
		return errorbank.BadRequest("the first order of a table must include a main dish", errorbank.WithCause(ErrFirstOrderMissingMainDish))
	case database.IsContention(err):
		s.metrics.record(ctx, outcomeContention)
		span.RecordError(err)
		span.SetStatus(codes.Error, "contention")
		if s.logger != nil {
			s.logger.Warn("order admission gave up after lock contention", zap.Error(err))
		}
		return errorbank.Contention("the menu is busy, please try again", errorbank.WithCause(errors.Join(ErrContention, err)))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.metrics.record(ctx, outcomeFailed)
		return errorbank.Contention("order admission timed out, please try again", errorbank.WithCause(errors.Join(ErrContention, err)))
	default:
		s.metrics.record(ctx, outcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "admission failed")
		if s.logger != nil {
			s.logger.Error("order admission failed", zap.Error(err))
		}
		return errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}
}

func (s *Service) lookupError(span trace.Span, err error) error {
	if errors.Is(err, orderrepo.ErrNotFound) {
		return errorbank.NotFound("order not found", errorbank.WithCause(ErrOrderNotFound))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	return errorbank.Internal("failed to load order", errorbank.WithCause(err))
}
