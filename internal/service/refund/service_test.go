package refund_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/database"
	"github.com/Additional-Code/tableorder/internal/database/databasetest"
	"github.com/Additional-Code/tableorder/internal/entity"
	orderrepo "github.com/Additional-Code/tableorder/internal/repository/order"
	ordersvc "github.com/Additional-Code/tableorder/internal/service/order"
	"github.com/Additional-Code/tableorder/internal/service/refund"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

type fixture struct {
	conns  *database.Connections
	orders *orderrepo.Repository
	svc    *refund.Service
	table  *entity.Table
	food   *entity.Food
	drink  *entity.Food
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conns := databasetest.New(t)
	orders := orderrepo.NewRepository(conns)
	return &fixture{
		conns:  conns,
		orders: orders,
		svc:    refund.NewService(refund.Params{Connections: conns, Orders: orders, Logger: zap.NewNop()}),
		table:  databasetest.InsertTable(t, conns, "Table 1"),
		food:   databasetest.InsertFood(t, conns, "Dakgalbi", 1000, entity.CategoryMain, false),
		drink:  databasetest.InsertFood(t, conns, "Cider", 500, entity.CategorySide, false),
	}
}

func (f *fixture) insertOrder(t *testing.T, status entity.OrderStatus, lines ...*entity.OrderLine) *entity.Order {
	t.Helper()

	now := time.Now().UTC()
	o := &entity.Order{
		ID:        uuid.NewString(),
		TableID:   f.table.ID,
		Status:    status,
		IsVisible: true,
		OrderDate: now,
		CreatedAt: now,
		UpdatedAt: now,
		Lines:     lines,
	}
	require.NoError(t, f.orders.Create(context.Background(), o))
	return o
}

func (f *fixture) adjustmentCount(t *testing.T, orderID string) int {
	t.Helper()
	n, err := f.conns.Writer.NewSelect().Model((*entity.AdjustmentEntry)(nil)).Where("order_id = ?", orderID).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestRefundLinePartialThenExceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.insertOrder(t, entity.StatusCompleted, &entity.OrderLine{FoodID: f.food.ID, Quantity: 5, Price: 1000})

	refunded, err := f.svc.RefundLine(ctx, o.ID, f.food.ID, 2)
	require.NoError(t, err)
	require.Equal(t, 3, refunded.EffectiveQuantity(f.food.ID))
	require.Equal(t, int64(3000), refunded.TotalAmount())

	loaded, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 1)
	require.Equal(t, 5, loaded.Lines[0].Quantity)
	require.Len(t, loaded.Adjustments, 1)
	require.Equal(t, -2, loaded.Adjustments[0].Quantity)
	require.Equal(t, int64(1000), loaded.Adjustments[0].Price)
	require.Equal(t, entity.ReasonRefund, loaded.Adjustments[0].Reason)

	_, err = f.svc.RefundLine(ctx, o.ID, f.food.ID, 4)
	require.ErrorIs(t, err, refund.ErrExceedsAvailable)
	require.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))
	require.Equal(t, 1, f.adjustmentCount(t, o.ID))
}

func TestRefundLineBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.insertOrder(t, entity.StatusCompleted, &entity.OrderLine{FoodID: f.food.ID, Quantity: 3, Price: 1000})

	_, err := f.svc.RefundLine(ctx, o.ID, f.food.ID, 4)
	require.ErrorIs(t, err, refund.ErrExceedsAvailable)

	refunded, err := f.svc.RefundLine(ctx, o.ID, f.food.ID, 3)
	require.NoError(t, err)
	require.Zero(t, refunded.RefundableQuantity(f.food.ID))
	require.Zero(t, refunded.TotalAmount())
}

func TestRefundLineRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	completed := f.insertOrder(t, entity.StatusCompleted, &entity.OrderLine{FoodID: f.food.ID, Quantity: 2, Price: 1000})
	pending := f.insertOrder(t, entity.StatusPreOrder, &entity.OrderLine{FoodID: f.food.ID, Quantity: 2, Price: 1000})

	tests := []struct {
		name     string
		orderID  string
		foodID   int64
		quantity int
		kind     errorbank.Kind
		want     error
	}{
		{name: "unknown order", orderID: uuid.NewString(), foodID: f.food.ID, quantity: 1, kind: errorbank.KindNotFound, want: ordersvc.ErrOrderNotFound},
		{name: "not completed", orderID: pending.ID, foodID: f.food.ID, quantity: 1, kind: errorbank.KindBadRequest, want: refund.ErrOrderNotCompleted},
		{name: "zero quantity", orderID: completed.ID, foodID: f.food.ID, quantity: 0, kind: errorbank.KindBadRequest, want: refund.ErrInvalidQuantity},
		{name: "food not ordered", orderID: completed.ID, foodID: f.drink.ID, quantity: 1, kind: errorbank.KindBadRequest, want: refund.ErrFoodNotInOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RefundLine(ctx, tt.orderID, tt.foodID, tt.quantity)
			require.ErrorIs(t, err, tt.want)
			require.True(t, errorbank.IsKind(err, tt.kind))
		})
	}
	require.Zero(t, f.adjustmentCount(t, completed.ID))
}

func TestRefundFullIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.insertOrder(t, entity.StatusCompleted,
		&entity.OrderLine{FoodID: f.food.ID, Quantity: 3, Price: 1000},
		&entity.OrderLine{FoodID: f.drink.ID, Quantity: 2, Price: 500},
	)

	_, err := f.svc.RefundLine(ctx, o.ID, f.food.ID, 1)
	require.NoError(t, err)

	first, err := f.svc.RefundFull(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, refund.OutcomeAdjusted, first.Outcome)
	require.Len(t, first.Entries, 2)
	require.Zero(t, first.Order.TotalAmount())
	require.Equal(t, entity.StatusCompleted, first.Order.Status)

	afterFirst, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)

	second, err := f.svc.RefundFull(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, refund.OutcomeNothingToRefund, second.Outcome)
	require.Empty(t, second.Entries)

	afterSecond, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, len(afterFirst.Adjustments), len(afterSecond.Adjustments))
	require.Equal(t, 3, f.adjustmentCount(t, o.ID))
	require.Equal(t, entity.StatusCompleted, afterSecond.Status)
}

func TestRefundFullWithoutLinesMarksRefunded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.insertOrder(t, entity.StatusCompleted)

	result, err := f.svc.RefundFull(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, refund.OutcomeStatusRefunded, result.Outcome)

	loaded, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StatusRefunded, loaded.Status)

	_, err = f.svc.RefundFull(ctx, o.ID)
	require.ErrorIs(t, err, refund.ErrOrderNotCompleted)
}

func TestRefundFullRequiresCompleted(t *testing.T) {
	f := newFixture(t)
	o := f.insertOrder(t, entity.StatusPreOrder, &entity.OrderLine{FoodID: f.food.ID, Quantity: 1, Price: 1000})

	_, err := f.svc.RefundFull(context.Background(), o.ID)
	require.ErrorIs(t, err, refund.ErrOrderNotCompleted)

	_, err = f.svc.RefundFull(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ordersvc.ErrOrderNotFound)
}

func TestAdjustLineCapsAtEffectiveQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.insertOrder(t, entity.StatusCompleted, &entity.OrderLine{FoodID: f.food.ID, Quantity: 4, Price: 1000})

	adjusted, err := f.svc.AdjustLine(ctx, o.ID, f.food.ID, 1, entity.ReasonSoldOut)
	require.NoError(t, err)
	require.Equal(t, 3, adjusted.EffectiveQuantity(f.food.ID))

	_, err = f.svc.RefundLine(ctx, o.ID, f.food.ID, 2)
	require.NoError(t, err)

	_, err = f.svc.AdjustLine(ctx, o.ID, f.food.ID, 2, entity.ReasonDamaged)
	require.ErrorIs(t, err, refund.ErrExceedsAvailable)

	_, err = f.svc.RefundLine(ctx, o.ID, f.food.ID, 2)
	require.ErrorIs(t, err, refund.ErrExceedsAvailable)

	_, err = f.svc.AdjustLine(ctx, o.ID, f.food.ID, 1, entity.ReasonRefund)
	require.ErrorIs(t, err, refund.ErrInvalidReason)

	summary, err := f.svc.Refundable(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, summary.Lines, 1)
	require.Equal(t, 4, summary.Lines[0].Ordered)
	require.Equal(t, 2, summary.Lines[0].Refunded)
	require.Equal(t, 1, summary.Lines[0].Remaining)
	require.Equal(t, "Dakgalbi", summary.Lines[0].Name)
	require.Equal(t, int64(1000), summary.RemainingAmount())
}
