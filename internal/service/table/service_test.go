package table_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/database/databasetest"
	"github.com/Additional-Code/tableorder/internal/entity"
	orderrepo "github.com/Additional-Code/tableorder/internal/repository/order"
	tablerepo "github.com/Additional-Code/tableorder/internal/repository/table"
	"github.com/Additional-Code/tableorder/internal/service/table"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

func newService(t *testing.T) (*table.Service, *orderrepo.Repository, *entity.Food) {
	t.Helper()

	conns := databasetest.New(t)
	orders := orderrepo.NewRepository(conns)
	svc := table.NewService(table.Params{
		Connections: conns,
		Tables:      tablerepo.NewRepository(conns),
		Orders:      orders,
		Logger:      zap.NewNop(),
	})
	return svc, orders, databasetest.InsertFood(t, conns, "Naengmyeon", 10000, entity.CategoryMain, false)
}

func insertOrder(t *testing.T, orders *orderrepo.Repository, tableID string, foodID int64) *entity.Order {
	t.Helper()

	now := time.Now().UTC()
	o := &entity.Order{
		ID:        uuid.NewString(),
		TableID:   tableID,
		Status:    entity.StatusCompleted,
		IsVisible: true,
		OrderDate: now,
		CreatedAt: now,
		UpdatedAt: now,
		Lines:     []*entity.OrderLine{{FoodID: foodID, Quantity: 1, Price: 10000}},
	}
	require.NoError(t, orders.Create(context.Background(), o))
	return o
}

func TestCreateAssignsSequentialNames(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	first, err := svc.Create(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "Table 1", first.Name)

	named, err := svc.Create(ctx, "  Terrace ")
	require.NoError(t, err)
	require.Equal(t, "Terrace", named.Name)

	third, err := svc.Create(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "Table 3", third.Name)

	tables, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 3)
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	created, err := svc.Create(ctx, "")
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, created.ID, "Patio")
	require.NoError(t, err)
	require.Equal(t, "Patio", renamed.Name)

	_, err = svc.Rename(ctx, created.ID, " ")
	require.True(t, errorbank.IsKind(err, errorbank.KindBadRequest))

	_, err = svc.Rename(ctx, uuid.NewString(), "Patio")
	require.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestResetHidesOrders(t *testing.T) {
	ctx := context.Background()
	svc, orders, food := newService(t)
	created, err := svc.Create(ctx, "")
	require.NoError(t, err)
	o := insertOrder(t, orders, created.ID, food.ID)
	insertOrder(t, orders, created.ID, food.ID)

	hidden, err := svc.Reset(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), hidden)

	visible, err := orders.CountVisibleByTable(ctx, created.ID)
	require.NoError(t, err)
	require.Zero(t, visible)

	kept, err := orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.False(t, kept.IsVisible)

	_, err = svc.Reset(ctx, uuid.NewString())
	require.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}

func TestDeleteRemovesOrders(t *testing.T) {
	ctx := context.Background()
	svc, orders, food := newService(t)
	doomed, err := svc.Create(ctx, "")
	require.NoError(t, err)
	other, err := svc.Create(ctx, "")
	require.NoError(t, err)
	gone := insertOrder(t, orders, doomed.ID, food.ID)
	kept := insertOrder(t, orders, other.ID, food.ID)

	require.NoError(t, svc.Delete(ctx, doomed.ID))

	_, err = orders.GetByID(ctx, gone.ID)
	require.ErrorIs(t, err, orderrepo.ErrNotFound)
	_, err = orders.GetByID(ctx, kept.ID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, doomed.ID)
	require.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	err = svc.Delete(ctx, doomed.ID)
	require.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
}
