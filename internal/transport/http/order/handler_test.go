package order_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/tableorder/internal/database/databasetest"
	"github.com/Additional-Code/tableorder/internal/dto"
	"github.com/Additional-Code/tableorder/internal/entity"
	ordertransport "github.com/Additional-Code/tableorder/internal/transport/http/order"
	"github.com/Additional-Code/tableorder/internal/transport/http/transporttest"
)

type fixture struct {
	srv   *transporttest.Server
	main  *entity.Food
	side  *entity.Food
	table *entity.Table
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := transporttest.New(t, ordertransport.Module)
	return &fixture{
		srv:   srv,
		main:  databasetest.InsertFood(t, srv.Conns, "Jjajangmyeon", 7000, entity.CategoryMain, false),
		side:  databasetest.InsertFood(t, srv.Conns, "Cola", 2000, entity.CategorySide, false),
		table: databasetest.InsertTable(t, srv.Conns, "Table 1"),
	}
}

func (f *fixture) createOrder(t *testing.T) dto.OrderResponse {
	t.Helper()

	rec, env := f.srv.Do(t, http.MethodPost, "/orders", dto.CreateOrderRequest{
		TableID: f.table.ID,
		Items: []dto.OrderItemRequest{
			{FoodID: f.main.ID, Quantity: 2},
			{FoodID: f.side.ID, Quantity: 1},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order dto.OrderResponse
	transporttest.Decode(t, env, &order)
	return order
}

func TestCreateOrderRejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   any
		status int
		kind   string
	}{
		{
			name:   "first order without a main dish",
			body:   dto.CreateOrderRequest{TableID: f.table.ID, Items: []dto.OrderItemRequest{{FoodID: f.side.ID, Quantity: 1}}},
			status: http.StatusBadRequest,
			kind:   "bad_request",
		},
		{
			name:   "unknown table",
			body:   dto.CreateOrderRequest{TableID: uuid.NewString(), Items: []dto.OrderItemRequest{{FoodID: f.main.ID, Quantity: 1}}},
			status: http.StatusNotFound,
			kind:   "not_found",
		},
		{
			name:   "unknown food",
			body:   dto.CreateOrderRequest{TableID: f.table.ID, Items: []dto.OrderItemRequest{{FoodID: 9999, Quantity: 1}}},
			status: http.StatusNotFound,
			kind:   "not_found",
		},
		{
			name:   "malformed table id",
			body:   dto.CreateOrderRequest{TableID: "table-1", Items: []dto.OrderItemRequest{{FoodID: f.main.ID, Quantity: 1}}},
			status: http.StatusBadRequest,
			kind:   "bad_request",
		},
		{
			name:   "no items",
			body:   dto.CreateOrderRequest{TableID: f.table.ID},
			status: http.StatusBadRequest,
			kind:   "bad_request",
		},
		{
			name:   "invalid json",
			body:   `{"table_id":`,
			status: http.StatusBadRequest,
			kind:   "bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := f.srv.Do(t, http.MethodPost, "/orders", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.False(t, env.Success)
			require.Equal(t, tt.kind, env.Error.Kind)
		})
	}

	rec, env := f.srv.Do(t, http.MethodGet, "/orders/history?table_id="+f.table.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history dto.HistoryResponse
	transporttest.Decode(t, env, &history)
	require.Empty(t, history.Orders)
}

func TestCreateOrderAndFetch(t *testing.T) {
	f := newFixture(t)

	created := f.createOrder(t)
	require.Equal(t, string(entity.StatusCompleted), created.Status)
	require.Equal(t, int64(16000), created.TotalAmount)
	require.Len(t, created.Lines, 2)

	rec, env := f.srv.Do(t, http.MethodGet, "/orders/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched dto.OrderResponse
	transporttest.Decode(t, env, &fetched)
	require.Equal(t, created.ID, fetched.ID)

	rec, env = f.srv.Do(t, http.MethodGet, "/orders/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", env.Error.Kind)

	rec, _ = f.srv.Do(t, http.MethodGet, "/orders/42", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefundEndpoints(t *testing.T) {
	f := newFixture(t)
	created := f.createOrder(t)
	base := "/orders/" + created.ID

	rec, env := f.srv.Do(t, http.MethodPost, base+"/refunds", dto.RefundLineRequest{FoodID: f.main.ID, Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refunded dto.OrderResponse
	transporttest.Decode(t, env, &refunded)
	require.Equal(t, int64(9000), refunded.TotalAmount)

	rec, env = f.srv.Do(t, http.MethodPost, base+"/refunds", dto.RefundLineRequest{FoodID: f.main.ID, Quantity: 2})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.EqualValues(t, 1, env.Error.Details["remaining"])

	rec, env = f.srv.Do(t, http.MethodPost, base+"/full-refund", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var full dto.FullRefundResponse
	transporttest.Decode(t, env, &full)
	require.Equal(t, "adjusted", full.Outcome)
	require.Equal(t, int64(0), full.Order.TotalAmount)

	rec, env = f.srv.Do(t, http.MethodPost, "/orders/"+uuid.NewString()+"/full-refund", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", env.Error.Kind)
}

func TestPreOrderFlow(t *testing.T) {
	f := newFixture(t)

	rec, env := f.srv.Do(t, http.MethodPost, "/orders/pre-order/"+f.table.ID, dto.PreOrderRequest{
		PayerName:   "Park",
		TotalAmount: 14000,
		Items:       []dto.OrderItemRequest{{FoodID: f.main.ID, Quantity: 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created dto.PreOrderResponse
	transporttest.Decode(t, env, &created)
	require.Equal(t, string(entity.StatusPreOrder), created.Order.Status)
	require.Contains(t, created.TransferLink, "amount=14000")

	rec, env = f.srv.Do(t, http.MethodGet, "/orders/"+created.Order.ID+"/payment-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status dto.PaymentStatusResponse
	transporttest.Decode(t, env, &status)
	require.False(t, status.Completed)

	rec, _ = f.srv.Do(t, http.MethodPost, "/orders/"+created.Order.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = f.srv.Do(t, http.MethodGet, "/orders/"+created.Order.ID+"/payment-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	transporttest.Decode(t, env, &status)
	require.True(t, status.Completed)
}
