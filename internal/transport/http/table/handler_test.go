package table_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/tableorder/internal/database/databasetest"
	"github.com/Additional-Code/tableorder/internal/dto"
	"github.com/Additional-Code/tableorder/internal/entity"
	ordertransport "github.com/Additional-Code/tableorder/internal/transport/http/order"
	tabletransport "github.com/Additional-Code/tableorder/internal/transport/http/table"
	"github.com/Additional-Code/tableorder/internal/transport/http/transporttest"
)

func TestTableOrdersAndReset(t *testing.T) {
	srv := transporttest.New(t, tabletransport.Module, ordertransport.Module)
	food := databasetest.InsertFood(t, srv.Conns, "Jjamppong", 8000, entity.CategoryMain, false)
	table := databasetest.InsertTable(t, srv.Conns, "Table 1")

	for range 2 {
		rec, _ := srv.Do(t, http.MethodPost, "/orders", dto.CreateOrderRequest{
			TableID: table.ID,
			Items:   []dto.OrderItemRequest{{FoodID: food.ID, Quantity: 1}},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	path := "/tables/" + table.ID + "/orders"
	rec, env := srv.Do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var history dto.HistoryResponse
	transporttest.Decode(t, env, &history)
	require.Len(t, history.Orders, 2)
	require.Equal(t, int64(16000), history.TotalSpent)
	require.Equal(t, "Table 1", history.Orders[0].TableName)

	rec, env = srv.Do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reset map[string]any
	transporttest.Decode(t, env, &reset)
	require.EqualValues(t, 2, reset["orders_hidden"])

	rec, env = srv.Do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	transporttest.Decode(t, env, &history)
	require.Empty(t, history.Orders)
	require.Zero(t, history.TotalSpent)
}

func TestTableNotFound(t *testing.T) {
	srv := transporttest.New(t, tabletransport.Module)
	missing := uuid.NewString()

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "get", method: http.MethodGet, path: "/tables/" + missing, status: http.StatusNotFound},
		{name: "orders", method: http.MethodGet, path: "/tables/" + missing + "/orders", status: http.StatusNotFound},
		{name: "call staff", method: http.MethodPost, path: "/tables/" + missing + "/call-staff", status: http.StatusNotFound},
		{name: "malformed id", method: http.MethodGet, path: "/tables/7/orders", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := srv.Do(t, tt.method, tt.path, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.False(t, env.Success)
		})
	}
}

func TestCreateRenameAndCallStaff(t *testing.T) {
	srv := transporttest.New(t, tabletransport.Module)
	databasetest.InsertTable(t, srv.Conns, "Patio")

	rec, env := srv.Do(t, http.MethodPost, "/tables", dto.TableRequest{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created dto.TableResponse
	transporttest.Decode(t, env, &created)
	require.Equal(t, "Table 2", created.Name)

	rec, env = srv.Do(t, http.MethodPatch, "/tables/"+created.ID, dto.TableRequest{Name: "  Window  "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var renamed dto.TableResponse
	transporttest.Decode(t, env, &renamed)
	require.Equal(t, "Window", renamed.DisplayName)

	rec, _ = srv.Do(t, http.MethodPost, "/tables/"+created.ID+"/call-staff", dto.StaffCallRequest{Message: "more water"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = srv.Do(t, http.MethodGet, "/tables", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []dto.TableResponse
	transporttest.Decode(t, env, &listed)
	require.Len(t, listed, 2)
}
