package food_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/tableorder/internal/dto"
	foodtransport "github.com/Additional-Code/tableorder/internal/transport/http/food"
	"github.com/Additional-Code/tableorder/internal/transport/http/transporttest"
)

func TestFoodCrud(t *testing.T) {
	srv := transporttest.New(t, foodtransport.Module)

	rec, env := srv.Do(t, http.MethodPost, "/foods", dto.FoodRequest{Name: " Tangsuyuk ", Price: 15000, Category: "main"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created dto.FoodResponse
	transporttest.Decode(t, env, &created)
	require.Equal(t, "Tangsuyuk", created.Name)
	path := "/foods/" + strconv.FormatInt(created.ID, 10)

	rec, env = srv.Do(t, http.MethodPost, "/foods", dto.FoodRequest{Name: "Cola", Price: 2000, Category: "side"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = srv.Do(t, http.MethodGet, "/foods?category=main", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []dto.FoodResponse
	transporttest.Decode(t, env, &listed)
	require.Len(t, listed, 1)
	require.EqualValues(t, 1, env.Meta["count"])

	rec, env = srv.Do(t, http.MethodPost, path+"/sold-out", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled dto.FoodResponse
	transporttest.Decode(t, env, &toggled)
	require.True(t, toggled.SoldOut)

	rec, env = srv.Do(t, http.MethodPut, path, dto.FoodRequest{Name: "Tangsuyuk", Price: 16000, Category: "main"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated dto.FoodResponse
	transporttest.Decode(t, env, &updated)
	require.Equal(t, int64(16000), updated.Price)
	require.False(t, updated.SoldOut)

	rec, _ = srv.Do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = srv.Do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", env.Error.Kind)
}

func TestFoodValidation(t *testing.T) {
	srv := transporttest.New(t, foodtransport.Module)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{name: "missing name", method: http.MethodPost, path: "/foods", body: dto.FoodRequest{Price: 1, Category: "main"}, status: http.StatusBadRequest},
		{name: "negative price", method: http.MethodPost, path: "/foods", body: dto.FoodRequest{Name: "x", Price: -1, Category: "main"}, status: http.StatusBadRequest},
		{name: "unknown category", method: http.MethodPost, path: "/foods", body: dto.FoodRequest{Name: "x", Category: "dessert"}, status: http.StatusBadRequest},
		{name: "unknown category filter", method: http.MethodGet, path: "/foods?category=dessert", status: http.StatusBadRequest},
		{name: "non numeric id", method: http.MethodGet, path: "/foods/abc", status: http.StatusBadRequest},
		{name: "missing food", method: http.MethodPost, path: "/foods/404/sold-out", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := srv.Do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.False(t, env.Success)
		})
	}
}
