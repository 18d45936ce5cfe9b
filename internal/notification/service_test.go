package notification_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/config"
	"github.com/Additional-Code/tableorder/internal/database/databasetest"
	"github.com/Additional-Code/tableorder/internal/entity"
	"github.com/Additional-Code/tableorder/internal/notification"
	orderrepo "github.com/Additional-Code/tableorder/internal/repository/order"
	tablerepo "github.com/Additional-Code/tableorder/internal/repository/table"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

type webhook struct {
	mu       sync.Mutex
	status   int
	messages []notification.Message
	server   *httptest.Server
}

func newWebhook(t *testing.T) *webhook {
	t.Helper()

	w := &webhook{status: http.StatusNoContent}
	w.server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var msg notification.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		w.messages = append(w.messages, msg)
		rw.WriteHeader(w.status)
	}))
	t.Cleanup(w.server.Close)
	return w
}

func (w *webhook) respondWith(status int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
}

func (w *webhook) received() []notification.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]notification.Message(nil), w.messages...)
}

type fixture struct {
	orders *orderrepo.Repository
	svc    *notification.Service
	table  *entity.Table
	food   *entity.Food
	hook   *webhook
}

func newFixture(t *testing.T, enabled bool) *fixture {
	t.Helper()

	conns := databasetest.New(t)
	hook := newWebhook(t)
	orders := orderrepo.NewRepository(conns)
	cfg := config.Config{Notification: config.Notification{
		Enabled:       enabled,
		CompletionURL: hook.server.URL + "/paid",
		StaffCallURL:  hook.server.URL + "/staff",
		Timeout:       time.Second,
		Username:      "Order Bot",
		StaffCallName: "Staff Bot",
	}}

	return &fixture{
		orders: orders,
		svc: notification.NewService(notification.Params{
			Sender: notification.NewDiscordClient(cfg.Notification.Timeout),
			Orders: orders,
			Tables: tablerepo.NewRepository(conns),
			Config: cfg,
			Logger: zap.NewNop(),
		}),
		table: databasetest.InsertTable(t, conns, "Window"),
		food:  databasetest.InsertFood(t, conns, "Jjajangmyeon", 7000, entity.CategoryMain, false),
		hook:  hook,
	}
}

func (f *fixture) insertOrder(t *testing.T, status entity.OrderStatus) *entity.Order {
	t.Helper()

	now := time.Now().UTC()
	o := &entity.Order{
		ID:        uuid.NewString(),
		TableID:   f.table.ID,
		PayerName: "Park",
		Status:    status,
		IsVisible: true,
		OrderDate: now,
		CreatedAt: now,
		UpdatedAt: now,
		Lines:     []*entity.OrderLine{{FoodID: f.food.ID, Quantity: 2, Price: 7000}},
	}
	require.NoError(t, f.orders.Create(context.Background(), o))
	return o
}

func TestNotifyOrderCompletedSendsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	o := f.insertOrder(t, entity.StatusCompleted)

	require.NoError(t, f.svc.NotifyOrderCompleted(ctx, o.ID))
	require.NoError(t, f.svc.NotifyOrderCompleted(ctx, o.ID))

	msgs := f.hook.received()
	require.Len(t, msgs, 1)
	require.Equal(t, "Order Bot", msgs[0].Username)
	require.Len(t, msgs[0].Embeds, 1)
	embed := msgs[0].Embeds[0]
	require.Equal(t, 0x00ff00, embed.Color)

	values := map[string]string{}
	for _, field := range embed.Fields {
		values[field.Name] = field.Value
	}
	require.Equal(t, "Park", values["Payer"])
	require.Equal(t, "14,000", values["Amount"])
	require.Contains(t, values["Items"], "Jjajangmyeon x2")

	loaded, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, loaded.DiscordNotified)
}

func TestNotifyOrderCompletedReleasesOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	o := f.insertOrder(t, entity.StatusCompleted)

	f.hook.respondWith(http.StatusInternalServerError)
	require.Error(t, f.svc.NotifyOrderCompleted(ctx, o.ID))

	loaded, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.False(t, loaded.DiscordNotified)

	f.hook.respondWith(http.StatusNoContent)
	require.NoError(t, f.svc.NotifyOrderCompleted(ctx, o.ID))
	require.Len(t, f.hook.received(), 2)
}

func TestNotifyOrderCompletedSkips(t *testing.T) {
	ctx := context.Background()

	t.Run("pending order", func(t *testing.T) {
		f := newFixture(t, true)
		o := f.insertOrder(t, entity.StatusPreOrder)
		require.NoError(t, f.svc.NotifyOrderCompleted(ctx, o.ID))
		require.Empty(t, f.hook.received())
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, false)
		o := f.insertOrder(t, entity.StatusCompleted)
		require.NoError(t, f.svc.NotifyOrderCompleted(ctx, o.ID))
		require.Empty(t, f.hook.received())
	})
}

func TestCallStaff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	require.NoError(t, f.svc.CallStaff(ctx, f.table.ID, "  more water please "))
	msgs := f.hook.received()
	require.Len(t, msgs, 1)
	require.Equal(t, "Staff Bot", msgs[0].Username)
	require.Equal(t, 0xff9900, msgs[0].Embeds[0].Color)
	require.Contains(t, msgs[0].Embeds[0].Description, "more water please")

	err := f.svc.CallStaff(ctx, uuid.NewString(), "")
	require.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	f.hook.respondWith(http.StatusBadGateway)
	require.NoError(t, f.svc.CallStaff(ctx, f.table.ID, ""))
}
