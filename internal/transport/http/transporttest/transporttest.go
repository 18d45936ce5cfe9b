// Package transporttest boots the HTTP handlers over the real service graph and a
// throwaway SQLite database.
package transporttest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/cache"
	"github.com/Additional-Code/tableorder/internal/config"
	"github.com/Additional-Code/tableorder/internal/database"
	"github.com/Additional-Code/tableorder/internal/database/databasetest"
	"github.com/Additional-Code/tableorder/internal/notification"
	repositorydeposit "github.com/Additional-Code/tableorder/internal/repository/deposit"
	repositoryfood "github.com/Additional-Code/tableorder/internal/repository/food"
	repositoryorder "github.com/Additional-Code/tableorder/internal/repository/order"
	repositorytable "github.com/Additional-Code/tableorder/internal/repository/table"
	httpserver "github.com/Additional-Code/tableorder/internal/server/http"
	servicefood "github.com/Additional-Code/tableorder/internal/service/food"
	serviceorder "github.com/Additional-Code/tableorder/internal/service/order"
	servicepayment "github.com/Additional-Code/tableorder/internal/service/payment"
	servicerefund "github.com/Additional-Code/tableorder/internal/service/refund"
	servicetable "github.com/Additional-Code/tableorder/internal/service/table"
)

// WebhookKey is the payment webhook key configured by New.
const WebhookKey = "test-key"

// Server is a router with its backing database.
type Server struct {
	Echo  *echo.Echo
	Conns *database.Connections
}

// Config returns the configuration New runs with. Notifications stay disabled.
func Config() config.Config {
	return config.Config{
		Admission: config.Admission{
			LockTimeout:  time.Second,
			MaxRetries:   1,
			RetryBackoff: time.Millisecond,
		},
		Payment: config.Payment{
			BankName:      "K Bank",
			AccountNumber: "100148347666",
			WebhookKey:    WebhookKey,
		},
	}
}

// New starts an fx app with every service and the given transport modules registered
// on the router built by the HTTP server package.
func New(t *testing.T, transports ...fx.Option) *Server {
	t.Helper()

	srv := &Server{Conns: databasetest.New(t)}
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(Config(), srv.Conns, zap.NewNop()),
		fx.Provide(cache.NewNoop),
		repositoryfood.Module,
		repositorytable.Module,
		repositoryorder.Module,
		repositorydeposit.Module,
		notification.Module,
		serviceorder.Module,
		servicefood.Module,
		servicetable.Module,
		servicerefund.Module,
		servicepayment.Module,
		fx.Provide(httpserver.NewEcho),
		fx.Options(transports...),
		fx.Populate(&srv.Echo),
	)
	app.RequireStart()
	t.Cleanup(func() { app.RequireStop() })

	return srv
}

// Envelope is the decoded response body.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Kind    string         `json:"kind"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	Meta map[string]any `json:"meta"`
}

// Do sends a JSON request. A nil body sends no body. Extra headers are given as
// key/value pairs.
func (s *Server) Do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	var env Envelope
	if rec.Body.Len() > 0 && rec.Code != http.StatusNoContent {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

// Decode unmarshals the envelope data into dst.
func Decode(t *testing.T, env Envelope, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}
