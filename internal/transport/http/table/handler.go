package table

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/tableorder/internal/dto"
	"github.com/Additional-Code/tableorder/internal/notification"
	"github.com/Additional-Code/tableorder/internal/presentation/http/response"
	ordersvc "github.com/Additional-Code/tableorder/internal/service/order"
	service "github.com/Additional-Code/tableorder/internal/service/table"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tableorder/transport/http/table")

// Handler exposes the table registry, table checkout and staff calls over HTTP.
type Handler struct {
	tables   *service.Service
	orders   *ordersvc.Service
	notifier *notification.Service
}

// Params defines dependencies for constructing Handler.
type Params struct {
	fx.In

	Tables   *service.Service
	Orders   *ordersvc.Service
	Notifier *notification.Service
}

// NewHandler constructs a table Handler.
func NewHandler(p Params) *Handler {
	return &Handler{tables: p.Tables, orders: p.Orders, notifier: p.Notifier}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/tables")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.getByID)
	g.PATCH("/:id", h.rename)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/orders", h.listOrders)
	g.DELETE("/:id/orders", h.reset)
	g.POST("/:id/call-staff", h.callStaff)
}

func (h *Handler) list(c echo.Context) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "tables.list")
	defer span.End()

	tables, err := h.tables.List(ctx)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewTableResponses(tables))
}

func (h *Handler) create(c echo.Context) error {
	var payload dto.TableRequest
	if err := c.Bind(&payload); err != nil {
		return response.Error(c, errorbank.BadRequest("invalid payload", errorbank.WithCause(err)))
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tables.create")
	defer span.End()

	table, err := h.tables.Create(ctx, payload.Name)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, dto.NewTableResponse(table))
}

func (h *Handler) getByID(c echo.Context) error {
	id, err := tableID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tables.getByID", trace.WithAttributes(attribute.String("table.id", id)))
	defer span.End()

	table, err := h.tables.Get(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewTableResponse(table))
}

func (h *Handler) rename(c echo.Context) error {
	id, err := tableID(c)
	if err != nil {
		return response.Error(c, err)
	}
	var payload dto.TableRequest
	if err := c.Bind(&payload); err != nil {
		return response.Error(c, errorbank.BadRequest("invalid payload", errorbank.WithCause(err)))
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tables.rename", trace.WithAttributes(attribute.String("table.id", id)))
	defer span.End()

	table, err := h.tables.Rename(ctx, id, payload.Name)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewTableResponse(table))
}

func (h *Handler) delete(c echo.Context) error {
	id, err := tableID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tables.delete", trace.WithAttributes(attribute.String("table.id", id)))
	defer span.End()

	if err := h.tables.Delete(ctx, id); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, map[string]string{"id": id})
}

func (h *Handler) listOrders(c echo.Context) error {
	id, err := tableID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tables.orders", trace.WithAttributes(attribute.String("table.id", id)))
	defer span.End()

	if _, err := h.tables.Get(ctx, id); err != nil {
		return response.Error(c, err)
	}
	history, err := h.orders.History(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.HistoryResponse{
		Orders:     dto.NewOrderResponses(history.Orders),
		TotalSpent: history.TotalSpent,
	})
}

func (h *Handler) reset(c echo.Context) error {
	id, err := tableID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tables.reset", trace.WithAttributes(attribute.String("table.id", id)))
	defer span.End()

	hidden, err := h.tables.Reset(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, map[string]any{"id": id, "orders_hidden": hidden})
}

func (h *Handler) callStaff(c echo.Context) error {
	id, err := tableID(c)
	if err != nil {
		return response.Error(c, err)
	}
	var payload dto.StaffCallRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&payload); err != nil {
			return response.Error(c, errorbank.BadRequest("invalid payload", errorbank.WithCause(err)))
		}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tables.callStaff", trace.WithAttributes(attribute.String("table.id", id)))
	defer span.End()

	if err := h.notifier.CallStaff(ctx, id, payload.Message); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, map[string]string{"status": "called"})
}

func tableID(c echo.Context) (string, error) {
	id := c.Param("id")
	if err := uuid.Validate(id); err != nil {
		return "", errorbank.BadRequest("invalid id", errorbank.WithDetail("id", id))
	}
	return id, nil
}
