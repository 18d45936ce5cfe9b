package order

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/tableorder/internal/dto"
	"github.com/Additional-Code/tableorder/internal/entity"
	"github.com/Additional-Code/tableorder/internal/presentation/http/response"
	ordersvc "github.com/Additional-Code/tableorder/internal/service/order"
	"github.com/Additional-Code/tableorder/internal/service/payment"
	"github.com/Additional-Code/tableorder/internal/service/refund"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tableorder/transport/http/order")

// Handler exposes order, refund and payment-status endpoints over HTTP.
type Handler struct {
	orders   *ordersvc.Service
	refunds  *refund.Service
	payments *payment.Service
}

// Params defines dependencies for constructing Handler.
type Params struct {
	fx.In

	Orders   *ordersvc.Service
	Refunds  *refund.Service
	Payments *payment.Service
}

// NewHandler constructs an order Handler.
func NewHandler(p Params) *Handler {
	return &Handler{orders: p.Orders, refunds: p.Refunds, payments: p.Payments}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("/history", h.history)
	g.POST("/pre-order/:table_id", h.createPreOrder)
	g.GET("/:id", h.getByID)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/payment-status", h.paymentStatus)
	g.POST("/:id/complete", h.complete)
	g.GET("/:id/refunds", h.refundable)
	g.POST("/:id/refunds", h.refundLine)
	g.POST("/:id/full-refund", h.refundFull)
	g.POST("/:id/adjustments", h.adjustLine)
}

func (h *Handler) create(c echo.Context) error {
	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return response.Error(c, errorbank.BadRequest("invalid payload", errorbank.WithCause(err)))
	}
	if err := validateUUID("table_id", payload.TableID); err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(attribute.String("table.id", payload.TableID)))
	defer span.End()

	order, err := h.orders.CreateOrder(ctx, payload.TableID, toItems(payload.Items))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, dto.NewOrderResponse(order))
}

func (h *Handler) createPreOrder(c echo.Context) error {
	tableID := c.Param("table_id")
	if err := validateUUID("table_id", tableID); err != nil {
		return response.Error(c, err)
	}

	var payload dto.PreOrderRequest
	if err := c.Bind(&payload); err != nil {
		return response.Error(c, errorbank.BadRequest("invalid payload", errorbank.WithCause(err)))
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.createPreOrder", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	order, err := h.orders.CreatePreOrder(ctx, tableID, payload.PayerName, payload.TotalAmount, toItems(payload.Items))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, dto.PreOrderResponse{
		Order:        dto.NewOrderResponse(order),
		TransferLink: h.payments.TransferLink(payload.TotalAmount),
	})
}

func (h *Handler) history(c echo.Context) error {
	tableID := c.QueryParam("table_id")
	if tableID != "" {
		if err := validateUUID("table_id", tableID); err != nil {
			return response.Error(c, err)
		}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.history", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	history, err := h.orders.History(ctx, tableID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.HistoryResponse{
		Orders:     dto.NewOrderResponses(history.Orders),
		TotalSpent: history.TotalSpent,
	})
}

func (h *Handler) getByID(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := h.orders.Get(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewOrderResponse(order))
}

func (h *Handler) delete(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.delete", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	if err := h.orders.Delete(ctx, id); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, map[string]string{"id": id})
}

func (h *Handler) paymentStatus(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.paymentStatus", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	status, err := h.payments.PaymentStatus(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewPaymentStatusResponse(status))
}

func (h *Handler) complete(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.complete", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := h.orders.Complete(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewOrderResponse(order))
}

func (h *Handler) refundable(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.refundable", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	summary, err := h.refunds.Refundable(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewRefundableResponse(summary))
}

func (h *Handler) refundLine(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return response.Error(c, err)
	}
	var payload dto.RefundLineRequest
	if err := c.Bind(&payload); err != nil {
		return response.Error(c, errorbank.BadRequest("invalid payload", errorbank.WithCause(err)))
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.refundLine", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.Int64("food.id", payload.FoodID),
		attribute.Int("refund.quantity", payload.Quantity),
	))
	defer span.End()

	order, err := h.refunds.RefundLine(ctx, id, payload.FoodID, payload.Quantity)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewOrderResponse(order))
}

func (h *Handler) refundFull(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.refundFull", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	result, err := h.refunds.RefundFull(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewFullRefundResponse(result))
}

func (h *Handler) adjustLine(c echo.Context) error {
	id, err := orderID(c)
	if err != nil {
		return response.Error(c, err)
	}
	var payload dto.AdjustLineRequest
	if err := c.Bind(&payload); err != nil {
		return response.Error(c, errorbank.BadRequest("invalid payload", errorbank.WithCause(err)))
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.adjustLine", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("adjustment.reason", payload.Reason),
	))
	defer span.End()

	order, err := h.refunds.AdjustLine(ctx, id, payload.FoodID, payload.Quantity, entity.AdjustmentReason(payload.Reason))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewOrderResponse(order))
}

func orderID(c echo.Context) (string, error) {
	id := c.Param("id")
	return id, validateUUID("id", id)
}

// validateUUID rejects malformed ids up front so they read as 400 rather than a
// missing row.
func validateUUID(field, value string) error {
	if err := uuid.Validate(value); err != nil {
		return errorbank.BadRequest("invalid "+field, errorbank.WithDetail(field, value))
	}
	return nil
}

func toItems(items []dto.OrderItemRequest) []ordersvc.Item {
	return lo.Map(items, func(item dto.OrderItemRequest, _ int) ordersvc.Item {
		return ordersvc.Item{FoodID: item.FoodID, Quantity: item.Quantity}
	})
}
