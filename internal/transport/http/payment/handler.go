package payment

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/dto"
	"github.com/Additional-Code/tableorder/internal/presentation/http/response"
	service "github.com/Additional-Code/tableorder/internal/service/payment"
)

const (
	webhookKeyHeader = "x-webhook-key"
	maxWebhookBody   = 64 << 10
	defaultListLimit = 100
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tableorder/transport/http/payment")

// Handler receives bank deposit webhooks and lists the deposit ledger.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewHandler constructs a payment Handler.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.Named("http.payment")}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/webhook/payment", h.webhook)
	e.GET("/payments", h.list)
}

// webhook always acknowledges with 200 so the bank never retries. A wrong key, a bad
// payload or a reconciliation failure is logged and the delivery dropped.
func (h *Handler) webhook(c echo.Context) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "payments.webhook")
	defer span.End()

	ack := dto.WebhookAck{Status: "success"}

	if !h.svc.VerifyKey(c.Request().Header.Get(webhookKeyHeader)) {
		h.logger.Warn("payment webhook rejected", zap.Error(service.ErrInvalidWebhookKey), zap.String("remote_ip", c.RealIP()))
		span.SetStatus(codes.Error, "invalid webhook key")
		return c.JSON(http.StatusOK, ack)
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("payment webhook body unreadable", zap.Error(err))
		return c.JSON(http.StatusOK, ack)
	}

	receipt, err := h.svc.RecordDeposit(ctx, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record deposit failed")
		h.logger.Warn("payment webhook not processed", zap.Error(err), zap.String("deposit_id", receipt.DepositID))
		return c.JSON(http.StatusOK, ack)
	}

	span.SetAttributes(
		attribute.Bool("deposit.ignored", receipt.Ignored),
		attribute.Bool("deposit.matched", receipt.Matched.IsPresent()),
	)
	return c.JSON(http.StatusOK, ack)
}

func (h *Handler) list(c echo.Context) error {
	limit := defaultListLimit
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		limit = n
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.list")
	defer span.End()

	deposits, err := h.svc.ListDeposits(ctx, limit)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewDepositResponses(deposits))
}
