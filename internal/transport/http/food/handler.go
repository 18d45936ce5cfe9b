package food

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tableorder/internal/dto"
	"github.com/Additional-Code/tableorder/internal/entity"
	"github.com/Additional-Code/tableorder/internal/presentation/http/response"
	service "github.com/Additional-Code/tableorder/internal/service/food"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/tableorder/transport/http/food")

// Handler exposes the menu catalog over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a food Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/foods")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.getByID)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/sold-out", h.toggleSoldOut)
}

func (h *Handler) list(c echo.Context) error {
	category := entity.Category(c.QueryParam("category"))

	ctx, span := httpTracer.Start(c.Request().Context(), "foods.list", trace.WithAttributes(attribute.String("food.category", string(category))))
	defer span.End()

	foods, err := h.svc.List(ctx, category)
	if err != nil {
		return response.Error(c, err)
	}
	return response.New(c).WithData(dto.NewFoodResponses(foods)).WithMeta("count", len(foods)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	id, err := foodID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "foods.getByID", trace.WithAttributes(attribute.Int64("food.id", id)))
	defer span.End()

	food, err := h.svc.Get(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewFoodResponse(food))
}

func (h *Handler) create(c echo.Context) error {
	in, err := bindInput(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "foods.create", trace.WithAttributes(attribute.String("food.name", in.Name)))
	defer span.End()

	food, err := h.svc.Create(ctx, in)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, dto.NewFoodResponse(food))
}

func (h *Handler) update(c echo.Context) error {
	id, err := foodID(c)
	if err != nil {
		return response.Error(c, err)
	}
	in, err := bindInput(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "foods.update", trace.WithAttributes(attribute.Int64("food.id", id)))
	defer span.End()

	food, err := h.svc.Update(ctx, id, in)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewFoodResponse(food))
}

func (h *Handler) toggleSoldOut(c echo.Context) error {
	id, err := foodID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "foods.toggleSoldOut", trace.WithAttributes(attribute.Int64("food.id", id)))
	defer span.End()

	food, err := h.svc.ToggleSoldOut(ctx, id)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, dto.NewFoodResponse(food))
}

func (h *Handler) delete(c echo.Context) error {
	id, err := foodID(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "foods.delete", trace.WithAttributes(attribute.Int64("food.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, map[string]int64{"id": id})
}

func foodID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithDetail("id", c.Param("id")))
	}
	return id, nil
}

func bindInput(c echo.Context) (service.Input, error) {
	var payload dto.FoodRequest
	if err := c.Bind(&payload); err != nil {
		return service.Input{}, errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	return service.Input{
		Name:        payload.Name,
		Price:       payload.Price,
		Category:    entity.Category(payload.Category),
		Description: payload.Description,
		ImageURL:    payload.ImageURL,
		SoldOut:     payload.SoldOut,
	}, nil
}
