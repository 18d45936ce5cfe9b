package food

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/cache"
	"github.com/Additional-Code/tableorder/internal/config"
	"github.com/Additional-Code/tableorder/internal/database"
	"github.com/Additional-Code/tableorder/internal/entity"
	foodrepo "github.com/Additional-Code/tableorder/internal/repository/food"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tableorder/service/food")

const menuCachePrefix = "menu:"

// Input carries the editable fields of a menu item.
type Input struct {
	Name        string
	Price       int64
	Category    entity.Category
	Description string
	ImageURL    string
	SoldOut     bool
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errorbank.BadRequest("name is required")
	}
	if in.Price < 0 {
		return errorbank.BadRequest("price must not be negative")
	}
	if !in.Category.Valid() {
		return errorbank.BadRequest("category must be main or side", errorbank.WithDetail("category", in.Category))
	}
	return nil
}

// Service manages the menu catalog. Listings are cached; order admission never reads
// through this cache.
type Service struct {
	conns    *database.Connections
	repo     *foodrepo.Repository
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Repository  *foodrepo.Repository
	Cache       cache.Store
	Config      config.Config
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		conns:    p.Connections,
		repo:     p.Repository,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.MenuTTL,
		logger:   p.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns the menu, optionally limited to a category.
func (s *Service) List(ctx context.Context, category entity.Category) ([]*entity.Food, error) {
	ctx, span := serviceTracer.Start(ctx, "FoodService.List", trace.WithAttributes(attribute.String("food.category", string(category))))
	defer span.End()

	if category != "" && !category.Valid() {
		return nil, errorbank.BadRequest("category must be main or side", errorbank.WithDetail("category", category))
	}

	key := menuCacheKey(category)
	var foods []*entity.Food
	if err := cache.GetJSON(ctx, s.cache, key, &foods); err == nil {
		return foods, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) && s.logger != nil {
		s.logger.Warn("menu cache read failed", zap.String("key", key), zap.Error(err))
	}

	foods, err := s.repo.List(ctx, category)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list foods", errorbank.WithCause(err))
	}

	if err := cache.SetJSON(ctx, s.cache, key, foods, s.cacheTTL); err != nil && s.logger != nil {
		s.logger.Warn("menu cache write failed", zap.String("key", key), zap.Error(err))
	}
	return foods, nil
}

// Get loads a single menu item.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Food, error) {
	ctx, span := serviceTracer.Start(ctx, "FoodService.Get", trace.WithAttributes(attribute.Int64("food.id", id)))
	defer span.End()

	food, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.repoError(span, err, "failed to load food")
	}
	return food, nil
}

// Create adds a menu item.
func (s *Service) Create(ctx context.Context, in Input) (*entity.Food, error) {
	ctx, span := serviceTracer.Start(ctx, "FoodService.Create", trace.WithAttributes(attribute.String("food.name", in.Name)))
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	food := &entity.Food{
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Category:    in.Category,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		SoldOut:     in.SoldOut,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, food); err != nil {
		return nil, s.repoError(span, err, "failed to create food")
	}

	s.invalidate(ctx)
	return food, nil
}

// Update replaces the editable fields of a menu item. Orders already placed keep the
// price captured on their lines.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*entity.Food, error) {
	ctx, span := serviceTracer.Start(ctx, "FoodService.Update", trace.WithAttributes(attribute.Int64("food.id", id)))
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, err
	}

	food, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.repoError(span, err, "failed to load food")
	}
	food.Name = strings.TrimSpace(in.Name)
	food.Price = in.Price
	food.Category = in.Category
	food.Description = in.Description
	food.ImageURL = in.ImageURL
	food.SoldOut = in.SoldOut
	food.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, food); err != nil {
		return nil, s.repoError(span, err, "failed to update food")
	}

	s.invalidate(ctx)
	return food, nil
}

// ToggleSoldOut flips the sold-out flag. The flag is read under the row lock so two
// concurrent toggles cannot both see the same starting value.
func (s *Service) ToggleSoldOut(ctx context.Context, id int64) (*entity.Food, error) {
	ctx, span := serviceTracer.Start(ctx, "FoodService.ToggleSoldOut", trace.WithAttributes(attribute.Int64("food.id", id)))
	defer span.End()

	var food *entity.Food
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockByIDs(ctx, []int64{id})
		if err != nil {
			return err
		}
		current, ok := locked[id]
		if !ok {
			return foodrepo.ErrNotFound
		}
		current.SoldOut = !current.SoldOut
		if err := repo.SetSoldOut(ctx, id, current.SoldOut); err != nil {
			return err
		}
		food = current
		return nil
	})
	if err != nil {
		return nil, s.repoError(span, err, "failed to toggle sold out")
	}

	if s.logger != nil {
		s.logger.Info("food availability changed", zap.Int64("food_id", id), zap.Bool("sold_out", food.SoldOut))
	}
	s.invalidate(ctx)
	return food, nil
}

// Delete removes a menu item that no order references.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "FoodService.Delete", trace.WithAttributes(attribute.Int64("food.id", id)))
	defer span.End()

	var refs int
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.LockByIDs(ctx, []int64{id}); err != nil {
			return err
		}
		n, err := repo.CountReferences(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			refs = n
			return errReferenced
		}
		return repo.Delete(ctx, id)
	})
	if errors.Is(err, errReferenced) {
		return errorbank.Conflict("food is referenced by existing orders", errorbank.WithDetail("references", refs))
	}
	if err != nil {
		return s.repoError(span, err, "failed to delete food")
	}

	s.invalidate(ctx)
	return nil
}

var errReferenced = errors.New("food is referenced")

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	keys := []string{
		menuCacheKey(""),
		menuCacheKey(entity.CategoryMain),
		menuCacheKey(entity.CategorySide),
	}
	if err := s.cache.Delete(ctx, keys...); err != nil && s.logger != nil {
		s.logger.Warn("menu cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) repoError(span trace.Span, err error, message string) error {
	if errors.Is(err, foodrepo.ErrNotFound) {
		return errorbank.NotFound("food not found")
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	return errorbank.Internal(message, errorbank.WithCause(err))
}

func menuCacheKey(category entity.Category) string {
	if category == "" {
		return menuCachePrefix + "all"
	}
	return menuCachePrefix + string(category)
}
