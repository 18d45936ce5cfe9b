package food

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tableorder/internal/database"
	"github.com/Additional-Code/tableorder/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tableorder/repository/food")

// ErrNotFound is returned when a food item is missing.
var ErrNotFound = errors.New("food not found")

// Repository encapsulates read/write access for the menu catalog.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// WithTx returns a copy bound to tx for both reads and writes.
func (r *Repository) WithTx(tx bun.Tx) *Repository {
	return &Repository{writer: tx, reader: tx}
}

// List returns the catalog ordered by id, optionally limited to one category.
func (r *Repository) List(ctx context.Context, category entity.Category) ([]*entity.Food, error) {
	ctx, span := repoTracer.Start(ctx, "FoodRepository.List", trace.WithAttributes(attribute.String("food.category", string(category))))
	defer span.End()

	foods := make([]*entity.Food, 0)
	q := r.reader.NewSelect().Model(&foods).OrderExpr("f.id ASC")
	if category != "" {
		q = q.Where("f.category = ?", category)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return foods, nil
}

// GetByID fetches a food item by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Food, error) {
	ctx, span := repoTracer.Start(ctx, "FoodRepository.GetByID", trace.WithAttributes(attribute.Int64("food.id", id)))
	defer span.End()

	food := new(entity.Food)
	err := r.reader.NewSelect().Model(food).Where("f.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return food, nil
}

// GetByIDs reads the given foods without locking, keyed by id. Missing ids are simply
// absent from the result.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Food, error) {
	ctx, span := repoTracer.Start(ctx, "FoodRepository.GetByIDs", trace.WithAttributes(attribute.Int("food.count", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return map[int64]*entity.Food{}, nil
	}

	foods := make([]*entity.Food, 0, len(ids))
	if err := r.reader.NewSelect().Model(&foods).Where("f.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return lo.KeyBy(foods, func(f *entity.Food) int64 { return f.ID }), nil
}

// LockByIDs takes exclusive row locks on the given foods in ascending id order and
// returns the locked rows keyed by id. It must run inside a transaction.
func (r *Repository) LockByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Food, error) {
	ctx, span := repoTracer.Start(ctx, "FoodRepository.LockByIDs", trace.WithAttributes(attribute.Int("food.count", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return map[int64]*entity.Food{}, nil
	}

	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	foods := make([]*entity.Food, 0, len(sorted))
	q := r.writer.NewSelect().Model(&foods).Where("f.id IN (?)", bun.In(sorted)).OrderExpr("f.id ASC")
	if err := database.ForUpdate(r.writer, q).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock failed")
		return nil, err
	}
	return lo.KeyBy(foods, func(f *entity.Food) int64 { return f.ID }), nil
}

// Create inserts a food item and populates its id.
func (r *Repository) Create(ctx context.Context, food *entity.Food) error {
	if food == nil {
		return errors.New("nil food")
	}
	ctx, span := repoTracer.Start(ctx, "FoodRepository.Create", trace.WithAttributes(attribute.String("food.name", food.Name)))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(food).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Update overwrites the mutable fields of a food item.
func (r *Repository) Update(ctx context.Context, food *entity.Food) error {
	if food == nil {
		return errors.New("nil food")
	}
	ctx, span := repoTracer.Start(ctx, "FoodRepository.Update", trace.WithAttributes(attribute.Int64("food.id", food.ID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(food).
		Column("name", "price", "category", "description", "image_url", "sold_out", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return r.requireRow(ctx, res, food.ID)
}

// SetSoldOut flips the availability flag of a single food item.
func (r *Repository) SetSoldOut(ctx context.Context, id int64, soldOut bool) error {
	ctx, span := repoTracer.Start(ctx, "FoodRepository.SetSoldOut", trace.WithAttributes(
		attribute.Int64("food.id", id),
		attribute.Bool("food.sold_out", soldOut),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Food)(nil)).
		Set("sold_out = ?", soldOut).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return r.requireRow(ctx, res, id)
}

// Delete removes a food item. Callers check CountReferences first.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "FoodRepository.Delete", trace.WithAttributes(attribute.Int64("food.id", id)))
	defer span.End()

	res, err := r.writer.NewDelete().Model((*entity.Food)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountReferences counts the order lines and adjustment entries pointing at a food.
func (r *Repository) CountReferences(ctx context.Context, id int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "FoodRepository.CountReferences", trace.WithAttributes(attribute.Int64("food.id", id)))
	defer span.End()

	lines, err := r.writer.NewSelect().Model((*entity.OrderLine)(nil)).Where("food_id = ?", id).Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return 0, err
	}
	adjustments, err := r.writer.NewSelect().Model((*entity.AdjustmentEntry)(nil)).Where("food_id = ?", id).Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return 0, err
	}
	return lines + adjustments, nil
}

// requireRow maps an update that touched nothing to ErrNotFound. MySQL reports zero
// affected rows for no-op updates, so existence is confirmed before failing.
func (r *Repository) requireRow(ctx context.Context, res sql.Result, id int64) error {
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	exists, err := r.writer.NewSelect().Model((*entity.Food)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}
