package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tableorder/internal/database"
	"github.com/Additional-Code/tableorder/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tableorder/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates read/write access for orders and their owned lines and
// adjustment entries.
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

// Create persists an order and its lines. Line order ids are filled in from the order.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("order.lines", len(order.Lines)),
	))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(order).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}

	if len(order.Lines) == 0 {
		return nil
	}
	for _, line := range order.Lines {
		line.OrderID = order.ID
	}
	if _, err := r.writer.NewInsert().Model(&order.Lines).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert lines failed")
		return err
	}
	return nil
}

// GetByID loads the full aggregate: table, lines with their foods, and adjustments.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.aggregate(r.reader.NewSelect().Model(order)).Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// LockByID takes an exclusive lock on the order row. It must run inside a transaction.
func (r *Repository) LockByID(ctx context.Context, id string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.LockByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	var lockedID string
	q := r.writer.NewSelect().Model((*entity.Order)(nil)).Column("o.id").Where("o.id = ?", id)
	err := database.ForUpdate(r.writer, q).Scan(ctx, &lockedID)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock failed")
		return err
	}
	return nil
}

// CountVisibleByTable counts the table's orders still shown in its active view.
func (r *Repository) CountVisibleByTable(ctx context.Context, tableID string) (int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountVisibleByTable", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	n, err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		Where("o.table_id = ?", tableID).
		Where("o.is_visible = ?", true).
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
	}
	return n, err
}

// ListVisible loads visible orders newest first, limited to one table when tableID is
// set. Zero-total orders are filtered by the caller since totals need the aggregate.
func (r *Repository) ListVisible(ctx context.Context, tableID string) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListVisible", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	orders := make([]*entity.Order, 0)
	q := r.aggregate(r.reader.NewSelect().Model(&orders)).
		Where("o.is_visible = ?", true).
		OrderExpr("o.order_date DESC, o.id DESC")
	if tableID != "" {
		q = q.Where("o.table_id = ?", tableID)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// FindPreOrders returns every pending pre-order committed by payer for exactly amount,
// hidden orders included.
func (r *Repository) FindPreOrders(ctx context.Context, payer string, amount int64) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindPreOrders", trace.WithAttributes(attribute.Int64("order.amount", amount)))
	defer span.End()

	orders := make([]*entity.Order, 0)
	err := r.aggregate(r.reader.NewSelect().Model(&orders)).
		Where("o.status = ?", entity.StatusPreOrder).
		Where("o.payer_name = ?", payer).
		Where("o.pre_order_amount = ?", amount).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// UpdateStatus sets the status unconditionally.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status entity.OrderStatus, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return r.requireExists(ctx, id)
}

// CompletePreOrder moves an order from PreOrder to Completed. It reports false when
// the order exists but is no longer pending.
func (r *Repository) CompletePreOrder(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CompletePreOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", entity.StatusCompleted).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", entity.StatusPreOrder).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	return false, r.requireExists(ctx, id)
}

// HideByTable clears the visibility flag of every order of the table.
func (r *Repository) HideByTable(ctx context.Context, tableID string, at time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.HideByTable", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("is_visible = ?", false).
		Set("updated_at = ?", at).
		Where("table_id = ?", tableID).
		Where("is_visible = ?", true).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// AppendAdjustments writes new ledger entries. Existing lines and entries are never
// touched.
func (r *Repository) AppendAdjustments(ctx context.Context, entries []*entity.AdjustmentEntry) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.AppendAdjustments", trace.WithAttributes(attribute.Int("adjustment.count", len(entries))))
	defer span.End()

	if len(entries) == 0 {
		return nil
	}
	if _, err := r.writer.NewInsert().Model(&entries).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Delete removes an order together with its lines and adjustment entries.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Delete", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	for _, model := range []any{(*entity.AdjustmentEntry)(nil), (*entity.OrderLine)(nil)} {
		if _, err := r.writer.NewDelete().Model(model).Where("order_id = ?", id).Exec(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete children failed")
			return err
		}
	}

	res, err := r.writer.NewDelete().Model((*entity.Order)(nil)).Where("id = ?", id).Exec(ctx)
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

// DeleteByTable removes every order of the table with their owned rows.
func (r *Repository) DeleteByTable(ctx context.Context, tableID string) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.DeleteByTable", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	owned := r.writer.NewSelect().Model((*entity.Order)(nil)).Column("o.id").Where("o.table_id = ?", tableID)
	for _, model := range []any{(*entity.AdjustmentEntry)(nil), (*entity.OrderLine)(nil)} {
		if _, err := r.writer.NewDelete().Model(model).Where("order_id IN (?)", owned).Exec(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete children failed")
			return 0, err
		}
	}

	res, err := r.writer.NewDelete().Model((*entity.Order)(nil)).Where("table_id = ?", tableID).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClaimNotification sets discord_notified if it was unset and reports whether this
// caller won the claim.
func (r *Repository) ClaimNotification(ctx context.Context, id string) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ClaimNotification", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("discord_notified = ?", true).
		Where("id = ?", id).
		Where("discord_notified = ?", false).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ReleaseNotification clears discord_notified after a failed delivery.
func (r *Repository) ReleaseNotification(ctx context.Context, id string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ReleaseNotification", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	_, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("discord_notified = ?", false).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

func (r *Repository) aggregate(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Relation("Table").
		Relation("Lines", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.id ASC")
		}).
		Relation("Lines.Food").
		Relation("Adjustments", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.id ASC")
		})
}

func (r *Repository) requireExists(ctx context.Context, id string) error {
	exists, err := r.writer.NewSelect().Model((*entity.Order)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}
