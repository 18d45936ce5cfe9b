package deposit

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tableorder/internal/database"
	"github.com/Additional-Code/tableorder/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tableorder/repository/deposit")

// Repository appends to and reads the deposit ledger. Rows are never updated.
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

// Create appends a deposit record.
func (r *Repository) Create(ctx context.Context, deposit *entity.PaymentDeposit) error {
	if deposit == nil {
		return errors.New("nil deposit")
	}
	ctx, span := repoTracer.Start(ctx, "DepositRepository.Create", trace.WithAttributes(
		attribute.String("deposit.id", deposit.ID),
		attribute.Int64("deposit.amount", deposit.Amount),
	))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(deposit).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// List returns deposits newest first. A non-positive limit returns everything.
func (r *Repository) List(ctx context.Context, limit int) ([]*entity.PaymentDeposit, error) {
	ctx, span := repoTracer.Start(ctx, "DepositRepository.List", trace.WithAttributes(attribute.Int("deposit.limit", limit)))
	defer span.End()

	deposits := make([]*entity.PaymentDeposit, 0)
	q := r.reader.NewSelect().Model(&deposits).OrderExpr("pd.transaction_date DESC, pd.created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return deposits, nil
}
