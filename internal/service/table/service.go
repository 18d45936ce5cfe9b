package table

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/database"
	"github.com/Additional-Code/tableorder/internal/entity"
	orderrepo "github.com/Additional-Code/tableorder/internal/repository/order"
	tablerepo "github.com/Additional-Code/tableorder/internal/repository/table"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tableorder/service/table")

// Service manages the table registry.
type Service struct {
	conns  *database.Connections
	tables *tablerepo.Repository
	orders *orderrepo.Repository
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Tables      *tablerepo.Repository
	Orders      *orderrepo.Repository
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		conns:  p.Connections,
		tables: p.Tables,
		orders: p.Orders,
		logger: p.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List returns every table in creation order.
func (s *Service) List(ctx context.Context) ([]*entity.Table, error) {
	ctx, span := serviceTracer.Start(ctx, "TableService.List")
	defer span.End()

	tables, err := s.tables.List(ctx)
	if err != nil {
		return nil, s.repoError(span, err, "failed to list tables")
	}
	return tables, nil
}

// Get loads a table.
func (s *Service) Get(ctx context.Context, id string) (*entity.Table, error) {
	ctx, span := serviceTracer.Start(ctx, "TableService.Get", trace.WithAttributes(attribute.String("table.id", id)))
	defer span.End()

	table, err := s.tables.GetByID(ctx, id)
	if err != nil {
		return nil, s.repoError(span, err, "failed to load table")
	}
	return table, nil
}

// Create registers a table. An empty name becomes "Table N" where N follows the
// current table count.
func (s *Service) Create(ctx context.Context, name string) (*entity.Table, error) {
	ctx, span := serviceTracer.Start(ctx, "TableService.Create")
	defer span.End()

	now := s.now()
	table := &entity.Table{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		tables := s.tables.WithTx(tx)
		if table.Name == "" {
			n, err := tables.Count(ctx)
			if err != nil {
				return err
			}
			table.Name = fmt.Sprintf("Table %d", n+1)
		}
		return tables.Create(ctx, table)
	})
	if err != nil {
		return nil, s.repoError(span, err, "failed to create table")
	}

	if s.logger != nil {
		s.logger.Info("table created", zap.String("table_id", table.ID), zap.String("name", table.Name))
	}
	return table, nil
}

// Rename changes a table's display name.
func (s *Service) Rename(ctx context.Context, id, name string) (*entity.Table, error) {
	ctx, span := serviceTracer.Start(ctx, "TableService.Rename", trace.WithAttributes(attribute.String("table.id", id)))
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errorbank.BadRequest("name is required")
	}
	if err := s.tables.Rename(ctx, id, name, s.now()); err != nil {
		return nil, s.repoError(span, err, "failed to rename table")
	}
	return s.Get(ctx, id)
}

// Delete removes a table together with all of its orders, lines and adjustments.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := serviceTracer.Start(ctx, "TableService.Delete", trace.WithAttributes(attribute.String("table.id", id)))
	defer span.End()

	var removed int64
	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.tables.WithTx(tx).GetByID(ctx, id); err != nil {
			return err
		}
		n, err := s.orders.WithTx(tx).DeleteByTable(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return s.tables.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return s.repoError(span, err, "failed to delete table")
	}

	if s.logger != nil {
		s.logger.Info("table deleted", zap.String("table_id", id), zap.Int64("orders_removed", removed))
	}
	return nil
}

// Reset checks a table out by hiding every visible order. Orders stay persisted and the
// next order admitted for the table counts as its first again.
func (s *Service) Reset(ctx context.Context, id string) (int64, error) {
	ctx, span := serviceTracer.Start(ctx, "TableService.Reset", trace.WithAttributes(attribute.String("table.id", id)))
	defer span.End()

	if _, err := s.tables.GetByID(ctx, id); err != nil {
		return 0, s.repoError(span, err, "failed to load table")
	}
	hidden, err := s.orders.HideByTable(ctx, id, s.now())
	if err != nil {
		return 0, s.repoError(span, err, "failed to reset table")
	}

	if s.logger != nil {
		s.logger.Info("table reset", zap.String("table_id", id), zap.Int64("orders_hidden", hidden))
	}
	return hidden, nil
}

func (s *Service) repoError(span trace.Span, err error, message string) error {
	if errors.Is(err, tablerepo.ErrNotFound) {
		return errorbank.NotFound("table not found")
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	return errorbank.Internal(message, errorbank.WithCause(err))
}
