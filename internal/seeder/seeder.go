package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/database"
	"github.com/Additional-Code/tableorder/internal/entity"
)

// Module provides the Seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

var sampleMenu = []entity.Food{
	{Name: "Jjajangmyeon", Price: 7000, Category: entity.CategoryMain, Description: "Black bean noodles"},
	{Name: "Jjamppong", Price: 8000, Category: entity.CategoryMain, Description: "Spicy seafood noodle soup"},
	{Name: "Tangsuyuk", Price: 15000, Category: entity.CategoryMain, Description: "Sweet and sour pork"},
	{Name: "Fried Dumplings", Price: 5000, Category: entity.CategorySide},
	{Name: "Cola", Price: 2000, Category: entity.CategorySide},
}

// Run seeds the menu and tables.
func (s *Seeder) Run(ctx context.Context, tables int) error {
	if err := s.Foods(ctx); err != nil {
		return err
	}
	return s.Tables(ctx, tables)
}

// Foods inserts sample menu items whose names are not yet on the menu.
func (s *Seeder) Foods(ctx context.Context) error {
	inserted := 0
	for _, sample := range sampleMenu {
		exists, err := s.db.NewSelect().Model((*entity.Food)(nil)).Where("name = ?", sample.Name).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check food %q: %w", sample.Name, err)
		}
		if exists {
			continue
		}

		food := sample
		food.CreatedAt, food.UpdatedAt = s.now(), s.now()
		if _, err := s.db.NewInsert().Model(&food).Exec(ctx); err != nil {
			return fmt.Errorf("insert food %q: %w", sample.Name, err)
		}
		inserted++
	}

	if s.logger != nil {
		s.logger.Info("seeded foods", zap.Int("count", inserted))
	}
	return nil
}

// Tables creates numbered tables until at least count exist.
func (s *Seeder) Tables(ctx context.Context, count int) error {
	existing, err := s.db.NewSelect().Model((*entity.Table)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count tables: %w", err)
	}

	for i := existing; i < count; i++ {
		table := &entity.Table{
			ID:        uuid.NewString(),
			Name:      fmt.Sprintf("Table %d", i+1),
			CreatedAt: s.now(),
			UpdatedAt: s.now(),
		}
		if _, err := s.db.NewInsert().Model(table).Exec(ctx); err != nil {
			return fmt.Errorf("insert table: %w", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded tables", zap.Int("count", max(count-existing, 0)))
	}
	return nil
}
