package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/tableorder/internal/entity"
)

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		(*entity.Food)(nil),
		(*entity.Table)(nil),
		(*entity.Order)(nil),
		(*entity.OrderLine)(nil),
		(*entity.AdjustmentEntry)(nil),
		(*entity.PaymentDeposit)(nil),
	}
}

// CreateSchema creates the tables straight from the bun models. It backs SQLite
// deployments and tests; other drivers use the goose migrations.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropSchema drops the tables created by CreateSchema.
func DropSchema(ctx context.Context, db bun.IDB) error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", models[i], err)
		}
	}
	return nil
}
