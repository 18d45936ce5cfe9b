// Package databasetest opens throwaway SQLite databases for repository and service tests.
package databasetest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/Additional-Code/tableorder/internal/database"
	"github.com/Additional-Code/tableorder/internal/entity"
)

// New returns connections to a private in-memory database with the schema applied.
// The pool holds a single connection, so concurrent transactions queue behind each
// other the way they would on a single-writer store.
func New(t testing.TB) *database.Connections {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	sqldb, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, database.CreateSchema(context.Background(), db))

	t.Cleanup(func() {
		_ = db.Close()
	})

	return &database.Connections{Writer: db, Reader: db}
}

// InsertFood stores a menu item for a test and returns it with its id set.
func InsertFood(t testing.TB, conns *database.Connections, name string, price int64, category entity.Category, soldOut bool) *entity.Food {
	t.Helper()

	now := time.Now().UTC()
	food := &entity.Food{
		Name:      name,
		Price:     price,
		Category:  category,
		SoldOut:   soldOut,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := conns.Writer.NewInsert().Model(food).Exec(context.Background())
	require.NoError(t, err)
	return food
}

// InsertTable stores a named table for a test.
func InsertTable(t testing.TB, conns *database.Connections, name string) *entity.Table {
	t.Helper()

	now := time.Now().UTC()
	table := &entity.Table{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := conns.Writer.NewInsert().Model(table).Exec(context.Background())
	require.NoError(t, err)
	return table
}
