package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Table is a dining table that owns orders.
type Table struct {
	bun.BaseModel `bun:"table:tables,alias:t"`

	ID        string    `bun:"id,pk,type:uuid" json:"id"`
	Name      string    `bun:"name,nullzero" json:"name,omitempty"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}

// DisplayName falls back to the id when the table was never named.
func (t *Table) DisplayName() string {
	if t == nil {
		return ""
	}
	if t.Name != "" {
		return t.Name
	}
	return "Table " + t.ID
}
