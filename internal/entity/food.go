package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Category classifies menu items for the first-order main dish rule.
type Category string

const (
	CategoryMain Category = "main"
	CategorySide Category = "side"
)

// Valid reports whether the category is one of the supported values.
func (c Category) Valid() bool {
	return c == CategoryMain || c == CategorySide
}

// Food is a menu item. Price is kept in minor currency units.
type Food struct {
	bun.BaseModel `bun:"table:foods,alias:f"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Price       int64     `bun:"price,notnull" json:"price"`
	Category    Category  `bun:"category,notnull" json:"category"`
	Description string    `bun:"description,nullzero" json:"description,omitempty"`
	ImageURL    string    `bun:"image_url,nullzero" json:"image_url,omitempty"`
	SoldOut     bool      `bun:"sold_out,notnull" json:"sold_out"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}
