package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderStatus tracks the payment state of an order.
type OrderStatus string

const (
	StatusPreOrder  OrderStatus = "pre_order"
	StatusCompleted OrderStatus = "completed"
	StatusRefunded  OrderStatus = "refunded"
)

// Valid reports whether the status is known.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPreOrder, StatusCompleted, StatusRefunded:
		return true
	}
	return false
}

// AdjustmentReason explains why an adjustment entry reduced an order's value.
type AdjustmentReason string

const (
	ReasonSoldOut     AdjustmentReason = "sold_out"
	ReasonUnavailable AdjustmentReason = "unavailable"
	ReasonDamaged     AdjustmentReason = "damaged"
	ReasonRefund      AdjustmentReason = "refund"
)

// Valid reports whether the reason is known.
func (r AdjustmentReason) Valid() bool {
	switch r {
	case ReasonSoldOut, ReasonUnavailable, ReasonDamaged, ReasonRefund:
		return true
	}
	return false
}

// Order is the aggregate root for a table's order. Lines and adjustments are loaded
// eagerly and every total is computed from those in-memory collections.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              string      `bun:"id,pk,type:uuid" json:"id"`
	TableID         string      `bun:"table_id,notnull,type:uuid" json:"table_id"`
	PayerName       string      `bun:"payer_name,nullzero" json:"payer_name,omitempty"`
	Status          OrderStatus `bun:"status,notnull" json:"status"`
	PreOrderAmount  *int64      `bun:"pre_order_amount" json:"pre_order_amount,omitempty"`
	IsVisible       bool        `bun:"is_visible,notnull" json:"is_visible"`
	DiscordNotified bool        `bun:"discord_notified,notnull" json:"discord_notified"`
	OrderDate       time.Time   `bun:"order_date,notnull" json:"order_date"`
	CreatedAt       time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time   `bun:"updated_at,nullzero" json:"updated_at"`

	Table       *Table             `bun:"rel:belongs-to,join:table_id=id" json:"table,omitempty"`
	Lines       []*OrderLine       `bun:"rel:has-many,join:id=order_id" json:"lines"`
	Adjustments []*AdjustmentEntry `bun:"rel:has-many,join:id=order_id" json:"adjustments"`
}

// OrderLine is an immutable line item with the unit price captured at order time.
type OrderLine struct {
	bun.BaseModel `bun:"table:order_lines,alias:ol"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	OrderID  string `bun:"order_id,notnull,type:uuid" json:"order_id"`
	FoodID   int64  `bun:"food_id,notnull" json:"food_id"`
	Quantity int    `bun:"quantity,notnull" json:"quantity"`
	Price    int64  `bun:"price,notnull" json:"price"`

	Food *Food `bun:"rel:belongs-to,join:food_id=id" json:"food,omitempty"`
}

// Total is quantity times captured price.
func (l *OrderLine) Total() int64 {
	return int64(l.Quantity) * l.Price
}

// AdjustmentEntry is a signed ledger row; Quantity is always <= 0.
type AdjustmentEntry struct {
	bun.BaseModel `bun:"table:order_adjustments,alias:oa"`

	ID        int64            `bun:"id,pk,autoincrement" json:"id"`
	OrderID   string           `bun:"order_id,notnull,type:uuid" json:"order_id"`
	FoodID    int64            `bun:"food_id,notnull" json:"food_id"`
	Quantity  int              `bun:"quantity,notnull" json:"quantity"`
	Price     int64            `bun:"price,notnull" json:"price"`
	Reason    AdjustmentReason `bun:"reason,notnull" json:"reason"`
	CreatedAt time.Time        `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	Food *Food `bun:"rel:belongs-to,join:food_id=id" json:"food,omitempty"`
}

// Total is the signed value of the entry.
func (a *AdjustmentEntry) Total() int64 {
	return int64(a.Quantity) * a.Price
}

// TotalAmount returns the committed pre-order amount for pending pre-orders and the
// line total plus signed adjustments otherwise.
func (o *Order) TotalAmount() int64 {
	if o.Status == StatusPreOrder && o.PreOrderAmount != nil {
		return *o.PreOrderAmount
	}
	var total int64
	for _, line := range o.Lines {
		total += line.Total()
	}
	for _, adj := range o.Adjustments {
		total += adj.Total()
	}
	return total
}

// HasLines reports whether the order carries any line items.
func (o *Order) HasLines() bool {
	return len(o.Lines) > 0
}

// Listed reports whether the order belongs in visible and history views.
func (o *Order) Listed() bool {
	return o.IsVisible && o.TotalAmount() > 0
}

// OrderedQuantity sums the quantity of every line for the food.
func (o *Order) OrderedQuantity(foodID int64) int {
	qty := 0
	for _, line := range o.Lines {
		if line.FoodID == foodID {
			qty += line.Quantity
		}
	}
	return qty
}

// AdjustedQuantity is the sum of adjustment magnitudes for the food, optionally limited
// to a set of reasons.
func (o *Order) AdjustedQuantity(foodID int64, reasons ...AdjustmentReason) int {
	qty := 0
	for _, adj := range o.Adjustments {
		if adj.FoodID != foodID {
			continue
		}
		if len(reasons) > 0 && !containsReason(reasons, adj.Reason) {
			continue
		}
		qty += -adj.Quantity
	}
	return qty
}

// EffectiveQuantity is the ordered quantity minus every adjustment for the food.
func (o *Order) EffectiveQuantity(foodID int64) int {
	return o.OrderedQuantity(foodID) - o.AdjustedQuantity(foodID)
}

// RefundableQuantity is the ordered quantity minus prior refunds, capped by the
// effective quantity so later entries can never drive it negative.
func (o *Order) RefundableQuantity(foodID int64) int {
	remaining := o.OrderedQuantity(foodID) - o.AdjustedQuantity(foodID, ReasonRefund)
	if effective := o.EffectiveQuantity(foodID); effective < remaining {
		remaining = effective
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// LinePrice returns the captured price of the first line for the food.
func (o *Order) LinePrice(foodID int64) (int64, bool) {
	for _, line := range o.Lines {
		if line.FoodID == foodID {
			return line.Price, true
		}
	}
	return 0, false
}

// FoodIDs lists the distinct foods of the order's lines in line order.
func (o *Order) FoodIDs() []int64 {
	seen := make(map[int64]struct{}, len(o.Lines))
	ids := make([]int64, 0, len(o.Lines))
	for _, line := range o.Lines {
		if _, ok := seen[line.FoodID]; ok {
			continue
		}
		seen[line.FoodID] = struct{}{}
		ids = append(ids, line.FoodID)
	}
	return ids
}

func containsReason(reasons []AdjustmentReason, r AdjustmentReason) bool {
	for _, candidate := range reasons {
		if candidate == r {
			return true
		}
	}
	return false
}
