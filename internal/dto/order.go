package dto

import (
	"time"

	"github.com/samber/lo"

	"github.com/Additional-Code/tableorder/internal/entity"
	"github.com/Additional-Code/tableorder/internal/service/refund"
)

// OrderItemRequest is one requested food and quantity.
type OrderItemRequest struct {
	FoodID   int64 `json:"food_id"`
	Quantity int   `json:"quantity"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	TableID string             `json:"table_id"`
	Items   []OrderItemRequest `json:"items"`
}

// PreOrderRequest is the body of POST /orders/pre-order/:table_id.
type PreOrderRequest struct {
	PayerName   string             `json:"payer_name"`
	TotalAmount int64              `json:"total_amount"`
	Items       []OrderItemRequest `json:"items"`
}

// OrderLineResponse is one line with its captured price.
type OrderLineResponse struct {
	FoodID   int64  `json:"food_id"`
	Name     string `json:"name,omitempty"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
	Total    int64  `json:"total"`
}

// AdjustmentResponse is one ledger entry. Quantity is negative.
type AdjustmentResponse struct {
	FoodID    int64     `json:"food_id"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID          string               `json:"id"`
	TableID     string               `json:"table_id"`
	TableName   string               `json:"table_name,omitempty"`
	PayerName   string               `json:"payer_name,omitempty"`
	Status      string               `json:"status"`
	TotalAmount int64                `json:"total_amount"`
	IsVisible   bool                 `json:"is_visible"`
	OrderDate   time.Time            `json:"order_date"`
	Lines       []OrderLineResponse  `json:"lines"`
	Adjustments []AdjustmentResponse `json:"adjustments,omitempty"`
}

// NewOrderResponse maps an order aggregate.
func NewOrderResponse(o *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:          o.ID,
		TableID:     o.TableID,
		PayerName:   o.PayerName,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount(),
		IsVisible:   o.IsVisible,
		OrderDate:   o.OrderDate,
		Lines: lo.Map(o.Lines, func(l *entity.OrderLine, _ int) OrderLineResponse {
			line := OrderLineResponse{FoodID: l.FoodID, Quantity: l.Quantity, Price: l.Price, Total: l.Total()}
			if l.Food != nil {
				line.Name = l.Food.Name
			}
			return line
		}),
		Adjustments: NewAdjustmentResponses(o.Adjustments),
	}
	if o.Table != nil {
		resp.TableName = o.Table.DisplayName()
	}
	return resp
}

// NewAdjustmentResponses maps ledger entries.
func NewAdjustmentResponses(entries []*entity.AdjustmentEntry) []AdjustmentResponse {
	return lo.Map(entries, func(a *entity.AdjustmentEntry, _ int) AdjustmentResponse {
		return AdjustmentResponse{FoodID: a.FoodID, Quantity: a.Quantity, Price: a.Price, Reason: string(a.Reason), CreatedAt: a.CreatedAt}
	})
}

// HistoryResponse is the visible order list and its spend.
type HistoryResponse struct {
	Orders     []OrderResponse `json:"orders"`
	TotalSpent int64           `json:"total_spent"`
}

// NewOrderResponses maps an order listing.
func NewOrderResponses(orders []*entity.Order) []OrderResponse {
	return lo.Map(orders, func(o *entity.Order, _ int) OrderResponse { return NewOrderResponse(o) })
}

// PreOrderResponse adds the bank transfer deep link to the created order.
type PreOrderResponse struct {
	Order        OrderResponse `json:"order"`
	TransferLink string        `json:"transfer_link"`
}

// RefundLineRequest is the body of POST /orders/:id/refunds.
type RefundLineRequest struct {
	FoodID   int64 `json:"food_id"`
	Quantity int   `json:"quantity"`
}

// AdjustLineRequest is the body of POST /orders/:id/adjustments.
type AdjustLineRequest struct {
	FoodID   int64  `json:"food_id"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// FullRefundResponse reports what a full refund did.
type FullRefundResponse struct {
	Outcome string               `json:"outcome"`
	Entries []AdjustmentResponse `json:"entries"`
	Order   OrderResponse        `json:"order"`
}

// NewFullRefundResponse maps a full refund result.
func NewFullRefundResponse(r *refund.FullRefund) FullRefundResponse {
	return FullRefundResponse{
		Outcome: string(r.Outcome),
		Entries: NewAdjustmentResponses(r.Entries),
		Order:   NewOrderResponse(r.Order),
	}
}

// RefundableLineResponse is the remaining refundable state of one food.
type RefundableLineResponse struct {
	FoodID    int64  `json:"food_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Ordered   int    `json:"ordered"`
	Refunded  int    `json:"refunded"`
	Remaining int    `json:"remaining"`
	Amount    int64  `json:"amount"`
}

// RefundableResponse lists what may still be refunded.
type RefundableResponse struct {
	OrderID         string                   `json:"order_id"`
	Status          string                   `json:"status"`
	Lines           []RefundableLineResponse `json:"lines"`
	RemainingAmount int64                    `json:"remaining_amount"`
}

// NewRefundableResponse maps a refundable summary.
func NewRefundableResponse(s *refund.Summary) RefundableResponse {
	return RefundableResponse{
		OrderID: s.Order.ID,
		Status:  string(s.Order.Status),
		Lines: lo.Map(s.Lines, func(l refund.Line, _ int) RefundableLineResponse {
			return RefundableLineResponse{
				FoodID:    l.FoodID,
				Name:      l.Name,
				Price:     l.Price,
				Ordered:   l.Ordered,
				Refunded:  l.Refunded,
				Remaining: l.Remaining,
				Amount:    l.Amount(),
			}
		}),
		RemainingAmount: s.RemainingAmount(),
	}
}
