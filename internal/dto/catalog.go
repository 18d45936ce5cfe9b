package dto

import (
	"time"

	"github.com/samber/lo"

	"github.com/Additional-Code/tableorder/internal/entity"
)

// FoodRequest is the body of create and update food calls.
type FoodRequest struct {
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	SoldOut     bool   `json:"sold_out"`
}

// FoodResponse represents a menu item as exposed via transport layers.
type FoodResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	SoldOut     bool      `json:"sold_out"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewFoodResponse maps a menu item.
func NewFoodResponse(f *entity.Food) FoodResponse {
	return FoodResponse{
		ID:          f.ID,
		Name:        f.Name,
		Price:       f.Price,
		Category:    string(f.Category),
		Description: f.Description,
		ImageURL:    f.ImageURL,
		SoldOut:     f.SoldOut,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// NewFoodResponses maps a menu listing.
func NewFoodResponses(foods []*entity.Food) []FoodResponse {
	return lo.Map(foods, func(f *entity.Food, _ int) FoodResponse { return NewFoodResponse(f) })
}

// TableRequest is the body of create and rename table calls.
type TableRequest struct {
	Name string `json:"name"`
}

// TableResponse represents a dining table.
type TableResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTableResponse maps a table.
func NewTableResponse(t *entity.Table) TableResponse {
	return TableResponse{ID: t.ID, Name: t.Name, DisplayName: t.DisplayName(), CreatedAt: t.CreatedAt}
}

// NewTableResponses maps a table listing.
func NewTableResponses(tables []*entity.Table) []TableResponse {
	return lo.Map(tables, func(t *entity.Table, _ int) TableResponse { return NewTableResponse(t) })
}

// StaffCallRequest is the optional message sent with a staff call.
type StaffCallRequest struct {
	Message string `json:"message"`
}
