package order

import (
	"errors"
	"strings"
)

// Domain failures surfaced by the order service. They are attached as the cause of the
// returned errorbank.AppError so callers can match them with errors.Is.
var (
	ErrTableNotFound             = errors.New("table not found")
	ErrFoodNotFound              = errors.New("food not found")
	ErrFoodSoldOut               = errors.New("food sold out")
	ErrFirstOrderMissingMainDish = errors.New("first order must include a main dish")
	ErrOrderNotFound             = errors.New("order not found")
	ErrOrderNotPreOrder          = errors.New("order is not a pending pre-order")
	ErrContention                = errors.New("order admission contention")
)

// SoldOutError lists every requested food that was sold out when its row was locked.
type SoldOutError struct {
	Names []string
}

func (e *SoldOutError) Error() string {
	return "sold out: " + strings.Join(e.Names, ", ")
}

// Is makes errors.Is(err, ErrFoodSoldOut) match.
func (e *SoldOutError) Is(target error) bool {
	return target == ErrFoodSoldOut
}
