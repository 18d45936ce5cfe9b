package refund

import "errors"

var (
	ErrOrderNotCompleted = errors.New("order is not completed")
	ErrOrderRefunded     = errors.New("order is already refunded")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrExceedsAvailable  = errors.New("quantity exceeds the remaining amount")
	ErrFoodNotInOrder    = errors.New("food is not part of the order")
	ErrInvalidReason     = errors.New("invalid adjustment reason")
)
