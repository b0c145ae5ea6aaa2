package order

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound is returned when no order exists for the requested id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrEmptyItems is returned when an order is created without line items.
	ErrEmptyItems = errors.New("order must contain at least one item")
	// ErrInvalidQuantity is returned when a line item quantity is not positive.
	ErrInvalidQuantity = errors.New("item quantity must be greater than zero")
	// ErrPaymentConflict is returned when a payment confirmation arrives for an
	// order that is already paid under a different payment reference.
	ErrPaymentConflict = errors.New("order already paid with a different payment reference")
)

// InvalidTransitionError reports a status change that is not a permitted
// forward move.
type InvalidTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for order %s: %s -> %s", e.OrderID, e.From, e.To)
}
