package iorderrepo

import (
	"context"
	"time"

	"github.com/brightcart/orders/internal/service/models/order"
)

// IOrderRepository defines the order store operations.
type IOrderRepository interface {
	// Insert saves a new order together with its items
	Insert(ctx context.Context, o *order.Order) (*order.Order, error)

	// Get returns an order with its items or order.ErrOrderNotFound
	Get(ctx context.Context, id string) (*order.Order, error)

	// Query returns a summary page of orders, optionally filtered by status
	Query(ctx context.Context, status *order.Status, limit, offset int) ([]order.Order, error)

	// Count returns the total number of orders matching the status filter
	Count(ctx context.Context, status *order.Status) (int64, error)

	// UpdateStatus advances the order status and returns the updated order
	UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)

	// MarkPaid atomically sets status=PAID, paid, paid_at, the payment
	// reference and the receipt. The bool result reports whether a write
	// happened: a redelivered confirmation with the same payment reference is
	// a no-op, a different reference fails with order.ErrPaymentConflict.
	MarkPaid(
		ctx context.Context,
		id string,
		paymentReference string,
		receiptURL string,
		paidAt time.Time,
	) (*order.Order, bool, error)
}
