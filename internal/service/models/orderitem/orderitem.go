package orderitem

import (
	"time"

	"github.com/brightcart/orders/internal/service/models/currency"
)

// OrderItem represents a line item within an order. PriceCents is a snapshot
// of the catalog price at order-creation time and is never recomputed.
type OrderItem struct {
	ID            int64             `json:"id"`
	OrderID       string            `json:"orderId"`
	ProductID     int64             `json:"productId"`
	Quantity      int               `json:"quantity"`
	PriceCents    int64             `json:"priceCents"`
	PriceCurrency currency.Currency `json:"priceCurrency"`
	// ProductName is resolved from the catalog at read time and is not
	// persisted with the order.
	ProductName string    `json:"productName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
