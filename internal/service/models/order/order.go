package order

import (
	"time"

	"github.com/brightcart/orders/internal/service/models/currency"
	"github.com/brightcart/orders/internal/service/models/orderitem"
)

// Order represents a purchase order and its line items.
type Order struct {
	ID                 string                `json:"id"`
	TotalPriceCents    int64                 `json:"totalPriceCents"`
	TotalPriceCurrency currency.Currency     `json:"totalPriceCurrency"`
	TotalItems         int                   `json:"totalItems"`
	Status             Status                `json:"status"`
	Paid               bool                  `json:"paid"`
	PaidAt             *time.Time            `json:"paidAt"`
	PaymentReference   *string               `json:"paymentReference"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
	OrderItems         []orderitem.OrderItem `json:"orderItems"`
	Receipt            *Receipt              `json:"receipt,omitempty"`
}

// NewItem is the caller-supplied input for one line item of a new order. The
// price is never part of the input: it is resolved from the catalog.
type NewItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// Receipt is created exactly once when the payment is confirmed.
type Receipt struct {
	ID         int64     `json:"id"`
	OrderID    string    `json:"orderId"`
	ReceiptURL string    `json:"receiptUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}
