package payment

import (
	"fmt"

	"github.com/brightcart/orders/internal/service/models/currency"
)

// Session is the payment session descriptor returned by the payment service.
type Session struct {
	URL        string `json:"url"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

// SessionItem is a line item sent to the payment service. Name comes from the
// catalog, not from the store.
type SessionItem struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Quantity   int    `json:"quantity"`
}

// SessionRequest describes the order summary the payment service needs to
// open a checkout session.
type SessionRequest struct {
	OrderID  string            `json:"orderId"`
	Currency currency.Currency `json:"currency"`
	Items    []SessionItem     `json:"items"`
}

// ConfirmedEvent is the payload of the payment.succeeded event. Delivery is
// at-least-once, so handlers must tolerate duplicates.
type ConfirmedEvent struct {
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
	ReceiptURL string `json:"receiptUrl"`
}

// GatewayError reports a failed payment session request. The order referenced
// by OrderID is already persisted when this error occurs.
type GatewayError struct {
	OrderID string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment session creation failed for order %s: %v", e.OrderID, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
