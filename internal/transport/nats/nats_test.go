package natstransport

import (
	"errors"
	"testing"

	"github.com/brightcart/orders/internal/service/models/order"
	"github.com/brightcart/orders/internal/service/models/payment"
	"github.com/brightcart/orders/internal/service/models/product"
	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"not found", order.ErrOrderNotFound, "not_found"},
		{
			"invalid transition",
			&order.InvalidTransitionError{OrderID: "o1", From: order.StatusDelivered, To: order.StatusPending},
			"invalid_transition",
		},
		{
			"catalog",
			&product.CatalogError{ProductIDs: []int64{3}, Err: errors.New("unknown")},
			"catalog_error",
		},
		{
			"payment gateway",
			&payment.GatewayError{OrderID: "o1", Err: errors.New("unavailable")},
			"payment_gateway_error",
		},
		{"empty items", order.ErrEmptyItems, "validation_error"},
		{"invalid status", order.ErrInvalidStatus, "validation_error"},
		{"payment conflict", order.ErrPaymentConflict, "payment_conflict"},
		{"unknown", errors.New("boom"), "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, errorCode(tc.err))
		})
	}
}

func TestSubjectFallback(t *testing.T) {
	assert.Equal(t, "orders.create", subject("create", "orders.create"))
}
