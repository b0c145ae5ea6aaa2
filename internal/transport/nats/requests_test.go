package natstransport

import (
	"testing"

	"github.com/brightcart/orders/internal/service/models/order"
	"github.com/stretchr/testify/assert"
)

func TestCreateOrderRequestValidate(t *testing.T) {
	req := &createOrderRequest{Items: []order.NewItem{
		{ProductID: 1, Quantity: 2},
	}}
	assert.NoError(t, req.validate())

	empty := &createOrderRequest{}
	assert.ErrorIs(t, empty.validate(), order.ErrEmptyItems)

	badQuantity := &createOrderRequest{Items: []order.NewItem{
		{ProductID: 1, Quantity: 0},
	}}
	assert.ErrorIs(t, badQuantity.validate(), order.ErrInvalidQuantity)

	badProduct := &createOrderRequest{Items: []order.NewItem{
		{ProductID: -1, Quantity: 1},
	}}
	assert.Error(t, badProduct.validate())
}

func TestFindAllRequestToQuery(t *testing.T) {
	query, err := (&findAllRequest{}).toQuery()
	assert.NoError(t, err)
	assert.Equal(t, 1, query.Page)
	assert.Equal(t, 10, query.Limit)
	assert.Nil(t, query.Status)

	query, err = (&findAllRequest{Status: "paid", Page: 2, Limit: 5}).toQuery()
	assert.NoError(t, err)
	assert.Equal(t, 2, query.Page)
	assert.Equal(t, 5, query.Limit)
	if assert.NotNil(t, query.Status) {
		assert.Equal(t, order.StatusPaid, *query.Status)
	}

	_, err = (&findAllRequest{Status: "SHIPPED"}).toQuery()
	assert.ErrorIs(t, err, order.ErrInvalidStatus)

	_, err = (&findAllRequest{Page: -1}).toQuery()
	assert.Error(t, err)

	_, err = (&findAllRequest{Limit: -10}).toQuery()
	assert.Error(t, err)
}

func TestFindOneRequestValidate(t *testing.T) {
	valid := &findOneRequest{ID: "7f4df3b0-3c70-4f26-a3a8-2986c8a9b3d4"}
	assert.NoError(t, valid.validate())

	invalid := &findOneRequest{ID: "not-a-uuid"}
	assert.Error(t, invalid.validate())
}

func TestChangeStatusRequestValidate(t *testing.T) {
	status, err := (&changeStatusRequest{
		ID:     "7f4df3b0-3c70-4f26-a3a8-2986c8a9b3d4",
		Status: "cancelled",
	}).validate()
	assert.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, status)

	_, err = (&changeStatusRequest{ID: "nope", Status: "PAID"}).validate()
	assert.Error(t, err)

	_, err = (&changeStatusRequest{
		ID:     "7f4df3b0-3c70-4f26-a3a8-2986c8a9b3d4",
		Status: "SHIPPED",
	}).validate()
	assert.ErrorIs(t, err, order.ErrInvalidStatus)
}
