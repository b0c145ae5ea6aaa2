package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/brightcart/orders/internal/service/models/order"
	"github.com/brightcart/orders/internal/service/models/payment"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) MarkPaid(ctx context.Context, event payment.ConfirmedEvent) (*order.Order, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

// fakeAcknowledger records the ack decision made for a delivery.
type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func delivery(ack *fakeAcknowledger, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(body),
	}
}

func testConsumer(svc service) *Consumer {
	return &Consumer{service: svc, maxRedeliveries: 5}
}

func TestProcessMessage(t *testing.T) {
	svc := new(MockOrderService)
	c := testConsumer(svc)
	ack := &fakeAcknowledger{}

	svc.On("MarkPaid", mock.Anything, payment.ConfirmedEvent{
		PaymentID:  "pay_123",
		OrderID:    "o1",
		ReceiptURL: "https://receipts.example/r1",
	}).Return(&order.Order{ID: "o1", Status: order.StatusPaid, Paid: true}, nil)

	err := c.processMessage(context.Background(), delivery(ack,
		`{"paymentId":"pay_123","orderId":"o1","receiptUrl":"https://receipts.example/r1"}`))

	assert.NoError(t, err)
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	svc.AssertExpectations(t)
}

func TestProcessMessage_MalformedPayloadDropped(t *testing.T) {
	svc := new(MockOrderService)
	c := testConsumer(svc)
	ack := &fakeAcknowledger{}

	err := c.processMessage(context.Background(), delivery(ack, `not json`))

	assert.Error(t, err)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
	svc.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything)
}

func TestProcessMessage_MissingIdentifiersDropped(t *testing.T) {
	svc := new(MockOrderService)
	c := testConsumer(svc)
	ack := &fakeAcknowledger{}

	err := c.processMessage(context.Background(), delivery(ack, `{"paymentId":"pay_123"}`))

	assert.Error(t, err)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
	svc.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything)
}

func TestProcessMessage_ConflictDropped(t *testing.T) {
	svc := new(MockOrderService)
	c := testConsumer(svc)
	ack := &fakeAcknowledger{}

	svc.On("MarkPaid", mock.Anything, mock.Anything).Return(nil, order.ErrPaymentConflict)

	err := c.processMessage(context.Background(), delivery(ack,
		`{"paymentId":"pay_other","orderId":"o1"}`))

	assert.ErrorIs(t, err, order.ErrPaymentConflict)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestProcessMessage_FinalizedOrderDropped(t *testing.T) {
	svc := new(MockOrderService)
	c := testConsumer(svc)
	ack := &fakeAcknowledger{}

	svc.On("MarkPaid", mock.Anything, mock.Anything).Return(nil, &order.InvalidTransitionError{
		OrderID: "o1",
		From:    order.StatusCancelled,
		To:      order.StatusPaid,
	})

	err := c.processMessage(context.Background(), delivery(ack,
		`{"paymentId":"pay_123","orderId":"o1"}`))

	var transitionErr *order.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestProcessMessage_TransientErrorRequeued(t *testing.T) {
	svc := new(MockOrderService)
	c := testConsumer(svc)
	ack := &fakeAcknowledger{}

	svc.On("MarkPaid", mock.Anything, mock.Anything).Return(nil, errors.New("store unavailable"))

	err := c.processMessage(context.Background(), delivery(ack,
		`{"paymentId":"pay_123","orderId":"o1"}`))

	assert.Error(t, err)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestProcessMessage_EventBeforeOrderRequeued(t *testing.T) {
	svc := new(MockOrderService)
	c := testConsumer(svc)
	ack := &fakeAcknowledger{}

	svc.On("MarkPaid", mock.Anything, mock.Anything).Return(nil, order.ErrOrderNotFound)

	err := c.processMessage(context.Background(), delivery(ack,
		`{"paymentId":"pay_123","orderId":"o1"}`))

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestProcessMessage_RedeliveryBudgetExhausted(t *testing.T) {
	svc := new(MockOrderService)
	c := testConsumer(svc)
	ack := &fakeAcknowledger{}

	svc.On("MarkPaid", mock.Anything, mock.Anything).Return(nil, order.ErrOrderNotFound)

	msg := delivery(ack, `{"paymentId":"pay_123","orderId":"o1"}`)
	msg.Redelivered = true
	msg.Headers = amqp.Table{"x-delivery-count": int64(5)}

	err := c.processMessage(context.Background(), msg)

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestDeliveryCount(t *testing.T) {
	assert.Equal(t, 0, deliveryCount(amqp.Delivery{}))
	assert.Equal(t, 1, deliveryCount(amqp.Delivery{Redelivered: true}))
	assert.Equal(t, 3, deliveryCount(amqp.Delivery{
		Redelivered: true,
		Headers:     amqp.Table{"x-delivery-count": int64(3)},
	}))
}
