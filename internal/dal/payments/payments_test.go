package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/brightcart/orders/internal/service/models/currency"
	"github.com/brightcart/orders/internal/service/models/payment"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRequester struct {
	mock.Mock
}

func (m *MockRequester) RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error) {
	args := m.Called(ctx, subj, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nats.Msg), args.Error(1)
}

func sessionRequest() payment.SessionRequest {
	return payment.SessionRequest{
		OrderID:  "o1",
		Currency: currency.CurrencyUSD,
		Items: []payment.SessionItem{
			{Name: "Keyboard", PriceCents: 1000, Quantity: 2},
		},
	}
}

func TestCreateSession(t *testing.T) {
	conn := new(MockRequester)
	client := NewClient(conn)

	conn.On("RequestWithContext", mock.Anything, "payments.create_session", mock.Anything).
		Return(&nats.Msg{Data: []byte(`{"data":{
			"url":"https://pay.example/s/abc",
			"successUrl":"https://shop.example/success",
			"cancelUrl":"https://shop.example/cancel"
		}}`)}, nil)

	session, err := client.CreateSession(context.Background(), sessionRequest())

	assert.NoError(t, err)
	assert.Equal(t, "https://pay.example/s/abc", session.URL)
	conn.AssertExpectations(t)
}

func TestCreateSession_RemoteError(t *testing.T) {
	conn := new(MockRequester)
	client := NewClient(conn)

	conn.On("RequestWithContext", mock.Anything, "payments.create_session", mock.Anything).
		Return(&nats.Msg{Data: []byte(`{"error":"card declined"}`)}, nil)

	session, err := client.CreateSession(context.Background(), sessionRequest())

	assert.Nil(t, session)

	var ge *payment.GatewayError
	assert.ErrorAs(t, err, &ge)
	assert.Equal(t, "o1", ge.OrderID)
	assert.Contains(t, ge.Error(), "card declined")
}

func TestCreateSession_RequestFails(t *testing.T) {
	conn := new(MockRequester)
	client := NewClient(conn)

	conn.On("RequestWithContext", mock.Anything, "payments.create_session", mock.Anything).
		Return(nil, errors.New("request timed out"))

	session, err := client.CreateSession(context.Background(), sessionRequest())

	assert.Nil(t, session)

	var ge *payment.GatewayError
	assert.ErrorAs(t, err, &ge)
}

func TestCreateSession_EmptySession(t *testing.T) {
	conn := new(MockRequester)
	client := NewClient(conn)

	conn.On("RequestWithContext", mock.Anything, "payments.create_session", mock.Anything).
		Return(&nats.Msg{Data: []byte(`{}`)}, nil)

	session, err := client.CreateSession(context.Background(), sessionRequest())

	assert.Nil(t, session)

	var ge *payment.GatewayError
	assert.ErrorAs(t, err, &ge)
}
