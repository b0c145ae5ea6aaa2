package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightcart/orders/internal/service/models/payment"
	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

// requester abstracts the NATS request-reply call.
type requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// Client requests payment checkout sessions from the external payment
// service over NATS request-reply.
type Client struct {
	conn requester
}

// NewClient creates a new payments client.
func NewClient(conn requester) *Client {
	return &Client{
		conn: conn,
	}
}

// sessionReply is the payment service's reply envelope.
type sessionReply struct {
	Data  *payment.Session `json:"data"`
	Error string           `json:"error,omitempty"`
}

// CreateSession requests a payment session for an already persisted order.
// Any failure is reported as a GatewayError; the caller must not roll the
// order back on it.
func (c *Client) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	ctx, span := otel.Tracer("payments-client").Start(ctx, "Client.CreateSession")
	defer span.End()

	timeout := viper.GetInt("nats.request_timeout_seconds")
	if timeout == 0 {
		timeout = 5
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &payment.GatewayError{OrderID: req.OrderID, Err: err}
	}

	subject := viper.GetString("nats.subjects.create_payment_session")
	if subject == "" {
		subject = "payments.create_session"
	}

	msg, err := c.conn.RequestWithContext(ctx, subject, payload)
	if err != nil {
		slog.Error("Payment session request failed", "order_id", req.OrderID, "error", err)

		return nil, &payment.GatewayError{OrderID: req.OrderID, Err: err}
	}

	var reply sessionReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, &payment.GatewayError{OrderID: req.OrderID, Err: fmt.Errorf("failed to decode payment reply: %w", err)}
	}

	if reply.Error != "" {
		return nil, &payment.GatewayError{OrderID: req.OrderID, Err: errors.New(reply.Error)}
	}

	if reply.Data == nil {
		return nil, &payment.GatewayError{OrderID: req.OrderID, Err: errors.New("payment service returned an empty session")}
	}

	return reply.Data, nil
}
