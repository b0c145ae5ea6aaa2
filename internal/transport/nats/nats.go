package natstransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	natsclient "github.com/brightcart/orders/internal/dal/nats"
	"github.com/brightcart/orders/internal/service/models/order"
	"github.com/brightcart/orders/internal/service/models/payment"
	"github.com/brightcart/orders/internal/service/models/product"
	"github.com/brightcart/orders/internal/service/services/ordersvc"
	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

// service is an interface for the service layer.
type service interface {
	CreateOrder(ctx context.Context, items []order.NewItem) (*ordersvc.CreateOrderResult, error)
	FindAll(ctx context.Context, query order.Query) ([]order.Order, order.PageMeta, error)
	FindOne(ctx context.Context, id string) (*order.Order, error)
	ChangeStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)
}

// NATSTransport serves the order operations over NATS request-reply.
type NATSTransport struct {
	client  *natsclient.Client
	service service
	subs    []*nats.Subscription
}

// NewNATSTransport creates a new NATSTransport.
func NewNATSTransport(client *natsclient.Client, service service) *NATSTransport {
	return &NATSTransport{
		client:  client,
		service: service,
	}
}

// Run subscribes the operation handlers. Each message is handled on its own
// goroutine, so a slow catalog or payment call only delays its own reply.
func (t *NATSTransport) Run() error {
	queueGroup := viper.GetString("nats.queue_group")
	if queueGroup == "" {
		queueGroup = "orders-svc"
	}

	handlers := map[string]nats.MsgHandler{
		subject("create", "orders.create"):               t.wrap(t.createOrder),
		subject("find_all", "orders.find_all"):           t.wrap(t.findAll),
		subject("find_one", "orders.find_one"):           t.wrap(t.findOne),
		subject("change_status", "orders.change_status"): t.wrap(t.changeStatus),
	}

	for subj, handler := range handlers {
		sub, err := t.client.Conn().QueueSubscribe(subj, queueGroup, handler)
		if err != nil {
			return err
		}
		t.subs = append(t.subs, sub)

		slog.Info("Subscribed", "subject", subj, "queue_group", queueGroup)
	}

	return nil
}

// Shutdown unsubscribes all handlers.
func (t *NATSTransport) Shutdown() error {
	for _, sub := range t.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			return err
		}
	}

	return nil
}

func subject(key, fallback string) string {
	if s := viper.GetString("nats.subjects." + key); s != "" {
		return s
	}

	return fallback
}

func (t *NATSTransport) wrap(handler func(ctx context.Context, msg *nats.Msg)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		go func() {
			ctx, span := otel.Tracer("nats").Start(context.Background(), "NATSTransport "+msg.Subject)
			defer span.End()

			handler(ctx, msg)
		}()
	}
}

func (t *NATSTransport) createOrder(ctx context.Context, msg *nats.Msg) {
	var req createOrderRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Error("Error decoding create order request", "error", err)
		t.respondError(msg, "validation_error", err)

		return
	}

	if err := req.validate(); err != nil {
		slog.Error("Invalid create order request", "error", err)
		t.respondError(msg, "validation_error", err)

		return
	}

	result, err := t.service.CreateOrder(ctx, req.Items)
	if err != nil {
		var gatewayErr *payment.GatewayError
		if errors.As(err, &gatewayErr) && result != nil {
			// The order is persisted; reply with it so the caller can retry
			// session creation against the existing order.
			t.respond(msg, createOrderReply{
				Order:          &result.Order,
				PaymentSession: nil,
				Error:          newErrBody("payment_gateway_error", err),
			})

			return
		}

		slog.Error("Error creating order", "error", err)
		t.respondError(msg, errorCode(err), err)

		return
	}

	t.respond(msg, createOrderReply{
		Order:          &result.Order,
		PaymentSession: result.PaymentSession,
	})
}

func (t *NATSTransport) findAll(ctx context.Context, msg *nats.Msg) {
	var req findAllRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Error("Error decoding find all request", "error", err)
			t.respondError(msg, "validation_error", err)

			return
		}
	}

	query, err := req.toQuery()
	if err != nil {
		slog.Error("Invalid find all request", "error", err)
		t.respondError(msg, "validation_error", err)

		return
	}

	orders, meta, err := t.service.FindAll(ctx, query)
	if err != nil {
		slog.Error("Error listing orders", "error", err)
		t.respondError(msg, errorCode(err), err)

		return
	}

	t.respond(msg, listOrdersReply{
		Data: orders,
		Meta: meta,
	})
}

func (t *NATSTransport) findOne(ctx context.Context, msg *nats.Msg) {
	var req findOneRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Error("Error decoding find one request", "error", err)
		t.respondError(msg, "validation_error", err)

		return
	}

	if err := req.validate(); err != nil {
		slog.Error("Invalid find one request", "error", err)
		t.respondError(msg, "validation_error", err)

		return
	}

	ord, err := t.service.FindOne(ctx, req.ID)
	if err != nil {
		slog.Error("Error getting order", "order_id", req.ID, "error", err)
		t.respondError(msg, errorCode(err), err)

		return
	}

	t.respond(msg, orderReply{Order: ord})
}

func (t *NATSTransport) changeStatus(ctx context.Context, msg *nats.Msg) {
	var req changeStatusRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Error("Error decoding change status request", "error", err)
		t.respondError(msg, "validation_error", err)

		return
	}

	status, err := req.validate()
	if err != nil {
		slog.Error("Invalid change status request", "error", err)
		t.respondError(msg, "validation_error", err)

		return
	}

	ord, err := t.service.ChangeStatus(ctx, req.ID, status)
	if err != nil {
		slog.Error("Error changing order status",
			"order_id", req.ID,
			"status", status,
			"error", err)
		t.respondError(msg, errorCode(err), err)

		return
	}

	t.respond(msg, orderReply{Order: ord})
}

type errBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newErrBody(code string, err error) *errBody {
	return &errBody{
		Code:    code,
		Message: err.Error(),
	}
}

type createOrderReply struct {
	Order          *order.Order     `json:"order,omitempty"`
	PaymentSession *payment.Session `json:"paymentSession"`
	Error          *errBody         `json:"error,omitempty"`
}

type listOrdersReply struct {
	Data  []order.Order  `json:"data"`
	Meta  order.PageMeta `json:"meta"`
	Error *errBody       `json:"error,omitempty"`
}

type orderReply struct {
	Order *order.Order `json:"order,omitempty"`
	Error *errBody     `json:"error,omitempty"`
}

func (t *NATSTransport) respond(msg *nats.Msg, reply any) {
	data, err := json.Marshal(reply)
	if err != nil {
		slog.Error("Error marshaling reply", "subject", msg.Subject, "error", err)

		return
	}

	if err := msg.Respond(data); err != nil {
		slog.Error("Error sending reply", "subject", msg.Subject, "error", err)
	}
}

func (t *NATSTransport) respondError(msg *nats.Msg, code string, err error) {
	t.respond(msg, orderReply{Error: newErrBody(code, err)})
}

// errorCode maps a service error to a stable machine-readable code.
func errorCode(err error) string {
	var (
		catalogErr    *product.CatalogError
		gatewayErr    *payment.GatewayError
		transitionErr *order.InvalidTransitionError
	)

	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return "not_found"
	case errors.As(err, &transitionErr):
		return "invalid_transition"
	case errors.As(err, &catalogErr):
		return "catalog_error"
	case errors.As(err, &gatewayErr):
		return "payment_gateway_error"
	case errors.Is(err, order.ErrEmptyItems), errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidStatus):
		return "validation_error"
	case errors.Is(err, order.ErrPaymentConflict):
		return "payment_conflict"
	default:
		return "internal"
	}
}
