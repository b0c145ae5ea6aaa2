package ordersvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightcart/orders/internal/dal/interfaces/iorderrepo"
	"github.com/brightcart/orders/internal/dal/interfaces/ioutboxrepo"
	"github.com/brightcart/orders/internal/dal/postgres"
	"github.com/brightcart/orders/internal/dal/uow"
	"github.com/brightcart/orders/internal/metrics"
	"github.com/brightcart/orders/internal/service/models/currency"
	"github.com/brightcart/orders/internal/service/models/order"
	"github.com/brightcart/orders/internal/service/models/orderitem"
	"github.com/brightcart/orders/internal/service/models/outbox"
	"github.com/brightcart/orders/internal/service/models/payment"
	"github.com/brightcart/orders/internal/service/models/product"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

// productValidator resolves product ids to authoritative catalog records.
type productValidator interface {
	ValidateProducts(ctx context.Context, productIDs []int64) ([]product.Product, error)
}

// paymentGateway opens checkout sessions for persisted orders.
type paymentGateway interface {
	CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error)
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// OrderService orchestrates the order lifecycle: catalog validation, order
// persistence, payment session creation and payment confirmation. All state
// lives in the store; the service itself is safe for concurrent use.
type OrderService struct {
	pgClient *postgres.Client
	newUOW   func() unitOfWork
	catalog  productValidator
	payments paymentGateway
	metrics  *metrics.OrderMetrics
	currency currency.Currency

	eventsExchange   string
	eventsQueue      string
	outboxMaxRetries int
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		currency:         currency.CurrencyUSD,
		outboxMaxRetries: 5,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("order service requires a postgres client or a unit of work factory")
	}
	if s.catalog == nil {
		panic("order service requires a catalog client")
	}
	if s.payments == nil {
		panic("order service requires a payments client")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.pgClient = pgClient
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// WithUnitOfWorkFactory overrides the unit of work factory.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() unitOfWork) option {
	return func(s *OrderService) {
		s.newUOW = factory
	}
}

// WithCatalogClient sets the product validator client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCatalogClient(catalog productValidator) option {
	return func(s *OrderService) {
		s.catalog = catalog
	}
}

// WithPaymentsClient sets the payment gateway client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPaymentsClient(payments paymentGateway) option {
	return func(s *OrderService) {
		s.payments = payments
	}
}

// WithMetrics sets the order metrics.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMetrics(m *metrics.OrderMetrics) option {
	return func(s *OrderService) {
		s.metrics = m
	}
}

// WithCurrency sets the currency new orders are priced in.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCurrency(cur currency.Currency) option {
	return func(s *OrderService) {
		s.currency = cur
	}
}

// WithEventDestination sets the exchange and queue lifecycle events are
// published to.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithEventDestination(exchange, queue string) option {
	return func(s *OrderService) {
		s.eventsExchange = exchange
		s.eventsQueue = queue
	}
}

// WithOutboxMaxRetries sets the publish retry budget for outbox messages.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOutboxMaxRetries(maxRetries int) option {
	return func(s *OrderService) {
		if maxRetries > 0 {
			s.outboxMaxRetries = maxRetries
		}
	}
}

// CreateOrderResult is the outcome of CreateOrder. PaymentSession is nil when
// the session request failed; the order is persisted either way.
type CreateOrderResult struct {
	Order          order.Order      `json:"order"`
	PaymentSession *payment.Session `json:"paymentSession"`
}

// CreateOrder validates the items against the catalog, persists the order
// with frozen price snapshots and requests a payment session.
//
// A catalog failure aborts the call before anything is persisted. A payment
// gateway failure does NOT roll the order back: the persisted order is
// returned together with the payment.GatewayError so the caller can retry
// session creation against the existing order.
func (s *OrderService) CreateOrder(ctx context.Context, items []order.NewItem) (*CreateOrderResult, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	started := time.Now()

	if len(items) == 0 {
		return nil, order.ErrEmptyItems
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d", order.ErrInvalidQuantity, item.ProductID)
		}
	}

	productIDs := distinctProductIDs(items)

	products, err := s.catalog.ValidateProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	byID := productsByID(products)

	now := time.Now()
	ord := &order.Order{
		ID:                 uuid.New().String(),
		TotalPriceCurrency: s.currency,
		Status:             order.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	for _, item := range items {
		p := byID[item.ProductID]
		ord.TotalPriceCents += p.PriceCents * int64(item.Quantity)
		ord.TotalItems += item.Quantity
		ord.OrderItems = append(ord.OrderItems, orderitem.OrderItem{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			PriceCents:    p.PriceCents,
			PriceCurrency: s.currency,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	persisted, err := work.OrderRepository().Insert(ctx, ord)
	if err != nil {
		_ = work.Rollback(ctx)

		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	if err := s.enqueueEvent(ctx, work.OutboxRepository(), outbox.EventOrderCreated, persisted); err != nil {
		_ = work.Rollback(ctx)

		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	s.metrics.OrderCreated(time.Since(started))
	slog.Info("Order created",
		"order_id", persisted.ID,
		"total_price_cents", persisted.TotalPriceCents,
		"total_items", persisted.TotalItems)

	// Names are a read-time join from the catalog, never persisted.
	attachProductNames(persisted.OrderItems, byID)

	result := &CreateOrderResult{Order: *persisted}

	session, err := s.payments.CreateSession(ctx, sessionRequest(persisted))
	if err != nil {
		s.metrics.PaymentSessionFailed()
		slog.Error("Payment session creation failed, order is persisted",
			"order_id", persisted.ID,
			"error", err)

		return result, err
	}

	result.PaymentSession = session

	return result, nil
}

// FindAll returns a summary page of orders with pagination metadata. Item
// names are not resolved here: listing is a lightweight view.
func (s *OrderService) FindAll(ctx context.Context, query order.Query) ([]order.Order, order.PageMeta, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.FindAll")
	defer span.End()

	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = 10
	}

	repo := s.newUOW().OrderRepository()

	total, err := repo.Count(ctx, query.Status)
	if err != nil {
		return nil, order.PageMeta{}, fmt.Errorf("failed to count orders: %w", err)
	}

	orders, err := repo.Query(ctx, query.Status, limit, (page-1)*limit)
	if err != nil {
		return nil, order.PageMeta{}, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []order.Order{}
	}

	return orders, order.NewPageMeta(total, page, limit), nil
}

// FindOne returns an order with its items, resolving product names from the
// catalog for display. A renamed product is reflected on the next read
// without mutating the stored order.
func (s *OrderService) FindOne(ctx context.Context, id string) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.FindOne")
	defer span.End()

	ord, err := s.newUOW().OrderRepository().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(ord.OrderItems) == 0 {
		return ord, nil
	}

	productIDs := make([]int64, 0, len(ord.OrderItems))
	seen := make(map[int64]struct{}, len(ord.OrderItems))
	for _, item := range ord.OrderItems {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.catalog.ValidateProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	attachProductNames(ord.OrderItems, productsByID(products))

	return ord, nil
}

// ChangeStatus advances the order along the lifecycle. Requesting the current
// status is an idempotent no-op that performs no store write. Anything that
// is not a permitted forward move fails with order.InvalidTransitionError.
func (s *OrderService) ChangeStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.ChangeStatus")
	defer span.End()

	ord, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	if ord.Status == status {
		return ord, nil
	}

	if !ord.Status.CanTransitionTo(status) {
		return nil, &order.InvalidTransitionError{
			OrderID: id,
			From:    ord.Status,
			To:      status,
		}
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	updated, err := work.OrderRepository().UpdateStatus(ctx, id, status)
	if err != nil {
		_ = work.Rollback(ctx)

		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if err := s.enqueueEvent(ctx, work.OutboxRepository(), outbox.EventOrderStatusChanged, updated); err != nil {
		_ = work.Rollback(ctx)

		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	s.metrics.StatusChanged(status.String())
	slog.Info("Order status changed", "order_id", id, "from", ord.Status, "to", status)

	return updated, nil
}

// MarkPaid applies a payment confirmation: status=PAID, paid flags, payment
// reference and receipt in one atomic write. Redelivery of the same
// confirmation is a no-op, so the at-least-once consumer can safely retry.
func (s *OrderService) MarkPaid(ctx context.Context, event payment.ConfirmedEvent) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.MarkPaid")
	defer span.End()

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	ord, updated, err := work.OrderRepository().MarkPaid(
		ctx,
		event.OrderID,
		event.PaymentID,
		event.ReceiptURL,
		time.Now(),
	)
	if err != nil {
		_ = work.Rollback(ctx)

		return nil, err
	}

	if !updated {
		_ = work.Rollback(ctx)
		slog.Info("Payment confirmation redelivered, order already paid",
			"order_id", event.OrderID,
			"payment_id", event.PaymentID)

		return ord, nil
	}

	if err := s.enqueueEvent(ctx, work.OutboxRepository(), outbox.EventOrderPaid, ord); err != nil {
		_ = work.Rollback(ctx)

		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment confirmation: %w", err)
	}

	s.metrics.OrderPaid()
	slog.Info("Order marked paid", "order_id", ord.ID, "payment_id", event.PaymentID)

	return ord, nil
}

// enqueueEvent stores a lifecycle event in the outbox within the caller's
// unit of work so the event commits or rolls back with the order write.
func (s *OrderService) enqueueEvent(
	ctx context.Context,
	repo ioutboxrepo.IOutboxRepository,
	eventType string,
	ord *order.Order,
) error {
	payload, err := json.Marshal(ord)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	now := time.Now()

	return repo.Insert(ctx, outbox.OutboxMessage{
		QueueName:    s.eventsQueue,
		ExchangeName: s.eventsExchange,
		RoutingKey:   eventType,
		Payload:      payload,
		ContentType:  "application/json",
		MaxRetries:   s.outboxMaxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRetryAt:  now,
	})
}

func distinctProductIDs(items []order.NewItem) []int64 {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	return ids
}

func productsByID(products []product.Product) map[int64]product.Product {
	byID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	return byID
}

func attachProductNames(items []orderitem.OrderItem, byID map[int64]product.Product) {
	for i := range items {
		items[i].ProductName = byID[items[i].ProductID].Name
	}
}

func sessionRequest(ord *order.Order) payment.SessionRequest {
	items := make([]payment.SessionItem, len(ord.OrderItems))
	for i, item := range ord.OrderItems {
		items[i] = payment.SessionItem{
			Name:       item.ProductName,
			PriceCents: item.PriceCents,
			Quantity:   item.Quantity,
		}
	}

	return payment.SessionRequest{
		OrderID:  ord.ID,
		Currency: ord.TotalPriceCurrency,
		Items:    items,
	}
}
