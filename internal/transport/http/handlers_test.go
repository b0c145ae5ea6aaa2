package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brightcart/orders/internal/service/models/order"
	"github.com/brightcart/orders/internal/service/models/payment"
	"github.com/brightcart/orders/internal/service/models/product"
	"github.com/brightcart/orders/internal/service/services/ordersvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, items []order.NewItem) (*ordersvc.CreateOrderResult, error) {
	args := m.Called(ctx, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ordersvc.CreateOrderResult), args.Error(1)
}

func (m *MockOrderService) FindAll(ctx context.Context, query order.Query) ([]order.Order, order.PageMeta, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, order.PageMeta{}, args.Error(2)
	}
	return args.Get(0).([]order.Order), args.Get(1).(order.PageMeta), args.Error(2)
}

func (m *MockOrderService) FindOne(ctx context.Context, id string) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ChangeStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

const orderID = "7f4df3b0-3c70-4f26-a3a8-2986c8a9b3d4"

func newTestTransport(svc service) *HTTPTransport {
	transport := NewHTTPTransport(svc)
	transport.RegisterRoutes()
	return transport
}

func TestCreateOrderHandler(t *testing.T) {
	svc := new(MockOrderService)
	transport := newTestTransport(svc)

	result := &ordersvc.CreateOrderResult{
		Order:          order.Order{ID: orderID, Status: order.StatusPending, TotalPriceCents: 2500, TotalItems: 3},
		PaymentSession: &payment.Session{URL: "https://pay.example/s/abc"},
	}
	svc.On("CreateOrder", mock.Anything, []order.NewItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	}).Return(result, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/orders",
		strings.NewReader(`{"items":[{"productId":1,"quantity":2},{"productId":2,"quantity":1}]}`))
	rec := httptest.NewRecorder()

	transport.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var body ordersvc.CreateOrderResult
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, orderID, body.Order.ID)
	assert.Equal(t, "https://pay.example/s/abc", body.PaymentSession.URL)
	svc.AssertExpectations(t)
}

func TestCreateOrderHandler_UnknownProduct(t *testing.T) {
	svc := new(MockOrderService)
	transport := newTestTransport(svc)

	svc.On("CreateOrder", mock.Anything, mock.Anything).
		Return(nil, &product.CatalogError{ProductIDs: []int64{99}})

	req := httptest.NewRequest(http.MethodPost, "/api/orders",
		strings.NewReader(`{"items":[{"productId":99,"quantity":1}]}`))
	rec := httptest.NewRecorder()

	transport.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateOrderHandler_PaymentSessionFailure(t *testing.T) {
	svc := new(MockOrderService)
	transport := newTestTransport(svc)

	result := &ordersvc.CreateOrderResult{
		Order: order.Order{ID: orderID, Status: order.StatusPending},
	}
	svc.On("CreateOrder", mock.Anything, mock.Anything).
		Return(result, &payment.GatewayError{OrderID: orderID})

	req := httptest.NewRequest(http.MethodPost, "/api/orders",
		strings.NewReader(`{"items":[{"productId":1,"quantity":1}]}`))
	rec := httptest.NewRecorder()

	transport.router.ServeHTTP(rec, req)

	// The order is persisted, so creation still reports 201 with the error.
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), orderID)
	assert.Contains(t, rec.Body.String(), "payment session creation failed")
}

func TestListOrdersHandler(t *testing.T) {
	svc := new(MockOrderService)
	transport := newTestTransport(svc)

	paid := order.StatusPaid
	svc.On("FindAll", mock.Anything, order.Query{Status: &paid, Page: 2, Limit: 5}).
		Return([]order.Order{{ID: orderID, Status: order.StatusPaid}},
			order.PageMeta{Total: 6, Page: 2, LastPage: 2}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/orders?status=PAID&page=2&limit=5", nil)
	rec := httptest.NewRecorder()

	transport.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body listOrdersResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	assert.Equal(t, int64(6), body.Meta.Total)
	assert.Equal(t, 2, body.Meta.LastPage)
}

func TestListOrdersHandler_InvalidStatus(t *testing.T) {
	svc := new(MockOrderService)
	transport := newTestTransport(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders?status=SHIPPED", nil)
	rec := httptest.NewRecorder()

	transport.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
}

func TestGetOrderHandler_NotFound(t *testing.T) {
	svc := new(MockOrderService)
	transport := newTestTransport(svc)

	svc.On("FindOne", mock.Anything, orderID).Return(nil, order.ErrOrderNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID, nil)
	rec := httptest.NewRecorder()

	transport.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrderHandler_InvalidID(t *testing.T) {
	svc := new(MockOrderService)
	transport := newTestTransport(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	transport.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "FindOne", mock.Anything, mock.Anything)
}

func TestChangeStatusHandler(t *testing.T) {
	svc := new(MockOrderService)
	transport := newTestTransport(svc)

	updated := &order.Order{ID: orderID, Status: order.StatusCancelled}
	svc.On("ChangeStatus", mock.Anything, orderID, order.StatusCancelled).Return(updated, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/orders/"+orderID+"/status",
		strings.NewReader(`{"status":"CANCELLED"}`))
	rec := httptest.NewRecorder()

	transport.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CANCELLED")
}

func TestChangeStatusHandler_InvalidTransition(t *testing.T) {
	svc := new(MockOrderService)
	transport := newTestTransport(svc)

	svc.On("ChangeStatus", mock.Anything, orderID, order.StatusPending).
		Return(nil, &order.InvalidTransitionError{
			OrderID: orderID,
			From:    order.StatusDelivered,
			To:      order.StatusPending,
		})

	req := httptest.NewRequest(http.MethodPatch, "/api/orders/"+orderID+"/status",
		strings.NewReader(`{"status":"PENDING"}`))
	rec := httptest.NewRecorder()

	transport.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	transport := newTestTransport(new(MockOrderService))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	transport.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
