package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/brightcart/orders/internal/service/models/order"
	"github.com/brightcart/orders/internal/service/models/payment"
	"github.com/brightcart/orders/internal/service/models/product"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/schema"
)

type createOrderRequest struct {
	Items []order.NewItem `json:"items"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

type listOrdersQuery struct {
	Status string `schema:"status,omitempty"`
	Page   int    `schema:"page,omitempty"`
	Limit  int    `schema:"limit,omitempty"`
}

type listOrdersResponse struct {
	Data []order.Order  `json:"data"`
	Meta order.PageMeta `json:"meta"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		slog.Error("Error decoding create order request", "error", err)

		return
	}

	result, err := h.service.CreateOrder(r.Context(), req.Items)
	if err != nil {
		var gatewayErr *payment.GatewayError
		if errors.As(err, &gatewayErr) && result != nil {
			// Order persisted, payment session failed: report both.
			writeJSON(w, http.StatusCreated, struct {
				Order          order.Order      `json:"order"`
				PaymentSession *payment.Session `json:"paymentSession"`
				Error          string           `json:"error"`
			}{
				Order: result.Order,
				Error: err.Error(),
			})

			return
		}

		writeError(w, statusFor(err), err)
		slog.Error("Error creating order", "error", err)

		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	decoder := schema.NewDecoder()
	query := &listOrdersQuery{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, err)
		slog.Error("Error decoding list orders request", "error", err)

		return
	}

	model := order.Query{
		Page:  query.Page,
		Limit: query.Limit,
	}
	if query.Status != "" {
		status, err := order.ParseStatus(query.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)

			return
		}
		model.Status = &status
	}

	orders, meta, err := h.service.FindAll(r.Context(), model)
	if err != nil {
		writeError(w, statusFor(err), err)
		slog.Error("Error listing orders", "error", err)

		return
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{
		Data: orders,
		Meta: meta,
	})
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	ord, err := h.service.FindOne(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		slog.Error("Error getting order", "order_id", id, "error", err)

		return
	}

	writeJSON(w, http.StatusOK, ord)
}

func (h *HTTPTransport) changeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	status, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	ord, err := h.service.ChangeStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, statusFor(err), err)
		slog.Error("Error changing order status", "order_id", id, "status", status, "error", err)

		return
	}

	writeJSON(w, http.StatusOK, ord)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps a service error to an HTTP status code.
func statusFor(err error) int {
	var (
		catalogErr    *product.CatalogError
		gatewayErr    *payment.GatewayError
		transitionErr *order.InvalidTransitionError
	)

	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.As(err, &transitionErr), errors.Is(err, order.ErrPaymentConflict):
		return http.StatusConflict
	case errors.As(err, &catalogErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway
	case errors.Is(err, order.ErrEmptyItems), errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
