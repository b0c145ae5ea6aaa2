package natstransport

import (
	"fmt"

	"github.com/brightcart/orders/internal/service/models/order"
	"github.com/google/uuid"
)

// createOrderRequest is the payload of the orders.create subject.
type createOrderRequest struct {
	Items []order.NewItem `json:"items"`
}

func (r *createOrderRequest) validate() error {
	if len(r.Items) == 0 {
		return order.ErrEmptyItems
	}
	for _, item := range r.Items {
		if item.ProductID <= 0 {
			return fmt.Errorf("invalid product id %d", item.ProductID)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: product %d", order.ErrInvalidQuantity, item.ProductID)
		}
	}

	return nil
}

// findAllRequest is the payload of the orders.find_all subject.
type findAllRequest struct {
	Status string `json:"status,omitempty"`
	Page   int    `json:"page,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (r *findAllRequest) toQuery() (order.Query, error) {
	query := order.Query{
		Page:  r.Page,
		Limit: r.Limit,
	}

	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 10
	}

	if query.Page < 1 {
		return order.Query{}, fmt.Errorf("page must be positive, got %d", r.Page)
	}
	if query.Limit < 1 {
		return order.Query{}, fmt.Errorf("limit must be positive, got %d", r.Limit)
	}

	if r.Status != "" {
		status, err := order.ParseStatus(r.Status)
		if err != nil {
			return order.Query{}, err
		}
		query.Status = &status
	}

	return query, nil
}

// findOneRequest is the payload of the orders.find_one subject.
type findOneRequest struct {
	ID string `json:"id"`
}

func (r *findOneRequest) validate() error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("invalid order id %q: %w", r.ID, err)
	}

	return nil
}

// changeStatusRequest is the payload of the orders.change_status subject.
type changeStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (r *changeStatusRequest) validate() (order.Status, error) {
	if _, err := uuid.Parse(r.ID); err != nil {
		return "", fmt.Errorf("invalid order id %q: %w", r.ID, err)
	}

	return order.ParseStatus(r.Status)
}
