package order

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	StatusDelivered Status = "DELIVERED"
)

var ErrInvalidStatus = errors.New("invalid order status")

// transitions lists the allowed forward moves. Anything not listed here,
// other than a same-status no-op handled by the service, is rejected.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusDelivered},
	StatusCancelled: {StatusDelivered},
	StatusDelivered: {},
}

func (s Status) String() string {
	return string(s)
}

func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}

// CanTransitionTo reports whether moving from s to target is a permitted
// forward move.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}

	return false
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(s) {
	case StatusPending.String():
		return StatusPending, nil
	case StatusPaid.String():
		return StatusPaid, nil
	case StatusCancelled.String():
		return StatusCancelled, nil
	case StatusDelivered.String():
		return StatusDelivered, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}
