package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightcart/orders/internal/service/models/product"
	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

// ErrProductUnknown is returned inside a CatalogError when the catalog does
// not know some of the requested product ids.
var ErrProductUnknown = errors.New("product unknown to catalog")

// requester abstracts the NATS request-reply call.
type requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// Client validates product ids against the external catalog service over
// NATS request-reply.
type Client struct {
	conn requester
}

// NewClient creates a new catalog client.
func NewClient(conn requester) *Client {
	return &Client{
		conn: conn,
	}
}

// validateReply is the catalog service's reply envelope.
type validateReply struct {
	Data  []product.Product `json:"data"`
	Error string            `json:"error,omitempty"`
}

// ValidateProducts resolves every given product id to an authoritative
// catalog record. It returns a CatalogError if the remote call fails, times
// out, or any id is unknown; it never returns partial data.
func (c *Client) ValidateProducts(ctx context.Context, productIDs []int64) ([]product.Product, error) {
	ctx, span := otel.Tracer("catalog-client").Start(ctx, "Client.ValidateProducts")
	defer span.End()

	timeout := viper.GetInt("nats.request_timeout_seconds")
	if timeout == 0 {
		timeout = 5
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	payload, err := json.Marshal(productIDs)
	if err != nil {
		return nil, &product.CatalogError{ProductIDs: productIDs, Err: err}
	}

	subject := viper.GetString("nats.subjects.validate_products")
	if subject == "" {
		subject = "products.validate"
	}

	msg, err := c.conn.RequestWithContext(ctx, subject, payload)
	if err != nil {
		slog.Error("Catalog validation request failed", "product_ids", productIDs, "error", err)

		return nil, &product.CatalogError{ProductIDs: productIDs, Err: err}
	}

	var reply validateReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, &product.CatalogError{ProductIDs: productIDs, Err: fmt.Errorf("failed to decode catalog reply: %w", err)}
	}

	if reply.Error != "" {
		return nil, &product.CatalogError{ProductIDs: productIDs, Err: errors.New(reply.Error)}
	}

	resolved := make(map[int64]struct{}, len(reply.Data))
	for _, p := range reply.Data {
		resolved[p.ID] = struct{}{}
	}

	var missing []int64
	for _, id := range productIDs {
		if _, ok := resolved[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &product.CatalogError{ProductIDs: missing, Err: ErrProductUnknown}
	}

	return reply.Data, nil
}
