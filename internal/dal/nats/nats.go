package nats

import (
	"log/slog"
	"os"

	"github.com/nats-io/nats.go"
)

// Client represents a NATS client shared by the inbound transport and the
// outbound service clients.
type Client struct {
	conn *nats.Conn
}

// Conn returns the underlying NATS connection.
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// Close drains and closes the connection for graceful shutdown.
func (c *Client) Close() error {
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Drain()
	}

	return nil
}

// MustNewClient creates a new NATS client.
func MustNewClient() *Client {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url,
		nats.Name("orders-svc"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		panic("Failed to connect to NATS: " + err.Error())
	}

	slog.Info("NATS connected", "url", url)

	return &Client{
		conn: conn,
	}
}
