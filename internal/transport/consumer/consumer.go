package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/brightcart/orders/internal/dal/rabbitmq"
	"github.com/brightcart/orders/internal/service/models/order"
	"github.com/brightcart/orders/internal/service/models/payment"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

// service represents the service layer interface.
type service interface {
	MarkPaid(ctx context.Context, event payment.ConfirmedEvent) (*order.Order, error)
}

// Consumer receives payment.succeeded events from RabbitMQ. Delivery is
// at-least-once: the service's MarkPaid is idempotent, so redeliveries are
// acked without a second write.
type Consumer struct {
	client          *rabbitmq.Client
	service         service
	queue           amqp.Queue
	maxRedeliveries int
	stop            chan struct{}
	done            chan struct{}
}

// NewConsumer creates a new Consumer.
func NewConsumer(client *rabbitmq.Client, service service) *Consumer {
	queueName := viper.GetString("rabbitmq.payments.queue")
	if queueName == "" {
		queueName = "payment.succeeded"
	}

	queue, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
		Name:       queueName,
		Durable:    true,
		AutoDelete: false,
		Exclusive:  false,
		NoWait:     false,
	})
	if err != nil {
		panic(err)
	}

	maxRedeliveries := viper.GetInt("rabbitmq.payments.max_redeliveries")
	if maxRedeliveries == 0 {
		maxRedeliveries = 5
	}

	return &Consumer{
		client:          client,
		service:         service,
		queue:           queue,
		maxRedeliveries: maxRedeliveries,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Run starts consuming payment confirmations.
func (c *Consumer) Run(ctx context.Context) error {
	consumerTag := viper.GetString("rabbitmq.payments.consumer_tag")
	if consumerTag == "" {
		consumerTag = "orders-svc"
	}

	msgs, err := c.client.Consume(rabbitmq.ConsumeConfig{
		Queue:    c.queue.Name,
		Consumer: consumerTag,
	})
	if err != nil {
		return err
	}

	slog.Info("Payment consumer started", "queue", c.queue.Name, "consumer_tag", consumerTag)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(50)

	go func() {
		for {
			select {
			case <-c.stop:
				slog.Info("Stopping payment consumer")
				close(c.done)

				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Info("Message channel closed")
					close(c.done)

					return
				}

				g.Go(func() error {
					return c.processMessage(gctx, msg)
				})
			}
		}
	}()

	<-c.done
	if err := g.Wait(); err != nil {
		slog.Error("Error processing payment confirmations", "error", err)
	}

	return nil
}

// processMessage handles a single payment confirmation. There is no caller
// awaiting a reply, so failures are logged and the delivery is nacked: a
// requeue for retryable store failures, a drop for poison messages.
func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) error {
	ctx, span := otel.Tracer("consumer").Start(ctx, "Consumer.processMessage")
	defer span.End()

	var event payment.ConfirmedEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("Failed to unmarshal payment confirmation", "error", err)
		// Malformed payload will never succeed, drop it.
		if err := msg.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return err
	}

	if event.OrderID == "" || event.PaymentID == "" {
		slog.Error("Payment confirmation missing identifiers",
			"order_id", event.OrderID,
			"payment_id", event.PaymentID)
		if err := msg.Nack(false, false); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return errors.New("payment confirmation missing identifiers")
	}

	if _, err := c.service.MarkPaid(ctx, event); err != nil {
		var transitionErr *order.InvalidTransitionError
		if errors.Is(err, order.ErrPaymentConflict) || errors.As(err, &transitionErr) {
			slog.Error("Payment confirmation conflicts with stored order state",
				"order_id", event.OrderID,
				"payment_id", event.PaymentID,
				"error", err)
			// Retrying cannot fix a reference mismatch or an order that was
			// already cancelled or delivered.
			if err := msg.Nack(false, false); err != nil {
				slog.Error("Failed to nack message", "error", err)
			}

			return err
		}

		// Covers transient store failures and confirmations that raced ahead
		// of order creation: requeue and let redelivery retry, up to the
		// redelivery budget so an order that never materializes does not
		// cycle forever.
		requeue := deliveryCount(msg) < c.maxRedeliveries
		if requeue {
			slog.Error("Failed to apply payment confirmation, requeueing",
				"order_id", event.OrderID,
				"payment_id", event.PaymentID,
				"error", err)
		} else {
			slog.Error("Payment confirmation exhausted its redeliveries, dropping",
				"order_id", event.OrderID,
				"payment_id", event.PaymentID,
				"max_redeliveries", c.maxRedeliveries,
				"error", err)
		}
		if err := msg.Nack(false, requeue); err != nil {
			slog.Error("Failed to nack message", "error", err)
		}

		return err
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("Failed to ack message", "error", err)

		return err
	}

	slog.Info("Payment confirmation processed",
		"order_id", event.OrderID,
		"payment_id", event.PaymentID)

	return nil
}

// deliveryCount reads the broker's x-delivery-count header (stamped by
// quorum queues). A classic queue only exposes the Redelivered flag, which
// counts as a single prior attempt.
func deliveryCount(msg amqp.Delivery) int {
	if msg.Headers != nil {
		switch v := msg.Headers["x-delivery-count"].(type) {
		case int64:
			return int(v)
		case int32:
			return int(v)
		case int:
			return v
		}
	}

	if msg.Redelivered {
		return 1
	}

	return 0
}

// Shutdown gracefully shuts down the consumer.
func (c *Consumer) Shutdown() error {
	slog.Info("Shutting down payment consumer")
	close(c.stop)

	select {
	case <-c.done:
		slog.Info("Payment consumer stopped successfully")
	case <-time.After(10 * time.Second):
		slog.Warn("Payment consumer shutdown timeout")
	}

	return nil
}
