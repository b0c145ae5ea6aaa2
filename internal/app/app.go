package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightcart/orders/internal/dal/catalog"
	natsclient "github.com/brightcart/orders/internal/dal/nats"
	"github.com/brightcart/orders/internal/dal/payments"
	"github.com/brightcart/orders/internal/dal/postgres"
	"github.com/brightcart/orders/internal/dal/rabbitmq"
	outboxrepo "github.com/brightcart/orders/internal/dal/repositories/outbox/postgres"
	"github.com/brightcart/orders/internal/metrics"
	"github.com/brightcart/orders/internal/otel"
	"github.com/brightcart/orders/internal/service/services/ordersvc"
	"github.com/brightcart/orders/internal/transport/consumer"
	httptransport "github.com/brightcart/orders/internal/transport/http"
	natstransport "github.com/brightcart/orders/internal/transport/nats"
	outboxworker "github.com/brightcart/orders/internal/worker/outbox"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	orderSvc       *ordersvc.OrderService
	natsTransport  *natstransport.NATSTransport
	httpTransport  *httptransport.HTTPTransport
	consumerTransp *consumer.Consumer
	outboxWorker   *outboxworker.Worker
	natsClient     *natsclient.Client
	rabbitMqClient *rabbitmq.Client
	postgresClient *postgres.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()
	rabbitMqClient := rabbitmq.MustNewClient()
	natsClient := natsclient.MustNewClient()

	catalogClient := catalog.NewClient(natsClient.Conn())
	paymentsClient := payments.NewClient(natsClient.Conn())

	orderMetrics := metrics.MustNewOrderMetrics()

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithCatalogClient(catalogClient),
		ordersvc.WithPaymentsClient(paymentsClient),
		ordersvc.WithMetrics(orderMetrics),
		ordersvc.WithEventDestination(
			viper.GetString("rabbitmq.events.exchange"),
			viper.GetString("rabbitmq.events.queue"),
		),
		ordersvc.WithOutboxMaxRetries(viper.GetInt("rabbitmq.outbox.max_retries")),
	)

	natsTransport := natstransport.NewNATSTransport(natsClient, orderSvc)

	httpTransport := httptransport.NewHTTPTransport(orderSvc)
	httpTransport.RegisterRoutes()

	consumerTransp := consumer.NewConsumer(rabbitMqClient, orderSvc)

	outboxRepository := outboxrepo.NewOutboxRepository(postgresClient.Pool())
	outboxWorker := outboxworker.NewWorker(outboxRepository, rabbitMqClient)

	return &App{
		orderSvc:       orderSvc,
		natsTransport:  natsTransport,
		httpTransport:  httpTransport,
		consumerTransp: consumerTransp,
		outboxWorker:   outboxWorker,
		natsClient:     natsClient,
		rabbitMqClient: rabbitMqClient,
		postgresClient: postgresClient,
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		slog.Info("Starting NATS transport")
		if err := a.natsTransport.Run(); err != nil {
			slog.Error("NATS transport error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.httpTransport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting payment consumer")
		if err := a.consumerTransp.Run(ctx); err != nil {
			slog.Error("Payment consumer error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting outbox worker")
		a.outboxWorker.Start(ctx)
	}()

	<-stop
	slog.Info("Shutdown signal received")
	cancel()

	a.gracefulShutdown()
}

// gracefulShutdown shuts down components sequentially: outbox worker,
// transports, broker connections, PostgreSQL, and OpenTelemetry.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.outboxWorker.Stop()
	slog.Info("Outbox worker stopped gracefully")

	if err := a.consumerTransp.Shutdown(); err != nil {
		slog.Error("Payment consumer shutdown error", "error", err)
	} else {
		slog.Info("Payment consumer stopped gracefully")
	}

	if err := a.natsTransport.Shutdown(); err != nil {
		slog.Error("NATS transport shutdown error", "error", err)
	} else {
		slog.Info("NATS transport stopped gracefully")
	}

	if err := a.httpTransport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.natsClient.Close(); err != nil {
		slog.Error("NATS connection close error", "error", err)
	} else {
		slog.Info("NATS connection closed gracefully")
	}

	if err := a.rabbitMqClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider connection closed gracefully")
	}

	slog.Info("Application shutdown complete")
}
