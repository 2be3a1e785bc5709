package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopstream/contracts/events"
	"shopstream/services/order/internal/config"
	"shopstream/services/order/internal/consumer"
	"shopstream/services/order/internal/handler"
	"shopstream/services/order/internal/kafka"
	"shopstream/services/order/internal/ledger"
	"shopstream/services/order/internal/observability"
	"shopstream/services/order/internal/outbox"
	"shopstream/services/order/internal/repository"
	"shopstream/services/order/internal/service"
	"shopstream/services/order/internal/tx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Observability
	observability.InitLogger(cfg.ServiceName)
	log := observability.Log

	if cfg.TracingEnabled {
		tp, err := observability.InitTracer(cfg.ServiceName, cfg.JaegerURL)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Error("failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	// Database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("db ping failed", zap.Error(err))
	}

	// Kafka producer
	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	// Wire dependencies
	txMgr := &tx.Manager{DB: db}
	repo := repository.NewOrderRepository(db)
	store := outbox.NewStore(db, cfg.OutboxMaxRetries)
	ldg := ledger.New(db)
	svc := service.NewOrderService(repo, store, ldg, txMgr)

	// Outbox relay
	relay := &outbox.Relay{
		Store:          store,
		Producer:       producer,
		Topics:         map[string]string{events.AggregateOrder: events.TopicOrderEvents},
		Service:        cfg.ServiceName,
		BatchSize:      cfg.OutboxBatchSize,
		PollInterval:   cfg.OutboxPollInterval,
		PublishTimeout: cfg.PublishTimeout,
	}

	// Payment events consumer
	paymentConsumer := kafka.NewConsumer(
		cfg.KafkaBrokers, events.TopicPaymentEvents, cfg.ConsumerGroupID,
		cfg.ServiceName, consumer.NewPaymentEvents(svc),
	)
	defer paymentConsumer.Close()

	// HTTP server with chi router
	mux := handler.NewRouter(svc, store)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	go func() {
		log.Info("HTTP started", zap.String("service", cfg.ServiceName), zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// HTTP Observability server
	obsMux := chi.NewRouter()
	obsMux.Use(observability.MetricsMiddleware(cfg.ServiceName))
	obsMux.Handle("/metrics", promhttp.Handler())
	obsMux.Get("/health/live", observability.HealthLiveHandler)
	obsMux.Get("/health/ready", observability.HealthReadyHandler(db))

	obsSrv := &http.Server{Addr: cfg.ObsHTTPAddr, Handler: obsMux}
	go func() {
		log.Info("Observability HTTP started", zap.String("addr", cfg.ObsHTTPAddr))
		if err := obsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Observability server failed", zap.Error(err))
		}
	}()

	// Context for background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	go relay.Start(workerCtx)
	go paymentConsumer.Start(workerCtx)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down...")

	workerCancel() // Stop relay and consumer

	ctxShut, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctxShut)
	_ = obsSrv.Shutdown(ctxShut)
	log.Info("stopped", zap.String("service", cfg.ServiceName))
}
