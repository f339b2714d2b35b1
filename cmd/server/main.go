package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ice-inventory/config"
	"ice-inventory/internal/api"
	"ice-inventory/internal/broker"
	"ice-inventory/internal/redisclient"
	"ice-inventory/internal/service"
	"ice-inventory/internal/store"
	"ice-inventory/internal/util"
	"ice-inventory/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "ice-inventory"

// ledgerStore is what both the services and the cache warm-up read from
type ledgerStore interface {
	service.Store
	worker.LedgerReader
}

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, serviceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting inventory service", zap.String("store", cfg.Database.Driver))

	tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	var readyChecks = map[string]api.ReadyCheck{}

	var st ledgerStore
	switch cfg.Database.Driver {
	case "memory":
		st = store.NewMemoryStore()
		logger.Warn("Using in-memory store; data is lost on restart")
	default:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := db.Migrate(context.Background()); err != nil {
				logger.Fatal("Failed to apply schema", zap.Error(err))
			}
		}
		readyChecks["database"] = db.GetDB().PingContext
		st = db
		logger.Info("Database connected")
	}

	cacheTTL := time.Duration(cfg.Business.AvailabilityCacheSeconds) * time.Second
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cacheTTL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	readyChecks["redis"] = func(ctx context.Context) error {
		return redisClient.GetClient().Ping(ctx).Err()
	}
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicInventory)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicInventory))

	eventPublisher := broker.NewEventPublisher(producer)
	ledger := service.NewLedger()

	orderService := service.NewOrderService(st, ledger, eventPublisher, redisClient, service.OrderServiceConfig{
		AllowOversellOnCreate: cfg.Business.AllowOversellOnCreate,
		IdempotencyLockTTL:    time.Duration(cfg.Business.IdempotencyLockSeconds) * time.Second,
	})
	stockService := service.NewStockService(st, ledger, eventPublisher, redisClient)

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicInventory, cfg.Kafka.ConsumerGroup)
	projector := worker.NewAvailabilityProjector(consumer, redisClient, st)
	if err := projector.Warm(context.Background()); err != nil {
		logger.Warn("Failed to warm availability cache", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go func() {
		if err := projector.Start(workerCtx); err != nil {
			logger.Error("Availability projector error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, stockService)
	for name, check := range readyChecks {
		handler.AddReadyCheck(name, check)
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := projector.Stop(); err != nil {
		logger.Error("Failed to stop availability projector", zap.Error(err))
	}

	logger.Info("Server exited")
}
