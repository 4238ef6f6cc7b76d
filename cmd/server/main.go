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

	"handoff-service/config"
	"handoff-service/internal/api"
	"handoff-service/internal/broker"
	"handoff-service/internal/codes"
	"handoff-service/internal/redisclient"
	"handoff-service/internal/service"
	"handoff-service/internal/store"
	"handoff-service/internal/util"
	"handoff-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting handoff service")

	tp, err := util.InitTracer(util.TracingConfig{
		ServiceName: util.ServiceName,
		Environment: cfg.Server.Env,
		Endpoint:    cfg.Observ.JaegerEndpoint,
		SampleRatio: cfg.Observ.TraceSampleRatio,
	})
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

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))

	eventPublisher := broker.NewEventPublisher(producer)

	staffCodes, err := codes.NewStaffCodes(cfg.Codes.StaffCodeSecret, cfg.Codes.StaffCodeWindow)
	if err != nil {
		logger.Fatal("Failed to initialize staff codes", zap.Error(err))
	}

	repo := service.NewRepository(db)
	access := service.NewAuthorizer(repo)
	generator := codes.RandomGenerator{}

	services := api.Services{
		Carts:      service.NewCartService(repo),
		Transfers:  service.NewTransferService(repo, access, eventPublisher, generator, cfg.Codes.TransferCodeTTL),
		JoinCodes:  service.NewJoinCodeService(repo, access, eventPublisher, generator, cfg.Codes.JoinCodeTTL),
		StaffCodes: service.NewStaffCodeService(staffCodes, access),
		Audit:      service.NewAuditService(repo, access),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	auditConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	auditWorker := worker.NewAuditWorker(auditConsumer, db)
	go func() {
		if err := auditWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Audit worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(services, api.Options{
		JWTSecret:     cfg.Auth.JWTSecret,
		Limiter:       redisClient,
		MaxAttempts:   cfg.Limits.VerifyAttempts,
		AttemptWindow: cfg.Limits.VerifyWindow,
		ReadyChecks: map[string]func(context.Context) error{
			"postgres": db.Ping,
			"redis":    redisClient.Ping,
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
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
	if err := auditWorker.Stop(); err != nil {
		logger.Error("Error stopping audit worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
