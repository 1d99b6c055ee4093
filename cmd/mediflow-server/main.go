package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mediflow/clinic/internal/api"
	"github.com/mediflow/clinic/internal/auth"
	"github.com/mediflow/clinic/internal/external"
	"github.com/mediflow/clinic/internal/realtime"
	"github.com/mediflow/clinic/internal/store"
	"github.com/mediflow/clinic/pkg/config"
	"github.com/mediflow/clinic/pkg/database"
	"github.com/mediflow/clinic/pkg/interfaces"
	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/monitoring"
)

const (
	serviceName    = "mediflow-server"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetricsCollector(serviceName)
	tracing := monitoring.NewNoopTracingManager(serviceName)
	if cfg.Tracing.Enabled {
		tracing, err = monitoring.NewTracingManager(&monitoring.TracingConfig{
			ServiceName:    serviceName,
			ServiceVersion: serviceVersion,
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			Environment:    cfg.Tracing.Environment,
			SamplingRate:   cfg.Tracing.SamplingRate,
		})
		if err != nil {
			logger.Fatalf("Failed to initialize tracing: %v", err)
		}
	}
	observer := monitoring.NewMonitoringMiddleware(metrics, tracing, logger)
	health := monitoring.NewHealthManager(serviceName, serviceVersion, time.Duration(cfg.Monitoring.HealthTimeout)*time.Second)

	// Storage
	mongoDB, err := database.NewMongoConnection(ctx, &cfg.Mongo, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	health.RegisterPing("mongodb", mongoDB.Health)

	users := store.NewUserStore(mongoDB, observer, logger)
	if err := users.EnsureIndexes(ctx); err != nil {
		logger.Fatalf("Failed to create user indexes: %v", err)
	}

	accessList := store.NewAccessListStore(mongoDB, observer, logger)
	if err := accessList.EnsureIndexes(ctx); err != nil {
		logger.Fatalf("Failed to create access list indexes: %v", err)
	}

	var prescriptions interfaces.PrescriptionRepository = store.NewPrescriptionStore(mongoDB, observer, logger)
	var sqlDB *database.DB
	if cfg.Storage.Prescriptions == "postgres" {
		sqlDB, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		if err := sqlDB.CreateSchema(ctx); err != nil {
			logger.Fatalf("Failed to create schema: %v", err)
		}
		health.RegisterSQL("postgresql", sqlDB.DB)
		prescriptions = store.NewPostgresPrescriptionStore(sqlDB, observer, logger)
	}

	redisClient := auth.NewRedisClient(cfg.Redis)
	resetCodes := auth.NewRedisResetCodeStore(redisClient, time.Duration(cfg.Redis.ResetCodeTTL)*time.Second)
	health.RegisterPing("redis", resetCodes.Ping)

	// External services
	blobs, err := external.NewCloudinaryStore(cfg.Cloudinary, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize blob storage: %v", err)
	}
	assistant, err := external.NewGeminiAssistant(ctx, cfg.Gemini)
	if err != nil {
		logger.Fatalf("Failed to initialize assistant: %v", err)
	}

	tokens := auth.NewTokenManager(cfg.JWT)
	hub := realtime.NewHub(realtime.HubConfigFrom(cfg.Realtime, cfg.Server), tokens, prescriptions, metrics, tracing, logger)

	service := api.NewService(cfg, api.Dependencies{
		Users:         users,
		Prescriptions: prescriptions,
		Files:         store.NewFileStore(mongoDB, observer, logger),
		AccessList:    accessList,
		Activity:      store.NewActivityStore(mongoDB, observer, logger),
		Tokens:        tokens,
		Passwords:     auth.NewPasswordManager(),
		ResetCodes:    resetCodes,
		Mailer:        external.NewEmailJSMailer(cfg.EmailJS),
		Blobs:         blobs,
		Assistant:     assistant,
		Google:        auth.NewGoogleVerifier(cfg.Google.ClientID),
		Realtime:      hub,
		Health:        health,
	}, metrics, tracing, logger)
	service.StartCleanup(ctx)

	server := &http.Server{
		Addr:         service.Address(),
		Handler:      service.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Infof("Starting Mediflow server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start Mediflow server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down Mediflow server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error stopping realtime hub: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		logger.Errorf("Error closing redis: %v", err)
	}
	if sqlDB != nil {
		sqlDB.Close()
	}
	if err := mongoDB.Close(shutdownCtx); err != nil {
		logger.Errorf("Error closing MongoDB: %v", err)
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error flushing traces: %v", err)
	}
	logger.Info("Mediflow server stopped")
}
