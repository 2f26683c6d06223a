package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cohortica-ai/platform/pkg/api/middleware"
	"github.com/cohortica-ai/platform/pkg/common/config"
	"github.com/cohortica-ai/platform/pkg/common/database"
	"github.com/cohortica-ai/platform/pkg/common/kafka"
	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/ingest"
	"github.com/cohortica-ai/platform/pkg/observability/metrics"
	"github.com/cohortica-ai/platform/pkg/registry"
	"github.com/cohortica-ai/platform/pkg/store"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	stays := store.NewStayRepository(db)
	events := store.NewEventRepository(db)
	if err := stays.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate stay tables")
	}
	if err := events.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate event tables")
	}

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load feature registry")
	}

	// Accept any tag some registered feature consumes, plus the monitoring
	// proxy signal.
	knownTags := []string{}
	seen := map[string]struct{}{}
	for _, name := range reg.Names() {
		if feat, ok := reg.Get(name); ok {
			for _, tag := range feat.SourceTags() {
				if _, dup := seen[tag]; !dup {
					seen[tag] = struct{}{}
					knownTags = append(knownTags, tag)
				}
			}
		}
	}

	validator := ingest.NewValidator(cfg.LoaderAllowedTags, knownTags, cfg.LoaderMaxBatchSize)

	producer := kafka.NewProducer(cfg.RunEventsTopic)
	defer producer.Close()

	svc := ingest.NewService(validator, events, producer)
	handler := ingest.NewHTTPHandler(svc, stays)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.BodyLimit(cfg.MaxRequestBody))
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, "8081"),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8081",
		}).Info("Loader Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	// Chart events can also arrive on the bus.
	consumer := kafka.NewConsumer(cfg.ChartEventsTopic, cfg.KafkaGroupID)
	defer consumer.Close()
	go func() {
		if err := consumer.Consume(ctx, svc.HandleBusEvent); err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("chart-event consumer stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Loader Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Loader Service stopped")
}
