package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cohortica-ai/platform/pkg/api/auth"
	"github.com/cohortica-ai/platform/pkg/api/middleware"
	"github.com/cohortica-ai/platform/pkg/cohort"
	"github.com/cohortica-ai/platform/pkg/common/config"
	"github.com/cohortica-ai/platform/pkg/common/database"
	"github.com/cohortica-ai/platform/pkg/common/kafka"
	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/extraction"
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
	windows := store.NewWindowRepository(db)
	results := store.NewResultRepository(db)
	runs := store.NewRunRepository(db)
	for _, migrate := range []func() error{
		stays.AutoMigrate, events.AutoMigrate, windows.AutoMigrate, runs.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate tables")
		}
	}

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load feature registry")
	}
	logger.Log.WithField("features", reg.Len()).Info("feature registry loaded")

	producer := kafka.NewProducer(cfg.RunEventsTopic)
	defer producer.Close()

	svc := extraction.NewService(stays, events, windows, results, reg, producer,
		cfg.WindowFuzzBefore, cfg.WindowFuzzAfter)
	materializer := extraction.NewMaterializer(runs, svc, producer, cfg.RunMaxWorkers)
	handler := extraction.NewHTTPHandler(svc, materializer)

	composer := cohort.NewComposer(stays, results)
	cohortHandler := cohort.NewHTTPHandler(composer, reg)

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
	if cfg.OIDCIssuer != "" {
		oidcAuth, err := auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to configure OIDC")
		}
		api.Use(middleware.Authenticate(oidcAuth))
	}
	handler.Register(api)
	cohortHandler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Extraction Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Extraction Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Extraction Service stopped")
}
