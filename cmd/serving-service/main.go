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
	"github.com/cohortica-ai/platform/pkg/common/logger"
	"github.com/cohortica-ai/platform/pkg/featurestore"
	"github.com/cohortica-ai/platform/pkg/registry"
	"github.com/cohortica-ai/platform/pkg/serving"
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

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load feature registry")
	}

	stays := store.NewStayRepository(db)
	results := store.NewResultRepository(db)
	cache := featurestore.New(database.GetRedis(), cfg.FeatureStoreCacheTTL)

	svc := serving.NewService(stays, results, cache, reg)
	handler := serving.NewHTTPHandler(svc)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, "8082"),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8082",
		}).Info("Serving Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Serving Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Serving Service stopped")
}
