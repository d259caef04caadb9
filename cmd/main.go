package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/sannge/pms-collab-gateway/internal/auth"
	"github.com/sannge/pms-collab-gateway/internal/config"
	"github.com/sannge/pms-collab-gateway/internal/handler"
	"github.com/sannge/pms-collab-gateway/internal/hub"
	"github.com/sannge/pms-collab-gateway/internal/metrics"
	"github.com/sannge/pms-collab-gateway/internal/service"
	pkglog "github.com/sannge/pms-collab-gateway/pkg/log"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "collab-gateway"})
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting collab-gateway")

	// Registries + metrics
	metricsRegistry := metrics.NewRegistry()
	h := hub.NewHub(cfg.WebSocket, metricsRegistry)

	// Router / presence service
	svc := service.NewCollabService(h)

	// Token verifier
	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret)

	// Create handlers
	wsHandler := handler.NewWSHandler(h, svc, verifier, metricsRegistry, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(h)

	// Setup routes
	router := mux.NewRouter()
	router.HandleFunc("/ws", wsHandler.HandleWebSocket)
	router.HandleFunc("/health", httpHandler.HealthCheck).Methods("GET")
	router.Handle("/metrics", metricsRegistry.Handler()).Methods("GET")

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      pkglog.HTTPMiddleware(*logger)(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", addr).Msg("collab-gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down collab-gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	logger.Info().Msg("collab-gateway stopped")
}
