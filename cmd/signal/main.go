package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaychat/internal/core/services"
	"relaychat/internal/infrastructure/monitoring"
	"relaychat/internal/infrastructure/repositories/memory"
	signalinfra "relaychat/internal/infrastructure/signal"
	"relaychat/pkg/config"
	"relaychat/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Runs the call-signaling relay on its own. Tokens, when the identity source
// asks for them, are checked against the shared JWT secret only.
func main() {
	configPath := os.Getenv("RELAYCHAT_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.New("info").Sugar().Fatalw("failed to load config", "path", configPath, "error", err)
	}

	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewPrometheusCollector(reg)

	registry := memory.NewConnectionRegistry()
	presence := services.NewPresenceService(registry, metrics, log)
	router := services.NewSignalingService(registry, metrics, log)
	lifecycle := services.NewLifecycleService(registry, presence, metrics, log)

	resolve := signalinfra.QueryIdentity()
	if cfg.Signal.IdentitySource == config.IdentityFromToken {
		auth := services.NewAuthService(memory.NewMemoryUserRepository(), nil, services.AuthConfig{
			JWTSecret: cfg.Auth.JWTSecret,
			TokenTTL:  cfg.Auth.TokenTTL,
		}, log)
		resolve = signalinfra.TokenIdentity(auth, cfg.Auth.CookieName)
	}

	wsServer := signalinfra.NewWebSocketServer(lifecycle, router, registry, metrics, resolve, signalinfra.OptionsFromConfig(cfg), log)

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Signal.Path, wsServer.HandleWebSocket)
	mux.HandleFunc("/health", wsServer.HealthCheck)
	if cfg.Monitoring.PrometheusEnabled {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	srv := &http.Server{
		Addr:              cfg.Signal.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting signaling relay", "address", cfg.Signal.Address, "path", cfg.Signal.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("relay failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Signal.ShutdownTimeout)
	defer cancel()

	if err := wsServer.Shutdown(ctx); err != nil {
		log.Warnw("websocket connections did not drain", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("error during relay shutdown", "error", err)
	}
	log.Info("signaling relay stopped")
}
