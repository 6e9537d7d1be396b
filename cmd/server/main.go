package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"relaychat/internal/core/services"
	httphandlers "relaychat/internal/handlers/http"
	"relaychat/internal/infrastructure/blob"
	"relaychat/internal/infrastructure/middleware"
	"relaychat/internal/infrastructure/monitoring"
	repositories "relaychat/internal/infrastructure/repositories"
	"relaychat/internal/infrastructure/repositories/memory"
	signalinfra "relaychat/internal/infrastructure/signal"
	"relaychat/pkg/config"
	"relaychat/pkg/logger"
	"relaychat/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var configPaths = []string{
	"configs/config.yaml",
	"./configs/config.yaml",
	"/etc/relaychat/config.yaml",
	"config.yaml",
}

func loadConfig() (*config.Config, string, error) {
	if path := os.Getenv("RELAYCHAT_CONFIG"); path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			cfg, err := config.Load(path)
			return cfg, path, err
		}
	}
	// no file: defaults plus env overrides
	cfg, err := config.Load("")
	return cfg, "", err
}

func main() {
	startTime := time.Now()

	cfg, cfgPath, err := loadConfig()
	if err != nil {
		logger.New("info").Sugar().Fatalw("failed to load config", "path", cfgPath, "error", err)
	}

	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()
	if cfgPath != "" {
		log.Infow("loaded config", "path", cfgPath)
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewPrometheusCollector(reg)

	// Storage
	repoFactory, err := repositories.NewRepositoryFactory(ctx, cfg, metrics, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	users := repoFactory.CreateUserRepository()
	messages := repoFactory.CreateMessageRepository()

	media, err := blob.NewFileStore(cfg.Media.Dir, cfg.Media.BaseURL)
	if err != nil {
		log.Fatalw("failed to open media store", "dir", cfg.Media.Dir, "error", err)
	}

	// Relay
	registry := memory.NewConnectionRegistry()
	presence := services.NewPresenceService(registry, metrics, log)
	router := services.NewSignalingService(registry, metrics, log)
	lifecycle := services.NewLifecycleService(registry, presence, metrics, log)

	// Accounts and messages
	authService := services.NewAuthService(users, media, services.AuthConfig{
		JWTSecret:     cfg.Auth.JWTSecret,
		TokenTTL:      cfg.Auth.TokenTTL,
		BcryptCost:    cfg.Auth.BcryptCost,
		MaxMediaBytes: cfg.Media.MaxBytes,
	}, log)
	chatService := services.NewChatService(users, messages, media, registry, metrics, cfg.Media.MaxBytes, log)

	var resolve signalinfra.IdentityResolver
	switch cfg.Signal.IdentitySource {
	case config.IdentityFromToken:
		resolve = signalinfra.TokenIdentity(authService, cfg.Auth.CookieName)
	default:
		resolve = signalinfra.QueryIdentity()
	}
	wsServer := signalinfra.NewWebSocketServer(lifecycle, router, registry, metrics, resolve, signalinfra.OptionsFromConfig(cfg), log)

	// Health
	health := monitoring.NewHealthChecker()
	health.AddCheck("storage", repoFactory.HealthCheck, 30*time.Second, 2*time.Second)
	health.StartBackgroundChecks(ctx, func(name string, err error) {
		log.Warnw("health check failed", "check", name, "error", err)
	})

	// HTTP
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestIDMiddleware(),
		middleware.CORSMiddleware(cfg.Server.AllowedOrigins),
		middleware.TracingMiddleware(),
		middleware.AccessLogMiddleware(logger.NewContextLogger(zapLogger)),
		middleware.MetricsMiddleware(metrics),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	cookie := httphandlers.CookieConfig{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure}
	httphandlers.NewAuthHandler(authService, cookie, cfg.Media.MaxBytes, log).SetupRoutes(engine)
	httphandlers.NewMessageHandler(chatService, cfg.Media.MaxBytes).
		SetupRoutes(engine, middleware.AuthMiddleware(authService, cfg.Auth.CookieName))

	if strings.HasPrefix(cfg.Media.BaseURL, "/") {
		engine.Static(cfg.Media.BaseURL, media.Dir())
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       monitoring.StatusHealthy,
			"timestamp":    time.Now(),
			"uptime":       time.Since(startTime).String(),
			"storage":      repoFactory.Driver(),
			"connections":  wsServer.ConnectionCount(),
			"online_users": registry.Count(),
		})
	})

	engine.GET("/ready", func(c *gin.Context) {
		status := health.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != monitoring.StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
		log.Info("prometheus metrics enabled")
	}

	// The websocket route bypasses the gin chain so long-lived connections
	// do not hold HTTP concurrency slots or request spans.
	mux := http.NewServeMux()
	mux.Handle(cfg.Signal.Path, http.HandlerFunc(wsServer.HandleWebSocket))
	mux.Handle("/", engine)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := wsServer.PruneLimiters(10 * time.Minute); n > 0 {
					log.Debugw("pruned idle handshake limiters", "count", n)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting relaychat server",
			"address", cfg.Server.Address,
			"ws_path", cfg.Signal.Path,
			"storage", repoFactory.Driver(),
			"identity_source", cfg.Signal.IdentitySource,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down relaychat server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Hijacked websocket connections are not tracked by http.Server, so the
	// relay is drained first.
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Warnw("websocket connections did not drain", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	} else {
		log.Info("server shutdown gracefully")
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer provider", "error", err)
	}

	log.Info("relaychat server stopped")
}
