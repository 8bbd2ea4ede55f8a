package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expensedash/internal/amqp"
	"expensedash/internal/api"
	"expensedash/internal/cli"
	"expensedash/internal/core"
	apphttp "expensedash/internal/http"
	"expensedash/internal/log"
	"expensedash/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	baseURL, err := api.ResolveBaseURL(cfg.APIBaseURL, cfg.APIOrigin)
	if err != nil {
		logger.Error("Failed to resolve API base URL", log.FieldError, err, "base", cfg.APIBaseURL)
		os.Exit(1)
	}
	client, err := api.New(baseURL, cfg.HTTPTimeout, api.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to initialize API client", log.FieldError, err)
		os.Exit(1)
	}

	sessions := cli.InitSessionBackend(context.Background(), logger, cfg)

	var events amqp.Publisher = amqp.NoopPublisher{}
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		amqpClient, err = amqp.Connect(connectCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		cancel()
		if err != nil {
			// Events are best effort; the dashboard works without them.
			logger.Warn("AMQP unavailable, dashboard events disabled", log.FieldError, err)
		} else {
			events = amqpClient
		}
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		API:             client,
		Sessions:        sessions.Provider,
		Ready:           sessions.Ready,
		Events:          events,
		EnableCreate:    cfg.EnableCreateExpense,
		DefaultLocale:   core.LookupLocale(cfg.DefaultLocale),
		ClientCacheSize: cfg.ClientCacheSize,
		ClientIdleTTL:   cfg.ClientIdleTTL,
		AuthRateLimit:   cfg.AuthRateLimit,
		TrustedProxies:  cfg.TrustedProxies,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 2*cfg.HTTPTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := sessions.Cleanup(); err != nil {
			logger.Warn("Failed to close session backend", log.FieldError, err)
		}
	})

	if sessions.Purger != nil {
		purge := worker.NewPurgeWorker(sessions.Purger, cfg.SessionRetention, time.Hour, worker.WithLogger(logger))
		go purge.Run(ctx)
	}

	logger.Info("Starting expense dashboard",
		"port", cfg.Port,
		"api", baseURL,
		"session_backend", cfg.SessionBackend,
		"create_enabled", cfg.EnableCreateExpense)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
