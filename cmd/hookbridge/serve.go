package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hookbridge/hookbridge/internal/config"
	"github.com/hookbridge/hookbridge/internal/dlq"
	"github.com/hookbridge/hookbridge/internal/eventstore"
	"github.com/hookbridge/hookbridge/internal/handlers"
	"github.com/hookbridge/hookbridge/internal/logging"
	"github.com/hookbridge/hookbridge/internal/normalizer"
	"github.com/hookbridge/hookbridge/internal/ratelimit"
	"github.com/hookbridge/hookbridge/internal/server"
	"github.com/hookbridge/hookbridge/internal/service"
	"github.com/hookbridge/hookbridge/internal/signature"
	"github.com/hookbridge/hookbridge/internal/upstream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("hookbridge"))
	logging.SetDefault(logger)

	slog.Info("starting hookbridge",
		slog.String("version", version),
		slog.Int("port", cfg.Server.Port),
		slog.String("persistence_mode", cfg.Ingest.PersistenceMode),
	)

	verifier, err := signature.NewVerifier(cfg.Webhook.Secret)
	if err != nil {
		return fmt.Errorf("failed to create signature verifier: %w", err)
	}

	// Open runs pending migrations before accepting traffic.
	openCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := eventstore.Open(openCtx, cfg.Database.URL)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer store.Close()

	allowedKinds := cfg.Webhook.AllowedKinds
	if len(allowedKinds) == 0 {
		allowedKinds = normalizer.DefaultAllowedKinds
	}
	norm := normalizer.New(allowedKinds)

	svc := service.NewIngestService(verifier, norm, store, logger,
		service.PersistenceMode(cfg.Ingest.PersistenceMode))

	if cfg.DLQ.Enabled {
		dlqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		queue, err := dlq.NewJetStreamQueue(dlqCtx, cfg.DLQ.NatsURL)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect dead-letter queue: %w", err)
		}
		defer queue.Close()
		svc.SetDLQ(queue)
		slog.Info("dead-letter queue enabled", slog.String("nats_url", cfg.DLQ.NatsURL))
	}

	var limiter ratelimit.RateLimiter = &ratelimit.NoOpRateLimiter{}
	if cfg.RateLimit.Enabled {
		rl, err := ratelimit.NewRedisRateLimiter(cfg.RateLimit.RedisURL, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if err != nil {
			// Ingestion keeps running without the limiter.
			slog.Warn("failed to initialize rate limiter, continuing without", slog.String("error", err.Error()))
		} else {
			limiter = rl
			slog.Info("rate limiting enabled",
				slog.Int("requests", cfg.RateLimit.Requests),
				slog.Duration("window", cfg.RateLimit.Window),
			)
		}
	}
	defer limiter.Close()

	var issuesHandler *handlers.IssuesHandler
	if cfg.UpstreamConfigured() {
		client, err := upstream.New(upstream.Config{
			BaseURL:       cfg.GitHub.BaseURL,
			Token:         cfg.GitHub.Token,
			AppID:         cfg.GitHub.AppID,
			PrivateKeyPEM: cfg.GitHub.PrivateKeyPEM,
			Timeout:       cfg.GitHub.Timeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create upstream client: %w", err)
		}
		issuesHandler = handlers.NewIssuesHandler(client, logger)
		slog.Info("issue proxy enabled", slog.String("base_url", cfg.GitHub.BaseURL))
	} else {
		slog.Info("no upstream credentials configured, issue proxy disabled")
	}

	router := server.NewRouter(server.RouterConfig{
		Webhook:            handlers.NewWebhookHandler(svc, limiter, logger, cfg.Webhook.MaxBodyBytes),
		Events:             handlers.NewEventsHandler(svc, logger),
		Issues:             issuesHandler,
		Health:             handlers.NewHealthHandler(svc, logger),
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		slog.Info("shutting down", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	// In-flight background persists finish before the store closes.
	if err := svc.Drain(shutdownCtx); err != nil {
		slog.Warn("shutdown drain incomplete, some deliveries may be unpersisted",
			slog.String("error", err.Error()))
	}

	slog.Info("server stopped")
	return nil
}
