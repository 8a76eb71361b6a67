// Package main is the entry point for the application intake service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/application-intake/internal/adapters/http"
	"github.com/jsamuelsen/application-intake/internal/adapters/http/handlers"
	"github.com/jsamuelsen/application-intake/internal/adapters/http/middleware"
	"github.com/jsamuelsen/application-intake/internal/adapters/security"
	"github.com/jsamuelsen/application-intake/internal/app"
	"github.com/jsamuelsen/application-intake/internal/platform/config"
	"github.com/jsamuelsen/application-intake/internal/platform/logging"
	"github.com/jsamuelsen/application-intake/internal/platform/telemetry"
	"github.com/jsamuelsen/application-intake/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("store", cfg.Store.Driver),
	)

	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	if telProvider.Enabled() {
		logger.Info("telemetry export enabled", slog.String("endpoint", cfg.Telemetry.Endpoint))
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	store, err := openStore(ctx, &cfg.Store, cfg.Intake.DefaultLimit)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}

	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("store close error", slog.Any("error", closeErr))
		}
	}()

	healthRegistry := ports.NewHealthRegistry()
	if err := healthRegistry.Register(store); err != nil {
		return fmt.Errorf("registering store health check: %w", err)
	}

	nonce, err := newNonce(&cfg.Security, logger)
	if err != nil {
		return fmt.Errorf("creating form tokens: %w", err)
	}

	metrics, err := telemetry.NewIntakeMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("registering intake metrics: %w", err)
	}

	intakeService := app.NewIntakeService(app.IntakeServiceConfig{
		Tokens:   nonce,
		Settings: store,
		Store:    store,
		Recorder: metrics,
		Logger:   logger,
	})
	adminService := app.NewAdminService(store, store, logger)

	var limiter *middleware.ClientRateLimiter
	if cfg.Intake.RateLimit.Enabled {
		limiter = middleware.NewClientRateLimiter(cfg.Intake.RateLimit.RPS, cfg.Intake.RateLimit.Burst)
	}

	server := http.New(&cfg.Server, logger)

	http.SetupRouter(server.Engine(), http.RouterConfig{
		Logger:     logger,
		AuthConfig: &cfg.Auth,
		AppConfig:  &cfg.App,
		HealthHandler: handlers.NewHealthHandler(healthRegistry,
			handlers.NewBuildInfo(Version, Commit, BuildTime, cfg.Store.Driver), prometheus.DefaultGatherer),
		IntakeHandler: handlers.NewIntakeHandler(handlers.IntakeHandlerConfig{
			Submitter:    intakeService,
			Issuer:       nonce,
			SubmitURL:    http.ApplicationsPath,
			LegacyStatus: cfg.Intake.LegacyStatus,
		}),
		AdminHandler: handlers.NewAdminHandler(adminService),
		RateLimiter:  limiter,
		Timeout:      http.DefaultRequestTimeout,
	})

	serverErr := server.Start()

	return waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)
}

// newNonce builds the form token issuer. Without a configured secret a
// random one is generated, so tokens do not survive a restart and are not
// shared between replicas.
func newNonce(cfg *config.SecurityConfig, logger *slog.Logger) (*security.Nonce, error) {
	secret := []byte(cfg.TokenSecret)

	if len(secret) == 0 {
		generated, err := security.GenerateSecret()
		if err != nil {
			return nil, fmt.Errorf("generating token secret: %w", err)
		}

		secret = generated

		logger.Warn("security.token_secret is not set; using a random secret for this process")
	}

	return security.NewNonce(secret, security.SubmitAction, cfg.TokenLifetime)
}

// waitForShutdown blocks until a signal or a server error, then drains
// in-flight requests.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
