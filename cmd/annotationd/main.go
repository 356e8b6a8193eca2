// Annotationd is the floor-plan annotation backend: accounts, projects,
// PDF page rendering and per-page annotation storage behind a REST API.
//
// Configuration is loaded from a YAML file and environment variables. See
// internal/config for details.
//
// Usage:
//
//	# Start server with defaults (embedded file store under ./data)
//	annotationd
//
//	# Configure via environment
//	SERVER_PORT=9090 STORE_PROVIDER=couchbase annotationd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/auth"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/config"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/convert"
	httpapi "github.com/RahulSGosavi/KABS-Annotation-AI/internal/http"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/logging"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/project"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/store"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  annotationd           Start the annotation daemon\n")
			fmt.Fprintf(os.Stderr, "  annotationd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("annotationd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the annotation server and blocks until ctx is cancelled.
//
//  1. Loads and validates configuration
//  2. Initializes the logger
//  3. Opens the store (file or couchbase)
//  4. Creates the conversion, auth and project services
//  5. Starts the HTTP server with the metrics endpoint
//  6. Performs graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("Starting annotationd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("store_provider", cfg.Store.Provider),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	telemetryShutdown, err := telemetry.Init(&telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		MetricsEnabled: cfg.Telemetry.MetricsEnabled,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	st, err := store.New(storeConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("store close failed", zap.Error(err))
		}
	}()

	convertSvc, err := convert.NewService(&convert.Config{
		CacheDir:       cfg.Convert.CacheDir,
		DPI:            cfg.Convert.DPI,
		MaxPages:       cfg.Convert.MaxPages,
		ThumbnailWidth: cfg.Convert.ThumbnailWidth,
	}, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to create convert service: %w", err)
	}

	authSvc, err := auth.NewService(&auth.Config{
		BcryptCost: cfg.Auth.BcryptCost,
		TokenTTL:   cfg.Auth.TokenTTL.Duration(),
	}, st, logger)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	projectSvc, err := project.NewService(st, convertSvc, logger)
	if err != nil {
		return fmt.Errorf("failed to create project service: %w", err)
	}

	srv, err := httpapi.NewServer(&httpapi.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:   cfg.Server.WriteTimeout.Duration(),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		UploadDir:      cfg.Server.UploadDir,
	}, authSvc, projectSvc, convertSvc, st, logger)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	if cfg.Telemetry.MetricsEnabled {
		srv.Handler().(*echo.Echo).GET("/metrics", echo.WrapHandler(promhttp.Handler()))
		logger.Info("Metrics endpoint registered", zap.String("path", "/metrics"))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}

// storeConfig maps the daemon configuration onto the store package config.
func storeConfig(cfg *config.Config) store.Config {
	return store.Config{
		Provider: cfg.Store.Provider,
		File: store.FileConfig{
			Path: cfg.Store.File.Path,
		},
		Couchbase: store.CouchbaseConfig{
			ConnectionString: cfg.Store.Couchbase.ConnectionString,
			Username:         cfg.Store.Couchbase.Username,
			Password:         cfg.Store.Couchbase.Password.Value(),
			Bucket:           cfg.Store.Couchbase.Bucket,
			Scope:            cfg.Store.Couchbase.Scope,
			Collection:       cfg.Store.Couchbase.Collection,
		},
	}
}
