// Package main provides the main entry point for the learning support API server.
// It loads configuration, sets up observability, wires the services and serves HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learnapp/internal/config"
	"learnapp/internal/di"
	"learnapp/internal/handlers"
	"learnapp/internal/observability"
	contextutils "learnapp/internal/utils"
	"learnapp/internal/version"

	"github.com/gin-gonic/gin"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	router    *gin.Engine
	server    *http.Server
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	ocrService, err := container.GetOCRService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get OCR service")
	}

	batchOrchestrator, err := container.GetBatchOrchestrator()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get batch orchestrator")
	}

	questionService, err := container.GetQuestionService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get question service")
	}

	// Use the router factory
	router := handlers.NewRouter(
		container.GetConfig(),
		ocrService,
		batchOrchestrator,
		questionService,
		container.GetLogger(),
	)

	return &Application{
		container: container,
		router:    router,
		server: &http.Server{
			Addr:              ":" + container.GetConfig().Server.Port,
			Handler:           router,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
	}, nil
}

// Run serves HTTP until the server stops. A graceful Shutdown makes Run
// return nil.
func (a *Application) Run() error {
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return contextutils.WrapError(err, "server failed")
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the services
func (a *Application) Shutdown(ctx context.Context) error {
	serverErr := a.server.Shutdown(ctx)
	if err := a.container.Shutdown(ctx); err != nil {
		return err
	}
	if serverErr != nil {
		return contextutils.WrapError(serverErr, "failed to stop HTTP server")
	}
	return nil
}

func main() {
	ctx := context.Background()

	// Setup graceful shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.OpenTelemetry.ServiceVersion = version.Version

	// Setup observability (tracing/metrics/logging)
	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "learnapp-server", cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if sdkTP, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			if err := sdkTP.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
		_ = logger.Sync()
	}()

	logger.Info(ctx, "Starting learning support API", map[string]interface{}{
		"port":        cfg.Server.Port,
		"logLevel":    cfg.Server.LogLevel,
		"ai_provider": cfg.AI.Provider,
		"version":     version.Version,
		"commit":      version.Commit,
	})

	// Initialize dependency injection container
	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	// Create application instance
	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		os.Exit(1)
	}

	// Start application in a goroutine
	appErr := make(chan error, 1)
	go func() {
		if err := app.Run(); err != nil {
			appErr <- err
		}
	}()

	// Wait for shutdown signal or application error
	select {
	case sig := <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, shutting down gracefully", map[string]interface{}{"signal": sig.String()})
	case err := <-appErr:
		logger.Error(ctx, "Application failed", err, nil)
		_ = container.Shutdown(ctx)
		os.Exit(1)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during application shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info(ctx, "Shutdown completed successfully", nil)
}
