// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"io"
	"sync"

	"learnapp/internal/config"
	"learnapp/internal/observability"
	"learnapp/internal/services"
	contextutils "learnapp/internal/utils"
)

// Service names registered in the container
const (
	ServiceGateway      = "gateway"
	ServicePreprocessor = "preprocessor"
	ServicePrompts      = "prompts"
	ServiceOCR          = "ocr"
	ServiceBatch        = "batch"
	ServiceQuestion     = "question"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetGateway() (services.AIGateway, error)
	GetOCRService() (services.OCRServiceInterface, error)
	GetBatchOrchestrator() (services.BatchOrchestratorInterface, error)
	GetQuestionService() (services.QuestionServiceInterface, error)
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Option customizes a ServiceContainer before Initialize.
type Option func(*ServiceContainer)

// WithGateway makes the container use gw instead of building one from config.
func WithGateway(gw services.AIGateway) Option {
	return func(sc *ServiceContainer) {
		sc.gateway = gw
	}
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	gateway       services.AIGateway
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger, opts ...Option) *ServiceContainer {
	sc := &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return err
	}
	sc.logger.Info(ctx, "Services initialized", map[string]interface{}{
		"ai_provider": sc.gateway.Name(),
		"ai_model":    sc.cfg.AI.Model,
	})
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(ctx context.Context) error {
	if sc.gateway == nil {
		gw, err := services.NewAIGateway(ctx, sc.cfg, sc.logger)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to initialize AI gateway")
		}
		sc.gateway = gw
		sc.logger.Info(ctx, "AI gateway initialized", map[string]interface{}{
			"provider": gw.Name(),
			"model":    sc.cfg.AI.Model,
			"api_key":  contextutils.MaskAPIKey(sc.cfg.AI.APIKey),
		})
	}
	if closer, ok := sc.gateway.(io.Closer); ok {
		sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
			return closer.Close()
		})
	}
	sc.services[ServiceGateway] = sc.gateway

	prompts, err := services.NewPromptBuilder()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to load prompt templates")
	}
	sc.services[ServicePrompts] = prompts

	p := sc.cfg.Pipeline
	preprocessor := services.NewImagePreprocessor(p.MaxImageDimension, p.JPEGQuality, p.MaxDecodePixels)
	sc.services[ServicePreprocessor] = preprocessor

	// OCR service depends on the gateway, prompts and preprocessor
	ocrService := services.NewOCRService(sc.gateway, prompts, preprocessor, sc.cfg, sc.logger)
	sc.services[ServiceOCR] = ocrService

	// Batch orchestrator reuses the OCR service for each group
	sc.services[ServiceBatch] = services.NewBatchOrchestrator(ocrService, preprocessor, p.BatchSize, p.BatchDelay, sc.logger)

	questionService, err := services.NewQuestionService(sc.gateway, prompts, sc.cfg, sc.logger)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize question service")
	}
	sc.services[ServiceQuestion] = questionService
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetGateway returns the AI gateway
func (sc *ServiceContainer) GetGateway() (services.AIGateway, error) {
	return GetServiceAs[services.AIGateway](sc, ServiceGateway)
}

// GetOCRService returns the OCR service
func (sc *ServiceContainer) GetOCRService() (services.OCRServiceInterface, error) {
	return GetServiceAs[services.OCRServiceInterface](sc, ServiceOCR)
}

// GetBatchOrchestrator returns the batch orchestrator
func (sc *ServiceContainer) GetBatchOrchestrator() (services.BatchOrchestratorInterface, error) {
	return GetServiceAs[services.BatchOrchestratorInterface](sc, ServiceBatch)
}

// GetQuestionService returns the question service
func (sc *ServiceContainer) GetQuestionService() (services.QuestionServiceInterface, error) {
	return GetServiceAs[services.QuestionServiceInterface](sc, ServiceQuestion)
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup runs the shutdown functions in reverse order of registration
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Failed to shutdown service", err)
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}
