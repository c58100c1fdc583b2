package handlers

import (
	"net/http"

	"learnapp/internal/cachepolicy"
	"learnapp/internal/config"
	"learnapp/internal/middleware"
	"learnapp/internal/observability"
	"learnapp/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// NewRouter creates the gin engine with every middleware and route of the
// learning support API.
func NewRouter(
	cfg *config.Config,
	ocrService services.OCRServiceInterface,
	batchOrchestrator services.BatchOrchestratorInterface,
	questionService services.QuestionServiceInterface,
	logger *observability.Logger,
) *gin.Engine {
	// Setup Gin mode
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}
	if cfg.IsTest {
		gin.SetMode(gin.TestMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = config.MultipartMemory

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RequestLoggingMiddleware(logger))

	// Add OpenTelemetry middleware for HTTP tracing and context propagation
	router.Use(observability.GinMiddleware(ServiceName))
	router.Use(observability.SpanErrorMiddleware())

	// Setup CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	router.Use(cors.New(corsConfig))

	// Security middleware
	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = cfg.Server.Debug || cfg.IsTest
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	router.Use(cachepolicy.Middleware())
	router.Use(middleware.ErrorHandlingMiddleware(logger, middleware.NewErrorRecoveryConfig(cfg.Server.CircuitBreaker)))

	// Initialize handlers
	routeListing := NewRouteListingHandler()
	systemHandler := NewSystemHandler(cfg, routeListing)
	uploadHandler := NewUploadHandler(ocrService, batchOrchestrator, cfg, logger)
	questionHandler := NewQuestionHandler(questionService, cfg, logger)

	router.GET("/health", systemHandler.Health)
	router.GET("/", systemHandler.APIInfo)

	api := router.Group("/api")
	{
		api.GET("", systemHandler.APIInfo)

		upload := api.Group("/upload")
		{
			upload.POST("", uploadHandler.UploadImage)
			upload.POST("/multiple", uploadHandler.UploadMultiple)
			upload.POST("/batch", uploadHandler.UploadBatch)
			upload.POST("/test-ocr", middleware.RequestValidationMiddleware(logger), uploadHandler.TestOCR)
		}

		questions := api.Group("/questions")
		{
			questions.POST("/generate", middleware.RequestValidationMiddleware(logger), questionHandler.GenerateQuestions)
			questions.GET("/config", questionHandler.GetConfig)
			questions.GET("/sample/:subject", questionHandler.GetSample)
		}
	}

	router.NoRoute(systemHandler.NotFound)

	routeListing.CollectRoutes(router)

	return router
}
