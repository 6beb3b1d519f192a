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

	"github.com/gin-gonic/gin"
	"github.com/lexatlas/legalrisk/analyzer"
	"github.com/lexatlas/legalrisk/config"
	"github.com/lexatlas/legalrisk/handler"
	"github.com/lexatlas/legalrisk/middleware"
	"github.com/lexatlas/legalrisk/pkg/logger"
	"github.com/lexatlas/legalrisk/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Initialize document store
	store, err := newStore(cfg)
	if err != nil {
		slog.Error("failed to initialize document store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Object storage is optional: without it only TXT uploads are accepted
	var minioSvc *service.MinioService
	if cfg.Minio.Endpoint != "" {
		minioSvc, err = service.NewMinioService(&cfg.Minio)
		if err != nil {
			slog.Error("failed to initialize MINIO service", "error", err)
			os.Exit(1)
		}
		if err := minioSvc.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure MINIO bucket", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("object storage not configured, only TXT uploads are supported")
	}

	// Analysis components
	detector := analyzer.NewDetector(analyzer.DefaultRuleSet())

	scenarios := cfg.Scenarios
	if len(scenarios) == 0 {
		scenarios = analyzer.DefaultScenarios()
	}
	simulator := analyzer.NewSimulator(scenarios)

	// Extraction is optional for the same reason as object storage
	var provider service.TextProvider
	var extractorSvc *service.ExtractorService
	if cfg.Extractor.APIURL != "" {
		extractorSvc = service.NewExtractorService(&cfg.Extractor)
		provider = service.NewExtractorTextProvider(extractorSvc, store)
	}

	// The runner and the simulation endpoint share one cache so re-runs
	// evict the entries of the clauses they replace
	simCache := service.NewSimulationCache()
	runner := service.NewPipelineRunner(store, detector, provider).WithSimulationCache(simCache)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	documentHandler := handler.NewDocumentHandler(store, minioSvc, runner)
	scenarioHandler := handler.NewScenarioHandler(store, simulator, simCache)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())     // Request ID for tracing
	router.Use(middleware.Recovery())      // Panic recovery
	router.Use(middleware.RequestLogger()) // Access logging
	router.Use(corsMiddleware())           // CORS
	router.Use(middleware.RateLimit(middleware.LimitPolicy{Requests: 100, Window: time.Minute}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
		if extractorSvc != nil {
			callbackHandler := handler.NewCallbackHandler(extractorSvc, store, runner)
			api.POST("/extractor/callback", callbackHandler.HandleCallback)
		}
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		// Upload and re-processing kick off pipeline runs; they get a
		// tighter per-tenant budget than the read endpoints
		heavyLimit := middleware.RateLimit(middleware.LimitPolicy{Requests: 10, Window: time.Minute})

		protected.POST("/documents/upload", heavyLimit, documentHandler.Upload)
		protected.GET("/documents", documentHandler.List)
		protected.GET("/documents/:id", documentHandler.Get)
		protected.GET("/documents/:id/status", documentHandler.GetStatus)
		protected.DELETE("/documents/:id", documentHandler.Delete)
		protected.POST("/documents/:id/process", heavyLimit, documentHandler.Process)
		protected.GET("/documents/:id/clauses", documentHandler.GetClauses)
		protected.GET("/documents/:id/risk", documentHandler.GetRisk)
		protected.GET("/documents/:id/summary", documentHandler.GetSummary)
		protected.GET("/documents/:id/runs", documentHandler.GetRuns)

		protected.GET("/scenarios", scenarioHandler.ListScenarios)
		protected.POST("/clauses/:id/simulate", scenarioHandler.Simulate)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// newStore selects the document store implementation from configuration.
func newStore(cfg *config.Config) (service.DocumentStore, error) {
	switch cfg.Store.Driver {
	case "memory":
		return service.NewMemoryStore(&cfg.Store), nil
	case "sqlite", "":
		return service.NewSQLiteStore(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
