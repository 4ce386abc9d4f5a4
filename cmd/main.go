package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"persona-knowledge-engine/internal/ai"
	"persona-knowledge-engine/internal/config"
	"persona-knowledge-engine/internal/logger"
	"persona-knowledge-engine/internal/store"
	"persona-knowledge-engine/internal/telemetry"
	"persona-knowledge-engine/middleware"
	"persona-knowledge-engine/routes"
	"persona-knowledge-engine/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Tracing is opt-in; the collector endpoint may not exist in dev
	if cfg.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracer("persona-knowledge-engine", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Failed to initialize tracing", "error", err)
		} else {
			defer shutdownTracer()
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Failed to initialize metrics", "error", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Redis is optional: without it the query-embedding cache and the HTTP
	// rate limiter are disabled, everything else keeps working.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without cache and rate limiting", "error", err)
		rdb = nil
	}

	embedder, err := ai.NewGoogleEmbedder(cfg)
	if err != nil {
		log.Fatal("Failed to initialize embeddings client:", err)
	}
	defer embedder.Close()
	if !embedder.Available() {
		logger.Warn("GEMINI_API_KEY not set: ingestion and search will be rejected until configured")
	}

	knowledgeStore := store.NewMongoStore(mongoClient.Database(cfg.DBName))
	cache := services.NewEmbeddingCache(rdb, time.Duration(cfg.CacheTTLSecs)*time.Second)
	files := services.NewFileStorageManager(cfg)
	svc := services.NewKnowledgeService(cfg, knowledgeStore, embedder, cache, files, metrics)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Setup routes
	routes.SetupKnowledgeRoutes(router, cfg, svc)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
