package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"autoreply-server/config"
	"autoreply-server/database"
	"autoreply-server/jobs"
	"autoreply-server/middleware"
	"autoreply-server/routes"
	"autoreply-server/services"
	ws "autoreply-server/websocket"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	config.Load()

	// Initialize database (runs migrations)
	if err := database.Initialize(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	if config.AppConfig.Server.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	// Security headers first, then rate limiting, then CORS
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RateLimitMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://app.autoreply.example"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	// Extension WebSocket hub: the dispatcher pushes reply_scheduled events
	// here so connected extensions pick up due replies without polling delay
	hub := ws.NewHub()
	go hub.Run()

	extensionWS := ws.NewExtensionHandler(hub)
	router.GET("/ws/extension", middleware.WebSocketAuthMiddleware(), extensionWS.HandleExtension)

	// Core services
	lockService := services.NewLockService()
	dispatcherService := services.NewDispatcherService(lockService, hub, config.AppConfig.Dispatcher.BatchSize)
	generatorService := services.NewGeneratorService(
		services.NewAIService(),
		services.NewSettingsService(),
		config.AppConfig.Dispatcher.GeneratorBatchSize,
	)
	syncService := services.NewSyncService(services.NewOzonService())

	routes.InitExtensionRoutes(dispatcherService)

	// API routes
	api := router.Group("/api/v1")
	{
		// Auth routes with strict rate limiting
		authRoutes := api.Group("/auth")
		authRoutes.Use(middleware.AuthRateLimitMiddleware())
		routes.RegisterAuthRoutes(authRoutes)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/me", routes.GetCurrentUser)

			routes.RegisterSettingsRoutes(protected)
			routes.RegisterMarketplaceRoutes(protected)
			routes.RegisterReviewRoutes(protected)
			routes.RegisterQuestionRoutes(protected)
			routes.RegisterReplyRoutes(protected)
			routes.RegisterKnowledgeRoutes(protected)
			routes.RegisterDashboardRoutes(protected)
			routes.RegisterExtensionRoutes(protected)
		}
	}

	// Start background jobs
	dispatcherJob := jobs.NewDispatcherJob(dispatcherService,
		time.Duration(config.AppConfig.Dispatcher.IntervalSeconds)*time.Second)
	dispatcherJob.Start()
	defer dispatcherJob.Stop()

	generatorJob := jobs.NewGeneratorJob(generatorService,
		time.Duration(config.AppConfig.Dispatcher.GeneratorIntervalSeconds)*time.Second)
	generatorJob.Start()
	defer generatorJob.Stop()

	syncJob := jobs.NewSyncJob(syncService,
		time.Duration(config.AppConfig.Dispatcher.SyncIntervalMinutes)*time.Minute)
	syncJob.Start()
	defer syncJob.Stop()

	// Daily cleanup of expired refresh tokens and stale reply locks
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		jwtService := services.NewJWTService()
		for range ticker.C {
			if err := jwtService.CleanupExpiredTokens(); err != nil {
				log.Printf("❌ Token cleanup failed: %v", err)
			}
			if err := lockService.CleanupExpired(); err != nil {
				log.Printf("❌ Reply lock cleanup failed: %v", err)
			}
		}
	}()

	port := config.AppConfig.Server.Port
	log.Printf("🚀 Server starting on port %s", port)
	if err := router.Run("0.0.0.0:" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
