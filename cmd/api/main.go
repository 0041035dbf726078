package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pixelforge/backend/internal/config"
	"github.com/pixelforge/backend/internal/database"
	"github.com/pixelforge/backend/internal/handlers"
	"github.com/pixelforge/backend/internal/middleware"
	"github.com/pixelforge/backend/internal/models"
	"github.com/pixelforge/backend/internal/provider"
	"github.com/pixelforge/backend/internal/quota"
	"github.com/pixelforge/backend/internal/services"
	"github.com/pixelforge/backend/internal/storage"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database and Redis
	conns, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conns.Close()

	// Run migrations
	if err := models.AutoMigrate(conns.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed admin account if not exists
	seedAdminAccount(conns.DB)

	// Core components, constructed once and injected
	ledger := quota.NewLedger(conns.DB, conns.Redis)

	providerClient := provider.NewClient(provider.Config{
		BaseURL: cfg.ProviderURL,
		APIKey:  cfg.ProviderAPIKey,
		Timeout: cfg.ProviderTimeout,
	})

	store, err := storage.NewStore(storage.Config{
		Root:           cfg.StorageRoot,
		PublicBaseURL:  cfg.PublicBaseURL,
		StaticWritable: cfg.StaticWritable,
	})
	if err != nil {
		log.Fatalf("Failed to initialize asset store: %v", err)
	}

	// Start asset eviction service (sweeps expired ephemeral assets)
	evictionService := services.NewEvictionService(store, cfg.AssetTTL, 15*time.Minute)
	evictionService.Start()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "PixelForge API v1.0",
		ServerHeader: "PixelForge",
		BodyLimit:    10 * 1024 * 1024, // 10MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "pixelforge-api",
		})
	})

	// Serve the static roots directly when the deployment allows it;
	// proxy-only deployments rely on the /api/assets endpoint instead
	if cfg.StaticWritable {
		app.Static("/uploads", cfg.StorageRoot)
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg, conns.DB)
	transformHandler := handlers.NewTransformHandler(providerClient, store, ledger, cfg.EnforceQuota)
	assetHandler := handlers.NewAssetHandler(store)
	quotaHandler := handlers.NewQuotaHandler(ledger)

	// API routes
	api := app.Group("/api")

	// Apply rate limiting to API routes (100 requests per minute by default)
	api.Use(middleware.RateLimiter(100, 1*time.Minute))

	// Public routes
	api.Post("/auth/login", authHandler.Login)
	api.Get("/assets", assetHandler.Serve)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired(cfg, conns.DB))

	protected.Get("/auth/me", authHandler.Me)
	protected.Post("/images/enhance", transformHandler.Enhance)
	protected.Post("/images/remove-background", transformHandler.RemoveBackground)
	protected.Get("/quota", quotaHandler.Get)

	// Internal quota surface (Admin only)
	protected.Post("/quota/credit", middleware.AdminOnly(), quotaHandler.Credit)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		evictionService.Stop()
		app.Shutdown()
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Printf("Starting PixelForge API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func seedAdminAccount(db *gorm.DB) {
	var count int64
	db.Model(&models.Account{}).Where("is_admin = ?", true).Count(&count)

	if count == 0 {
		log.Println("Creating default admin account...")

		apiKey := os.Getenv("ADMIN_API_KEY")
		if apiKey == "" {
			apiKey = "changeme-admin-key"
			log.Println("WARNING: ADMIN_API_KEY not set - using insecure default!")
		}

		hashedKey, _ := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)

		admin := models.Account{
			Name:       "System Administrator",
			Email:      "admin@pixelforge.local",
			APIKeyHash: string(hashedKey),
			IsAdmin:    true,
			IsActive:   true,
		}

		if err := db.Create(&admin).Error; err != nil {
			log.Printf("Failed to create admin account: %v", err)
		} else {
			log.Println("Admin account created successfully (email: admin@pixelforge.local)")
		}
	}
}
