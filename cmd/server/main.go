package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"sekolah_app_echo/internal/handlers"
	appMiddleware "sekolah_app_echo/internal/middleware"
	"sekolah_app_echo/internal/services"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase (guards the admin endpoints)
	credPath := getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json")
	authClient, err := services.InitFirebase(context.Background(), credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Admin endpoints will reject requests until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize Redis (optional; poll caching degrades gracefully)
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	}

	// Payment core, wired once at startup and passed by reference
	serverKey := os.Getenv("MIDTRANS_SERVER_KEY")
	if serverKey == "" {
		log.Fatal("MIDTRANS_SERVER_KEY not set")
	}

	gateway := services.NewMidtransGateway(services.GatewayConfig{
		ServerKey:  serverKey,
		Production: os.Getenv("MIDTRANS_IS_PRODUCTION") == "true",
		Timeout:    30 * time.Second,
	})

	catalog := services.NewFeeCatalog(
		getEnvInt64("MIN_TRANSACTION_AMOUNT", 10000),
		getEnvInt64("MAX_TRANSACTION_AMOUNT", 100000000),
	)

	builder := services.NewTransactionBuilder(services.BuilderConfig{
		OrderPrefix: getEnv("ORDER_PREFIX", "SCH"),
		FinishURL:   getEnv("APP_URL", "http://localhost:8080") + "/payment/finish",
	}, catalog)

	store := services.NewGormPaymentStore(db)
	webhooks := services.NewWebhookService(store, serverKey)
	payments := services.NewPaymentService(store, gateway, builder, catalog, webhooks, cache)
	billing := services.NewBillingService(db)

	// Create Echo instance
	e := echo.New()
	e.HTTPErrorHandler = appMiddleware.CustomErrorHandler

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(db, payments, catalog)
	webhookHandler := handlers.NewWebhookHandler(webhooks)
	billHandler := handlers.NewBillHandler(db, billing)

	// Public payment routes
	e.GET("/api/payments/methods", paymentHandler.ListMethods)
	e.POST("/api/payments", paymentHandler.CreatePayment)
	e.GET("/api/payments/:orderId", paymentHandler.GetPayment)
	e.GET("/api/payments/:orderId/status", paymentHandler.CheckStatus)

	// Gateway notification endpoint
	e.POST("/api/payments/notification", webhookHandler.HandleNotification)

	// Admin routes
	admin := e.Group("/api")
	admin.Use(appMiddleware.RequireAuth(authClient))
	admin.POST("/payments/:orderId/cancel", paymentHandler.Cancel)
	admin.POST("/payments/:orderId/refund", paymentHandler.Refund)
	admin.POST("/students", billHandler.CreateStudent)
	admin.GET("/students/:id/bills", billHandler.ListStudentBills)
	admin.POST("/bills", billHandler.CreateBill)
	admin.GET("/bills/:id", billHandler.GetBill)
	admin.POST("/billing/schedules", billHandler.CreateSchedule)
	admin.POST("/billing/generate", billHandler.GenerateBills)

	// Start server
	port := getEnv("PORT", "8080")
	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
