package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/trungle-dev/relaychat/internal/config"
	"github.com/trungle-dev/relaychat/internal/handler"
	"github.com/trungle-dev/relaychat/internal/middleware"
	"github.com/trungle-dev/relaychat/internal/model"
	"github.com/trungle-dev/relaychat/internal/repository"
	"github.com/trungle-dev/relaychat/internal/service"
	"github.com/trungle-dev/relaychat/internal/ws"
	"github.com/trungle-dev/relaychat/migrations"
	"github.com/trungle-dev/relaychat/pkg/auth"
	"github.com/trungle-dev/relaychat/pkg/push"
	"github.com/trungle-dev/relaychat/pkg/storage"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// @title           RelayChat API
// @version         1.0
// @description     Conversation, message delivery and notification fan-out API with Go, Gin, PostgreSQL, Redis and FCM.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	log.Printf("🚀 Starting RelayChat API Server [env=%s]", cfg.App.Env)

	// ==================== Database (PostgreSQL) ====================
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.App.Env == "production" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true, // surface unique violations as gorm.ErrDuplicatedKey
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		log.Printf("⚠️  Migration warning: %v", err)
		log.Println("📦 Falling back to GORM AutoMigrate...")
		if err := db.AutoMigrate(
			&model.Conversation{},
			&model.ConversationMember{},
			&model.Message{},
			&model.MessageFile{},
			&model.Notification{},
			&model.NotificationRecipient{},
			&model.UserDevice{},
		); err != nil {
			log.Fatalf("❌ Failed to migrate database: %v", err)
		}
	}
	log.Println("✅ Database migrated successfully")

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// ==================== Initialize Layers ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Repositories
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)

	// Push dispatch (FCM). Disabled when credentials are absent; the
	// notification engine treats a nil dispatcher as no-push.
	fcm, err := push.NewFCM(cfg.Firebase.CredentialsFile, deviceRepo)
	if err != nil {
		log.Fatalf("❌ Failed to initialize FCM: %v", err)
	}
	var dispatcher push.Dispatcher
	if fcm != nil {
		dispatcher = fcm
	}

	// WebSocket hub (with Redis Pub/Sub for horizontal scaling)
	hub := ws.NewHub(rdb)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	// Services
	convService := service.NewConversationService(convRepo)
	notifService := service.NewNotificationService(notifRepo, dispatcher, hub, cfg.Push.Concurrency)
	msgService := service.NewMessageService(convService, msgRepo, notifService, hub)

	// MinIO attachment storage
	minioStorage, err := storage.NewMinIO(storage.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		PublicURL: cfg.MinIO.PublicURL,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		log.Printf("⚠️  MinIO not available: %v (file upload disabled)", err)
	}
	if minioStorage != nil {
		log.Println("✅ Connected to MinIO")
	}

	// Handlers
	convHandler := handler.NewConversationHandler(convService)
	msgHandler := handler.NewMessageHandler(msgService)
	notifHandler := handler.NewNotificationHandler(notifService)
	deviceHandler := handler.NewDeviceHandler(deviceRepo)
	uploadHandler := handler.NewUploadHandler(minioStorage)
	wsHandler := handler.NewWSHandler(hub, jwtManager)

	// ==================== Gin Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Swagger (served as a static file to avoid the /swagger/* wildcard conflict)
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	url := ginSwagger.URL("/docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, url))

	// Global middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.Origins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "relaychat-api",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// ==================== API Routes ====================
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtManager, rdb))
	{
		// Conversations
		api.POST("/conversations", convHandler.Create)
		api.GET("/conversations", convHandler.List)
		api.GET("/conversations/:id", convHandler.Get)
		api.PATCH("/conversations/:id", convHandler.Update)
		api.POST("/conversations/:id/members", convHandler.AddMember)
		api.DELETE("/conversations/:id/members/:userID", convHandler.RemoveMember)
		api.POST("/conversations/:id/block", convHandler.BlockMember)
		api.DELETE("/conversations/:id/block/:userID", convHandler.UnblockMember)

		// Messages
		api.POST("/messages", msgHandler.Send)
		api.POST("/messages/:id/received", msgHandler.MarkReceived)
		api.POST("/messages/:id/read", msgHandler.MarkRead)
		api.GET("/messages/sent", msgHandler.ListSent)
		api.GET("/messages/received", msgHandler.ListReceived)

		// Notifications
		api.POST("/notifications", notifHandler.Notify)
		api.GET("/notifications", notifHandler.List)
		api.POST("/notifications/:id/read", notifHandler.MarkRead)
		api.GET("/notifications/undispatched", notifHandler.ListUndispatched)

		// Devices
		api.POST("/devices", deviceHandler.Register)

		// Upload
		api.POST("/upload", uploadHandler.UploadFile)
		api.POST("/upload/multiple", uploadHandler.UploadMultiple)
	}

	// WebSocket notification stream (auth via query parameter)
	router.GET("/ws", wsHandler.HandleWebSocket)

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	log.Printf("🌐 RelayChat API running on http://0.0.0.0:%s", cfg.App.Port)
	log.Printf("📋 API docs: http://0.0.0.0:%s/swagger/index.html", cfg.App.Port)
	log.Printf("🔌 Notification stream: ws://0.0.0.0:%s/ws?token=<jwt>", cfg.App.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	// Drain in-flight notification fan-outs before exiting
	notifService.Wait()
	hubCancel()
	log.Println("✅ Server exited gracefully")
}
