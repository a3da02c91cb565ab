package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"lifelog/internal/handlers"
	"lifelog/internal/middleware"
	"lifelog/internal/models"
	"lifelog/internal/repositories"
	"lifelog/internal/services"
	"lifelog/pkg/imagestore"
	"lifelog/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DATABASE_URL", "host=localhost user=lifelog password=lifelog dbname=lifelog port=5432 sslmode=disable")
	viper.SetDefault("JWT_SECRET", "change_me_in_production")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.SetDefault("CORS_ORIGIN", "http://localhost:5173")
	viper.SetDefault("S3_ENDPOINT", "http://localhost:9000")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("S3_BUCKET", "lifelog-images")
	viper.SetDefault("S3_ACCESS_KEY", "minioadmin")
	viper.SetDefault("S3_SECRET_KEY", "minioadmin")
	viper.SetDefault("S3_PUBLIC_URL", "")
	viper.AutomaticEnv()

	appPort := viper.GetString("APP_PORT")

	// --- Database ---
	db, err := gorm.Open(postgres.Open(viper.GetString("DATABASE_URL")), &gorm.Config{
		TranslateError: true, // unique violations surface as gorm.ErrDuplicatedKey
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Entry{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- Image store ---
	imageStore, err := imagestore.NewS3Store(context.Background(), imagestore.S3Config{
		Endpoint:      viper.GetString("S3_ENDPOINT"),
		Region:        viper.GetString("S3_REGION"),
		Bucket:        viper.GetString("S3_BUCKET"),
		AccessKey:     viper.GetString("S3_ACCESS_KEY"),
		SecretKey:     viper.GetString("S3_SECRET_KEY"),
		PublicBaseURL: viper.GetString("S3_PUBLIC_URL"),
		Timeout:       10 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to initialize image store: %v", err)
	}

	// --- RabbitMQ (optional) ---
	// Journal events are best-effort; without a broker the API still works.
	var mqClient *rabbitmq.Client
	if mqURL := viper.GetString("RABBITMQ_URL"); mqURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: mqURL})
		if err != nil {
			log.Printf("Warning: RabbitMQ unavailable, journal events disabled: %v", err)
			mqClient = nil
		} else {
			defer mqClient.Close()
		}
	}

	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(db)
	entryRepo := repositories.NewGORMEntryRepository(db)

	// --- Services ---
	authService := services.NewAuthService(userRepo, imageStore, viper.GetString("JWT_SECRET"))
	entryService := services.NewEntryService(entryRepo, imageStore, mqClient)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	entryHandler := handlers.NewEntryHandler(entryService)

	// --- Fiber app ---
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // image payloads arrive base64-encoded in the body
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     viper.GetString("CORS_ORIGIN"),
		AllowCredentials: true,
	}))

	// --- API routes ---
	api := app.Group("/api")
	guard := middleware.SessionGuard(authService)
	authHandler.RegisterRoutes(api, guard)
	entryHandler.RegisterRoutes(api, guard)

	// --- Health check ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Journal event consumer ---
	if mqClient != nil {
		go func() {
			log.Println("Starting journal event consumer...")
			err := mqClient.ConsumeEntryEvents(func(msg amqp.Delivery) error {
				log.Printf("Journal event (tag %d): %s", msg.DeliveryTag, string(msg.Body))
				return nil
			})
			if err != nil {
				log.Printf("Failed to start journal event consumer: %v", err)
			}
		}()
	}

	// --- Start HTTP server ---
	log.Printf("Starting server on %s", appPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}
