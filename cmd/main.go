package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"filestore-service/internal/api/handlers"
	"filestore-service/internal/config"
	"filestore-service/internal/database/minio"
	"filestore-service/internal/database/mongo"
	"filestore-service/internal/database/redis"
	"filestore-service/internal/events"
	"filestore-service/internal/middleware"
	"filestore-service/internal/repository"
	"filestore-service/internal/service"
	"filestore-service/pkg/discovery"

	"github.com/gofiber/fiber/v3"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/var", "log", "filestore_service")
	err := os.MkdirAll(logDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

// ServiceContainer holds all service dependencies
type ServiceContainer struct {
	GrantRepository  *repository.GrantRepository
	ReviewRepository *repository.ReviewRepository
	FileRepository   *repository.FileRepository
	TagRepository    *repository.TagRepository
	ShareLinkRepo    *repository.ShareLinkRepository
	UserRepository   *repository.UserRepository
	OplogRepository  *repository.OperationLogRepository
	RedisRepository  *repository.RedisRepo
	ReviewService    *service.ReviewService
	FileService      *service.FileService
	TagService       *service.TagService
	ShareLinkService *service.ShareLinkService
	UserService      *service.UserService
	EventPublisher   events.Publisher
	EventConsumer    events.Consumer
	ServiceDiscovery *discovery.ServiceRegistry
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logging
	logFile, err := setupLogging()
	if err != nil {
		log.Printf("Warning: Failed to set up logging: %v", err)
	} else {
		defer logFile.Close()
	}

	// Initialize MongoDB
	if err := mongo.InitMongoDB(&cfg.MongoDB); err != nil {
		log.Fatalf("Failed to initialize MongoDB: %v", err)
	}
	defer mongo.CloseDB()

	// Initialize MinIO client
	if err := minio.InitMinioClient(&cfg.MinIO); err != nil {
		log.Fatalf("Failed to initialize MinIO client: %v", err)
	}

	// Initialize Redis
	if err := redis.InitRedis(&cfg.Redis); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer redis.CloseRedis()

	// Initialize repositories
	grantRepository := repository.NewGrantRepository()
	reviewRepository := repository.NewReviewRepository()
	fileRepository := repository.NewFileRepository()
	tagRepository := repository.NewTagRepository()
	shareLinkRepository := repository.NewShareLinkRepository()
	userRepository := repository.NewUserRepository()
	oplogRepository := repository.NewOperationLogRepository()
	redisRepository := repository.NewRedisRepo()

	// Initialize event publisher
	eventPublisher, err := events.NewEventPublisher(cfg.RabbitMQ.URI)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}
	defer eventPublisher.Close()

	// Initialize services
	directory := service.NewResourceDirectory(fileRepository, tagRepository)
	identities := service.NewIdentityResolver(userRepository)

	container := &ServiceContainer{
		GrantRepository:  grantRepository,
		ReviewRepository: reviewRepository,
		FileRepository:   fileRepository,
		TagRepository:    tagRepository,
		ShareLinkRepo:    shareLinkRepository,
		UserRepository:   userRepository,
		OplogRepository:  oplogRepository,
		RedisRepository:  redisRepository,
		ReviewService:    service.NewReviewService(grantRepository, reviewRepository, directory, identities, eventPublisher, cfg),
		FileService:      service.NewFileService(fileRepository, shareLinkRepository, grantRepository, redisRepository, eventPublisher, cfg),
		TagService:       service.NewTagService(tagRepository, fileRepository, grantRepository),
		ShareLinkService: service.NewShareLinkService(shareLinkRepository, fileRepository),
		UserService:      service.NewUserService(userRepository, redisRepository, grantRepository, eventPublisher, cfg),
		EventPublisher:   eventPublisher,
	}

	// Initialize event consumer
	eventConsumer, err := events.NewEventConsumer(cfg.RabbitMQ.URI, grantRepository)
	if err != nil {
		log.Printf("Warning: Failed to initialize event consumer: %v", err)
	} else {
		// Start the consumer
		if err := eventConsumer.Start(); err != nil {
			log.Printf("Warning: Failed to start event consumer: %v", err)
			eventConsumer.Close()
		} else {
			log.Println("Successfully started event consumer")
			container.EventConsumer = eventConsumer
			// Ensure consumer is closed when application exits
			defer eventConsumer.Close()
		}
	}

	// Initialize service discovery
	serviceRegistry, err := discovery.NewServiceRegistry(
		cfg.Consul.Address,
		cfg.Server.ServiceName,
		cfg.Server.ServiceID,
		cfg.Server.Port,
	)
	if err != nil {
		log.Printf("Warning: Failed to initialize service discovery: %v", err)
	} else {
		container.ServiceDiscovery = serviceRegistry
		// Register with Consul
		if err := serviceRegistry.Register(); err != nil {
			log.Printf("Warning: Failed to register with Consul: %v", err)
		} else {
			log.Println("Successfully registered with Consul")
			// Ensure service is deregistered when application exits
			defer serviceRegistry.Deregister()
		}
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Use(middleware.Maintenance(redisRepository))
	app.Use(middleware.OperationLog(oplogRepository))

	// Set up routes
	app.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Filestore Service is healthy")
	})

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	doneChan := make(chan bool, 1)

	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize handlers
	reviewHandler := handlers.NewReviewHandler(container.ReviewService)
	fileHandler := handlers.NewFileHandler(container.FileService, container.ReviewService, cfg.Server.MaxUploadSize)
	tagHandler := handlers.NewTagHandler(container.TagService, container.ReviewService)
	shareLinkHandler := handlers.NewShareLinkHandler(container.ShareLinkService)
	authHandler := handlers.NewAuthHandler(container.UserService)
	adminHandler := handlers.NewAdminHandler(container.OplogRepository, container.RedisRepository)

	// Register routes
	reviewHandler.RegisterRoutes(app)
	fileHandler.RegisterRoutes(app)
	tagHandler.RegisterRoutes(app)
	shareLinkHandler.RegisterRoutes(app)
	authHandler.RegisterRoutes(app)
	adminHandler.RegisterRoutes(app)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := app.Listen(fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
		doneChan <- true
	}()

	<-shutdownChan
	log.Println("Shutting down server...")

	// Create a deadline context for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	<-doneChan
	log.Println("Server exited, goodbye!")
}
