package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"philosofium/backend/catalog"
	"philosofium/backend/config"
	"philosofium/backend/events"
	"philosofium/backend/middleware"
	"philosofium/backend/progress"
	"philosofium/backend/routes"
	"philosofium/backend/scheduler"
	"philosofium/backend/storage"
	"philosofium/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(cfg.LogMode)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := utils.InitDB(cfg)
	if err != nil {
		logger.Fatal("Error initializing database", "error", err)
	}

	store, closeStore, err := storage.Open(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal("Error initializing progress store", "backend", cfg.StoreBackend, "error", err)
	}
	defer closeStore()

	var opts []progress.Option
	if cfg.RedisAddr != "" {
		pub, err := events.NewRedisPublisher(cfg.RedisAddr, cfg.RedisChannel, logger)
		if err != nil {
			logger.Warn("progress events disabled", "error", err)
		} else {
			defer pub.Close()
			opts = append(opts, progress.WithPublisher(pub))
		}
	}

	courses := catalog.New(db, logger)
	svc := progress.NewService(store, courses, logger, opts...)

	sched := scheduler.New(svc, cfg.ReconcileInterval, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("Error starting scheduler", "error", err)
	}
	defer sched.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.LoggingMiddleware(logger))

	// Setup routes
	routes.SetupRoutes(app, db, cfg, courses, svc, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	// Start server
	logger.Info("server starting", "port", cfg.ServerPort, "store", cfg.StoreBackend)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logger.Error("server stopped", "error", err)
	}
}
