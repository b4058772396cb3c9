package main

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	version, err := repository.RunMigrations(db)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("database schema ready", "version", version)

	postRepo := repository.NewPostRepository(db)
	queueRepo := repository.NewQueueRepository(db, postRepo)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	apiKeyRepository := repository.NewApiKeyRepository(db)

	r2Service, err := service.NewR2Service(*cfg)
	if err != nil {
		log.Fatalf("Failed to configure object storage: %v", err)
	}
	instagramService := service.NewInstagramService(*cfg)
	mediaService := service.NewMediaService(*cfg, service.NewRapidAPIResolver(*cfg))
	publishService := service.NewPublishService(*cfg, instagramService)
	automationService := service.NewAutomationService(*cfg, queueRepo, socialAccountRepo, mediaService, r2Service, publishService)
	apiKeyService := service.NewApiKeyService(apiKeyRepository)

	// Nudges are optional; without Redis the periodic trigger alone drives the queue.
	var (
		nudger      service.Nudger
		asynqClient *asynq.Client
		asynqServer *asynq.Server
	)
	if cfg.RedisURI != "" {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		asynqClient = asynq.NewClient(redisConn)
		nudger = queue.NewNudger(asynqClient)

		queueW := queue.NewQueue(automationService)
		asynqServer = asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 1,
		})
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeProcessQueue, queueW.HandleProcessQueueTask)

		go func() {
			log.Println("Starting the Asynq server...")
			if err := asynqServer.Run(mux); err != nil {
				log.Fatalf("Could not start Asynq server: %v", err)
			}
		}()
	}

	scheduleService := service.NewScheduleService(*cfg, queueRepo, socialAccountRepo, nudger)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	automation := handlers.NewAutomationHandler(automationService)
	cron := app.Group("/api/cron", middleware.CronAuth(cfg.CronSecret))
	cron.Get("/process", automation.Process)
	cron.Post("/process", automation.Process)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)
	api := app.Group("/api/queue", authMiddleware.AuthMiddleware())

	queueHandler := handlers.NewQueueHandler(scheduleService)
	api.Post("/", queueHandler.Schedule)
	api.Post("/bulk", queueHandler.BulkSchedule)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, db, asynqClient, asynqServer)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB, client *asynq.Client, server *asynq.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	// In-flight cycles finish before the store goes away.
	if err := app.ShutdownWithTimeout(5 * time.Minute); err != nil {
		log.Printf("Failed to shut down server: %v", err)
	}
	if server != nil {
		server.Shutdown()
	}
	if client != nil {
		client.Close()
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
