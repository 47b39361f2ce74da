// Package main is the entry point for the fraud scoring service.
// It initializes all dependencies, starts the stream consumer as a
// background task, and serves the HTTP API until shutdown.
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

	"fraudsentry/internal/config"
	"fraudsentry/internal/handlers"
	"fraudsentry/internal/repositories"
	"fraudsentry/internal/routes"
	"fraudsentry/internal/services/broadcaster"
	"fraudsentry/internal/services/mlmodel"
	"fraudsentry/internal/services/processor"
	"fraudsentry/internal/services/rules"
	"fraudsentry/internal/services/scorer"
	"fraudsentry/internal/stream"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer repositories.CloseDB()

	scoringCfg := config.LoadScoring()
	kafkaCfg := config.LoadKafka()

	// The model is loaded once into an immutable handle. A missing
	// artifact starts the service in degraded mode; scoring falls back
	// to rules only.
	model := mlmodel.New()
	if err := model.Load(scoringCfg.ModelPath); err != nil {
		log.Printf("starting in degraded mode, no ML model: %v", err)
	} else {
		log.Printf("ML model %s loaded", model.Version())
	}

	hybridScorer := scorer.New(rules.NewEngine(), model, scoringCfg)

	alertBroadcaster := broadcaster.New(config.LoadBroadcast())
	defer alertBroadcaster.Close()

	producer := stream.NewProducer(kafkaCfg)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Printf("failed to close producer: %v", err)
		}
	}()

	repo := repositories.NewAssessmentRepository(repositories.DB)
	proc := processor.New(
		repo,
		hybridScorer,
		producer,
		alertBroadcaster,
		repositories.CacheService,
		repositories.CacheService,
		processor.Config{
			VelocityWindow: config.GetDurationEnv("VELOCITY_WINDOW", 24*time.Hour),
			VelocityLimit:  int64(config.GetIntEnv("VELOCITY_LIMIT", rules.DefaultVelocityLimit)),
		},
	)

	consumer := stream.NewConsumer(kafkaCfg, proc)
	consumer.Start(context.Background())
	defer consumer.Stop()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET,POST,HEAD",
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.Setup(app, routes.Deps{
		Transactions: handlers.NewTransactionHandler(proc),
		Status:       handlers.NewStatusHandler(model, consumer, alertBroadcaster),
		AlertSocket:  handlers.NewAlertSocketHandler(alertBroadcaster),
	})

	// Serve until SIGINT/SIGTERM, then let the deferred teardown stop
	// the consumer, broadcaster and connections in order.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("shutting down")
		if err := app.Shutdown(); err != nil {
			log.Printf("server shutdown error: %v", err)
		}
	}()

	if err := app.Listen(":" + config.GetEnv("PORT", "8000")); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
