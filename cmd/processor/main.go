package main

import (
	"database/sql"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ecommerce-pipeline/order-pipeline/internal/config"
	"github.com/ecommerce-pipeline/order-pipeline/internal/engine"
	"github.com/ecommerce-pipeline/order-pipeline/internal/httpx"
	"github.com/ecommerce-pipeline/order-pipeline/internal/messaging"
	"github.com/ecommerce-pipeline/order-pipeline/internal/repository"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Info().Msg("Order processor starting...")

	db, err := initDatabase(config.NewDatabaseConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection error")
	}
	defer db.Close()

	rabbitConfig := messaging.NewRabbitMQConfig()
	rabbitClient := messaging.NewRabbitMQClient(rabbitConfig)

	if err := rabbitClient.Connect(); err != nil {
		log.Fatal().Err(err).Msg("RabbitMQ connection error")
	}
	defer rabbitClient.Close()

	publisher := messaging.NewPublisher(rabbitClient)

	orders := repository.NewOrderRepository(db)
	inventory := repository.NewInventoryRepository(db)
	eng := engine.New(db, orders, inventory, publisher)
	handler := engine.NewHandler(eng)

	workers, _ := strconv.Atoi(getEnvOrDefault("WORKER_COUNT", "4"))
	consumer := messaging.NewConsumer(
		rabbitClient,
		getEnvOrDefault("ORDER_CREATED_QUEUE", "order-processor-queue"),
		"order-processor",
		workers,
	)

	if err := consumer.Consume([]string{messaging.RoutingKeyOrderCreated}, handler.HandleDelivery); err != nil {
		log.Fatal().Err(err).Msg("Consumer start error")
	}

	app := fiber.New(fiber.Config{AppName: "Order Processor v1.0"})
	app.Use(recover.New())
	app.Get("/api/health", func(c *fiber.Ctx) error {
		return httpx.SuccessResponse(c, "Order processor is healthy", map[string]interface{}{
			"service": "order-processor",
			"status":  "healthy",
		})
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Order processor closing...")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
		}
	}()

	port := getEnvOrDefault("PORT", "8002")
	log.Info().Msgf("Order processor listening on :%s", port)

	if err := app.Listen(":" + port); err != nil {
		log.Fatal().Err(err).Msg("Server start error")
	}
}

// initDatabase opens the pooled connection shared by all workers; each
// message still runs in its own transaction.
func initDatabase(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	log.Info().Msgf("Database connection established: %s", cfg.Name)
	return db, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
