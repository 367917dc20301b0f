package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ecommerce-pipeline/order-pipeline/internal/httpx"
	"github.com/ecommerce-pipeline/order-pipeline/internal/messaging"
	"github.com/ecommerce-pipeline/order-pipeline/internal/notifier"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Info().Msg("Notification dispatcher starting...")

	rabbitConfig := messaging.NewRabbitMQConfig()
	rabbitClient := messaging.NewRabbitMQClient(rabbitConfig)

	if err := rabbitClient.Connect(); err != nil {
		log.Fatal().Err(err).Msg("RabbitMQ connection error")
	}
	defer rabbitClient.Close()

	handler := notifier.NewHandler(notifier.NewService())

	workers, _ := strconv.Atoi(getEnvOrDefault("WORKER_COUNT", "2"))
	consumer := messaging.NewConsumer(
		rabbitClient,
		getEnvOrDefault("ORDER_PROCESSED_QUEUE", "notification-queue"),
		"notification-dispatcher",
		workers,
	)

	if err := consumer.Consume([]string{messaging.RoutingKeyOrderProcessed}, handler.HandleDelivery); err != nil {
		log.Fatal().Err(err).Msg("Consumer start error")
	}

	app := fiber.New(fiber.Config{AppName: "Notification Dispatcher v1.0"})
	app.Use(recover.New())
	app.Get("/api/health", func(c *fiber.Ctx) error {
		return httpx.SuccessResponse(c, "Notification dispatcher is healthy", map[string]interface{}{
			"service": "notification-dispatcher",
			"status":  "healthy",
		})
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Notification dispatcher closing...")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
		}
	}()

	port := getEnvOrDefault("PORT", "8003")
	log.Info().Msgf("Notification dispatcher listening on :%s", port)

	if err := app.Listen(":" + port); err != nil {
		log.Fatal().Err(err).Msg("Server start error")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
