package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ecommerce-pipeline/order-pipeline/internal/gateway"
	"github.com/ecommerce-pipeline/order-pipeline/internal/httpx"
	"github.com/ecommerce-pipeline/order-pipeline/internal/messaging"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Info().Msg("Intake gateway starting...")

	rabbitConfig := messaging.NewRabbitMQConfig()
	rabbitClient := messaging.NewRabbitMQClient(rabbitConfig)

	if err := rabbitClient.Connect(); err != nil {
		log.Fatal().Err(err).Msg("RabbitMQ connection error")
	}
	defer rabbitClient.Close()

	publisher := messaging.NewPublisher(rabbitClient)
	service := gateway.NewService(publisher)
	handler := gateway.NewHandler(service)

	app := setupFiberApp()
	setupRoutes(app, handler)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Intake gateway closing...")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
		}
	}()

	port := getEnvOrDefault("PORT", "8001")
	log.Info().Msgf("Intake gateway listening on :%s", port)

	if err := app.Listen(":" + port); err != nil {
		log.Fatal().Err(err).Msg("Server start error")
	}
}

func setupFiberApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Intake Gateway v1.0",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} - ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))

	return app
}

func setupRoutes(app *fiber.App, handler *gateway.Handler) {
	api := app.Group("/api")

	api.Get("/health", handler.HealthCheck)
	api.Post("/orders", handler.CreateOrder)

	app.Use("*", func(c *fiber.Ctx) error {
		return httpx.NotFoundResponse(c, "Route not found")
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	log.Error().Err(err).Msg("Unhandled request error")

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
