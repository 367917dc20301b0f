package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ecommerce-pipeline/order-pipeline/internal/config"
	"github.com/ecommerce-pipeline/order-pipeline/internal/repository"
)

// dbtool provisions and inspects the pipeline's tables.
//
//	dbtool init   apply schema.sql (idempotent DDL plus seed stock)
//	dbtool check  print the orders and inventory tables
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	mode := "init"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	cfg := config.NewDatabaseConfig()
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("Database open error")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msgf("Database ping error (%s)", cfg.Host)
	}

	switch mode {
	case "init":
		err = runInit(db)
	case "check":
		err = runCheck(db)
	default:
		log.Fatal().Msgf("Unknown mode %q, expected init or check", mode)
	}

	if err != nil {
		log.Fatal().Err(err).Msgf("dbtool %s failed", mode)
	}
}

func runInit(db *sql.DB) error {
	schemaPath := getEnvOrDefault("SCHEMA_FILE", "schema.sql")

	script, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("schema file read error: %v", err)
	}

	for _, statement := range strings.Split(string(script), ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}

		if _, err := db.Exec(statement); err != nil {
			return fmt.Errorf("statement error (%.50s...): %v", statement, err)
		}
	}

	log.Info().Msg("Database tables and seed data created")
	return nil
}

func runCheck(db *sql.DB) error {
	ctx := context.Background()

	orders, err := repository.NewOrderRepository(db).List(ctx)
	if err != nil {
		return err
	}

	fmt.Println("=== ORDERS ===")
	if len(orders) == 0 {
		fmt.Println("No orders found.")
	}
	for _, order := range orders {
		processedAt := "-"
		if order.ProcessedAt != nil {
			processedAt = order.ProcessedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%s  %-10s  customer=%s  items=%d  processed_at=%s\n",
			order.OrderID, order.Status, order.CustomerID, len(order.Items), processedAt)
	}

	levels, err := repository.NewInventoryRepository(db).Snapshot(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\n=== INVENTORY ===")
	if len(levels) == 0 {
		fmt.Println("No inventory found.")
	}
	for _, level := range levels {
		fmt.Printf("%-10s  quantity_available=%d\n", level.ProductID, level.QuantityAvailable)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
