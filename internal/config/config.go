package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	ConnectTimeout time.Duration
	MaxOpenConns   int
	MaxIdleConns   int
}

func NewDatabaseConfig() *DatabaseConfig {
	port, _ := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	connectTimeout, _ := strconv.Atoi(getEnvOrDefault("DB_CONNECT_TIMEOUT", "5"))
	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "5"))

	return &DatabaseConfig{
		Host:           getEnvOrDefault("DB_HOST", "localhost"),
		Port:           port,
		User:           getEnvOrDefault("DB_USER", "postgres"),
		Password:       getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:           getEnvOrDefault("DB_NAME", "orders_db"),
		SSLMode:        getEnvOrDefault("DB_SSLMODE", "disable"),
		ConnectTimeout: time.Duration(connectTimeout) * time.Second,
		MaxOpenConns:   maxOpen,
		MaxIdleConns:   maxIdle,
	}
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, int(c.ConnectTimeout.Seconds()),
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
