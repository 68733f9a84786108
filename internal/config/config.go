package config

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/velora/storefront/internal/db"
	"github.com/velora/storefront/internal/models"
)

type Config struct {
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	JWT_SECRET    string
	KAFKA_ADDRESS string
	LOG_LEVEL     string

	PAYMENT_API_URL        string
	PAYMENT_ACCESS_TOKEN   string
	PAYMENT_PRODUCT_ID     string
	PAYMENT_WEBHOOK_SECRET string
	BASE_URL               string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		ES_URL:      os.Getenv("ES_URL"),
		ES_USER:     os.Getenv("ES_USER"),
		ES_PASSWORD: os.Getenv("ES_PASSWORD"),

		JWT_SECRET:    os.Getenv("JWT_SECRET"),
		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),
		LOG_LEVEL:     os.Getenv("LOG_LEVEL"),

		PAYMENT_API_URL:        os.Getenv("PAYMENT_API_URL"),
		PAYMENT_ACCESS_TOKEN:   os.Getenv("PAYMENT_ACCESS_TOKEN"),
		PAYMENT_PRODUCT_ID:     os.Getenv("PAYMENT_PRODUCT_ID"),
		PAYMENT_WEBHOOK_SECRET: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		BASE_URL:               os.Getenv("BASE_URL"),
	}

	return config, nil
}

func InitDB(ctx context.Context) (*gorm.DB, error) {
	configuration, _ := LoadConfig()

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		configuration.DB_USER, configuration.DB_PASSWORD,
		configuration.DB_HOST, configuration.DB_PORT, configuration.DB_NAME,
	)
	gormDB, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := gormDB.AutoMigrate(
		&models.Product{}, &models.User{},
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return gormDB, nil
}
