// Package repositories provides the data access layer.
// It owns the database and cache connections and all persistence logic.
package repositories

import (
	"fmt"
	"log"
	"os"
	"time"

	"fraudsentry/internal/config"
	"fraudsentry/internal/models"
	"fraudsentry/internal/repositories/cache"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance used across the application.
var DB *gorm.DB

// CacheService is the global cache instance.
var CacheService *cache.Service

// InitDB initializes the PostgreSQL and Redis connections, tunes the
// connection pool, and runs migrations.
func InitDB() error {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.GetEnv("DB_HOST", "localhost"),
		config.GetEnv("DB_PORT", "5432"),
		config.GetEnv("DB_USER", "postgres"),
		config.GetEnv("DB_PASSWORD", "password"),
		config.GetEnv("DB_NAME", "fraud_detection"),
		config.GetEnv("DB_SSLMODE", "disable"),
	)

	logLevel := logger.Silent
	if !config.IsProduction() {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{LogLevel: logLevel},
		),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	DB = db

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.GetIntEnv("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetMaxOpenConns(config.GetIntEnv("DB_MAX_OPEN_CONNS", 100))
	sqlDB.SetConnMaxLifetime(config.GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour))
	sqlDB.SetConnMaxIdleTime(config.GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute))

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Redis holds velocity counters and the assessment read cache.
	redisClient := cache.NewRedisClient(&cache.RedisConfig{
		Host:     config.GetEnv("REDIS_HOST", "localhost"),
		Port:     config.GetEnv("REDIS_PORT", "6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetIntEnv("REDIS_DB", 0),
	})
	CacheService = cache.NewService(redisClient, config.GetDurationEnv("CACHE_TTL", time.Hour))

	if err := DB.AutoMigrate(
		&models.Transaction{},
		&models.RiskAssessment{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Println("database initialized")
	return nil
}

// CloseDB closes the database and cache connections.
func CloseDB() {
	if DB != nil {
		if sqlDB, err := DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("failed to close database connection: %v", err)
			}
		}
	}
	if CacheService != nil {
		if err := CacheService.Close(); err != nil {
			log.Printf("failed to close redis connection: %v", err)
		}
	}
}
