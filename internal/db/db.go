package db

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"laundry-jobs-backend/config"
	"laundry-jobs-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Machine{},
		&model.Job{},
		&model.LoadAssignment{},
		&model.Transaction{},
		&model.TransactionItem{},
		&model.FormatSettings{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
