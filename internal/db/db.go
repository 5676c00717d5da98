package db

import (
	"fmt"
	"time"

	"github.com/windoze95/voicepack-api/internal/config"
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// New creates a new database connection and migrates the schema.
func New(cfg *config.Config) (*gorm.DB, error) {
	database, err := connectToDatabaseWithRetry(cfg.EnvVars.DatabaseUrl, time.Minute)
	if err != nil {
		return nil, err
	}
	if err := Migrate(database); err != nil {
		return nil, err
	}
	return database, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.User{},
		&models.UserAuth{},
		&models.UserSettings{},
		&models.Interaction{},
		&models.ChatMessage{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// connectToDatabaseWithRetry connects to the database and retries until
// deadline elapses.
func connectToDatabaseWithRetry(databaseURL string, deadline time.Duration) (*gorm.DB, error) {
	logger.Get().Info("connecting to database")
	var database *gorm.DB
	var err error

	start := time.Now()
	for {
		database, err = gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
		if err == nil {
			break
		}
		if time.Since(start) > deadline {
			return nil, fmt.Errorf("could not connect to database after %s: %w", deadline, err)
		}
		logger.Get().Warn("could not connect to database, retrying...", zap.Error(err))
		time.Sleep(5 * time.Second)
	}

	return database, nil
}
