package db

import (
	"fmt"

	"github.com/keyshield/keyshield/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the tables owned by the service.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.Endpoint{},
		&models.Invocation{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
