package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-program-api/internal/models"
)

// Migrate creates or updates the tables of every program entity.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
