package database

import (
	"fmt"

	"gorm.io/gorm"

	"mapprice/server/internal/models"
)

// MigrateSchema creates or updates every table the service touches.
func MigrateSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Parcel{},
		&models.PrivateListing{},
		&models.TransactionRecord{},
		&models.SizeClassAggregate{},
		&models.SizeClassGroup{},
		&models.PublicListing{},
		&models.PublicSizeType{},
		&models.PublicAggregate{},
		&models.AdministrativeRegion{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (d *Database) RunMigrations() error {
	return MigrateSchema(d.writer)
}
