package models

import (
	"log"

	"gorm.io/gorm"
)

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(
		&Account{},
		&AccountQuota{},
	); err != nil {
		return err
	}

	log.Println("Database migrations completed")
	return nil
}
