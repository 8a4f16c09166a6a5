package database

import (
	"gorm.io/gorm"

	"github.com/epicgather/epicgather/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.SingleUseToken{},
		&models.RefreshToken{},
		&models.Category{},
		&models.Tag{},
		&models.Event{},
		&models.Booking{},
	)
}

// SeedData populates the default event categories.
func SeedData(db *gorm.DB) error {
	categories := []models.Category{
		{Name: "Music"},
		{Name: "Sports"},
		{Name: "Technology"},
		{Name: "Arts & Theatre"},
		{Name: "Food & Drink"},
	}

	for _, category := range categories {
		if err := db.Where(models.Category{Name: category.Name}).Attrs(category).FirstOrCreate(&models.Category{}).Error; err != nil {
			return err
		}
	}

	return nil
}
