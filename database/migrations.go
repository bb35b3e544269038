package database

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"inkwell/models"
)

func RunMigrations(db *gorm.DB, log *slog.Logger) error {
	log.Info("running database migrations")

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Error("migrations failed", "error", err)
		return err
	}

	log.Info("migrations completed")
	return nil
}

// SeedCategories inserts the named categories that are not present yet.
// Categories are reference data: end users never create them.
func SeedCategories(db *gorm.DB, names []string, log *slog.Logger) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			var existing models.Category
			err := tx.Where("category_name = ?", name).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("look up category %q: %w", name, err)
			}
			if err := tx.Create(&models.Category{Name: name}).Error; err != nil {
				return fmt.Errorf("seed category %q: %w", name, err)
			}
			log.Info("seeded category", "name", name)
		}
		return nil
	})
}
