package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/weblate/wlweb-payments/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.Customer{},
		&model.Payment{},
		&model.Donation{},
		&model.Package{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	// The renewal job looks payments up by the donation id stored in
	// extra; GORM does not manage expression indexes.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_donation ON payments ((extra->>'donation_id')) WHERE extra ? 'donation_id'`).Error; err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}
