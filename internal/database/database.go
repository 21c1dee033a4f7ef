package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"grid-trade-bot-go/internal/models"
)

// NewDatabase opens the configured DSN and migrates the schema. Trade
// records and ledger entries are an append-only audit trail, so migration
// never drops tables.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the tables for all persisted models.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.TradeRecord{},
		&models.UnsellableResidual{},
		&models.LedgerAdjustment{},
		&models.PerformanceMetric{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}
