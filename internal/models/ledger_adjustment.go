package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ledger adjustment categories. Withdrawals must be strictly negative and
// reinvestments strictly positive; plain adjustments carry either sign.
const (
	CategoryAdjustment   = "adjustment"
	CategoryWithdrawal   = "withdrawal"
	CategoryReinvestment = "reinvestment"
)

// LedgerAdjustment is a manual entry affecting realized-profit accounting,
// e.g. correcting for an exchange credit, withdrawing profit, or adding
// fresh capital.
type LedgerAdjustment struct {
	gorm.Model
	Amount      decimal.Decimal `gorm:"type:numeric"`
	Category    string          `gorm:"index"`
	Description string
}

// BeforeCreate enforces the category and sign constraints.
func (a *LedgerAdjustment) BeforeCreate(*gorm.DB) error {
	if a.Description == "" {
		return fmt.Errorf("ledger adjustment requires a description")
	}
	switch a.Category {
	case CategoryAdjustment:
	case CategoryWithdrawal:
		if !a.Amount.IsNegative() {
			return fmt.Errorf("withdrawal amount must be negative, got %s", a.Amount)
		}
	case CategoryReinvestment:
		if !a.Amount.IsPositive() {
			return fmt.Errorf("reinvestment amount must be positive, got %s", a.Amount)
		}
	default:
		return fmt.Errorf("unknown ledger category %q", a.Category)
	}
	return nil
}

func sumLedgerCategory(db *gorm.DB, category string) (decimal.Decimal, error) {
	var entries []LedgerAdjustment
	if err := db.Where("category = ?", category).Find(&entries).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total, nil
}

// TotalAdjusted sums all plain adjustments.
func TotalAdjusted(db *gorm.DB) (decimal.Decimal, error) {
	return sumLedgerCategory(db, CategoryAdjustment)
}

// TotalWithdrawn sums all withdrawals (a non-positive figure).
func TotalWithdrawn(db *gorm.DB) (decimal.Decimal, error) {
	return sumLedgerCategory(db, CategoryWithdrawal)
}

// TotalReinvested sums all reinvestments.
func TotalReinvested(db *gorm.DB) (decimal.Decimal, error) {
	return sumLedgerCategory(db, CategoryReinvestment)
}
