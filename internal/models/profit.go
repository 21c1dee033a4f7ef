package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuoteProfitToDate is realized trading profit plus manual adjustments.
func QuoteProfitToDate(db *gorm.DB) (decimal.Decimal, error) {
	trades, err := TotalQuoteProfit(db)
	if err != nil {
		return decimal.Zero, err
	}
	adjusted, err := TotalAdjusted(db)
	if err != nil {
		return decimal.Zero, err
	}
	return trades.Add(adjusted), nil
}

// CurrentCycleProfit is the rolling profit of the current trade cycle: trade
// profit plus adjustments plus (negative) withdrawals, minus reinvested
// capital. When profit hoarding is enabled this figure is held out of the
// balance available for buys.
func CurrentCycleProfit(db *gorm.DB) (decimal.Decimal, error) {
	trades, err := TotalQuoteProfit(db)
	if err != nil {
		return decimal.Zero, err
	}
	adjusted, err := TotalAdjusted(db)
	if err != nil {
		return decimal.Zero, err
	}
	withdrawn, err := TotalWithdrawn(db)
	if err != nil {
		return decimal.Zero, err
	}
	reinvested, err := TotalReinvested(db)
	if err != nil {
		return decimal.Zero, err
	}
	return trades.Add(adjusted).Add(withdrawn).Sub(reinvested), nil
}
