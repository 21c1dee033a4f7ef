package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PerformanceMetric is one periodic snapshot of portfolio state: balances,
// value of base currency held for sale, and profit figures at the time of
// the write.
type PerformanceMetric struct {
	gorm.Model
	BaseCurrencyForSale decimal.Decimal `gorm:"type:numeric"`
	BestBid             decimal.Decimal `gorm:"type:numeric"`
	QuoteBalance        decimal.Decimal `gorm:"type:numeric"`
	BaseBalance         decimal.Decimal `gorm:"type:numeric"`
	QuoteProfit         decimal.Decimal `gorm:"type:numeric"`
	BaseProfit          decimal.Decimal `gorm:"type:numeric"`
	QuoteValueOfBase    decimal.Decimal `gorm:"type:numeric"`
	PortfolioValue      decimal.Decimal `gorm:"type:numeric"`
}
