package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"grid-trade-bot-go/internal/exchange"
)

// TradeRecord is the accounting unit for one buy+sell round trip. A row is
// created when a buy fills and mutated exactly once, by reconciliation, when
// the matching sell executes. Rows are never deleted; the table is an
// append-only audit ledger.
//
// While SellPending is true the revenue/profit fields are provisional. After
// reconciliation QuoteCurrencyProfit equals Revenue minus Cost.
type TradeRecord struct {
	gorm.Model
	TradePair           string          `gorm:"index"`
	QuantityPurchased   decimal.Decimal `gorm:"type:numeric"`
	BuyPrice            decimal.Decimal `gorm:"type:numeric"`
	SellPrice           decimal.Decimal `gorm:"type:numeric"`
	BuyFee              decimal.Decimal `gorm:"type:numeric"`
	SellFee             decimal.Decimal `gorm:"type:numeric"`
	Revenue             decimal.Decimal `gorm:"type:numeric"`
	Cost                decimal.Decimal `gorm:"type:numeric"`
	QuoteCurrencyProfit decimal.Decimal `gorm:"type:numeric"`
	BaseCurrencyProfit  decimal.Decimal `gorm:"type:numeric"`
	BuyOrderID          string          `gorm:"index"`
	SellOrderID         string          `gorm:"index"`
	SellPending         bool            `gorm:"default:true"`
	// Consolidated is reserved for a future profit-taking flow that folds
	// several pending sells into one market sell.
	Consolidated bool `gorm:"default:false"`
}

// CreateTradeFromBuy inserts a provisional record for a filled buy order.
// Cost is price times filled size plus the buy fee; the sell side is filled
// in later by reconciliation.
func CreateTradeFromBuy(db *gorm.DB, order *exchange.Order) (*TradeRecord, error) {
	record := &TradeRecord{
		TradePair:         order.ProductID,
		QuantityPurchased: order.FilledSize,
		BuyPrice:          order.Price,
		BuyFee:            order.FillFees,
		Cost:              order.Price.Mul(order.FilledSize).Add(order.FillFees),
		BuyOrderID:        order.ID,
		SellPending:       true,
	}
	if err := db.Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// PendingSells returns the records whose sell orders have not executed yet,
// scoped to one trade pair so manually placed orders on other pairs stay out
// of the cycle's accounting.
func PendingSells(db *gorm.DB, pair string) ([]TradeRecord, error) {
	var records []TradeRecord
	err := db.Where("sell_pending = ? AND trade_pair = ?", true, pair).Find(&records).Error
	return records, err
}

// PendingSellsByOrderID returns pending records matching the given sell
// order ids.
func PendingSellsByOrderID(db *gorm.DB, sellOrderIDs []string) ([]TradeRecord, error) {
	var records []TradeRecord
	err := db.Where("sell_pending = ? AND sell_order_id IN ?", true, sellOrderIDs).Find(&records).Error
	return records, err
}

// LowestPendingAsk returns the lowest ask among pending sells. The local
// records are authoritative here: the exchange's open-orders listing can lag
// behind a just-placed sell.
func LowestPendingAsk(db *gorm.DB, pair string) (decimal.Decimal, error) {
	records, err := PendingSells(db, pair)
	if err != nil || len(records) == 0 {
		return decimal.Zero, err
	}
	lowest := records[0].SellPrice
	for _, r := range records[1:] {
		if r.SellPrice.LessThan(lowest) {
			lowest = r.SellPrice
		}
	}
	return lowest, nil
}

// FlipCount returns how many round trips have completed.
func FlipCount(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&TradeRecord{}).Where("sell_pending = ?", false).Count(&count).Error
	return count, err
}

// TotalQuoteProfit sums realized quote-currency profit over completed flips.
func TotalQuoteProfit(db *gorm.DB) (decimal.Decimal, error) {
	var records []TradeRecord
	if err := db.Where("sell_pending = ?", false).Find(&records).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.QuoteCurrencyProfit)
	}
	return total, nil
}

// TotalBaseProfit sums stashed base currency over all records.
func TotalBaseProfit(db *gorm.DB) (decimal.Decimal, error) {
	var records []TradeRecord
	if err := db.Find(&records).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.BaseCurrencyProfit)
	}
	return total, nil
}
