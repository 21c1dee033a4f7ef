package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"grid-trade-bot-go/internal/exchange"
)

// UnsellableResidual records a buy fill below the exchange's minimum
// tradable size. Such a fill can never be sold, so the row is terminal:
// created once and never mutated.
type UnsellableResidual struct {
	gorm.Model
	TradePair         string
	QuantityPurchased decimal.Decimal `gorm:"type:numeric"`
	BuyPrice          decimal.Decimal `gorm:"type:numeric"`
	BuyFee            decimal.Decimal `gorm:"type:numeric"`
	BuyOrderID        string          `gorm:"index"`
}

// CreateResidualFromBuy inserts the terminal record for a sub-minimum fill.
func CreateResidualFromBuy(db *gorm.DB, order *exchange.Order) (*UnsellableResidual, error) {
	if !order.FilledSize.IsPositive() {
		return nil, fmt.Errorf("residual quantity must be positive, got %s", order.FilledSize)
	}
	residual := &UnsellableResidual{
		TradePair:         order.ProductID,
		QuantityPurchased: order.FilledSize,
		BuyPrice:          order.Price,
		BuyFee:            order.FillFees,
		BuyOrderID:        order.ID,
	}
	if err := db.Create(residual).Error; err != nil {
		return nil, err
	}
	return residual, nil
}
