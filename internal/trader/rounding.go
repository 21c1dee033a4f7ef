package trader

import (
	"github.com/shopspring/decimal"

	"grid-trade-bot-go/internal/config"
)

// Ticks rounds prices and quantities to the exchange's tick precision.
// Prices round to the quote currency's decimal places, quantities to the
// base currency's. Rounding is half away from zero and idempotent.
type Ticks struct {
	quotePlaces int32
	basePlaces  int32
}

// NewTicks builds the rounding helper from the configured precisions.
func NewTicks(cfg *config.Trading) Ticks {
	return Ticks{
		quotePlaces: cfg.QuoteTickPlaces,
		basePlaces:  cfg.BaseTickPlaces,
	}
}

// Quote rounds a price to the quote-currency tick.
func (t Ticks) Quote(d decimal.Decimal) decimal.Decimal {
	return d.Round(t.quotePlaces)
}

// Base rounds a quantity to the base-currency tick.
func (t Ticks) Base(d decimal.Decimal) decimal.Decimal {
	return d.Round(t.basePlaces)
}

// QuoteTick is one quote-currency tick, the smallest price increment.
func (t Ticks) QuoteTick() decimal.Decimal {
	return decimal.New(1, -t.quotePlaces)
}
