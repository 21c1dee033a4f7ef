package trader

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"grid-trade-bot-go/internal/config"
	"grid-trade-bot-go/internal/database"
	"grid-trade-bot-go/internal/exchange"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// setupDB creates a new, non-shared in-memory database for each test to
// ensure isolation.
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// testConfig returns a config with the tick sizes and intervals most tests
// share; individual tests override fields as needed.
func testConfig() *config.Config {
	return &config.Config{
		Exchange: config.Exchange{
			ThrottleInterval: time.Millisecond,
		},
		Trading: config.Trading{
			ProductID:            "BTC-USD",
			BaseCurrency:         "BTC",
			QuoteCurrency:        "USD",
			QuoteTickPlaces:      2,
			BaseTickPlaces:       8,
			Quantity:             dec("1.0"),
			MinTradeSize:         dec("0.001"),
			TakerFeeRate:         dec("0.0025"),
			MakerFeeRate:         dec("0"),
			ProfitInterval:       dec("0.25"),
			BuyDownInterval:      dec("0.25"),
			Reserve:              dec("0"),
			Stash:                dec("0"),
			ChillConsecutiveBuys: 3,
			ChillWaitTime:        time.Minute,
			CancelRetries:        10,
		},
	}
}

func bookWithBestBid(price string) *exchange.OrderBook {
	return &exchange.OrderBook{
		Bids: []exchange.BookEntry{{Price: dec(price), Size: dec("5.0"), NumOrders: 3}},
		Asks: []exchange.BookEntry{{Price: dec(price).Add(dec("0.01")), Size: dec("5.0"), NumOrders: 1}},
	}
}
