package trader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"grid-trade-bot-go/internal/exchange"
	"grid-trade-bot-go/internal/models"
)

func newTestPricing(t *testing.T, mockEx *MockExchange) *Pricing {
	t.Helper()
	return NewPricing(zap.NewNop(), testConfig(), mockEx, setupDB(t))
}

func TestScrumParams(t *testing.T) {
	mockEx := new(MockExchange)
	mockEx.On("GetOrderBook", mock.Anything, 1).Return(bookWithBestBid("11.70"), nil)

	pricing := newTestPricing(t, mockEx)

	params, err := pricing.ScrumParams(context.Background())
	require.NoError(t, err)
	assert.True(t, params.Bid.Equal(dec("11.70")), "bid = %s", params.Bid)
	assert.True(t, params.Quantity.Equal(dec("1.0")), "quantity = %s", params.Quantity)
	mockEx.AssertExpectations(t)
}

func TestBuyDownParams(t *testing.T) {
	pricing := newTestPricing(t, new(MockExchange))

	params := pricing.BuyDownParams(dec("11.70"))
	assert.True(t, params.Bid.Equal(dec("11.45")), "bid = %s", params.Bid)
}

func TestRebuyParams(t *testing.T) {
	mockEx := new(MockExchange)
	db := setupDB(t)
	cfg := testConfig()
	cfg.Trading.ProfitInterval = dec("0.30")
	pricing := NewPricing(zap.NewNop(), cfg, mockEx, db)

	// Lowest pending ask comes from the local records, not the exchange.
	db.Create(&models.TradeRecord{
		TradePair:   "BTC-USD",
		SellPrice:   dec("11.95"),
		SellOrderID: "sell-1",
		SellPending: true,
	})
	db.Create(&models.TradeRecord{
		TradePair:   "BTC-USD",
		SellPrice:   dec("12.20"),
		SellOrderID: "sell-2",
		SellPending: true,
	})

	params, err := pricing.RebuyParams()
	require.NoError(t, err)
	// Straddle = 0.25 + 0.30 below the lowest pending ask.
	assert.True(t, params.Bid.Equal(dec("11.40")), "bid = %s", params.Bid)
}

func TestValidQuantity(t *testing.T) {
	pricing := newTestPricing(t, new(MockExchange))

	testCases := []struct {
		name     string
		quantity string
		expected string
	}{
		{"above minimum", "1.5", "1.5"},
		{"below minimum bumps to minimum", "0.0001", "0.001"},
		{"rounds to base tick", "1.123456789", "1.12345679"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := pricing.ValidQuantity(dec(tc.quantity))
			assert.True(t, got.Equal(dec(tc.expected)), "got %s, want %s", got, tc.expected)
		})
	}
}

func TestAffordableBoundary(t *testing.T) {
	params := BidParams{Bid: dec("10.00"), Quantity: dec("1.0")}
	// Cost with taker fee: 10.00 * 1.0 * 1.0025 = 10.03 after rounding.
	cost := "10.03"

	testCases := []struct {
		name       string
		available  string
		affordable bool
	}{
		{"strictly below balance", "10.04", true},
		{"exactly equal is not affordable", cost, false},
		{"above balance", "10.02", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockEx := new(MockExchange)
			mockEx.On("ListAccounts", mock.Anything).Return([]exchange.Account{
				{Currency: "USD", Available: dec(tc.available)},
				{Currency: "BTC", Available: dec("2.0")},
			}, nil)

			pricing := newTestPricing(t, mockEx)

			affordable, err := pricing.Affordable(context.Background(), params)
			require.NoError(t, err)
			assert.Equal(t, tc.affordable, affordable)
		})
	}
}

func TestQuoteBalanceHoardsProfit(t *testing.T) {
	mockEx := new(MockExchange)
	mockEx.On("ListAccounts", mock.Anything).Return([]exchange.Account{
		{Currency: "USD", Available: dec("100.00")},
	}, nil)

	db := setupDB(t)
	cfg := testConfig()
	cfg.Trading.HoardQuoteProfit = true
	cfg.Trading.Reserve = dec("20.00")
	pricing := NewPricing(zap.NewNop(), cfg, mockEx, db)

	db.Create(&models.TradeRecord{
		TradePair:           "BTC-USD",
		QuoteCurrencyProfit: dec("5.00"),
		SellPending:         false,
	})

	balance, err := pricing.QuoteBalance(context.Background())
	require.NoError(t, err)
	// 100 - 5 hoarded - 20 reserve
	assert.True(t, balance.Equal(dec("75.00")), "balance = %s", balance)
}

func TestOutbid(t *testing.T) {
	testCases := []struct {
		name    string
		bestBid string
		outbid  bool
	}{
		{"market above current bid", "11.71", true},
		{"market equal to current bid", "11.70", false},
		{"market below current bid", "11.69", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockEx := new(MockExchange)
			mockEx.On("GetOrderBook", mock.Anything, 1).Return(bookWithBestBid(tc.bestBid), nil)

			pricing := newTestPricing(t, mockEx)

			outbid, err := pricing.Outbid(context.Background(), dec("11.70"))
			require.NoError(t, err)
			assert.Equal(t, tc.outbid, outbid)
		})
	}
}

func TestSellParamsMaker(t *testing.T) {
	// Zero buy fee: no fills-endpoint poll, quoted price and size trusted.
	mockEx := new(MockExchange)
	pricing := newTestPricing(t, mockEx)

	buyOrder := &exchange.Order{
		ID:         "buy-1",
		ProductID:  "BTC-USD",
		Price:      dec("11.70"),
		FilledSize: dec("1.0"),
		FillFees:   dec("0"),
	}

	params, err := pricing.SellParams(context.Background(), buyOrder)
	require.NoError(t, err)
	assert.True(t, params.Ask.Equal(dec("11.95")), "ask = %s", params.Ask)
	assert.True(t, params.Quantity.Equal(dec("1.0")), "quantity = %s", params.Quantity)
	mockEx.AssertNotCalled(t, "ListFills", mock.Anything, mock.Anything)
}

func TestSellParamsTakerBreakeven(t *testing.T) {
	// Actual cost 100.00 for 10.0 units; the profit-interval ask would lose
	// money, so the ask falls back to cost coverage plus one tick.
	mockEx := new(MockExchange)
	mockEx.On("ListFills", mock.Anything, "buy-1").Return([]exchange.Fill{
		{OrderID: "buy-1", Price: dec("9.90"), Size: dec("10.0")},
	}, nil)

	pricing := newTestPricing(t, mockEx)

	buyOrder := &exchange.Order{
		ID:         "buy-1",
		ProductID:  "BTC-USD",
		Price:      dec("9.70"),
		FilledSize: dec("10.0"),
		FillFees:   dec("1.00"),
	}

	params, err := pricing.SellParams(context.Background(), buyOrder)
	require.NoError(t, err)
	assert.True(t, params.Ask.Equal(dec("10.01")), "ask = %s", params.Ask)
	assert.True(t, params.Quantity.Equal(dec("10.0")), "quantity = %s", params.Quantity)

	// Breakeven guarantee: revenue at the fallback ask covers the cost.
	revenue := params.Ask.Mul(params.Quantity)
	assert.False(t, revenue.Sub(dec("100.00")).IsNegative())
	mockEx.AssertExpectations(t)
}

func TestSellParamsTakerPollsFillsUntilListed(t *testing.T) {
	// The fills endpoint can lag order settlement; SellParams keeps polling
	// until the fills appear.
	mockEx := new(MockExchange)
	mockEx.On("ListFills", mock.Anything, "buy-1").Return([]exchange.Fill{}, nil).Twice()
	mockEx.On("ListFills", mock.Anything, "buy-1").Return([]exchange.Fill{
		{OrderID: "buy-1", Price: dec("11.70"), Size: dec("1.0")},
	}, nil).Once()

	pricing := newTestPricing(t, mockEx)

	buyOrder := &exchange.Order{
		ID:         "buy-1",
		Price:      dec("11.70"),
		FilledSize: dec("1.0"),
		FillFees:   dec("0.03"),
	}

	params, err := pricing.SellParams(context.Background(), buyOrder)
	require.NoError(t, err)
	assert.True(t, params.Ask.Equal(dec("11.95")), "ask = %s", params.Ask)
	mockEx.AssertExpectations(t)
}

func TestSellParamsStash(t *testing.T) {
	cfg := testConfig()
	cfg.Trading.Stash = dec("0.5")
	pricing := NewPricing(zap.NewNop(), cfg, new(MockExchange), setupDB(t))

	buyOrder := &exchange.Order{
		ID:         "buy-1",
		Price:      dec("100.00"),
		FilledSize: dec("1.0"),
		FillFees:   dec("0"),
	}

	params, err := pricing.SellParams(context.Background(), buyOrder)
	require.NoError(t, err)
	assert.True(t, params.Ask.Equal(dec("100.25")), "ask = %s", params.Ask)
	// Half the 0.25 profit stays in base currency, so the sell quantity
	// shrinks: (0.125 + 100) / 100.25 rounded to the base tick.
	assert.True(t, params.Quantity.Equal(dec("0.99875312")), "quantity = %s", params.Quantity)
	assert.True(t, params.Quantity.LessThan(buyOrder.FilledSize))
}

func TestSellParamsStashSkippedBelowMinimum(t *testing.T) {
	// Stashing must never push a sell below the exchange minimum: the full
	// quantity is sold instead.
	cfg := testConfig()
	cfg.Trading.Stash = dec("0.9")
	cfg.Trading.MinTradeSize = dec("1.0")
	pricing := NewPricing(zap.NewNop(), cfg, new(MockExchange), setupDB(t))

	buyOrder := &exchange.Order{
		ID:         "buy-1",
		Price:      dec("100.00"),
		FilledSize: dec("1.0"),
		FillFees:   dec("0"),
	}

	params, err := pricing.SellParams(context.Background(), buyOrder)
	require.NoError(t, err)
	assert.True(t, params.Quantity.Equal(dec("1.0")), "quantity = %s", params.Quantity)
}
