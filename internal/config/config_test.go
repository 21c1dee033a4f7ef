package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func validConfig() Config {
	return Config{
		Exchange: Exchange{ThrottleInterval: 350 * time.Millisecond},
		Trading: Trading{
			ProductID:            "BTC-USD",
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

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"stash at upper edge", func(c *Config) { c.Trading.Stash = dec("0.99") }, false},
		{"missing product", func(c *Config) { c.Trading.ProductID = "" }, true},
		{"quantity below minimum", func(c *Config) { c.Trading.Quantity = dec("0.0001") }, true},
		{"stash of one", func(c *Config) { c.Trading.Stash = dec("1") }, true},
		{"negative stash", func(c *Config) { c.Trading.Stash = dec("-0.1") }, true},
		{"zero profit interval", func(c *Config) { c.Trading.ProfitInterval = dec("0") }, true},
		{"zero buy down interval", func(c *Config) { c.Trading.BuyDownInterval = dec("0") }, true},
		{"negative fee", func(c *Config) { c.Trading.TakerFeeRate = dec("-0.01") }, true},
		{"negative reserve", func(c *Config) { c.Trading.Reserve = dec("-1") }, true},
		{"chill buys below one", func(c *Config) { c.Trading.ChillConsecutiveBuys = 0 }, true},
		{"cancel retries below one", func(c *Config) { c.Trading.CancelRetries = 0 }, true},
		{"zero throttle interval", func(c *Config) { c.Exchange.ThrottleInterval = 0 }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
