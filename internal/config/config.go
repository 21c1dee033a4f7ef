package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Exchange  Exchange  `mapstructure:"exchange"`
	Trading   Trading   `mapstructure:"trading"`
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Snapshots Snapshots `mapstructure:"snapshots"`
}

// Exchange holds endpoint and credential settings for the exchange REST API.
type Exchange struct {
	BaseURL    string `mapstructure:"base_url"`
	Key        string `mapstructure:"key"`
	Secret     string `mapstructure:"secret"`
	Passphrase string `mapstructure:"passphrase"`
	// ThrottleInterval is the minimum spacing between outbound requests.
	ThrottleInterval time.Duration `mapstructure:"throttle_interval"`
}

// Server holds the configuration for the estimator web service.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Snapshots holds the schedule for periodic portfolio metrics.
type Snapshots struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

// Trading holds every knob the trading cycle consults.
type Trading struct {
	ProductID     string `mapstructure:"product_id"`
	BaseCurrency  string `mapstructure:"base_currency"`
	QuoteCurrency string `mapstructure:"quote_currency"`

	// Tick precision in decimal places of the quote and base currencies.
	QuoteTickPlaces int32 `mapstructure:"quote_tick_places"`
	BaseTickPlaces  int32 `mapstructure:"base_tick_places"`

	Quantity     decimal.Decimal `mapstructure:"quantity"`
	MinTradeSize decimal.Decimal `mapstructure:"min_trade_size"`

	// TakerFeeRate applies to buys (affordability assumes taker),
	// MakerFeeRate to sells.
	TakerFeeRate decimal.Decimal `mapstructure:"taker_fee_rate"`
	MakerFeeRate decimal.Decimal `mapstructure:"maker_fee_rate"`

	ProfitInterval  decimal.Decimal `mapstructure:"profit_interval"`
	BuyDownInterval decimal.Decimal `mapstructure:"buy_down_interval"`

	// Reserve is quote currency never committed to buys. Stash is the
	// fraction of per-flip profit retained in base currency.
	Reserve decimal.Decimal `mapstructure:"reserve"`
	Stash   decimal.Decimal `mapstructure:"stash"`

	HoardQuoteProfit bool `mapstructure:"hoard_quote_profit"`
	OrderBackfilling bool `mapstructure:"order_backfilling"`

	ChillConsecutiveBuys int           `mapstructure:"chill_consecutive_buys"`
	ChillWaitTime        time.Duration `mapstructure:"chill_wait_time"`

	CancelRetries int `mapstructure:"cancel_retries"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("exchange.throttle_interval", "350ms")
	viper.SetDefault("trading.quote_tick_places", 2)
	viper.SetDefault("trading.base_tick_places", 8)
	viper.SetDefault("trading.chill_consecutive_buys", 3)
	viper.SetDefault("trading.chill_wait_time", "1m")
	viper.SetDefault("trading.cancel_retries", 10)
	viper.SetDefault("snapshots.cron", "0 */4 * * *")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	hook := mapstructure.ComposeDecodeHookFunc(
		decimalDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	err = viper.Unmarshal(&config, viper.DecodeHook(hook))
	return
}

// Validate enforces the settings the bot must not trade without. Any error
// here is fatal: the process refuses to start (and the orchestrator re-checks
// at the top of every cycle).
func (c *Config) Validate() error {
	t := c.Trading

	if t.ProductID == "" {
		return fmt.Errorf("trading.product_id must be set")
	}
	if t.Quantity.LessThan(t.MinTradeSize) {
		return fmt.Errorf("trading.quantity %s is below the exchange minimum %s",
			t.Quantity, t.MinTradeSize)
	}
	if t.Stash.IsNegative() || t.Stash.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("trading.stash must be in the range [0, 1), got %s", t.Stash)
	}
	if !t.ProfitInterval.IsPositive() {
		return fmt.Errorf("trading.profit_interval must be positive, got %s", t.ProfitInterval)
	}
	if !t.BuyDownInterval.IsPositive() {
		return fmt.Errorf("trading.buy_down_interval must be positive, got %s", t.BuyDownInterval)
	}
	if t.TakerFeeRate.IsNegative() || t.MakerFeeRate.IsNegative() {
		return fmt.Errorf("fee rates must not be negative")
	}
	if t.Reserve.IsNegative() {
		return fmt.Errorf("trading.reserve must not be negative, got %s", t.Reserve)
	}
	if t.ChillConsecutiveBuys < 1 {
		return fmt.Errorf("trading.chill_consecutive_buys must be at least 1")
	}
	if t.CancelRetries < 1 {
		return fmt.Errorf("trading.cancel_retries must be at least 1")
	}
	if c.Exchange.ThrottleInterval <= 0 {
		return fmt.Errorf("exchange.throttle_interval must be positive")
	}
	return nil
}

// decimalDecodeHook lets viper unmarshal "0.25" (or 0.25) into decimal.Decimal.
func decimalDecodeHook() func(from, to reflect.Type, data interface{}) (interface{}, error) {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(decimal.Decimal{}) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(v)
		case float64:
			return decimal.NewFromFloat(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		default:
			return data, nil
		}
	}
}
