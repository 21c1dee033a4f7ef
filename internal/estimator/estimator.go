// Package estimator is a stateless what-if calculator for bot settings: it
// mirrors the trading cycle's sell math so a prospective configuration can
// be evaluated without trading.
package estimator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Inputs are the candidate settings. Fee and stash figures arrive as
// percentages (0-100), matching the web form, and are converted to
// proportions internally.
type Inputs struct {
	BuyQuantity    decimal.Decimal `json:"buy_quantity"`
	QuoteBalance   decimal.Decimal `json:"quote_currency_balance"`
	Reserve        decimal.Decimal `json:"reserve"`
	BuyFeePercent  decimal.Decimal `json:"buy_fee"`
	SellFeePercent decimal.Decimal `json:"sell_fee"`
	BasePrice      decimal.Decimal `json:"base_currency_price"`
	MinTradeSize   decimal.Decimal `json:"min_trade_amount"`
	ProfitInterval decimal.Decimal `json:"profit_interval"`
	StashPercent   decimal.Decimal `json:"base_currency_stash"`
}

// Validate returns the list of input problems, empty when the inputs are
// usable.
func (in *Inputs) Validate() []string {
	var errs []string

	hundred := decimal.NewFromInt(100)
	if in.StashPercent.IsNegative() || in.StashPercent.GreaterThan(hundred) {
		errs = append(errs, "base_currency_stash must be between 0 and 100")
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"quote_currency_balance", in.QuoteBalance},
		{"base_currency_price", in.BasePrice},
		{"buy_quantity", in.BuyQuantity},
		{"profit_interval", in.ProfitInterval},
	} {
		if !f.value.IsPositive() {
			errs = append(errs, fmt.Sprintf("%s must be greater than 0", f.name))
		}
	}
	if in.BuyFeePercent.IsNegative() || in.SellFeePercent.IsNegative() {
		errs = append(errs, "fees must not be negative")
	}
	if in.Reserve.IsNegative() {
		errs = append(errs, "reserve must not be negative")
	}
	if in.QuoteBalance.LessThanOrEqual(in.Reserve) {
		errs = append(errs, "quote_currency_balance must be more than reserve")
	}
	return errs
}

// TradeDetail is the full breakdown of one projected flip.
type TradeDetail struct {
	Balance      decimal.Decimal `json:"balance"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	BuyQuantity  decimal.Decimal `json:"buy_quantity"`
	Cost         decimal.Decimal `json:"cost"`
	BuyFee       decimal.Decimal `json:"buy_fee"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	SellQuantity decimal.Decimal `json:"sell_quantity"`
	Revenue      decimal.Decimal `json:"revenue"`
	SellFee      decimal.Decimal `json:"sell_fee"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	QuoteProfit  decimal.Decimal `json:"quote_profit"`
	BaseProfit   decimal.Decimal `json:"base_profit"`
}

// Results are the projected outcomes for the inputs. Warnings flag settings
// that would trade but badly: sub-minimum order sizes or negative profit.
type Results struct {
	SellQuantity       decimal.Decimal `json:"sell_quantity"`
	QuoteProfitPerSell decimal.Decimal `json:"quote_profit_per_sell"`
	BaseProfitPerSell  decimal.Decimal `json:"base_profit_per_sell"`
	Detail             TradeDetail     `json:"trade_detailed"`
	Warnings           []string        `json:"results_errors"`
}

// Estimate projects one flip under the candidate settings. Inputs must have
// passed Validate.
func Estimate(in *Inputs) *Results {
	balance := in.QuoteBalance.Sub(in.Reserve)
	sellQuantity := in.sellQuantity()

	res := &Results{
		SellQuantity:       sellQuantity,
		QuoteProfitPerSell: in.revenue(sellQuantity).Sub(in.costs()).Round(8),
		BaseProfitPerSell:  in.BuyQuantity.Sub(sellQuantity),
		Detail:             in.detail(balance, sellQuantity),
		Warnings:           []string{},
	}

	if in.BuyQuantity.LessThan(in.MinTradeSize) {
		res.Warnings = append(res.Warnings,
			"The exchange's minimum BUY order amount requirement is not met. Adjust your settings.")
	}
	if sellQuantity.LessThan(in.MinTradeSize) {
		res.Warnings = append(res.Warnings,
			"The exchange's minimum SELL order amount requirement is not met. Adjust your settings.")
	}
	if res.QuoteProfitPerSell.IsNegative() {
		res.Warnings = append(res.Warnings, "Your profit is negative.")
	}
	return res
}

// sellQuantity applies the stash: the sell size shrinks so a fraction of
// the profit stays in base currency.
func (in *Inputs) sellQuantity() decimal.Decimal {
	if in.StashPercent.IsZero() {
		return in.BuyQuantity
	}

	one := decimal.NewFromInt(1)
	quoteProportion := one.Sub(asProportion(in.StashPercent))
	profitWithoutStash := in.revenue(in.BuyQuantity).Sub(in.costs())
	profitWithStash := profitWithoutStash.Mul(quoteProportion)

	return profitWithStash.Add(in.costs()).Div(in.ask()).Round(8)
}

func (in *Inputs) ask() decimal.Decimal {
	return in.BasePrice.Add(in.ProfitInterval)
}

func (in *Inputs) revenue(sellQuantity decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	return in.ask().Mul(sellQuantity).Mul(one.Sub(asProportion(in.SellFeePercent)))
}

func (in *Inputs) costs() decimal.Decimal {
	one := decimal.NewFromInt(1)
	return in.BasePrice.Mul(in.BuyQuantity).Mul(one.Add(asProportion(in.BuyFeePercent)))
}

func (in *Inputs) detail(balance, sellQuantity decimal.Decimal) TradeDetail {
	cost := in.BasePrice.Mul(in.BuyQuantity)
	buyFee := asProportion(in.BuyFeePercent).Mul(cost)

	sellPrice := in.ask()
	revenue := sellPrice.Mul(sellQuantity)
	sellFee := asProportion(in.SellFeePercent).Mul(revenue)
	totalCost := cost.Add(buyFee)
	totalRevenue := revenue.Sub(sellFee)

	return TradeDetail{
		Balance:      balance.Round(2),
		BuyPrice:     in.BasePrice.Round(8),
		BuyQuantity:  in.BuyQuantity.Round(8),
		Cost:         cost.Round(8),
		BuyFee:       buyFee.Round(8),
		TotalCost:    totalCost.Round(8),
		SellPrice:    sellPrice.Round(8),
		SellQuantity: sellQuantity.Round(8),
		Revenue:      revenue.Round(8),
		SellFee:      sellFee.Round(8),
		TotalRevenue: totalRevenue.Round(8),
		QuoteProfit:  totalRevenue.Sub(totalCost).Round(8),
		BaseProfit:   in.BuyQuantity.Sub(sellQuantity).Round(8),
	}
}

func asProportion(percent decimal.Decimal) decimal.Decimal {
	return percent.Div(decimal.NewFromInt(100))
}
