package trader

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grid-trade-bot-go/internal/config"
	"grid-trade-bot-go/internal/exchange"
	"grid-trade-bot-go/internal/models"
)

// BidParams is the price and quantity of a buy about to be placed.
type BidParams struct {
	Bid      decimal.Decimal
	Quantity decimal.Decimal
}

// AskParams is the price and quantity of a sell about to be placed.
type AskParams struct {
	Ask      decimal.Decimal
	Quantity decimal.Decimal
}

// Pricing computes bid/ask prices and quantities from market data, balances
// and configuration. Everything is tick-rounded: prices to the quote
// currency's precision, quantities to the base currency's.
type Pricing struct {
	logger *zap.Logger
	cfg    *config.Trading
	ex     exchange.API
	db     *gorm.DB
	ticks  Ticks
}

// NewPricing creates the pricing engine.
func NewPricing(logger *zap.Logger, cfg *config.Config, ex exchange.API, db *gorm.DB) *Pricing {
	return &Pricing{
		logger: logger,
		cfg:    &cfg.Trading,
		ex:     ex,
		db:     db,
		ticks:  NewTicks(&cfg.Trading),
	}
}

// ScrumParams prices the cycle-opening buy at the current best bid.
func (p *Pricing) ScrumParams(ctx context.Context) (BidParams, error) {
	book, err := p.ex.GetOrderBook(ctx, 1)
	if err != nil {
		return BidParams{}, err
	}
	bestBid, err := book.BestBid()
	if err != nil {
		return BidParams{}, err
	}

	return BidParams{
		Bid:      p.ticks.Quote(bestBid),
		Quantity: p.buyQuantity(),
	}, nil
}

// BuyDownParams prices the next ladder rung one interval below the previous
// bid.
func (p *Pricing) BuyDownParams(previousBid decimal.Decimal) BidParams {
	bid := p.ticks.Quote(previousBid.Sub(p.cfg.BuyDownInterval))
	p.logger.Info("Buy down bid",
		zap.String("buy_down_interval", p.cfg.BuyDownInterval.String()),
		zap.String("bid", bid.String()),
	)

	return BidParams{Bid: bid, Quantity: p.buyQuantity()}
}

// RebuyParams prices a replacement buy one full straddle below the lowest
// pending ask. The local records are consulted rather than the exchange,
// whose open-orders listing may lag.
func (p *Pricing) RebuyParams() (BidParams, error) {
	lowestAsk, err := models.LowestPendingAsk(p.db, p.cfg.ProductID)
	if err != nil {
		return BidParams{}, err
	}
	straddle := p.cfg.BuyDownInterval.Add(p.cfg.ProfitInterval)
	bid := p.ticks.Quote(lowestAsk.Sub(straddle))

	return BidParams{Bid: bid, Quantity: p.buyQuantity()}, nil
}

func (p *Pricing) buyQuantity() decimal.Decimal {
	return p.ValidQuantity(p.cfg.Quantity)
}

// ValidQuantity rounds a quantity to the base tick and bumps it to the
// exchange minimum when the rounded value falls below it.
func (p *Pricing) ValidQuantity(quantity decimal.Decimal) decimal.Decimal {
	quantity = p.ticks.Base(quantity)
	if quantity.LessThan(p.cfg.MinTradeSize) {
		return p.cfg.MinTradeSize
	}
	return quantity
}

// QuoteBalance returns the quote currency available for buys: the exchange
// balance less the configured reserve and, when hoarding is enabled, the
// current cycle's realized profit.
func (p *Pricing) QuoteBalance(ctx context.Context) (decimal.Decimal, error) {
	accounts, err := p.ex.ListAccounts(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	available := decimal.Zero
	for _, a := range accounts {
		if a.Currency == p.cfg.QuoteCurrency {
			available = a.Available
			break
		}
	}

	hoard := decimal.Zero
	if p.cfg.HoardQuoteProfit {
		if hoard, err = models.CurrentCycleProfit(p.db); err != nil {
			return decimal.Zero, err
		}
	}

	return p.ticks.Quote(available.Sub(hoard).Sub(p.cfg.Reserve)), nil
}

// Affordable reports whether the buy's projected cost is strictly below the
// usable balance. A cost exactly equal to the balance is not affordable.
// The buy is assumed to be a taker and incur the taker fee.
func (p *Pricing) Affordable(ctx context.Context, params BidParams) (bool, error) {
	balance, err := p.QuoteBalance(ctx)
	if err != nil {
		return false, err
	}
	cost := p.BuyOrderCost(params)

	p.logger.Info("Affordability check",
		zap.String("usable_balance", balance.String()),
		zap.String("cost_if_fee", cost.String()),
	)
	return cost.LessThan(balance), nil
}

// BuyOrderCost is the tick-rounded cost of the buy including the taker fee.
func (p *Pricing) BuyOrderCost(params BidParams) decimal.Decimal {
	one := decimal.NewFromInt(1)
	return p.ticks.Quote(params.Bid.Mul(params.Quantity).Mul(one.Add(p.cfg.TakerFeeRate)))
}

// Outbid reports whether the market's best bid has moved above the bot's
// current bid, meaning the order is no longer first in line.
func (p *Pricing) Outbid(ctx context.Context, currentBid decimal.Decimal) (bool, error) {
	book, err := p.ex.GetOrderBook(ctx, 1)
	if err != nil {
		return false, err
	}
	bestBid, err := book.BestBid()
	if err != nil {
		return false, err
	}

	if bestBid.LessThanOrEqual(currentBid) {
		return false, nil
	}
	p.logger.Info("Bid too low",
		zap.String("current_bid", currentBid.String()),
		zap.String("best_bid", bestBid.String()),
	)
	return true, nil
}

// SellParams prices the sell matching a filled buy.
//
// A zero buy fee means the buy was a maker and the quoted price and size are
// exact. A nonzero fee means the order may have settled through several
// fills at different prices, so the actual cost comes from the fills
// endpoint. The quoted buy price is still used for the ask: it is only ever
// equal to or better than the actual price, so a sell at quoted price plus
// the profit interval earns at least the projected profit.
func (p *Pricing) SellParams(ctx context.Context, buyOrder *exchange.Order) (AskParams, error) {
	buyPrice := buyOrder.Price
	quantity := buyOrder.FilledSize
	fee := buyOrder.FillFees

	p.logger.Info("Buy fees incurred", zap.String("fee", fee.String()))

	cost := buyPrice.Mul(quantity).Add(fee)
	if !fee.IsZero() {
		actual, err := p.actualCost(ctx, buyOrder.ID, fee)
		if err != nil {
			return AskParams{}, err
		}
		cost = actual
	}

	return p.calculateSellParams(buyPrice, quantity, cost), nil
}

// actualCost polls the fills endpoint until the buy's executions are listed
// (the exchange can settle an order before its fills are readable), then
// sums the fill notionals and adds the recorded fee.
func (p *Pricing) actualCost(ctx context.Context, buyOrderID string, fee decimal.Decimal) (decimal.Decimal, error) {
	var fills []exchange.Fill
	for len(fills) == 0 {
		var err error
		fills, err = p.ex.ListFills(ctx, buyOrderID)
		if err != nil {
			return decimal.Zero, err
		}
	}

	cost := decimal.Zero
	for _, f := range fills {
		cost = cost.Add(f.Notional())
	}
	return cost.Add(fee), nil
}

func (p *Pricing) calculateSellParams(buyPrice, quantity, cost decimal.Decimal) AskParams {
	one := decimal.NewFromInt(1)
	sellPrice := p.ticks.Quote(buyPrice.Add(p.cfg.ProfitInterval))
	projectedRevenue := sellPrice.Mul(quantity).Mul(one.Sub(p.cfg.MakerFeeRate))
	projectedProfit := projectedRevenue.Sub(cost)

	if projectedProfit.IsNegative() {
		return p.breakevenSellParams(quantity, cost, projectedProfit)
	}
	return p.profitableSellParams(sellPrice, quantity, cost, projectedProfit)
}

// breakevenSellParams prices a loss-avoidance sell. The cost-covering price
// rounds at the quote tick and the unrounded quotient can round down to a
// small loss, so one tick is added to keep the realized result non-negative.
// Stashing never applies on a breakeven sell.
func (p *Pricing) breakevenSellParams(quantity, cost, projectedProfit decimal.Decimal) AskParams {
	ask := p.ticks.Quote(cost.Div(quantity)).Add(p.ticks.QuoteTick())

	p.logger.Warn("Selling at breakeven",
		zap.String("projected_profit", projectedProfit.String()),
		zap.String("ask", ask.String()),
	)
	return AskParams{Ask: ask, Quantity: quantity}
}

func (p *Pricing) profitableSellParams(ask, quantity, cost, profit decimal.Decimal) AskParams {
	if p.cfg.Stash.IsZero() {
		p.logSellSide(ask, profit, decimal.Zero)
		return AskParams{Ask: ask, Quantity: quantity}
	}
	return p.stashSellParams(ask, quantity, cost, profit)
}

// stashSellParams reduces the sell quantity so that a fraction of the profit
// is retained in base currency. If the reduced quantity would violate the
// exchange minimum, stashing is skipped and the full quantity is sold.
func (p *Pricing) stashSellParams(ask, quantity, cost, profit decimal.Decimal) AskParams {
	one := decimal.NewFromInt(1)
	profitAfterStash := profit.Mul(one.Sub(p.cfg.Stash))
	quantityLessStash := p.ticks.Base(profitAfterStash.Add(cost).Div(ask))

	if quantityLessStash.LessThanOrEqual(p.cfg.MinTradeSize) {
		p.logger.Info("Sell size after stash would be invalid, skipping stashing",
			zap.String("quantity_less_stash", quantityLessStash.String()),
		)
		p.logSellSide(ask, profit, decimal.Zero)
		return AskParams{Ask: ask, Quantity: quantity}
	}

	stash := quantity.Sub(quantityLessStash)
	p.logSellSide(ask, profitAfterStash, stash)
	return AskParams{Ask: ask, Quantity: quantityLessStash}
}

func (p *Pricing) logSellSide(ask, quoteProfit, baseProfit decimal.Decimal) {
	p.logger.Info(fmt.Sprintf(
		"Selling at %s for an estimated profit of %s %s and %s %s",
		ask, quoteProfit, p.cfg.QuoteCurrency, baseProfit, p.cfg.BaseCurrency,
	))
}
