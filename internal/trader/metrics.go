package trader

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grid-trade-bot-go/internal/config"
	"grid-trade-bot-go/internal/exchange"
	"grid-trade-bot-go/internal/models"
)

// Recorder writes periodic portfolio snapshots: balances, base currency
// committed to pending sells, and the quote value of it all at the current
// best bid.
type Recorder struct {
	logger *zap.Logger
	cfg    *config.Trading
	ex     exchange.API
	db     *gorm.DB
	ticks  Ticks
}

// NewRecorder creates the snapshot recorder.
func NewRecorder(logger *zap.Logger, cfg *config.Config, ex exchange.API, db *gorm.DB) *Recorder {
	return &Recorder{
		logger: logger,
		cfg:    &cfg.Trading,
		ex:     ex,
		db:     db,
		ticks:  NewTicks(&cfg.Trading),
	}
}

// Record computes and persists one snapshot.
func (r *Recorder) Record(ctx context.Context) error {
	metric, err := r.calculate(ctx)
	if err != nil {
		return err
	}
	if err := r.db.Create(metric).Error; err != nil {
		return err
	}

	r.logger.Info("Portfolio value",
		zap.String("portfolio_quote_value", r.ticks.Quote(metric.PortfolioValue).String()),
	)
	return nil
}

func (r *Recorder) calculate(ctx context.Context) (*models.PerformanceMetric, error) {
	accounts, err := r.ex.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	book, err := r.ex.GetOrderBook(ctx, 1)
	if err != nil {
		return nil, err
	}
	bestBid, err := book.BestBid()
	if err != nil {
		return nil, err
	}

	var baseForSale, baseBalance, quoteBalance decimal.Decimal
	for _, a := range accounts {
		switch a.Currency {
		case r.cfg.BaseCurrency:
			baseForSale = a.Hold
			baseBalance = a.Available
		case r.cfg.QuoteCurrency:
			quoteBalance = a.Available
		}
	}

	pendingBuyCost, err := r.pendingBuyCost(ctx)
	if err != nil {
		return nil, err
	}

	quoteProfit, err := models.CurrentCycleProfit(r.db)
	if err != nil {
		return nil, err
	}
	baseProfit, err := models.TotalBaseProfit(r.db)
	if err != nil {
		return nil, err
	}

	quoteValueOfBase := baseForSale.Add(baseBalance).Mul(bestBid)

	return &models.PerformanceMetric{
		BaseCurrencyForSale: baseForSale,
		BestBid:             bestBid,
		QuoteBalance:        quoteBalance,
		BaseBalance:         baseBalance,
		QuoteProfit:         quoteProfit,
		BaseProfit:          baseProfit,
		QuoteValueOfBase:    quoteValueOfBase,
		PortfolioValue:      quoteValueOfBase.Add(quoteBalance).Add(pendingBuyCost),
	}, nil
}

// pendingBuyCost values the bot's open buy order. The cycle holds at most
// one open buy; any further buys on the book were placed manually and stay
// outside this accounting. The listing is ordered most recent first.
func (r *Recorder) pendingBuyCost(ctx context.Context) (decimal.Decimal, error) {
	openOrders, err := r.ex.ListOpenOrders(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, o := range openOrders {
		if o.Side == exchange.SideBuy {
			return o.Price.Mul(o.Size), nil
		}
	}
	return decimal.Zero, nil
}
