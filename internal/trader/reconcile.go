package trader

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grid-trade-bot-go/internal/exchange"
	"grid-trade-bot-go/internal/models"
)

// Reconciler finalizes a TradeRecord once the exchange confirms its sell
// executed. Reconcile must be invoked exactly once per fill: it re-polls the
// fills endpoint and a second invocation would double count.
type Reconciler struct {
	logger *zap.Logger
	ex     exchange.API
	db     *gorm.DB
	state  *State
	ticks  Ticks
}

// NewReconciler creates a Reconciler sharing the orchestrator's cycle state.
func NewReconciler(logger *zap.Logger, ex exchange.API, db *gorm.DB, state *State, ticks Ticks) *Reconciler {
	return &Reconciler{logger: logger, ex: ex, db: db, state: state, ticks: ticks}
}

// Reconcile turns the provisional record into final accounting.
//
// A zero sell fee means the sell was a maker: the quoted price and size are
// exact and no further requests are needed. A nonzero fee means the order
// may have settled through several fills, so price and revenue come from the
// fills endpoint. The buy side is recomputed symmetrically when the buy fee
// was nonzero.
func (r *Reconciler) Reconcile(ctx context.Context, record *models.TradeRecord, sellOrder *exchange.Order) error {
	// A sell executing means the buy-down ladder concluded.
	r.state.ResetBuys(r.logger)

	record.SellFee = sellOrder.FillFees

	soldSize := sellOrder.Size
	sellPrice := sellOrder.Price
	revenue := sellPrice.Mul(soldSize)

	if !record.SellFee.IsZero() {
		fills, err := r.pollFills(ctx, record.SellOrderID)
		if err != nil {
			return err
		}
		revenue = decimal.Zero
		soldSize = decimal.Zero
		for _, f := range fills {
			revenue = revenue.Add(f.Notional())
			soldSize = soldSize.Add(f.Size)
		}
		// Fill-size-weighted average execution price.
		sellPrice = revenue.Div(soldSize)
	}

	if !record.BuyFee.IsZero() {
		if err := r.reconcileBuySide(ctx, record); err != nil {
			return err
		}
	}

	record.SellPrice = sellPrice
	record.Revenue = revenue
	record.Cost = record.Cost.Add(record.SellFee)
	record.QuoteCurrencyProfit = record.Revenue.Sub(record.Cost)
	record.BaseCurrencyProfit = record.QuantityPurchased.Sub(soldSize)
	record.SellPending = false

	r.logger.Info("Trade reconciled",
		zap.Uint("record_id", record.ID),
		zap.String("quote_currency_profit", r.ticks.Quote(record.QuoteCurrencyProfit).String()),
		zap.String("sell_fee", record.SellFee.String()),
	)
	return r.db.Save(record).Error
}

// reconcileBuySide overwrites the cost basis recorded at buy time with the
// exact figure from the buy's fills; settlement may have involved several
// sub-fills at different prices.
func (r *Reconciler) reconcileBuySide(ctx context.Context, record *models.TradeRecord) error {
	fills, err := r.pollFills(ctx, record.BuyOrderID)
	if err != nil {
		return err
	}

	cost := decimal.Zero
	for _, f := range fills {
		cost = cost.Add(f.Notional())
	}

	record.BuyPrice = cost.Div(record.QuantityPurchased)
	record.Cost = cost.Add(record.BuyFee)
	return nil
}

// pollFills blocks until the order's fills are listable. The exchange can
// mark an order settled before its fill records are readable.
func (r *Reconciler) pollFills(ctx context.Context, orderID string) ([]exchange.Fill, error) {
	for {
		fills, err := r.ex.ListFills(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if len(fills) > 0 {
			return fills, nil
		}
	}
}
