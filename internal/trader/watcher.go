package trader

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grid-trade-bot-go/internal/config"
	"grid-trade-bot-go/internal/exchange"
	"grid-trade-bot-go/internal/models"
)

// Watcher detects exchange-confirmed fills despite listing lag and resolves
// buy-cancel races. The exchange can drop an order from the open-orders
// listing before its detail record reads settled, so absence from the
// listing alone never counts as a fill.
type Watcher struct {
	logger  *zap.Logger
	cfg     *config.Trading
	ex      exchange.API
	db      *gorm.DB
	pricing *Pricing
	rec     *Reconciler
}

// NewWatcher creates the watcher.
func NewWatcher(logger *zap.Logger, cfg *config.Config, ex exchange.API, db *gorm.DB, pricing *Pricing, rec *Reconciler) *Watcher {
	return &Watcher{
		logger:  logger,
		cfg:     &cfg.Trading,
		ex:      ex,
		db:      db,
		pricing: pricing,
		rec:     rec,
	}
}

// SellSweep summarizes one pass over the sell side.
type SellSweep struct {
	Sold        int
	Pending     int
	HighestSold decimal.Decimal
}

// SweepSells inspects the exchange's open sell orders, reconciles any that
// executed, and reports what remains pending.
func (w *Watcher) SweepSells(ctx context.Context) (*SellSweep, error) {
	openOrders, err := w.ex.ListOpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	w.logPricePositions(openOrders)

	openSells := filterSide(openOrders, exchange.SideSell)
	soldIDs, err := w.FindExecutedSells(ctx, openSells)
	if err != nil {
		return nil, err
	}

	sweep := &SellSweep{Sold: len(soldIDs)}

	if len(soldIDs) > 0 {
		records, err := models.PendingSellsByOrderID(w.db, soldIDs)
		if err != nil {
			return nil, err
		}
		highest, err := w.ReconcileExecutedSells(ctx, records)
		if err != nil {
			return nil, err
		}
		sweep.HighestSold = highest
	}

	pending, err := models.PendingSells(w.db, w.cfg.ProductID)
	if err != nil {
		return nil, err
	}
	sweep.Pending = len(pending)
	w.logger.Info("Pending sells", zap.Int("count", sweep.Pending))

	return sweep, nil
}

// SyncExecutedSells is the cycle-start sweep: it reconciles any sells that
// executed while the bot was between cycles.
func (w *Watcher) SyncExecutedSells(ctx context.Context) error {
	w.logger.Info("Checking if any sells executed")

	openOrders, err := w.ex.ListOpenOrders(ctx)
	if err != nil {
		return err
	}
	openSells := filterSide(openOrders, exchange.SideSell)

	soldIDs, err := w.FindExecutedSells(ctx, openSells)
	if err != nil {
		return err
	}
	if len(soldIDs) == 0 {
		w.logger.Info("No sells executed")
		return nil
	}

	records, err := models.PendingSellsByOrderID(w.db, soldIDs)
	if err != nil {
		return err
	}
	if _, err := w.ReconcileExecutedSells(ctx, records); err != nil {
		return err
	}
	w.logger.Info("Sells executed", zap.Int("count", len(soldIDs)))
	return nil
}

// FindExecutedSells returns the sell order ids confirmed filled. Candidates
// are the locally tracked pending ids absent from the exchange's open list;
// each candidate is confirmed only when its detail record reads settled,
// which distinguishes a fill from listing lag on a just-placed order.
func (w *Watcher) FindExecutedSells(ctx context.Context, openSells []exchange.Order) ([]string, error) {
	openIDs := make(map[string]struct{}, len(openSells))
	for _, o := range openSells {
		openIDs[o.ID] = struct{}{}
	}

	pending, err := models.PendingSells(w.db, w.cfg.ProductID)
	if err != nil {
		return nil, err
	}

	var candidates []string
	for _, record := range pending {
		if _, open := openIDs[record.SellOrderID]; !open {
			candidates = append(candidates, record.SellOrderID)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	w.logger.Info("Possible sales", zap.Strings("order_ids", candidates))

	var confirmed []string
	for _, id := range candidates {
		order, err := w.ex.GetOrder(ctx, id)
		if err != nil {
			if exchange.IsNotFound(err) || exchange.IsOrderDone(err) {
				continue
			}
			return nil, err
		}
		if !order.Settled {
			continue
		}
		w.logger.Info("Confirmed sold", zap.String("order_id", id))
		confirmed = append(confirmed, id)
	}
	return confirmed, nil
}

// ReconcileExecutedSells reconciles each confirmed-filled record against the
// authoritative order detail and returns the highest sell price among them.
// A record whose detail fetch returns a pass-through outcome is skipped.
func (w *Watcher) ReconcileExecutedSells(ctx context.Context, records []models.TradeRecord) (decimal.Decimal, error) {
	highest := decimal.Zero
	for i := range records {
		record := &records[i]

		soldOrder, err := w.ex.GetOrder(ctx, record.SellOrderID)
		if err != nil {
			if exchange.IsNotFound(err) || exchange.IsOrderDone(err) {
				w.logger.Debug("Skipping reconcile, order detail unavailable",
					zap.String("sell_order_id", record.SellOrderID),
					zap.Error(err),
				)
				continue
			}
			return decimal.Zero, err
		}

		if err := w.rec.Reconcile(ctx, record, soldOrder); err != nil {
			return decimal.Zero, err
		}
		if record.SellPrice.GreaterThan(highest) {
			highest = record.SellPrice
		}
	}
	return highest, nil
}

// CheckForPartialBuy resolves the cancel race on a buy order. A confirmed
// cancel response does not mean nothing filled: the order may have partially
// or fully filled before the cancel propagated to the book. The detail
// record is polled until it reads either settled or not-found; ambiguity is
// never inferred away.
func (w *Watcher) CheckForPartialBuy(ctx context.Context, buyOrderID string) error {
	w.logger.Info("Checking for partial fill", zap.String("order_id", buyOrderID))

	var buyOrder *exchange.Order
	for {
		order, err := w.ex.GetOrder(ctx, buyOrderID)
		if err != nil {
			if exchange.IsNotFound(err) {
				w.logger.Info("No partial fill detected", zap.String("order_id", buyOrderID))
				return nil
			}
			if exchange.IsOrderDone(err) {
				continue
			}
			return err
		}
		if order.Settled {
			buyOrder = order
			break
		}
	}

	// The cancel can apply before anything fills while the detail record
	// still reads settled (it is purged to NotFound only later). Nothing to
	// record.
	if buyOrder.FilledSize.IsZero() {
		w.logger.Info("No partial fill detected", zap.String("order_id", buyOrderID))
		return nil
	}

	if buyOrder.FilledSize.LessThan(w.cfg.MinTradeSize) {
		w.logger.Warn("Partial fill below minimum trade size, recording residual",
			zap.String("order_id", buyOrderID),
			zap.String("filled_size", buyOrder.FilledSize.String()),
		)
		_, err := models.CreateResidualFromBuy(w.db, buyOrder)
		return err
	}

	record, err := w.SellPurchase(ctx, buyOrder)
	if err != nil {
		return err
	}
	w.logger.Info("A partial sell order was placed",
		zap.String("buy_order_id", buyOrderID),
		zap.String("sell_order_id", record.SellOrderID),
	)
	return nil
}

// SellPurchase records a filled buy and places its matching sell. The
// difference between the filled size and the sell quantity is the stash
// retained in base currency.
func (w *Watcher) SellPurchase(ctx context.Context, buyOrder *exchange.Order) (*models.TradeRecord, error) {
	record, err := models.CreateTradeFromBuy(w.db, buyOrder)
	if err != nil {
		return nil, err
	}

	params, err := w.pricing.SellParams(ctx, buyOrder)
	if err != nil {
		return nil, err
	}

	sellResp, err := w.ex.PlaceLimitSell(ctx, exchange.LimitOrderParams{
		ProductID: w.cfg.ProductID,
		Price:     params.Ask,
		Size:      params.Quantity,
		ClientOID: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	record.SellPrice = params.Ask
	record.SellOrderID = sellResp.ID
	record.BaseCurrencyProfit = buyOrder.FilledSize.Sub(params.Quantity)
	if err := w.db.Save(record).Error; err != nil {
		return nil, err
	}

	w.logger.Info("SELL placed",
		zap.String("sell_order_id", sellResp.ID),
		zap.String("ask", params.Ask.String()),
		zap.String("quantity", params.Quantity.String()),
	)
	return record, nil
}

func (w *Watcher) logPricePositions(openOrders []exchange.Order) {
	var buyPrices, sellPrices []string
	for _, o := range openOrders {
		switch o.Side {
		case exchange.SideBuy:
			buyPrices = append(buyPrices, o.Price.String())
		case exchange.SideSell:
			sellPrices = append(sellPrices, o.Price.String())
		}
	}
	w.logger.Info("Price positions",
		zap.Strings("buys", buyPrices),
		zap.Strings("sells", sellPrices),
	)
}

func filterSide(orders []exchange.Order, side string) []exchange.Order {
	var filtered []exchange.Order
	for _, o := range orders {
		if o.Side == side {
			filtered = append(filtered, o)
		}
	}
	return filtered
}
