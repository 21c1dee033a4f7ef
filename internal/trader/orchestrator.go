package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grid-trade-bot-go/internal/config"
	"grid-trade-bot-go/internal/exchange"
	"grid-trade-bot-go/internal/models"
)

// ErrCancelRetriesExhausted is returned when a cancel request keeps coming
// back "NotFound" past the configured retry budget. There is no safe
// automatic recovery: the order may or may not be on the book, so the
// process halts for operator intervention.
var ErrCancelRetriesExhausted = errors.New("cancel retries exhausted, operator intervention required")

// chillPollPause paces the cooldown loop between sell checks.
const chillPollPause = 2 * time.Second

// Orchestrator drives the trading cycle: scrum at the best bid, ladder
// buy-downs as fills accumulate, straddle-monitor the active buy and all
// pending sells, rebuy once sells clear, and chill after a run of
// consecutive buys.
//
// The whole cycle runs on one goroutine. The only shared mutable state is
// the consecutive-buy counter, the gateway's throttle timestamp, and the
// single active-buy slot below; the ladder's correctness depends on at most
// one open buy order existing at any time.
type Orchestrator struct {
	logger  *zap.Logger
	cfg     *config.Config
	ex      exchange.API
	db      *gorm.DB
	pricing *Pricing
	watcher *Watcher
	state   *State

	activeBuyID string
	activeBid   decimal.Decimal

	// Injectable clock for tests; production uses time.Now and a real sleep.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires the cycle's collaborators.
func NewOrchestrator(logger *zap.Logger, cfg *config.Config, ex exchange.API, db *gorm.DB,
	pricing *Pricing, watcher *Watcher, state *State) *Orchestrator {
	return &Orchestrator{
		logger:  logger,
		cfg:     cfg,
		ex:      ex,
		db:      db,
		pricing: pricing,
		watcher: watcher,
		state:   state,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run loops trade cycles until the context is canceled or a fatal condition
// surfaces. Settings are re-validated at the top of every cycle.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := o.watcher.SyncExecutedSells(ctx); err != nil {
			return err
		}
		if err := o.cfg.Validate(); err != nil {
			return fmt.Errorf("settings validation: %w", err)
		}

		if count, err := models.FlipCount(o.db); err == nil {
			o.logger.Info("Trades flipped", zap.Int64("count", count))
		}

		params, err := o.pricing.ScrumParams(ctx)
		if err != nil {
			return err
		}
		order, err := o.placeBuy(ctx, params)
		if err != nil {
			return err
		}
		o.logger.Info("SCRUM placed",
			zap.String("order_id", order.ID),
			zap.String("bid", params.Bid.String()),
		)

		if err := o.runCycle(ctx, order.ID, params.Bid); err != nil {
			return err
		}
	}
}

// runCycle monitors the scrum and, once it resolves, walks the buy-down
// decision into the straddle. Both a filled scrum and a canceled one (whose
// partial-fill race has been resolved) proceed to the buy-down decision.
func (o *Orchestrator) runCycle(ctx context.Context, orderID string, bid decimal.Decimal) error {
	if err := o.monitorScrum(ctx, orderID, bid); err != nil {
		return err
	}
	return o.buyDownDecision(ctx, bid)
}

// monitorScrum polls the scrum order until it fills or the market outbids
// it, in which case the order is canceled. A pass-through "NotFound" on the
// detail fetch means the just-placed order has not propagated yet.
func (o *Orchestrator) monitorScrum(ctx context.Context, orderID string, bid decimal.Decimal) error {
	for {
		order, err := o.ex.GetOrder(ctx, orderID)
		if err != nil && !exchange.IsNotFound(err) && !exchange.IsOrderDone(err) {
			return err
		}
		if err == nil && order.Filled() {
			o.logger.Info("The SCRUM filled", zap.String("order_id", orderID))
			return o.handleFilledBuy(ctx, order)
		}

		outbid, err := o.pricing.Outbid(ctx, bid)
		if err != nil {
			return err
		}
		if outbid {
			return o.cancelBuy(ctx, orderID)
		}
	}
}

// cancelBuy requests cancellation of a buy order and resolves the three
// possible outcomes: confirmed cancel (check for a partial fill), "Order
// already done" (the order filled first; handle it as a fill), or repeated
// "NotFound" until the bounded retry budget runs out.
func (o *Orchestrator) cancelBuy(ctx context.Context, orderID string) error {
	tries := o.cfg.Trading.CancelRetries

	for {
		canceled, err := o.ex.CancelOrder(ctx, orderID)
		switch {
		case err == nil && containsID(canceled, orderID):
			o.logger.Info("SUCCESS canceling", zap.String("order_id", orderID))
			return o.watcher.CheckForPartialBuy(ctx, orderID)

		case exchange.IsOrderDone(err):
			o.logger.Info("FAILURE canceling, order already done", zap.String("order_id", orderID))
			return o.filledBeforeCancel(ctx, orderID)

		case exchange.IsNotFound(err):
			tries--
			if tries <= 0 {
				o.logger.Error("Cancel retry budget exhausted", zap.String("order_id", orderID))
				return fmt.Errorf("canceling order %s: %w", orderID, ErrCancelRetriesExhausted)
			}
			o.logger.Warn("'NotFound' on cancel",
				zap.String("order_id", orderID),
				zap.Int("retries_left", tries),
			)

		case err != nil:
			return err

		default:
			// 200 response that does not name the order id: the cancel has
			// not propagated. Counts against the retry budget.
			tries--
			if tries <= 0 {
				return fmt.Errorf("canceling order %s: %w", orderID, ErrCancelRetriesExhausted)
			}
			o.logger.Warn("Cancel response did not name the order",
				zap.String("order_id", orderID),
				zap.Strings("response", canceled),
			)
		}
	}
}

// filledBeforeCancel handles an order that filled before the cancel could
// apply. The detail record can briefly disagree with the cancel response, so
// it is polled until it reads settled.
func (o *Orchestrator) filledBeforeCancel(ctx context.Context, orderID string) error {
	for {
		order, err := o.ex.GetOrder(ctx, orderID)
		if err != nil {
			if exchange.IsNotFound(err) || exchange.IsOrderDone(err) {
				continue
			}
			return err
		}
		if !order.Settled {
			o.logger.Error("Order returned as already done on cancel but not retrieved as settled",
				zap.String("order_id", orderID),
			)
			continue
		}
		return o.handleFilledBuy(ctx, order)
	}
}

// handleFilledBuy records the fill and places the matching sell.
func (o *Orchestrator) handleFilledBuy(ctx context.Context, order *exchange.Order) error {
	o.state.ConsecutiveBuys++
	_, err := o.watcher.SellPurchase(ctx, order)
	return err
}

// buyDownDecision chooses between laddering straight down and cooling off
// first. Every chillConsecutiveBuys fills the cycle pauses to cap exposure.
func (o *Orchestrator) buyDownDecision(ctx context.Context, previousBid decimal.Decimal) error {
	if o.state.ConsecutiveBuys%o.cfg.Trading.ChillConsecutiveBuys == 0 {
		if err := o.chill(ctx); err != nil {
			return err
		}
	}

	params := o.pricing.BuyDownParams(previousBid)
	order, err := o.placeBuy(ctx, params)
	if err != nil {
		return err
	}
	o.logger.Info("BUY DOWN placed",
		zap.String("order_id", order.ID),
		zap.String("bid", params.Bid.String()),
	)

	return o.straddle(ctx, order.ID, params.Bid)
}

// chill blocks until a pending sell executes or the configured wait
// elapses.
func (o *Orchestrator) chill(ctx context.Context) error {
	start := o.now()
	o.logger.Info("No trade zone in effect",
		zap.Int("consecutive_buys", o.state.ConsecutiveBuys),
		zap.Duration("wait_time", o.cfg.Trading.ChillWaitTime),
	)

	for {
		executed, err := o.sellsExecuted(ctx)
		if err != nil {
			return err
		}
		if executed {
			o.logger.Info("Sell(s) executed during chill")
			return nil
		}
		if o.now().Sub(start) >= o.cfg.Trading.ChillWaitTime {
			o.logger.Info("Wait time expired, resuming trading")
			return nil
		}
		if err := o.sleep(ctx, chillPollPause); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) sellsExecuted(ctx context.Context) (bool, error) {
	openOrders, err := o.ex.ListOpenOrders(ctx)
	if err != nil {
		return false, err
	}
	openSells := filterSide(openOrders, exchange.SideSell)

	soldIDs, err := o.watcher.FindExecutedSells(ctx, openSells)
	if err != nil {
		return false, err
	}
	return len(soldIDs) > 0, nil
}

// straddle concurrently monitors the active buy and every pending sell by
// interleaving the two checks in one loop. It returns when no pending sells
// remain, sending the cycle back to a fresh scrum.
func (o *Orchestrator) straddle(ctx context.Context, buyOrderID string, bid decimal.Decimal) error {
	o.activeBuyID = buyOrderID
	o.activeBid = bid

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		sweep, err := o.watcher.SweepSells(ctx)
		if err != nil {
			return err
		}

		if sweep.Sold > 0 {
			done, err := o.handleSoldDuringStraddle(ctx, sweep)
			if done || err != nil {
				return err
			}
			continue
		}

		if o.activeBuyID == "" {
			// The active buy was canceled by the exchange; only the sell
			// side is monitored until the ladder clears.
			continue
		}
		if err := o.checkBuySide(ctx); err != nil {
			return err
		}
	}
}

// handleSoldDuringStraddle reacts to newly executed sells: the active buy is
// canceled, and the ladder either ends (nothing pending), rebuys across a
// price gap, or continues straight down. Returns done=true when the cycle
// should restart from a scrum.
func (o *Orchestrator) handleSoldDuringStraddle(ctx context.Context, sweep *SellSweep) (bool, error) {
	o.logger.Info("SELL(s) FILLED", zap.Int("count", sweep.Sold))

	if o.activeBuyID != "" {
		if err := o.cancelBuy(ctx, o.activeBuyID); err != nil {
			return false, err
		}
		o.activeBuyID = ""
	}

	if sweep.Pending == 0 {
		return true, nil
	}

	gap, err := o.backfillPriceGap(sweep.HighestSold)
	if err != nil {
		return false, err
	}
	if !o.cfg.Trading.OrderBackfilling && gap {
		params, err := o.pricing.RebuyParams()
		if err != nil {
			return false, err
		}
		order, err := o.placeBuy(ctx, params)
		if err != nil {
			return false, err
		}
		o.logger.Info("REBUY placed",
			zap.String("order_id", order.ID),
			zap.String("bid", params.Bid.String()),
		)
		o.activeBuyID = order.ID
		o.activeBid = params.Bid
		return false, nil
	}

	params := o.pricing.BuyDownParams(o.activeBid)
	order, err := o.placeBuy(ctx, params)
	if err != nil {
		return false, err
	}
	o.logger.Info("BUY DOWN placed",
		zap.String("order_id", order.ID),
		zap.String("bid", params.Bid.String()),
	)
	o.activeBuyID = order.ID
	o.activeBid = params.Bid
	return false, nil
}

// backfillPriceGap reports whether the gap between the lowest pending ask
// and the highest just-sold price exceeds the buy-down interval.
func (o *Orchestrator) backfillPriceGap(highestSold decimal.Decimal) (bool, error) {
	lowestAsk, err := models.LowestPendingAsk(o.db, o.cfg.Trading.ProductID)
	if err != nil {
		return false, err
	}
	gap := lowestAsk.Sub(highestSold)

	if gap.GreaterThan(o.cfg.Trading.BuyDownInterval) {
		o.logger.Info("Backfill price gap encountered",
			zap.String("gap", gap.String()),
			zap.Bool("order_backfilling", o.cfg.Trading.OrderBackfilling),
		)
		return true, nil
	}
	return false, nil
}

// checkBuySide polls the active buy. A fill records the trade, places its
// sell, and ladders the next rung; a cancel (self-trade prevention) stops
// monitoring that buy.
func (o *Orchestrator) checkBuySide(ctx context.Context) error {
	order, err := o.ex.GetOrder(ctx, o.activeBuyID)
	if err != nil {
		if exchange.IsNotFound(err) || exchange.IsOrderDone(err) {
			return nil
		}
		return err
	}
	if !order.Settled {
		return nil
	}

	switch order.DoneReason {
	case exchange.DoneReasonFilled:
		o.logger.Info("BUY DOWN FILLED", zap.String("order_id", o.activeBuyID))
		if err := o.handleFilledBuy(ctx, order); err != nil {
			return err
		}

		if o.state.ConsecutiveBuys%o.cfg.Trading.ChillConsecutiveBuys == 0 {
			if err := o.chill(ctx); err != nil {
				return err
			}
		}
		params := o.pricing.BuyDownParams(o.activeBid)
		next, err := o.placeBuy(ctx, params)
		if err != nil {
			return err
		}
		o.logger.Info("BUY DOWN placed",
			zap.String("order_id", next.ID),
			zap.String("bid", params.Bid.String()),
		)
		o.activeBuyID = next.ID
		o.activeBid = params.Bid

	case exchange.DoneReasonCanceled:
		o.logger.Warn("Possible STP cancel for buy order", zap.String("order_id", o.activeBuyID))
		o.activeBuyID = ""
	}
	return nil
}

// placeBuy blocks until the buy is affordable, then places it.
func (o *Orchestrator) placeBuy(ctx context.Context, params BidParams) (*exchange.Order, error) {
	for {
		affordable, err := o.pricing.Affordable(ctx, params)
		if err != nil {
			return nil, err
		}
		if affordable {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return o.ex.PlaceLimitBuy(ctx, exchange.LimitOrderParams{
		ProductID: o.cfg.Trading.ProductID,
		Price:     params.Bid,
		Size:      params.Quantity,
		ClientOID: uuid.NewString(),
	})
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
