package exchange

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Gateway wraps the raw API with the two behaviors every call site relies
// on: a minimum interval between outbound requests, and indefinite retry of
// transient failures. Callers never see a transient error; a Gateway call
// returns a decoded payload, one of the two pass-through outcomes
// ("NotFound", "Order already done"), or the context's cancellation error.
type Gateway struct {
	api     API
	limiter *rate.Limiter
	logger  *zap.Logger
}

// ensure Gateway implements the interface
var _ API = (*Gateway)(nil)

// NewGateway creates a Gateway enforcing minInterval between requests.
func NewGateway(api API, minInterval time.Duration, logger *zap.Logger) *Gateway {
	return &Gateway{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		logger:  logger,
	}
}

// call runs one operation through the throttle/retry loop. Transient errors
// are logged with the raw response and retried at the throttle cadence with
// no bound and no backoff growth.
func call[T any](ctx context.Context, g *Gateway, op string, fn func() (T, error)) (T, error) {
	var zero T
	for {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, err
		}

		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		if isPassThrough(err) {
			return zero, err
		}

		g.logger.Error("Exchange request failed, retrying",
			zap.String("operation", op),
			zap.Error(err),
		)

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}
}

func (g *Gateway) GetOrderBook(ctx context.Context, level int) (*OrderBook, error) {
	return call(ctx, g, "order_book", func() (*OrderBook, error) {
		return g.api.GetOrderBook(ctx, level)
	})
}

func (g *Gateway) ListOpenOrders(ctx context.Context) ([]Order, error) {
	return call(ctx, g, "open_orders", func() ([]Order, error) {
		return g.api.ListOpenOrders(ctx)
	})
}

func (g *Gateway) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return call(ctx, g, "order", func() (*Order, error) {
		return g.api.GetOrder(ctx, orderID)
	})
}

func (g *Gateway) ListFills(ctx context.Context, orderID string) ([]Fill, error) {
	return call(ctx, g, "fills", func() ([]Fill, error) {
		return g.api.ListFills(ctx, orderID)
	})
}

func (g *Gateway) ListAccounts(ctx context.Context) ([]Account, error) {
	return call(ctx, g, "accounts", func() ([]Account, error) {
		return g.api.ListAccounts(ctx)
	})
}

func (g *Gateway) PlaceLimitBuy(ctx context.Context, params LimitOrderParams) (*Order, error) {
	return call(ctx, g, "buy_order", func() (*Order, error) {
		return g.api.PlaceLimitBuy(ctx, params)
	})
}

func (g *Gateway) PlaceLimitSell(ctx context.Context, params LimitOrderParams) (*Order, error) {
	return call(ctx, g, "sell_order", func() (*Order, error) {
		return g.api.PlaceLimitSell(ctx, params)
	})
}

func (g *Gateway) CancelOrder(ctx context.Context, orderID string) ([]string, error) {
	return call(ctx, g, "cancel_order", func() ([]string, error) {
		return g.api.CancelOrder(ctx, orderID)
	})
}

func (g *Gateway) ListProducts(ctx context.Context) ([]Product, error) {
	return call(ctx, g, "products", func() ([]Product, error) {
		return g.api.ListProducts(ctx)
	})
}

func (g *Gateway) ListCurrencies(ctx context.Context) ([]Currency, error) {
	return call(ctx, g, "currencies", func() ([]Currency, error) {
		return g.api.ListCurrencies(ctx)
	})
}
