package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"grid-trade-bot-go/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// API is the raw exchange surface the bot consumes. Both the REST client and
// the Gateway implement it, so callers can take either.
type API interface {
	GetOrderBook(ctx context.Context, level int) (*OrderBook, error)
	ListOpenOrders(ctx context.Context) ([]Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListFills(ctx context.Context, orderID string) ([]Fill, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	PlaceLimitBuy(ctx context.Context, params LimitOrderParams) (*Order, error)
	PlaceLimitSell(ctx context.Context, params LimitOrderParams) (*Order, error)
	CancelOrder(ctx context.Context, orderID string) ([]string, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListCurrencies(ctx context.Context) ([]Currency, error)
}

// RestClient is a client for the exchange REST API. It performs exactly one
// request per call; throttling and retries live in the Gateway.
type RestClient struct {
	client     *resty.Client
	key        string
	secret     string
	passphrase string
	productID  string
	logger     *zap.Logger
}

// ensure RestClient implements the interface
var _ API = (*RestClient)(nil)

// NewRestClient creates a new exchange REST API client.
func NewRestClient(cfg *config.Config, logger *zap.Logger) *RestClient {
	client := resty.New().SetBaseURL(cfg.Exchange.BaseURL)

	return &RestClient{
		client:     client,
		key:        cfg.Exchange.Key,
		secret:     cfg.Exchange.Secret,
		passphrase: cfg.Exchange.Passphrase,
		productID:  cfg.Trading.ProductID,
		logger:     logger,
	}
}

// sign produces the request signature: HMAC-SHA256 over
// timestamp + method + path + body, keyed with the base64-decoded secret.
func (c *RestClient) sign(timestamp, method, path, body string) string {
	key, err := base64.StdEncoding.DecodeString(c.secret)
	if err != nil {
		// A non-base64 secret will fail auth anyway; sign with the raw bytes.
		key = []byte(c.secret)
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(timestamp + method + path + body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// doRequest executes one signed request. HTTP-level error responses are
// returned as *APIError so the Gateway can classify them.
func (c *RestClient) doRequest(ctx context.Context, method, path, body string, req *resty.Request) (*resty.Response, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	req.SetContext(ctx).
		SetHeader("CB-ACCESS-KEY", c.key).
		SetHeader("CB-ACCESS-SIGN", c.sign(timestamp, method, path, body)).
		SetHeader("CB-ACCESS-TIMESTAMP", timestamp).
		SetHeader("CB-ACCESS-PASSPHRASE", c.passphrase).
		SetHeader("Content-Type", "application/json")

	c.logger.Debug("Executing request", zap.String("method", method), zap.String("path", path))
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return nil, newAPIError(resp.Body(), resp.StatusCode())
	}
	return resp, nil
}

// GetOrderBook fetches the order book for the configured product. Level 1
// returns only the best bid and ask; level 2 the top 50 aggregated levels.
func (c *RestClient) GetOrderBook(ctx context.Context, level int) (*OrderBook, error) {
	var book OrderBook
	path := fmt.Sprintf("/products/%s/book?level=%d", c.productID, level)

	req := c.client.R().SetResult(&book)
	if _, err := c.doRequest(ctx, "GET", path, "", req); err != nil {
		return nil, err
	}
	return &book, nil
}

// ListOpenOrders fetches all open orders for the configured product.
func (c *RestClient) ListOpenOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	path := fmt.Sprintf("/orders?status=open&product_id=%s", c.productID)

	req := c.client.R().SetResult(&orders)
	if _, err := c.doRequest(ctx, "GET", path, "", req); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder fetches the detail record for one order.
func (c *RestClient) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	path := "/orders/" + orderID

	req := c.client.R().SetResult(&order)
	if _, err := c.doRequest(ctx, "GET", path, "", req); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListFills fetches the executions recorded against an order. The exchange
// can report an order settled before its fills are listable.
func (c *RestClient) ListFills(ctx context.Context, orderID string) ([]Fill, error) {
	var fills []Fill
	path := "/fills?order_id=" + orderID

	req := c.client.R().SetResult(&fills)
	if _, err := c.doRequest(ctx, "GET", path, "", req); err != nil {
		return nil, err
	}
	return fills, nil
}

// ListAccounts fetches all currency balances.
func (c *RestClient) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account

	req := c.client.R().SetResult(&accounts)
	if _, err := c.doRequest(ctx, "GET", "/accounts", "", req); err != nil {
		return nil, err
	}
	return accounts, nil
}

type placeOrderRequest struct {
	ProductID string `json:"product_id"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	ClientOID string `json:"client_oid,omitempty"`
	STP       string `json:"stp,omitempty"`
}

func (c *RestClient) placeLimitOrder(ctx context.Context, side string, params LimitOrderParams, stp string) (*Order, error) {
	productID := params.ProductID
	if productID == "" {
		productID = c.productID
	}
	body := placeOrderRequest{
		ProductID: productID,
		Side:      side,
		Type:      "limit",
		Price:     params.Price.String(),
		Size:      params.Size.String(),
		ClientOID: params.ClientOID,
		STP:       stp,
	}

	// Marshal once so the signed payload is byte-identical to what is sent.
	raw, err := json.Marshal(&body)
	if err != nil {
		return nil, err
	}

	var order Order
	req := c.client.R().SetBody(raw).SetResult(&order)
	if _, err := c.doRequest(ctx, "POST", "/orders", string(raw), req); err != nil {
		return nil, err
	}

	c.logger.Info("Order placed",
		zap.String("side", side),
		zap.String("order_id", order.ID),
		zap.String("price", params.Price.String()),
		zap.String("size", params.Size.String()),
	)
	return &order, nil
}

// PlaceLimitBuy places a limit buy with cancel-newest self-trade prevention,
// so a buy crossing one of the bot's own sells is canceled by the exchange
// rather than matched.
func (c *RestClient) PlaceLimitBuy(ctx context.Context, params LimitOrderParams) (*Order, error) {
	return c.placeLimitOrder(ctx, SideBuy, params, "cn")
}

// PlaceLimitSell places a limit sell.
func (c *RestClient) PlaceLimitSell(ctx context.Context, params LimitOrderParams) (*Order, error) {
	return c.placeLimitOrder(ctx, SideSell, params, "")
}

// CancelOrder requests cancellation of an order. A successful response lists
// the canceled order ids; the order may still fill before the cancel
// propagates to the book.
func (c *RestClient) CancelOrder(ctx context.Context, orderID string) ([]string, error) {
	var canceled []string
	path := "/orders/" + orderID

	req := c.client.R().SetResult(&canceled)
	if _, err := c.doRequest(ctx, "DELETE", path, "", req); err != nil {
		return nil, err
	}
	return canceled, nil
}

// ListProducts fetches all tradable products.
func (c *RestClient) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product

	req := c.client.R().SetResult(&products)
	if _, err := c.doRequest(ctx, "GET", "/products", "", req); err != nil {
		return nil, err
	}
	return products, nil
}

// ListCurrencies fetches all listed currencies.
func (c *RestClient) ListCurrencies(ctx context.Context) ([]Currency, error) {
	var currencies []Currency

	req := c.client.R().SetResult(&currencies)
	if _, err := c.doRequest(ctx, "GET", "/currencies", "", req); err != nil {
		return nil, err
	}
	return currencies, nil
}
