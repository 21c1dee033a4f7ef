package exchange

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"

	DoneReasonFilled   = "filled"
	DoneReasonCanceled = "canceled"
)

// Order is the exchange's order detail record. Monetary fields arrive as
// decimal strings and are parsed lazily by callers; Settled flips true only
// once the order is fully done on the exchange side, which can lag the order
// disappearing from the open-orders listing.
type Order struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"product_id"`
	Side       string          `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	FilledSize decimal.Decimal `json:"filled_size"`
	FillFees   decimal.Decimal `json:"fill_fees"`
	Status     string          `json:"status"`
	Settled    bool            `json:"settled"`
	DoneReason string          `json:"done_reason"`
}

// Filled reports whether the order settled by filling.
func (o *Order) Filled() bool {
	return o.Settled && o.DoneReason == DoneReasonFilled
}

// Canceled reports whether the order settled by cancellation (e.g.
// self-trade prevention).
func (o *Order) Canceled() bool {
	return o.Settled && o.DoneReason == DoneReasonCanceled
}

// Fill is a single execution against an order. An order may settle through
// several fills at different prices.
type Fill struct {
	TradeID   int64           `json:"trade_id"`
	ProductID string          `json:"product_id"`
	OrderID   string          `json:"order_id"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Fee       decimal.Decimal `json:"fee"`
	Side      string          `json:"side"`
	Settled   bool            `json:"settled"`
}

// Notional is price times size for this fill.
func (f *Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Size)
}

// Account is a currency balance on the exchange.
type Account struct {
	ID        string          `json:"id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available"`
	Hold      decimal.Decimal `json:"hold"`
}

// BookEntry is one price level of the order book. The exchange encodes it as
// a heterogeneous array: ["price", "size", num_orders].
type BookEntry struct {
	Price     decimal.Decimal
	Size      decimal.Decimal
	NumOrders int64
}

// UnmarshalJSON decodes the array form of a book level.
func (e *BookEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 3 {
		return fmt.Errorf("book entry has %d elements, want 3", len(raw))
	}

	var priceStr, sizeStr string
	if err := json.Unmarshal(raw[0], &priceStr); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[1], &sizeStr); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[2], &e.NumOrders); err != nil {
		return err
	}

	var err error
	if e.Price, err = decimal.NewFromString(priceStr); err != nil {
		return err
	}
	e.Size, err = decimal.NewFromString(sizeStr)
	return err
}

// OrderBook holds bid and ask levels, best first.
type OrderBook struct {
	Bids []BookEntry `json:"bids"`
	Asks []BookEntry `json:"asks"`
}

// BestBid returns the highest bid on the book.
func (b *OrderBook) BestBid() (decimal.Decimal, error) {
	if len(b.Bids) == 0 {
		return decimal.Zero, fmt.Errorf("order book has no bids")
	}
	return b.Bids[0].Price, nil
}

// Product describes a tradable pair and its size/increment limits.
type Product struct {
	ID             string          `json:"id"`
	BaseCurrency   string          `json:"base_currency"`
	QuoteCurrency  string          `json:"quote_currency"`
	BaseMinSize    decimal.Decimal `json:"base_min_size"`
	QuoteIncrement decimal.Decimal `json:"quote_increment"`
}

// Currency describes a currency listed on the exchange.
type Currency struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	MinSize decimal.Decimal `json:"min_size"`
}

// LimitOrderParams carries the price and quantity of a limit order. ClientOID
// is an idempotency token generated at placement time.
type LimitOrderParams struct {
	ProductID string
	Price     decimal.Decimal
	Size      decimal.Decimal
	ClientOID string
}
