package trader

import (
	"context"

	"github.com/stretchr/testify/mock"

	"grid-trade-bot-go/internal/exchange"
)

// MockExchange is a mock implementation of the exchange API surface.
type MockExchange struct {
	mock.Mock
}

var _ exchange.API = (*MockExchange)(nil)

func (m *MockExchange) GetOrderBook(ctx context.Context, level int) (*exchange.OrderBook, error) {
	args := m.Called(ctx, level)
	if book := args.Get(0); book != nil {
		return book.(*exchange.OrderBook), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExchange) ListOpenOrders(ctx context.Context) ([]exchange.Order, error) {
	args := m.Called(ctx)
	if orders := args.Get(0); orders != nil {
		return orders.([]exchange.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExchange) GetOrder(ctx context.Context, orderID string) (*exchange.Order, error) {
	args := m.Called(ctx, orderID)
	if order := args.Get(0); order != nil {
		return order.(*exchange.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExchange) ListFills(ctx context.Context, orderID string) ([]exchange.Fill, error) {
	args := m.Called(ctx, orderID)
	if fills := args.Get(0); fills != nil {
		return fills.([]exchange.Fill), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExchange) ListAccounts(ctx context.Context) ([]exchange.Account, error) {
	args := m.Called(ctx)
	if accounts := args.Get(0); accounts != nil {
		return accounts.([]exchange.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExchange) PlaceLimitBuy(ctx context.Context, params exchange.LimitOrderParams) (*exchange.Order, error) {
	args := m.Called(ctx, params)
	if order := args.Get(0); order != nil {
		return order.(*exchange.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExchange) PlaceLimitSell(ctx context.Context, params exchange.LimitOrderParams) (*exchange.Order, error) {
	args := m.Called(ctx, params)
	if order := args.Get(0); order != nil {
		return order.(*exchange.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExchange) CancelOrder(ctx context.Context, orderID string) ([]string, error) {
	args := m.Called(ctx, orderID)
	if ids := args.Get(0); ids != nil {
		return ids.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExchange) ListProducts(ctx context.Context) ([]exchange.Product, error) {
	args := m.Called(ctx)
	if products := args.Get(0); products != nil {
		return products.([]exchange.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockExchange) ListCurrencies(ctx context.Context) ([]exchange.Currency, error) {
	args := m.Called(ctx)
	if currencies := args.Get(0); currencies != nil {
		return currencies.([]exchange.Currency), args.Error(1)
	}
	return nil, args.Error(1)
}
