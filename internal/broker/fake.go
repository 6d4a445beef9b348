package broker

import (
	"sync"
	"time"
)

// FakeBroker is a configurable in-memory Broker for tests. Unset function
// fields answer with empty defaults; OrderSend records every request.
type FakeBroker struct {
	LoginFunc            func() error
	AccountInfoFunc      func() (*AccountInfo, error)
	ServerTimeFunc       func() (time.Time, error)
	SymbolsFunc          func() ([]string, error)
	SymbolInfoFunc       func(symbol string) (*SymbolInfo, error)
	TickFunc             func(symbol string) (*Tick, error)
	PositionsFunc        func() ([]PositionItem, error)
	PositionByTicketFunc func(ticket int64) (*PositionItem, error)
	PendingOrdersFunc    func() ([]OrderItem, error)
	OrderByTicketFunc    func(ticket int64) (*OrderItem, error)
	OrderSendFunc        func(req *OrderRequest) (*OrderResult, error)

	mu   sync.Mutex
	sent []OrderRequest
}

// Ensure FakeBroker implements Broker at compile time.
var _ Broker = (*FakeBroker)(nil)

// Sent returns a copy of every order request seen so far.
func (f *FakeBroker) Sent() []OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]OrderRequest(nil), f.sent...)
}

// LastSent returns the most recent order request, or nil.
func (f *FakeBroker) LastSent() *OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	req := f.sent[len(f.sent)-1]
	return &req
}

func (f *FakeBroker) Login() error {
	if f.LoginFunc != nil {
		return f.LoginFunc()
	}
	return nil
}

func (f *FakeBroker) AccountInfo() (*AccountInfo, error) {
	if f.AccountInfoFunc != nil {
		return f.AccountInfoFunc()
	}
	return &AccountInfo{Login: 1001, Balance: 10000, Equity: 10000}, nil
}

func (f *FakeBroker) ServerTime() (time.Time, error) {
	if f.ServerTimeFunc != nil {
		return f.ServerTimeFunc()
	}
	return time.Unix(1700000000, 0), nil
}

func (f *FakeBroker) Symbols() ([]string, error) {
	if f.SymbolsFunc != nil {
		return f.SymbolsFunc()
	}
	return []string{"XAUUSD", "EURUSD", "DJIUSD"}, nil
}

func (f *FakeBroker) SymbolInfo(symbol string) (*SymbolInfo, error) {
	if f.SymbolInfoFunc != nil {
		return f.SymbolInfoFunc(symbol)
	}
	return &SymbolInfo{Name: symbol, Digits: 2, Point: 0.01, VolumeMin: 0.01, VolumeStep: 0.01}, nil
}

func (f *FakeBroker) Tick(symbol string) (*Tick, error) {
	if f.TickFunc != nil {
		return f.TickFunc(symbol)
	}
	return &Tick{Bid: 1850.0, Ask: 1850.3, Time: time.Unix(1700000000, 0)}, nil
}

func (f *FakeBroker) Positions() ([]PositionItem, error) {
	if f.PositionsFunc != nil {
		return f.PositionsFunc()
	}
	return nil, nil
}

func (f *FakeBroker) PositionByTicket(ticket int64) (*PositionItem, error) {
	if f.PositionByTicketFunc != nil {
		return f.PositionByTicketFunc(ticket)
	}
	return nil, &APIError{Code: 404, Msg: "position not found"}
}

func (f *FakeBroker) PendingOrders() ([]OrderItem, error) {
	if f.PendingOrdersFunc != nil {
		return f.PendingOrdersFunc()
	}
	return nil, nil
}

func (f *FakeBroker) OrderByTicket(ticket int64) (*OrderItem, error) {
	if f.OrderByTicketFunc != nil {
		return f.OrderByTicketFunc(ticket)
	}
	return nil, &APIError{Code: 404, Msg: "order not found"}
}

func (f *FakeBroker) OrderSend(req *OrderRequest) (*OrderResult, error) {
	f.mu.Lock()
	f.sent = append(f.sent, *req)
	f.mu.Unlock()
	if f.OrderSendFunc != nil {
		return f.OrderSendFunc(req)
	}
	return &OrderResult{Retcode: RetcodeDone, Order: int64(100000 + len(f.sent))}, nil
}
