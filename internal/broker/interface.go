// Package broker defines the terminal boundary: the Broker interface over
// the MetaTrader gateway, its typed errors and wire enums, plus decorators
// for circuit breaking and per-account session serialization.
package broker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
)

// Broker defines the interface for interacting with the broker terminal.
// Positions and orders are remote state: callers hold ticket numbers only
// and re-fetch before any mutation.
type Broker interface {
	// Session
	Login() error
	AccountInfo() (*AccountInfo, error)
	ServerTime() (time.Time, error)

	// Market data
	Symbols() ([]string, error)
	SymbolInfo(symbol string) (*SymbolInfo, error)
	Tick(symbol string) (*Tick, error)

	// Open state
	Positions() ([]PositionItem, error)
	PositionByTicket(ticket int64) (*PositionItem, error)
	PendingOrders() ([]OrderItem, error)
	OrderByTicket(ticket int64) (*OrderItem, error)

	// Trading
	OrderSend(req *OrderRequest) (*OrderResult, error)
}

// SessionBroker serializes calls onto the single stateful terminal session:
// trading and login calls hold the session exclusively, independent reads
// share a wider permit pool.
type SessionBroker struct {
	broker  Broker
	session *semaphore.Weighted
	reads   *semaphore.Weighted
}

// Ensure SessionBroker implements Broker at compile time.
var _ Broker = (*SessionBroker)(nil)

// NewSessionBroker wraps broker with per-account call serialization.
func NewSessionBroker(broker Broker) *SessionBroker {
	return &SessionBroker{
		broker:  broker,
		session: semaphore.NewWeighted(1),
		reads:   semaphore.NewWeighted(3),
	}
}

func (s *SessionBroker) exclusive(fn func() error) error {
	if err := s.session.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer s.session.Release(1)
	return fn()
}

func (s *SessionBroker) shared(fn func() error) error {
	if err := s.reads.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer s.reads.Release(1)
	return fn()
}

// Login holds the session exclusively.
func (s *SessionBroker) Login() error {
	return s.exclusive(func() error { return s.broker.Login() })
}

// OrderSend holds the session exclusively.
func (s *SessionBroker) OrderSend(req *OrderRequest) (res *OrderResult, err error) {
	err = s.exclusive(func() error { res, err = s.broker.OrderSend(req); return err })
	return res, err
}

// AccountInfo is an independent read.
func (s *SessionBroker) AccountInfo() (info *AccountInfo, err error) {
	err = s.shared(func() error { info, err = s.broker.AccountInfo(); return err })
	return info, err
}

// ServerTime is an independent read.
func (s *SessionBroker) ServerTime() (t time.Time, err error) {
	err = s.shared(func() error { t, err = s.broker.ServerTime(); return err })
	return t, err
}

// Symbols is an independent read.
func (s *SessionBroker) Symbols() (syms []string, err error) {
	err = s.shared(func() error { syms, err = s.broker.Symbols(); return err })
	return syms, err
}

// SymbolInfo is an independent read.
func (s *SessionBroker) SymbolInfo(symbol string) (info *SymbolInfo, err error) {
	err = s.shared(func() error { info, err = s.broker.SymbolInfo(symbol); return err })
	return info, err
}

// Tick is an independent read.
func (s *SessionBroker) Tick(symbol string) (tick *Tick, err error) {
	err = s.shared(func() error { tick, err = s.broker.Tick(symbol); return err })
	return tick, err
}

// Positions is an independent read.
func (s *SessionBroker) Positions() (items []PositionItem, err error) {
	err = s.shared(func() error { items, err = s.broker.Positions(); return err })
	return items, err
}

// PositionByTicket is an independent read.
func (s *SessionBroker) PositionByTicket(ticket int64) (item *PositionItem, err error) {
	err = s.shared(func() error { item, err = s.broker.PositionByTicket(ticket); return err })
	return item, err
}

// PendingOrders is an independent read.
func (s *SessionBroker) PendingOrders() (items []OrderItem, err error) {
	err = s.shared(func() error { items, err = s.broker.PendingOrders(); return err })
	return items, err
}

// OrderByTicket is an independent read.
func (s *SessionBroker) OrderByTicket(ticket int64) (item *OrderItem, err error) {
	err = s.shared(func() error { item, err = s.broker.OrderByTicket(ticket); return err })
	return item, err
}

// CircuitBreakerBroker wraps a Broker with circuit breaker functionality
type CircuitBreakerBroker struct {
	broker  Broker
	breaker *gobreaker.CircuitBreaker
}

// Ensure CircuitBreakerBroker implements Broker at compile time.
var _ Broker = (*CircuitBreakerBroker)(nil)

// execCircuitBreaker is a generic helper for circuit breaker wrapper methods
func execCircuitBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	broker Broker,
	fn func(Broker) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(broker) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// CircuitBreakerSettings configures circuit breaker behavior
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerBroker creates a new CircuitBreakerBroker with sensible defaults
func NewCircuitBreakerBroker(broker Broker) *CircuitBreakerBroker {
	return NewCircuitBreakerBrokerWithSettings(broker, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerBrokerWithSettings creates a CircuitBreakerBroker with custom settings
func NewCircuitBreakerBrokerWithSettings(broker Broker, settings CircuitBreakerSettings) *CircuitBreakerBroker {
	gbSettings := gobreaker.Settings{
		Name:        "BrokerCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &CircuitBreakerBroker{
		broker:  broker,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// Login wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) Login() error {
	_, err := execCircuitBreaker(c.breaker, c.broker, func(b Broker) (struct{}, error) {
		return struct{}{}, b.Login()
	})
	return err
}

// AccountInfo wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) AccountInfo() (*AccountInfo, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (*AccountInfo, error) { return b.AccountInfo() })
}

// ServerTime wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) ServerTime() (time.Time, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (time.Time, error) { return b.ServerTime() })
}

// Symbols wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) Symbols() ([]string, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) ([]string, error) { return b.Symbols() })
}

// SymbolInfo wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) SymbolInfo(symbol string) (*SymbolInfo, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (*SymbolInfo, error) { return b.SymbolInfo(symbol) })
}

// Tick wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) Tick(symbol string) (*Tick, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (*Tick, error) { return b.Tick(symbol) })
}

// Positions wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) Positions() ([]PositionItem, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) ([]PositionItem, error) { return b.Positions() })
}

// PositionByTicket wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) PositionByTicket(ticket int64) (*PositionItem, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (*PositionItem, error) {
		return b.PositionByTicket(ticket)
	})
}

// PendingOrders wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) PendingOrders() ([]OrderItem, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) ([]OrderItem, error) { return b.PendingOrders() })
}

// OrderByTicket wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) OrderByTicket(ticket int64) (*OrderItem, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (*OrderItem, error) { return b.OrderByTicket(ticket) })
}

// OrderSend wraps the underlying broker call with circuit breaker
func (c *CircuitBreakerBroker) OrderSend(req *OrderRequest) (*OrderResult, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (*OrderResult, error) { return b.OrderSend(req) })
}
