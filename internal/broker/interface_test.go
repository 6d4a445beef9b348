package broker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionBrokerSerializesTrading(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	fake := &FakeBroker{
		OrderSendFunc: func(req *OrderRequest) (*OrderResult, error) {
			cur := inFlight.Add(1)
			for {
				prev := maxInFlight.Load()
				if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return &OrderResult{Retcode: RetcodeDone}, nil
		},
	}
	sb := NewSessionBroker(fake)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sb.OrderSend(&OrderRequest{Action: ActionDeal, Symbol: "XAUUSD"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load(), "trading calls must never overlap")
	assert.Len(t, fake.Sent(), 8)
}

func TestSessionBrokerPassesThroughReads(t *testing.T) {
	fake := &FakeBroker{
		TickFunc: func(symbol string) (*Tick, error) {
			return &Tick{Bid: 1850, Ask: 1850.3}, nil
		},
	}
	sb := NewSessionBroker(fake)

	tick, err := sb.Tick("XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, 1850.0, tick.Bid)

	positions, err := sb.Positions()
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	boom := errors.New("gateway down")
	fake := &FakeBroker{
		AccountInfoFunc: func() (*AccountInfo, error) { return nil, boom },
	}
	cb := NewCircuitBreakerBrokerWithSettings(fake, CircuitBreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.6,
	})

	for i := 0; i < 3; i++ {
		_, err := cb.AccountInfo()
		assert.ErrorIs(t, err, boom)
	}

	// Tripped: the breaker now fails fast without touching the broker.
	_, err := cb.AccountInfo()
	require.Error(t, err)
	assert.NotErrorIs(t, err, boom)
}

func TestCircuitBreakerPassesSuccesses(t *testing.T) {
	fake := &FakeBroker{}
	cb := NewCircuitBreakerBroker(fake)

	require.NoError(t, cb.Login())

	info, err := cb.AccountInfo()
	require.NoError(t, err)
	assert.Equal(t, int64(1001), info.Login)

	res, err := cb.OrderSend(&OrderRequest{Action: ActionDeal, Symbol: "XAUUSD", Volume: 0.1})
	require.NoError(t, err)
	assert.Equal(t, RetcodeDone, res.Retcode)
}
