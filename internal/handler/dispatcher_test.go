package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamidju/teletrader/internal/broker"
	"github.com/hamidju/teletrader/internal/config"
	"github.com/hamidju/teletrader/internal/models"
	"github.com/hamidju/teletrader/internal/orders"
	"github.com/hamidju/teletrader/internal/storage"
)

type dispatchFixture struct {
	cfg    *config.Config
	store  *storage.MockStore
	broker *broker.FakeBroker
	d      *Dispatcher
}

func newDispatchFixture(t *testing.T, mutate func(*config.Config)) *dispatchFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.MetaTrader.Lot = "0.4"
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	fake := &broker.FakeBroker{
		TickFunc: func(symbol string) (*broker.Tick, error) {
			return &broker.Tick{Bid: 1850.0, Ask: 1850.3}, nil
		},
	}
	store := storage.NewMockStore()

	d := NewDispatcher(
		cfg, store, fake,
		orders.NewValidator(fake, nil),
		orders.NewSizer(fake, nil),
		orders.NewCompiler(fake, orders.Policy{}, nil),
		nil, nil,
	)
	return &dispatchFixture{cfg: cfg, store: store, broker: fake, d: d}
}

func buySignal() *models.ParsedSignal {
	return &models.ParsedSignal{
		Action:      models.ActionBuy,
		Symbol:      "XAUUSD",
		FirstPrice:  1845,
		StopLoss:    1840,
		TakeProfits: []float64{1853, 1856, 1860},
	}
}

func TestDispatchOpensAndPersists(t *testing.T) {
	f := newDispatchFixture(t, nil)
	meta := Meta{ChatID: 123, MessageID: 42, ChannelTitle: "gold vip"}

	require.NoError(t, f.d.Dispatch(meta, buySignal()))

	sent := f.broker.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, broker.ActionPending, sent[0].Action)
	assert.Equal(t, broker.OrderTypeBuyLimit, sent[0].Type)
	assert.Equal(t, 0.4, sent[0].Volume)
	assert.Equal(t, 1860.0, sent[0].TP, "the broker gets the furthest target")

	require.Len(t, f.store.Signals, 1)
	var sig *models.Signal
	for _, s := range f.store.Signals {
		sig = s
	}
	assert.Equal(t, 1845.0, sig.OpenPrice)
	assert.Equal(t, []float64{1853, 1856, 1860}, sig.TakeProfits)

	require.Len(t, f.store.Positions, 1)
	for _, p := range f.store.Positions {
		assert.True(t, p.IsFirst)
		assert.Equal(t, sig.ID, p.SignalID)
		assert.Equal(t, int64(1001), p.UserID)
	}
}

func TestDispatchSecondEntryHighRisk(t *testing.T) {
	f := newDispatchFixture(t, func(c *config.Config) { c.MetaTrader.HighRisk = true })

	sig := buySignal()
	// Listed far entry first; the dispatcher must put the nearer one first.
	sig.FirstPrice = 1842
	sig.SecondPrice = 1845

	require.NoError(t, f.d.Dispatch(Meta{ChatID: 123, MessageID: 42}, sig))

	sent := f.broker.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, 1845.0, sent[0].Price, "first leg is the entry nearer the market")
	assert.Equal(t, 1842.0, sent[1].Price)

	require.Len(t, f.store.Signals, 1)
	for _, s := range f.store.Signals {
		assert.Equal(t, 1845.0, s.OpenPrice)
		assert.Equal(t, 1842.0, s.SecondPrice)
	}
	require.Len(t, f.store.Positions, 2)

	var firsts, seconds int
	for _, p := range f.store.Positions {
		if p.IsFirst {
			firsts++
		}
		if p.IsSecond {
			seconds++
		}
	}
	assert.Equal(t, 1, firsts)
	assert.Equal(t, 1, seconds)
}

func TestDispatchSecondEntryWithoutHighRisk(t *testing.T) {
	f := newDispatchFixture(t, nil)

	sig := buySignal()
	sig.SecondPrice = 1842

	require.NoError(t, f.d.Dispatch(Meta{ChatID: 123, MessageID: 42}, sig))

	assert.Len(t, f.broker.Sent(), 1, "the second leg is recorded but not traded")
	for _, s := range f.store.Signals {
		assert.Equal(t, 1842.0, s.SecondPrice)
	}
	assert.Len(t, f.store.Positions, 1)
}

func TestDispatchReusesExactSignal(t *testing.T) {
	f := newDispatchFixture(t, nil)
	meta := Meta{ChatID: 123, MessageID: 42}

	require.NoError(t, f.d.Dispatch(meta, buySignal()))

	// Same prices resent as a new message: the signal row must not double.
	// The fake broker reports no live tickets, so the open itself goes
	// through again.
	meta.MessageID = 43
	require.NoError(t, f.d.Dispatch(meta, buySignal()))

	assert.Len(t, f.store.Signals, 1, "an exact resend reuses the signal row")
	assert.Len(t, f.store.Positions, 2, "each accepted open still gets its position row")
}

func TestDispatchGates(t *testing.T) {
	t.Run("channel blacklist", func(t *testing.T) {
		f := newDispatchFixture(t, func(c *config.Config) {
			c.Telegram.Channels = config.ChannelFilters{BlackList: []string{"spam channel"}}
		})
		require.NoError(t, f.d.Dispatch(Meta{ChannelTitle: "spam channel"}, buySignal()))
		assert.Empty(t, f.broker.Sent())
		assert.Empty(t, f.store.Signals)
	})

	t.Run("symbol whitelist", func(t *testing.T) {
		f := newDispatchFixture(t, func(c *config.Config) {
			c.MetaTrader.Symbols = config.ChannelFilters{WhiteList: []string{"DJIUSD"}}
		})
		require.NoError(t, f.d.Dispatch(Meta{}, buySignal()))
		assert.Empty(t, f.broker.Sent())
	})

	t.Run("outside trading hours", func(t *testing.T) {
		f := newDispatchFixture(t, func(c *config.Config) {
			c.Timer = config.TimerConfig{Start: "09:00", End: "10:00"}
		})
		f.d.now = func() time.Time {
			return time.Date(2024, 1, 8, 3, 0, 0, 0, time.Local)
		}
		require.NoError(t, f.d.Dispatch(Meta{}, buySignal()))
		assert.Empty(t, f.broker.Sent())
	})

	t.Run("incomplete signal", func(t *testing.T) {
		f := newDispatchFixture(t, nil)
		sig := buySignal()
		sig.StopLoss = 0
		require.NoError(t, f.d.Dispatch(Meta{}, sig))
		assert.Empty(t, f.broker.Sent())
	})
}

func TestDispatchDuplicateTicketSkipsPersistence(t *testing.T) {
	f := newDispatchFixture(t, nil)
	f.broker.PendingOrdersFunc = func() ([]broker.OrderItem, error) {
		return []broker.OrderItem{{
			Ticket: 7001, Symbol: "XAUUSD", Type: broker.OrderTypeBuyLimit,
			PriceOpen: 1845, SL: 1840, TP: 1860, Magic: broker.Magic,
		}}, nil
	}

	require.NoError(t, f.d.Dispatch(Meta{ChatID: 123, MessageID: 42}, buySignal()))

	assert.Empty(t, f.broker.Sent(), "the duplicate never reaches the terminal")
	assert.Empty(t, f.store.Signals, "nothing to persist for a suppressed open")
}

func TestAggregateTakeProfit(t *testing.T) {
	assert.Equal(t, 1860.0, aggregateTakeProfit(models.ActionBuy, []float64{1853, 1860, 1856}))
	assert.Equal(t, 1835.0, aggregateTakeProfit(models.ActionSell, []float64{1845, 1835, 1840}))
	assert.Zero(t, aggregateTakeProfit(models.ActionBuy, nil))
}
