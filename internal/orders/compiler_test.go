package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamidju/teletrader/internal/broker"
	"github.com/hamidju/teletrader/internal/models"
)

func TestDetermineOrderType(t *testing.T) {
	fake := quoteBroker(1850.0, 1850.3)
	c := NewCompiler(fake, Policy{}, nil)

	tests := []struct {
		name   string
		action models.Action
		price  float64
		want   broker.OrderType
	}{
		{"buy above ask", models.ActionBuy, 1855, broker.OrderTypeBuyStop},
		{"buy below ask", models.ActionBuy, 1845, broker.OrderTypeBuyLimit},
		{"sell above bid", models.ActionSell, 1855, broker.OrderTypeSellLimit},
		{"sell below bid", models.ActionSell, 1845, broker.OrderTypeSellStop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := c.DetermineOrderType("XAUUSD", tt.action, tt.price)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetermineOrderTypeMarketWindow(t *testing.T) {
	fake := quoteBroker(1850.0, 1850.3)
	c := NewCompiler(fake, Policy{MarketDistance: 1.0}, nil)

	got, quote, err := c.DetermineOrderType("XAUUSD", models.ActionBuy, 1850.8)
	require.NoError(t, err)
	assert.Equal(t, broker.OrderTypeBuy, got, "entry inside the window deals at market")
	assert.Equal(t, 1850.3, quote)

	got, _, err = c.DetermineOrderType("XAUUSD", models.ActionSell, 1849.5)
	require.NoError(t, err)
	assert.Equal(t, broker.OrderTypeSell, got)

	// The window is gold-only.
	got, _, err = c.DetermineOrderType("DJIUSD", models.ActionBuy, 1850.8)
	require.NoError(t, err)
	assert.Equal(t, broker.OrderTypeBuyStop, got)
}

func TestOpenPendingWithExpiry(t *testing.T) {
	serverNow := time.Unix(1700000000, 0)
	fake := quoteBroker(1850.0, 1850.3)
	fake.ServerTimeFunc = func() (time.Time, error) { return serverNow, nil }

	c := NewCompiler(fake, Policy{ExpirePendingMinutes: 90}, nil)
	res, err := c.Open(OpenParams{
		Action: models.ActionBuy, Symbol: "XAUUSD",
		Price: 1845, Volume: 0.4, SL: 1840, TP: 1853,
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	req := fake.LastSent()
	require.NotNil(t, req)
	assert.Equal(t, broker.ActionPending, req.Action)
	assert.Equal(t, broker.OrderTypeBuyLimit, req.Type)
	assert.Equal(t, 1845.0, req.Price)
	assert.Equal(t, broker.TimeSpecified, req.TypeTime)
	assert.Equal(t, serverNow.Add(90*time.Minute).Unix(), req.Expiration)
	assert.Equal(t, int64(broker.Magic), req.Magic)
}

func TestOpenMarketUsesQuote(t *testing.T) {
	fake := quoteBroker(1850.0, 1850.3)
	c := NewCompiler(fake, Policy{MarketDistance: 1.0}, nil)

	_, err := c.Open(OpenParams{
		Action: models.ActionSell, Symbol: "XAUUSD",
		Price: 1849.8, Volume: 0.4, SL: 1855, TP: 1840,
	})
	require.NoError(t, err)

	req := fake.LastSent()
	require.NotNil(t, req)
	assert.Equal(t, broker.ActionDeal, req.Action)
	assert.Equal(t, broker.OrderTypeSell, req.Type)
	assert.Equal(t, 1850.0, req.Price, "market deals fill at the quote, not the requested price")
	assert.Equal(t, broker.TimeGTC, req.TypeTime)
}

func TestOpenAppliesCloserPrice(t *testing.T) {
	fake := quoteBroker(1850.0, 1850.3)
	c := NewCompiler(fake, Policy{CloserPrice: 0.3}, nil)

	_, err := c.Open(OpenParams{
		Action: models.ActionBuy, Symbol: "XAUUSD",
		Price: 1845, Volume: 0.4, SL: 1840, TP: 1853,
	})
	require.NoError(t, err)

	req := fake.LastSent()
	require.NotNil(t, req)
	// Buy limit moves up toward the market, the target down toward entry.
	assert.InDelta(t, 1845.3, req.Price, 1e-9)
	assert.InDelta(t, 1852.7, req.TP, 1e-9)
	assert.Equal(t, 1840.0, req.SL, "the stop is never nudged")
}

func TestOpenSkipsDuplicates(t *testing.T) {
	fake := quoteBroker(1850.0, 1850.3)
	fake.PendingOrdersFunc = func() ([]broker.OrderItem, error) {
		return []broker.OrderItem{{
			Ticket: 7001, Symbol: "XAUUSD", Type: broker.OrderTypeBuyLimit,
			PriceOpen: 1845, SL: 1840, TP: 1853, Magic: broker.Magic,
		}}, nil
	}
	c := NewCompiler(fake, Policy{}, nil)

	_, err := c.Open(OpenParams{
		Action: models.ActionBuy, Symbol: "XAUUSD",
		Price: 1845, Volume: 0.4, SL: 1840, TP: 1853,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Empty(t, fake.Sent(), "nothing must reach the terminal")
}

func TestOpenRetriesInvalidPriceAsMarket(t *testing.T) {
	fake := quoteBroker(1850.0, 1850.3)
	calls := 0
	fake.OrderSendFunc = func(req *broker.OrderRequest) (*broker.OrderResult, error) {
		calls++
		if calls == 1 {
			return nil, &broker.APIError{Code: broker.RetcodeInvalidPrice, Msg: "Invalid price"}
		}
		return &broker.OrderResult{Retcode: broker.RetcodeDone, Order: 7002}, nil
	}
	c := NewCompiler(fake, Policy{}, nil)

	res, err := c.Open(OpenParams{
		Action: models.ActionBuy, Symbol: "XAUUSD",
		Price: 1851, Volume: 0.4, SL: 1840, TP: 1860,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7002), res.Order)

	sent := fake.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, broker.OrderTypeBuyStop, sent[0].Type)
	assert.Equal(t, broker.ActionDeal, sent[1].Action)
	assert.Equal(t, broker.OrderTypeBuy, sent[1].Type)
	assert.Equal(t, 1850.3, sent[1].Price)
}

func TestOpenSurfacesOtherErrors(t *testing.T) {
	fake := quoteBroker(1850.0, 1850.3)
	fake.OrderSendFunc = func(req *broker.OrderRequest) (*broker.OrderResult, error) {
		return nil, &broker.APIError{Code: broker.RetcodeNoMoney, Msg: "No money"}
	}
	c := NewCompiler(fake, Policy{}, nil)

	_, err := c.Open(OpenParams{
		Action: models.ActionSell, Symbol: "XAUUSD",
		Price: 1855, Volume: 0.4, SL: 1860, TP: 1845,
	})
	require.Error(t, err)
	assert.Len(t, fake.Sent(), 1, "only invalid-price earns a retry")
}
