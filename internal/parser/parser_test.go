package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamidju/teletrader/internal/models"
)

func newTestParser(strict bool) *Parser {
	resolver := NewSymbolResolver([]string{"EURUSD", "XAUUSD", "DJIUSD"}, nil, strict)
	return New(resolver, nil)
}

func TestParseEnglishBuySignal(t *testing.T) {
	p := newTestParser(false)

	sig, ok := p.Parse("BUY EURUSD @ 1.0850\nSL: 1.0800\nTP: 1.0900, 1.0950")
	require.True(t, ok)
	require.NotNil(t, sig)

	assert.Equal(t, models.ActionBuy, sig.Action)
	assert.Equal(t, "EURUSD", sig.Symbol)
	assert.Equal(t, 1.085, sig.FirstPrice)
	assert.False(t, sig.HasSecondPrice())
	assert.Equal(t, 1.08, sig.StopLoss)
	assert.Equal(t, []float64{1.09, 1.095}, sig.TakeProfits)
}

func TestParseEnglishSellSignal(t *testing.T) {
	p := newTestParser(false)

	sig, ok := p.Parse("SELL XAUUSD @ 1950.50\nStop Loss: 1945.00\nTake Profit: 1960.00, 1970.00, 1980.00")
	require.True(t, ok)
	require.NotNil(t, sig)

	assert.Equal(t, models.ActionSell, sig.Action)
	assert.Equal(t, "XAUUSD", sig.Symbol)
	assert.Equal(t, 1950.5, sig.FirstPrice)
	assert.False(t, sig.HasSecondPrice())
	assert.Equal(t, 1945.0, sig.StopLoss)
	assert.Equal(t, []float64{1960, 1970, 1980}, sig.TakeProfits)
}

func TestParsePersianBuySignal(t *testing.T) {
	p := newTestParser(false)

	sig, ok := p.Parse("خرید یورو @ 1.0850\nحد ضرر: 1.0800\nتی پی: 1.0900")
	require.True(t, ok)
	require.NotNil(t, sig)

	assert.Equal(t, models.ActionBuy, sig.Action)
	assert.Equal(t, "EURUSD", sig.Symbol)
	assert.Equal(t, 1.085, sig.FirstPrice)
	assert.False(t, sig.HasSecondPrice())
	assert.Equal(t, 1.08, sig.StopLoss)
	assert.Equal(t, []float64{1.09}, sig.TakeProfits)
}

func TestParseTwoLimitSignal(t *testing.T) {
	p := newTestParser(false)

	sig, ok := p.Parse("buy gold 2345 - 2340\nsl: 2330\ntp: 2360")
	require.True(t, ok)

	assert.Equal(t, models.ActionBuy, sig.Action)
	assert.Equal(t, "XAUUSD", sig.Symbol)
	assert.Equal(t, 2345.0, sig.FirstPrice)
	assert.Equal(t, 2340.0, sig.SecondPrice)
	assert.Equal(t, 2330.0, sig.StopLoss)
	assert.Equal(t, []float64{2360}, sig.TakeProfits)
}

func TestParseClearsSuspectSecondPrice(t *testing.T) {
	p := newTestParser(false)

	tests := []struct {
		name string
		raw  string
	}{
		{"second equals first", "buy gold 2345 - 2345\nsl: 2330\ntp: 2360"},
		{"second equals stop loss", "buy gold 2345 - 2330\nsl: 2330\ntp: 2360"},
		{"second equals a take profit", "buy gold 2345 - 2360\nsl: 2330\ntp: 2360"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := p.Parse(tt.raw)
			require.True(t, ok)
			assert.False(t, sig.HasSecondPrice())
		})
	}
}

func TestParseRejectsNonSignals(t *testing.T) {
	p := newTestParser(false)

	tests := []struct {
		name string
		raw  string
	}{
		{"no action", "gold is looking strong today 2345"},
		{"action without prices", "buy"},
		{"action without stop loss", "sell 2345"},
		{"empty", ""},
		{"emoji noise", "🚀🚀🚀"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := p.Parse(tt.raw)
			assert.False(t, ok)
			assert.Nil(t, sig)
		})
	}
}

func TestParseStrictSymbolMode(t *testing.T) {
	p := newTestParser(true)

	sig, ok := p.Parse("buy 2345\nsl: 2330")
	assert.False(t, ok)
	assert.Nil(t, sig)
}

// Any input yields either nil or a signal carrying action, symbol, entry,
// and stop loss.
func TestParseTotality(t *testing.T) {
	p := newTestParser(false)

	corpus := []string{
		"BUY EURUSD @ 1.0850\nSL: 1.0800\nTP: 1.0900",
		"sell gold 2345\nsl 2360",
		"random chatter about markets",
		"buy",
		"sl: 2330",
		"خرید طلا ۲۳۴۵",
		"☑❌️",
		"1234567890",
		"@@@///___---",
		"buy us30 45000\nsl 44800",
	}

	for _, raw := range corpus {
		sig, ok := p.Parse(raw)
		if !ok {
			assert.Nil(t, sig)
			continue
		}
		require.NotNil(t, sig)
		assert.NotEqual(t, models.ActionNone, sig.Action, "input %q", raw)
		assert.NotEmpty(t, sig.Symbol, "input %q", raw)
		assert.NotZero(t, sig.FirstPrice, "input %q", raw)
		assert.NotZero(t, sig.StopLoss, "input %q", raw)
	}
}
