package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hamidju/teletrader/internal/models"
)

func TestDetectAction(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Action
	}{
		{"english buy", "buy xauusd 2345", models.ActionBuy},
		{"english sell", "sell gold now", models.ActionSell},
		{"uppercase input", "BUY GOLD", models.ActionBuy},
		{"buy as substring", "buying the dip", models.ActionBuy},
		{"sell as substring", "selling here", models.ActionSell},
		{"sell typo keyword", "selll gold 2345", models.ActionSell},
		{"persian buy", "خرید طلا 2345", models.ActionBuy},
		{"persian buy imperative", "بخر الان", models.ActionBuy},
		{"persian sell", "فروش طلا", models.ActionSell},
		{"persian sell imperative", "بفروش", models.ActionSell},
		{"first token wins", "sell setup invalid, buy instead", models.ActionSell},
		{"buy checked before sell inside token", "buysell", models.ActionBuy},
		{"no action", "gold is looking strong today", models.ActionNone},
		{"empty", "", models.ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectAction(tt.text))
		})
	}
}
