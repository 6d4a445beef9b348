package parser

import (
	"strings"

	"github.com/hamidju/teletrader/internal/models"
)

var (
	buyWords = map[string]struct{}{
		"buy":  {},
		"بخر":  {},
		"خرید": {},
		"بای":  {},
	}
	sellWords = map[string]struct{}{
		"sell":    {},
		"selll":   {},
		"selling": {},
		"بفروش":   {},
		"فروش":    {},
	}
)

// DetectAction scans whitespace-separated tokens of the text and returns the
// direction of the first token that names one: an exact buy/sell keyword
// (English or Persian) or any token containing "buy" or "sell". Buy is
// checked before sell within each token.
func DetectAction(text string) models.Action {
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if _, ok := buyWords[tok]; ok || strings.Contains(tok, "buy") {
			return models.ActionBuy
		}
		if _, ok := sellWords[tok]; ok || strings.Contains(tok, "sell") {
			return models.ActionSell
		}
	}
	return models.ActionNone
}
