// Package models defines the domain types shared across the bot: trade
// actions, parsed chat signals, and the rows persisted for signals and the
// broker positions opened from them.
package models

import (
	"strconv"
	"strings"
	"time"
)

// Action is the trade direction carried by a signal message.
type Action int

// Trade directions. ActionNone marks text with no buy or sell intent.
const (
	ActionNone Action = iota
	ActionBuy
	ActionSell
)

// String returns the lowercase name used in logs and order comments.
func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	default:
		return "none"
	}
}

// ParsedSignal is the structured form of a chat message after extraction.
// Optional numeric fields use zero as the absent value: a signal without a
// second entry level has SecondPrice == 0.
type ParsedSignal struct {
	Action      Action
	Symbol      string
	FirstPrice  float64
	SecondPrice float64
	StopLoss    float64
	TakeProfits []float64
}

// HasSecondPrice reports whether the signal carries a second entry level.
func (p *ParsedSignal) HasSecondPrice() bool {
	return p.SecondPrice != 0
}

// Complete reports whether the signal carries everything order placement
// needs: a direction, an entry price, a stop loss, and a resolved symbol.
func (p *ParsedSignal) Complete() bool {
	return p.Action != ActionNone && p.FirstPrice != 0 && p.StopLoss != 0 && p.Symbol != ""
}

// Signal is a persisted signal row, keyed by the chat message it came from.
// SecondPrice is zero when the signal had no second entry level.
type Signal struct {
	ID           int64
	ChannelTitle string
	MessageID    int64
	ChatID       int64
	OpenPrice    float64
	SecondPrice  float64
	StopLoss     float64
	TakeProfits  []float64
	Symbol       string
	CreatedAt    time.Time
}

// HasSecondPrice reports whether the stored signal had a second entry level.
func (s *Signal) HasSecondPrice() bool {
	return s.SecondPrice != 0
}

// Action infers the trade direction from the stored prices: a stop below
// the entry means a buy. The direction itself is not persisted.
func (s *Signal) Action() Action {
	if s.OpenPrice > s.StopLoss {
		return ActionBuy
	}
	return ActionSell
}

// FormatTPList renders take-profit levels in the comma-separated form stored
// in the signals table.
func FormatTPList(tps []float64) string {
	parts := make([]string, 0, len(tps))
	for _, tp := range tps {
		parts = append(parts, strconv.FormatFloat(tp, 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

// ParseTPList parses a stored comma-separated take-profit list. Blank
// segments and unparsable tokens are skipped so malformed legacy rows load
// without failing the whole signal.
func ParseTPList(s string) []float64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tps := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			continue
		}
		tps = append(tps, v)
	}
	return tps
}
