// Package orders turns parsed signals into broker requests: price
// reconstruction against live quotes, lot sizing from risk percent, order
// type selection, and the ticket-level mutations the lifecycle engine and
// command router apply afterwards.
package orders

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hamidju/teletrader/internal/broker"
	"github.com/hamidju/teletrader/internal/models"
	"github.com/hamidju/teletrader/internal/util"
)

// Validator reconstructs abbreviated prices against the live quote. Users
// write "850" for 1850.00 on gold; the validator restores the high-order
// digits and keeps stops and entries on the correct side of the market.
type Validator struct {
	broker broker.Broker
	log    logrus.FieldLogger
}

// NewValidator returns a validator over the broker's quotes. A nil logger
// falls back to the logrus standard logger.
func NewValidator(b broker.Broker, logger logrus.FieldLogger) *Validator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Validator{broker: b, log: logger}
}

// reconstructable reports whether the symbol's quotes carry enough
// integer digits for abbreviation to happen at all. FX majors quote around
// 1.x and are never reconstructed.
func reconstructable(symbol string) bool {
	up := strings.ToUpper(symbol)
	return strings.Contains(up, "XAUUSD") || strings.Contains(up, "DJIUSD")
}

// Validate reconstructs price against the current quote for symbol. With
// isSL set, the result lands strictly on the losing side of the quote for
// action; with isSecond set, on the entry side (below the quote for a buy,
// above for a sell). Prices already as long as the quote pass unchanged.
func (v *Validator) Validate(action models.Action, price float64, symbol string, isSL, isSecond bool) (float64, error) {
	if price == 0 || !reconstructable(symbol) {
		return price, nil
	}
	tick, err := v.broker.Tick(symbol)
	if err != nil {
		return 0, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}
	quote := tick.Bid

	candidate := strconv.FormatFloat(price, 'f', -1, 64)
	candInt := util.IntegerDigits(price)
	quoteInt := util.IntegerDigits(quote)
	if candInt >= quoteInt {
		return price, nil
	}

	prefix, err := strconv.Atoi(util.IntegerString(quote)[:quoteInt-candInt])
	if err != nil {
		return price, nil
	}
	joined := joinPrefix(prefix, candidate)

	switch {
	case isSL && action == models.ActionBuy:
		// A buy stop loss sits below the market.
		for joined >= quote && prefix > 0 {
			prefix--
			joined = joinPrefix(prefix, candidate)
		}
	case isSL && action == models.ActionSell:
		for joined <= quote {
			prefix++
			joined = joinPrefix(prefix, candidate)
		}
	case isSecond && action == models.ActionBuy:
		for joined >= quote && prefix > 0 {
			prefix--
			joined = joinPrefix(prefix, candidate)
		}
	case isSecond && action == models.ActionSell:
		for joined <= quote {
			prefix++
			joined = joinPrefix(prefix, candidate)
		}
	}

	v.log.WithFields(logrus.Fields{
		"symbol": symbol,
		"short":  price,
		"quote":  quote,
		"full":   joined,
	}).Debug("reconstructed price")
	return joined, nil
}

// ValidateTPList reconstructs every abbreviated take-profit level so it
// lands on the profitable side of both entry prices: above them for a buy,
// below for a sell. The previous repaired level's high-order digits seed
// the next repair.
func (v *Validator) ValidateTPList(action models.Action, tps []float64, symbol string, firstPrice, secondPrice float64) ([]float64, error) {
	if len(tps) == 0 || !strings.Contains(strings.ToUpper(symbol), "XAUUSD") {
		return tps, nil
	}
	tick, err := v.broker.Tick(symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}
	quote := tick.Bid
	quoteInt := util.IntegerDigits(quote)

	out := make([]float64, len(tps))
	lastPrefix := -1
	for i, tp := range tps {
		candInt := util.IntegerDigits(tp)
		if candInt >= quoteInt {
			out[i] = tp
			lastPrefix = -1
			continue
		}

		candidate := strconv.FormatFloat(tp, 'f', -1, 64)
		prefix, err := strconv.Atoi(util.IntegerString(quote)[:quoteInt-candInt])
		if err != nil {
			out[i] = tp
			continue
		}
		if lastPrefix >= 0 {
			prefix = lastPrefix
		}
		joined := joinPrefix(prefix, candidate)

		switch action {
		case models.ActionBuy:
			for joined <= firstPrice || (secondPrice != 0 && joined <= secondPrice) {
				prefix++
				joined = joinPrefix(prefix, candidate)
			}
		case models.ActionSell:
			for (joined >= firstPrice || (secondPrice != 0 && joined >= secondPrice)) && prefix > 0 {
				prefix--
				joined = joinPrefix(prefix, candidate)
			}
		}
		out[i] = joined
		lastPrefix = prefix
	}
	return out, nil
}

// joinPrefix glues high-order digits onto an abbreviated price string.
func joinPrefix(prefix int, candidate string) float64 {
	v, err := strconv.ParseFloat(strconv.Itoa(prefix)+candidate, 64)
	if err != nil {
		return 0
	}
	return v
}
