package parser

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hamidju/teletrader/internal/models"
)

// Parser assembles the full extraction pipeline: normalize, detect action,
// pull prices, resolve the symbol.
type Parser struct {
	resolver *SymbolResolver
	log      logrus.FieldLogger
}

// New returns a parser over the given symbol resolver. A nil logger falls
// back to the logrus standard logger.
func New(resolver *SymbolResolver, logger logrus.FieldLogger) *Parser {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Parser{resolver: resolver, log: logger}
}

// Parse extracts a trade signal from a raw chat message. The boolean is
// false when the text carries no buy/sell intent; most chat traffic falls
// out here and does so silently.
func (p *Parser) Parse(raw string) (*models.ParsedSignal, bool) {
	text := strings.ToLower(Normalize(raw))

	action := DetectAction(text)
	if action == models.ActionNone {
		return nil, false
	}

	sig := &models.ParsedSignal{
		Action:      action,
		FirstPrice:  ExtractFirstPrice(text),
		SecondPrice: ExtractSecondPrice(text),
		StopLoss:    ExtractStopLoss(text),
		TakeProfits: ExtractTakeProfits(text),
		Symbol:      p.resolver.Resolve(text),
	}

	// A second price equal to the first price, the stop, or a take profit
	// is a misparse symptom; clear it.
	if sig.SecondPrice != 0 {
		switch {
		case sig.SecondPrice == sig.FirstPrice, sig.SecondPrice == sig.StopLoss:
			sig.SecondPrice = 0
		default:
			for _, tp := range sig.TakeProfits {
				if sig.SecondPrice == tp {
					sig.SecondPrice = 0
					break
				}
			}
		}
	}

	// Trade intent without a full price set is unactionable; callers only
	// ever see complete signals or nothing.
	if !sig.Complete() {
		p.log.WithFields(logrus.Fields{
			"action": sig.Action.String(),
			"symbol": sig.Symbol,
			"first":  sig.FirstPrice,
			"sl":     sig.StopLoss,
		}).Debug("discarding incomplete signal")
		return nil, false
	}

	p.log.WithFields(logrus.Fields{
		"action": sig.Action.String(),
		"symbol": sig.Symbol,
		"first":  sig.FirstPrice,
		"second": sig.SecondPrice,
		"sl":     sig.StopLoss,
		"tps":    sig.TakeProfits,
	}).Debug("parsed signal")

	return sig, true
}
