package orders

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hamidju/teletrader/internal/broker"
)

// minLot is the broker's smallest tradable volume.
const minLot = 0.01

// Sizer computes order volume from the configured lot spec: either a fixed
// decimal taken verbatim or a percent of account size risked against the
// stop distance.
type Sizer struct {
	broker broker.Broker
	log    logrus.FieldLogger
}

// NewSizer returns a sizer over the broker's symbol profiles and balance.
func NewSizer(b broker.Broker, logger logrus.FieldLogger) *Sizer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sizer{broker: b, log: logger}
}

// Lot computes the volume for an order. riskSpec is the config lot string
// ("0.1" or "1%"); accountSize overrides the live balance when non-zero.
func (s *Sizer) Lot(symbol, riskSpec string, openPrice, slPrice, accountSize float64) (float64, error) {
	riskSpec = strings.TrimSpace(riskSpec)
	if !strings.HasSuffix(riskSpec, "%") {
		fixed, err := decimal.NewFromString(riskSpec)
		if err != nil {
			return 0, fmt.Errorf("invalid lot spec %q: %w", riskSpec, err)
		}
		f, _ := fixed.Float64()
		return f, nil
	}

	pct, err := decimal.NewFromString(strings.TrimSuffix(riskSpec, "%"))
	if err != nil {
		return 0, fmt.Errorf("invalid risk percent %q: %w", riskSpec, err)
	}

	if accountSize == 0 {
		info, err := s.broker.AccountInfo()
		if err != nil {
			return 0, fmt.Errorf("fetching balance: %w", err)
		}
		accountSize = info.Balance
	}

	sym, err := s.broker.SymbolInfo(symbol)
	if err != nil {
		return 0, fmt.Errorf("fetching symbol info for %s: %w", symbol, err)
	}
	if sym.TradeTickSize == 0 || sym.TradeTickValue == 0 {
		return 0, fmt.Errorf("symbol %s has no tick profile", symbol)
	}

	riskAmount := decimal.NewFromFloat(accountSize).
		Mul(pct).Div(decimal.NewFromInt(100))
	distanceTicks := decimal.NewFromFloat(math.Abs(openPrice - slPrice)).
		Div(decimal.NewFromFloat(sym.TradeTickSize))
	perLotRisk := distanceTicks.Mul(decimal.NewFromFloat(sym.TradeTickValue))
	if perLotRisk.IsZero() {
		return 0, fmt.Errorf("zero stop distance for %s", symbol)
	}

	lot := riskAmount.Div(perLotRisk).Round(2)

	// Rounding up may overshoot the risk budget; step back down in broker
	// volume increments until the realized risk fits.
	step := decimal.NewFromFloat(minLot)
	for lot.Mul(perLotRisk).GreaterThan(riskAmount) && lot.GreaterThan(step) {
		lot = lot.Sub(step)
	}

	f, _ := lot.Float64()
	if f < minLot {
		s.log.WithFields(logrus.Fields{
			"symbol": symbol,
			"lot":    f,
		}).Warn("computed lot under broker minimum; actual risk exceeds the configured percent")
	}
	return f, nil
}
