package orders

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hamidju/teletrader/internal/broker"
	"github.com/hamidju/teletrader/internal/models"
)

// ErrDuplicate marks an open request that matches a live position or
// pending order exactly. Callers skip these silently; re-sent signals are
// routine.
var ErrDuplicate = errors.New("orders: duplicate of an open ticket")

// Deviation budgets in points, matching the terminal's tolerance for fills
// away from the requested price.
const (
	openDeviation  = 20
	closeDeviation = 10
)

// Policy carries the account-level order preferences the compiler applies
// to every request.
type Policy struct {
	// CloserPrice nudges entries and TPs inward against slippage.
	CloserPrice float64
	// MarketDistance is the half-window around the quote, in price units,
	// inside which a requested gold entry becomes a market order. Zero
	// disables the window.
	MarketDistance float64
	// ExpirePendingMinutes expires pendings after N minutes of broker
	// server time. Zero keeps them good-till-cancelled.
	ExpirePendingMinutes int
}

// Compiler selects the order type for a requested entry and submits the
// terminal request.
type Compiler struct {
	broker broker.Broker
	policy Policy
	log    logrus.FieldLogger
}

// NewCompiler returns a compiler for the account policy.
func NewCompiler(b broker.Broker, policy Policy, logger logrus.FieldLogger) *Compiler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Compiler{broker: b, policy: policy, log: logger}
}

// OpenParams is one entry leg ready for submission.
type OpenParams struct {
	Action  models.Action
	Symbol  string
	Price   float64
	Volume  float64
	SL      float64
	TP      float64
	Comment string
}

// DetermineOrderType picks market, stop, or limit for the requested price
// against the current quote, returning the type and the quote consulted.
func (c *Compiler) DetermineOrderType(symbol string, action models.Action, price float64) (broker.OrderType, float64, error) {
	tick, err := c.broker.Tick(symbol)
	if err != nil {
		return 0, 0, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}

	var quote float64
	if action == models.ActionBuy {
		quote = tick.Ask
	} else {
		quote = tick.Bid
	}

	if c.policy.MarketDistance > 0 && isGold(symbol) &&
		math.Abs(price-quote) <= c.policy.MarketDistance {
		if action == models.ActionBuy {
			return broker.OrderTypeBuy, quote, nil
		}
		return broker.OrderTypeSell, quote, nil
	}

	if action == models.ActionBuy {
		if price > quote {
			return broker.OrderTypeBuyStop, quote, nil
		}
		return broker.OrderTypeBuyLimit, quote, nil
	}
	if price > quote {
		return broker.OrderTypeSellLimit, quote, nil
	}
	return broker.OrderTypeSellStop, quote, nil
}

// Open submits one entry leg. The returned result carries the broker ticket
// for persistence. ErrDuplicate means an identical ticket is already live.
func (c *Compiler) Open(p OpenParams) (*broker.OrderResult, error) {
	orderType, quote, err := c.DetermineOrderType(p.Symbol, p.Action, p.Price)
	if err != nil {
		return nil, err
	}

	price, tp := c.applyCloserPrice(orderType, p.Symbol, p.Price, p.TP)

	dup, err := c.anyTicketByData(p.Symbol, price, p.SL, tp)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicate
	}

	req := &broker.OrderRequest{
		Symbol:      p.Symbol,
		Volume:      p.Volume,
		Type:        orderType,
		Price:       price,
		SL:          p.SL,
		TP:          tp,
		Deviation:   openDeviation,
		Magic:       broker.Magic,
		Comment:     p.Comment,
		TypeFilling: broker.FillingIOC,
		TypeTime:    broker.TimeGTC,
	}
	if orderType.IsPending() {
		req.Action = broker.ActionPending
		if c.policy.ExpirePendingMinutes > 0 {
			serverTime, err := c.broker.ServerTime()
			if err != nil {
				return nil, fmt.Errorf("fetching server time: %w", err)
			}
			req.TypeTime = broker.TimeSpecified
			req.Expiration = serverTime.
				Add(time.Duration(c.policy.ExpirePendingMinutes) * time.Minute).Unix()
		}
	} else {
		req.Action = broker.ActionDeal
		req.Price = quote
	}

	result, err := c.broker.OrderSend(req)
	if err == nil {
		c.log.WithFields(logrus.Fields{
			"symbol": p.Symbol,
			"type":   orderType.String(),
			"price":  req.Price,
			"volume": p.Volume,
			"ticket": result.Order,
		}).Info("order opened")
		return result, nil
	}

	if broker.IsInvalidPrice(err) {
		// The quote moved past the requested trigger; take the market
		// instead, once.
		c.log.WithField("symbol", p.Symbol).Warn("invalid price, retrying as market order")
		req.Action = broker.ActionDeal
		req.TypeTime = broker.TimeGTC
		req.Expiration = 0
		if p.Action == models.ActionBuy {
			req.Type = broker.OrderTypeBuy
		} else {
			req.Type = broker.OrderTypeSell
		}
		req.Price = quote
		return c.broker.OrderSend(req)
	}
	if broker.IsAlgoDisabled(err) {
		c.log.WithField("symbol", p.Symbol).Error("algo trading disabled in the terminal; order abandoned")
	}
	return nil, err
}

// applyCloserPrice nudges the entry and take profit inward for gold. Limit
// entries move toward the market so they fill sooner; stops move away so a
// spike does not trigger them; TPs move toward the entry so they pay out
// before the exact level.
func (c *Compiler) applyCloserPrice(t broker.OrderType, symbol string, price, tp float64) (float64, float64) {
	offset := c.policy.CloserPrice
	if offset == 0 || !isGold(symbol) {
		return price, tp
	}

	switch t {
	case broker.OrderTypeBuyLimit, broker.OrderTypeSellStop:
		price += offset
	case broker.OrderTypeBuyStop, broker.OrderTypeSellLimit:
		price -= offset
	}
	if tp != 0 {
		if t.IsBuy() {
			tp -= offset
		} else {
			tp += offset
		}
	}
	return price, tp
}

// anyTicketByData reports whether a live position or pending order already
// carries exactly this (symbol, open, sl, tp) tuple.
func (c *Compiler) anyTicketByData(symbol string, open, sl, tp float64) (bool, error) {
	positions, err := c.broker.Positions()
	if err != nil {
		return false, fmt.Errorf("listing positions: %w", err)
	}
	for _, p := range positions {
		if p.Symbol == symbol && p.PriceOpen == open && p.SL == sl && p.TP == tp {
			return true, nil
		}
	}
	pendings, err := c.broker.PendingOrders()
	if err != nil {
		return false, fmt.Errorf("listing pending orders: %w", err)
	}
	for _, o := range pendings {
		if o.Symbol == symbol && o.PriceOpen == open && o.SL == sl && o.TP == tp {
			return true, nil
		}
	}
	return false, nil
}

func isGold(symbol string) bool {
	return strings.Contains(strings.ToUpper(symbol), "XAUUSD")
}
