// Package lifecycle drives the tick loop over open positions and pending
// orders: multi-level partial-close trailing, break-even stops, and
// cancellation of pendings whose sibling already banked profit.
package lifecycle

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hamidju/teletrader/internal/broker"
	"github.com/hamidju/teletrader/internal/config"
	"github.com/hamidju/teletrader/internal/metrics"
	"github.com/hamidju/teletrader/internal/models"
	"github.com/hamidju/teletrader/internal/orders"
	"github.com/hamidju/teletrader/internal/storage"
)

const (
	// tickInterval is the poll cadence over broker state.
	tickInterval = time.Second
	// reconnectWait is the pause after a transient broker failure before
	// the session is re-established.
	reconnectWait = 5 * time.Second
)

// Engine is the per-account lifecycle loop.
type Engine struct {
	cfg     *config.Config
	store   storage.Interface
	broker  broker.Broker
	manager *orders.Manager
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

// NewEngine wires the lifecycle engine.
func NewEngine(
	cfg *config.Config,
	store storage.Interface,
	b broker.Broker,
	manager *orders.Manager,
	m *metrics.Metrics,
	logger logrus.FieldLogger,
) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{cfg: cfg, store: store, broker: b, manager: manager, metrics: m, log: logger}
}

// Run polls broker state once per second until ctx is cancelled. Transient
// broker failures pause the loop for five seconds and re-login; no state is
// lost because all state lives in the store and the terminal.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.tick(); err != nil {
				if broker.IsTransient(err) {
					e.metrics.IncBrokerError("transient")
					e.log.WithError(err).Warnf("broker unavailable, reconnecting in %v", reconnectWait)
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(reconnectWait):
					}
					if err := e.broker.Login(); err != nil {
						e.log.WithError(err).Warn("re-login failed")
					}
					continue
				}
				e.metrics.IncBrokerError("tick")
				e.log.WithError(err).Error("tick failed")
			}
		}
	}
}

// tick processes one consistent snapshot of positions and pendings.
func (e *Engine) tick() error {
	positions, err := e.broker.Positions()
	if err != nil {
		return err
	}
	pendings, err := e.broker.PendingOrders()
	if err != nil {
		return err
	}
	e.metrics.SetOpenPositions(len(positions))

	open := make(map[int64]broker.PositionItem, len(positions))
	for _, p := range positions {
		open[p.Ticket] = p
	}

	for _, pos := range positions {
		if pos.Magic != broker.Magic {
			continue
		}
		e.trail(pos, open)
	}
	for _, ord := range pendings {
		if ord.Magic != broker.Magic {
			continue
		}
		e.arbitrate(ord, open)
	}
	return nil
}

// trail advances the stop and banks profit for one open position. Errors
// stop at this boundary; one bad position never blocks the rest of the
// tick.
func (e *Engine) trail(pos broker.PositionItem, open map[int64]broker.PositionItem) {
	log := e.log.WithField("ticket", pos.Ticket)

	sig, err := e.store.FindSignalByTicket(pos.Ticket)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Tagged with our magic but unknown to the store: an invariant
			// violation worth a look, not a crash.
			log.Error("position carries bot magic but no stored signal")
		} else {
			log.WithError(err).Error("signal lookup failed")
		}
		return
	}
	if len(sig.TakeProfits) < 2 {
		return
	}

	buy := pos.Type.IsBuy()
	tps := sortedTPs(sig.TakeProfits, buy)

	tick, err := e.broker.Tick(pos.Symbol)
	if err != nil {
		log.WithError(err).Warn("quote fetch failed")
		return
	}
	quote := tick.Bid
	if !buy {
		quote = tick.Ask
	}

	entry := e.entryReference(sig, open)

	for i, tp := range tps {
		if !reached(buy, quote, tp) || !slWorseThan(buy, pos.SL, tp) {
			continue
		}

		target := entry
		if i >= 1 {
			target = tps[i-1]
		}
		// A stop at or past the target means this level was consumed on an
		// earlier tick; the stop also never walks backwards.
		if !advances(buy, pos.SL, target) {
			continue
		}
		if err := e.manager.ModifyStopLoss(pos.Ticket, target); err != nil {
			log.WithError(err).Error("trailing stop move failed")
			return
		}
		e.metrics.IncTrailingMoves()
		log.WithFields(logrus.Fields{"level": i, "sl": target}).Info("stop trailed")

		pct := e.saveProfitPct(i)
		if pct > 0 {
			if err := e.manager.CloseFraction(pos.Ticket, pct, e.cfg.CloseOnTrail()); err != nil {
				log.WithError(err).Error("partial close failed")
			}
		}
		// One level per tick.
		break
	}
}

// arbitrate cancels a pending entry when profit-taking already started:
// the quote reached the nearest TP and either there is no second leg or the
// sibling leg is already live.
func (e *Engine) arbitrate(ord broker.OrderItem, open map[int64]broker.PositionItem) {
	log := e.log.WithField("ticket", ord.Ticket)

	sig, err := e.store.FindSignalByTicket(ord.Ticket)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.WithError(err).Error("signal lookup failed")
		}
		return
	}
	if len(sig.TakeProfits) == 0 {
		return
	}

	buy := ord.Type.IsBuy()
	tps := sortedTPs(sig.TakeProfits, buy)

	tick, err := e.broker.Tick(ord.Symbol)
	if err != nil {
		log.WithError(err).Warn("quote fetch failed")
		return
	}
	quote := tick.Bid
	if !buy {
		quote = tick.Ask
	}
	if !reached(buy, quote, tps[0]) {
		return
	}

	if sig.HasSecondPrice() && !e.siblingActive(sig, ord.Ticket, open) {
		return
	}

	if err := e.manager.CancelPending(ord.Ticket); err != nil {
		log.WithError(err).Error("pending cancellation failed")
		return
	}
	e.metrics.IncPendingsCancelled()
	log.WithField("signal", sig.ID).Info("pending cancelled after profit taking")
}

// entryReference resolves the price the first trailing move falls back to:
// the second entry when that leg is live, otherwise the first leg's fill.
func (e *Engine) entryReference(sig *models.Signal, open map[int64]broker.PositionItem) float64 {
	if sig.HasSecondPrice() {
		seconds, err := e.store.PositionsOfSignal(sig.ID, storage.LegSecond)
		if err == nil {
			for _, p := range seconds {
				if _, live := open[p.Ticket]; live {
					return sig.SecondPrice
				}
			}
		}
	}
	firsts, err := e.store.PositionsOfSignal(sig.ID, storage.LegFirst)
	if err == nil {
		for _, p := range firsts {
			if live, ok := open[p.Ticket]; ok {
				return live.PriceOpen
			}
		}
	}
	return sig.OpenPrice
}

// siblingActive reports whether any other leg of the signal is an open
// position.
func (e *Engine) siblingActive(sig *models.Signal, ticket int64, open map[int64]broker.PositionItem) bool {
	positions, err := e.store.PositionsOfSignal(sig.ID, storage.LegAny)
	if err != nil {
		return false
	}
	for _, p := range positions {
		if p.Ticket == ticket {
			continue
		}
		if _, live := open[p.Ticket]; live {
			return true
		}
	}
	return false
}

// saveProfitPct returns the configured close percentage for level i, with
// levels past the schedule closing everything.
func (e *Engine) saveProfitPct(i int) int {
	schedule := e.cfg.MetaTrader.SaveProfits
	if i < len(schedule) {
		return schedule[i]
	}
	return 100
}

// Reconcile sweeps live broker state once at startup and reports every
// ticket carrying the bot's magic that the store does not know. Orphans are
// logged and left alone; the terminal owns them.
func (e *Engine) Reconcile() error {
	positions, err := e.broker.Positions()
	if err != nil {
		return err
	}
	pendings, err := e.broker.PendingOrders()
	if err != nil {
		return err
	}

	orphans := 0
	check := func(ticket int64, symbol string) {
		if _, err := e.store.FindSignalByTicket(ticket); errors.Is(err, storage.ErrNotFound) {
			orphans++
			e.log.WithFields(logrus.Fields{"ticket": ticket, "symbol": symbol}).
				Error("live ticket carries bot magic but no stored signal")
		}
	}
	for _, p := range positions {
		if p.Magic == broker.Magic {
			check(p.Ticket, p.Symbol)
		}
	}
	for _, o := range pendings {
		if o.Magic == broker.Magic {
			check(o.Ticket, o.Symbol)
		}
	}

	e.log.WithFields(logrus.Fields{
		"positions": len(positions),
		"pendings":  len(pendings),
		"orphans":   orphans,
	}).Info("startup reconcile complete")
	return nil
}

func sortedTPs(tps []float64, buy bool) []float64 {
	out := append([]float64(nil), tps...)
	if buy {
		sort.Float64s(out)
	} else {
		sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	}
	return out
}

func reached(buy bool, quote, tp float64) bool {
	if buy {
		return quote >= tp
	}
	return quote <= tp
}

func slWorseThan(buy bool, sl, tp float64) bool {
	if buy {
		return sl < tp
	}
	return sl == 0 || sl > tp
}

func advances(buy bool, sl, target float64) bool {
	if buy {
		return target > sl
	}
	return sl == 0 || target < sl
}
