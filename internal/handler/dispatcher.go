package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hamidju/teletrader/internal/broker"
	"github.com/hamidju/teletrader/internal/config"
	"github.com/hamidju/teletrader/internal/metrics"
	"github.com/hamidju/teletrader/internal/models"
	"github.com/hamidju/teletrader/internal/orders"
	"github.com/hamidju/teletrader/internal/storage"
)

// Meta identifies the chat message a signal came from.
type Meta struct {
	ChatID       int64
	MessageID    int64
	ChannelTitle string
}

// Dispatcher turns an accepted parsed signal into broker orders and
// persisted rows.
type Dispatcher struct {
	cfg       *config.Config
	store     storage.Interface
	broker    broker.Broker
	validator *orders.Validator
	sizer     *orders.Sizer
	compiler  *orders.Compiler
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewDispatcher wires the dispatcher. A nil logger falls back to the logrus
// standard logger; nil metrics record nothing.
func NewDispatcher(
	cfg *config.Config,
	store storage.Interface,
	b broker.Broker,
	validator *orders.Validator,
	sizer *orders.Sizer,
	compiler *orders.Compiler,
	m *metrics.Metrics,
	logger logrus.FieldLogger,
) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		cfg:       cfg,
		store:     store,
		broker:    b,
		validator: validator,
		sizer:     sizer,
		compiler:  compiler,
		metrics:   m,
		log:       logger,
		now:       time.Now,
	}
}

// Dispatch gates, validates, persists, and opens orders for one parsed
// signal. Gate rejections return nil; the message is simply not for us.
func (d *Dispatcher) Dispatch(meta Meta, sig *models.ParsedSignal) error {
	if sig == nil || !sig.Complete() {
		return nil
	}

	log := d.log.WithFields(logrus.Fields{
		"chat":    meta.ChatID,
		"message": meta.MessageID,
		"symbol":  sig.Symbol,
	})

	if !d.cfg.ChannelAllowed(meta.ChannelTitle) {
		log.Debug("channel not allowed, signal dropped")
		return nil
	}
	if !d.cfg.SymbolAllowed(sig.Symbol) {
		log.Debug("symbol not allowed, signal dropped")
		return nil
	}
	if !d.cfg.IsWithinTradingHours(d.now()) {
		log.Debug("outside trading window, signal dropped")
		return nil
	}

	firstPrice, err := d.validator.Validate(sig.Action, sig.FirstPrice, sig.Symbol, false, false)
	if err != nil {
		return fmt.Errorf("validating first price: %w", err)
	}
	stopLoss, err := d.validator.Validate(sig.Action, sig.StopLoss, sig.Symbol, true, false)
	if err != nil {
		return fmt.Errorf("validating stop loss: %w", err)
	}
	secondPrice := 0.0
	if sig.HasSecondPrice() {
		secondPrice, err = d.validator.Validate(sig.Action, sig.SecondPrice, sig.Symbol, false, true)
		if err != nil {
			return fmt.Errorf("validating second price: %w", err)
		}
	}
	takeProfits, err := d.validator.ValidateTPList(sig.Action, sig.TakeProfits, sig.Symbol, firstPrice, secondPrice)
	if err != nil {
		return fmt.Errorf("validating take profits: %w", err)
	}

	// The first entry is always the one nearer the market; swap when the
	// message listed them the other way around.
	if secondPrice != 0 {
		if (sig.Action == models.ActionBuy && firstPrice > secondPrice) ||
			(sig.Action == models.ActionSell && firstPrice < secondPrice) {
			firstPrice, secondPrice = secondPrice, firstPrice
		}
	}

	// The broker gets a single aggregate TP; the per-level schedule is the
	// lifecycle engine's job.
	aggregateTP := aggregateTakeProfit(sig.Action, takeProfits)

	volume, err := d.sizer.Lot(sig.Symbol, d.cfg.MetaTrader.Lot, firstPrice, stopLoss, d.cfg.MetaTrader.AccountSize)
	if err != nil {
		return fmt.Errorf("sizing order: %w", err)
	}

	account, err := d.broker.AccountInfo()
	if err != nil {
		return fmt.Errorf("fetching account: %w", err)
	}

	record := &models.Signal{
		ChannelTitle: meta.ChannelTitle,
		MessageID:    meta.MessageID,
		ChatID:       meta.ChatID,
		OpenPrice:    firstPrice,
		SecondPrice:  secondPrice,
		StopLoss:     stopLoss,
		TakeProfits:  takeProfits,
		Symbol:       sig.Symbol,
	}

	// An exact match means the same intent already came through; reuse its
	// row so the signal exists at most once.
	existing, err := d.store.FindExactSignal(firstPrice, secondPrice, stopLoss, sig.Symbol)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("looking up signal: %w", err)
	}

	d.metrics.IncSignalsDispatched()

	result, err := d.compiler.Open(orders.OpenParams{
		Action:  sig.Action,
		Symbol:  sig.Symbol,
		Price:   firstPrice,
		Volume:  volume,
		SL:      stopLoss,
		TP:      aggregateTP,
		Comment: fmt.Sprintf("signal %d/%d", meta.ChatID, meta.MessageID),
	})
	switch {
	case errors.Is(err, orders.ErrDuplicate):
		log.Debug("first entry duplicates a live ticket, skipped")
		d.metrics.IncOrdersDuplicate()
	case err != nil:
		return fmt.Errorf("opening first entry: %w", err)
	default:
		d.metrics.IncOrdersOpened()
		position := &models.Position{
			Ticket:  result.Order,
			UserID:  account.Login,
			IsFirst: true,
		}
		if existing != nil {
			position.SignalID = existing.ID
			if _, err := d.store.InsertPosition(position); err != nil {
				return fmt.Errorf("persisting first position: %w", err)
			}
		} else {
			signalID, _, err := d.store.InsertSignalWithPosition(record, position)
			if err != nil {
				return fmt.Errorf("persisting signal: %w", err)
			}
			existing = record
			existing.ID = signalID
		}
		log.WithField("ticket", result.Order).Info("first entry opened")
	}

	if secondPrice == 0 {
		return nil
	}
	if !d.cfg.MetaTrader.HighRisk {
		// Recorded with the signal, but only high-risk accounts trade it.
		log.Debug("second entry present but high risk disabled")
		return nil
	}
	if existing == nil {
		// First leg was a duplicate and no signal row exists to hang the
		// second leg off; leave it.
		return nil
	}

	result, err = d.compiler.Open(orders.OpenParams{
		Action:  sig.Action,
		Symbol:  sig.Symbol,
		Price:   secondPrice,
		Volume:  volume,
		SL:      stopLoss,
		TP:      aggregateTP,
		Comment: fmt.Sprintf("signal %d/%d second", meta.ChatID, meta.MessageID),
	})
	switch {
	case errors.Is(err, orders.ErrDuplicate):
		log.Debug("second entry duplicates a live ticket, skipped")
		d.metrics.IncOrdersDuplicate()
		return nil
	case err != nil:
		return fmt.Errorf("opening second entry: %w", err)
	}
	d.metrics.IncOrdersOpened()

	if _, err := d.store.InsertPosition(&models.Position{
		SignalID: existing.ID,
		Ticket:   result.Order,
		UserID:   account.Login,
		IsSecond: true,
	}); err != nil {
		return fmt.Errorf("persisting second position: %w", err)
	}
	log.WithField("ticket", result.Order).Info("second entry opened")
	return nil
}

// aggregateTakeProfit picks the single TP handed to the broker: the
// furthest profitable level.
func aggregateTakeProfit(action models.Action, tps []float64) float64 {
	if len(tps) == 0 {
		return 0
	}
	agg := tps[0]
	for _, tp := range tps[1:] {
		if action == models.ActionBuy && tp > agg {
			agg = tp
		}
		if action == models.ActionSell && tp < agg {
			agg = tp
		}
	}
	return agg
}
