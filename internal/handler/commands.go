package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hamidju/teletrader/internal/config"
	"github.com/hamidju/teletrader/internal/feed"
	"github.com/hamidju/teletrader/internal/metrics"
	"github.com/hamidju/teletrader/internal/models"
	"github.com/hamidju/teletrader/internal/orders"
	"github.com/hamidju/teletrader/internal/parser"
	"github.com/hamidju/teletrader/internal/storage"
	"github.com/hamidju/teletrader/internal/util"
)

// Operator command keyword sets. Matching is on the lowercased normalized
// message body.
var (
	editKeywords     = []string{"edit", "edite", "update", "modify"}
	deleteKeywords   = []string{"حذف", "delete", "close", "not a signal", "vip"}
	riskFreeKeywords = []string{"فری", "risk free", "risk-free"}
)

// Router applies operator commands to previously dispatched signals. All
// work runs on the command pool; commands touching the same signal
// serialize on a per-signal lock.
type Router struct {
	cfg       *config.Config
	store     storage.Interface
	manager   *orders.Manager
	validator *orders.Validator
	parser    *parser.Parser
	pool      *Pool
	locks     *KeyedMutex
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
}

// NewRouter wires the command router.
func NewRouter(
	cfg *config.Config,
	store storage.Interface,
	manager *orders.Manager,
	validator *orders.Validator,
	p *parser.Parser,
	pool *Pool,
	m *metrics.Metrics,
	logger logrus.FieldLogger,
) *Router {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Router{
		cfg:       cfg,
		store:     store,
		manager:   manager,
		validator: validator,
		parser:    p,
		pool:      pool,
		locks:     NewKeyedMutex(),
		metrics:   m,
		log:       logger,
	}
}

// Route inspects one event for operator intent and queues the matching
// command. It returns true when the event was claimed as a command, so the
// caller does not also feed it to the dispatcher.
func (r *Router) Route(ctx context.Context, ev feed.Event) bool {
	text := strings.ToLower(parser.Normalize(ev.Message.Text))
	msg := ev.Message

	switch ev.Kind {
	case feed.EventDeleted:
		// The operator deleted the signal message itself; treat it like a
		// delete command on that signal.
		r.pool.Submit(ctx, "delete", func() error {
			return r.deleteSignal(msg.ChatID, msg.ID, strings.Contains(text, "half"))
		})
		return true

	case feed.EventEdited:
		if sig, ok := r.parser.Parse(msg.Text); ok {
			r.pool.Submit(ctx, "edit-reparse", func() error {
				return r.applyReparse(msg, sig)
			})
			return true
		}
		if price := parser.ExtractSimplePrice(text); price != 0 {
			r.pool.Submit(ctx, "edit-sl", func() error {
				return r.updateStopLoss(msg.ChatID, msg.ID, price)
			})
			return true
		}
		return false
	}

	// New message: commands address prior signals either by reply or, for
	// inline edits, by "most recent in this chat".
	switch {
	case msg.ReplyToID != 0 && containsAny(text, deleteKeywords):
		half := strings.Contains(text, "half")
		r.pool.Submit(ctx, "delete", func() error {
			return r.deleteSignal(msg.ChatID, msg.ReplyToID, half)
		})
		return true

	case msg.ReplyToID != 0 && containsAny(text, riskFreeKeywords):
		r.pool.Submit(ctx, "risk-free", func() error {
			return r.riskFree(msg.ChatID, msg.ReplyToID)
		})
		return true

	case msg.ReplyToID != 0 && containsAny(text, editKeywords):
		if price := parser.ExtractSimplePrice(text); price != 0 {
			r.pool.Submit(ctx, "edit-sl", func() error {
				return r.updateStopLoss(msg.ChatID, msg.ReplyToID, price)
			})
			return true
		}
		return false

	case containsAny(text, editKeywords):
		if price := parser.ExtractSimplePrice(text); price != 0 {
			// Inline shorthand without a reply applies to the chat's most
			// recent signal.
			r.pool.Submit(ctx, "edit-sl", func() error {
				return r.updateStopLoss(msg.ChatID, 0, price)
			})
			return true
		}
	}
	return false
}

// updateStopLoss moves the stop of the signal identified by (chat, message)
// on the broker and in the store. A zero messageID targets the chat's most
// recent signal. The abbreviated price must carry as many integer digits as
// the stored stop, otherwise the edit is rejected.
func (r *Router) updateStopLoss(chatID, messageID int64, price float64) error {
	sig, err := r.store.FindSignalByChat(chatID, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.log.WithFields(logrus.Fields{"chat": chatID, "message": messageID}).
				Debug("stop edit references no known signal")
			return nil
		}
		return err
	}

	if util.IntegerDigits(price) != util.IntegerDigits(sig.StopLoss) {
		r.log.WithFields(logrus.Fields{
			"signal": sig.ID,
			"new":    price,
			"stored": sig.StopLoss,
		}).Debug("stop edit rejected, digit length mismatch")
		return nil
	}

	newSL, err := r.validator.Validate(sig.Action(), price, sig.Symbol, true, false)
	if err != nil {
		return fmt.Errorf("validating new stop: %w", err)
	}

	unlock := r.locks.Lock(sig.ID)
	defer unlock()

	positions, err := r.store.PositionsOfSignal(sig.ID, storage.LegAny)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		if err := r.manager.UpdateTicketStopLoss(pos.Ticket, newSL); err != nil {
			r.log.WithError(err).WithField("ticket", pos.Ticket).Error("stop update failed")
		}
	}
	if err := r.store.UpdateStopLoss(sig.ID, newSL); err != nil {
		return err
	}
	r.metrics.IncCommand("edit-sl")
	r.log.WithFields(logrus.Fields{"signal": sig.ID, "sl": newSL}).Info("stop loss updated")
	return nil
}

// applyReparse handles an edited message that still parses as a complete
// signal: the referenced signal takes the new stop and TP list.
func (r *Router) applyReparse(msg feed.Message, parsed *models.ParsedSignal) error {
	sig, err := r.store.FindSignalByChat(msg.ChatID, msg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.log.WithFields(logrus.Fields{"chat": msg.ChatID, "message": msg.ID}).
				Debug("edited message references no known signal")
			return nil
		}
		return err
	}

	newSL, err := r.validator.Validate(parsed.Action, parsed.StopLoss, sig.Symbol, true, false)
	if err != nil {
		return fmt.Errorf("validating edited stop: %w", err)
	}
	newTPs, err := r.validator.ValidateTPList(parsed.Action, parsed.TakeProfits, sig.Symbol, sig.OpenPrice, sig.SecondPrice)
	if err != nil {
		return fmt.Errorf("validating edited take profits: %w", err)
	}

	unlock := r.locks.Lock(sig.ID)
	defer unlock()

	positions, err := r.store.PositionsOfSignal(sig.ID, storage.LegAny)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		if err := r.manager.UpdateTicketStopLoss(pos.Ticket, newSL); err != nil {
			r.log.WithError(err).WithField("ticket", pos.Ticket).Error("stop update failed")
		}
	}
	if err := r.store.UpdateStopLoss(sig.ID, newSL); err != nil {
		return err
	}
	if len(newTPs) > 0 {
		if err := r.store.UpdateTPList(sig.ID, newTPs); err != nil {
			return err
		}
	}
	r.metrics.IncCommand("edit-reparse")
	r.log.WithFields(logrus.Fields{"signal": sig.ID, "sl": newSL, "tps": newTPs}).
		Info("signal updated from edited message")
	return nil
}

// deleteSignal closes every child ticket and removes the signal row, or
// with half set closes half of each position and stops it out at entry.
func (r *Router) deleteSignal(chatID, messageID int64, half bool) error {
	sig, err := r.store.FindSignalByChat(chatID, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.log.WithFields(logrus.Fields{"chat": chatID, "message": messageID}).
				Debug("delete references no known signal")
			return nil
		}
		return err
	}

	unlock := r.locks.Lock(sig.ID)
	defer unlock()

	positions, err := r.store.PositionsOfSignal(sig.ID, storage.LegAny)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		if half {
			if err := r.manager.CloseHalf(pos.Ticket); err != nil {
				r.log.WithError(err).WithField("ticket", pos.Ticket).Error("half close failed")
			}
			continue
		}
		if err := r.manager.Close(pos.Ticket, 0); err != nil {
			// The ticket may still be a pending order rather than a
			// position.
			if cancelErr := r.manager.CancelPending(pos.Ticket); cancelErr != nil {
				r.log.WithError(err).WithField("ticket", pos.Ticket).Error("close failed")
			}
		}
	}

	if half {
		r.metrics.IncCommand("half-close")
		return nil
	}
	if err := r.store.DeleteSignal(sig.ID); err != nil {
		return err
	}
	r.metrics.IncCommand("delete")
	r.log.WithField("signal", sig.ID).Info("signal deleted, positions closed")
	return nil
}

// riskFree moves every position's stop to the first entry's fill price and
// banks half the volume, so the trade can no longer lose.
func (r *Router) riskFree(chatID, messageID int64) error {
	sig, err := r.store.FindSignalByChat(chatID, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.log.WithFields(logrus.Fields{"chat": chatID, "message": messageID}).
				Debug("risk-free references no known signal")
			return nil
		}
		return err
	}

	unlock := r.locks.Lock(sig.ID)
	defer unlock()

	entry, err := r.firstEntryFill(sig)
	if err != nil {
		return err
	}

	positions, err := r.store.PositionsOfSignal(sig.ID, storage.LegAny)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		if err := r.manager.UpdateTicketStopLoss(pos.Ticket, entry); err != nil {
			r.log.WithError(err).WithField("ticket", pos.Ticket).Error("risk-free stop move failed")
			continue
		}
		if err := r.manager.CloseFraction(pos.Ticket, 50, false); err != nil {
			r.log.WithError(err).WithField("ticket", pos.Ticket).Error("risk-free half close failed")
		}
	}
	if err := r.store.UpdateStopLoss(sig.ID, entry); err != nil {
		return err
	}
	r.metrics.IncCommand("risk-free")
	r.log.WithFields(logrus.Fields{"signal": sig.ID, "entry": entry}).Info("signal made risk free")
	return nil
}

// firstEntryFill returns the live fill price of the signal's first leg,
// falling back to the stored open price when the ticket is gone.
func (r *Router) firstEntryFill(sig *models.Signal) (float64, error) {
	firsts, err := r.store.PositionsOfSignal(sig.ID, storage.LegFirst)
	if err != nil {
		return 0, err
	}
	if len(firsts) > 0 {
		if live, err := r.manager.PositionFill(firsts[0].Ticket); err == nil {
			return live, nil
		}
	}
	return sig.OpenPrice, nil
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
