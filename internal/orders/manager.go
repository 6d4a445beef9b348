package orders

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/hamidju/teletrader/internal/broker"
	"github.com/hamidju/teletrader/internal/util"
)

// Manager applies mutations to live tickets: full and partial closes, stop
// moves, pending-order edits and cancellation. Every method re-fetches the
// ticket first; broker state is never cached across calls.
type Manager struct {
	broker broker.Broker
	log    logrus.FieldLogger
}

// NewManager returns a manager over the broker session.
func NewManager(b broker.Broker, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{broker: b, log: logger}
}

// Close closes volume lots of the position. Zero volume closes all of it.
func (m *Manager) Close(ticket int64, volume float64) error {
	pos, err := m.broker.PositionByTicket(ticket)
	if err != nil {
		return fmt.Errorf("fetching position %d: %w", ticket, err)
	}
	if volume == 0 || volume > pos.Volume {
		volume = pos.Volume
	}

	tick, err := m.broker.Tick(pos.Symbol)
	if err != nil {
		return fmt.Errorf("fetching quote for %s: %w", pos.Symbol, err)
	}

	// Closing means dealing the opposite direction against the ticket.
	closeType := broker.OrderTypeSell
	price := tick.Bid
	if pos.Type == broker.OrderTypeSell {
		closeType = broker.OrderTypeBuy
		price = tick.Ask
	}

	_, err = m.broker.OrderSend(&broker.OrderRequest{
		Action:      broker.ActionDeal,
		Symbol:      pos.Symbol,
		Volume:      volume,
		Type:        closeType,
		Price:       price,
		Deviation:   closeDeviation,
		Magic:       broker.Magic,
		Position:    ticket,
		TypeFilling: broker.FillingIOC,
		TypeTime:    broker.TimeGTC,
	})
	if err != nil {
		return fmt.Errorf("closing position %d: %w", ticket, err)
	}
	m.log.WithFields(logrus.Fields{"ticket": ticket, "volume": volume}).Info("position closed")
	return nil
}

// CloseFraction closes pct percent of the position's current volume,
// rounded to the broker's 0.01 step. closeAllOnMin closes the whole
// position instead when the computed slice would fall under the minimum;
// with it off the close is skipped.
func (m *Manager) CloseFraction(ticket int64, pct int, closeAllOnMin bool) error {
	if pct >= 100 {
		return m.Close(ticket, 0)
	}
	pos, err := m.broker.PositionByTicket(ticket)
	if err != nil {
		return fmt.Errorf("fetching position %d: %w", ticket, err)
	}

	volume := math.Floor(pos.Volume*float64(pct)) / 100
	volume = util.RoundToDigits(volume, 2)
	if volume < minLot {
		if closeAllOnMin {
			return m.Close(ticket, 0)
		}
		m.log.WithFields(logrus.Fields{"ticket": ticket, "pct": pct}).
			Debug("partial close below minimum volume, skipped")
		return nil
	}
	return m.Close(ticket, volume)
}

// CloseHalf closes half the position and moves its stop to the entry price.
func (m *Manager) CloseHalf(ticket int64) error {
	pos, err := m.broker.PositionByTicket(ticket)
	if err != nil {
		return fmt.Errorf("fetching position %d: %w", ticket, err)
	}

	half := util.RoundToDigits(pos.Volume/2, 2)
	if half < minLot {
		half = pos.Volume
	}
	if err := m.Close(ticket, half); err != nil {
		return err
	}
	if half >= pos.Volume {
		return nil
	}
	return m.ModifyStopLoss(ticket, pos.PriceOpen)
}

// ModifyStopLoss moves the position's stop, keeping its take profit.
func (m *Manager) ModifyStopLoss(ticket int64, sl float64) error {
	pos, err := m.broker.PositionByTicket(ticket)
	if err != nil {
		return fmt.Errorf("fetching position %d: %w", ticket, err)
	}
	_, err = m.broker.OrderSend(&broker.OrderRequest{
		Action:   broker.ActionSLTP,
		Symbol:   pos.Symbol,
		Position: ticket,
		SL:       sl,
		TP:       pos.TP,
	})
	if err != nil {
		return fmt.Errorf("moving stop of position %d: %w", ticket, err)
	}
	m.log.WithFields(logrus.Fields{"ticket": ticket, "sl": sl}).Info("stop loss moved")
	return nil
}

// ModifyPendingStopLoss rewrites a pending order's stop, keeping its entry
// price and take profit.
func (m *Manager) ModifyPendingStopLoss(ticket int64, sl float64) error {
	ord, err := m.broker.OrderByTicket(ticket)
	if err != nil {
		return fmt.Errorf("fetching order %d: %w", ticket, err)
	}
	_, err = m.broker.OrderSend(&broker.OrderRequest{
		Action: broker.ActionModify,
		Order:  ticket,
		Price:  ord.PriceOpen,
		SL:     sl,
		TP:     ord.TP,
	})
	if err != nil {
		return fmt.Errorf("modifying order %d: %w", ticket, err)
	}
	m.log.WithFields(logrus.Fields{"ticket": ticket, "sl": sl}).Info("pending stop loss moved")
	return nil
}

// CancelPending removes a pending order.
func (m *Manager) CancelPending(ticket int64) error {
	_, err := m.broker.OrderSend(&broker.OrderRequest{
		Action: broker.ActionRemove,
		Order:  ticket,
	})
	if err != nil {
		return fmt.Errorf("cancelling order %d: %w", ticket, err)
	}
	m.log.WithField("ticket", ticket).Info("pending order cancelled")
	return nil
}

// PositionFill returns the live fill price of an open position.
func (m *Manager) PositionFill(ticket int64) (float64, error) {
	pos, err := m.broker.PositionByTicket(ticket)
	if err != nil {
		return 0, fmt.Errorf("fetching position %d: %w", ticket, err)
	}
	return pos.PriceOpen, nil
}

// UpdateTicketStopLoss moves the stop on whichever the ticket currently is:
// an open position or a still-pending order.
func (m *Manager) UpdateTicketStopLoss(ticket int64, sl float64) error {
	if _, err := m.broker.PositionByTicket(ticket); err == nil {
		return m.ModifyStopLoss(ticket, sl)
	}
	return m.ModifyPendingStopLoss(ticket, sl)
}
