package storage

import (
	"sync"

	"github.com/hamidju/teletrader/internal/models"
)

// MockStore implements Interface in memory for tests.
type MockStore struct {
	mu           sync.Mutex
	nextSignal   int64
	nextPosition int64
	Signals      map[int64]*models.Signal
	Positions    map[int64]*models.Position

	// InsertErr, when set, fails the next mutating call.
	InsertErr error
}

// Ensure MockStore implements Interface at compile time.
var _ Interface = (*MockStore)(nil)

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		Signals:   make(map[int64]*models.Signal),
		Positions: make(map[int64]*models.Position),
	}
}

// InsertSignal stores a signal and assigns it the next id.
func (m *MockStore) InsertSignal(sig *models.Signal) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return 0, m.InsertErr
	}
	m.nextSignal++
	cp := *sig
	cp.ID = m.nextSignal
	m.Signals[cp.ID] = &cp
	return cp.ID, nil
}

// InsertPosition stores a position and assigns it the next id.
func (m *MockStore) InsertPosition(p *models.Position) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return 0, m.InsertErr
	}
	m.nextPosition++
	cp := *p
	cp.ID = m.nextPosition
	m.Positions[cp.ID] = &cp
	return cp.ID, nil
}

// InsertSignalWithPosition stores both rows, or neither when InsertErr is
// set.
func (m *MockStore) InsertSignalWithPosition(sig *models.Signal, p *models.Position) (int64, int64, error) {
	m.mu.Lock()
	if m.InsertErr != nil {
		m.mu.Unlock()
		return 0, 0, m.InsertErr
	}
	m.mu.Unlock()

	signalID, err := m.InsertSignal(sig)
	if err != nil {
		return 0, 0, err
	}
	cp := *p
	cp.SignalID = signalID
	positionID, err := m.InsertPosition(&cp)
	if err != nil {
		m.mu.Lock()
		delete(m.Signals, signalID)
		m.mu.Unlock()
		return 0, 0, err
	}
	return signalID, positionID, nil
}

// UpdateStopLoss replaces a stored signal's stop loss.
func (m *MockStore) UpdateStopLoss(signalID int64, sl float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sig, ok := m.Signals[signalID]; ok {
		sig.StopLoss = sl
		return nil
	}
	return ErrNotFound
}

// UpdateTPList replaces a stored signal's take-profit list.
func (m *MockStore) UpdateTPList(signalID int64, tps []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sig, ok := m.Signals[signalID]; ok {
		sig.TakeProfits = append([]float64(nil), tps...)
		return nil
	}
	return ErrNotFound
}

// DeleteSignal removes the signal and cascades to its positions.
func (m *MockStore) DeleteSignal(signalID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Signals, signalID)
	for id, p := range m.Positions {
		if p.SignalID == signalID {
			delete(m.Positions, id)
		}
	}
	return nil
}

// FindExactSignal returns the most recent stored signal matching the tuple.
func (m *MockStore) FindExactSignal(open, second, sl float64, symbol string) (*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.Signal
	for _, sig := range m.Signals {
		if sig.OpenPrice == open && sig.SecondPrice == second && sig.StopLoss == sl && sig.Symbol == symbol {
			if best == nil || sig.ID > best.ID {
				best = sig
			}
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// FindSignalByChat returns the most recent signal for the chat message.
func (m *MockStore) FindSignalByChat(chatID, messageID int64) (*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.Signal
	for _, sig := range m.Signals {
		if sig.ChatID != chatID {
			continue
		}
		if messageID != 0 && sig.MessageID != messageID {
			continue
		}
		if best == nil || sig.ID > best.ID {
			best = sig
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// FindSignalByTicket returns the signal owning a broker ticket.
func (m *MockStore) FindSignalByTicket(ticket int64) (*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Positions {
		if p.Ticket == ticket {
			if sig, ok := m.Signals[p.SignalID]; ok {
				cp := *sig
				return &cp, nil
			}
		}
	}
	return nil, ErrNotFound
}

// PositionsOfSignal lists the signal's positions, optionally by leg.
func (m *MockStore) PositionsOfSignal(signalID int64, leg Leg) ([]models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Position
	for id := int64(1); id <= m.nextPosition; id++ {
		p, ok := m.Positions[id]
		if !ok || p.SignalID != signalID {
			continue
		}
		if leg == LegFirst && !p.IsFirst {
			continue
		}
		if leg == LegSecond && !p.IsSecond {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// RecentTicketsByChat returns up to two tickets, newest first.
func (m *MockStore) RecentTicketsByChat(chatID, messageID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tickets []int64
	for id := m.nextPosition; id >= 1 && len(tickets) < 2; id-- {
		p, ok := m.Positions[id]
		if !ok {
			continue
		}
		sig, ok := m.Signals[p.SignalID]
		if !ok || sig.ChatID != chatID {
			continue
		}
		if messageID != 0 && sig.MessageID != messageID {
			continue
		}
		tickets = append(tickets, p.Ticket)
	}
	return tickets, nil
}

// TPLevelsOfTicket returns the owning signal's take-profit levels.
func (m *MockStore) TPLevelsOfTicket(ticket int64) ([]float64, error) {
	sig, err := m.FindSignalByTicket(ticket)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), sig.TakeProfits...), nil
}

// CacheStats reports nothing; the mock has no cache.
func (m *MockStore) CacheStats() (uint64, uint64) { return 0, 0 }

// Close is a no-op.
func (m *MockStore) Close() error { return nil }
