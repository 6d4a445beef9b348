package storage

import (
	"github.com/hamidju/teletrader/internal/models"
)

// Leg filters position queries by which entry slot they fill.
type Leg int

// Leg filters.
const (
	LegAny Leg = iota
	LegFirst
	LegSecond
)

// Interface defines the contract for signal and position persistence.
//
// Implementations must be safe for concurrent use - callers can assume all
// methods are goroutine-safe and can safely call them from multiple
// goroutines. Reads may be served from a cache, but never a stale one:
// a mutation on a table invalidates its cached reads before returning.
type Interface interface {
	// Writes
	InsertSignal(s *models.Signal) (int64, error)
	InsertPosition(p *models.Position) (int64, error)
	// InsertSignalWithPosition creates the signal and its primary position
	// as one atomic unit: after a crash either both rows exist or neither.
	InsertSignalWithPosition(s *models.Signal, p *models.Position) (signalID, positionID int64, err error)
	UpdateStopLoss(signalID int64, sl float64) error
	UpdateTPList(signalID int64, tps []float64) error
	DeleteSignal(signalID int64) error

	// Signal lookups
	FindExactSignal(open, second, sl float64, symbol string) (*models.Signal, error)
	FindSignalByChat(chatID, messageID int64) (*models.Signal, error)
	FindSignalByTicket(ticket int64) (*models.Signal, error)

	// Position lookups
	PositionsOfSignal(signalID int64, leg Leg) ([]models.Position, error)
	// RecentTicketsByChat returns the broker tickets most recently opened
	// for the chat, newest first, at most two. A non-zero messageID scopes
	// the lookup to one source message.
	RecentTicketsByChat(chatID, messageID int64) ([]int64, error)
	TPLevelsOfTicket(ticket int64) ([]float64, error)

	// CacheStats reports cache hits and misses since start.
	CacheStats() (hits, misses uint64)

	Close() error
}

// Ensure SQLiteStore implements Interface
var _ Interface = (*SQLiteStore)(nil)
