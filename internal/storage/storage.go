// Package storage persists signals and their broker positions in an
// embedded SQLite file, fronted by a write-through LRU+TTL cache.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hamidju/teletrader/internal/models"
)

const (
	tableSignals   = "signals"
	tablePositions = "positions"
	tablesJoined   = "signals,positions"

	// createdAtLayout is the local timestamp format stored in signal rows.
	createdAtLayout = "2006-01-02 15:04:05"

	cacheCapacity = 1000
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_title TEXT    NOT NULL DEFAULT '',
	message_id    INTEGER NOT NULL,
	chat_id       INTEGER NOT NULL,
	open_price    REAL    NOT NULL,
	second_price  REAL    NOT NULL DEFAULT 0,
	stop_loss     REAL    NOT NULL,
	tp_list       TEXT    NOT NULL DEFAULT '',
	symbol        TEXT    NOT NULL,
	created_at    TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	signal_id INTEGER NOT NULL REFERENCES signals(id) ON DELETE CASCADE,
	ticket    INTEGER NOT NULL,
	user_id   INTEGER NOT NULL,
	is_first  INTEGER NOT NULL DEFAULT 0,
	is_second INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_positions_signal ON positions(signal_id);
CREATE INDEX IF NOT EXISTS idx_positions_ticket ON positions(ticket);
`

// SQLiteStore is the embedded relational store behind Interface.
type SQLiteStore struct {
	db    *sql.DB
	cache *queryCache
	now   func() time.Time
}

// Options tune store construction.
type Options struct {
	// DisableCache turns the read cache off entirely.
	DisableCache bool
	// CacheTTL bounds entry freshness; zero means five minutes.
	CacheTTL time.Duration
}

// NewSQLiteStore opens (or creates) the database file at path and applies
// the schema idempotently.
func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer; the std pool would otherwise hand out
	// concurrent connections that can deadlock on write contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if !opts.DisableCache {
		ttl := opts.CacheTTL
		if ttl == 0 {
			ttl = 5 * time.Minute
		}
		s.cache = newQueryCache(cacheCapacity, ttl)
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CacheStats reports cache hits and misses since start.
func (s *SQLiteStore) CacheStats() (hits, misses uint64) {
	return s.cache.stats()
}

// InsertSignal inserts a signal row and returns its id.
func (s *SQLiteStore) InsertSignal(sig *models.Signal) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO signals (channel_title, message_id, chat_id, open_price, second_price, stop_loss, tp_list, symbol, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ChannelTitle, sig.MessageID, sig.ChatID, sig.OpenPrice, sig.SecondPrice,
		sig.StopLoss, models.FormatTPList(sig.TakeProfits), sig.Symbol, s.createdAt(sig),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting signal: %w", err)
	}
	s.cache.invalidate(tableSignals)
	return res.LastInsertId()
}

// InsertPosition inserts a position row and returns its id.
func (s *SQLiteStore) InsertPosition(p *models.Position) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO positions (signal_id, ticket, user_id, is_first, is_second) VALUES (?, ?, ?, ?, ?)`,
		p.SignalID, p.Ticket, p.UserID, p.IsFirst, p.IsSecond,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting position: %w", err)
	}
	s.cache.invalidate(tablePositions)
	return res.LastInsertId()
}

// InsertSignalWithPosition creates the signal and its primary position in
// one transaction.
func (s *SQLiteStore) InsertSignalWithPosition(sig *models.Signal, p *models.Position) (int64, int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`INSERT INTO signals (channel_title, message_id, chat_id, open_price, second_price, stop_loss, tp_list, symbol, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ChannelTitle, sig.MessageID, sig.ChatID, sig.OpenPrice, sig.SecondPrice,
		sig.StopLoss, models.FormatTPList(sig.TakeProfits), sig.Symbol, s.createdAt(sig),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("inserting signal: %w", err)
	}
	signalID, err := res.LastInsertId()
	if err != nil {
		return 0, 0, err
	}

	res, err = tx.Exec(
		`INSERT INTO positions (signal_id, ticket, user_id, is_first, is_second) VALUES (?, ?, ?, ?, ?)`,
		signalID, p.Ticket, p.UserID, p.IsFirst, p.IsSecond,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("inserting position: %w", err)
	}
	positionID, err := res.LastInsertId()
	if err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing: %w", err)
	}
	s.cache.invalidate(tableSignals)
	s.cache.invalidate(tablePositions)
	return signalID, positionID, nil
}

// UpdateStopLoss replaces the stored stop loss of a signal.
func (s *SQLiteStore) UpdateStopLoss(signalID int64, sl float64) error {
	if _, err := s.db.Exec(`UPDATE signals SET stop_loss = ? WHERE id = ?`, sl, signalID); err != nil {
		return fmt.Errorf("updating stop loss: %w", err)
	}
	s.cache.invalidate(tableSignals)
	return nil
}

// UpdateTPList replaces the stored take-profit list of a signal.
func (s *SQLiteStore) UpdateTPList(signalID int64, tps []float64) error {
	if _, err := s.db.Exec(`UPDATE signals SET tp_list = ? WHERE id = ?`, models.FormatTPList(tps), signalID); err != nil {
		return fmt.Errorf("updating tp list: %w", err)
	}
	s.cache.invalidate(tableSignals)
	return nil
}

// DeleteSignal removes a signal; its positions cascade.
func (s *SQLiteStore) DeleteSignal(signalID int64) error {
	if _, err := s.db.Exec(`DELETE FROM signals WHERE id = ?`, signalID); err != nil {
		return fmt.Errorf("deleting signal: %w", err)
	}
	s.cache.invalidate(tableSignals)
	s.cache.invalidate(tablePositions)
	return nil
}

const signalColumns = `id, channel_title, message_id, chat_id, open_price, second_price, stop_loss, tp_list, symbol, created_at`

// FindExactSignal returns the most recent signal matching the price tuple
// exactly, or ErrNotFound.
func (s *SQLiteStore) FindExactSignal(open, second, sl float64, symbol string) (*models.Signal, error) {
	key := cacheKey(tableSignals, "exact",
		fmt.Sprint(open), fmt.Sprint(second), fmt.Sprint(sl), symbol)
	if v, ok := s.cache.get(key); ok {
		return copySignal(v.(*models.Signal)), nil
	}

	row := s.db.QueryRow(
		`SELECT `+signalColumns+` FROM signals
		 WHERE open_price = ? AND second_price = ? AND stop_loss = ? AND symbol = ?
		 ORDER BY id DESC LIMIT 1`,
		open, second, sl, symbol,
	)
	sig, err := scanSignal(row)
	if err != nil {
		return nil, err
	}
	s.cache.set(key, copySignal(sig))
	return sig, nil
}

// FindSignalByChat returns the signal created from the given chat message,
// or ErrNotFound. A zero messageID returns the chat's most recent signal.
func (s *SQLiteStore) FindSignalByChat(chatID, messageID int64) (*models.Signal, error) {
	key := cacheKey(tableSignals, "by_chat", fmt.Sprint(chatID), fmt.Sprint(messageID))
	if v, ok := s.cache.get(key); ok {
		return copySignal(v.(*models.Signal)), nil
	}

	var row *sql.Row
	if messageID != 0 {
		row = s.db.QueryRow(
			`SELECT `+signalColumns+` FROM signals WHERE chat_id = ? AND message_id = ? ORDER BY id DESC LIMIT 1`,
			chatID, messageID)
	} else {
		row = s.db.QueryRow(
			`SELECT `+signalColumns+` FROM signals WHERE chat_id = ? ORDER BY id DESC LIMIT 1`,
			chatID)
	}
	sig, err := scanSignal(row)
	if err != nil {
		return nil, err
	}
	s.cache.set(key, copySignal(sig))
	return sig, nil
}

// FindSignalByTicket returns the signal owning the broker ticket, via the
// positions join, or ErrNotFound.
func (s *SQLiteStore) FindSignalByTicket(ticket int64) (*models.Signal, error) {
	key := cacheKey(tablesJoined, "by_ticket", fmt.Sprint(ticket))
	if v, ok := s.cache.get(key); ok {
		return copySignal(v.(*models.Signal)), nil
	}

	row := s.db.QueryRow(
		`SELECT s.id, s.channel_title, s.message_id, s.chat_id, s.open_price, s.second_price,
		        s.stop_loss, s.tp_list, s.symbol, s.created_at
		 FROM signals s JOIN positions p ON p.signal_id = s.id
		 WHERE p.ticket = ? ORDER BY p.id DESC LIMIT 1`,
		ticket,
	)
	sig, err := scanSignal(row)
	if err != nil {
		return nil, err
	}
	s.cache.set(key, copySignal(sig))
	return sig, nil
}

// PositionsOfSignal lists the signal's positions, optionally filtered to
// one entry leg.
func (s *SQLiteStore) PositionsOfSignal(signalID int64, leg Leg) ([]models.Position, error) {
	key := cacheKey(tablePositions, "of_signal", fmt.Sprint(signalID), fmt.Sprint(leg))
	if v, ok := s.cache.get(key); ok {
		return append([]models.Position(nil), v.([]models.Position)...), nil
	}

	q := `SELECT id, signal_id, ticket, user_id, is_first, is_second FROM positions WHERE signal_id = ?`
	switch leg {
	case LegFirst:
		q += ` AND is_first = 1`
	case LegSecond:
		q += ` AND is_second = 1`
	}
	q += ` ORDER BY id LIMIT 2`

	rows, err := s.db.Query(q, signalID)
	if err != nil {
		return nil, fmt.Errorf("querying positions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.ID, &p.SignalID, &p.Ticket, &p.UserID, &p.IsFirst, &p.IsSecond); err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.cache.set(key, append([]models.Position(nil), positions...))
	return positions, nil
}

// RecentTicketsByChat returns up to two broker tickets most recently opened
// for the chat, newest first.
func (s *SQLiteStore) RecentTicketsByChat(chatID, messageID int64) ([]int64, error) {
	key := cacheKey(tablesJoined, "recent_tickets", fmt.Sprint(chatID), fmt.Sprint(messageID))
	if v, ok := s.cache.get(key); ok {
		return append([]int64(nil), v.([]int64)...), nil
	}

	q := `SELECT p.ticket FROM positions p JOIN signals s ON p.signal_id = s.id WHERE s.chat_id = ?`
	args := []interface{}{chatID}
	if messageID != 0 {
		q += ` AND s.message_id = ?`
		args = append(args, messageID)
	}
	q += ` ORDER BY p.id DESC LIMIT 2`

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tickets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tickets []int64
	for rows.Next() {
		var t int64
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.cache.set(key, append([]int64(nil), tickets...))
	return tickets, nil
}

// TPLevelsOfTicket returns the take-profit levels of the signal owning the
// broker ticket.
func (s *SQLiteStore) TPLevelsOfTicket(ticket int64) ([]float64, error) {
	key := cacheKey(tablesJoined, "tp_levels", fmt.Sprint(ticket))
	if v, ok := s.cache.get(key); ok {
		return append([]float64(nil), v.([]float64)...), nil
	}

	row := s.db.QueryRow(
		`SELECT s.tp_list FROM signals s JOIN positions p ON p.signal_id = s.id
		 WHERE p.ticket = ? ORDER BY p.id DESC LIMIT 1`,
		ticket,
	)
	var tpList string
	if err := row.Scan(&tpList); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning tp list: %w", err)
	}
	tps := models.ParseTPList(tpList)
	s.cache.set(key, append([]float64(nil), tps...))
	return tps, nil
}

func (s *SQLiteStore) createdAt(sig *models.Signal) string {
	t := sig.CreatedAt
	if t.IsZero() {
		t = s.now()
	}
	return t.Format(createdAtLayout)
}

func scanSignal(row *sql.Row) (*models.Signal, error) {
	var sig models.Signal
	var tpList, createdAt string
	err := row.Scan(&sig.ID, &sig.ChannelTitle, &sig.MessageID, &sig.ChatID,
		&sig.OpenPrice, &sig.SecondPrice, &sig.StopLoss, &tpList, &sig.Symbol, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning signal: %w", err)
	}
	sig.TakeProfits = models.ParseTPList(tpList)
	if t, err := time.ParseInLocation(createdAtLayout, createdAt, time.Local); err == nil {
		sig.CreatedAt = t
	}
	return &sig, nil
}

func copySignal(sig *models.Signal) *models.Signal {
	cp := *sig
	cp.TakeProfits = append([]float64(nil), sig.TakeProfits...)
	return &cp
}
