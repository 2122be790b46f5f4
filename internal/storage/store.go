package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"paper_trade/internal/event"
	"paper_trade/internal/infra"
	"paper_trade/pkg/quant"

	_ "github.com/glebarez/go-sqlite"
)

// Journal is the SQLite history of a paper trading service: every sequenced
// tick (replay source for backtests) and every engine notification (audit).
// Engine state is never rebuilt from it.
type Journal struct {
	db      *sql.DB
	breaker *infra.CircuitBreaker
	log     *slog.Logger

	skipped atomic.Uint64
}

// OpenJournal opens (or creates) the journal at dbPath with WAL mode enabled.
// ":memory:" works for tests.
func OpenJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer; also keeps a ":memory:" database on a single connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		// id is the sequencer number
		`CREATE TABLE IF NOT EXISTS ticks (
			id INTEGER PRIMARY KEY,
			symbol TEXT NOT NULL,
			ts INTEGER NOT NULL,
			bid INTEGER NOT NULL,
			ask INTEGER NOT NULL,
			last INTEGER NOT NULL,
			source TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			ts INTEGER NOT NULL,
			order_id TEXT,
			payload BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_order ON notifications(order_id);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Journal{
		db:      db,
		breaker: infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("journal")),
		log:     slog.Default(),
	}, nil
}

// SetLogger replaces the default logger.
func (j *Journal) SetLogger(log *slog.Logger) {
	j.log = log
}

// SaveTick stores a sequenced tick.
func (j *Journal) SaveTick(ctx context.Context, ev *event.MarketUpdateEvent) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO ticks (id, symbol, ts, bid, ask, last, source) VALUES (?, ?, ?, ?, ?, ?, ?)",
		ev.Seq, ev.Symbol, int64(ev.Ts), int64(ev.BidMicros), int64(ev.AskMicros), int64(ev.LastMicros), ev.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tick %d: %w", ev.Seq, err)
	}
	return nil
}

// LastSeq returns the highest tick sequence number, 0 when empty.
func (j *Journal) LastSeq(ctx context.Context) (uint64, error) {
	var lastSeq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, "SELECT MAX(id) FROM ticks").Scan(&lastSeq); err != nil {
		return 0, fmt.Errorf("failed to get last seq: %w", err)
	}
	if !lastSeq.Valid {
		return 0, nil
	}
	return uint64(lastSeq.Int64), nil
}

// LoadTicks returns ticks with seq >= fromSeq in order. The events are plain
// allocations, not pooled.
func (j *Journal) LoadTicks(ctx context.Context, fromSeq uint64) ([]*event.MarketUpdateEvent, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, symbol, ts, bid, ask, last, source FROM ticks WHERE id >= ? ORDER BY id ASC",
		fromSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks: %w", err)
	}
	defer rows.Close()

	var out []*event.MarketUpdateEvent
	for rows.Next() {
		var (
			ev           event.MarketUpdateEvent
			ts, bid, ask int64
			last         int64
			seq          int64
		)
		if err := rows.Scan(&seq, &ev.Symbol, &ts, &bid, &ask, &last, &ev.Source); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		ev.Seq = uint64(seq)
		ev.Ts = quant.TimeStamp(ts)
		ev.BidMicros = quant.PriceMicros(bid)
		ev.AskMicros = quant.PriceMicros(ask)
		ev.LastMicros = quant.PriceMicros(last)
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// SaveNotification appends n to the audit journal.
func (j *Journal) SaveNotification(ctx context.Context, n event.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	var orderID sql.NullString
	if n.Order != nil {
		orderID = sql.NullString{String: n.Order.ID, Valid: true}
	}
	_, err = j.db.ExecContext(ctx,
		"INSERT INTO notifications (seq, kind, ts, order_id, payload) VALUES (?, ?, ?, ?, ?)",
		n.Seq, string(n.Kind), int64(n.Ts), orderID, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification %d: %w", n.Seq, err)
	}
	return nil
}

// JournalEntry is a stored notification with its journal row id.
type JournalEntry struct {
	ID           int64 `json:"id"`
	Notification event.Notification
}

// LoadNotifications returns up to limit notifications with row id > afterID,
// optionally only those about orderID.
func (j *Journal) LoadNotifications(ctx context.Context, afterID int64, orderID string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT id, payload FROM notifications WHERE id > ? ORDER BY id ASC LIMIT ?"
	args := []any{afterID, limit}
	if orderID != "" {
		query = "SELECT id, payload FROM notifications WHERE id > ? AND order_id = ? ORDER BY id ASC LIMIT ?"
		args = []any{afterID, orderID, limit}
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var payload []byte
		if err := rows.Scan(&e.ID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Notification); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// Run journals notifications from ch until ch is closed or ctx is done.
// Writes are best effort: after repeated failures the circuit opens and
// notifications are skipped (and counted) until a probe succeeds.
func (j *Journal) Run(ctx context.Context, ch <-chan event.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			j.record(ctx, n)
		}
	}
}

func (j *Journal) record(ctx context.Context, n event.Notification) {
	if !j.breaker.Allow() {
		j.skipped.Add(1)
		return
	}
	if err := j.SaveNotification(ctx, n); err != nil {
		j.breaker.RecordFailure()
		if !errors.Is(err, context.Canceled) {
			j.log.Error("JOURNAL_WRITE_FAILED", slog.Uint64("seq", n.Seq), slog.Any("error", err))
		}
		return
	}
	j.breaker.RecordSuccess()
}

// Skipped returns how many notifications the open circuit skipped.
func (j *Journal) Skipped() uint64 {
	return j.skipped.Load()
}

// UpsertMetadata saves a key-value pair.
func (j *Journal) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata returns the value for key, "" when absent.
func (j *Journal) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := j.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}
