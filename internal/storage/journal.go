package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"crypto_arb/pkg/quant"

	_ "github.com/glebarez/go-sqlite"
)

// Journal kinds written by the engine.
const (
	KindLogin       = "login"
	KindBalance     = "balance"
	KindCommand     = "command"
	KindExecution   = "execution"
	KindHedge       = "hedge"
	KindHedgeResult = "hedge_result"
	KindSweep       = "sweep"
	KindTeardown    = "teardown"
)

// Entry is one journal row.
type Entry struct {
	ID      int64           `json:"id"`
	Kind    string          `json:"kind"`
	Ts      quant.TimeStamp `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// Journal is an append-only audit log of what the engine sent and received,
// kept in SQLite.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal database with WAL mode enabled.
func OpenJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
		"PRAGMA busy_timeout=5000;",
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
		`CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			ts INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entries_kind ON entries(kind);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Journal{db: db}, nil
}

// Append stores v as JSON under kind.
func (j *Journal) Append(ctx context.Context, kind string, ts quant.TimeStamp, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	_, err = j.db.ExecContext(ctx,
		"INSERT INTO entries (kind, ts, payload) VALUES (?, ?, ?)",
		kind, int64(ts), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", kind, err)
	}
	return nil
}

// Tail returns up to limit entries, newest first. An empty kind matches all.
func (j *Journal) Tail(ctx context.Context, kind string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT id, kind, ts, payload FROM entries ORDER BY id DESC LIMIT ?"
	args := []any{limit}
	if kind != "" {
		query = "SELECT id, kind, ts, payload FROM entries WHERE kind = ? ORDER BY id DESC LIMIT ?"
		args = []any{kind, limit}
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Kind, &ts, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Ts = quant.TimeStamp(ts)
		e.Payload = payload
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// Scan calls fn for every entry with an id above afterID, oldest first.
// Iteration stops at the first error fn returns.
func (j *Journal) Scan(ctx context.Context, afterID int64, fn func(Entry) error) error {
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, kind, ts, payload FROM entries WHERE id > ? ORDER BY id ASC",
		afterID,
	)
	if err != nil {
		return fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		var ts int64
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Kind, &ts, &payload); err != nil {
			return fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Ts = quant.TimeStamp(ts)
		e.Payload = payload
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of entries of a kind, or of all kinds when empty.
func (j *Journal) Count(ctx context.Context, kind string) (int64, error) {
	var n int64
	var err error
	if kind == "" {
		err = j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n)
	} else {
		err = j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries WHERE kind = ?", kind).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

// UpsertMetadata saves a key-value pair to the metadata table.
func (j *Journal) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a value from the metadata table. Missing keys return "".
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
