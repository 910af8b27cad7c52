package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"speech-analytics-go/internal/types"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per record. Each Append runs in its own
// transaction.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ Store  = (*SQLiteStore)(nil)
	_ Lister = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (and if needed creates) the history database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between concurrent appends
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		comparison_key TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		overall_score REAL NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_key ON history(comparison_key, recorded_at, seq);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Fetch(ctx context.Context, key string) ([]types.HistoricalRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM history WHERE comparison_key = ? ORDER BY recorded_at, seq`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	recs := []types.HistoricalRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		var rec types.HistoricalRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode history row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) Append(ctx context.Context, key string, rec types.HistoricalRecord) error {
	if key == "" {
		return ErrEmptyKey
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT OR IGNORE INTO history (id, comparison_key, recorded_at, overall_score, payload)
	VALUES (?, ?, ?, ?, ?)
	`, rec.ID, key, rec.Timestamp.UnixNano(), rec.OverallScore, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record: %w", err)
	}
	return nil
}

// Keys lists the comparison keys with at least one record.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT comparison_key FROM history ORDER BY comparison_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
