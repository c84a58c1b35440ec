// Package sqlite persists pooled market snapshots locally so successive runs
// can be inspected and compared without decrypting artifacts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vigji/mootlib/internal/hashutil"
	"github.com/vigji/mootlib/internal/markets"
)

const (
	defaultPath = "data/markets.db"
)

// Store wraps a SQLite DB connection.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTables ensures the markets and fetch_runs tables exist.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// ClearTables truncates the markets table.
func (s *Store) ClearTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM markets;`)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS markets (
	id TEXT NOT NULL PRIMARY KEY,
	source_platform TEXT NOT NULL,
	question TEXT NOT NULL,
	published_at TEXT,
	n_forecasters INTEGER,
	comments_count INTEGER,
	volume REAL,
	probabilities_json TEXT,
	outcomes_json TEXT,
	formatted_outcomes TEXT,
	url TEXT,
	is_resolved INTEGER,
	market_type TEXT,
	text_hash TEXT,
	last_seen_at TEXT,
	raw_json TEXT
);
CREATE INDEX IF NOT EXISTS markets_platform_idx ON markets(source_platform);
CREATE INDEX IF NOT EXISTS markets_published_idx ON markets(published_at);
CREATE TABLE IF NOT EXISTS fetch_runs (
	run_at TEXT NOT NULL,
	platform TEXT NOT NULL,
	market_count INTEGER NOT NULL,
	error TEXT,
	PRIMARY KEY (run_at, platform)
);
`

const upsertSQL = `
INSERT INTO markets (
	id, source_platform, question, published_at,
	n_forecasters, comments_count, volume,
	probabilities_json, outcomes_json, formatted_outcomes,
	url, is_resolved, market_type, text_hash, last_seen_at, raw_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	source_platform=excluded.source_platform,
	question=excluded.question,
	published_at=excluded.published_at,
	n_forecasters=excluded.n_forecasters,
	comments_count=excluded.comments_count,
	volume=excluded.volume,
	probabilities_json=excluded.probabilities_json,
	outcomes_json=excluded.outcomes_json,
	formatted_outcomes=excluded.formatted_outcomes,
	url=excluded.url,
	is_resolved=excluded.is_resolved,
	market_type=excluded.market_type,
	text_hash=excluded.text_hash,
	last_seen_at=excluded.last_seen_at,
	raw_json=excluded.raw_json;
`

// UpsertMarkets inserts/updates one row per pooled market inside a single
// transaction.
func (s *Store) UpsertMarkets(ctx context.Context, ms []markets.PooledMarket) error {
	if len(ms) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, m := range ms {
		if err := execUpsert(ctx, stmt, m, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

func execUpsert(ctx context.Context, stmt *sql.Stmt, m markets.PooledMarket, ts string) error {
	probsJSON, _ := json.Marshal(m.OutcomeProbabilities)
	outcomesJSON, _ := json.Marshal(m.Outcomes)
	rawJSON, _ := json.Marshal(m.Raw)

	_, err := stmt.ExecContext(
		ctx,
		m.ID,
		m.SourcePlatform,
		m.Question,
		formatTime(m.PublishedAt),
		nullableInt(m.Forecasters),
		nullableInt(m.CommentsCount),
		nullableFloat(m.Volume),
		string(probsJSON),
		string(outcomesJSON),
		m.FormattedOutcomes,
		m.URL,
		nullableBool(m.Resolved),
		m.MarketType,
		hashutil.HashText(m.Question),
		ts,
		string(rawJSON),
	)
	return err
}

// InsertFetchRun records the per-source outcome of one orchestrator run.
func (s *Store) InsertFetchRun(ctx context.Context, runAt time.Time, platform string, count int, fetchErr error) error {
	errText := ""
	if fetchErr != nil {
		errText = fetchErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO fetch_runs (run_at, platform, market_count, error) VALUES (?, ?, ?, ?);`,
		runAt.UTC().Format(time.RFC3339Nano), platform, count, errText,
	)
	return err
}

// ListMarkets returns all stored markets ordered newest first. Rows with no
// published_at sort last.
func (s *Store) ListMarkets(ctx context.Context) ([]markets.PooledMarket, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, source_platform, question, published_at,
	n_forecasters, comments_count, volume,
	probabilities_json, outcomes_json, formatted_outcomes,
	url, is_resolved, market_type
FROM markets
ORDER BY published_at = '' ASC, published_at DESC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []markets.PooledMarket
	for rows.Next() {
		var (
			m            markets.PooledMarket
			publishedAt  string
			forecasters  sql.NullInt64
			comments     sql.NullInt64
			volume       sql.NullFloat64
			probsJSON    string
			outcomesJSON string
			resolved     sql.NullInt64
		)
		if err := rows.Scan(
			&m.ID, &m.SourcePlatform, &m.Question, &publishedAt,
			&forecasters, &comments, &volume,
			&probsJSON, &outcomesJSON, &m.FormattedOutcomes,
			&m.URL, &resolved, &m.MarketType,
		); err != nil {
			return nil, err
		}
		if publishedAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, publishedAt); err == nil {
				m.PublishedAt = t.UTC()
			}
		}
		if forecasters.Valid {
			v := int(forecasters.Int64)
			m.Forecasters = &v
		}
		if comments.Valid {
			v := int(comments.Int64)
			m.CommentsCount = &v
		}
		if volume.Valid {
			v := volume.Float64
			m.Volume = &v
		}
		if resolved.Valid {
			m.Resolved = markets.BoolPtr(resolved.Int64 != 0)
		}
		if probsJSON != "" {
			if err := json.Unmarshal([]byte(probsJSON), &m.OutcomeProbabilities); err != nil {
				return nil, fmt.Errorf("decode probabilities for %s: %w", m.ID, err)
			}
		}
		if outcomesJSON != "" {
			if err := json.Unmarshal([]byte(outcomesJSON), &m.Outcomes); err != nil {
				return nil, fmt.Errorf("decode outcomes for %s: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountMarkets reports how many rows the markets table holds.
func (s *Store) CountMarkets(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM markets;`).Scan(&n)
	return n, err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableBool(v *bool) any {
	if v == nil {
		return nil
	}
	if *v {
		return 1
	}
	return 0
}
