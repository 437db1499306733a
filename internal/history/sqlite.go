package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the database-backed log. Writes go through a single
// connection; reads use a separate read-only handle.
type SQLiteStore struct {
	readDB  *sql.DB
	writeDB *sql.DB
	now     func() time.Time
}

// OpenSQLite opens (and if needed initializes) the score log at dbPath.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	s := &SQLiteStore{readDB: readDB, writeDB: writeDB, now: time.Now}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS scores (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  DATETIME NOT NULL,
			overall    REAL NOT NULL,
			components TEXT NOT NULL,
			trend      TEXT NOT NULL,
			confidence REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scores_timestamp ON scores(timestamp);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	comps, err := json.Marshal(e.Components)
	if err != nil {
		return fmt.Errorf("encoding components: %w", err)
	}
	_, err = s.writeDB.ExecContext(ctx, `
		INSERT INTO scores (timestamp, overall, components, trend, confidence)
		VALUES (?, ?, ?, ?, ?)
	`, e.Timestamp.UTC(), e.Overall, string(comps), e.Trend, e.Confidence)
	if err != nil {
		return fmt.Errorf("appending score: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Window(ctx context.Context, days int) ([]Entry, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	cutoff := s.now().AddDate(0, 0, -days).UTC()
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT timestamp, overall, components, trend, confidence
		FROM scores
		WHERE timestamp >= ?
		ORDER BY timestamp ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying scores: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var comps string
		if err := rows.Scan(&e.Timestamp, &e.Overall, &comps, &e.Trend, &e.Confidence); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		if err := json.Unmarshal([]byte(comps), &e.Components); err != nil {
			return nil, fmt.Errorf("decoding components: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
