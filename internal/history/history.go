// Package history persists Narrative Index snapshots in an append-only
// log and answers trailing-window queries that feed trend detection.
// Two backends exist: a versioned JSON file and a SQLite database.
package history

import (
	"context"
	"fmt"
	"time"
)

const (
	// MinWindowDays and MaxWindowDays bound history queries.
	MinWindowDays = 1
	MaxWindowDays = 365

	// Version identifies the on-disk document format of the file backend.
	Version = 1
)

// Entry is one persisted snapshot of a computed score.
type Entry struct {
	Timestamp  time.Time          `json:"timestamp"`
	Overall    float64            `json:"overall"`
	Components map[string]float64 `json:"components"`
	Trend      string             `json:"trend"`
	Confidence float64            `json:"confidence"`
}

// Store is an append-only score log. Entries are never mutated or deleted
// once written.
type Store interface {
	// Append adds one snapshot to the log.
	Append(ctx context.Context, e Entry) error
	// Window returns entries with Timestamp within the trailing days
	// window, inclusive, ordered oldest first.
	Window(ctx context.Context, days int) ([]Entry, error)
	Close() error
}

// ValidateDays checks a window size against the allowed range.
func ValidateDays(days int) error {
	if days < MinWindowDays || days > MaxWindowDays {
		return fmt.Errorf("days must be between %d and %d, got %d", MinWindowDays, MaxWindowDays, days)
	}
	return nil
}
