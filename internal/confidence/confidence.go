// Package confidence quantifies how much trust to place in a score or a
// record: how complete its fields are and how fresh its underlying data is.
package confidence

import (
	"math"
	"time"
)

// Level buckets a confidence score for display.
type Level string

const (
	High   Level = "high"
	Medium Level = "medium"
	Low    Level = "low"
)

// Completeness returns the fraction of filled fields in a flat record,
// rounded to 2 decimals. Nil values, empty strings, and empty slices or maps
// count as unfilled. A nil or empty input scores 0.
func Completeness(fields map[string]any) float64 {
	if len(fields) == 0 {
		return 0
	}
	filled := 0
	for _, v := range fields {
		if isFilled(v) {
			filled++
		}
	}
	return round2(float64(filled) / float64(len(fields)))
}

func isFilled(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case []string:
		return len(x) > 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// LevelOf categorizes a confidence score: high ≥ 0.8, medium ≥ 0.5, low
// otherwise. The score is clamped to [0,1] before comparison.
func LevelOf(score float64) Level {
	score = clamp01(score)
	switch {
	case score >= 0.8:
		return High
	case score >= 0.5:
		return Medium
	default:
		return Low
	}
}

// Merge combines several confidence scores into one. When weights align
// one-to-one with scores it computes the weighted average; on a length
// mismatch (including nil weights) it falls back to the simple mean.
// Returns 0 for empty scores or zero total weight.
func Merge(scores, weights []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	if len(weights) != len(scores) {
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores))
	}
	var weighted, total float64
	for i, s := range scores {
		weighted += s * weights[i]
		total += weights[i]
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// Freshness maps data age onto [0,1]: 1.0 for brand-new data, decaying
// linearly to 0 at 24 hours. A zero lastUpdated scores 0.
func Freshness(lastUpdated, now time.Time) float64 {
	if lastUpdated.IsZero() {
		return 0
	}
	ageHours := now.Sub(lastUpdated).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Max(0, 1-ageHours/24)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
