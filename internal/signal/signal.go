// Package signal hosts the Narrative Index component scorers. Each scorer
// normalizes one upstream source into a 0..100 reading; the narrative
// engine fans out to all configured scorers and weights the results.
package signal

import (
	"context"
	"math"
	"time"

	"github.com/StreetFDN/roboglobe/internal/fetch"
)

// Component names, used as weight keys and API path segments.
const (
	ComponentGitHub     = "github"
	ComponentNews       = "news"
	ComponentContracts  = "contracts"
	ComponentFunding    = "funding"
	ComponentTechnical  = "technical"
	ComponentIndexAlpha = "indexAlpha"
	ComponentPolymarket = "polymarket"
)

// Reading is one component's normalized contribution.
type Reading struct {
	Component   string    `json:"component"`
	Score       float64   `json:"score"`
	Signals     []string  `json:"signals,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Scorer turns one upstream source into a 0..100 reading.
type Scorer interface {
	Component() string
	Score(ctx context.Context) (Reading, error)
}

// cached wraps a scorer's compute path with the shared cache protocol:
// fresh hits short-circuit, errors fall back to the last stored reading
// when one exists, successes are stored for the next call.
func cached(c *fetch.Cache, key string, compute func() (Reading, error)) (Reading, error) {
	if c != nil {
		if v, ok := c.Get(key); ok {
			return v.(Reading), nil
		}
	}
	r, err := compute()
	if err != nil {
		if c != nil {
			if v, ok, _ := c.GetStale(key); ok {
				return v.(Reading), nil
			}
		}
		return Reading{}, err
	}
	if c != nil {
		c.Set(key, r)
	}
	return r, nil
}

// normalize maps v onto 0..100 where target and above scores 100.
func normalize(v, target float64) float64 {
	if target <= 0 || v <= 0 {
		return 0
	}
	return clampScore(v / target * 100)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
