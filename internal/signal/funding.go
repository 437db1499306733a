package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/StreetFDN/roboglobe/internal/company"
	"github.com/StreetFDN/roboglobe/internal/fetch"
)

const defaultFundingWindow = 90

// FundingOptions configure the funding-velocity scorer.
type FundingOptions struct {
	// WindowDays is the recent-raise window compared against the
	// trailing-year pace (default 90).
	WindowDays int
}

// Funding scores capital momentum from the tracked dataset: raise totals
// in the recent window against the trailing-year pace. 50 means raises
// are arriving on pace, 100 means at least double the pace.
type Funding struct {
	store *company.Store
	cache *fetch.Cache
	opts  FundingOptions
	now   func() time.Time
}

func NewFunding(store *company.Store, cache *fetch.Cache, opts FundingOptions) *Funding {
	if opts.WindowDays <= 0 {
		opts.WindowDays = defaultFundingWindow
	}
	return &Funding{store: store, cache: cache, opts: opts, now: time.Now}
}

func (f *Funding) Component() string { return ComponentFunding }

func (f *Funding) Score(ctx context.Context) (Reading, error) {
	return cached(f.cache, ComponentFunding, func() (Reading, error) {
		return f.compute(ctx)
	})
}

func (f *Funding) compute(ctx context.Context) (Reading, error) {
	companies, err := f.store.All()
	if err != nil {
		return Reading{}, fmt.Errorf("funding: %w", err)
	}

	now := f.now()
	windowStart := now.AddDate(0, 0, -f.opts.WindowDays)
	yearStart := now.AddDate(-1, 0, 0)

	var (
		recentUSD    float64
		recentRounds int
		yearUSD      float64
		yearRounds   int
		latest       time.Time
	)
	for _, c := range companies {
		for _, r := range c.FundingRounds {
			t := r.Time()
			if t.IsZero() {
				continue
			}
			if t.After(latest) {
				latest = t
			}
			if t.Before(yearStart) || t.After(now) {
				continue
			}
			yearUSD += r.AmountUSD
			yearRounds++
			if !t.Before(windowStart) {
				recentUSD += r.AmountUSD
				recentRounds++
			}
		}
	}

	score := 0.0
	if yearUSD > 0 {
		pace := yearUSD * float64(f.opts.WindowDays) / 365
		score = clampScore(recentUSD / pace * 50)
	}

	return Reading{
		Component: ComponentFunding,
		Score:     round1(score),
		Signals: []string{
			fmt.Sprintf("%d rounds totaling $%.0fM in the last %d days", recentRounds, recentUSD/1e6, f.opts.WindowDays),
			fmt.Sprintf("trailing year: %d rounds totaling $%.0fM", yearRounds, yearUSD/1e6),
		},
		LastUpdated: latest,
	}, nil
}
