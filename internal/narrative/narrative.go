// Package narrative computes the composite Narrative Index: concurrent
// component scoring, weighted aggregation, trend detection against the
// persisted history, and confidence annotation.
package narrative

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/StreetFDN/roboglobe/internal/confidence"
	"github.com/StreetFDN/roboglobe/internal/fetch"
	"github.com/StreetFDN/roboglobe/internal/history"
	"github.com/StreetFDN/roboglobe/internal/signal"
)

const (
	// DefaultCacheTTL bounds how long a computed score is served before the
	// components are scored again.
	DefaultCacheTTL = 15 * time.Minute

	// DefaultTrendWindowDays is the size of each trend comparison window.
	DefaultTrendWindowDays = 7
	// DefaultTrendThreshold is the mean delta a window pair must exceed to
	// read as a direction.
	DefaultTrendThreshold = 3.0

	trendMinPoints = 2
	cacheKey       = "narrative"
)

// Trend directions.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// Weights maps component names to their share of the overall score.
type Weights map[string]float64

// DefaultWeights is the canonical seven-component table.
func DefaultWeights() Weights {
	return Weights{
		signal.ComponentIndexAlpha: 0.30,
		signal.ComponentPolymarket: 0.15,
		signal.ComponentContracts:  0.15,
		signal.ComponentGitHub:     0.10,
		signal.ComponentNews:       0.10,
		signal.ComponentFunding:    0.10,
		signal.ComponentTechnical:  0.10,
	}
}

// Validate checks that weights are non-negative and sum to 1.0.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("no weights configured")
	}
	sum := 0.0
	for name, v := range w {
		if v < 0 {
			return fmt.Errorf("weight for %s is negative", name)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("weights sum to %v, want 1.0", sum)
	}
	return nil
}

// Score is one computed Narrative Index.
type Score struct {
	Overall        float64            `json:"overall"`
	Interpretation string             `json:"interpretation"`
	Components     map[string]float64 `json:"components"`
	Trend          string             `json:"trend"`
	Confidence     float64            `json:"confidence"`
	Signals        []string           `json:"signals"`
	Timestamp      time.Time          `json:"timestamp"`
	Cached         bool               `json:"cached,omitempty"`
	Stale          bool               `json:"stale,omitempty"`
}

// Interpret maps an overall score onto its qualitative band. Lower bounds
// are inclusive.
func Interpret(score float64) string {
	switch {
	case score >= 80:
		return "strong"
	case score >= 60:
		return "building"
	case score >= 40:
		return "neutral"
	case score >= 20:
		return "weakening"
	default:
		return "cold"
	}
}

// DetectTrend compares the mean overall score of the most recent window
// against the mean of the window before it. Fewer than 2 points in either
// window reads as stable.
func DetectTrend(entries []history.Entry, now time.Time, windowDays int, threshold float64) string {
	if windowDays <= 0 {
		windowDays = DefaultTrendWindowDays
	}
	if threshold <= 0 {
		threshold = DefaultTrendThreshold
	}
	recentStart := now.AddDate(0, 0, -windowDays)
	previousStart := now.AddDate(0, 0, -2*windowDays)

	var recent, previous []float64
	for _, e := range entries {
		switch {
		case !e.Timestamp.Before(recentStart):
			recent = append(recent, e.Overall)
		case !e.Timestamp.Before(previousStart):
			previous = append(previous, e.Overall)
		}
	}
	if len(recent) < trendMinPoints || len(previous) < trendMinPoints {
		return TrendStable
	}

	delta := mean(recent) - mean(previous)
	switch {
	case delta > threshold:
		return TrendUp
	case delta < -threshold:
		return TrendDown
	default:
		return TrendStable
	}
}

func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// Options tune the engine. Zero values take the defaults above.
type Options struct {
	Weights         Weights
	CacheTTL        time.Duration
	TrendWindowDays int
	TrendThreshold  float64
}

// Engine computes the Narrative Index over a set of component scorers.
// Results are cached for the configured TTL; a failed computation falls
// back to the last cached score when one exists. Every fresh computation
// hands one snapshot to the history appender.
type Engine struct {
	scorers  []signal.Scorer
	store    history.Store
	appender *history.Appender
	logger   *zap.Logger
	opts     Options
	cache    *fetch.Cache
	now      func() time.Time
}

// NewEngine wires the engine. store and appender may be nil: without a
// store trend always reads stable, without an appender snapshots are not
// persisted.
func NewEngine(scorers []signal.Scorer, store history.Store, appender *history.Appender, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Weights == nil {
		opts.Weights = DefaultWeights()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.TrendWindowDays <= 0 {
		opts.TrendWindowDays = DefaultTrendWindowDays
	}
	if opts.TrendThreshold <= 0 {
		opts.TrendThreshold = DefaultTrendThreshold
	}
	return &Engine{
		scorers:  scorers,
		store:    store,
		appender: appender,
		logger:   logger,
		opts:     opts,
		cache:    fetch.NewCache(opts.CacheTTL),
		now:      time.Now,
	}
}

// Weights returns the configured weight table.
func (e *Engine) Weights() Weights { return e.opts.Weights }

// Compute returns the current Narrative Index. Cache hits are annotated
// Cached; when a fresh computation fails and an expired score is still
// held, that score is served annotated Stale.
func (e *Engine) Compute(ctx context.Context) (Score, error) {
	if v, ok := e.cache.Get(cacheKey); ok {
		s := v.(Score)
		s.Cached = true
		return s, nil
	}

	s, err := e.compute(ctx)
	if err != nil {
		if v, ok, _ := e.cache.GetStale(cacheKey); ok {
			stale := v.(Score)
			stale.Stale = true
			e.logger.Warn("serving stale narrative score", zap.Error(err))
			return stale, nil
		}
		return Score{}, err
	}

	e.cache.Set(cacheKey, s)
	return s, nil
}

func (e *Engine) compute(ctx context.Context) (Score, error) {
	if len(e.scorers) == 0 {
		return Score{}, fmt.Errorf("narrative: no scorers configured")
	}

	var (
		mu       sync.Mutex
		readings []signal.Reading
		lastErr  error
		wg       sync.WaitGroup
	)
	for _, s := range e.scorers {
		wg.Add(1)
		go func(s signal.Scorer) {
			defer wg.Done()
			r, err := s.Score(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = fmt.Errorf("%s: %w", s.Component(), err)
				e.logger.Warn("component scorer failed",
					zap.String("component", s.Component()),
					zap.Error(err))
				return
			}
			readings = append(readings, r)
		}(s)
	}
	wg.Wait()

	if len(readings) == 0 {
		return Score{}, fmt.Errorf("narrative: every component failed: %w", lastErr)
	}
	sort.Slice(readings, func(i, j int) bool { return readings[i].Component < readings[j].Component })

	var (
		weighted    float64
		totalWeight float64
		components  = make(map[string]float64, len(readings))
		signals     []string
	)
	for _, r := range readings {
		components[r.Component] = r.Score
		signals = append(signals, r.Signals...)
		w := e.opts.Weights[r.Component]
		if w <= 0 {
			continue
		}
		weighted += r.Score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return Score{}, fmt.Errorf("narrative: no weighted component produced a score")
	}

	now := e.now()
	overall := math.Round(weighted/totalWeight*10) / 10
	s := Score{
		Overall:        overall,
		Interpretation: Interpret(overall),
		Components:     components,
		Trend:          e.trend(ctx, now),
		Confidence:     confidenceOf(readings, now),
		Signals:        signals,
		Timestamp:      now,
	}

	if e.appender != nil {
		e.appender.Enqueue(history.Entry{
			Timestamp:  s.Timestamp,
			Overall:    s.Overall,
			Components: s.Components,
			Trend:      s.Trend,
			Confidence: s.Confidence,
		})
	}
	return s, nil
}

// trend derives direction from persisted history. A store failure reads as
// stable rather than failing the computation.
func (e *Engine) trend(ctx context.Context, now time.Time) string {
	if e.store == nil {
		return TrendStable
	}
	entries, err := e.store.Window(ctx, 2*e.opts.TrendWindowDays)
	if err != nil {
		e.logger.Warn("history window for trend detection failed", zap.Error(err))
		return TrendStable
	}
	return DetectTrend(entries, now, e.opts.TrendWindowDays, e.opts.TrendThreshold)
}

// confidenceOf averages data freshness across readings that carry a
// timestamp, 0.5 when none do.
func confidenceOf(readings []signal.Reading, now time.Time) float64 {
	var sum float64
	var n int
	for _, r := range readings {
		if r.LastUpdated.IsZero() {
			continue
		}
		sum += confidence.Freshness(r.LastUpdated, now)
		n++
	}
	if n == 0 {
		return 0.5
	}
	return math.Round(sum/float64(n)*100) / 100
}
