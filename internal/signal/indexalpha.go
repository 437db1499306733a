package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/StreetFDN/roboglobe/internal/fetch"
)

const (
	defaultChartBaseURL = "https://query1.finance.yahoo.com"
	defaultBenchmark    = "^GSPC"
	defaultChartRange   = "1mo"
)

// IndexAlphaOptions configure the market-performance scorer.
type IndexAlphaOptions struct {
	// Tickers form the robotics basket.
	Tickers []string
	// Benchmark is the index the basket is measured against.
	Benchmark string
	BaseURL   string
	// Range is the chart lookback (default 1mo).
	Range string
}

// IndexAlpha scores public-market sentiment: the mean return of the
// robotics basket relative to the benchmark over the lookback window.
// 50 means the basket tracks the benchmark; each percentage point of
// outperformance moves the score by 5.
type IndexAlpha struct {
	client *fetch.Client
	cache  *fetch.Cache
	opts   IndexAlphaOptions
	now    func() time.Time
}

func NewIndexAlpha(client *fetch.Client, cache *fetch.Cache, opts IndexAlphaOptions) *IndexAlpha {
	if opts.Benchmark == "" {
		opts.Benchmark = defaultBenchmark
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultChartBaseURL
	}
	if opts.Range == "" {
		opts.Range = defaultChartRange
	}
	return &IndexAlpha{client: client, cache: cache, opts: opts, now: time.Now}
}

func (s *IndexAlpha) Component() string { return ComponentIndexAlpha }

func (s *IndexAlpha) Score(ctx context.Context) (Reading, error) {
	key := fmt.Sprintf("%s:%s:%s", ComponentIndexAlpha, strings.Join(s.opts.Tickers, ","), s.opts.Range)
	return cached(s.cache, key, func() (Reading, error) {
		return s.compute(ctx)
	})
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketTime int64 `json:"regularMarketTime"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

func (s *IndexAlpha) compute(ctx context.Context) (Reading, error) {
	if len(s.opts.Tickers) == 0 {
		return Reading{}, fmt.Errorf("indexAlpha: no tickers configured")
	}

	benchReturn, benchTime, err := s.fetchReturn(ctx, s.opts.Benchmark)
	if err != nil {
		return Reading{}, err
	}

	var (
		sum    float64
		n      int
		newest = benchTime
	)
	for _, ticker := range s.opts.Tickers {
		r, ts, err := s.fetchReturn(ctx, ticker)
		if err != nil {
			continue
		}
		sum += r
		n++
		if ts.After(newest) {
			newest = ts
		}
	}
	if n == 0 {
		return Reading{}, fmt.Errorf("indexAlpha: no basket ticker returned data")
	}

	basketReturn := sum / float64(n)
	alpha := basketReturn - benchReturn
	score := clampScore(50 + alpha*500)

	return Reading{
		Component: ComponentIndexAlpha,
		Score:     round1(score),
		Signals: []string{
			fmt.Sprintf("basket of %d tickers vs %s", n, s.opts.Benchmark),
			fmt.Sprintf("basket %+.1f%% vs benchmark %+.1f%% over %s", basketReturn*100, benchReturn*100, s.opts.Range),
		},
		LastUpdated: newest,
	}, nil
}

// fetchReturn computes the fractional price change across the lookback
// window for one symbol.
func (s *IndexAlpha) fetchReturn(ctx context.Context, symbol string) (float64, time.Time, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d", s.opts.BaseURL, symbol, s.opts.Range)
	var resp chartResponse
	if err := s.client.GetJSON(ctx, ComponentIndexAlpha, url, nil, &resp); err != nil {
		return 0, time.Time{}, err
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return 0, time.Time{}, fmt.Errorf("indexAlpha: empty chart for %s", symbol)
	}
	result := resp.Chart.Result[0]

	// Nulls in the close series decode to zero; skip them.
	var closes []float64
	for _, c := range result.Indicators.Quote[0].Close {
		if c > 0 {
			closes = append(closes, c)
		}
	}
	if len(closes) < 2 {
		return 0, time.Time{}, fmt.Errorf("indexAlpha: not enough closes for %s", symbol)
	}

	first, last := closes[0], closes[len(closes)-1]
	ts := time.Unix(result.Meta.RegularMarketTime, 0)
	if result.Meta.RegularMarketTime == 0 {
		ts = s.now()
	}
	return (last - first) / first, ts, nil
}
