package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/StreetFDN/roboglobe/internal/fetch"
)

const defaultGammaBaseURL = "https://gamma-api.polymarket.com"

// PolymarketOptions configure the prediction-market scorer.
type PolymarketOptions struct {
	// Slug identifies the market to read.
	Slug    string
	BaseURL string
}

// Polymarket reads the YES probability of a robotics prediction market
// and maps it straight onto the 0-100 scale.
type Polymarket struct {
	client *fetch.Client
	cache  *fetch.Cache
	opts   PolymarketOptions
	now    func() time.Time
}

func NewPolymarket(client *fetch.Client, cache *fetch.Cache, opts PolymarketOptions) *Polymarket {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGammaBaseURL
	}
	return &Polymarket{client: client, cache: cache, opts: opts, now: time.Now}
}

func (s *Polymarket) Component() string { return ComponentPolymarket }

func (s *Polymarket) Score(ctx context.Context) (Reading, error) {
	key := ComponentPolymarket + ":" + s.opts.Slug
	return cached(s.cache, key, func() (Reading, error) {
		return s.compute(ctx)
	})
}

type gammaMarket struct {
	Question string `json:"question"`
	// OutcomePrices is a JSON-encoded string array, e.g. "[\"0.62\", \"0.38\"]".
	OutcomePrices string `json:"outcomePrices"`
	Active        bool   `json:"active"`
}

func (s *Polymarket) compute(ctx context.Context) (Reading, error) {
	if s.opts.Slug == "" {
		return Reading{}, fmt.Errorf("polymarket: no market slug configured")
	}

	url := fmt.Sprintf("%s/markets?slug=%s", s.opts.BaseURL, s.opts.Slug)
	var markets []gammaMarket
	if err := s.client.GetJSON(ctx, ComponentPolymarket, url, nil, &markets); err != nil {
		return Reading{}, err
	}
	if len(markets) == 0 {
		return Reading{}, &fetch.Error{
			Source: ComponentPolymarket,
			Status: http.StatusNotFound,
			Err:    fmt.Errorf("market %q not found", s.opts.Slug),
		}
	}
	market := markets[0]

	yes, err := yesPrice(market.OutcomePrices)
	if err != nil {
		return Reading{}, fmt.Errorf("polymarket: market %q: %w", s.opts.Slug, err)
	}

	signals := []string{
		fmt.Sprintf("market: %s", market.Question),
		fmt.Sprintf("yes priced at %.1f%%", yes*100),
	}
	if !market.Active {
		signals = append(signals, "market is closed")
	}

	return Reading{
		Component:   ComponentPolymarket,
		Score:       round1(clampScore(yes * 100)),
		Signals:     signals,
		LastUpdated: s.now(),
	}, nil
}

// yesPrice decodes the doubly-encoded outcome price array and returns
// the first entry, the YES probability.
func yesPrice(encoded string) (float64, error) {
	var prices []string
	if err := json.Unmarshal([]byte(encoded), &prices); err != nil {
		return 0, fmt.Errorf("parsing outcome prices: %w", err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no outcome prices")
	}
	yes, err := strconv.ParseFloat(prices[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parsing yes price: %w", err)
	}
	if yes < 0 || yes > 1 {
		return 0, fmt.Errorf("yes price %v out of range", yes)
	}
	return yes, nil
}
