package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/StreetFDN/roboglobe/internal/fetch"
)

const (
	defaultContractsEndpoint = "https://api.usaspending.gov/api/v2/search/spending_by_award/"
	defaultContractsWindow   = 90
	defaultContractsBaseline = 250e6
)

// ContractsOptions configure the government-award scorer.
type ContractsOptions struct {
	Endpoint string
	// Keywords filter the award search (default "robotics").
	Keywords []string
	// BaselineUSD is the trailing-window award total that scores 100.
	BaselineUSD float64
	// WindowDays is the trailing search window (default 90).
	WindowDays int
}

// Contracts scores public-sector demand: total award dollars matching the
// configured keywords over the trailing window, against a baseline.
type Contracts struct {
	client *fetch.Client
	cache  *fetch.Cache
	opts   ContractsOptions
	now    func() time.Time
}

func NewContracts(client *fetch.Client, cache *fetch.Cache, opts ContractsOptions) *Contracts {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultContractsEndpoint
	}
	if len(opts.Keywords) == 0 {
		opts.Keywords = []string{"robotics"}
	}
	if opts.BaselineUSD <= 0 {
		opts.BaselineUSD = defaultContractsBaseline
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = defaultContractsWindow
	}
	return &Contracts{client: client, cache: cache, opts: opts, now: time.Now}
}

func (c *Contracts) Component() string { return ComponentContracts }

func (c *Contracts) Score(ctx context.Context) (Reading, error) {
	key := fmt.Sprintf("%s:%s:%d", ComponentContracts, strings.Join(c.opts.Keywords, ","), c.opts.WindowDays)
	return cached(c.cache, key, func() (Reading, error) {
		return c.compute(ctx)
	})
}

type contractsRequest struct {
	Filters contractsFilters `json:"filters"`
	Fields  []string         `json:"fields"`
	Limit   int              `json:"limit"`
}

type contractsFilters struct {
	Keywords   []string         `json:"keywords"`
	TimePeriod []contractPeriod `json:"time_period"`
	AwardTypes []string         `json:"award_type_codes"`
}

type contractPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type contractsResponse struct {
	Results []struct {
		Recipient string  `json:"Recipient Name"`
		Amount    float64 `json:"Award Amount"`
	} `json:"results"`
}

func (c *Contracts) compute(ctx context.Context) (Reading, error) {
	now := c.now()
	req := contractsRequest{
		Filters: contractsFilters{
			Keywords: c.opts.Keywords,
			TimePeriod: []contractPeriod{{
				StartDate: now.AddDate(0, 0, -c.opts.WindowDays).Format("2006-01-02"),
				EndDate:   now.Format("2006-01-02"),
			}},
			AwardTypes: []string{"A", "B", "C", "D"},
		},
		Fields: []string{"Award ID", "Recipient Name", "Award Amount"},
		Limit:  100,
	}

	var resp contractsResponse
	if err := c.client.PostJSON(ctx, ComponentContracts, c.opts.Endpoint, req, &resp); err != nil {
		return Reading{}, err
	}

	var total float64
	topRecipient := ""
	topAmount := 0.0
	for _, r := range resp.Results {
		total += r.Amount
		if r.Amount > topAmount {
			topAmount = r.Amount
			topRecipient = r.Recipient
		}
	}

	signals := []string{
		fmt.Sprintf("%d awards totaling $%.1fM in the last %d days", len(resp.Results), total/1e6, c.opts.WindowDays),
	}
	if topRecipient != "" {
		signals = append(signals, fmt.Sprintf("largest award: %s ($%.1fM)", topRecipient, topAmount/1e6))
	}

	return Reading{
		Component:   ComponentContracts,
		Score:       round1(normalize(total, c.opts.BaselineUSD)),
		Signals:     signals,
		LastUpdated: now,
	}, nil
}
