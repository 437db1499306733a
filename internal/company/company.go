// Package company holds the tracked-company dataset: the record model,
// the embedded default dataset, and a read-through store with a short TTL
// so API requests never re-parse the file.
package company

import (
	"strings"
	"time"
)

// Location places a company's headquarters. GeoConfidence reflects how
// precisely the coordinates are known.
type Location struct {
	Country       string  `json:"country"`
	Region        string  `json:"region,omitempty"`
	City          string  `json:"city,omitempty"`
	Lat           float64 `json:"lat,omitempty"`
	Lon           float64 `json:"lon,omitempty"`
	GeoConfidence float64 `json:"geoConfidence,omitempty"`
}

// FundingRound is one raise. Date is ISO (YYYY-MM-DD); amounts are USD.
type FundingRound struct {
	Stage        string  `json:"stage"`
	AmountUSD    float64 `json:"amountUsd"`
	Date         string  `json:"date"`
	ValuationUSD float64 `json:"valuationUsd,omitempty"`
}

// Time parses the round date, returning the zero time when absent or
// malformed.
func (r FundingRound) Time() time.Time {
	t, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Company is one tracked robotics company. Records are immutable once
// loaded; mutation happens only by editing the dataset and invalidating
// the store.
type Company struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Aliases       []string       `json:"aliases,omitempty"`
	Tags          []string       `json:"tags"`
	Description   string         `json:"description"`
	Location      Location       `json:"location"`
	FundingRounds []FundingRound `json:"fundingRounds,omitempty"`
	Ticker        string         `json:"ticker,omitempty"`
	GitHubOrg     string         `json:"githubOrg,omitempty"`
	Website       string         `json:"website,omitempty"`
	Founded       int            `json:"founded,omitempty"`
}

// Funding stages in order. Stages outside the ladder rank -1.
var stageRanks = map[string]int{
	"pre-seed": 0,
	"seed":     1,
	"series-a": 2,
	"series-b": 3,
	"series-c": 4,
	"series-d": 5,
	"series-e": 6,
}

// StageRank returns the ordinal position of a funding stage, or -1 for
// unknown stages.
func StageRank(stage string) int {
	if r, ok := stageRanks[strings.ToLower(strings.TrimSpace(stage))]; ok {
		return r
	}
	return -1
}

// HighestStage returns the furthest ranked funding stage the company has
// reached, or "" when no round carries a ranked stage.
func (c Company) HighestStage() string {
	best := ""
	bestRank := -1
	for _, r := range c.FundingRounds {
		if rank := StageRank(r.Stage); rank > bestRank {
			bestRank = rank
			best = strings.ToLower(strings.TrimSpace(r.Stage))
		}
	}
	return best
}

// TotalRaised sums all round amounts in USD.
func (c Company) TotalRaised() float64 {
	total := 0.0
	for _, r := range c.FundingRounds {
		total += r.AmountUSD
	}
	return total
}

// LatestValuation returns the valuation of the most recent round that
// reported one, or 0.
func (c Company) LatestValuation() float64 {
	var latest time.Time
	val := 0.0
	for _, r := range c.FundingRounds {
		if r.ValuationUSD <= 0 {
			continue
		}
		if t := r.Time(); val == 0 || t.After(latest) {
			latest = t
			val = r.ValuationUSD
		}
	}
	return val
}

// Fields flattens the record for completeness scoring. Empty collections
// and unset optionals come through as unfilled values.
func (c Company) Fields() map[string]any {
	rounds := make([]any, 0, len(c.FundingRounds))
	for _, r := range c.FundingRounds {
		rounds = append(rounds, r)
	}
	var founded any
	if c.Founded > 0 {
		founded = c.Founded
	}
	return map[string]any{
		"name":          c.Name,
		"aliases":       c.Aliases,
		"tags":          c.Tags,
		"description":   c.Description,
		"country":       c.Location.Country,
		"city":          c.Location.City,
		"fundingRounds": rounds,
		"ticker":        c.Ticker,
		"githubOrg":     c.GitHubOrg,
		"website":       c.Website,
		"founded":       founded,
	}
}
