package signal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/StreetFDN/roboglobe/internal/company"
)

func writeCompanies(t *testing.T, companies []company.Company) string {
	t.Helper()
	ds := struct {
		Version   int               `json:"version"`
		Companies []company.Company `json:"companies"`
	}{Version: 1, Companies: companies}
	raw, err := json.Marshal(ds)
	if err != nil {
		t.Fatalf("marshaling dataset: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dataset.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("writing dataset: %v", err)
	}
	return path
}

func TestFundingScoresRaisePace(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	path := writeCompanies(t, []company.Company{
		{
			ID:   "acme",
			Name: "Acme Robotics",
			FundingRounds: []company.FundingRound{
				{Stage: "series-b", AmountUSD: 100e6, Date: "2026-02-08"},
				{Stage: "series-a", AmountUSD: 200e6, Date: "2025-08-22"},
				{Stage: "seed", AmountUSD: 500e6, Date: "2025-02-03"},
			},
		},
	})

	f := NewFunding(company.NewStore(path, time.Minute), nil, FundingOptions{})
	f.now = func() time.Time { return now }

	r, err := f.Score(context.Background())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// $100M in the 90-day window against a $300M trailing-year pace:
	// (100/300) * (365/90) * 50 = 67.6.
	if r.Score != 67.6 {
		t.Errorf("Score = %v, want 67.6", r.Score)
	}
	wantSignals := []string{
		"1 rounds totaling $100M in the last 90 days",
		"trailing year: 2 rounds totaling $300M",
	}
	for i, want := range wantSignals {
		if r.Signals[i] != want {
			t.Errorf("Signals[%d] = %q, want %q", i, r.Signals[i], want)
		}
	}
	if want := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC); !r.LastUpdated.Equal(want) {
		t.Errorf("LastUpdated = %v, want %v", r.LastUpdated, want)
	}
}

func TestFundingColdYearScoresZero(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	path := writeCompanies(t, []company.Company{
		{
			ID:   "acme",
			Name: "Acme Robotics",
			FundingRounds: []company.FundingRound{
				{Stage: "seed", AmountUSD: 40e6, Date: "2024-05-01"},
			},
		},
	})

	f := NewFunding(company.NewStore(path, time.Minute), nil, FundingOptions{})
	f.now = func() time.Time { return now }

	r, err := f.Score(context.Background())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if r.Score != 0.0 {
		t.Errorf("Score = %v, want 0.0", r.Score)
	}
	if want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC); !r.LastUpdated.Equal(want) {
		t.Errorf("LastUpdated = %v, want %v", r.LastUpdated, want)
	}
}

func TestFundingStoreError(t *testing.T) {
	f := NewFunding(company.NewStore(filepath.Join(t.TempDir(), "missing.json"), time.Minute), nil, FundingOptions{})
	_, err := f.Score(context.Background())
	if err == nil {
		t.Fatal("expected error from missing dataset")
	}
	if !strings.Contains(err.Error(), "funding:") {
		t.Errorf("err = %v, want funding context", err)
	}
}
