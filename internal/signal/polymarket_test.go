package signal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/StreetFDN/roboglobe/internal/fetch"
)

func TestPolymarketScoresYesPrice(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("slug"); got != "humanoid-factory-2026" {
			t.Errorf("slug = %q", got)
		}
		fmt.Fprint(w, `[{"question":"Will a humanoid robot work a factory shift in 2026?","outcomePrices":"[\"0.62\", \"0.38\"]","active":true}]`)
	}))
	defer srv.Close()

	s := NewPolymarket(fetch.NewClient(nil), nil, PolymarketOptions{
		Slug:    "humanoid-factory-2026",
		BaseURL: srv.URL,
	})
	s.now = func() time.Time { return now }

	r, err := s.Score(context.Background())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if r.Score != 62.0 {
		t.Errorf("Score = %v, want 62.0", r.Score)
	}
	wantSignals := []string{
		"market: Will a humanoid robot work a factory shift in 2026?",
		"yes priced at 62.0%",
	}
	if len(r.Signals) != len(wantSignals) {
		t.Fatalf("Signals = %v, want %v", r.Signals, wantSignals)
	}
	for i, want := range wantSignals {
		if r.Signals[i] != want {
			t.Errorf("Signals[%d] = %q, want %q", i, r.Signals[i], want)
		}
	}
	if !r.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", r.LastUpdated, now)
	}
}

func TestPolymarketClosedMarketSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"question":"Resolved market","outcomePrices":"[\"0.97\", \"0.03\"]","active":false}]`)
	}))
	defer srv.Close()

	s := NewPolymarket(fetch.NewClient(nil), nil, PolymarketOptions{Slug: "resolved", BaseURL: srv.URL})
	r, err := s.Score(context.Background())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if want := "market is closed"; len(r.Signals) != 3 || r.Signals[2] != want {
		t.Errorf("Signals = %v, want trailing %q", r.Signals, want)
	}
}

func TestPolymarketUnknownSlug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	s := NewPolymarket(fetch.NewClient(nil), nil, PolymarketOptions{Slug: "no-such-market", BaseURL: srv.URL})
	_, err := s.Score(context.Background())
	if err == nil {
		t.Fatal("expected error for unknown market slug")
	}
	if status := fetch.StatusOf(err); status != http.StatusNotFound {
		t.Errorf("StatusOf = %d, want 404", status)
	}
}

func TestPolymarketNoSlugConfigured(t *testing.T) {
	s := NewPolymarket(fetch.NewClient(nil), nil, PolymarketOptions{})
	if _, err := s.Score(context.Background()); err == nil {
		t.Fatal("expected error with no slug configured")
	}
}

func TestYesPrice(t *testing.T) {
	tests := []struct {
		encoded string
		want    float64
		wantErr bool
	}{
		{`["0.62", "0.38"]`, 0.62, false},
		{`["1"]`, 1, false},
		{`[]`, 0, true},
		{`not json`, 0, true},
		{`["1.5"]`, 0, true},
		{`["abc"]`, 0, true},
	}
	for _, tt := range tests {
		got, err := yesPrice(tt.encoded)
		if tt.wantErr {
			if err == nil {
				t.Errorf("yesPrice(%q): expected error", tt.encoded)
			}
			continue
		}
		if err != nil {
			t.Errorf("yesPrice(%q): %v", tt.encoded, err)
			continue
		}
		if got != tt.want {
			t.Errorf("yesPrice(%q) = %v, want %v", tt.encoded, got, tt.want)
		}
	}
}
