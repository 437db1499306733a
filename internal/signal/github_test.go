package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/StreetFDN/roboglobe/internal/fetch"
)

func serveRepos(t *testing.T, w http.ResponseWriter, repos []githubRepo) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(repos); err != nil {
		t.Errorf("encoding repos: %v", err)
	}
}

func TestGitHubScoresOrgActivity(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orgs/alpha/repos":
			serveRepos(t, w, []githubRepo{
				{Name: "hexapod", PushedAt: now.Add(-48 * time.Hour)},
				{Name: "arm-sdk", PushedAt: now.Add(-5 * 24 * time.Hour)},
				{Name: "legacy", PushedAt: now.Add(-60 * 24 * time.Hour)},
			})
		case "/orgs/beta/repos":
			serveRepos(t, w, []githubRepo{
				{Name: "percept", PushedAt: now.Add(-24 * time.Hour)},
				{Name: "attic", PushedAt: now.Add(-time.Hour), Archived: true},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := NewGitHub(fetch.NewClient(nil), nil, GitHubOptions{
		Orgs:    []string{"alpha", "beta"},
		BaseURL: srv.URL,
	})
	g.now = func() time.Time { return now }

	r, err := g.Score(context.Background())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// 3 active repos against the default target of 5 per org.
	if r.Score != 30.0 {
		t.Errorf("Score = %v, want 30.0", r.Score)
	}
	if r.Component != ComponentGitHub {
		t.Errorf("Component = %q, want %q", r.Component, ComponentGitHub)
	}
	wantSignals := []string{
		"alpha: 2 repos pushed in the last 14 days",
		"beta: 1 repos pushed in the last 14 days",
	}
	if len(r.Signals) != len(wantSignals) {
		t.Fatalf("Signals = %v, want %v", r.Signals, wantSignals)
	}
	for i, want := range wantSignals {
		if r.Signals[i] != want {
			t.Errorf("Signals[%d] = %q, want %q", i, r.Signals[i], want)
		}
	}
	if want := now.Add(-24 * time.Hour); !r.LastUpdated.Equal(want) {
		t.Errorf("LastUpdated = %v, want %v", r.LastUpdated, want)
	}
}

func TestGitHubSendsAuthHeaders(t *testing.T) {
	var gotAccept, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		serveRepos(t, w, nil)
	}))
	defer srv.Close()

	g := NewGitHub(fetch.NewClient(nil), nil, GitHubOptions{
		Orgs:    []string{"alpha"},
		Token:   "tok123",
		BaseURL: srv.URL,
	})
	if _, err := g.Score(context.Background()); err != nil {
		t.Fatalf("Score: %v", err)
	}
	if gotAccept != "application/vnd.github+json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestGitHubToleratesPartialOrgFailure(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/orgs/alpha/repos" {
			serveRepos(t, w, []githubRepo{{Name: "hexapod", PushedAt: now.Add(-time.Hour)}})
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	g := NewGitHub(fetch.NewClient(nil), nil, GitHubOptions{
		Orgs:    []string{"alpha", "gone"},
		BaseURL: srv.URL,
	})
	g.now = func() time.Time { return now }

	r, err := g.Score(context.Background())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// 1 active repo against the default target of 10.
	if r.Score != 10.0 {
		t.Errorf("Score = %v, want 10.0", r.Score)
	}
	if len(r.Signals) != 1 {
		t.Errorf("Signals = %v, want one entry", r.Signals)
	}
}

func TestGitHubAllOrgsFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	g := NewGitHub(fetch.NewClient(nil), nil, GitHubOptions{
		Orgs:    []string{"alpha", "beta"},
		BaseURL: srv.URL,
	})
	_, err := g.Score(context.Background())
	if err == nil {
		t.Fatal("expected error when every org fetch fails")
	}
	if status := fetch.StatusOf(err); status != http.StatusNotFound {
		t.Errorf("StatusOf = %d, want 404", status)
	}
}

func TestGitHubNoOrgsConfigured(t *testing.T) {
	g := NewGitHub(fetch.NewClient(nil), nil, GitHubOptions{})
	if _, err := g.Score(context.Background()); err == nil {
		t.Fatal("expected error with no orgs configured")
	}
}

func TestGitHubCachesReadings(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		serveRepos(t, w, []githubRepo{{Name: "hexapod", PushedAt: now.Add(-time.Hour)}})
	}))
	defer srv.Close()

	g := NewGitHub(fetch.NewClient(nil), fetch.NewCache(time.Minute), GitHubOptions{
		Orgs:    []string{"alpha"},
		BaseURL: srv.URL,
	})
	g.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := g.Score(context.Background()); err != nil {
			t.Fatalf("Score: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hit %d times, want 1", hits.Load())
	}
}

func TestGitHubServesStaleReadingWhenUpstreamFails(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		serveRepos(t, w, []githubRepo{{Name: "hexapod", PushedAt: now.Add(-time.Hour)}})
	}))
	defer srv.Close()

	g := NewGitHub(fetch.NewClient(nil), fetch.NewCache(time.Nanosecond), GitHubOptions{
		Orgs:    []string{"alpha"},
		BaseURL: srv.URL,
	})
	g.now = func() time.Time { return now }

	first, err := g.Score(context.Background())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	time.Sleep(time.Millisecond)
	fail.Store(true)

	second, err := g.Score(context.Background())
	if err != nil {
		t.Fatalf("Score after upstream failure: %v", err)
	}
	if second.Score != first.Score {
		t.Errorf("stale Score = %v, want %v", second.Score, first.Score)
	}
}
