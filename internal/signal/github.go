package signal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/StreetFDN/roboglobe/internal/fetch"
)

const (
	defaultGitHubBaseURL = "https://api.github.com"
	githubActivityWindow = 14 * 24 * time.Hour
)

// GitHubOptions configure the org-activity scorer.
type GitHubOptions struct {
	// Orgs are the GitHub organizations whose repos are sampled.
	Orgs []string
	// Token is sent as a bearer token when set (unauthenticated calls
	// rate-limit quickly).
	Token string
	// BaseURL overrides the API host, mainly for tests.
	BaseURL string
	// ActivityTarget is the recently-pushed repo count that scores 100.
	ActivityTarget int
}

// GitHub scores open-source momentum: how many repos across the tracked
// orgs have been pushed to inside the activity window.
type GitHub struct {
	client *fetch.Client
	cache  *fetch.Cache
	opts   GitHubOptions
	now    func() time.Time
}

func NewGitHub(client *fetch.Client, cache *fetch.Cache, opts GitHubOptions) *GitHub {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGitHubBaseURL
	}
	if opts.ActivityTarget <= 0 {
		opts.ActivityTarget = 5 * len(opts.Orgs)
	}
	return &GitHub{client: client, cache: cache, opts: opts, now: time.Now}
}

func (g *GitHub) Component() string { return ComponentGitHub }

func (g *GitHub) Score(ctx context.Context) (Reading, error) {
	key := ComponentGitHub + ":" + strings.Join(g.opts.Orgs, ",")
	return cached(g.cache, key, func() (Reading, error) {
		return g.compute(ctx)
	})
}

type githubRepo struct {
	Name     string    `json:"name"`
	PushedAt time.Time `json:"pushed_at"`
	Archived bool      `json:"archived"`
}

type orgActivity struct {
	org    string
	active int
	newest time.Time
	err    error
}

func (g *GitHub) compute(ctx context.Context) (Reading, error) {
	if len(g.opts.Orgs) == 0 {
		return Reading{}, fmt.Errorf("github: no orgs configured")
	}

	var (
		mu      sync.Mutex
		results []orgActivity
		wg      sync.WaitGroup
	)
	for _, org := range g.opts.Orgs {
		wg.Add(1)
		go func(org string) {
			defer wg.Done()
			act := g.fetchOrg(ctx, org)
			mu.Lock()
			results = append(results, act)
			mu.Unlock()
		}(org)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].org < results[j].org })

	var (
		totalActive int
		newest      time.Time
		signals     []string
		failures    int
		lastErr     error
	)
	for _, r := range results {
		if r.err != nil {
			failures++
			lastErr = r.err
			continue
		}
		totalActive += r.active
		if r.newest.After(newest) {
			newest = r.newest
		}
		signals = append(signals, fmt.Sprintf("%s: %d repos pushed in the last 14 days", r.org, r.active))
	}
	if failures == len(results) {
		return Reading{}, lastErr
	}

	if newest.IsZero() {
		newest = g.now()
	}
	return Reading{
		Component:   ComponentGitHub,
		Score:       round1(normalize(float64(totalActive), float64(g.opts.ActivityTarget))),
		Signals:     signals,
		LastUpdated: newest,
	}, nil
}

func (g *GitHub) fetchOrg(ctx context.Context, org string) orgActivity {
	url := fmt.Sprintf("%s/orgs/%s/repos?sort=pushed&per_page=50", g.opts.BaseURL, org)
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if g.opts.Token != "" {
		headers["Authorization"] = "Bearer " + g.opts.Token
	}

	var repos []githubRepo
	if err := g.client.GetJSON(ctx, ComponentGitHub, url, headers, &repos); err != nil {
		return orgActivity{org: org, err: err}
	}

	cutoff := g.now().Add(-githubActivityWindow)
	act := orgActivity{org: org}
	for _, r := range repos {
		if r.Archived {
			continue
		}
		if r.PushedAt.After(act.newest) {
			act.newest = r.PushedAt
		}
		if r.PushedAt.After(cutoff) {
			act.active++
		}
	}
	return act
}
