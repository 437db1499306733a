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

const technicalWindow = 60 * 24 * time.Hour

// TechnicalOptions configure the SDK release-cadence scorer.
type TechnicalOptions struct {
	// Repos are "owner/name" repositories whose releases are sampled.
	Repos   []string
	Token   string
	BaseURL string
	// CadenceTarget is the release count inside the window that scores
	// 100 (default 2 per repo).
	CadenceTarget int
}

// Technical scores platform maturity: how frequently the tracked SDKs and
// frameworks cut releases.
type Technical struct {
	client *fetch.Client
	cache  *fetch.Cache
	opts   TechnicalOptions
	now    func() time.Time
}

func NewTechnical(client *fetch.Client, cache *fetch.Cache, opts TechnicalOptions) *Technical {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGitHubBaseURL
	}
	if opts.CadenceTarget <= 0 {
		opts.CadenceTarget = 2 * len(opts.Repos)
	}
	return &Technical{client: client, cache: cache, opts: opts, now: time.Now}
}

func (t *Technical) Component() string { return ComponentTechnical }

func (t *Technical) Score(ctx context.Context) (Reading, error) {
	key := ComponentTechnical + ":" + strings.Join(t.opts.Repos, ",")
	return cached(t.cache, key, func() (Reading, error) {
		return t.compute(ctx)
	})
}

type githubRelease struct {
	TagName     string    `json:"tag_name"`
	PublishedAt time.Time `json:"published_at"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
}

type repoCadence struct {
	repo     string
	releases int
	newest   time.Time
	err      error
}

func (t *Technical) compute(ctx context.Context) (Reading, error) {
	if len(t.opts.Repos) == 0 {
		return Reading{}, fmt.Errorf("technical: no repos configured")
	}

	var (
		mu      sync.Mutex
		results []repoCadence
		wg      sync.WaitGroup
	)
	for _, repo := range t.opts.Repos {
		wg.Add(1)
		go func(repo string) {
			defer wg.Done()
			c := t.fetchRepo(ctx, repo)
			mu.Lock()
			results = append(results, c)
			mu.Unlock()
		}(repo)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].repo < results[j].repo })

	var (
		total    int
		newest   time.Time
		signals  []string
		failures int
		lastErr  error
	)
	for _, r := range results {
		if r.err != nil {
			failures++
			lastErr = r.err
			continue
		}
		total += r.releases
		if r.newest.After(newest) {
			newest = r.newest
		}
		signals = append(signals, fmt.Sprintf("%s: %d releases in the last 60 days", r.repo, r.releases))
	}
	if failures == len(results) {
		return Reading{}, lastErr
	}

	if newest.IsZero() {
		newest = t.now()
	}
	return Reading{
		Component:   ComponentTechnical,
		Score:       round1(normalize(float64(total), float64(t.opts.CadenceTarget))),
		Signals:     signals,
		LastUpdated: newest,
	}, nil
}

func (t *Technical) fetchRepo(ctx context.Context, repo string) repoCadence {
	url := fmt.Sprintf("%s/repos/%s/releases?per_page=10", t.opts.BaseURL, repo)
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if t.opts.Token != "" {
		headers["Authorization"] = "Bearer " + t.opts.Token
	}

	var releases []githubRelease
	if err := t.client.GetJSON(ctx, ComponentTechnical, url, headers, &releases); err != nil {
		return repoCadence{repo: repo, err: err}
	}

	cutoff := t.now().Add(-technicalWindow)
	c := repoCadence{repo: repo}
	for _, r := range releases {
		if r.Draft {
			continue
		}
		if r.PublishedAt.After(c.newest) {
			c.newest = r.PublishedAt
		}
		if r.PublishedAt.After(cutoff) {
			c.releases++
		}
	}
	return c
}
