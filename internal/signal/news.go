package signal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/mmcdole/gofeed"

	"github.com/StreetFDN/roboglobe/internal/fetch"
)

const defaultNewsMaxAge = 7 * 24 * time.Hour

// NewsOptions configure the press-coverage scorer.
type NewsOptions struct {
	// Feeds are RSS/Atom URLs for robotics coverage.
	Feeds []string
	// MaxAge drops articles older than this window (default 7 days).
	MaxAge time.Duration
}

// News scores press sentiment: keyword balance across recent articles,
// with sparse coverage regressing toward neutral.
type News struct {
	parser *gofeed.Parser
	cache  *fetch.Cache
	opts   NewsOptions
	now    func() time.Time
}

func NewNews(cache *fetch.Cache, opts NewsOptions) *News {
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultNewsMaxAge
	}
	return &News{parser: gofeed.NewParser(), cache: cache, opts: opts, now: time.Now}
}

func (n *News) Component() string { return ComponentNews }

func (n *News) Score(ctx context.Context) (Reading, error) {
	key := ComponentNews + ":" + strings.Join(n.opts.Feeds, ",")
	return cached(n.cache, key, func() (Reading, error) {
		return n.compute(ctx)
	})
}

func (n *News) compute(ctx context.Context) (Reading, error) {
	if len(n.opts.Feeds) == 0 {
		return Reading{}, fmt.Errorf("news: no feeds configured")
	}

	var (
		mu      sync.Mutex
		items   []*gofeed.Item
		lastErr error
		failed  int
		wg      sync.WaitGroup
	)
	for _, url := range n.opts.Feeds {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			feed, err := n.parser.ParseURLWithContext(url, ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				lastErr = fmt.Errorf("news: fetching %s: %w", url, err)
				return
			}
			items = append(items, feed.Items...)
		}(url)
	}
	wg.Wait()

	if failed == len(n.opts.Feeds) {
		return Reading{}, lastErr
	}

	now := n.now()
	cutoff := now.Add(-n.opts.MaxAge)
	var (
		articles int
		positive int
		negative int
		newest   time.Time
	)
	for _, item := range items {
		pub := now
		if item.PublishedParsed != nil {
			pub = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = *item.UpdatedParsed
		}
		if pub.Before(cutoff) {
			continue
		}
		if pub.After(newest) {
			newest = pub
		}
		articles++
		desc := stripHTML(item.Description)
		// Title hits count double.
		positive += 2*countTerms(item.Title, positiveTerms) + countTerms(desc, positiveTerms)
		negative += 2*countTerms(item.Title, negativeTerms) + countTerms(desc, negativeTerms)
	}

	balance := 0.0
	if positive+negative > 0 {
		balance = float64(positive-negative) / float64(positive+negative)
	}
	volume := float64(articles) / 10
	if volume > 1 {
		volume = 1
	}
	score := clampScore(50 + 50*balance*volume)

	if newest.IsZero() {
		newest = now
	}
	return Reading{
		Component: ComponentNews,
		Score:     round1(score),
		Signals: []string{
			fmt.Sprintf("%d articles across %d feeds", articles, len(n.opts.Feeds)-failed),
			fmt.Sprintf("positive mentions %d, negative %d", positive, negative),
		},
		LastUpdated: newest,
	}, nil
}

// positiveTerms and negativeTerms drive the coverage sentiment balance.
var positiveTerms = map[string]bool{
	"raises": true, "raised": true, "funding": true, "partnership": true,
	"deploys": true, "deployment": true, "expands": true, "expansion": true,
	"milestone": true, "breakthrough": true, "contract": true, "wins": true,
	"launch": true, "launches": true, "unveils": true, "record": true,
	"growth": true, "adoption": true, "commercial": true, "production": true,
	"scales": true, "profitable": true, "orders": true,
}

var negativeTerms = map[string]bool{
	"layoffs": true, "recall": true, "recalls": true, "lawsuit": true,
	"shutdown": true, "shuts": true, "bankruptcy": true, "injury": true,
	"accident": true, "crash": true, "fraud": true, "investigation": true,
	"fined": true, "delays": true, "delayed": true, "cancels": true,
	"canceled": true, "losses": true, "failure": true, "strike": true,
	"halts": true,
}

func countTerms(text string, terms map[string]bool) int {
	hits := 0
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if terms[word] {
			hits++
		}
	}
	return hits
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
