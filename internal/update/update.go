// Package update checks the project's GitHub releases for a newer build.
package update

import (
	"context"
	"strings"
	"time"

	"github.com/StreetFDN/roboglobe/internal/fetch"
)

const (
	releaseURL   = "https://api.github.com/repos/StreetFDN/roboglobe/releases/latest"
	checkTimeout = 5 * time.Second
)

// Result holds the outcome of a version check.
type Result struct {
	LatestVersion string
}

type release struct {
	TagName string `json:"tag_name"`
}

// Check queries the GitHub Releases API for a version newer than
// currentVersion. Returns nil on any error or when already current.
func Check(ctx context.Context, currentVersion string) *Result {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	headers := map[string]string{"Accept": "application/vnd.github+json"}
	var rel release
	if err := fetch.NewClient(nil).GetJSON(ctx, "update", releaseURL, headers, &rel); err != nil {
		return nil
	}

	latest := strings.TrimPrefix(rel.TagName, "v")
	current := strings.TrimPrefix(currentVersion, "v")
	if latest == "" || latest == current {
		return nil
	}
	return &Result{LatestVersion: latest}
}
