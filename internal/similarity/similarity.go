// Package similarity scores how alike two companies are across tags,
// geography, funding stage, and description language, and ranks candidates
// against a source company with human-readable explanations.
package similarity

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/StreetFDN/roboglobe/internal/company"
)

const (
	// Threshold drops weak matches from ranked results.
	Threshold = 0.1

	// DefaultLimit and MaxLimit bound ranked result length.
	DefaultLimit = 5
	MaxLimit     = 10

	// neutral is the sub-score used when a factor cannot be compared
	// (unknown funding stage, missing description).
	neutral = 0.3
)

// Weights control how much each factor contributes to the composite score.
// The composite is normalized by the total weight actually applied, so a
// zero weight removes a factor without biasing the rest.
type Weights struct {
	Tags        float64
	Region      float64
	Stage       float64
	Description float64
}

// DefaultWeights favor what a company builds over where it sits or how it
// is funded.
func DefaultWeights() Weights {
	return Weights{Tags: 0.4, Region: 0.15, Stage: 0.2, Description: 0.25}
}

// Match is one ranked similar company.
type Match struct {
	CandidateID  string   `json:"candidateId"`
	Name         string   `json:"name"`
	Score        float64  `json:"score"`
	SharedTraits []string `json:"sharedTraits"`
	Differences  []string `json:"differences"`
}

// Compute returns the weighted similarity of two companies in [0,1].
// A company is always similarity 1.0 with itself. All four factors are
// symmetric, so Compute(a, b) == Compute(b, a).
func Compute(a, b company.Company, w Weights) float64 {
	if a.ID != "" && a.ID == b.ID {
		return 1.0
	}
	factors := []struct {
		score  float64
		weight float64
	}{
		{tagScore(a.Tags, b.Tags), w.Tags},
		{regionScore(a.Location, b.Location), w.Region},
		{stageScore(a, b), w.Stage},
		{descriptionScore(a.Description, b.Description), w.Description},
	}
	var sum, total float64
	for _, f := range factors {
		if f.weight <= 0 {
			continue
		}
		sum += f.score * f.weight
		total += f.weight
	}
	if total == 0 {
		return 0
	}
	return clamp01(sum / total)
}

// FindSimilar ranks candidates against src: excludes src itself, drops
// scores below Threshold, sorts descending (name ascending on ties), and
// truncates to limit (capped at MaxLimit). Scores in the result are
// rounded to 2 decimals.
func FindSimilar(src company.Company, candidates []company.Company, limit int, w Weights) []Match {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == src.ID {
			continue
		}
		score := Compute(src, c, w)
		if score < Threshold {
			continue
		}
		matches = append(matches, Match{
			CandidateID:  c.ID,
			Name:         c.Name,
			Score:        score,
			SharedTraits: SharedTraits(src, c),
			Differences:  Differences(src, c),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Name < matches[j].Name
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	for i := range matches {
		matches[i].Score = round2(matches[i].Score)
	}
	return matches
}

// tagScore is the Jaccard index over normalized tag sets, 0 when both are
// empty.
func tagScore(a, b []string) float64 {
	return jaccard(tagSet(a), tagSet(b))
}

// regionScore tiers geographic match: same country 1.0, same broader
// region group 0.7, otherwise 0.
func regionScore(a, b company.Location) float64 {
	if a.Country != "" && strings.EqualFold(a.Country, b.Country) {
		return 1.0
	}
	if g := regionGroup(a.Country); g != "" && g == regionGroup(b.Country) {
		return 0.7
	}
	return 0
}

// stageScore compares the highest funding stage each company reached:
// equal 1.0, adjacent 0.6, two or more apart 0.3, either unknown 0.3.
func stageScore(a, b company.Company) float64 {
	ra := company.StageRank(a.HighestStage())
	rb := company.StageRank(b.HighestStage())
	if ra < 0 || rb < 0 {
		return neutral
	}
	switch gap := abs(ra - rb); {
	case gap == 0:
		return 1.0
	case gap == 1:
		return 0.6
	default:
		return 0.3
	}
}

// descriptionScore is the Jaccard index over extracted keyword sets, or a
// neutral constant when either description is missing.
func descriptionScore(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return neutral
	}
	return jaccard(keywords(a), keywords(b))
}

// SharedTraits lists up to 4 things the two companies have in common:
// shared tags first, then geography, then funding stage.
func SharedTraits(a, b company.Company) []string {
	var traits []string
	for i, tag := range sharedTags(a.Tags, b.Tags) {
		if i >= 2 {
			break
		}
		traits = append(traits, "both focus on "+tag)
	}
	if a.Location.Country != "" && strings.EqualFold(a.Location.Country, b.Location.Country) {
		traits = append(traits, "both headquartered in "+strings.ToUpper(a.Location.Country))
	} else if g := regionGroup(a.Location.Country); g != "" && g == regionGroup(b.Location.Country) {
		traits = append(traits, "both operate in "+g)
	}
	if sa := a.HighestStage(); sa != "" && sa == b.HighestStage() {
		traits = append(traits, "both reached "+sa)
	}
	if len(traits) > 4 {
		traits = traits[:4]
	}
	return traits
}

// Differences lists up to 3 notable gaps between the two companies:
// funding stage distance, valuation spread, and diverging tag focus.
func Differences(a, b company.Company) []string {
	var diffs []string
	ra := company.StageRank(a.HighestStage())
	rb := company.StageRank(b.HighestStage())
	if ra >= 0 && rb >= 0 && ra != rb {
		ahead, behind := a, b
		if rb > ra {
			ahead, behind = b, a
		}
		gap := abs(ra - rb)
		if gap == 1 {
			diffs = append(diffs, fmt.Sprintf("%s is one funding stage ahead of %s", ahead.Name, behind.Name))
		} else {
			diffs = append(diffs, fmt.Sprintf("%s is %d funding stages ahead of %s", ahead.Name, gap, behind.Name))
		}
	}
	va, vb := a.LatestValuation(), b.LatestValuation()
	if va > 0 && vb > 0 && va != vb {
		diffs = append(diffs, "valuations differ by "+formatUSD(math.Abs(va-vb)))
	}
	ta, tb := exclusiveTag(a.Tags, b.Tags), exclusiveTag(b.Tags, a.Tags)
	if ta != "" && tb != "" {
		diffs = append(diffs, fmt.Sprintf("%s leans %s while %s leans %s", a.Name, ta, b.Name, tb))
	}
	if len(diffs) > 3 {
		diffs = diffs[:3]
	}
	return diffs
}

var regionGroups = map[string]string{
	"US": "north-america", "CA": "north-america", "MX": "north-america",
	"GB": "europe", "DE": "europe", "FR": "europe", "CH": "europe",
	"DK": "europe", "SE": "europe", "NO": "europe", "FI": "europe",
	"NL": "europe", "ES": "europe", "IT": "europe", "AT": "europe",
	"PL": "europe", "CZ": "europe", "IE": "europe",
	"CN": "apac", "JP": "apac", "KR": "apac", "SG": "apac",
	"AU": "apac", "IN": "apac", "TW": "apac", "HK": "apac", "NZ": "apac",
}

func regionGroup(country string) string {
	return regionGroups[strings.ToUpper(strings.TrimSpace(country))]
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.Join(strings.Fields(strings.ToLower(t)), " ")
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

// sharedTags returns the sorted intersection of two normalized tag sets.
func sharedTags(a, b []string) []string {
	sb := tagSet(b)
	var shared []string
	for t := range tagSet(a) {
		if _, ok := sb[t]; ok {
			shared = append(shared, t)
		}
	}
	sort.Strings(shared)
	return shared
}

// exclusiveTag returns the first tag of a (in declaration order) that b
// does not carry.
func exclusiveTag(a, b []string) string {
	sb := tagSet(b)
	for _, t := range a {
		t = strings.Join(strings.Fields(strings.ToLower(t)), " ")
		if t == "" {
			continue
		}
		if _, ok := sb[t]; !ok {
			return t
		}
	}
	return ""
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func formatUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.0fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
