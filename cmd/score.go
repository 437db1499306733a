package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/StreetFDN/roboglobe/internal/company"
	"github.com/StreetFDN/roboglobe/internal/config"
	"github.com/StreetFDN/roboglobe/internal/fetch"
	"github.com/StreetFDN/roboglobe/internal/narrative"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute the Narrative Index once and print the breakdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger := zap.NewNop()
		if flagVerbose {
			logger, err = zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
		}

		store, err := openHistory(cfg.History)
		if err != nil {
			return fmt.Errorf("opening history store: %w", err)
		}
		defer store.Close()

		companies := company.NewStore(cfg.Dataset.Path, cfg.Dataset.TTLDuration())
		client := fetch.NewClient(logger)
		readings := fetch.NewCache(cfg.SignalCacheTTL())
		scorers := buildScorers(cfg, client, readings, companies)

		// One-shot runs read history for trend but do not append to it.
		engine := narrative.NewEngine(scorers, store, nil, logger, engineOptions(cfg))

		s, err := engine.Compute(context.Background())
		if err != nil {
			return fmt.Errorf("computing score: %w", err)
		}

		fmt.Printf("Narrative Index: %.1f (%s)\n", s.Overall, s.Interpretation)
		fmt.Printf("Trend: %s   Confidence: %.2f\n", s.Trend, s.Confidence)
		fmt.Println()
		fmt.Println("Components:")
		for _, line := range formatComponents(s.Components, engine.Weights()) {
			fmt.Println("  " + line)
		}
		if len(s.Signals) > 0 {
			fmt.Println()
			fmt.Println("Signals:")
			for _, sig := range s.Signals {
				fmt.Println("  - " + sig)
			}
		}
		return nil
	},
}

// formatComponents renders one aligned line per component, sorted by name.
func formatComponents(components map[string]float64, weights narrative.Weights) []string {
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%-12s %5.1f  (weight %.2f)", name, components[name], weights[name]))
	}
	return lines
}
