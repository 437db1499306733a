package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/StreetFDN/roboglobe/internal/company"
	"github.com/StreetFDN/roboglobe/internal/config"
	"github.com/StreetFDN/roboglobe/internal/similarity"
)

var flagSimilarLimit int

var similarCmd = &cobra.Command{
	Use:   "similar <company>",
	Short: "Rank companies similar to the given one",
	Long:  "Look a company up by ID, name, or alias and rank the rest of the dataset against it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		companies := company.NewStore(cfg.Dataset.Path, cfg.Dataset.TTLDuration())
		src, found, err := companies.Find(args[0])
		if err != nil {
			return fmt.Errorf("loading dataset: %w", err)
		}
		if !found {
			return fmt.Errorf("company %q not found", args[0])
		}

		candidates, err := companies.All()
		if err != nil {
			return fmt.Errorf("loading dataset: %w", err)
		}

		matches := similarity.FindSimilar(src, candidates, flagSimilarLimit, similarity.DefaultWeights())
		if len(matches) == 0 {
			fmt.Printf("No close matches for %s.\n", src.Name)
			return nil
		}

		fmt.Printf("Companies similar to %s:\n\n", src.Name)
		for _, m := range matches {
			fmt.Printf("  %.2f  %s\n", m.Score, m.Name)
			for _, tr := range m.SharedTraits {
				fmt.Printf("        + %s\n", tr)
			}
			for _, d := range m.Differences {
				fmt.Printf("        - %s\n", d)
			}
		}
		return nil
	},
}

func init() {
	similarCmd.Flags().IntVar(&flagSimilarLimit, "limit", similarity.DefaultLimit, "maximum matches to show")
}
