package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/StreetFDN/roboglobe/internal/config"
	"github.com/StreetFDN/roboglobe/internal/history"
	"github.com/StreetFDN/roboglobe/internal/narrative"
)

var flagHistoryDays int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the persisted Narrative Index history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := history.ValidateDays(flagHistoryDays); err != nil {
			return err
		}

		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		store, err := openHistory(cfg.History)
		if err != nil {
			return fmt.Errorf("opening history store: %w", err)
		}
		defer store.Close()

		entries, err := store.Window(context.Background(), flagHistoryDays)
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}
		if len(entries) == 0 {
			fmt.Printf("No scores recorded in the last %dd.\n", flagHistoryDays)
			return nil
		}

		fmt.Printf("Narrative Index history (%dd, %d entries)\n\n", flagHistoryDays, len(entries))
		for _, e := range entries {
			fmt.Printf("  %s  %5.1f  %s\n", e.Timestamp.Local().Format("2006-01-02 15:04"), e.Overall, e.Trend)
		}

		min, max, sum := entries[0].Overall, entries[0].Overall, 0.0
		for _, e := range entries {
			sum += e.Overall
			if e.Overall < min {
				min = e.Overall
			}
			if e.Overall > max {
				max = e.Overall
			}
		}
		trend := narrative.DetectTrend(entries, time.Now(), 0, 0)
		fmt.Printf("\n  avg %.1f   min %.1f   max %.1f   trend: %s\n",
			sum/float64(len(entries)), min, max, trend)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryDays, "days", 30, "trailing window in days (1-365)")
}
