package cmd

import (
	"context"
	"fmt"
	"os"
	osignal "os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/StreetFDN/roboglobe/internal/company"
	"github.com/StreetFDN/roboglobe/internal/config"
	"github.com/StreetFDN/roboglobe/internal/fetch"
	"github.com/StreetFDN/roboglobe/internal/history"
	"github.com/StreetFDN/roboglobe/internal/narrative"
	"github.com/StreetFDN/roboglobe/internal/server"
	"github.com/StreetFDN/roboglobe/internal/signal"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long:  "Start the HTTP API, serving the Narrative Index, score history, company records, and per-component signals.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(flagVerbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	store, err := openHistory(cfg.History)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer store.Close()

	appender := history.NewAppender(store, logger.Named("history"))
	defer appender.Close()

	companies := company.NewStore(cfg.Dataset.Path, cfg.Dataset.TTLDuration())
	client := fetch.NewClient(logger.Named("fetch"))
	readings := fetch.NewCache(cfg.SignalCacheTTL())
	scorers := buildScorers(cfg, client, readings, companies)

	engine := narrative.NewEngine(scorers, store, appender, logger.Named("narrative"), engineOptions(cfg))
	srv := server.NewServer(engine, store, companies, scorers, logger.Named("server"))

	ctx, stop := osignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting roboglobe",
		zap.String("version", version),
		zap.Strings("components", cfg.EnabledComponents()),
		zap.String("history", cfg.History.ResolvedBackend()))
	return srv.Run(ctx, cfg.ListenAddr)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func engineOptions(cfg *config.Config) narrative.Options {
	opts := narrative.Options{
		CacheTTL:        cfg.Narrative.CacheTTLDuration(),
		TrendWindowDays: cfg.Narrative.TrendWindowDays,
		TrendThreshold:  cfg.Narrative.TrendThreshold,
	}
	if len(cfg.Narrative.Weights) > 0 {
		opts.Weights = narrative.Weights(cfg.Narrative.Weights)
	}
	return opts
}

func openHistory(cfg config.HistoryConfig) (history.Store, error) {
	path := cfg.ResolvedPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}
	if cfg.ResolvedBackend() == "sqlite" {
		return history.OpenSQLite(path)
	}
	return history.OpenFile(path)
}

// buildScorers constructs one scorer per enabled source. They share the
// upstream client and the reading cache.
func buildScorers(cfg *config.Config, client *fetch.Client, readings *fetch.Cache, companies *company.Store) []signal.Scorer {
	src := cfg.Sources
	var scorers []signal.Scorer
	if src.IndexAlpha.Enabled {
		scorers = append(scorers, signal.NewIndexAlpha(client, readings, signal.IndexAlphaOptions{
			Tickers:   src.IndexAlpha.Tickers,
			Benchmark: src.IndexAlpha.Benchmark,
			Range:     src.IndexAlpha.Range,
		}))
	}
	if src.Polymarket.Enabled {
		scorers = append(scorers, signal.NewPolymarket(client, readings, signal.PolymarketOptions{
			Slug: src.Polymarket.Slug,
		}))
	}
	if src.Contracts.Enabled {
		scorers = append(scorers, signal.NewContracts(client, readings, signal.ContractsOptions{
			Endpoint:    src.Contracts.Endpoint,
			Keywords:    src.Contracts.Keywords,
			BaselineUSD: src.Contracts.BaselineUSD,
			WindowDays:  src.Contracts.WindowDays,
		}))
	}
	if src.GitHub.Enabled {
		scorers = append(scorers, signal.NewGitHub(client, readings, signal.GitHubOptions{
			Orgs:           src.GitHub.Orgs,
			Token:          src.GitHub.ResolvedToken(),
			ActivityTarget: src.GitHub.ActivityTarget,
		}))
	}
	if src.News.Enabled {
		scorers = append(scorers, signal.NewNews(readings, signal.NewsOptions{
			Feeds:  src.News.Feeds,
			MaxAge: src.News.MaxAgeDuration(),
		}))
	}
	if src.Funding.Enabled {
		scorers = append(scorers, signal.NewFunding(companies, readings, signal.FundingOptions{
			WindowDays: src.Funding.WindowDays,
		}))
	}
	if src.Technical.Enabled {
		scorers = append(scorers, signal.NewTechnical(client, readings, signal.TechnicalOptions{
			Repos:         src.Technical.Repos,
			Token:         src.GitHub.ResolvedToken(),
			CadenceTarget: src.Technical.CadenceTarget,
		}))
	}
	return scorers
}
