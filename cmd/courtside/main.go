// courtside is the operator CLI: slate scans, single-game analysis,
// market listings, session and paper reports, exit parameter
// inspection. It
// reads the same YAML config and data directory as the daemon; none of
// its commands need venue credentials.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/courtsidehq/courtside/pkg/config"
	"github.com/courtsidehq/courtside/pkg/espn"
	"github.com/courtsidehq/courtside/pkg/hoops"
	"github.com/courtsidehq/courtside/pkg/kalshi"
)

var configPath string

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	root := &cobra.Command{
		Use:          "courtside",
		Short:        "College basketball trading toolkit",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "courtside.yaml", "path to the YAML config")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Price the live slate against the venue's winner markets",
		RunE:  runScan,
	}
	scanCmd.Flags().Bool("all", false, "include pregame and finished games")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <team>",
		Short: "Price every contract on one game: winner, spread, total",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}

	marketsCmd := &cobra.Command{
		Use:   "markets",
		Short: "List open markets by series",
		RunE:  runMarkets,
	}
	marketsCmd.Flags().String("series", "", "single series ticker, default all configured")
	marketsCmd.Flags().Int("top", 20, "rows per series, by volume")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Show a session's calibration report",
		RunE:  runReport,
	}
	reportCmd.Flags().String("date", "", "session date YYYY-MM-DD, default today")
	reportCmd.Flags().Bool("regrade", false, "rebuild the report from the session's logs")
	reportCmd.Flags().Bool("cumulative", false, "show the lifetime record instead")

	paperCmd := &cobra.Command{
		Use:   "paper",
		Short: "Show a session's paper-trade book",
		RunE:  runPaper,
	}
	paperCmd.Flags().String("date", "", "session date YYYY-MM-DD, default today")

	exitsCmd := &cobra.Command{
		Use:   "exits",
		Short: "Show the configured and active exit parameters",
		RunE:  runExits,
	}

	root.AddCommand(scanCmd, analyzeCmd, marketsCmd, reportCmd, paperCmd, exitsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func newFeed(cfg *config.Config) *espn.Client {
	return espn.NewClient(espn.WithBaseURL(cfg.Feed.BaseURL))
}

// newVenue returns a public client; every CLI read path works without
// credentials.
func newVenue(cfg *config.Config) *kalshi.Client {
	return kalshi.NewPublicClient(
		kalshi.WithBaseURL(cfg.Venue.BaseURL),
		kalshi.WithRateLimit(cfg.Venue.RatePerSec, cfg.Venue.RateBurst),
	)
}

func newModel(cfg *config.Config) *hoops.Model {
	m := cfg.Model
	return hoops.New(&hoops.Config{
		GameLengthMin:     m.GameLengthMin,
		Sigma:             m.Sigma,
		TotalSigma:        m.TotalSigma,
		ReversionBeta:     m.ReversionBeta,
		DampenFullSpread:  m.DampenFullSpread,
		DampenLimitSpread: m.DampenLimitSpread,
		DampenFloor:       m.DampenFloor,
	})
}

func gameState(g espn.Game, now time.Time) hoops.GameState {
	return hoops.GameState{
		EventID:          g.ID,
		HomeTeam:         g.HomeTeam,
		AwayTeam:         g.AwayTeam,
		HomeAbbr:         g.HomeAbbr,
		AwayAbbr:         g.AwayAbbr,
		HomeScore:        g.HomeScore,
		AwayScore:        g.AwayScore,
		Period:           g.Period,
		Clock:            g.Clock,
		Final:            g.Final(),
		StartTime:        g.StartTime,
		Timestamp:        now,
		MinutesRemaining: g.MinutesRemaining,
		PregameSpread:    g.Spread,
		PregameTotal:     g.OverUnder,
	}
}
