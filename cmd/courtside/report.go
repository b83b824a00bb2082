package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/courtsidehq/courtside/pkg/config"
	"github.com/courtsidehq/courtside/pkg/store"
	"github.com/courtsidehq/courtside/pkg/trader/learner"
)

// runReport prints one session's calibration report: what the detectors
// emitted, how it graded, what the paper book did, and what the session
// suggests changing. --regrade rebuilds the report from the raw logs and
// quote archive instead of reading the stored JSON.
func runReport(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")
	regrade, _ := cmd.Flags().GetBool("regrade")
	cumulative, _ := cmd.Flags().GetBool("cumulative")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cumulative {
		return printCumulative(cfg)
	}

	tz, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", cfg.Session.Timezone, err)
	}
	if date == "" {
		date = store.SessionDate(time.Now(), tz)
	}

	var rep *learner.SessionReport
	if regrade {
		quotes, err := store.OpenQuoteDB(store.QuoteDBPath(cfg.DataDir))
		if err != nil {
			return fmt.Errorf("quote db: %w", err)
		}
		defer quotes.Close()

		rep, err = learner.RunSession(cmd.Context(), learnerConfig(cfg, tz), quotes, cfg.DataDir, date)
		if errors.Is(err, learner.ErrNoData) {
			return fmt.Errorf("nothing recorded for %s", date)
		}
		if err != nil {
			return err
		}
	} else {
		rep, err = learner.ReadReport(cfg.DataDir, date)
		if err != nil {
			return fmt.Errorf("no report for %s (%v); --regrade rebuilds it from the logs", date, err)
		}
	}

	printReport(rep)
	return nil
}

func printReport(rep *learner.SessionReport) {
	d := rep.Data
	fmt.Printf("session %s: %d signals, %d quote snapshots, %d game snapshots, %d games\n",
		rep.Date, d.Signals, d.QuoteSnapshots, d.GameSnapshots, d.Games)

	if len(rep.Strategies) > 0 {
		names := make([]string, 0, len(rep.Strategies))
		for name := range rep.Strategies {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println("\nstrategy scores")
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Strategy", "Signals", "Graded", "Win%", "PnL", "Sharpe", "Grade")
		for _, name := range names {
			s := rep.Strategies[name]
			table.Append(name,
				fmt.Sprintf("%d", s.Signals), fmt.Sprintf("%d", s.Graded),
				fmt.Sprintf("%.0f", s.WinRate), fmt.Sprintf("%+d", s.TotalPnL),
				fmt.Sprintf("%.2f", s.Sharpe), s.Grade)
		}
		table.Render()
	}

	p := rep.Paper
	if p.Trades > 0 {
		fmt.Printf("\npaper book: %d trades, %d-%d, net %+d cents (gross %+d, fees %d), avg %.1f\n",
			p.Trades, p.Wins, p.Losses, p.NetPnL, p.GrossPnL, p.Fees, p.AvgPnL)
	}

	cal := rep.Calibration
	if cal.SigmaEstimate > 0 {
		fmt.Printf("\nrealized sigma %.1f over %d lead changes", cal.SigmaEstimate, cal.SigmaSamples)
		if cal.BiasSamples > 0 {
			fmt.Printf(", price bias %+.1f cents over %d marks", cal.Bias, cal.BiasSamples)
		}
		fmt.Println()
	}

	if len(rep.Recommendations) > 0 {
		fmt.Println("\nrecommendations")
		for _, r := range rep.Recommendations {
			if r.Recommended != 0 {
				fmt.Printf("  %s: %.1f -> %.1f  (%s)\n", r.Key, r.Current, r.Recommended, r.Reason)
			} else {
				fmt.Printf("  %s: %s\n", r.Key, r.Reason)
			}
		}
	}
}

func printCumulative(cfg *config.Config) error {
	cum, err := learner.LoadCumulative(store.NewKV(store.CumulativePath(cfg.DataDir)))
	if err != nil {
		return err
	}
	if cum.SessionsAnalyzed == 0 {
		fmt.Println("no sessions analyzed yet")
		return nil
	}

	fmt.Printf("%d sessions, %d signals, last updated %s\n",
		cum.SessionsAnalyzed, cum.TotalSignals, cum.LastUpdated.Format("2006-01-02"))

	names := make([]string, 0, len(cum.Strategies))
	for name := range cum.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Strategy", "Signals", "Graded", "W-L", "Win%", "PnL")
	for _, name := range names {
		s := cum.Strategies[name]
		table.Append(name,
			fmt.Sprintf("%d", s.Signals), fmt.Sprintf("%d", s.Graded),
			fmt.Sprintf("%d-%d", s.Wins, s.Losses),
			fmt.Sprintf("%.0f", s.WinRate), fmt.Sprintf("%+d", s.PnL))
	}
	table.Render()

	pp := cum.Paper
	fmt.Printf("\npaper lifetime: %d trades, %d-%d, net %+d cents (best %+d, worst %+d)\n",
		pp.Trades, pp.Wins, pp.Losses, pp.NetPnL, pp.BestTrade, pp.WorstTrade)
	return nil
}

// learnerConfig mirrors the daemon's wiring so a regrade matches what
// the nightly pass would have produced.
func learnerConfig(cfg *config.Config, tz *time.Location) *learner.Config {
	l := cfg.Learner
	return &learner.Config{
		HoldMinutes:     l.HoldMinutes,
		MinStrength:     l.MinStrength,
		FeeRate:         l.FeeRate,
		Horizons:        l.HorizonsMin,
		GradeHorizon:    l.GradeHorizonMin,
		MinSigmaSamples: l.MinSigmaSamples,
		GameLengthMin:   cfg.Model.GameLengthMin,
		ModelSigma:      cfg.Model.Sigma,
		EdgeFloor:       cfg.Trading.MinEdge,
		Timezone:        tz,
	}
}
