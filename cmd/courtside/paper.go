package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/courtsidehq/courtside/pkg/store"
	"github.com/courtsidehq/courtside/pkg/trader/learner"
)

// runPaper prints the session's paper book: the counterfactual of
// taking every strong signal with a fixed hold, net of maker fees.
func runPaper(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tz, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", cfg.Session.Timezone, err)
	}
	if date == "" {
		date = store.SessionDate(time.Now(), tz)
	}

	rep, err := learner.ReadReport(cfg.DataDir, date)
	if err != nil {
		return fmt.Errorf("no report for %s (%v); courtside report --regrade builds one", date, err)
	}

	p := rep.Paper
	if p.Trades == 0 {
		fmt.Printf("session %s: no paper trades\n", rep.Date)
		return nil
	}

	fmt.Printf("session %s paper book: %d trades, %d-%d (%.0f%%), net %+d cents (gross %+d, fees %d), best %+d, worst %+d\n",
		rep.Date, p.Trades, p.Wins, p.Losses, p.WinRate, p.NetPnL, p.GrossPnL, p.Fees, p.BestTrade, p.WorstTrade)

	if len(p.ByStrategy) > 0 {
		names := make([]string, 0, len(p.ByStrategy))
		for name := range p.ByStrategy {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println("\nby strategy")
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Strategy", "Trades", "Win%", "PnL", "Avg")
		for _, name := range names {
			s := p.ByStrategy[name]
			table.Append(name,
				fmt.Sprintf("%d", s.Trades), fmt.Sprintf("%.0f", s.WinRate),
				fmt.Sprintf("%+d", s.TotalPnL), fmt.Sprintf("%.1f", s.AvgPnL))
		}
		table.Render()
	}

	printPaperTrades("top trades", p.Top)
	printPaperTrades("worst trades", p.Worst)
	return nil
}

func printPaperTrades(title string, trades []learner.PaperTrade) {
	if len(trades) == 0 {
		return
	}
	fmt.Println("\n" + title)
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Ticker", "Strategy", "Side", "Entry", "Exit", "Net")
	for _, t := range trades {
		table.Append(t.Ticker, t.Strategy, t.Side,
			fmt.Sprintf("%d", t.Entry), fmt.Sprintf("%d", t.Exit),
			fmt.Sprintf("%+d", t.NetPnL))
	}
	table.Render()
}
