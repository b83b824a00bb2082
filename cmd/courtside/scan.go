package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/courtsidehq/courtside/pkg/espn"
	"github.com/courtsidehq/courtside/pkg/hoops"
	"github.com/courtsidehq/courtside/pkg/kalshi"
)

// runScan prints the slate with the model's read on each game's winner
// contract. Live games get a fair value and edge; pregame and finished
// rows only appear under --all.
func runScan(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	feed := newFeed(cfg)
	venue := newVenue(cfg)
	model := newModel(cfg)

	games, err := feed.Schedule(ctx)
	if err != nil {
		return fmt.Errorf("scoreboard: %w", err)
	}
	index := fetchMarkets(ctx, venue, cfg.Trading.AllowedSeries)

	now := time.Now()
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Tip", "Matchup", "Score", "Clock", "Line", "FV", "Mkt", "Edge")

	shown := 0
	for _, g := range games {
		if !all && !g.Live() {
			continue
		}
		table.Append(scanRow(model, gameState(g, now), g, index)...)
		shown++
	}
	if shown == 0 {
		fmt.Println("no live games right now; --all shows the full slate")
		return nil
	}
	table.Render()
	fmt.Printf("\n%d games, %d markets indexed\n", shown, len(index))
	return nil
}

// fetchMarkets indexes the open markets for the given series. A series
// failure costs its markets, not the scan.
func fetchMarkets(ctx context.Context, venue *kalshi.Client, series []string) map[string]kalshi.Market {
	index := make(map[string]kalshi.Market)
	for _, s := range series {
		markets, err := venue.GetMarkets(ctx, s, "open")
		if err != nil {
			log.Warn().Err(err).Str("series", s).Msg("market fetch failed")
			continue
		}
		for _, m := range markets {
			index[m.Ticker] = m
		}
	}
	return index
}

func scanRow(model *hoops.Model, st hoops.GameState, g espn.Game, index map[string]kalshi.Market) []any {
	tip := "-"
	if !g.StartTime.IsZero() {
		tip = g.StartTime.Local().Format("3:04PM")
	}
	matchup := fmt.Sprintf("%s @ %s", g.AwayAbbr, g.HomeAbbr)
	score := fmt.Sprintf("%d-%d", g.AwayScore, g.HomeScore)

	var clock string
	switch {
	case g.Final():
		clock = "final"
	case g.Live():
		clock = fmt.Sprintf("P%d %s", g.Period, g.Clock)
	default:
		clock = "pre"
		score = "-"
	}

	line := "-"
	if g.Spread != 0 {
		line = fmt.Sprintf("%+.1f", g.Spread)
	}

	fv, mkt, edge := "-", "-", "-"
	if g.Live() {
		if m, homeIsYes, ok := winnerMarket(st, index); ok {
			lead, spread := float64(st.Lead()), st.PregameSpread
			if !homeIsYes {
				lead, spread = -lead, -spread
			}
			v := model.Value(lead, st.MinutesRemaining, spread)
			q := kalshi.QuoteFromMarket(m, st.Timestamp)
			side := st.HomeAbbr
			if !homeIsYes {
				side = st.AwayAbbr
			}
			fv = fmt.Sprintf("%s %d", side, v.FairValue)
			if p := q.Mid(); p > 0 {
				mkt = fmt.Sprintf("%d", p)
				edge = fmt.Sprintf("%+d", v.FairValue-p)
			}
		}
	}

	return []any{tip, matchup, score, clock, line, fv, mkt, edge}
}

// winnerMarket picks the game's winner contract, preferring the home
// side when both team contracts are listed.
func winnerMarket(st hoops.GameState, index map[string]kalshi.Market) (kalshi.Market, bool, bool) {
	var awayMatch kalshi.Market
	found := false
	for ticker, m := range index {
		homeIsYes, ok := hoops.MatchTicker(st, ticker)
		if !ok {
			continue
		}
		if homeIsYes {
			return m, true, true
		}
		awayMatch, found = m, true
	}
	return awayMatch, false, found
}
