package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/courtsidehq/courtside/pkg/espn"
	"github.com/courtsidehq/courtside/pkg/hoops"
	"github.com/courtsidehq/courtside/pkg/kalshi"
)

// runAnalyze prices every listed contract on one game. Winner contracts
// use the win model, spreads the win-by model, totals the combined-score
// model; first-half contracts are listed unpriced since the model covers
// the full game.
func runAnalyze(cmd *cobra.Command, args []string) error {
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
	g, ok := findGame(games, args[0])
	if !ok {
		return fmt.Errorf("no game matching %q on today's slate", args[0])
	}
	st := gameState(g, time.Now())
	printGameHeader(g, st)

	for _, series := range cfg.Venue.Series {
		markets, err := venue.GetMarkets(ctx, series, "open")
		if err != nil {
			log.Warn().Err(err).Str("series", series).Msg("market fetch failed")
			continue
		}
		rows := priceSeries(model, st, series, markets)
		if len(rows) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", series)
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Ticker", "Bid", "Ask", "Last", "FV", "Edge")
		for _, r := range rows {
			table.Append(r...)
		}
		table.Render()
	}
	return nil
}

func findGame(games []espn.Game, query string) (espn.Game, bool) {
	q := hoops.NormalizeTeam(query)
	if q == "" {
		return espn.Game{}, false
	}
	for _, g := range games {
		if hoops.NormalizeTeam(g.HomeAbbr) == q || hoops.NormalizeTeam(g.AwayAbbr) == q {
			return g, true
		}
	}
	for _, g := range games {
		if strings.Contains(hoops.NormalizeTeam(g.HomeTeam), q) ||
			strings.Contains(hoops.NormalizeTeam(g.AwayTeam), q) {
			return g, true
		}
	}
	return espn.Game{}, false
}

func printGameHeader(g espn.Game, st hoops.GameState) {
	fmt.Printf("%s @ %s", g.AwayTeam, g.HomeTeam)
	switch {
	case g.Final():
		fmt.Printf("  final %d-%d\n", g.AwayScore, g.HomeScore)
	case g.Live():
		fmt.Printf("  %d-%d  P%d %s  %.1f min left\n",
			g.AwayScore, g.HomeScore, g.Period, g.Clock, g.MinutesRemaining)
	default:
		fmt.Printf("  tips %s\n", g.StartTime.Local().Format("3:04PM"))
	}
	if g.Spread != 0 || g.OverUnder != 0 {
		fmt.Printf("line: home %+.1f, total %.1f\n", g.Spread, g.OverUnder)
	}
}

func priceSeries(model *hoops.Model, st hoops.GameState, series string, markets []kalshi.Market) [][]any {
	var rows [][]any
	for _, m := range markets {
		if !eventMatches(st, m.Ticker) {
			continue
		}
		rows = append(rows, marketRow(m, contractFV(model, st, series, m)))
	}
	return rows
}

// contractFV returns the model's cent value for the contract's yes side,
// or -1 when the contract does not belong to the game or has no model.
func contractFV(model *hoops.Model, st hoops.GameState, series string, m kalshi.Market) int {
	switch {
	case strings.Contains(series, "SPREAD"):
		homeIsYes, ok := hoops.MatchTicker(st, m.Ticker)
		if !ok {
			return -1
		}
		lead, spread := float64(st.Lead()), st.PregameSpread
		if !homeIsYes {
			lead, spread = -lead, -spread
		}
		line := strike(m)
		return probCents(model.WinByProbability(lead, st.MinutesRemaining, spread, line))

	case strings.Contains(series, "TOTAL"):
		if !eventMatches(st, m.Ticker) {
			return -1
		}
		line := strike(m)
		return probCents(model.TotalProbability(float64(st.TotalPoints()), st.MinutesRemaining, st.PregameTotal, line))

	case strings.Contains(series, "1H"):
		// Listed for context only; the model prices full games.
		return -1

	default:
		homeIsYes, ok := hoops.MatchTicker(st, m.Ticker)
		if !ok {
			return -1
		}
		lead, spread := float64(st.Lead()), st.PregameSpread
		if !homeIsYes {
			lead, spread = -lead, -spread
		}
		return model.Value(lead, st.MinutesRemaining, spread).FairValue
	}
}

func marketRow(m kalshi.Market, fv int) []any {
	cell := func(v int) string {
		if v <= 0 {
			return "-"
		}
		return strconv.Itoa(v)
	}
	fvCell, edgeCell := "-", "-"
	if fv >= 0 {
		fvCell = strconv.Itoa(fv)
		q := kalshi.QuoteFromMarket(m, time.Time{})
		if p := q.Mid(); p > 0 {
			edgeCell = fmt.Sprintf("%+d", fv-p)
		}
	}
	return []any{m.Ticker, cell(m.YesBid), cell(m.YesAsk), cell(m.LastPrice), fvCell, edgeCell}
}

// eventMatches reports whether the ticker's event segment names both of
// the game's teams. Total contracts carry no team segment, so this is
// their only game linkage.
func eventMatches(st hoops.GameState, ticker string) bool {
	p := hoops.ParseTicker(ticker)
	if p.Event == "" {
		return false
	}
	ev := hoops.NormalizeTeam(p.Event)
	home := hoops.NormalizeTeam(st.HomeAbbr)
	away := hoops.NormalizeTeam(st.AwayAbbr)
	return home != "" && away != "" &&
		strings.Contains(ev, home) && strings.Contains(ev, away)
}

// strike returns the contract's line: the listed floor strike when
// present, else the numeric suffix of the ticker's last segment, as in
// SPREAD-...-MICH3.5 or TOTAL-...-145.5.
func strike(m kalshi.Market) float64 {
	if m.FloorStrike != 0 {
		return m.FloorStrike
	}
	parts := strings.Split(m.Ticker, "-")
	seg := parts[len(parts)-1]
	i := len(seg)
	for i > 0 {
		c := seg[i-1]
		if (c >= '0' && c <= '9') || c == '.' {
			i--
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(seg[i:], 64)
	if err != nil {
		return 0
	}
	return v
}

func probCents(p float64) int {
	v := int(p*100 + 0.5)
	if v < 1 {
		v = 1
	}
	if v > 99 {
		v = 99
	}
	return v
}
