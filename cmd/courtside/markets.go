package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// runMarkets lists open markets per series, most traded first.
func runMarkets(cmd *cobra.Command, args []string) error {
	series, _ := cmd.Flags().GetString("series")
	top, _ := cmd.Flags().GetInt("top")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	venue := newVenue(cfg)

	list := cfg.Venue.Series
	if series != "" {
		list = []string{series}
	}

	for _, s := range list {
		markets, err := venue.GetMarkets(ctx, s, "open")
		if err != nil {
			log.Warn().Err(err).Str("series", s).Msg("market fetch failed")
			continue
		}
		sort.Slice(markets, func(i, j int) bool {
			return markets[i].Volume > markets[j].Volume
		})
		open := len(markets)
		if top > 0 && open > top {
			markets = markets[:top]
		}

		fmt.Printf("\n%s  (%d open)\n", s, open)
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Ticker", "Title", "Bid", "Ask", "Last", "Vol", "OI")
		for _, m := range markets {
			table.Append(m.Ticker, m.Title,
				fmt.Sprintf("%d", m.YesBid), fmt.Sprintf("%d", m.YesAsk),
				fmt.Sprintf("%d", m.LastPrice), fmt.Sprintf("%d", m.Volume),
				fmt.Sprintf("%d", m.OpenInterest))
		}
		table.Render()
	}
	return nil
}
