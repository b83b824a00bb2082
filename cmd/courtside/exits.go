package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/courtsidehq/courtside/pkg/store"
	"github.com/courtsidehq/courtside/pkg/trader/executor"
)

// runExits shows the configured exit baseline next to the set actually
// in force, which may be a tuned set persisted by the daemon.
func runExits(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	e := cfg.Exits
	base := executor.ExitParams{
		StopLossPct:         e.StopLossPct,
		TakeProfitPct:       e.TakeProfitPct,
		TrailingStopPct:     e.TrailingStopPct,
		TrailingActivatePct: e.TrailingActivatePct,
		TimeExitSec:         e.TimeExitSec,
		EdgeExit:            e.EdgeExitThreshold,
	}
	kv := store.NewKV(store.ExitParamsPath(cfg.DataDir))
	active := executor.LoadExitParamsFrom(kv, base)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Parameter", "Configured", "Active")
	rows := []struct {
		name   string
		b, a   float64
		isTime bool
	}{
		{"stop loss %", base.StopLossPct, active.StopLossPct, false},
		{"take profit %", base.TakeProfitPct, active.TakeProfitPct, false},
		{"trailing stop %", base.TrailingStopPct, active.TrailingStopPct, false},
		{"trailing activate %", base.TrailingActivatePct, active.TrailingActivatePct, false},
		{"time exit s", float64(base.TimeExitSec), float64(active.TimeExitSec), true},
		{"edge exit cents", base.EdgeExit, active.EdgeExit, false},
	}
	for _, r := range rows {
		if r.isTime {
			table.Append(r.name, fmt.Sprintf("%.0f", r.b), fmt.Sprintf("%.0f", r.a))
		} else {
			table.Append(r.name, fmt.Sprintf("%.1f", r.b), fmt.Sprintf("%.1f", r.a))
		}
	}
	table.Render()

	var meta struct {
		Updated time.Time `json:"updated"`
		Reason  string    `json:"reason"`
	}
	if err := kv.Load(&meta); err == nil && meta.Reason != "" {
		fmt.Printf("\ntuned %s: %s\n", meta.Updated.Format("2006-01-02 15:04"), meta.Reason)
	} else {
		fmt.Println("\nno tuned set persisted; the configured baseline is active")
	}
	return nil
}
