package executor

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// tuneExits inspects the recent closed trades grouped by exit reason and
// nudges the active exit set. Each rule moves one threshold by a fixed
// step inside hard bounds; any change replaces the set wholesale and is
// persisted with its rationale.
func (e *Executor) tuneExits() {
	window := e.closed
	if len(window) > e.cfg.TuneWindow {
		window = window[len(window)-e.cfg.TuneWindow:]
	}
	if len(window) < e.cfg.TuneMinTrades {
		return
	}

	byReason := make(map[string][]TradeRecord)
	for _, t := range window {
		byReason[t.ExitReason] = append(byReason[t.ExitReason], t)
	}

	next := e.exits
	changed := false

	// Stops whose marks later recovered past the stop level argue the
	// stop is inside the noise band.
	if stops := byReason[ExitStopLoss]; len(stops) >= 3 {
		recovered := 0
		for _, t := range stops {
			if trajectoryRecovered(t.PnLTrajectory, 3) {
				recovered++
			}
		}
		rate := float64(recovered) / float64(len(stops))
		if rate > 0.5 && next.StopLossPct < maxStopLossPct {
			next.StopLossPct = math.Min(maxStopLossPct, next.StopLossPct+2)
			changed = true
			log.Info().
				Float64("stop_loss_pct", next.StopLossPct).
				Float64("recovery_rate", rate).
				Msg("widened stop loss")
		}
	}

	// Peaks well above realized take-profit exits mean money left on
	// the table.
	tps := byReason[ExitTakeProfit]
	if len(tps) >= 3 {
		avgPeak := meanOf(tps, func(t TradeRecord) float64 { return t.PeakPnLPct })
		avgExit := meanOf(tps, func(t TradeRecord) float64 { return t.PnLPct })
		if avgPeak > avgExit+5 && next.TakeProfitPct < maxTakeProfitPct {
			next.TakeProfitPct = math.Min(maxTakeProfitPct, next.TakeProfitPct+3)
			changed = true
			log.Info().
				Float64("take_profit_pct", next.TakeProfitPct).
				Float64("avg_peak", avgPeak).
				Float64("avg_exit", avgExit).
				Msg("raised take profit")
		}
	}

	if times := byReason[ExitTime]; len(times) >= 3 {
		avg := meanOf(times, func(t TradeRecord) float64 { return t.PnLPct })
		switch {
		case avg > 2 && next.TimeExitSec < maxTimeExitSec:
			next.TimeExitSec = min(maxTimeExitSec, next.TimeExitSec+60)
			changed = true
			log.Info().
				Int("time_exit_sec", next.TimeExitSec).
				Float64("avg_pnl_pct", avg).
				Msg("extended time exit")
		case avg < -3 && next.TimeExitSec > minTimeExitSec:
			next.TimeExitSec = max(minTimeExitSec, next.TimeExitSec-30)
			changed = true
			log.Info().
				Int("time_exit_sec", next.TimeExitSec).
				Float64("avg_pnl_pct", avg).
				Msg("shortened time exit")
		}
	}

	if trails := byReason[ExitTrailing]; len(trails) >= 2 && len(tps) >= 2 {
		avgTrail := meanOf(trails, func(t TradeRecord) float64 { return t.PnLPct })
		avgTP := meanOf(tps, func(t TradeRecord) float64 { return t.PnLPct })
		if avgTrail > avgTP && next.TrailingActivatePct > minTrailingActivatePct {
			next.TrailingActivatePct = math.Max(minTrailingActivatePct, next.TrailingActivatePct-1)
			changed = true
			log.Info().
				Float64("trailing_activate_pct", next.TrailingActivatePct).
				Float64("avg_trailing", avgTrail).
				Float64("avg_take_profit", avgTP).
				Msg("tightened trailing activation")
		}
	}

	if !changed {
		return
	}
	e.exits = next
	reason := fmt.Sprintf("auto-tuned after %d trades", len(window))
	if err := SaveExitParams(e.kv, next, reason, e.nowFn()); err != nil {
		log.Error().Err(err).Msg("could not persist tuned exits")
	}
}

// trajectoryRecovered reports whether the position's mark climbed more
// than minPts above its worst reading by the last reading.
func trajectoryRecovered(traj []PnLPoint, minPts float64) bool {
	if len(traj) < 2 {
		return false
	}
	low := traj[0].PnLPct
	for _, p := range traj {
		if p.PnLPct < low {
			low = p.PnLPct
		}
	}
	return traj[len(traj)-1].PnLPct > low+minPts
}

func meanOf(trades []TradeRecord, f func(TradeRecord) float64) float64 {
	if len(trades) == 0 {
		return 0
	}
	var sum float64
	for _, t := range trades {
		sum += f(t)
	}
	return sum / float64(len(trades))
}
