package executor

import (
	"time"

	"github.com/courtsidehq/courtside/pkg/store"
)

// Hard bounds on tunable exit thresholds. The tuner never moves a
// threshold past these, and loading clamps stray persisted values back
// inside them.
const (
	maxStopLossPct         = 20
	maxTakeProfitPct       = 30
	minTimeExitSec         = 120
	maxTimeExitSec         = 600
	minTrailingActivatePct = 4
)

// ExitParams is the active exit threshold set. Exactly one set is live
// at a time; the tuner replaces it wholesale and persists the new set,
// never editing fields in place.
type ExitParams struct {
	StopLossPct         float64 `json:"stop_loss_pct"`
	TakeProfitPct       float64 `json:"take_profit_pct"`
	TrailingStopPct     float64 `json:"trailing_stop_pct"`
	TrailingActivatePct float64 `json:"trailing_activate_pct"`
	TimeExitSec         int     `json:"time_exit_sec"`
	EdgeExit            float64 `json:"edge_exit"`
}

// DefaultExitParams returns the baseline exit set used before any tuning
// has happened.
func DefaultExitParams() ExitParams {
	return ExitParams{
		StopLossPct:         15,
		TakeProfitPct:       15,
		TrailingStopPct:     5,
		TrailingActivatePct: 8,
		TimeExitSec:         300,
		EdgeExit:            -1,
	}
}

// TimeExit is the maximum hold as a duration.
func (p ExitParams) TimeExit() time.Duration {
	return time.Duration(p.TimeExitSec) * time.Second
}

// normalized clamps the set into its legal bounds, falling back to the
// default for any field that is missing or nonsensical.
func (p ExitParams) normalized() ExitParams {
	def := DefaultExitParams()
	if p.StopLossPct <= 0 || p.StopLossPct > maxStopLossPct {
		p.StopLossPct = def.StopLossPct
	}
	if p.TakeProfitPct <= 0 || p.TakeProfitPct > maxTakeProfitPct {
		p.TakeProfitPct = def.TakeProfitPct
	}
	if p.TrailingStopPct <= 0 {
		p.TrailingStopPct = def.TrailingStopPct
	}
	if p.TrailingActivatePct <= 0 {
		p.TrailingActivatePct = def.TrailingActivatePct
	}
	if p.TimeExitSec < minTimeExitSec || p.TimeExitSec > maxTimeExitSec {
		p.TimeExitSec = def.TimeExitSec
	}
	if p.EdgeExit > 0 {
		p.EdgeExit = def.EdgeExit
	}
	return p
}

// tunedExits is the persisted shape of the active exit set.
type tunedExits struct {
	Exits   ExitParams `json:"exits"`
	Updated time.Time  `json:"updated"`
	Reason  string     `json:"reason"`
}

// LoadExitParams reads the tuned exit set from kv, overlaying stored
// values on the defaults so a partial or stale file never loses fields.
// Any load failure falls back to the defaults.
func LoadExitParams(kv *store.KV) ExitParams {
	return LoadExitParamsFrom(kv, DefaultExitParams())
}

// LoadExitParamsFrom is LoadExitParams with a caller-supplied baseline,
// for operators who override the exit defaults in configuration. A
// persisted tuned set still wins over the baseline.
func LoadExitParamsFrom(kv *store.KV, base ExitParams) ExitParams {
	base = base.normalized()
	if kv == nil {
		return base
	}
	t := tunedExits{Exits: base}
	if err := kv.Load(&t); err != nil {
		return base
	}
	return t.Exits.normalized()
}

// SaveExitParams atomically replaces the persisted exit set, keeping the
// human-readable justification alongside it.
func SaveExitParams(kv *store.KV, p ExitParams, reason string, now time.Time) error {
	if kv == nil {
		return nil
	}
	return kv.Save(tunedExits{Exits: p, Updated: now, Reason: reason})
}
