package strategy

import (
	"fmt"
	"time"

	"github.com/courtsidehq/courtside/pkg/hoops"
)

// Detector names, also the strategy labels on emitted signals.
const (
	NameValue      = "value"
	NameMomentum   = "momentum"
	NameHalftime   = "halftime"
	NameLategame   = "lategame"
	NameStalePrice = "stale_price"
	NameClosing    = "closing"
)

// --- value ---

// ValueConfig gates the persistent-divergence detector.
type ValueConfig struct {
	MinEdge     int // cents, floor on |edge|
	MaxEdge     int // cents, ceiling; larger divergence reads as model error
	Persistence int // observations the edge sign must hold
	Cooldown    time.Duration
}

// valueDetector fires on model-vs-market divergence that is large
// enough to matter, small enough to trust, and stable across the last
// few observations.
type valueDetector struct {
	cfg ValueConfig
}

func (d *valueDetector) Name() string            { return NameValue }
func (d *valueDetector) Cooldown() time.Duration { return d.cfg.Cooldown }

func (d *valueDetector) Evaluate(obs Observation, hist *History) *Signal {
	edge := obs.Edge
	if abs(edge) < d.cfg.MinEdge || abs(edge) > d.cfg.MaxEdge {
		return nil
	}
	if len(hist.Ticker) < d.cfg.Persistence {
		return nil
	}
	for _, o := range hist.Ticker[len(hist.Ticker)-d.cfg.Persistence:] {
		if !sameSign(o.Edge, edge) {
			return nil
		}
	}

	side := SideYes
	if edge < 0 {
		side = SideNo
	}
	return &Signal{
		Side:     side,
		Strength: min(10, abs(edge)/2),
		Edge:     abs(edge),
		Reason: fmt.Sprintf("model %dc vs market %dc, edge %+dc held %d obs",
			obs.Value.FairValue, obs.Price, edge, d.cfg.Persistence),
	}
}

// --- momentum ---

// MomentumConfig gates the scoring-run detector.
type MomentumConfig struct {
	LongWindow  int // observations in the long run window
	ShortWindow int // observations in the short run window
	LongRun     int // points the yes side must out-score over the long window
	ShortRun    int // points over the short window
	MinEdge     int // cents the market must still be lagging
	Cooldown    time.Duration
}

// momentumDetector fires when the yes side has out-scored the opponent
// over two overlapping windows and the price has not caught up. The
// double window filters runs that already stalled.
type momentumDetector struct {
	cfg MomentumConfig
}

func (d *momentumDetector) Name() string            { return NameMomentum }
func (d *momentumDetector) Cooldown() time.Duration { return d.cfg.Cooldown }

func (d *momentumDetector) Evaluate(obs Observation, hist *History) *Signal {
	if len(hist.Game) < d.cfg.LongWindow {
		return nil
	}
	longRun := runOver(hist.Game, d.cfg.LongWindow)
	shortRun := runOver(hist.Game, d.cfg.ShortWindow)
	if !obs.YesIsHome {
		longRun, shortRun = -longRun, -shortRun
	}

	switch {
	case longRun >= d.cfg.LongRun && shortRun >= d.cfg.ShortRun && obs.Edge >= d.cfg.MinEdge:
		return &Signal{
			Side:     SideYes,
			Strength: min(8, longRun),
			Edge:     abs(obs.Edge),
			Reason: fmt.Sprintf("run %+d over %d obs (%+d recent), market lagging %+dc",
				longRun, d.cfg.LongWindow, shortRun, obs.Edge),
		}
	case longRun <= -d.cfg.LongRun && shortRun <= -d.cfg.ShortRun && obs.Edge <= -d.cfg.MinEdge:
		return &Signal{
			Side:     SideNo,
			Strength: min(8, -longRun),
			Edge:     abs(obs.Edge),
			Reason: fmt.Sprintf("opponent run %+d over %d obs (%+d recent), market lagging %+dc",
				longRun, d.cfg.LongWindow, shortRun, obs.Edge),
		}
	}
	return nil
}

// runOver returns the home-perspective net score change across the last
// w snapshots.
func runOver(games []hoops.GameState, w int) int {
	if w < 2 || len(games) < w {
		return 0
	}
	first, last := games[len(games)-w], games[len(games)-1]
	return (last.HomeScore - first.HomeScore) - (last.AwayScore - first.AwayScore)
}

// --- halftime ---

// HalftimeConfig gates the structural-break detector.
type HalftimeConfig struct {
	WindowLow  float64 // minutes remaining, inclusive
	WindowHigh float64
	MinEdge    int
	Cooldown   time.Duration
}

// halftimeDetector fires around the half-time break, where quotes are
// empirically anchored to first-half information.
type halftimeDetector struct {
	cfg HalftimeConfig
}

func (d *halftimeDetector) Name() string            { return NameHalftime }
func (d *halftimeDetector) Cooldown() time.Duration { return d.cfg.Cooldown }

func (d *halftimeDetector) Evaluate(obs Observation, hist *History) *Signal {
	mins := obs.Game.MinutesRemaining
	if mins < d.cfg.WindowLow || mins > d.cfg.WindowHigh {
		return nil
	}
	if abs(obs.Edge) < d.cfg.MinEdge {
		return nil
	}

	side := SideYes
	if obs.Edge < 0 {
		side = SideNo
	}
	return &Signal{
		Side:     side,
		Strength: min(10, abs(obs.Edge)/2),
		Edge:     abs(obs.Edge),
		Reason: fmt.Sprintf("halftime repricing: model %dc vs market %dc",
			obs.Value.FairValue, obs.Price),
	}
}

// --- lategame ---

// LategameConfig gates the late-game point-sensitivity detector.
type LategameConfig struct {
	MaxMinutes float64
	MaxLead    int // close-game cap on |lead|
	MinDelta   int // cents of fair value per point
	MinEdge    int
	Cooldown   time.Duration
}

// lategameDetector fires in the final minutes of a close contest where
// each point swings the fair value hard, so a small edge carries an
// asymmetric payoff.
type lategameDetector struct {
	cfg LategameConfig
}

func (d *lategameDetector) Name() string            { return NameLategame }
func (d *lategameDetector) Cooldown() time.Duration { return d.cfg.Cooldown }

func (d *lategameDetector) Evaluate(obs Observation, hist *History) *Signal {
	mins := obs.Game.MinutesRemaining
	if mins <= 0 || mins > d.cfg.MaxMinutes {
		return nil
	}
	if abs(obs.YesLead) > d.cfg.MaxLead {
		return nil
	}
	if obs.Value.DeltaPerPoint < d.cfg.MinDelta || abs(obs.Edge) < d.cfg.MinEdge {
		return nil
	}

	side := SideYes
	if obs.Edge < 0 {
		side = SideNo
	}
	return &Signal{
		Side:     side,
		Strength: min(10, obs.Value.DeltaPerPoint),
		Edge:     abs(obs.Edge),
		Reason: fmt.Sprintf("late game: %dc/pt sensitivity, lead %+d, %.1fmin left, edge %+dc",
			obs.Value.DeltaPerPoint, obs.YesLead, mins, obs.Edge),
	}
}

// --- stale_price ---

// StalePriceConfig gates the lagging-quote detector.
type StalePriceConfig struct {
	MinScoreChange int // points of lead change between observations
	MinEdge        int
	Cooldown       time.Duration
}

// stalePriceDetector fires when the score just moved but the quote did
// not move commensurate with the model's point sensitivity, reading the
// quote as stale. Trades in the direction of the score change.
type stalePriceDetector struct {
	cfg StalePriceConfig
}

func (d *stalePriceDetector) Name() string            { return NameStalePrice }
func (d *stalePriceDetector) Cooldown() time.Duration { return d.cfg.Cooldown }

func (d *stalePriceDetector) Evaluate(obs Observation, hist *History) *Signal {
	if len(hist.Ticker) < 2 {
		return nil
	}
	prev := hist.Ticker[len(hist.Ticker)-2]

	leadChange := obs.YesLead - prev.YesLead
	if abs(leadChange) < d.cfg.MinScoreChange {
		return nil
	}
	expectedMove := obs.Value.DeltaPerPoint * leadChange
	priceMove := obs.Price - prev.Price
	if abs(priceMove) >= abs(expectedMove)/2 {
		return nil
	}
	if abs(obs.Edge) < d.cfg.MinEdge || !sameSign(obs.Edge, leadChange) {
		return nil
	}

	side := SideYes
	if leadChange < 0 {
		side = SideNo
	}
	return &Signal{
		Side:     side,
		Strength: min(10, 2+abs(obs.Edge)/2),
		Edge:     abs(obs.Edge),
		Reason: fmt.Sprintf("score moved %+d but price %+dc (expected ~%+dc), edge %+dc",
			leadChange, priceMove, expectedMove, obs.Edge),
	}
}

// --- closing ---

// ClosingConfig gates the terminal-convergence detector.
type ClosingConfig struct {
	MaxMinutes  float64
	MinLead     int // decided-game floor on |lead|
	BoundaryGap int // cents the price must still sit from the boundary
	MinEdge     int
	Cooldown    time.Duration
}

// closingDetector fires in the terminal minutes of a decided game when
// the quote has not yet converged to the boundary price.
type closingDetector struct {
	cfg ClosingConfig
}

func (d *closingDetector) Name() string            { return NameClosing }
func (d *closingDetector) Cooldown() time.Duration { return d.cfg.Cooldown }

func (d *closingDetector) Evaluate(obs Observation, hist *History) *Signal {
	mins := obs.Game.MinutesRemaining
	if mins <= 0 || mins > d.cfg.MaxMinutes {
		return nil
	}
	if abs(obs.YesLead) < d.cfg.MinLead {
		return nil
	}

	boundary := 99
	if obs.YesLead < 0 {
		boundary = 1
	}
	if abs(boundary-obs.Price) < d.cfg.BoundaryGap {
		return nil
	}
	if abs(obs.Edge) < d.cfg.MinEdge {
		return nil
	}

	side := SideYes
	if obs.Edge < 0 {
		side = SideNo
	}
	return &Signal{
		Side:     side,
		Strength: min(10, 4+abs(obs.Edge)/2),
		Edge:     abs(obs.Edge),
		Reason: fmt.Sprintf("closing convergence: lead %+d, %.1fmin left, price %dc vs boundary %dc",
			obs.YesLead, mins, obs.Price, boundary),
	}
}
