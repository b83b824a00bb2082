// Package strategy turns (quote, game state, model value) observations
// into trade signals. A registry of independent detectors runs on every
// observation; each detector applies its own gates and a per-(strategy,
// contract) cooldown keeps any one detector from spamming a contract.
package strategy

import (
	"fmt"
	"time"

	"github.com/courtsidehq/courtside/pkg/hoops"
	"github.com/courtsidehq/courtside/pkg/kalshi"
)

// Observation is one tuple fed to the engine: current quote, current
// game state, and the model's valuation of the contract's yes side.
// Price, Edge and YesLead are derived by the engine; callers leave them
// zero.
type Observation struct {
	Ticker    string
	Quote     kalshi.Quote
	Game      hoops.GameState
	Value     hoops.Value
	YesIsHome bool
	Timestamp time.Time

	// Derived.
	Price   int // market price the edge is measured against
	Edge    int // signed cents, model fair value minus Price
	YesLead int // point differential from the yes side's perspective
}

// Detector is one independent strategy heuristic.
type Detector interface {
	// Name keys cooldowns, stats and emitted signals.
	Name() string
	// Cooldown is the minimum gap between two signals for the same
	// contract.
	Cooldown() time.Duration
	// Evaluate inspects the current observation and history and may
	// return one signal.
	Evaluate(obs Observation, hist *History) *Signal
}

// History is the engine's rolling state handed to detectors, oldest
// first. The current observation is the last Ticker entry.
type History struct {
	Ticker []Observation
	Game   []hoops.GameState
}

// Config bundles the per-detector gates and the shared ring size.
type Config struct {
	HistorySize int
	Value       ValueConfig
	Momentum    MomentumConfig
	Halftime    HalftimeConfig
	Lategame    LategameConfig
	StalePrice  StalePriceConfig
	Closing     ClosingConfig
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() *Config {
	return &Config{
		HistorySize: 40,
		Value: ValueConfig{
			MinEdge:     5,
			MaxEdge:     15,
			Persistence: 3,
			Cooldown:    240 * time.Second,
		},
		Momentum: MomentumConfig{
			LongWindow:  6,
			ShortWindow: 3,
			LongRun:     6,
			ShortRun:    3,
			MinEdge:     3,
			Cooldown:    180 * time.Second,
		},
		Halftime: HalftimeConfig{
			WindowLow:  19,
			WindowHigh: 21,
			MinEdge:    5,
			Cooldown:   600 * time.Second,
		},
		Lategame: LategameConfig{
			MaxMinutes: 6,
			MaxLead:    5,
			MinDelta:   4,
			MinEdge:    3,
			Cooldown:   90 * time.Second,
		},
		StalePrice: StalePriceConfig{
			MinScoreChange: 2,
			MinEdge:        4,
			Cooldown:       120 * time.Second,
		},
		Closing: ClosingConfig{
			MaxMinutes:  3,
			MinLead:     8,
			BoundaryGap: 5,
			MinEdge:     4,
			Cooldown:    90 * time.Second,
		},
	}
}

type cooldownKey struct {
	strategy string
	ticker   string
}

// Engine runs the detector registry over an observation stream.
type Engine struct {
	cfg       Config
	detectors []Detector
	obs       map[string][]Observation
	games     map[string][]hoops.GameState
	lastFired map[cooldownKey]time.Time
	emitted   map[string]int
	recent    []Signal
	nowFn     func() time.Time
}

// New builds an engine with the standard detector registry. A nil
// config uses the defaults.
func New(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	e := &Engine{
		cfg:       *cfg,
		obs:       make(map[string][]Observation),
		games:     make(map[string][]hoops.GameState),
		lastFired: make(map[cooldownKey]time.Time),
		emitted:   make(map[string]int),
		nowFn:     time.Now,
	}
	e.Register(&valueDetector{cfg: cfg.Value})
	e.Register(&momentumDetector{cfg: cfg.Momentum})
	e.Register(&halftimeDetector{cfg: cfg.Halftime})
	e.Register(&lategameDetector{cfg: cfg.Lategame})
	e.Register(&stalePriceDetector{cfg: cfg.StalePrice})
	e.Register(&closingDetector{cfg: cfg.Closing})
	return e
}

// Register appends a detector to the registry.
func (e *Engine) Register(d Detector) {
	e.detectors = append(e.detectors, d)
}

// OnGameState records one game snapshot. Call once per game per poll,
// not once per contract; snapshots at or before the last recorded
// timestamp are dropped.
func (e *Engine) OnGameState(g hoops.GameState) {
	ring := e.games[g.EventID]
	if n := len(ring); n > 0 && !g.Timestamp.After(ring[n-1].Timestamp) {
		return
	}
	e.games[g.EventID] = trimRing(append(ring, g), e.cfg.HistorySize)
}

// OnQuote records one observation and runs every detector over it.
// Detectors still under cooldown for this contract are skipped. The
// returned signals are also retained for Stats and Recent.
func (e *Engine) OnQuote(obs Observation) []Signal {
	if obs.Timestamp.IsZero() {
		obs.Timestamp = e.nowFn()
	}
	obs.Price = ReferencePrice(obs.Quote)
	obs.Edge = obs.Value.FairValue - obs.Price
	obs.YesLead = obs.Game.Lead()
	if !obs.YesIsHome {
		obs.YesLead = -obs.YesLead
	}

	e.obs[obs.Ticker] = trimRing(append(e.obs[obs.Ticker], obs), e.cfg.HistorySize)

	if obs.Game.Final {
		return nil
	}

	hist := &History{
		Ticker: e.obs[obs.Ticker],
		Game:   e.games[obs.Game.EventID],
	}

	var out []Signal
	for _, d := range e.detectors {
		key := cooldownKey{strategy: d.Name(), ticker: obs.Ticker}
		if last, ok := e.lastFired[key]; ok && obs.Timestamp.Sub(last) < d.Cooldown() {
			continue
		}
		sig := d.Evaluate(obs, hist)
		if sig == nil {
			continue
		}
		sig.Timestamp = obs.Timestamp
		sig.Strategy = d.Name()
		sig.Ticker = obs.Ticker
		sig.FairValue = obs.Value.FairValue
		sig.Price = obs.Price
		sig.Game = gameContext(obs.Game)

		e.lastFired[key] = obs.Timestamp
		e.emitted[d.Name()]++
		e.recent = append(e.recent, *sig)
		if len(e.recent) > 100 {
			e.recent = e.recent[1:]
		}
		out = append(out, *sig)
	}
	return out
}

// Reset clears the per-session state: observation and game histories,
// firing cooldowns and the recent-signal ring. Lifetime emission counts
// survive so Stats stays meaningful across a long-running process.
func (e *Engine) Reset() {
	e.obs = make(map[string][]Observation)
	e.games = make(map[string][]hoops.GameState)
	e.lastFired = make(map[cooldownKey]time.Time)
	e.recent = nil
}

// Stats returns the emitted signal count per strategy.
func (e *Engine) Stats() map[string]int {
	out := make(map[string]int, len(e.emitted))
	for k, v := range e.emitted {
		out[k] = v
	}
	return out
}

// Recent returns the most recently emitted signals, oldest first.
func (e *Engine) Recent() []Signal {
	out := make([]Signal, len(e.recent))
	copy(out, e.recent)
	return out
}

// TrackedGames returns how many events have recorded history.
func (e *Engine) TrackedGames() int {
	return len(e.games)
}

// TrackedMarkets returns how many contracts have recorded history.
func (e *Engine) TrackedMarkets() int {
	return len(e.obs)
}

// ReferencePrice picks the price edges are measured against: last trade,
// then bid, then the 50c prior for a market with no prints. The quote
// archive records edges against the same price so the calibration pass
// replays exactly what the detectors saw.
func ReferencePrice(q kalshi.Quote) int {
	if q.LastPrice > 0 {
		return q.LastPrice
	}
	if q.YesBid > 0 {
		return q.YesBid
	}
	return 50
}

func gameContext(g hoops.GameState) GameContext {
	return GameContext{
		Name:             g.AwayTeam + " @ " + g.HomeTeam,
		Score:            fmt.Sprintf("%d-%d", g.AwayScore, g.HomeScore),
		Lead:             g.Lead(),
		MinutesRemaining: g.MinutesRemaining,
		Period:           g.Period,
	}
}

func trimRing[T any](ring []T, max int) []T {
	if max > 0 && len(ring) > max {
		ring = ring[len(ring)-max:]
	}
	return ring
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sameSign(a, b int) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
