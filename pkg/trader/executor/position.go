package executor

import (
	"strings"
	"time"

	"github.com/courtsidehq/courtside/pkg/trader/strategy"
)

// Exit reasons, in the priority order they are evaluated.
const (
	ExitModel      = "model_exit"
	ExitTakeProfit = "take_profit"
	ExitTrailing   = "trailing_stop"
	ExitStopLoss   = "stop_loss"
	ExitTime       = "time_exit"
)

// EdgePoint is one model reading along an open position's life.
type EdgePoint struct {
	TS      time.Time `json:"ts"`
	Edge    int       `json:"edge"`
	ModelFV int       `json:"model_fv"`
	Price   int       `json:"price"`
}

// PnLPoint is one mark-to-market reading along an open position's life.
type PnLPoint struct {
	TS     time.Time `json:"ts"`
	PnLPct float64   `json:"pnl_pct"`
}

// Position tracks a single contract from order placement to exit. Capital
// committed is fixed at entry; everything else updates as the game and
// the market move.
type Position struct {
	Ticker     string    `json:"ticker"`
	Side       string    `json:"side"`
	EntryPrice int       `json:"entry_price"` // per-contract cost in cents
	Contracts  int       `json:"contracts"`
	TotalCost  int       `json:"total_cost"`
	OrderID    string    `json:"order_id"`
	Strategy   string    `json:"strategy"`
	EntryTime  time.Time `json:"entry_time"`
	Filled     bool      `json:"filled"`
	Event      string    `json:"-"`

	LastModelFV int     `json:"last_model_fv"`
	LastEdge    int     `json:"last_edge"`
	EdgeUpdates int     `json:"edge_updates"`
	PeakPnLPct  float64 `json:"peak_pnl_pct"`

	ExitPrice  int     `json:"exit_price,omitempty"`
	ExitReason string  `json:"exit_reason,omitempty"`
	PnLCents   int     `json:"pnl,omitempty"`
	PnLPct     float64 `json:"pnl_pct,omitempty"`

	Signal strategy.Signal `json:"-"`
	Entry  EntryContext    `json:"-"`

	lastFillCheck time.Time
	edgeTraj      []EdgePoint
	pnlTraj       []PnLPoint
}

// EntryContext captures the game situation at entry. The calibration
// pass reads it back when grading closed trades.
type EntryContext struct {
	Strategy         string  `json:"strategy"`
	Edge             int     `json:"edge"`
	Strength         int     `json:"strength"`
	ModelFV          int     `json:"model_fv"`
	MarketPrice      int     `json:"market_price"`
	MinutesRemaining float64 `json:"minutes_remaining"`
	Period           int     `json:"period"`
	Lead             int     `json:"lead"`
	Score            string  `json:"score"`
	Game             string  `json:"game"`
}

// TradeRecord is one entry in the trade history log, written on both
// order placement and close. Close records carry the full learning
// context: exit parameter snapshot and the trailing trajectories.
type TradeRecord struct {
	Action      string  `json:"action"` // open | close
	Ticker      string  `json:"ticker"`
	Side        string  `json:"side"`
	EntryPrice  int     `json:"entry_price"`
	ExitPrice   int     `json:"exit_price,omitempty"`
	Contracts   int     `json:"contracts"`
	TotalCost   int     `json:"total_cost"`
	OrderID     string  `json:"order_id,omitempty"`
	PnLCents    int     `json:"pnl_cents"`
	PnLPct      float64 `json:"pnl_pct"`
	ExitReason  string  `json:"exit_reason,omitempty"`
	HoldSeconds int     `json:"hold_time"`
	PeakPnLPct  float64 `json:"peak_pnl_pct"`
	Strategy    string  `json:"strategy"`
	Bankroll    int     `json:"bankroll"`
	Target      int     `json:"target_position,omitempty"`

	Entry          EntryContext `json:"entry_context"`
	ExitParams     ExitParams   `json:"exit_params"`
	EdgeAtExit     int          `json:"edge_at_exit"`
	EdgeUpdates    int          `json:"edge_updates"`
	EdgeTrajectory []EdgePoint  `json:"edge_trajectory,omitempty"`
	PnLTrajectory  []PnLPoint   `json:"pnl_trajectory,omitempty"`
}

// PositionView is the external snapshot of one open position.
type PositionView struct {
	Ticker         string  `json:"ticker"`
	Side           string  `json:"side"`
	EntryPrice     int     `json:"entry_price"`
	Contracts      int     `json:"contracts"`
	TotalCost      int     `json:"total_cost"`
	Strategy       string  `json:"strategy"`
	Filled         bool    `json:"filled"`
	SignalEdge     int     `json:"signal_edge"`
	SignalStrength int     `json:"signal_strength"`
	LastModelFV    int     `json:"last_model_fv"`
	LastEdge       int     `json:"last_edge"`
	PeakPnLPct     float64 `json:"peak_pnl_pct"`
	AgeSeconds     int     `json:"age"`
}

// newPosition snapshots a signal into a live position record.
func newPosition(sig strategy.Signal, unitPrice, contracts int, orderID string, now time.Time) *Position {
	return &Position{
		Ticker:      sig.Ticker,
		Side:        sig.Side,
		EntryPrice:  unitPrice,
		Contracts:   contracts,
		TotalCost:   unitPrice * contracts,
		OrderID:     orderID,
		Strategy:    sig.Strategy,
		EntryTime:   now,
		Event:       eventOf(sig.Ticker),
		Signal:      sig,
		LastModelFV: sig.FairValue,
		LastEdge:    sig.Edge,
		Entry: EntryContext{
			Strategy:         sig.Strategy,
			Edge:             sig.Edge,
			Strength:         sig.Strength,
			ModelFV:          sig.FairValue,
			MarketPrice:      sig.Price,
			MinutesRemaining: sig.Game.MinutesRemaining,
			Period:           sig.Game.Period,
			Lead:             sig.Game.Lead,
			Score:            sig.Game.Score,
			Game:             sig.Game.Name,
		},
	}
}

func (p *Position) view(now time.Time) PositionView {
	return PositionView{
		Ticker:         p.Ticker,
		Side:           p.Side,
		EntryPrice:     p.EntryPrice,
		Contracts:      p.Contracts,
		TotalCost:      p.TotalCost,
		Strategy:       p.Strategy,
		Filled:         p.Filled,
		SignalEdge:     p.Signal.Edge,
		SignalStrength: p.Signal.Strength,
		LastModelFV:    p.LastModelFV,
		LastEdge:       p.LastEdge,
		PeakPnLPct:     p.PeakPnLPct,
		AgeSeconds:     int(now.Sub(p.EntryTime).Seconds()),
	}
}

// eventOf strips the team leg from a market ticker, leaving the event:
// KXNCAAMBGAME-26FEB27MICHILL-MICH -> KXNCAAMBGAME-26FEB27MICHILL.
func eventOf(ticker string) string {
	if i := strings.LastIndex(ticker, "-"); i > 0 {
		return ticker[:i]
	}
	return ticker
}

// tail returns the last n elements of s, sharing the backing array.
func tail[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
