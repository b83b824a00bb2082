package strategy

import "time"

// Side values for emitted signals and venue orders.
const (
	SideYes = "yes"
	SideNo  = "no"
)

// GameContext is the game snapshot frozen into a signal for logging and
// later grading. Score reads away-home like a broadcast ticker.
type GameContext struct {
	Name             string  `json:"name"`
	Score            string  `json:"score"`
	Lead             int     `json:"lead"`
	MinutesRemaining float64 `json:"minutes_remaining"`
	Period           int     `json:"period"`
}

// Signal is one trade recommendation from a detector. Immutable once
// emitted; a later contradicting signal supersedes it downstream by
// freshness, never by mutation.
type Signal struct {
	Timestamp time.Time   `json:"ts"`
	Strategy  string      `json:"strategy"`
	Ticker    string      `json:"ticker"`
	Side      string      `json:"side"`
	Strength  int         `json:"strength"`     // 0-10 confidence
	Edge      int         `json:"edge"`         // absolute cents of claimed mispricing
	FairValue int         `json:"model_fv"`     // model fair value at emission
	Price     int         `json:"market_price"` // yes price the detector saw
	Reason    string      `json:"reason"`
	Game      GameContext `json:"game_context"`
}
