// Package hoops prices live college basketball games as binary contracts.
//
// The model treats the remaining point differential as Brownian motion over
// the remaining game time: P(win) = Phi((lead + drift) / (sigma * sqrt(t))),
// where t is the fraction of the game remaining and drift is the pregame
// expected margin scaled down to the time left. Sigma is a league-wide
// constant for the final-margin standard deviation.
package hoops

import (
	"math"
	"time"
)

// Config holds the model parameters. All values are tunable; the defaults
// come from published ratings research for Division I men's basketball.
type Config struct {
	GameLengthMin float64 // regulation game length in minutes
	Sigma         float64 // final-margin standard deviation in points
	TotalSigma    float64 // final-total standard deviation in points
	ReversionBeta float64 // lead regression coefficient

	// Large pregame spreads are empirically less reliable in-game, so the
	// drift term is dampened: full weight up to DampenFullSpread, linear
	// decay to DampenFloor by DampenLimitSpread, floored beyond that.
	DampenFullSpread  float64
	DampenLimitSpread float64
	DampenFloor       float64
}

// DefaultConfig returns the standard model parameters.
func DefaultConfig() *Config {
	return &Config{
		GameLengthMin:     40,
		Sigma:             11.0,
		TotalSigma:        16.0,
		ReversionBeta:     0.75,
		DampenFullSpread:  4,
		DampenLimitSpread: 8,
		DampenFloor:       0.5,
	}
}

// Model converts game state into contract fair values.
type Model struct {
	cfg *Config
}

// New creates a model. A nil config uses DefaultConfig.
func New(cfg *Config) *Model {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Model{cfg: cfg}
}

// Value is the model's opinion of one contract at one moment.
type Value struct {
	WinProb       float64 `json:"win_prob"`
	FairValue     int     `json:"fair_value"`      // cents, 1-99
	DeltaPerPoint int     `json:"delta_per_point"` // cents of fair value per point of lead
}

// WinProbability returns P(side with the given lead wins).
//
// lead is the current point differential from the contract side's
// perspective, pregameSpread the expected final margin from the same
// perspective. At zero time remaining the game is decided by lead sign.
func (m *Model) WinProbability(lead float64, minutesRemaining float64, pregameSpread float64) float64 {
	if minutesRemaining <= 0 {
		return boundaryProb(lead)
	}

	tFrac := minutesRemaining / m.cfg.GameLengthMin
	drift := pregameSpread * tFrac * m.dampen(pregameSpread)
	effectiveLead := lead + drift

	sigmaRemaining := m.cfg.Sigma * math.Sqrt(tFrac)
	if sigmaRemaining < 0.01 {
		return boundaryProb(effectiveLead)
	}

	return normCDF(effectiveLead / sigmaRemaining)
}

// FairValue returns the contract fair value in cents, clamped to [1, 99]
// so a live game never prices at certainty.
func (m *Model) FairValue(lead float64, minutesRemaining float64, pregameSpread float64) int {
	p := m.WinProbability(lead, minutesRemaining, pregameSpread)
	return clampCents(int(math.Round(p * 100)))
}

// DeltaPerPoint returns how many cents of fair value one additional point
// of lead is worth. Always non-negative; largest late in close games.
func (m *Model) DeltaPerPoint(lead float64, minutesRemaining float64, pregameSpread float64) int {
	return m.FairValue(lead+1, minutesRemaining, pregameSpread) -
		m.FairValue(lead, minutesRemaining, pregameSpread)
}

// Value bundles WinProbability, FairValue and DeltaPerPoint for one state.
func (m *Model) Value(lead float64, minutesRemaining float64, pregameSpread float64) Value {
	p := m.WinProbability(lead, minutesRemaining, pregameSpread)
	fv := clampCents(int(math.Round(p * 100)))
	return Value{
		WinProb:       p,
		FairValue:     fv,
		DeltaPerPoint: m.FairValue(lead+1, minutesRemaining, pregameSpread) - fv,
	}
}

// MeanReversion estimates the expected change in lead over the rest of the
// game from regression toward the pregame expectation. A lead beyond what
// the spread implies at this point partially reverts; the result is signed
// points (negative when the current lead should shrink). Feeds signal
// rationale only, never the probability itself.
func (m *Model) MeanReversion(lead float64, pregameSpread float64, minutesRemaining float64) float64 {
	played := m.cfg.GameLengthMin - minutesRemaining
	if played <= 0 {
		return 0
	}

	expectedNow := pregameSpread * (played / m.cfg.GameLengthMin)
	excess := lead - expectedNow

	tFrac := minutesRemaining / m.cfg.GameLengthMin
	return -excess * (1 - m.cfg.ReversionBeta) * tFrac
}

// WinByProbability returns P(final margin > line), the spread-contract
// variant: the same standardized-distance computation with the decision
// boundary shifted from zero to the line.
func (m *Model) WinByProbability(lead float64, minutesRemaining float64, pregameSpread float64, line float64) float64 {
	if minutesRemaining <= 0 {
		return boundaryProb(lead - line)
	}

	tFrac := minutesRemaining / m.cfg.GameLengthMin
	drift := pregameSpread * tFrac * m.dampen(pregameSpread)
	effectiveLead := lead + drift

	sigmaRemaining := m.cfg.Sigma * math.Sqrt(tFrac)
	if sigmaRemaining < 0.01 {
		return boundaryProb(effectiveLead - line)
	}

	return normCDF((effectiveLead - line) / sigmaRemaining)
}

// TotalProbability returns P(final combined score > line). The projected
// final total blends the observed scoring pace with the pregame total,
// weighting the observed pace by the fraction of the game played.
func (m *Model) TotalProbability(totalPoints float64, minutesRemaining float64, pregameTotal float64, line float64) float64 {
	played := m.cfg.GameLengthMin - minutesRemaining
	if minutesRemaining <= 0 {
		return boundaryProb(totalPoints - line)
	}

	pregamePace := 0.0
	if pregameTotal > 0 {
		pregamePace = pregameTotal / m.cfg.GameLengthMin
	}

	var pace float64
	switch {
	case played <= 0:
		pace = pregamePace
	case pregamePace == 0:
		pace = totalPoints / played
	default:
		w := played / m.cfg.GameLengthMin
		pace = w*(totalPoints/played) + (1-w)*pregamePace
	}

	projected := totalPoints + pace*minutesRemaining

	tFrac := minutesRemaining / m.cfg.GameLengthMin
	sigmaRemaining := m.cfg.TotalSigma * math.Sqrt(tFrac)
	if sigmaRemaining < 0.01 {
		return boundaryProb(projected - line)
	}

	return normCDF((projected - line) / sigmaRemaining)
}

func (m *Model) dampen(spread float64) float64 {
	s := math.Abs(spread)
	switch {
	case s <= m.cfg.DampenFullSpread:
		return 1.0
	case s >= m.cfg.DampenLimitSpread:
		return m.cfg.DampenFloor
	default:
		span := m.cfg.DampenLimitSpread - m.cfg.DampenFullSpread
		return 1.0 - (1.0-m.cfg.DampenFloor)*(s-m.cfg.DampenFullSpread)/span
	}
}

func boundaryProb(lead float64) float64 {
	switch {
	case lead > 0:
		return 1.0
	case lead < 0:
		return 0.0
	default:
		return 0.5
	}
}

func clampCents(v int) int {
	if v < 1 {
		return 1
	}
	if v > 99 {
		return 99
	}
	return v
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// GameState is one immutable observation of a live game. Histories are
// append-only and time-ordered; a new snapshot is created per poll.
type GameState struct {
	EventID   string    `json:"event_id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	HomeAbbr  string    `json:"home_abbr"`
	AwayAbbr  string    `json:"away_abbr"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	Period    int       `json:"period"`
	Clock     string    `json:"clock"`
	Final     bool      `json:"final"`
	StartTime time.Time `json:"start_time"`
	Timestamp time.Time `json:"timestamp"`

	// MinutesRemaining is derived from period and clock at parse time.
	MinutesRemaining float64 `json:"minutes_remaining"`

	// PregameSpread is the expected final margin, home perspective,
	// positive when home is favored. Zero when no line was available.
	PregameSpread float64 `json:"pregame_spread"`

	// PregameTotal is the expected combined score, zero if unavailable.
	PregameTotal float64 `json:"pregame_total"`
}

// Lead returns the home-perspective point differential.
func (g GameState) Lead() int {
	return g.HomeScore - g.AwayScore
}

// TotalPoints returns the combined score.
func (g GameState) TotalPoints() int {
	return g.HomeScore + g.AwayScore
}
