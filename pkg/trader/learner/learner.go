// Package learner is the between-session calibration pass. It replays a
// session's signal log against the archived quote history to grade every
// signal by forward price movement, scores each detector, runs a paper
// portfolio over the signals the live book never took, estimates realized
// score volatility from the game log, and folds the results into a
// cumulative record that survives across sessions.
//
// Everything here is advisory except through the session report: exit
// thresholds adapt only via the executor's own tuner.
package learner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtsidehq/courtside/pkg/kalshi"
	"github.com/courtsidehq/courtside/pkg/store"
	"github.com/courtsidehq/courtside/pkg/trader/strategy"
)

// ErrNoData marks a session with nothing to analyze: no signals were
// logged and no quotes were archived for the date.
var ErrNoData = errors.New("learner: no session data")

// sessionSpan is how far past a session date's midnight the quote window
// reaches. Games tip as late as 11pm and run past it; the next session
// cannot open before the window closes.
const sessionSpan = 30 * time.Hour

// Config holds the calibration pass parameters.
type Config struct {
	HoldMinutes     int     // paper trade holding period
	MinStrength     int     // paper trades only take signals at or above this
	FeeRate         float64 // venue fee rate for paper fills
	Horizons        []int   // grading horizons, minutes after the signal
	GradeHorizon    int     // the horizon the letter grade keys on
	MinSigmaSamples int     // lead-change samples needed for a sigma estimate
	GameLengthMin   float64 // regulation minutes, the volatility horizon
	ModelSigma      float64 // currently configured sigma, for recommendations
	EdgeFloor       int     // currently configured entry edge floor
	Timezone        *time.Location
}

// DefaultConfig returns the standard grading parameters.
func DefaultConfig() *Config {
	return &Config{
		HoldMinutes:     3,
		MinStrength:     5,
		FeeRate:         kalshi.DefaultFeeRate,
		Horizons:        []int{1, 2, 5, 10},
		GradeHorizon:    5,
		MinSigmaSamples: 10,
		GameLengthMin:   40,
		ModelSigma:      11,
		EdgeFloor:       6,
		Timezone:        time.UTC,
	}
}

// QuoteArchive is the slice of the quote store the grader replays.
// Satisfied by *store.QuoteDB.
type QuoteArchive interface {
	Tickers(ctx context.Context, from, to time.Time) ([]string, error)
	Range(ctx context.Context, ticker string, from, to time.Time) ([]store.QuoteRecord, error)
}

// GameSnapshot is one scoreboard observation appended to the game log
// during a session. The calibration pass replays the per-game sequences
// to estimate realized score volatility.
type GameSnapshot struct {
	Timestamp        time.Time `json:"ts"`
	GameID           string    `json:"game_id"`
	Name             string    `json:"name"`
	State            string    `json:"state"`
	AwayScore        int       `json:"away_score"`
	HomeScore        int       `json:"home_score"`
	Lead             int       `json:"lead"`
	Period           int       `json:"period"`
	Clock            string    `json:"clock"`
	MinutesRemaining float64   `json:"minutes_remaining"`
}

// Analyzer grades one session's data.
type Analyzer struct {
	cfg    *Config
	quotes QuoteArchive
}

// NewAnalyzer returns an analyzer reading quote history from quotes.
func NewAnalyzer(cfg *Config, quotes QuoteArchive) *Analyzer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	return &Analyzer{cfg: cfg, quotes: quotes}
}

// sessionData is everything recorded for one session date.
type sessionData struct {
	signals []strategy.Signal
	games   map[string][]GameSnapshot      // game id -> time-ordered snapshots
	history map[string][]store.QuoteRecord // ticker -> time-ordered quotes
}

// Run analyzes the session logged under dir for date (YYYY-MM-DD) and
// returns the report. ErrNoData when the date has neither signals nor
// archived quotes.
func (a *Analyzer) Run(ctx context.Context, dir, date string) (*SessionReport, error) {
	data, err := a.loadSession(ctx, dir, date)
	if err != nil {
		return nil, err
	}
	if len(data.signals) == 0 && len(data.history) == 0 {
		return nil, ErrNoData
	}

	rep := &SessionReport{
		Date:        date,
		GeneratedAt: time.Now().UTC(),
	}
	rep.Data = summarize(data)
	rep.Grades = a.gradeSignals(data)
	rep.Strategies = scoreStrategies(rep.Grades, horizonKey(a.cfg.GradeHorizon))
	rep.Calibration = a.calibrate(data)
	rep.Paper = a.paperTrade(data)
	rep.Insights = marketInsights(data)
	rep.Recommendations = a.recommend(rep)
	return rep, nil
}

func (a *Analyzer) loadSession(ctx context.Context, dir, date string) (*sessionData, error) {
	dayStart, err := time.ParseInLocation("2006-01-02", date, a.cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("learner: bad session date %q: %w", date, err)
	}
	from, to := dayStart, dayStart.Add(sessionSpan)

	data := &sessionData{
		games:   make(map[string][]GameSnapshot),
		history: make(map[string][]store.QuoteRecord),
	}

	skipped, err := store.ReadJSONL(store.SignalLogPath(dir, date), func(line []byte) error {
		var sig strategy.Signal
		if err := json.Unmarshal(line, &sig); err != nil {
			return err
		}
		data.signals = append(data.signals, sig)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("learner: read signal log: %w", err)
	}
	if skipped > 0 {
		log.Warn().Int("lines", skipped).Str("date", date).Msg("skipped malformed signal records")
	}

	skipped, err = store.ReadJSONL(store.GameLogPath(dir, date), func(line []byte) error {
		var snap GameSnapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			return err
		}
		key := snap.GameID
		if key == "" {
			key = snap.Name
		}
		data.games[key] = append(data.games[key], snap)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("learner: read game log: %w", err)
	}
	if skipped > 0 {
		log.Warn().Int("lines", skipped).Str("date", date).Msg("skipped malformed game records")
	}

	tickers, err := a.quotes.Tickers(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("learner: list archived tickers: %w", err)
	}
	for _, ticker := range tickers {
		recs, err := a.quotes.Range(ctx, ticker, from, to)
		if err != nil {
			return nil, fmt.Errorf("learner: quote history for %s: %w", ticker, err)
		}
		if len(recs) > 0 {
			data.history[ticker] = recs
		}
	}
	return data, nil
}

func summarize(data *sessionData) DataSummary {
	var quotes, snaps int
	for _, h := range data.history {
		quotes += len(h)
	}
	for _, g := range data.games {
		snaps += len(g)
	}
	return DataSummary{
		Signals:        len(data.signals),
		QuoteSnapshots: quotes,
		GameSnapshots:  snaps,
		Tickers:        len(data.history),
		Games:          len(data.games),
	}
}

// RunSession runs the full calibration pass for a date: analyze, write
// the session report, fold it into the cumulative learnings. The report
// is returned even when a later persistence step fails.
func RunSession(ctx context.Context, cfg *Config, quotes QuoteArchive, dir, date string) (*SessionReport, error) {
	rep, err := NewAnalyzer(cfg, quotes).Run(ctx, dir, date)
	if err != nil {
		return nil, err
	}

	path, err := WriteReport(dir, rep)
	if err != nil {
		return rep, err
	}

	kv := store.NewKV(store.CumulativePath(dir))
	cum, err := LoadCumulative(kv)
	if err != nil {
		return rep, err
	}
	if cum.Merge(rep) {
		if err := SaveCumulative(kv, cum); err != nil {
			return rep, err
		}
	}

	log.Info().
		Str("date", date).
		Int("signals", rep.Data.Signals).
		Int("quotes", rep.Data.QuoteSnapshots).
		Int("games", rep.Data.Games).
		Int("paper_trades", rep.Paper.Trades).
		Int("paper_net_cents", rep.Paper.NetPnL).
		Str("report", path).
		Msg("session analysis complete")
	for strat, score := range rep.Strategies {
		log.Info().
			Str("strategy", strat).
			Str("grade", score.Grade).
			Int("signals", score.Signals).
			Float64("win_rate", score.WinRate).
			Float64("sharpe", score.Sharpe).
			Int("pnl_cents", score.TotalPnL).
			Msg("strategy score")
	}
	for _, rec := range rep.Recommendations {
		log.Info().Str("key", rec.Key).Str("reason", rec.Reason).Msg("parameter recommendation")
	}
	return rep, nil
}
