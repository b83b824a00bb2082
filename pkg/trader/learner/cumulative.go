package learner

import (
	"errors"
	"os"
	"time"

	"github.com/courtsidehq/courtside/pkg/store"
)

// Cumulative is the cross-session learnings record. One session report
// merges in exactly once per date, so re-running an analysis never
// double-counts.
type Cumulative struct {
	SessionsAnalyzed  int                          `json:"sessions_analyzed"`
	TotalSignals      int                          `json:"total_signals"`
	Strategies        map[string]*LifetimeStrategy `json:"strategy_performance"`
	Paper             LifetimePaper                `json:"paper_portfolio"`
	ParameterHistory  []ParameterEntry             `json:"parameter_history"`
	SigmaObservations []SigmaObservation           `json:"sigma_observations"`
	Dates             []string                     `json:"dates_analyzed"`
	LastUpdated       time.Time                    `json:"last_updated"`
}

// LifetimeStrategy is a detector's record across every analyzed session.
type LifetimeStrategy struct {
	Signals int     `json:"total_signals"`
	Graded  int     `json:"total_graded"`
	Wins    int     `json:"total_wins"`
	Losses  int     `json:"total_losses"`
	PnL     int     `json:"cumulative_pnl"`
	WinRate float64 `json:"cumulative_win_rate"`
}

// LifetimePaper is the paper portfolio's running totals.
type LifetimePaper struct {
	NetPnL     int `json:"total_pnl_cents"`
	Trades     int `json:"trades"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
	BestTrade  int `json:"best_trade"`
	WorstTrade int `json:"worst_trade"`
}

// ParameterEntry records the advisory recommendations one session made.
type ParameterEntry struct {
	Date            string           `json:"date"`
	Recommendations []Recommendation `json:"recommendations"`
}

// SigmaObservation is one session's realized volatility estimate.
type SigmaObservation struct {
	Date  string  `json:"date"`
	Sigma float64 `json:"sigma"`
}

// LoadCumulative reads the record from kv; a missing file starts fresh.
func LoadCumulative(kv *store.KV) (*Cumulative, error) {
	var c Cumulative
	err := kv.Load(&c)
	if errors.Is(err, os.ErrNotExist) {
		return &Cumulative{Strategies: make(map[string]*LifetimeStrategy)}, nil
	}
	if err != nil {
		return nil, err
	}
	if c.Strategies == nil {
		c.Strategies = make(map[string]*LifetimeStrategy)
	}
	return &c, nil
}

// SaveCumulative stamps and persists the record.
func SaveCumulative(kv *store.KV, c *Cumulative) error {
	c.LastUpdated = time.Now().UTC()
	return kv.Save(c)
}

// Merge folds a session report in. Returns false, untouched, when the
// report's date was already merged.
func (c *Cumulative) Merge(rep *SessionReport) bool {
	for _, d := range c.Dates {
		if d == rep.Date {
			return false
		}
	}

	c.SessionsAnalyzed++
	c.TotalSignals += rep.Data.Signals

	for strat, sc := range rep.Strategies {
		ls := c.Strategies[strat]
		if ls == nil {
			ls = &LifetimeStrategy{}
			c.Strategies[strat] = ls
		}
		ls.Signals += sc.Signals
		ls.Graded += sc.Graded
		ls.Wins += sc.Wins
		ls.Losses += sc.Losses
		ls.PnL += sc.TotalPnL
		ls.WinRate = round1(pct(ls.Wins, ls.Wins+ls.Losses))
	}

	p := rep.Paper
	c.Paper.NetPnL += p.NetPnL
	c.Paper.Trades += p.Trades
	c.Paper.Wins += p.Wins
	c.Paper.Losses += p.Losses
	if p.BestTrade > c.Paper.BestTrade {
		c.Paper.BestTrade = p.BestTrade
	}
	if p.WorstTrade < c.Paper.WorstTrade {
		c.Paper.WorstTrade = p.WorstTrade
	}

	if len(rep.Recommendations) > 0 {
		c.ParameterHistory = append(c.ParameterHistory, ParameterEntry{
			Date:            rep.Date,
			Recommendations: rep.Recommendations,
		})
	}
	if rep.Calibration.SigmaEstimate > 0 {
		c.SigmaObservations = append(c.SigmaObservations, SigmaObservation{
			Date:  rep.Date,
			Sigma: rep.Calibration.SigmaEstimate,
		})
	}

	c.Dates = append(c.Dates, rep.Date)
	return true
}
