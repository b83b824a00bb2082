package learner

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/courtsidehq/courtside/pkg/store"
)

// SessionReport is the full output of one calibration pass, written as
// JSON under the data dir's reports directory.
type SessionReport struct {
	Date            string                   `json:"date"`
	GeneratedAt     time.Time                `json:"generated_at"`
	Data            DataSummary              `json:"data_summary"`
	Grades          []SignalGrade            `json:"signal_grades"`
	Strategies      map[string]StrategyScore `json:"strategy_scores"`
	Calibration     Calibration              `json:"model_calibration"`
	Paper           PaperSummary             `json:"paper_trades"`
	Insights        MarketInsights           `json:"market_insights"`
	Recommendations []Recommendation         `json:"parameter_recommendations"`
}

// DataSummary counts what the session recorded.
type DataSummary struct {
	Signals        int `json:"signals"`
	QuoteSnapshots int `json:"quote_snapshots"`
	GameSnapshots  int `json:"game_snapshots"`
	Tickers        int `json:"unique_tickers"`
	Games          int `json:"games_tracked"`
}

// Recommendation is one advisory parameter note. Nothing acts on these
// automatically; they surface in the report and the CLI for an operator.
type Recommendation struct {
	Key         string  `json:"key"`
	Current     float64 `json:"current,omitempty"`
	Recommended float64 `json:"recommended,omitempty"`
	Reason      string  `json:"reason"`
}

// recommend derives advisory parameter notes from a finished report.
func (a *Analyzer) recommend(rep *SessionReport) []Recommendation {
	var recs []Recommendation

	cal := rep.Calibration
	if cal.SigmaEstimate > 0 && math.Abs(cal.SigmaEstimate-a.cfg.ModelSigma) > 1 {
		recs = append(recs, Recommendation{
			Key:         "sigma",
			Current:     a.cfg.ModelSigma,
			Recommended: cal.SigmaEstimate,
			Reason: fmt.Sprintf("observed score volatility %.1f vs configured sigma %.1f",
				cal.SigmaEstimate, a.cfg.ModelSigma),
		})
	}

	paper := rep.Paper
	if paper.Trades >= 5 {
		switch {
		case paper.WinRate > 65:
			recs = append(recs, Recommendation{
				Key:         "edge_floor",
				Current:     float64(a.cfg.EdgeFloor),
				Recommended: float64(a.cfg.EdgeFloor - 1),
				Reason:      fmt.Sprintf("paper win rate %.1f%% supports a lower entry edge floor", paper.WinRate),
			})
		case paper.WinRate < 40:
			recs = append(recs, Recommendation{
				Key:         "edge_floor",
				Current:     float64(a.cfg.EdgeFloor),
				Recommended: float64(a.cfg.EdgeFloor + 2),
				Reason:      fmt.Sprintf("paper win rate %.1f%% argues for a stricter entry edge floor", paper.WinRate),
			})
		}
	}

	names := make([]string, 0, len(rep.Strategies))
	for strat := range rep.Strategies {
		names = append(names, strat)
	}
	sort.Strings(names)
	for _, strat := range names {
		sc := rep.Strategies[strat]
		if sc.Graded < 3 {
			continue
		}
		switch sc.Grade {
		case "D", "F":
			recs = append(recs, Recommendation{
				Key: "disable_" + strat,
				Reason: fmt.Sprintf("%s graded %s (sharpe %.2f, win rate %.1f%%), consider disabling",
					strat, sc.Grade, sc.Sharpe, sc.WinRate),
			})
		case "A":
			recs = append(recs, Recommendation{
				Key: "increase_" + strat,
				Reason: fmt.Sprintf("%s graded %s (sharpe %.2f, win rate %.1f%%), room for more size",
					strat, sc.Grade, sc.Sharpe, sc.WinRate),
			})
		}
	}

	if cal.BiasSamples > 0 && math.Abs(cal.Bias) > 3 {
		recs = append(recs, Recommendation{
			Key:     "model_bias",
			Current: cal.Bias,
			Reason:  fmt.Sprintf("model runs %+.1fc against final prices, drift or sigma is off", cal.Bias),
		})
	}
	return recs
}

// WriteReport writes the session report JSON and returns its path.
func WriteReport(dir string, rep *SessionReport) (string, error) {
	path := store.ReportPath(dir, rep.Date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("learner: mkdir for %q: %w", path, err)
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("learner: marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("learner: write %q: %w", path, err)
	}
	return path, nil
}

// ReadReport loads a previously written session report.
func ReadReport(dir, date string) (*SessionReport, error) {
	path := store.ReportPath(dir, date)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("learner: read %q: %w", path, err)
	}
	var rep SessionReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("learner: parse %q: %w", path, err)
	}
	return &rep, nil
}
