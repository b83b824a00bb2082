package learner

import (
	"math"
	"strconv"
	"time"

	"github.com/courtsidehq/courtside/pkg/store"
	"github.com/courtsidehq/courtside/pkg/trader/strategy"
)

// Signal grades. A signal wins when the price moved its way over the
// grading horizon; incomplete means the archive ran out before the
// horizon, no_data that the ticker was never archived.
const (
	GradeStrongWin  = "strong_win"
	GradeWin        = "win"
	GradeFlat       = "flat"
	GradeLoss       = "loss"
	GradeStrongLoss = "strong_loss"
	GradeIncomplete = "incomplete"
	GradeNoData     = "no_data"
)

// SignalGrade is one graded signal: the entry price the market offered
// and the side-adjusted price moves at each horizon, in cents.
type SignalGrade struct {
	Timestamp  time.Time      `json:"ts"`
	Strategy   string         `json:"strategy"`
	Ticker     string         `json:"ticker"`
	Side       string         `json:"side"`
	Edge       int            `json:"edge"`
	Strength   int            `json:"strength"`
	EntryPrice int            `json:"entry_price,omitempty"`
	Marks      map[string]int `json:"marks,omitempty"`
	Grade      string         `json:"grade"`
}

// gradeSignals marks every logged signal against the quote archive.
func (a *Analyzer) gradeSignals(data *sessionData) []SignalGrade {
	grades := make([]SignalGrade, 0, len(data.signals))
	for _, sig := range data.signals {
		g := SignalGrade{
			Timestamp: sig.Timestamp,
			Strategy:  sig.Strategy,
			Ticker:    sig.Ticker,
			Side:      sig.Side,
			Edge:      sig.Edge,
			Strength:  sig.Strength,
		}

		history := data.history[sig.Ticker]
		if len(history) == 0 {
			g.Grade = GradeNoData
			grades = append(grades, g)
			continue
		}
		entry := priceAt(history, sig.Timestamp)
		if entry == 0 {
			g.Grade = GradeNoData
			grades = append(grades, g)
			continue
		}
		g.EntryPrice = entry

		g.Marks = make(map[string]int, len(a.cfg.Horizons))
		for _, h := range a.cfg.Horizons {
			future, ok := priceAfter(history, sig.Timestamp.Add(time.Duration(h)*time.Minute))
			if !ok {
				continue
			}
			move := future - entry
			if sig.Side == strategy.SideNo {
				move = -move
			}
			g.Marks[horizonKey(h)] = move
		}

		mark, ok := g.Marks[horizonKey(a.cfg.GradeHorizon)]
		switch {
		case !ok:
			g.Grade = GradeIncomplete
		case mark > 2:
			g.Grade = GradeStrongWin
		case mark > 0:
			g.Grade = GradeWin
		case mark == 0:
			g.Grade = GradeFlat
		case mark > -2:
			g.Grade = GradeLoss
		default:
			g.Grade = GradeStrongLoss
		}
		grades = append(grades, g)
	}
	return grades
}

// StrategyScore aggregates one detector's graded signals for a session.
type StrategyScore struct {
	Signals  int     `json:"total_signals"`
	Graded   int     `json:"graded"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	WinRate  float64 `json:"win_rate"`
	TotalPnL int     `json:"total_pnl"` // cents over the grading horizon
	AvgPnL   float64 `json:"avg_pnl"`
	AvgEdge  float64 `json:"avg_edge_claimed"`
	Sharpe   float64 `json:"sharpe"`
	Grade    string  `json:"grade"`
}

// scoreStrategies rolls grades up per detector. Wins and losses count
// only graded signals; the claimed-edge average covers every emission.
func scoreStrategies(grades []SignalGrade, gradeKey string) map[string]StrategyScore {
	byStrat := make(map[string][]SignalGrade)
	for _, g := range grades {
		byStrat[g.Strategy] = append(byStrat[g.Strategy], g)
	}

	scores := make(map[string]StrategyScore, len(byStrat))
	for strat, gs := range byStrat {
		var sc StrategyScore
		sc.Signals = len(gs)

		var edgeSum int
		var pnls []float64
		for _, g := range gs {
			edgeSum += g.Edge
			mark, ok := g.Marks[gradeKey]
			if !ok {
				continue
			}
			sc.Graded++
			sc.TotalPnL += mark
			pnls = append(pnls, float64(mark))
			if mark > 0 {
				sc.Wins++
			} else if mark < 0 {
				sc.Losses++
			}
		}

		sc.WinRate = round1(pct(sc.Wins, sc.Wins+sc.Losses))
		sc.AvgPnL = round1(float64(sc.TotalPnL) / float64(max(1, sc.Graded)))
		sc.AvgEdge = round1(float64(edgeSum) / float64(max(1, sc.Signals)))
		s := sharpe(pnls)
		sc.Sharpe = round2(s)
		sc.Grade = letterGrade(s)
		scores[strat] = sc
	}
	return scores
}

// letterGrade maps a sharpe ratio to the report letter.
func letterGrade(sharpe float64) string {
	switch {
	case sharpe > 1:
		return "A"
	case sharpe > 0.5:
		return "B"
	case sharpe > 0:
		return "C"
	case sharpe > -0.5:
		return "D"
	default:
		return "F"
	}
}

// sharpe is mean over sample standard deviation, zero below two samples.
// A degenerate zero-variance series divides by one.
func sharpe(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	variance := ss / float64(len(xs)-1)
	std := 1.0
	if variance > 0 {
		std = math.Sqrt(variance)
	}
	return mean / std
}

// priceAt resolves the price in force at ts: the first archived quote at
// or after it, else the session's final quote. Callers check for zero.
func priceAt(history []store.QuoteRecord, ts time.Time) int {
	if p, ok := priceAfter(history, ts); ok {
		return p
	}
	return quotePrice(history[len(history)-1])
}

// priceAfter resolves the first archived quote at or after ts, reporting
// whether the archive reaches that far.
func priceAfter(history []store.QuoteRecord, ts time.Time) (int, bool) {
	for _, rec := range history {
		if !rec.Timestamp.Before(ts) {
			return quotePrice(rec), true
		}
	}
	return 0, false
}

// quotePrice is the last trade, falling back to the bid.
func quotePrice(rec store.QuoteRecord) int {
	if rec.Last > 0 {
		return rec.Last
	}
	return rec.YesBid
}

func horizonKey(minutes int) string {
	return strconv.Itoa(minutes) + "m"
}

func pct(n, d int) float64 {
	return float64(n) / float64(max(1, d)) * 100
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
