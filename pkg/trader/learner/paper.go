package learner

import (
	"sort"
	"time"

	"github.com/courtsidehq/courtside/pkg/kalshi"
	"github.com/courtsidehq/courtside/pkg/trader/strategy"
)

// PaperTrade is one simulated fill: enter at the first quote after the
// signal, exit after the holding period, pay venue fees both ways.
type PaperTrade struct {
	Ticker   string `json:"ticker"`
	Strategy string `json:"strategy"`
	Side     string `json:"side"`
	Entry    int    `json:"entry"`
	Exit     int    `json:"exit"`
	GrossPnL int    `json:"gross_pnl"`
	Fees     int    `json:"fees"`
	NetPnL   int    `json:"net_pnl"`
	Edge     int    `json:"edge_claimed"`
	Strength int    `json:"strength"`
}

// PaperSummary is the virtual book over every strong signal, the
// counterfactual the live book is measured against.
type PaperSummary struct {
	Trades     int                          `json:"trades"`
	Wins       int                          `json:"wins"`
	Losses     int                          `json:"losses"`
	WinRate    float64                      `json:"win_rate"`
	GrossPnL   int                          `json:"total_gross_pnl"`
	Fees       int                          `json:"total_fees"`
	NetPnL     int                          `json:"total_net_pnl"`
	AvgPnL     float64                      `json:"avg_pnl_per_trade"`
	BestTrade  int                          `json:"best_trade"`
	WorstTrade int                          `json:"worst_trade"`
	ByStrategy map[string]PaperStrategyStat `json:"by_strategy"`
	Top        []PaperTrade                 `json:"top_trades"`
	Worst      []PaperTrade                 `json:"worst_trades"`
}

// PaperStrategyStat is a detector's slice of the paper book.
type PaperStrategyStat struct {
	Trades   int     `json:"trades"`
	TotalPnL int     `json:"total_pnl"`
	AvgPnL   float64 `json:"avg_pnl"`
	WinRate  float64 `json:"win_rate"`
}

// paperTrade simulates taking every signal at or above the strength
// floor with a fixed holding period. When the archive ends inside the
// hold, the session's final quote is the exit.
func (a *Analyzer) paperTrade(data *sessionData) PaperSummary {
	hold := time.Duration(a.cfg.HoldMinutes) * time.Minute

	var trades []PaperTrade
	for _, sig := range data.signals {
		if sig.Strength < a.cfg.MinStrength {
			continue
		}
		history := data.history[sig.Ticker]
		if len(history) == 0 {
			continue
		}

		entry, ok := priceAfter(history, sig.Timestamp)
		if !ok || entry == 0 {
			continue
		}
		exit, ok := priceAfter(history, sig.Timestamp.Add(hold))
		if !ok || exit == 0 {
			exit = quotePrice(history[len(history)-1])
		}
		if exit == 0 {
			continue
		}

		gross := exit - entry
		if sig.Side == strategy.SideNo {
			gross = -gross
		}
		fees := 2 * kalshi.FeeCentsAtRate(a.cfg.FeeRate, entry)

		trades = append(trades, PaperTrade{
			Ticker:   sig.Ticker,
			Strategy: sig.Strategy,
			Side:     sig.Side,
			Entry:    entry,
			Exit:     exit,
			GrossPnL: gross,
			Fees:     fees,
			NetPnL:   gross - fees,
			Edge:     sig.Edge,
			Strength: sig.Strength,
		})
	}

	summary := PaperSummary{
		Trades:     len(trades),
		ByStrategy: make(map[string]PaperStrategyStat),
	}
	for i, t := range trades {
		summary.GrossPnL += t.GrossPnL
		summary.Fees += t.Fees
		summary.NetPnL += t.NetPnL
		if t.NetPnL > 0 {
			summary.Wins++
		} else if t.NetPnL < 0 {
			summary.Losses++
		}
		if i == 0 || t.NetPnL > summary.BestTrade {
			summary.BestTrade = t.NetPnL
		}
		if i == 0 || t.NetPnL < summary.WorstTrade {
			summary.WorstTrade = t.NetPnL
		}
	}
	summary.WinRate = round1(pct(summary.Wins, summary.Wins+summary.Losses))
	summary.AvgPnL = round1(float64(summary.NetPnL) / float64(max(1, len(trades))))

	byStrat := make(map[string][]PaperTrade)
	for _, t := range trades {
		byStrat[t.Strategy] = append(byStrat[t.Strategy], t)
	}
	for strat, ts := range byStrat {
		var stat PaperStrategyStat
		stat.Trades = len(ts)
		wins := 0
		for _, t := range ts {
			stat.TotalPnL += t.NetPnL
			if t.NetPnL > 0 {
				wins++
			}
		}
		stat.AvgPnL = round1(float64(stat.TotalPnL) / float64(max(1, stat.Trades)))
		stat.WinRate = round1(pct(wins, stat.Trades))
		summary.ByStrategy[strat] = stat
	}

	summary.Top = rankTrades(trades, 5, true)
	summary.Worst = rankTrades(trades, 5, false)
	return summary
}

// rankTrades returns the n best (or worst) trades by net P&L, original
// order preserved among ties.
func rankTrades(trades []PaperTrade, n int, best bool) []PaperTrade {
	ranked := append([]PaperTrade(nil), trades...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if best {
			return ranked[i].NetPnL > ranked[j].NetPnL
		}
		return ranked[i].NetPnL < ranked[j].NetPnL
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
