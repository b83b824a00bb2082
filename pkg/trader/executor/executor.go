// Package executor owns the position lifecycle: it admits strategy
// signals through an ordered gate chain, sizes and places orders against
// the venue, polls for fills, and evaluates a priority-ordered exit rule
// set every cycle. Exit thresholds adapt between sessions via the tuner.
//
// All mutating methods are driven from the single orchestrator loop; the
// internal lock only exists so the HTTP status surface can read safely.
package executor

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtsidehq/courtside/pkg/kalshi"
	"github.com/courtsidehq/courtside/pkg/store"
	"github.com/courtsidehq/courtside/pkg/trader/metrics"
	"github.com/courtsidehq/courtside/pkg/trader/strategy"
)

// Total-cost ceiling when the balance has never been read.
const fallbackExposureCents = 500

// Venue is the slice of the trading venue the executor drives. Satisfied
// by *kalshi.Client.
type Venue interface {
	GetBalance(ctx context.Context) (int, error)
	GetPositions(ctx context.Context) ([]kalshi.Position, error)
	CreateOrder(ctx context.Context, req kalshi.OrderRequest) (*kalshi.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetFills(ctx context.Context, limit int) ([]kalshi.Fill, error)
}

// Config bounds admission, sizing, and the position lifecycle. Every
// threshold here is an operator default, not a constant.
type Config struct {
	MinStrength         int
	MinEdge             int // cents
	MaxEdge             int // cents; beyond this the model is wrong, not the market
	MinMinutesRemaining float64
	MaxPositions        int
	MinEntryPrice       int // cents; near the extremes one tick is a huge % move
	MaxCostCents        int
	MinEdgeAfterFees    int // cents of edge that must survive the round-trip fee

	TargetBankrollPct  float64 // percent of balance per position
	TargetMinCents     int
	TargetMaxCents     int
	MaxContracts       int
	MaxExposurePct     float64 // percent of balance across all open positions
	MaxLossPerContract int     // absolute cent cap per contract

	TickerCooldown    time.Duration
	EventCooldown     time.Duration
	StopExtraCooldown time.Duration
	OrderTimeout      time.Duration
	FillCheckInterval time.Duration
	BalanceRefresh    time.Duration

	TuneEveryCloses int
	TuneMinTrades   int
	TuneWindow      int

	AllowedSeries []string
}

// DefaultConfig returns the standard live-trading limits.
func DefaultConfig() *Config {
	return &Config{
		MinStrength:         5,
		MinEdge:             6,
		MaxEdge:             18,
		MinMinutesRemaining: 8,
		MaxPositions:        5,
		MinEntryPrice:       25,
		MaxCostCents:        75,
		MinEdgeAfterFees:    2,
		TargetBankrollPct:   10,
		TargetMinCents:      30,
		TargetMaxCents:      150,
		MaxContracts:        5,
		MaxExposurePct:      60,
		MaxLossPerContract:  8,
		TickerCooldown:      2 * time.Minute,
		EventCooldown:       5 * time.Minute,
		StopExtraCooldown:   5 * time.Minute,
		OrderTimeout:        45 * time.Second,
		FillCheckInterval:   15 * time.Second,
		BalanceRefresh:      time.Minute,
		TuneEveryCloses:     5,
		TuneMinTrades:       10,
		TuneWindow:          30,
		AllowedSeries:       []string{"KXNCAAMBGAME"},
	}
}

// Executor runs the position state machine: none -> placed -> filled ->
// closed. One open position per contract, one per game event, a bounded
// number overall.
type Executor struct {
	cfg       *Config
	venue     Venue
	kv        *store.KV
	trades    *store.AppendLog
	baseExits *ExitParams
	metrics   *metrics.Metrics
	onTrade   func(TradeRecord)

	mu        sync.Mutex
	enabled   bool
	positions map[string]*Position
	exits     ExitParams
	closed    []TradeRecord

	recentTickers map[string]time.Time
	recentEvents  map[string]time.Time
	knownTickers  map[string]bool

	bankroll        int
	target          int
	balanceProbedAt time.Time
	observeOnly     bool

	totalPnL      int
	totalInvested int
	tradeCount    int

	nowFn func() time.Time
}

// Option adjusts an Executor at construction.
type Option func(*Executor)

// WithExitStore persists and reloads the tuned exit parameter set
// through kv.
func WithExitStore(kv *store.KV) Option {
	return func(e *Executor) { e.kv = kv }
}

// WithTradeLog appends every open and close record to l.
func WithTradeLog(l *store.AppendLog) Option {
	return func(e *Executor) { e.trades = l }
}

// WithBaseExits replaces the built-in baseline exit set. A tuned set
// persisted in the exit store still wins over the baseline.
func WithBaseExits(p ExitParams) Option {
	return func(e *Executor) { e.baseExits = &p }
}

// WithMetrics records order, fill and exit counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// OnTrade registers fn to receive every open and close trade record.
// The callback runs on the loop goroutine and must not block.
func (e *Executor) OnTrade(fn func(TradeRecord)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTrade = fn
}

// New builds an executor around a venue. A nil config uses defaults; the
// active exit set is loaded from the exit store when one is configured.
func New(cfg *Config, venue Venue, opts ...Option) *Executor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	e := &Executor{
		cfg:           cfg,
		venue:         venue,
		enabled:       true,
		positions:     make(map[string]*Position),
		recentTickers: make(map[string]time.Time),
		recentEvents:  make(map[string]time.Time),
		knownTickers:  make(map[string]bool),
		target:        cfg.TargetMinCents,
		nowFn:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	base := DefaultExitParams()
	if e.baseExits != nil {
		base = *e.baseExits
	}
	e.exits = LoadExitParamsFrom(e.kv, base)
	return e
}

// Bootstrap primes the executor from venue state: existing positions
// seed the duplicate filter and cooldowns so a restart never doubles
// exposure, and the first balance read sizes the capital target.
func (e *Executor) Bootstrap(ctx context.Context) {
	if e.venue == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	positions, err := e.venue.GetPositions(ctx)
	if err != nil {
		e.noteVenueErr(err)
		log.Warn().Err(err).Msg("could not load venue positions")
	} else {
		now := e.nowFn()
		held := 0
		for _, p := range positions {
			if p.Position == 0 {
				continue
			}
			e.knownTickers[p.Ticker] = true
			e.recentTickers[p.Ticker] = now
			e.recentEvents[eventOf(p.Ticker)] = now
			held++
		}
		if held > 0 {
			log.Info().Int("count", held).Msg("existing venue positions found")
		}
	}
	e.refreshBankroll(ctx)
}

// OnSignal evaluates one strategy signal for execution. Rejections are
// silent apart from a debug log naming the first gate that failed; a
// pass places a limit order one cent through the touch.
func (e *Executor) OnSignal(ctx context.Context, sig strategy.Signal) {
	if e.venue == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled || e.observeOnly {
		return
	}
	now := e.nowFn()
	if ok, reason := e.admit(sig, now); !ok {
		reject(sig, reason)
		return
	}

	unit := entryCost(sig.Side, sig.Price, e.cfg.MaxCostCents)
	if unit < e.cfg.MinEntryPrice || unit > e.cfg.MaxCostCents {
		reject(sig, "cost outside entry band")
		return
	}
	if fee := kalshi.RoundTripFeeCents(unit, 1); sig.Edge-fee < e.cfg.MinEdgeAfterFees {
		reject(sig, "edge consumed by fees")
		return
	}

	e.refreshBankroll(ctx)
	contracts := e.contractsFor(unit)
	if !e.withinExposure(unit * contracts) {
		reject(sig, "exposure cap reached")
		return
	}

	e.placeOrder(ctx, sig, unit, contracts, now)
}

// admit runs the entry gate chain in fixed order. The reason names the
// first gate that failed.
func (e *Executor) admit(sig strategy.Signal, now time.Time) (bool, string) {
	cfg := e.cfg
	if sig.Strength < cfg.MinStrength {
		return false, "below strength floor"
	}
	if sig.Edge < cfg.MinEdge {
		return false, "edge below floor"
	}
	if sig.Edge > cfg.MaxEdge {
		return false, "edge above ceiling"
	}
	if sig.Game.MinutesRemaining < cfg.MinMinutesRemaining {
		return false, "too close to game end"
	}
	if !e.seriesAllowed(sig.Ticker) {
		return false, "series not allowed"
	}
	if len(e.positions) >= cfg.MaxPositions {
		return false, "position cap reached"
	}
	if _, open := e.positions[sig.Ticker]; open || e.knownTickers[sig.Ticker] {
		return false, "already holding"
	}
	event := eventOf(sig.Ticker)
	for _, p := range e.positions {
		if p.Event == event {
			return false, "event already exposed"
		}
	}
	if t, ok := e.recentTickers[sig.Ticker]; ok && now.Sub(t) < cfg.TickerCooldown {
		return false, "ticker cooling down"
	}
	if t, ok := e.recentEvents[event]; ok && now.Sub(t) < cfg.EventCooldown {
		return false, "event cooling down"
	}
	if sig.Price < cfg.MinEntryPrice || sig.Price > 100-cfg.MinEntryPrice {
		return false, "price outside entry band"
	}
	return true, ""
}

func (e *Executor) seriesAllowed(ticker string) bool {
	series := ticker
	if i := strings.IndexByte(ticker, '-'); i > 0 {
		series = ticker[:i]
	}
	for _, allowed := range e.cfg.AllowedSeries {
		if series == allowed {
			return true
		}
	}
	return false
}

func (e *Executor) placeOrder(ctx context.Context, sig strategy.Signal, unitPrice, contracts int, now time.Time) {
	req := kalshi.OrderRequest{
		Ticker: sig.Ticker,
		Side:   sig.Side,
		Action: "buy",
		Count:  contracts,
	}
	if sig.Side == strategy.SideYes {
		req.YesPrice = unitPrice
	} else {
		req.NoPrice = unitPrice
	}

	placed := e.nowFn()
	order, err := e.venue.CreateOrder(ctx, req)
	if err != nil {
		e.noteVenueErr(err)
		if e.metrics != nil {
			e.metrics.RecordOrder(sig.Side, "rejected")
		}
		log.Error().Err(err).Str("ticker", sig.Ticker).Msg("order placement failed")
		return
	}
	if e.metrics != nil {
		e.metrics.RecordOrder(sig.Side, "placed")
		e.metrics.ObserveOrderLatency(e.nowFn().Sub(placed).Seconds())
	}

	pos := newPosition(sig, unitPrice, contracts, order.OrderID, now)
	e.positions[sig.Ticker] = pos

	log.Info().
		Str("ticker", sig.Ticker).
		Str("side", sig.Side).
		Int("price", unitPrice).
		Int("contracts", contracts).
		Str("strategy", sig.Strategy).
		Int("edge", sig.Edge).
		Msg("position opened")

	rec := TradeRecord{
		Action:     "open",
		Ticker:     pos.Ticker,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		Contracts:  pos.Contracts,
		TotalCost:  pos.TotalCost,
		OrderID:    pos.OrderID,
		Strategy:   pos.Strategy,
		Bankroll:   e.bankroll,
		Target:     e.target,
		Entry:      pos.Entry,
	}
	e.appendTrade(rec)
}

// UpdateModelValue refreshes the live model reading for a filled open
// position and extends its trajectories. marketPrice is the yes price.
func (e *Executor) UpdateModelValue(ticker string, modelFV, marketPrice int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.positions[ticker]
	if pos == nil || !pos.Filled {
		return
	}
	pos.LastModelFV = modelFV
	pos.EdgeUpdates++

	var current int
	if pos.Side == strategy.SideYes {
		pos.LastEdge = modelFV - marketPrice
		current = marketPrice
	} else {
		pos.LastEdge = marketPrice - modelFV
		current = 100 - marketPrice
	}

	now := e.nowFn()
	pos.edgeTraj = append(pos.edgeTraj, EdgePoint{TS: now, Edge: pos.LastEdge, ModelFV: modelFV, Price: marketPrice})
	pnlPct := float64(current-pos.EntryPrice) / float64(pos.EntryPrice) * 100
	pos.pnlTraj = append(pos.pnlTraj, PnLPoint{TS: now, PnLPct: round1(pnlPct)})
}

// CheckPositions runs one lifecycle pass: detect fills, cancel stale
// orders, and evaluate exits in strict priority order. prices maps
// ticker to the current yes price in cents; positions without a price
// mark flat and stay eligible for model and time exits only.
func (e *Executor) CheckPositions(ctx context.Context, prices map[string]int) {
	if e.venue == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.refreshBankroll(ctx)
	if len(e.positions) == 0 {
		return
	}
	now := e.nowFn()
	e.detectFills(ctx, now)

	var done []string
	for ticker, pos := range e.positions {
		age := now.Sub(pos.EntryTime)

		if !pos.Filled {
			if age > e.cfg.OrderTimeout {
				log.Info().Str("ticker", ticker).Dur("age", age).Msg("cancelling unfilled order")
				if err := e.venue.CancelOrder(ctx, pos.OrderID); err != nil {
					e.noteVenueErr(err)
					log.Warn().Err(err).Str("ticker", ticker).Msg("cancel failed")
				}
				if e.metrics != nil {
					e.metrics.RecordOrder(pos.Side, "canceled")
				}
				done = append(done, ticker)
			}
			continue
		}

		current := pos.EntryPrice
		if yes, ok := prices[ticker]; ok {
			current = yes
			if pos.Side == strategy.SideNo {
				current = 100 - yes
			}
		}
		pnlPer := current - pos.EntryPrice
		pnlPct := float64(pnlPer) / float64(pos.EntryPrice) * 100

		if pnlPct > pos.PeakPnLPct {
			pos.PeakPnLPct = pnlPct
		}

		ex := e.exits
		var reason string
		switch {
		case pos.EdgeUpdates >= 2 && float64(pos.LastEdge) <= ex.EdgeExit:
			reason = ExitModel
		case pnlPct >= ex.TakeProfitPct:
			reason = ExitTakeProfit
		case pos.PeakPnLPct >= ex.TrailingActivatePct && pnlPct <= pos.PeakPnLPct-ex.TrailingStopPct:
			reason = ExitTrailing
		case pnlPct <= -ex.StopLossPct || pnlPer <= -e.cfg.MaxLossPerContract:
			reason = ExitStopLoss
		case age > ex.TimeExit():
			reason = ExitTime
		}
		if reason != "" {
			e.exitPosition(ctx, pos, current, reason, pnlPer*pos.Contracts, pnlPct, now)
			done = append(done, ticker)
		}
	}

	for _, t := range done {
		e.release(t, now)
	}
}

// detectFills polls the venue's fills feed at a bounded interval and
// marks matching orders filled. The fill price is the order price; there
// is no partial-fill modeling.
func (e *Executor) detectFills(ctx context.Context, now time.Time) {
	var unfilled []*Position
	due := false
	for _, pos := range e.positions {
		if pos.Filled {
			continue
		}
		unfilled = append(unfilled, pos)
		if now.Sub(pos.lastFillCheck) >= e.cfg.FillCheckInterval {
			due = true
		}
	}
	if len(unfilled) == 0 || !due {
		return
	}

	fills, err := e.venue.GetFills(ctx, 20)
	if err != nil {
		e.noteVenueErr(err)
		log.Debug().Err(err).Msg("fills query failed")
		return
	}
	filled := make(map[string]bool, len(fills))
	for _, f := range fills {
		filled[f.Ticker] = true
	}
	for _, pos := range unfilled {
		pos.lastFillCheck = now
		if filled[pos.Ticker] {
			pos.Filled = true
			if e.metrics != nil {
				e.metrics.RecordOrder(pos.Side, "filled")
				e.metrics.RecordFill(pos.Side)
			}
			log.Info().
				Str("ticker", pos.Ticker).
				Str("side", pos.Side).
				Int("contracts", pos.Contracts).
				Int("price", pos.EntryPrice).
				Msg("order filled")
		}
	}
}

// exitPosition submits the closing order and records the trade. A close
// failure is logged but the position is still removed; the venue is
// authoritative from here and reconciliation happens out of band.
func (e *Executor) exitPosition(ctx context.Context, pos *Position, exitPrice int, reason string, pnlTotal int, pnlPct float64, now time.Time) {
	req := kalshi.OrderRequest{
		Ticker: pos.Ticker,
		Side:   pos.Side,
		Action: "sell",
		Count:  pos.Contracts,
	}
	if pos.Side == strategy.SideYes {
		req.YesPrice = 1
	} else {
		req.NoPrice = 1
	}
	if _, err := e.venue.CreateOrder(ctx, req); err != nil {
		e.noteVenueErr(err)
		log.Error().Err(err).Str("ticker", pos.Ticker).Msg("close order failed")
	}

	pos.ExitPrice = exitPrice
	pos.ExitReason = reason
	pos.PnLCents = pnlTotal
	pos.PnLPct = round1(pnlPct)

	if e.metrics != nil {
		e.metrics.RecordExit(reason)
	}
	e.totalPnL += pnlTotal
	e.totalInvested += pos.TotalCost
	e.tradeCount++

	hold := int(now.Sub(pos.EntryTime).Seconds())
	log.Info().
		Str("ticker", pos.Ticker).
		Str("reason", reason).
		Int("hold_s", hold).
		Int("pnl_cents", pnlTotal).
		Float64("pnl_pct", round1(pnlPct)).
		Int("session_pnl", e.totalPnL).
		Msg("position closed")

	rec := TradeRecord{
		Action:         "close",
		Ticker:         pos.Ticker,
		Side:           pos.Side,
		EntryPrice:     pos.EntryPrice,
		ExitPrice:      exitPrice,
		Contracts:      pos.Contracts,
		TotalCost:      pos.TotalCost,
		PnLCents:       pnlTotal,
		PnLPct:         round1(pnlPct),
		ExitReason:     reason,
		HoldSeconds:    hold,
		PeakPnLPct:     round1(pos.PeakPnLPct),
		Strategy:       pos.Strategy,
		Bankroll:       e.bankroll,
		Entry:          pos.Entry,
		ExitParams:     e.exits,
		EdgeAtExit:     pos.LastEdge,
		EdgeUpdates:    pos.EdgeUpdates,
		EdgeTrajectory: tail(pos.edgeTraj, 10),
		PnLTrajectory:  tail(pos.pnlTraj, 10),
	}
	e.appendTrade(rec)
	e.closed = append(e.closed, rec)

	if len(e.closed) >= e.cfg.TuneMinTrades && len(e.closed)%e.cfg.TuneEveryCloses == 0 {
		e.tuneExits()
	}
}

// release drops a position from the live set and starts its cooldowns.
// A stop-loss pushes the event cooldown start into the future, stretching
// the lockout on that game.
func (e *Executor) release(ticker string, now time.Time) {
	pos := e.positions[ticker]
	if pos == nil {
		return
	}
	delete(e.positions, ticker)
	e.recentTickers[ticker] = now
	if pos.ExitReason == ExitStopLoss {
		e.recentEvents[pos.Event] = now.Add(e.cfg.StopExtraCooldown)
	} else {
		e.recentEvents[pos.Event] = now
	}
}

// refreshBankroll pulls the account balance at most once per refresh
// window and recomputes the per-trade capital target. A successful read
// also restores trading after an auth degrade.
func (e *Executor) refreshBankroll(ctx context.Context) {
	now := e.nowFn()
	if !e.balanceProbedAt.IsZero() && now.Sub(e.balanceProbedAt) < e.cfg.BalanceRefresh {
		return
	}
	e.balanceProbedAt = now

	bal, err := e.venue.GetBalance(ctx)
	if err != nil {
		e.noteVenueErr(err)
		return
	}
	e.bankroll = bal

	target := int(math.Round(float64(bal) * e.cfg.TargetBankrollPct / 100))
	if target < e.cfg.TargetMinCents {
		target = e.cfg.TargetMinCents
	}
	if target > e.cfg.TargetMaxCents {
		target = e.cfg.TargetMaxCents
	}
	e.target = target

	if e.observeOnly {
		e.observeOnly = false
		log.Info().Msg("venue auth restored, trading re-enabled")
	}
}

// contractsFor sizes an order to hit the capital target. Cheap contracts
// get more units, expensive ones fewer, never more than the cap.
func (e *Executor) contractsFor(priceCents int) int {
	if priceCents <= 0 || e.target <= 0 {
		return 1
	}
	n := int(math.Round(float64(e.target) / float64(priceCents)))
	if n < 1 {
		n = 1
	}
	if n > e.cfg.MaxContracts {
		n = e.cfg.MaxContracts
	}
	return n
}

// withinExposure checks the total-cost cap across open positions, a
// percentage of bankroll when known and a flat fallback when not.
func (e *Executor) withinExposure(addCents int) bool {
	open := 0
	for _, p := range e.positions {
		open += p.TotalCost
	}
	limit := fallbackExposureCents
	if e.bankroll > 0 {
		limit = int(float64(e.bankroll) * e.cfg.MaxExposurePct / 100)
	}
	return open+addCents <= limit
}

// noteVenueErr flips observation-only mode when the venue rejects our
// credentials. Non-auth failures are left to the caller to log.
func (e *Executor) noteVenueErr(err error) {
	if err == nil || !kalshi.IsAuth(err) {
		return
	}
	if !e.observeOnly {
		e.observeOnly = true
		log.Warn().Err(err).Msg("venue auth failed, entering observation-only mode")
	}
}

func (e *Executor) appendTrade(rec TradeRecord) {
	if e.trades != nil {
		if err := e.trades.Append(rec); err != nil {
			log.Error().Err(err).Msg("trade log append failed")
		}
	}
	if e.onTrade != nil {
		e.onTrade(rec)
	}
}

// SetEnabled turns signal admission on or off. Open positions are still
// managed while disabled.
func (e *Executor) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// ObserveOnly reports whether the executor has degraded to
// observation-only mode after a venue auth failure.
func (e *Executor) ObserveOnly() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observeOnly
}

// Exits returns the active exit parameter set.
func (e *Executor) Exits() ExitParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exits
}

// ClosedTrades returns a copy of this session's closed trade records.
func (e *Executor) ClosedTrades() []TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TradeRecord, len(e.closed))
	copy(out, e.closed)
	return out
}

// Status is a point-in-time summary for the HTTP surface and the CLI.
type Status struct {
	Enabled        bool                    `json:"enabled"`
	ObserveOnly    bool                    `json:"observe_only"`
	OpenPositions  int                     `json:"open_positions"`
	TotalTrades    int                     `json:"total_trades"`
	TotalPnLCents  int                     `json:"total_pnl"`
	TotalInvested  int                     `json:"total_invested"`
	SessionROIPct  float64                 `json:"session_roi_pct"`
	Bankroll       int                     `json:"bankroll"`
	TargetPosition int                     `json:"target_position"`
	ExitParams     ExitParams              `json:"exit_params"`
	Positions      map[string]PositionView `json:"positions"`
}

// Status snapshots the executor for reporting.
func (e *Executor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	roi := 0.0
	if e.totalInvested > 0 {
		roi = round1(float64(e.totalPnL) / float64(e.totalInvested) * 100)
	}
	now := e.nowFn()
	views := make(map[string]PositionView, len(e.positions))
	for t, p := range e.positions {
		views[t] = p.view(now)
	}
	return Status{
		Enabled:        e.enabled,
		ObserveOnly:    e.observeOnly,
		OpenPositions:  len(e.positions),
		TotalTrades:    e.tradeCount,
		TotalPnLCents:  e.totalPnL,
		TotalInvested:  e.totalInvested,
		SessionROIPct:  roi,
		Bankroll:       e.bankroll,
		TargetPosition: e.target,
		ExitParams:     e.exits,
		Positions:      views,
	}
}

// entryCost is the limit price one cent through the touch, capped. For a
// no order the touch is the no-side cost of the quoted yes price.
func entryCost(side string, yesPrice, maxCost int) int {
	cost := yesPrice + 1
	if side == strategy.SideNo {
		cost = 100 - yesPrice + 1
	}
	if cost > maxCost {
		cost = maxCost
	}
	return cost
}

func reject(sig strategy.Signal, reason string) {
	log.Debug().
		Str("ticker", sig.Ticker).
		Str("strategy", sig.Strategy).
		Str("reason", reason).
		Msg("signal rejected")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
