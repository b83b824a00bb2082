// Package orchestrator runs the trading session loop. Inside the
// configured evening window it polls the scoreboard and the venue on
// fixed cadences, matches live games to their contracts, feeds
// observations through the signal engine into the position controller,
// and archives quotes for grading. When the window closes it flushes the
// session logs and runs the calibration pass over everything recorded.
//
// One goroutine owns the whole cycle: engine state, the market index and
// the session logs are mutated only from Run. The mutex exists solely so
// the HTTP status surface can read a consistent snapshot; collaborators
// with their own locks (executor, hub) are safe to read directly.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtsidehq/courtside/pkg/espn"
	"github.com/courtsidehq/courtside/pkg/hoops"
	"github.com/courtsidehq/courtside/pkg/kalshi"
	"github.com/courtsidehq/courtside/pkg/store"
	"github.com/courtsidehq/courtside/pkg/trader/executor"
	"github.com/courtsidehq/courtside/pkg/trader/learner"
	"github.com/courtsidehq/courtside/pkg/trader/metrics"
	"github.com/courtsidehq/courtside/pkg/trader/strategy"
	"github.com/courtsidehq/courtside/pkg/trader/streaming"
)

// Feed is the scoreboard slice the loop polls. Satisfied by *espn.Client.
type Feed interface {
	LiveGames(ctx context.Context) ([]espn.Game, error)
	Schedule(ctx context.Context) ([]espn.Game, error)
}

// MarketData is the venue slice the loop reads: the series scan, fresh
// per-contract quotes, and the balance probe that doubles as the auth
// check. Satisfied by *kalshi.Client.
type MarketData interface {
	GetMarkets(ctx context.Context, seriesTicker, status string) ([]kalshi.Market, error)
	GetMarket(ctx context.Context, ticker string) (*kalshi.Market, error)
	GetBalance(ctx context.Context) (int, error)
}

// Config bounds the session window and the polling cadences. Hours are
// local to Timezone; a close hour at or below the open hour rolls the
// window past midnight.
type Config struct {
	DataDir   string
	Timezone  *time.Location
	OpenHour  int
	CloseHour int

	ScanInterval     time.Duration // full market rescans
	PollInterval     time.Duration // live game and quote polls
	SnapshotInterval time.Duration // quote archive writes
	IdleInterval     time.Duration // window checks while closed

	GameLogEvery     int // cycles between game snapshot writes
	StatusEvery      int // cycles between status lines
	AuthRecheckEvery int // cycles between auth retries while degraded

	// Series is every venue series the scan indexes. SignalSeries is the
	// subset fed to the engine; it must hold full-game winner contracts
	// only, since the model prices the full-game win probability.
	Series       []string
	SignalSeries []string
}

// DefaultConfig returns the standard evening-session cadences.
func DefaultConfig() *Config {
	return &Config{
		DataDir:          "data",
		Timezone:         time.UTC,
		OpenHour:         18,
		CloseHour:        1,
		ScanInterval:     5 * time.Minute,
		PollInterval:     15 * time.Second,
		SnapshotInterval: 30 * time.Second,
		IdleInterval:     time.Minute,
		GameLogEvery:     4,
		StatusEvery:      60,
		AuthRecheckEvery: 120,
		Series:           []string{"KXNCAAMBGAME", "KXNCAAMBSPREAD", "KXNCAAMBTOTAL", "KXNCAAMB1HGAME"},
		SignalSeries:     []string{"KXNCAAMBGAME"},
	}
}

// withinWindow reports whether t falls inside the trading window. Equal
// open and close hours keep the window always open.
func (c *Config) withinWindow(t time.Time) bool {
	h := t.In(c.Timezone).Hour()
	if c.CloseHour <= c.OpenHour {
		return h >= c.OpenHour || h < c.CloseHour
	}
	return h >= c.OpenHour && h < c.CloseHour
}

// nextOpen returns the first session open strictly after t.
func (c *Config) nextOpen(t time.Time) time.Time {
	lt := t.In(c.Timezone)
	open := time.Date(lt.Year(), lt.Month(), lt.Day(), c.OpenHour, 0, 0, 0, c.Timezone)
	if !open.After(lt) {
		open = open.AddDate(0, 0, 1)
	}
	return open
}

// Status is the loop's point-in-time summary for the HTTP surface.
type Status struct {
	Active         bool      `json:"session_active"`
	Date           string    `json:"session_date,omitempty"`
	SessionStart   time.Time `json:"session_start"`
	Cycles         int       `json:"cycles"`
	LiveGames      int       `json:"live_games"`
	TrackedGames   int       `json:"tracked_games"`
	TrackedMarkets int       `json:"tracked_markets"`
	MarketsIndexed int       `json:"markets_indexed"`
	AuthOK         bool      `json:"auth_ok"`
}

// match ties one indexed contract to the live game it prices.
type match struct {
	market    kalshi.Market
	homeIsYes bool
}

// Orchestrator drives one session at a time.
type Orchestrator struct {
	cfg    *Config
	feed   Feed
	venue  MarketData
	model  *hoops.Model
	engine *strategy.Engine
	exec   *executor.Executor

	quotes  *store.QuoteDB
	metrics *metrics.Metrics
	hub     *streaming.Hub
	lcfg    *learner.Config

	// Owned by the run loop.
	index      map[string]kalshi.Market
	signalLog  *store.AppendLog
	gameLog    *store.AppendLog
	lastScan   time.Time
	lastSnap   time.Time
	cycleCount int
	authOK     bool
	idleLogged bool
	nowFn      func() time.Time

	mu        sync.Mutex
	status    Status
	recent    []strategy.Signal
	sigCounts map[string]int
}

// Option adjusts an Orchestrator at construction.
type Option func(*Orchestrator)

// WithQuoteArchive archives a snapshot per priced contract on the
// snapshot cadence; the calibration pass replays the archive after the
// session.
func WithQuoteArchive(db *store.QuoteDB) Option {
	return func(o *Orchestrator) { o.quotes = db }
}

// WithMetrics publishes loop, feed and book gauges to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithHub streams signals, game snapshots, quotes and status over h.
func WithHub(h *streaming.Hub) Option {
	return func(o *Orchestrator) { o.hub = h }
}

// WithLearner enables the end-of-session calibration pass. It needs the
// quote archive to grade anything.
func WithLearner(cfg *learner.Config) Option {
	return func(o *Orchestrator) { o.lcfg = cfg }
}

// New wires the session loop around its collaborators. A nil config uses
// DefaultConfig.
func New(cfg *Config, feed Feed, venue MarketData, model *hoops.Model, engine *strategy.Engine, exec *executor.Executor, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	o := &Orchestrator{
		cfg:       cfg,
		feed:      feed,
		venue:     venue,
		model:     model,
		engine:    engine,
		exec:      exec,
		index:     make(map[string]kalshi.Market),
		sigCounts: make(map[string]int),
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Status returns the loop's current snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// RecentSignals returns the signals emitted most recently, oldest
// first. Safe to call from handler goroutines while the loop runs.
func (o *Orchestrator) RecentSignals() []strategy.Signal {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]strategy.Signal, len(o.recent))
	copy(out, o.recent)
	return out
}

// SignalCounts returns the emitted signal count per strategy.
func (o *Orchestrator) SignalCounts() map[string]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]int, len(o.sigCounts))
	for k, v := range o.sigCounts {
		out[k] = v
	}
	return out
}

func (o *Orchestrator) isActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status.Active
}

// Run drives the loop until ctx is cancelled. Cancellation is checked
// between cycles, never mid-cycle; a session open at shutdown is closed
// first so its logs flush and the calibration pass still runs.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().
		Str("window", fmt.Sprintf("%02d:00-%02d:00", o.cfg.OpenHour, o.cfg.CloseHour)).
		Str("tz", o.cfg.Timezone.String()).
		Dur("poll", o.cfg.PollInterval).
		Msg("session loop started")

	for {
		now := o.nowFn()
		var wait time.Duration
		if o.cfg.withinWindow(now) {
			if !o.isActive() {
				o.startSession(ctx, now)
			}
			o.cycle(ctx)
			wait = o.cfg.PollInterval
		} else {
			if o.isActive() {
				o.endSession(ctx)
			}
			o.logIdle(now)
			wait = o.cfg.IdleInterval
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			if o.isActive() {
				closeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				o.endSession(closeCtx)
				cancel()
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// startSession opens the date-partitioned logs, probes auth, scans the
// market slate and notes the schedule. The session date is fixed here:
// play that runs past midnight stays in the opening date's files.
func (o *Orchestrator) startSession(ctx context.Context, now time.Time) {
	date := store.SessionDate(now, o.cfg.Timezone)
	log.Info().Str("date", date).Msg("session opening")

	sigLog, err := store.OpenAppendLog(store.SignalLogPath(o.cfg.DataDir, date))
	if err != nil {
		log.Error().Err(err).Msg("signal log unavailable")
	}
	gameLog, err := store.OpenAppendLog(store.GameLogPath(o.cfg.DataDir, date))
	if err != nil {
		log.Error().Err(err).Msg("game log unavailable")
	}
	o.signalLog, o.gameLog = sigLog, gameLog
	o.cycleCount = 0
	o.lastSnap = time.Time{}
	o.idleLogged = false

	o.mu.Lock()
	o.status = Status{Active: true, Date: date, SessionStart: now, AuthOK: o.authOK}
	o.mu.Unlock()

	o.checkAuth(ctx)
	o.scanMarkets(ctx)
	o.lastScan = now
	o.logSchedule(ctx)
	o.publish(0)

	if o.metrics != nil {
		o.metrics.UpdateSession(true, 0, len(o.index))
	}
	if o.hub != nil {
		o.hub.BroadcastStatus(o.Status())
	}
}

// endSession closes the logs, reports the book, and hands everything the
// session recorded to the calibration pass.
func (o *Orchestrator) endSession(ctx context.Context) {
	o.mu.Lock()
	date := o.status.Date
	o.mu.Unlock()

	ex := o.exec.Status()
	log.Info().
		Str("date", date).
		Int("cycles", o.cycleCount).
		Int("trades", ex.TotalTrades).
		Int("pnl_cents", ex.TotalPnLCents).
		Float64("roi_pct", ex.SessionROIPct).
		Msg("session closing")

	if o.signalLog != nil {
		if err := o.signalLog.Close(); err != nil {
			log.Warn().Err(err).Msg("signal log close failed")
		}
		o.signalLog = nil
	}
	if o.gameLog != nil {
		if err := o.gameLog.Close(); err != nil {
			log.Warn().Err(err).Msg("game log close failed")
		}
		o.gameLog = nil
	}

	if o.quotes != nil && o.lcfg != nil {
		_, err := learner.RunSession(ctx, o.lcfg, o.quotes, o.cfg.DataDir, date)
		switch {
		case errors.Is(err, learner.ErrNoData):
			log.Info().Str("date", date).Msg("nothing recorded, skipping calibration")
		case err != nil:
			log.Error().Err(err).Str("date", date).Msg("calibration pass failed")
		}
	}

	o.engine.Reset()
	o.index = make(map[string]kalshi.Market)

	o.mu.Lock()
	o.status = Status{AuthOK: o.authOK}
	o.recent = nil
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.UpdateSession(false, 0, 0)
	}
	if o.hub != nil {
		o.hub.BroadcastStatus(o.Status())
	}
}

// cycle is one poll: rescan when due, refresh live games, price their
// contracts, drain signals into the controller, and run its exit pass.
// Feed failures cost this cycle's observations but never skip position
// management.
func (o *Orchestrator) cycle(ctx context.Context) {
	start := o.nowFn()
	o.cycleCount++
	cyc := o.cycleCount

	if start.Sub(o.lastScan) >= o.cfg.ScanInterval {
		o.scanMarkets(ctx)
		o.lastScan = start
	}

	games, err := o.feed.LiveGames(ctx)
	if err != nil {
		o.noteFeedErr(err)
		games = nil
	}

	snapDue := o.quotes != nil && start.Sub(o.lastSnap) >= o.cfg.SnapshotInterval
	gameLogDue := o.cfg.GameLogEvery <= 1 || cyc%o.cfg.GameLogEvery == 1

	prices := make(map[string]int)
	for _, g := range games {
		gs := gameState(g, start)
		o.engine.OnGameState(gs)
		if gameLogDue {
			o.logGame(g, start)
		}
		for _, mt := range o.matchMarkets(gs) {
			o.processMarket(ctx, mt, gs, start, snapDue, prices)
		}
	}
	if snapDue {
		o.lastSnap = start
	}

	o.exec.CheckPositions(ctx, prices)

	if !o.authOK && o.cfg.AuthRecheckEvery > 0 && cyc%o.cfg.AuthRecheckEvery == 0 {
		o.checkAuth(ctx)
	}

	o.publish(len(games))

	if o.cfg.StatusEvery > 0 && cyc%o.cfg.StatusEvery == 0 {
		o.logStatus()
	}

	if o.metrics != nil {
		o.metrics.ObserveCycle(o.nowFn().Sub(start).Seconds())
		o.metrics.UpdateSession(true, len(games), len(o.index))
		st := o.exec.Status()
		exposure := 0
		for _, p := range st.Positions {
			exposure += p.TotalCost
		}
		o.metrics.UpdateBook(st.OpenPositions, exposure, st.Bankroll)
	}
}

// processMarket refreshes one matched contract: fresh quote, model value
// from the yes side's perspective, engine feed, book marks for the
// controller, and an archive write on snapshot cycles.
func (o *Orchestrator) processMarket(ctx context.Context, mt match, gs hoops.GameState, now time.Time, snapDue bool, prices map[string]int) {
	m, err := o.venue.GetMarket(ctx, mt.market.Ticker)
	if err != nil {
		o.noteVenueErr(err)
		log.Debug().Err(err).Str("ticker", mt.market.Ticker).Msg("quote refresh failed")
		return
	}
	quote := kalshi.QuoteFromMarket(*m, now)

	lead := float64(gs.Lead())
	spread := gs.PregameSpread
	if !mt.homeIsYes {
		lead, spread = -lead, -spread
	}
	val := o.model.Value(lead, gs.MinutesRemaining, spread)

	obs := strategy.Observation{
		Ticker:    m.Ticker,
		Quote:     quote,
		Game:      gs,
		Value:     val,
		YesIsHome: mt.homeIsYes,
		Timestamp: now,
	}
	for _, sig := range o.engine.OnQuote(obs) {
		o.emit(ctx, sig)
	}

	if yes := quote.Mid(); yes > 0 {
		prices[m.Ticker] = yes
		o.exec.UpdateModelValue(m.Ticker, val.FairValue, yes)
	}

	if snapDue {
		o.archiveQuote(ctx, quote, val)
	}
}

// emit fans one signal out: durable log first, then metrics and the
// stream, then the controller.
func (o *Orchestrator) emit(ctx context.Context, sig strategy.Signal) {
	log.Info().
		Str("strategy", sig.Strategy).
		Str("ticker", sig.Ticker).
		Str("side", sig.Side).
		Int("edge", sig.Edge).
		Int("strength", sig.Strength).
		Str("reason", sig.Reason).
		Msg("signal")

	if o.signalLog != nil {
		if err := o.signalLog.Append(sig); err != nil {
			log.Error().Err(err).Msg("signal log append failed")
		}
	}

	o.mu.Lock()
	o.recent = append(o.recent, sig)
	if len(o.recent) > 100 {
		o.recent = o.recent[1:]
	}
	o.sigCounts[sig.Strategy]++
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.RecordSignal(sig.Strategy, sig.Side, sig.Edge)
	}
	if o.hub != nil {
		o.hub.BroadcastSignal(sig)
	}
	o.exec.OnSignal(ctx, sig)
}

// matchMarkets returns the indexed contracts priced off gs. Only the
// configured signal series are fed; spread, total and half contracts
// stay in the index for the scan surface but the model has no price for
// them.
func (o *Orchestrator) matchMarkets(gs hoops.GameState) []match {
	var out []match
	for ticker, m := range o.index {
		if !o.signalSeries(hoops.ParseTicker(ticker).Series) {
			continue
		}
		homeIsYes, ok := hoops.MatchTicker(gs, ticker)
		if !ok {
			continue
		}
		out = append(out, match{market: m, homeIsYes: homeIsYes})
	}
	return out
}

func (o *Orchestrator) signalSeries(series string) bool {
	for _, s := range o.cfg.SignalSeries {
		if series == s {
			return true
		}
	}
	return false
}

// scanMarkets rebuilds the market index from the configured series list.
// A series whose listing fails keeps its previous entries so a venue
// hiccup does not blank the slate mid-session.
func (o *Orchestrator) scanMarkets(ctx context.Context) {
	seen := make(map[string]kalshi.Market, len(o.index))
	var failed []string
	for _, series := range o.cfg.Series {
		markets, err := o.venue.GetMarkets(ctx, series, "open")
		if err != nil {
			o.noteVenueErr(err)
			log.Warn().Err(err).Str("series", series).Msg("market scan failed")
			failed = append(failed, series)
			continue
		}
		for _, m := range markets {
			seen[m.Ticker] = m
		}
	}
	for _, series := range failed {
		for ticker, m := range o.index {
			if strings.HasPrefix(ticker, series+"-") {
				seen[ticker] = m
			}
		}
	}
	o.index = seen
	log.Info().Int("markets", len(seen)).Int("series", len(o.cfg.Series)).Msg("market scan complete")
}

// checkAuth probes the balance endpoint. Any failure degrades the status
// to unauthenticated and the cycle recheck takes over; the executor runs
// the same degrade-and-recover policy on its own calls.
func (o *Orchestrator) checkAuth(ctx context.Context) {
	bal, err := o.venue.GetBalance(ctx)
	switch {
	case err == nil:
		o.authOK = true
		log.Info().Int("balance_cents", bal).Msg("venue auth ok")
	case kalshi.IsAuth(err):
		o.authOK = false
		log.Warn().Err(err).Msg("venue auth failed, running observation-only")
	default:
		o.authOK = false
		o.noteVenueErr(err)
		log.Warn().Err(err).Msg("balance probe failed")
	}
	o.mu.Lock()
	o.status.AuthOK = o.authOK
	o.mu.Unlock()
}

// logSchedule notes the day's slate at session open.
func (o *Orchestrator) logSchedule(ctx context.Context) {
	games, err := o.feed.Schedule(ctx)
	if err != nil {
		o.noteFeedErr(err)
		return
	}
	var upcoming, live int
	var next time.Time
	for _, g := range games {
		switch {
		case g.Live():
			live++
		case !g.Final():
			upcoming++
			if next.IsZero() || g.StartTime.Before(next) {
				next = g.StartTime
			}
		}
	}
	ev := log.Info().Int("scheduled", upcoming).Int("in_progress", live)
	if !next.IsZero() {
		ev = ev.Time("next_tip", next.In(o.cfg.Timezone))
	}
	ev.Msg("scoreboard slate")
}

func (o *Orchestrator) logGame(g espn.Game, now time.Time) {
	snap := learner.GameSnapshot{
		Timestamp:        now,
		GameID:           g.ID,
		Name:             g.Name,
		State:            g.State,
		AwayScore:        g.AwayScore,
		HomeScore:        g.HomeScore,
		Lead:             g.Lead(),
		Period:           g.Period,
		Clock:            g.Clock,
		MinutesRemaining: g.MinutesRemaining,
	}
	if o.gameLog != nil {
		if err := o.gameLog.Append(snap); err != nil {
			log.Error().Err(err).Msg("game log append failed")
		}
	}
	if o.hub != nil {
		o.hub.BroadcastGame(snap)
	}
}

func (o *Orchestrator) archiveQuote(ctx context.Context, q kalshi.Quote, val hoops.Value) {
	ref := strategy.ReferencePrice(q)
	rec := store.QuoteRecord{
		Timestamp: q.Timestamp,
		Ticker:    q.Ticker,
		YesBid:    q.YesBid,
		YesAsk:    q.YesAsk,
		Last:      q.LastPrice,
		Volume:    q.Volume,
		FairValue: val.FairValue,
		Edge:      val.FairValue - ref,
	}
	if err := o.quotes.Insert(ctx, rec); err != nil {
		log.Warn().Err(err).Str("ticker", q.Ticker).Msg("quote archive write failed")
	}
	if o.hub != nil {
		o.hub.BroadcastQuote(q.Ticker, ref, val.FairValue, rec.Edge)
	}
}

// publish refreshes the status snapshot the HTTP surface reads.
func (o *Orchestrator) publish(liveGames int) {
	o.mu.Lock()
	o.status.Cycles = o.cycleCount
	o.status.LiveGames = liveGames
	o.status.TrackedGames = o.engine.TrackedGames()
	o.status.TrackedMarkets = o.engine.TrackedMarkets()
	o.status.MarketsIndexed = len(o.index)
	o.status.AuthOK = o.authOK
	o.mu.Unlock()
}

func (o *Orchestrator) logStatus() {
	st := o.Status()
	ex := o.exec.Status()
	log.Info().
		Int("live_games", st.LiveGames).
		Int("tracked_games", st.TrackedGames).
		Int("markets", st.MarketsIndexed).
		Int("open_positions", ex.OpenPositions).
		Int("session_pnl", ex.TotalPnLCents).
		Bool("auth_ok", st.AuthOK).
		Msg("session status")
	if o.hub != nil {
		o.hub.BroadcastStatus(st)
	}
}

// logIdle notes the wait once per idle stretch.
func (o *Orchestrator) logIdle(now time.Time) {
	if o.idleLogged {
		return
	}
	next := o.cfg.nextOpen(now)
	log.Info().
		Time("next_open", next).
		Float64("hours", math.Round(next.Sub(now).Hours()*10)/10).
		Msg("outside session window")
	o.idleLogged = true
}

func (o *Orchestrator) noteFeedErr(err error) {
	log.Warn().Err(err).Msg("scoreboard fetch failed, no observations this cycle")
	if o.metrics != nil {
		o.metrics.RecordFeedError("scoreboard")
	}
	if o.hub != nil {
		o.hub.BroadcastError(err, "feed")
	}
}

func (o *Orchestrator) noteVenueErr(err error) {
	if o.metrics == nil || err == nil {
		return
	}
	kind := "unknown"
	switch {
	case kalshi.IsAuth(err):
		kind = "auth"
	case kalshi.IsTransient(err):
		kind = "transient"
	case kalshi.IsMalformed(err):
		kind = "malformed"
	}
	o.metrics.RecordVenueError(kind)
}

// gameState lifts a scoreboard entry into the model's snapshot form.
// PregameSpread stays home-relative; the side handling flips it per
// contract.
func gameState(g espn.Game, now time.Time) hoops.GameState {
	return hoops.GameState{
		EventID:          g.ID,
		HomeTeam:         g.HomeTeam,
		AwayTeam:         g.AwayTeam,
		HomeAbbr:         g.HomeAbbr,
		AwayAbbr:         g.AwayAbbr,
		HomeScore:        g.HomeScore,
		AwayScore:        g.AwayScore,
		Period:           g.Period,
		Clock:            g.Clock,
		Final:            g.Final(),
		StartTime:        g.StartTime,
		Timestamp:        now,
		MinutesRemaining: g.MinutesRemaining,
		PregameSpread:    g.Spread,
		PregameTotal:     g.OverUnder,
	}
}
