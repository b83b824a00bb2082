// courtsided is the Courtside trading daemon. It watches the college
// basketball scoreboard through the evening session, prices in-play
// winner contracts against the venue's quotes, and trades the gap.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/courtsidehq/courtside/pkg/config"
	"github.com/courtsidehq/courtside/pkg/espn"
	"github.com/courtsidehq/courtside/pkg/hoops"
	"github.com/courtsidehq/courtside/pkg/kalshi"
	"github.com/courtsidehq/courtside/pkg/store"
	"github.com/courtsidehq/courtside/pkg/trader/executor"
	"github.com/courtsidehq/courtside/pkg/trader/learner"
	"github.com/courtsidehq/courtside/pkg/trader/metrics"
	"github.com/courtsidehq/courtside/pkg/trader/orchestrator"
	"github.com/courtsidehq/courtside/pkg/trader/strategy"
	"github.com/courtsidehq/courtside/pkg/trader/streaming"
)

var (
	configPath = flag.String("config", "courtside.yaml", "path to the YAML config")
	httpAddr   = flag.String("http", "", "status API address, overrides the config")
	observe    = flag.Bool("observe", false, "log signals without placing orders")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("daemon failed")
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)

	if *httpAddr != "" {
		cfg.Server.Addr = *httpAddr
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("data dir %q: %w", cfg.DataDir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(cfg, *observe)
	if err != nil {
		return err
	}
	defer d.close()

	go d.hub.Run(ctx)
	if d.venue.Authenticated() {
		d.exec.Bootstrap(ctx)
	}

	srv := d.startHTTP(cfg.Server.Addr)

	log.Info().
		Str("http", cfg.Server.Addr).
		Str("data_dir", cfg.DataDir).
		Bool("authenticated", d.venue.Authenticated()).
		Bool("observe", *observe).
		Msg("courtside daemon up")

	runErr := d.orch.Run(ctx)

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("status api shutdown failed")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info().Msg("daemon stopped")
	return nil
}

func setupLogging(lc config.LogConfig) {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if lc.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// daemon bundles the long-lived components so the HTTP surface and the
// shutdown path can reach them.
type daemon struct {
	venue   *kalshi.Client
	exec    *executor.Executor
	orch    *orchestrator.Orchestrator
	metrics *metrics.Metrics
	hub     *streaming.Hub

	quotes *store.QuoteDB
	trades *store.AppendLog
}

func newDaemon(cfg *config.Config, observe bool) (*daemon, error) {
	tz, err := time.LoadLocation(cfg.Session.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Session.Timezone, err)
	}

	d := &daemon{
		metrics: metrics.New(),
		hub:     streaming.NewHub(),
	}

	feed := espn.NewClient(
		espn.WithBaseURL(cfg.Feed.BaseURL),
		espn.WithHTTPClient(&http.Client{Timeout: secs(cfg.Feed.TimeoutSec)}),
		espn.WithBreaker(cfg.Feed.BreakerFailures, secs(cfg.Feed.BreakerResetSec)),
	)
	d.venue = buildVenue(cfg)

	quotes, err := store.OpenQuoteDB(store.QuoteDBPath(cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("quote db: %w", err)
	}
	d.quotes = quotes

	date := store.SessionDate(time.Now(), tz)
	trades, err := store.OpenAppendLog(store.TradeLogPath(cfg.DataDir, date))
	if err != nil {
		quotes.Close()
		return nil, fmt.Errorf("trade log: %w", err)
	}
	d.trades = trades

	d.exec = executor.New(executorConfig(cfg), d.venue,
		executor.WithExitStore(store.NewKV(store.ExitParamsPath(cfg.DataDir))),
		executor.WithTradeLog(trades),
		executor.WithBaseExits(baseExits(cfg)),
		executor.WithMetrics(d.metrics),
	)
	d.exec.OnTrade(func(rec executor.TradeRecord) {
		d.hub.BroadcastTrade(rec)
	})
	if observe {
		d.exec.SetEnabled(false)
		log.Info().Msg("observation mode, order placement disabled")
	}

	d.orch = orchestrator.New(
		orchestratorConfig(cfg, tz),
		feed,
		d.venue,
		hoops.New(modelConfig(cfg)),
		strategy.New(strategyConfig(cfg)),
		d.exec,
		orchestrator.WithQuoteArchive(quotes),
		orchestrator.WithMetrics(d.metrics),
		orchestrator.WithHub(d.hub),
		orchestrator.WithLearner(learnerConfig(cfg, tz)),
	)
	return d, nil
}

// buildVenue returns an authenticated client when credentials resolve
// and a public read-only client otherwise. The daemon still runs,
// indexes and signals without credentials; it just cannot trade.
func buildVenue(cfg *config.Config) *kalshi.Client {
	opts := []kalshi.ClientOption{
		kalshi.WithBaseURL(cfg.Venue.BaseURL),
		kalshi.WithHTTPClient(&http.Client{Timeout: secs(cfg.Venue.TimeoutSec)}),
		kalshi.WithRateLimit(cfg.Venue.RatePerSec, cfg.Venue.RateBurst),
	}
	if cfg.Venue.KeyID == "" || cfg.Venue.PrivateKeyPath == "" {
		log.Warn().Msg("venue credentials missing, running read-only")
		return kalshi.NewPublicClient(opts...)
	}
	signer, err := kalshi.NewSigner(cfg.Venue.KeyID, cfg.Venue.PrivateKeyPath)
	if err != nil {
		log.Warn().Err(err).Msg("venue signer unavailable, running read-only")
		return kalshi.NewPublicClient(opts...)
	}
	return kalshi.NewClient(signer, opts...)
}

func (d *daemon) startHTTP(addr string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"session": d.orch.Status(),
			"trading": d.exec.Status(),
			"clients": d.hub.ClientCount(),
		})
	})
	mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.exec.Status().Positions)
	})
	mux.HandleFunc("/signals", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.orch.RecentSignals())
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"signals": d.orch.SignalCounts(),
			"trades":  d.exec.ClosedTrades(),
		})
	})
	mux.Handle("/metrics", promhttp.HandlerFor(d.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", d.hub.ServeWS)

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("status api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("status api failed")
		}
	}()
	return srv
}

func (d *daemon) close() {
	if d.trades != nil {
		if err := d.trades.Close(); err != nil {
			log.Warn().Err(err).Msg("trade log close failed")
		}
	}
	if d.quotes != nil {
		if err := d.quotes.Close(); err != nil {
			log.Warn().Err(err).Msg("quote db close failed")
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response encode failed")
	}
}

// --- config conversion ---

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func orchestratorConfig(cfg *config.Config, tz *time.Location) *orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	oc.DataDir = cfg.DataDir
	oc.Timezone = tz
	oc.OpenHour = cfg.Session.OpenHour
	oc.CloseHour = cfg.Session.CloseHour
	oc.ScanInterval = cfg.ScanInterval()
	oc.PollInterval = cfg.PollInterval()
	oc.SnapshotInterval = cfg.SnapshotInterval()
	oc.IdleInterval = secs(cfg.Session.IdleCheckSec)
	oc.Series = cfg.Venue.Series
	oc.SignalSeries = cfg.Trading.AllowedSeries
	return oc
}

func modelConfig(cfg *config.Config) *hoops.Config {
	m := cfg.Model
	return &hoops.Config{
		GameLengthMin:     m.GameLengthMin,
		Sigma:             m.Sigma,
		TotalSigma:        m.TotalSigma,
		ReversionBeta:     m.ReversionBeta,
		DampenFullSpread:  m.DampenFullSpread,
		DampenLimitSpread: m.DampenLimitSpread,
		DampenFloor:       m.DampenFloor,
	}
}

func strategyConfig(cfg *config.Config) *strategy.Config {
	s := cfg.Strategy
	return &strategy.Config{
		HistorySize: s.HistorySize,
		Value: strategy.ValueConfig{
			MinEdge:     s.Value.MinEdge,
			MaxEdge:     s.Value.MaxEdge,
			Persistence: s.Value.Persistence,
			Cooldown:    secs(s.Value.CooldownSec),
		},
		Momentum: strategy.MomentumConfig{
			LongWindow:  s.Momentum.LongWindow,
			ShortWindow: s.Momentum.ShortWindow,
			LongRun:     s.Momentum.LongRun,
			ShortRun:    s.Momentum.ShortRun,
			MinEdge:     s.Momentum.MinEdge,
			Cooldown:    secs(s.Momentum.CooldownSec),
		},
		Halftime: strategy.HalftimeConfig{
			WindowLow:  s.Halftime.WindowLowMin,
			WindowHigh: s.Halftime.WindowHighMin,
			MinEdge:    s.Halftime.MinEdge,
			Cooldown:   secs(s.Halftime.CooldownSec),
		},
		Lategame: strategy.LategameConfig{
			MaxMinutes: s.Lategame.MaxMinutes,
			MaxLead:    s.Lategame.MaxLead,
			MinDelta:   s.Lategame.MinDelta,
			MinEdge:    s.Lategame.MinEdge,
			Cooldown:   secs(s.Lategame.CooldownSec),
		},
		StalePrice: strategy.StalePriceConfig{
			MinScoreChange: s.StalePrice.MinScoreChange,
			MinEdge:        s.StalePrice.MinEdge,
			Cooldown:       secs(s.StalePrice.CooldownSec),
		},
		Closing: strategy.ClosingConfig{
			MaxMinutes:  s.Closing.MaxMinutes,
			MinLead:     s.Closing.MinLead,
			BoundaryGap: s.Closing.BoundaryGap,
			MinEdge:     s.Closing.MinEdge,
			Cooldown:    secs(s.Closing.CooldownSec),
		},
	}
}

func executorConfig(cfg *config.Config) *executor.Config {
	t := cfg.Trading
	return &executor.Config{
		MinStrength:         t.MinStrength,
		MinEdge:             t.MinEdge,
		MaxEdge:             t.MaxEdge,
		MinMinutesRemaining: t.MinMinutesRemaining,
		MaxPositions:        t.MaxPositions,
		MinEntryPrice:       t.MinEntryPrice,
		MaxCostCents:        t.MaxCostCents,
		MinEdgeAfterFees:    t.MinEdgeAfterFees,
		TargetBankrollPct:   t.TargetBankrollPct,
		TargetMinCents:      t.TargetMinCents,
		TargetMaxCents:      t.TargetMaxCents,
		MaxContracts:        t.MaxContracts,
		MaxExposurePct:      t.MaxExposurePct,
		MaxLossPerContract:  t.MaxLossPerCont,
		TickerCooldown:      secs(t.TickerCooldownSec),
		EventCooldown:       secs(t.EventCooldownSec),
		StopExtraCooldown:   secs(t.StopExtraCooldown),
		OrderTimeout:        secs(t.OrderTimeoutSec),
		FillCheckInterval:   secs(t.FillCheckSec),
		BalanceRefresh:      secs(t.BalanceRefreshSec),
		TuneEveryCloses:     t.TuneEveryCloses,
		TuneMinTrades:       t.TuneMinTrades,
		TuneWindow:          t.TuneWindow,
		AllowedSeries:       t.AllowedSeries,
	}
}

func baseExits(cfg *config.Config) executor.ExitParams {
	e := cfg.Exits
	return executor.ExitParams{
		StopLossPct:         e.StopLossPct,
		TakeProfitPct:       e.TakeProfitPct,
		TrailingStopPct:     e.TrailingStopPct,
		TrailingActivatePct: e.TrailingActivatePct,
		TimeExitSec:         e.TimeExitSec,
		EdgeExit:            e.EdgeExitThreshold,
	}
}

// learnerConfig aligns the nightly grader with the live stack: the same
// sigma and game length as the model, the same edge floor as the entry
// gates, so its recommendations speak to the parameters actually in use.
func learnerConfig(cfg *config.Config, tz *time.Location) *learner.Config {
	l := cfg.Learner
	return &learner.Config{
		HoldMinutes:     l.HoldMinutes,
		MinStrength:     l.MinStrength,
		FeeRate:         l.FeeRate,
		Horizons:        l.HorizonsMin,
		GradeHorizon:    l.GradeHorizonMin,
		MinSigmaSamples: l.MinSigmaSamples,
		GameLengthMin:   cfg.Model.GameLengthMin,
		ModelSigma:      cfg.Model.Sigma,
		EdgeFloor:       cfg.Trading.MinEdge,
		Timezone:        tz,
	}
}
