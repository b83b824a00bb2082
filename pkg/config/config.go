// Package config loads the daemon configuration from YAML with environment
// overrides. Every numeric threshold the trading stack uses lives here so
// nothing is a hidden constant; a missing file yields the full defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete daemon configuration.
type Config struct {
	DataDir string `yaml:"data_dir"`

	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Session  SessionConfig  `yaml:"session"`
	Feed     FeedConfig     `yaml:"feed"`
	Venue    VenueConfig    `yaml:"venue"`
	Model    ModelConfig    `yaml:"model"`
	Strategy StrategyConfig `yaml:"strategy"`
	Trading  TradingConfig  `yaml:"trading"`
	Exits    ExitConfig     `yaml:"exits"`
	Learner  LearnerConfig  `yaml:"learner"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

// ServerConfig is the status/metrics HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SessionConfig bounds the live trading window and the polling cadences.
// Hours are local to Timezone; a close hour smaller than the open hour
// rolls past midnight.
type SessionConfig struct {
	Timezone            string `yaml:"timezone"`
	OpenHour            int    `yaml:"open_hour"`
	CloseHour           int    `yaml:"close_hour"`
	ScanIntervalSec     int    `yaml:"scan_interval_sec"`
	PollIntervalSec     int    `yaml:"poll_interval_sec"`
	SnapshotIntervalSec int    `yaml:"snapshot_interval_sec"`
	IdleCheckSec        int    `yaml:"idle_check_sec"`
}

// FeedConfig configures the scoreboard feed client.
type FeedConfig struct {
	BaseURL         string `yaml:"base_url"`
	TimeoutSec      int    `yaml:"timeout_sec"`
	BreakerFailures int    `yaml:"breaker_failures"`
	BreakerResetSec int    `yaml:"breaker_reset_sec"`
}

// VenueConfig configures the exchange client. KeyID and PrivateKeyPath are
// normally supplied through the environment, not the YAML file.
type VenueConfig struct {
	BaseURL        string   `yaml:"base_url"`
	KeyID          string   `yaml:"key_id"`
	PrivateKeyPath string   `yaml:"private_key_path"`
	TimeoutSec     int      `yaml:"timeout_sec"`
	RatePerSec     float64  `yaml:"rate_per_sec"`
	RateBurst      int      `yaml:"rate_burst"`
	Series         []string `yaml:"series"`
}

// ModelConfig holds the fair-value model parameters.
type ModelConfig struct {
	GameLengthMin     float64 `yaml:"game_length_min"`
	Sigma             float64 `yaml:"sigma"`
	TotalSigma        float64 `yaml:"total_sigma"`
	ReversionBeta     float64 `yaml:"reversion_beta"`
	DampenFullSpread  float64 `yaml:"dampen_full_spread"`
	DampenLimitSpread float64 `yaml:"dampen_limit_spread"`
	DampenFloor       float64 `yaml:"dampen_floor"`
}

// StrategyConfig holds per-detector gates and cooldowns.
type StrategyConfig struct {
	HistorySize int `yaml:"history_size"`

	Value struct {
		MinEdge     int `yaml:"min_edge"`
		MaxEdge     int `yaml:"max_edge"`
		Persistence int `yaml:"persistence"`
		CooldownSec int `yaml:"cooldown_sec"`
	} `yaml:"value"`

	Momentum struct {
		LongWindow  int `yaml:"long_window"`
		ShortWindow int `yaml:"short_window"`
		LongRun     int `yaml:"long_run"`
		ShortRun    int `yaml:"short_run"`
		MinEdge     int `yaml:"min_edge"`
		CooldownSec int `yaml:"cooldown_sec"`
	} `yaml:"momentum"`

	Halftime struct {
		WindowLowMin  float64 `yaml:"window_low_min"`
		WindowHighMin float64 `yaml:"window_high_min"`
		MinEdge       int     `yaml:"min_edge"`
		CooldownSec   int     `yaml:"cooldown_sec"`
	} `yaml:"halftime"`

	Lategame struct {
		MaxMinutes  float64 `yaml:"max_minutes"`
		MaxLead     int     `yaml:"max_lead"`
		MinDelta    int     `yaml:"min_delta"`
		MinEdge     int     `yaml:"min_edge"`
		CooldownSec int     `yaml:"cooldown_sec"`
	} `yaml:"lategame"`

	StalePrice struct {
		MinScoreChange int `yaml:"min_score_change"`
		MinEdge        int `yaml:"min_edge"`
		CooldownSec    int `yaml:"cooldown_sec"`
	} `yaml:"stale_price"`

	Closing struct {
		MaxMinutes  float64 `yaml:"max_minutes"`
		MinLead     int     `yaml:"min_lead"`
		BoundaryGap int     `yaml:"boundary_gap"`
		MinEdge     int     `yaml:"min_edge"`
		CooldownSec int     `yaml:"cooldown_sec"`
	} `yaml:"closing"`
}

// TradingConfig holds the position controller's admission gates, sizing
// targets and lifecycle timers.
type TradingConfig struct {
	MinStrength         int     `yaml:"min_strength"`
	MinEdge             int     `yaml:"min_edge"`
	MaxEdge             int     `yaml:"max_edge"`
	MinMinutesRemaining float64 `yaml:"min_minutes_remaining"`
	MaxPositions        int     `yaml:"max_positions"`
	MinEntryPrice       int     `yaml:"min_entry_price"`
	MaxCostCents        int     `yaml:"max_cost_cents"`
	MinEdgeAfterFees    int     `yaml:"min_edge_after_fees"`

	TargetBankrollPct float64 `yaml:"target_bankroll_pct"`
	TargetMinCents    int     `yaml:"target_min_cents"`
	TargetMaxCents    int     `yaml:"target_max_cents"`
	MaxContracts      int     `yaml:"max_contracts"`
	MaxExposurePct    float64 `yaml:"max_exposure_pct"`
	MaxLossPerCont    int     `yaml:"max_loss_per_contract"`

	TickerCooldownSec int      `yaml:"ticker_cooldown_sec"`
	EventCooldownSec  int      `yaml:"event_cooldown_sec"`
	StopExtraCooldown int      `yaml:"stop_extra_cooldown_sec"`
	OrderTimeoutSec   int      `yaml:"order_timeout_sec"`
	FillCheckSec      int      `yaml:"fill_check_sec"`
	BalanceRefreshSec int      `yaml:"balance_refresh_sec"`
	TuneEveryCloses   int      `yaml:"tune_every_closes"`
	TuneMinTrades     int      `yaml:"tune_min_trades"`
	TuneWindow        int      `yaml:"tune_window"`
	AllowedSeries     []string `yaml:"allowed_series"`
}

// ExitConfig holds the default exit thresholds; the adaptive tuner
// replaces the persisted set, never this block.
type ExitConfig struct {
	StopLossPct         float64 `yaml:"stop_loss_pct"`
	TakeProfitPct       float64 `yaml:"take_profit_pct"`
	TrailingStopPct     float64 `yaml:"trailing_stop_pct"`
	TrailingActivatePct float64 `yaml:"trailing_activate_pct"`
	TimeExitSec         int     `yaml:"time_exit_sec"`
	EdgeExitThreshold   float64 `yaml:"edge_exit_threshold"`
}

// LearnerConfig holds the calibration pass parameters.
type LearnerConfig struct {
	HoldMinutes     int     `yaml:"hold_minutes"`
	MinStrength     int     `yaml:"min_strength"`
	FeeRate         float64 `yaml:"fee_rate"`
	HorizonsMin     []int   `yaml:"horizons_min"`
	GradeHorizonMin int     `yaml:"grade_horizon_min"`
	MinSigmaSamples int     `yaml:"min_sigma_samples"`
}

// Load reads the YAML file at path, overlays .env and environment
// variables, and fills in defaults. A missing file is not an error; the
// defaults stand alone.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %q: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to defaults
		default:
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

// ScanInterval returns the full market scan cadence.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Session.ScanIntervalSec) * time.Second
}

// PollInterval returns the live game/quote polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Session.PollIntervalSec) * time.Second
}

// SnapshotInterval returns the quote archive cadence.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Session.SnapshotIntervalSec) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COURTSIDE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("KALSHI_API_KEY_ID"); v != "" {
		cfg.Venue.KeyID = v
	}
	if v := os.Getenv("KALSHI_PRIVATE_KEY_PATH"); v != "" {
		cfg.Venue.PrivateKeyPath = v
	}
	if v := os.Getenv("KALSHI_BASE_URL"); v != "" {
		cfg.Venue.BaseURL = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8090"
	}

	s := &cfg.Session
	if s.Timezone == "" {
		s.Timezone = "America/New_York"
	}
	if s.OpenHour == 0 {
		s.OpenHour = 18
	}
	if s.CloseHour == 0 {
		s.CloseHour = 1
	}
	if s.ScanIntervalSec <= 0 {
		s.ScanIntervalSec = 300
	}
	if s.PollIntervalSec <= 0 {
		s.PollIntervalSec = 15
	}
	if s.SnapshotIntervalSec <= 0 {
		s.SnapshotIntervalSec = 30
	}
	if s.IdleCheckSec <= 0 {
		s.IdleCheckSec = 60
	}

	f := &cfg.Feed
	if f.BaseURL == "" {
		f.BaseURL = "https://site.api.espn.com/apis/site/v2/sports/basketball/mens-college-basketball"
	}
	if f.TimeoutSec <= 0 {
		f.TimeoutSec = 10
	}
	if f.BreakerFailures <= 0 {
		f.BreakerFailures = 3
	}
	if f.BreakerResetSec <= 0 {
		f.BreakerResetSec = 60
	}

	v := &cfg.Venue
	if v.BaseURL == "" {
		v.BaseURL = "https://api.elections.kalshi.com/trade-api/v2"
	}
	if v.TimeoutSec <= 0 {
		v.TimeoutSec = 15
	}
	if v.RatePerSec <= 0 {
		v.RatePerSec = 5
	}
	if v.RateBurst <= 0 {
		v.RateBurst = 5
	}
	if len(v.Series) == 0 {
		v.Series = []string{"KXNCAAMBGAME", "KXNCAAMBSPREAD", "KXNCAAMBTOTAL", "KXNCAAMB1HGAME"}
	}

	m := &cfg.Model
	if m.GameLengthMin <= 0 {
		m.GameLengthMin = 40
	}
	if m.Sigma <= 0 {
		m.Sigma = 11.0
	}
	if m.TotalSigma <= 0 {
		m.TotalSigma = 16.0
	}
	if m.ReversionBeta <= 0 {
		m.ReversionBeta = 0.75
	}
	if m.DampenFullSpread <= 0 {
		m.DampenFullSpread = 4
	}
	if m.DampenLimitSpread <= 0 {
		m.DampenLimitSpread = 8
	}
	if m.DampenFloor <= 0 {
		m.DampenFloor = 0.5
	}

	st := &cfg.Strategy
	if st.HistorySize <= 0 {
		st.HistorySize = 40
	}
	if st.Value.MinEdge <= 0 {
		st.Value.MinEdge = 5
	}
	if st.Value.MaxEdge <= 0 {
		st.Value.MaxEdge = 15
	}
	if st.Value.Persistence <= 0 {
		st.Value.Persistence = 3
	}
	if st.Value.CooldownSec <= 0 {
		st.Value.CooldownSec = 240
	}
	if st.Momentum.LongWindow <= 0 {
		st.Momentum.LongWindow = 6
	}
	if st.Momentum.ShortWindow <= 0 {
		st.Momentum.ShortWindow = 3
	}
	if st.Momentum.LongRun <= 0 {
		st.Momentum.LongRun = 6
	}
	if st.Momentum.ShortRun <= 0 {
		st.Momentum.ShortRun = 3
	}
	if st.Momentum.MinEdge <= 0 {
		st.Momentum.MinEdge = 3
	}
	if st.Momentum.CooldownSec <= 0 {
		st.Momentum.CooldownSec = 180
	}
	if st.Halftime.WindowLowMin <= 0 {
		st.Halftime.WindowLowMin = 19
	}
	if st.Halftime.WindowHighMin <= 0 {
		st.Halftime.WindowHighMin = 21
	}
	if st.Halftime.MinEdge <= 0 {
		st.Halftime.MinEdge = 5
	}
	if st.Halftime.CooldownSec <= 0 {
		st.Halftime.CooldownSec = 600
	}
	if st.Lategame.MaxMinutes <= 0 {
		st.Lategame.MaxMinutes = 6
	}
	if st.Lategame.MaxLead <= 0 {
		st.Lategame.MaxLead = 5
	}
	if st.Lategame.MinDelta <= 0 {
		st.Lategame.MinDelta = 4
	}
	if st.Lategame.MinEdge <= 0 {
		st.Lategame.MinEdge = 3
	}
	if st.Lategame.CooldownSec <= 0 {
		st.Lategame.CooldownSec = 90
	}
	if st.StalePrice.MinScoreChange <= 0 {
		st.StalePrice.MinScoreChange = 2
	}
	if st.StalePrice.MinEdge <= 0 {
		st.StalePrice.MinEdge = 4
	}
	if st.StalePrice.CooldownSec <= 0 {
		st.StalePrice.CooldownSec = 120
	}
	if st.Closing.MaxMinutes <= 0 {
		st.Closing.MaxMinutes = 3
	}
	if st.Closing.MinLead <= 0 {
		st.Closing.MinLead = 8
	}
	if st.Closing.BoundaryGap <= 0 {
		st.Closing.BoundaryGap = 5
	}
	if st.Closing.MinEdge <= 0 {
		st.Closing.MinEdge = 4
	}
	if st.Closing.CooldownSec <= 0 {
		st.Closing.CooldownSec = 90
	}

	tr := &cfg.Trading
	if tr.MinStrength <= 0 {
		tr.MinStrength = 5
	}
	if tr.MinEdge <= 0 {
		tr.MinEdge = 6
	}
	if tr.MaxEdge <= 0 {
		tr.MaxEdge = 18
	}
	if tr.MinMinutesRemaining <= 0 {
		tr.MinMinutesRemaining = 8
	}
	if tr.MaxPositions <= 0 {
		tr.MaxPositions = 5
	}
	if tr.MinEntryPrice <= 0 {
		tr.MinEntryPrice = 25
	}
	if tr.MaxCostCents <= 0 {
		tr.MaxCostCents = 75
	}
	if tr.MinEdgeAfterFees <= 0 {
		tr.MinEdgeAfterFees = 2
	}
	if tr.TargetBankrollPct <= 0 {
		tr.TargetBankrollPct = 10
	}
	if tr.TargetMinCents <= 0 {
		tr.TargetMinCents = 30
	}
	if tr.TargetMaxCents <= 0 {
		tr.TargetMaxCents = 150
	}
	if tr.MaxContracts <= 0 {
		tr.MaxContracts = 5
	}
	if tr.MaxExposurePct <= 0 {
		tr.MaxExposurePct = 60
	}
	if tr.MaxLossPerCont <= 0 {
		tr.MaxLossPerCont = 8
	}
	if tr.TickerCooldownSec <= 0 {
		tr.TickerCooldownSec = 120
	}
	if tr.EventCooldownSec <= 0 {
		tr.EventCooldownSec = 300
	}
	if tr.StopExtraCooldown <= 0 {
		tr.StopExtraCooldown = 300
	}
	if tr.OrderTimeoutSec <= 0 {
		tr.OrderTimeoutSec = 45
	}
	if tr.FillCheckSec <= 0 {
		tr.FillCheckSec = 15
	}
	if tr.BalanceRefreshSec <= 0 {
		tr.BalanceRefreshSec = 60
	}
	if tr.TuneEveryCloses <= 0 {
		tr.TuneEveryCloses = 5
	}
	if tr.TuneMinTrades <= 0 {
		tr.TuneMinTrades = 10
	}
	if tr.TuneWindow <= 0 {
		tr.TuneWindow = 30
	}
	if len(tr.AllowedSeries) == 0 {
		tr.AllowedSeries = []string{"KXNCAAMBGAME"}
	}

	e := &cfg.Exits
	if e.StopLossPct <= 0 {
		e.StopLossPct = 15
	}
	if e.TakeProfitPct <= 0 {
		e.TakeProfitPct = 15
	}
	if e.TrailingStopPct <= 0 {
		e.TrailingStopPct = 5
	}
	if e.TrailingActivatePct <= 0 {
		e.TrailingActivatePct = 8
	}
	if e.TimeExitSec <= 0 {
		e.TimeExitSec = 300
	}
	if e.EdgeExitThreshold == 0 {
		e.EdgeExitThreshold = -1
	}

	l := &cfg.Learner
	if l.HoldMinutes <= 0 {
		l.HoldMinutes = 3
	}
	if l.MinStrength <= 0 {
		l.MinStrength = 5
	}
	if l.FeeRate <= 0 {
		l.FeeRate = 0.0175
	}
	if len(l.HorizonsMin) == 0 {
		l.HorizonsMin = []int{1, 2, 5, 10}
	}
	if l.GradeHorizonMin <= 0 {
		l.GradeHorizonMin = 5
	}
	if l.MinSigmaSamples <= 0 {
		l.MinSigmaSamples = 10
	}
}
