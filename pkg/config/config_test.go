package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Model.Sigma != 11.0 {
		t.Errorf("sigma default = %v, want 11", cfg.Model.Sigma)
	}
	if cfg.Trading.MaxPositions != 5 {
		t.Errorf("max positions default = %d, want 5", cfg.Trading.MaxPositions)
	}
	if cfg.Exits.EdgeExitThreshold != -1 {
		t.Errorf("edge exit default = %v, want -1", cfg.Exits.EdgeExitThreshold)
	}
	if cfg.Session.OpenHour != 18 || cfg.Session.CloseHour != 1 {
		t.Errorf("session window = %d-%d, want 18-1", cfg.Session.OpenHour, cfg.Session.CloseHour)
	}
	if len(cfg.Venue.Series) == 0 {
		t.Error("venue series default empty")
	}
}

func TestLoadOverridesAndBackfills(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "courtside.yaml")
	raw := `
data_dir: /tmp/courtside-test
model:
  sigma: 12.5
trading:
  max_positions: 3
exits:
  take_profit_pct: 20
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != "/tmp/courtside-test" {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if cfg.Model.Sigma != 12.5 {
		t.Errorf("sigma = %v, want 12.5", cfg.Model.Sigma)
	}
	if cfg.Trading.MaxPositions != 3 {
		t.Errorf("max positions = %d, want 3", cfg.Trading.MaxPositions)
	}
	if cfg.Exits.TakeProfitPct != 20 {
		t.Errorf("take profit = %v, want 20", cfg.Exits.TakeProfitPct)
	}

	// Untouched keys still get defaults.
	if cfg.Trading.MinEdge != 6 {
		t.Errorf("min edge backfill = %d, want 6", cfg.Trading.MinEdge)
	}
	if cfg.Exits.StopLossPct != 15 {
		t.Errorf("stop loss backfill = %v, want 15", cfg.Exits.StopLossPct)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("trading: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("COURTSIDE_DATA_DIR", "/var/lib/courtside")
	t.Setenv("KALSHI_API_KEY_ID", "key-123")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DataDir != "/var/lib/courtside" {
		t.Errorf("data dir = %q, want env value", cfg.DataDir)
	}
	if cfg.Venue.KeyID != "key-123" {
		t.Errorf("key id = %q, want env value", cfg.Venue.KeyID)
	}
}

func TestIntervals(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PollInterval().Seconds() != 15 {
		t.Errorf("poll interval = %v, want 15s", cfg.PollInterval())
	}
	if cfg.ScanInterval().Seconds() != 300 {
		t.Errorf("scan interval = %v, want 300s", cfg.ScanInterval())
	}
}
