package store

import (
	"path/filepath"
	"time"
)

// Session logs are partitioned by the local trading date, not UTC, so a
// game that tips at 11pm and its postgame analysis land in the same file.

// SessionDate formats t as the session's YYYY-MM-DD in loc.
func SessionDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// SignalLogPath is the per-date signal JSONL file.
func SignalLogPath(dir, date string) string {
	return filepath.Join(dir, "signals-"+date+".jsonl")
}

// TradeLogPath is the per-date trade history JSONL file.
func TradeLogPath(dir, date string) string {
	return filepath.Join(dir, "trades-"+date+".jsonl")
}

// GameLogPath is the per-date game snapshot JSONL file.
func GameLogPath(dir, date string) string {
	return filepath.Join(dir, "games-"+date+".jsonl")
}

// ReportPath is the per-date session report.
func ReportPath(dir, date string) string {
	return filepath.Join(dir, "reports", "session-"+date+".json")
}

// ExitParamsPath is the active exit parameter set.
func ExitParamsPath(dir string) string {
	return filepath.Join(dir, "exit_params.json")
}

// CumulativePath is the cross-session learnings record.
func CumulativePath(dir string) string {
	return filepath.Join(dir, "cumulative.json")
}

// QuoteDBPath is the sqlite quote archive.
func QuoteDBPath(dir string) string {
	return filepath.Join(dir, "quotes.db")
}
