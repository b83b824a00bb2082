package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const quoteSchema = `
CREATE TABLE IF NOT EXISTS quotes (
    ts         INTEGER NOT NULL,
    ticker     TEXT    NOT NULL,
    yes_bid    INTEGER NOT NULL DEFAULT 0,
    yes_ask    INTEGER NOT NULL DEFAULT 0,
    last       INTEGER NOT NULL DEFAULT 0,
    volume     INTEGER NOT NULL DEFAULT 0,
    fair_value INTEGER NOT NULL DEFAULT 0,
    edge       INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_quotes_ticker_ts ON quotes(ticker, ts);
CREATE INDEX IF NOT EXISTS idx_quotes_ts        ON quotes(ts);
`

// quoteRetention bounds the archive; grading only ever looks back one
// session, so a month is comfortable.
const quoteRetention = 30 * 24 * time.Hour

// QuoteRecord is one archived quote snapshot with the model's concurrent
// opinion attached, which is what the calibration pass replays.
type QuoteRecord struct {
	Timestamp time.Time `json:"ts"`
	Ticker    string    `json:"ticker"`
	YesBid    int       `json:"yes_bid"`
	YesAsk    int       `json:"yes_ask"`
	Last      int       `json:"last"`
	Volume    int       `json:"volume"`
	FairValue int       `json:"fair_value"`
	Edge      int       `json:"edge"`
}

// Mid returns the midpoint price, falling back to last when one side of
// the book is empty.
func (r QuoteRecord) Mid() int {
	if r.YesBid > 0 && r.YesAsk > 0 {
		return (r.YesBid + r.YesAsk) / 2
	}
	if r.Last > 0 {
		return r.Last
	}
	if r.YesAsk > 0 {
		return r.YesAsk
	}
	return r.YesBid
}

// QuoteDB is the sqlite-backed quote archive (pure Go driver, no CGo).
type QuoteDB struct {
	db *sql.DB
}

// OpenQuoteDB opens or creates the archive at path and prunes rows past
// retention.
func OpenQuoteDB(path string) (*QuoteDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir for %q: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open quote db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(quoteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create quote schema: %w", err)
	}

	cutoff := time.Now().Add(-quoteRetention).Unix()
	if _, err := db.Exec(`DELETE FROM quotes WHERE ts < ?`, cutoff); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: prune quotes: %w", err)
	}

	return &QuoteDB{db: db}, nil
}

// Insert archives one quote snapshot.
func (q *QuoteDB) Insert(ctx context.Context, rec QuoteRecord) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO quotes (ts, ticker, yes_bid, yes_ask, last, volume, fair_value, edge)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Unix(), rec.Ticker, rec.YesBid, rec.YesAsk, rec.Last,
		rec.Volume, rec.FairValue, rec.Edge)
	if err != nil {
		return fmt.Errorf("store: insert quote: %w", err)
	}
	return nil
}

// FirstAt returns the earliest quote for ticker at or after ts, or
// sql.ErrNoRows wrapped when the archive has none.
func (q *QuoteDB) FirstAt(ctx context.Context, ticker string, ts time.Time) (QuoteRecord, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT ts, ticker, yes_bid, yes_ask, last, volume, fair_value, edge
		 FROM quotes WHERE ticker = ? AND ts >= ? ORDER BY ts ASC LIMIT 1`,
		ticker, ts.Unix())
	return scanQuote(row)
}

// LastBefore returns the latest quote for ticker at or before ts.
func (q *QuoteDB) LastBefore(ctx context.Context, ticker string, ts time.Time) (QuoteRecord, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT ts, ticker, yes_bid, yes_ask, last, volume, fair_value, edge
		 FROM quotes WHERE ticker = ? AND ts <= ? ORDER BY ts DESC LIMIT 1`,
		ticker, ts.Unix())
	return scanQuote(row)
}

// Range returns all quotes for ticker in [from, to], time-ordered.
func (q *QuoteDB) Range(ctx context.Context, ticker string, from, to time.Time) ([]QuoteRecord, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT ts, ticker, yes_bid, yes_ask, last, volume, fair_value, edge
		 FROM quotes WHERE ticker = ? AND ts >= ? AND ts <= ? ORDER BY ts ASC`,
		ticker, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("store: range quotes: %w", err)
	}
	defer rows.Close()

	var out []QuoteRecord
	for rows.Next() {
		var rec QuoteRecord
		var ts int64
		if err := rows.Scan(&ts, &rec.Ticker, &rec.YesBid, &rec.YesAsk, &rec.Last,
			&rec.Volume, &rec.FairValue, &rec.Edge); err != nil {
			return nil, fmt.Errorf("store: scan quote: %w", err)
		}
		rec.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Tickers returns the distinct tickers seen in [from, to].
func (q *QuoteDB) Tickers(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT DISTINCT ticker FROM quotes WHERE ts >= ? AND ts <= ? ORDER BY ticker`,
		from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("store: list tickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("store: scan ticker: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the database.
func (q *QuoteDB) Close() error {
	return q.db.Close()
}

func scanQuote(row *sql.Row) (QuoteRecord, error) {
	var rec QuoteRecord
	var ts int64
	err := row.Scan(&ts, &rec.Ticker, &rec.YesBid, &rec.YesAsk, &rec.Last,
		&rec.Volume, &rec.FairValue, &rec.Edge)
	if err != nil {
		return QuoteRecord{}, err
	}
	rec.Timestamp = time.Unix(ts, 0).UTC()
	return rec, nil
}
