package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type rec struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestAppendLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.jsonl")

	l, err := OpenAppendLog(path)
	if err != nil {
		t.Fatalf("OpenAppendLog failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := l.Append(rec{Name: "r", Value: i}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	var got []rec
	skipped, err := ReadJSONL(path, func(line []byte) error {
		var r rec
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if len(got) != 3 || got[2].Value != 2 {
		t.Errorf("read back %v", got)
	}
}

func TestReadJSONLSkipsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.jsonl")
	raw := `{"name":"ok","value":1}
not json at all
{"name":"ok","value":2}

{"truncated":
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	var count int
	skipped, err := ReadJSONL(path, func(line []byte) error {
		var r rec
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}
	if count != 2 {
		t.Errorf("decoded %d records, want 2", count)
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
}

func TestReadJSONLMissingFile(t *testing.T) {
	skipped, err := ReadJSONL(filepath.Join(t.TempDir(), "absent.jsonl"), func([]byte) error {
		t.Fatal("callback invoked for missing file")
		return nil
	})
	if err != nil || skipped != 0 {
		t.Errorf("missing file: skipped=%d err=%v, want 0 nil", skipped, err)
	}
}

func TestKVRoundTripAndAtomicReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "params.json")
	kv := NewKV(path)

	var missing rec
	if err := kv.Load(&missing); !os.IsNotExist(err) {
		t.Fatalf("Load of missing file: %v, want not-exist", err)
	}

	if err := kv.Save(rec{Name: "a", Value: 1}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := kv.Save(rec{Name: "b", Value: 2}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	var got rec
	if err := kv.Load(&got); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Name != "b" || got.Value != 2 {
		t.Errorf("loaded %+v, want latest save", got)
	}

	// No stray temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only the kv file", len(entries))
	}
}

func TestQuoteDB(t *testing.T) {
	db, err := OpenQuoteDB(filepath.Join(t.TempDir(), "quotes.db"))
	if err != nil {
		t.Fatalf("OpenQuoteDB failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	base := time.Date(2026, 2, 7, 19, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		err := db.Insert(ctx, QuoteRecord{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Ticker:    "KXNCAAMBGAME-26FEB07DUKEUNC-DUKE",
			YesBid:    50 + i,
			YesAsk:    52 + i,
			Last:      51 + i,
			Volume:    100 * i,
			FairValue: 55 + i,
			Edge:      4,
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := db.FirstAt(ctx, "KXNCAAMBGAME-26FEB07DUKEUNC-DUKE", base.Add(150*time.Second))
	if err != nil {
		t.Fatalf("FirstAt failed: %v", err)
	}
	if got.YesBid != 53 {
		t.Errorf("FirstAt yes bid = %d, want 53 (the 3-minute row)", got.YesBid)
	}

	last, err := db.LastBefore(ctx, "KXNCAAMBGAME-26FEB07DUKEUNC-DUKE", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("LastBefore failed: %v", err)
	}
	if last.YesBid != 59 {
		t.Errorf("LastBefore yes bid = %d, want 59", last.YesBid)
	}

	rng, err := db.Range(ctx, "KXNCAAMBGAME-26FEB07DUKEUNC-DUKE", base, base.Add(4*time.Minute))
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(rng) != 5 {
		t.Errorf("Range returned %d rows, want 5", len(rng))
	}

	tickers, err := db.Tickers(ctx, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Tickers failed: %v", err)
	}
	if len(tickers) != 1 {
		t.Errorf("Tickers = %v, want one", tickers)
	}

	if _, err := db.FirstAt(ctx, "UNKNOWN", base); err == nil {
		t.Error("FirstAt for unknown ticker should error")
	}
}

func TestQuoteRecordMid(t *testing.T) {
	cases := []struct {
		rec  QuoteRecord
		want int
	}{
		{QuoteRecord{YesBid: 48, YesAsk: 52}, 50},
		{QuoteRecord{Last: 44}, 44},
		{QuoteRecord{YesAsk: 30}, 30},
		{QuoteRecord{YesBid: 61}, 61},
	}
	for _, tc := range cases {
		if got := tc.rec.Mid(); got != tc.want {
			t.Errorf("Mid(%+v) = %d, want %d", tc.rec, got, tc.want)
		}
	}
}

func TestPaths(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}

	// 1am UTC Feb 8 is still Feb 7 evening in New York.
	ts := time.Date(2026, 2, 8, 1, 30, 0, 0, time.UTC)
	if d := SessionDate(ts, loc); d != "2026-02-07" {
		t.Errorf("SessionDate = %s, want 2026-02-07", d)
	}

	if p := SignalLogPath("data", "2026-02-07"); p != filepath.Join("data", "signals-2026-02-07.jsonl") {
		t.Errorf("SignalLogPath = %s", p)
	}
}
