package strategy

import (
	"strings"
	"testing"
	"time"

	"github.com/courtsidehq/courtside/pkg/hoops"
)

// dobs builds an observation with the engine-derived fields already
// set, for driving Evaluate directly.
func dobs(fv, price, yesLead int, delta int, mins float64) Observation {
	return Observation{
		Ticker:  "TKR",
		Value:   hoops.Value{FairValue: fv, DeltaPerPoint: delta},
		Game:    hoops.GameState{EventID: "E1", MinutesRemaining: mins},
		Price:   price,
		Edge:    fv - price,
		YesLead: yesLead,
	}
}

func TestValueDetectorGates(t *testing.T) {
	d := &valueDetector{cfg: DefaultConfig().Value}

	persistent := func(edge int) *History {
		h := &History{}
		for i := 0; i < 3; i++ {
			h.Ticker = append(h.Ticker, Observation{Edge: edge})
		}
		return h
	}

	cases := []struct {
		name string
		obs  Observation
		hist *History
		want string // side, "" for no signal
	}{
		{"edge in band", dobs(57, 50, 2, 2, 25), persistent(7), SideYes},
		{"negative edge", dobs(43, 50, 2, 2, 25), persistent(-7), SideNo},
		{"edge below floor", dobs(54, 50, 2, 2, 25), persistent(4), ""},
		{"edge above ceiling reads as model error", dobs(70, 50, 2, 2, 25), persistent(20), ""},
		{"not enough history", dobs(57, 50, 2, 2, 25), &History{Ticker: []Observation{{Edge: 7}}}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig := d.Evaluate(tc.obs, tc.hist)
			if tc.want == "" {
				if sig != nil {
					t.Fatalf("Expected no signal, got %+v", sig)
				}
				return
			}
			if sig == nil {
				t.Fatal("Expected a signal")
			}
			if sig.Side != tc.want {
				t.Errorf("Wrong side: %s", sig.Side)
			}
		})
	}
}

func TestValueDetectorSignFlipResets(t *testing.T) {
	d := &valueDetector{cfg: DefaultConfig().Value}

	h := &History{Ticker: []Observation{{Edge: 7}, {Edge: -2}, {Edge: 7}}}
	if sig := d.Evaluate(dobs(57, 50, 2, 2, 25), h); sig != nil {
		t.Errorf("Sign flip inside the window should suppress, got %+v", sig)
	}
}

func TestMomentumDetector(t *testing.T) {
	d := &momentumDetector{cfg: DefaultConfig().Momentum}

	// Home outscores 9-0 over six snapshots, 5-0 over the last three.
	games := []hoops.GameState{
		{HomeScore: 50, AwayScore: 40},
		{HomeScore: 52, AwayScore: 40},
		{HomeScore: 54, AwayScore: 40},
		{HomeScore: 54, AwayScore: 40},
		{HomeScore: 57, AwayScore: 40},
		{HomeScore: 59, AwayScore: 40},
	}
	hist := &History{Game: games}

	obs := dobs(62, 58, 19, 3, 14)
	obs.YesIsHome = true
	sig := d.Evaluate(obs, hist)
	if sig == nil {
		t.Fatal("Expected a momentum signal")
	}
	if sig.Side != SideYes {
		t.Errorf("Wrong side: %s", sig.Side)
	}
	if sig.Strength != 8 {
		t.Errorf("Wrong strength: %d", sig.Strength)
	}

	// Same game viewed from the away ticker: the run is against yes.
	obs.YesIsHome = false
	obs.Edge = -4
	sig = d.Evaluate(obs, hist)
	if sig == nil {
		t.Fatal("Expected an opponent-run signal")
	}
	if sig.Side != SideNo {
		t.Errorf("Wrong side: %s", sig.Side)
	}
}

func TestMomentumStalledRunSuppressed(t *testing.T) {
	d := &momentumDetector{cfg: DefaultConfig().Momentum}

	// Long run +8 but only +2 across the short window.
	games := []hoops.GameState{
		{HomeScore: 50, AwayScore: 40},
		{HomeScore: 54, AwayScore: 40},
		{HomeScore: 56, AwayScore: 40},
		{HomeScore: 56, AwayScore: 40},
		{HomeScore: 58, AwayScore: 40},
		{HomeScore: 58, AwayScore: 40},
	}
	obs := dobs(62, 58, 18, 3, 14)
	obs.YesIsHome = true
	if sig := d.Evaluate(obs, &History{Game: games}); sig != nil {
		t.Errorf("Stalled run should not fire, got %+v", sig)
	}
}

func TestMomentumMarketCaughtUp(t *testing.T) {
	d := &momentumDetector{cfg: DefaultConfig().Momentum}

	games := []hoops.GameState{
		{HomeScore: 50, AwayScore: 40},
		{HomeScore: 52, AwayScore: 40},
		{HomeScore: 54, AwayScore: 40},
		{HomeScore: 55, AwayScore: 40},
		{HomeScore: 57, AwayScore: 40},
		{HomeScore: 59, AwayScore: 40},
	}
	obs := dobs(60, 59, 19, 3, 14) // edge +1, market already moved
	obs.YesIsHome = true
	if sig := d.Evaluate(obs, &History{Game: games}); sig != nil {
		t.Errorf("Caught-up market should not fire, got %+v", sig)
	}
}

func TestHalftimeDetector(t *testing.T) {
	d := &halftimeDetector{cfg: DefaultConfig().Halftime}

	cases := []struct {
		name string
		mins float64
		edge int
		want string
	}{
		{"in window positive edge", 20, 6, SideYes},
		{"in window negative edge", 19.5, -8, SideNo},
		{"window edge inclusive", 21, 5, SideYes},
		{"too early", 22, 8, ""},
		{"too late", 17, 8, ""},
		{"edge too small", 20, 4, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := dobs(50+tc.edge, 50, 2, 2, tc.mins)
			sig := d.Evaluate(obs, &History{})
			if tc.want == "" {
				if sig != nil {
					t.Fatalf("Expected no signal, got %+v", sig)
				}
				return
			}
			if sig == nil {
				t.Fatal("Expected a signal")
			}
			if sig.Side != tc.want {
				t.Errorf("Wrong side: %s", sig.Side)
			}
		})
	}
}

func TestLategameDetector(t *testing.T) {
	d := &lategameDetector{cfg: DefaultConfig().Lategame}

	sig := d.Evaluate(dobs(58, 55, 3, 6, 4), &History{})
	if sig == nil {
		t.Fatal("Expected a signal")
	}
	if sig.Side != SideYes {
		t.Errorf("Wrong side: %s", sig.Side)
	}
	if sig.Strength != 6 {
		t.Errorf("Strength should track point sensitivity: %d", sig.Strength)
	}

	cases := []struct {
		name string
		obs  Observation
	}{
		{"too early", dobs(58, 55, 3, 6, 7)},
		{"game over", dobs(58, 55, 3, 6, 0)},
		{"not close", dobs(58, 55, 6, 6, 4)},
		{"low sensitivity", dobs(58, 55, 3, 3, 4)},
		{"edge too small", dobs(57, 55, 3, 6, 4)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if sig := d.Evaluate(tc.obs, &History{}); sig != nil {
				t.Errorf("Expected no signal, got %+v", sig)
			}
		})
	}
}

func TestStalePriceDetector(t *testing.T) {
	d := &stalePriceDetector{cfg: DefaultConfig().StalePrice}

	prev := dobs(52, 50, 2, 4, 12)
	curr := dobs(57, 51, 5, 4, 11.5) // lead +3, expected move ~12c, price +1
	hist := &History{Ticker: []Observation{prev, curr}}

	sig := d.Evaluate(curr, hist)
	if sig == nil {
		t.Fatal("Expected a stale-price signal")
	}
	if sig.Side != SideYes {
		t.Errorf("Wrong side: %s", sig.Side)
	}
	if !strings.Contains(sig.Reason, "score moved") {
		t.Errorf("Reason should describe the score move: %s", sig.Reason)
	}

	// Price already moved most of the expected amount.
	moved := dobs(57, 58, 5, 4, 11.5)
	hist = &History{Ticker: []Observation{prev, moved}}
	if sig := d.Evaluate(moved, hist); sig != nil {
		t.Errorf("Commensurate move should not fire, got %+v", sig)
	}

	// Edge pointing against the score change is not a lagging quote.
	against := dobs(46, 51, 5, 4, 11.5)
	hist = &History{Ticker: []Observation{prev, against}}
	if sig := d.Evaluate(against, hist); sig != nil {
		t.Errorf("Edge against the move should not fire, got %+v", sig)
	}

	// One free throw is not a score change worth chasing.
	small := dobs(57, 51, 3, 4, 11.5)
	hist = &History{Ticker: []Observation{prev, small}}
	if sig := d.Evaluate(small, hist); sig != nil {
		t.Errorf("One-point change should not fire, got %+v", sig)
	}
}

func TestClosingDetector(t *testing.T) {
	d := &closingDetector{cfg: DefaultConfig().Closing}

	sig := d.Evaluate(dobs(96, 90, 10, 2, 2), &History{})
	if sig == nil {
		t.Fatal("Expected a closing signal")
	}
	if sig.Side != SideYes {
		t.Errorf("Wrong side: %s", sig.Side)
	}

	// Trailing side: price should converge to 1, market still at 8.
	sig = d.Evaluate(dobs(3, 8, -10, 2, 2), &History{})
	if sig == nil {
		t.Fatal("Expected a trailing-side signal")
	}
	if sig.Side != SideNo {
		t.Errorf("Wrong side: %s", sig.Side)
	}

	cases := []struct {
		name string
		obs  Observation
	}{
		{"already converged", dobs(98, 96, 10, 2, 2)},
		{"lead too small", dobs(96, 90, 6, 2, 2)},
		{"too early", dobs(96, 90, 10, 2, 5)},
		{"edge too small", dobs(93, 90, 10, 2, 2)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if sig := d.Evaluate(tc.obs, &History{}); sig != nil {
				t.Errorf("Expected no signal, got %+v", sig)
			}
		})
	}
}

func TestRunOver(t *testing.T) {
	games := []hoops.GameState{
		{HomeScore: 10, AwayScore: 10},
		{HomeScore: 14, AwayScore: 12},
		{HomeScore: 18, AwayScore: 12},
	}
	if got := runOver(games, 3); got != 6 {
		t.Errorf("runOver(3) = %d, want 6", got)
	}
	if got := runOver(games, 2); got != 4 {
		t.Errorf("runOver(2) = %d, want 4", got)
	}
	if got := runOver(games, 4); got != 0 {
		t.Errorf("Short history should return 0, got %d", got)
	}
}

func TestDetectorCooldownValues(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)

	want := map[string]time.Duration{
		NameValue:      240 * time.Second,
		NameMomentum:   180 * time.Second,
		NameHalftime:   600 * time.Second,
		NameLategame:   90 * time.Second,
		NameStalePrice: 120 * time.Second,
		NameClosing:    90 * time.Second,
	}
	for _, d := range e.detectors {
		if want[d.Name()] != d.Cooldown() {
			t.Errorf("%s cooldown = %v, want %v", d.Name(), d.Cooldown(), want[d.Name()])
		}
	}
}
