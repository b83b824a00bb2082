package hoops

import (
	"math"
	"testing"
	"time"
)

func TestWinProbabilityLeaderAboveHalf(t *testing.T) {
	m := New(nil)

	for _, lead := range []float64{1, 3, 8, 15, 30} {
		for _, mins := range []float64{0.5, 5, 20, 39} {
			if fv := m.FairValue(lead, mins, 0); fv <= 50 {
				t.Errorf("lead %.0f mins %.1f: fair value %d, want > 50", lead, mins, fv)
			}
			if fv := m.FairValue(-lead, mins, 0); fv >= 50 {
				t.Errorf("lead %.0f mins %.1f: fair value %d, want < 50", -lead, mins, fv)
			}
		}
	}
}

func TestWinProbabilityTiedIsCoinflip(t *testing.T) {
	m := New(nil)

	for _, mins := range []float64{1, 10, 20, 40} {
		if fv := m.FairValue(0, mins, 0); fv != 50 {
			t.Errorf("tied game at %.0f mins: fair value %d, want 50", mins, fv)
		}
	}
}

func TestFairValueMonotoneInLead(t *testing.T) {
	m := New(nil)

	for _, mins := range []float64{2, 10, 20} {
		prev := 0
		for lead := -30.0; lead <= 30; lead++ {
			fv := m.FairValue(lead, mins, 0)
			if fv < prev {
				t.Fatalf("fair value decreased from %d to %d at lead %.0f mins %.0f", prev, fv, lead, mins)
			}
			prev = fv
		}
	}
}

func TestBoundaryAtZeroMinutes(t *testing.T) {
	m := New(nil)

	cases := []struct {
		lead float64
		want int
	}{
		{5, 99},
		{1, 99},
		{0, 50},
		{-1, 1},
		{-12, 1},
	}
	for _, tc := range cases {
		if fv := m.FairValue(tc.lead, 0, 0); fv != tc.want {
			t.Errorf("lead %.0f at 0 mins: fair value %d, want %d", tc.lead, fv, tc.want)
		}
	}
}

func TestFairValueKnownPoint(t *testing.T) {
	m := New(nil)

	// Eight-point lead at halftime, no pregame line:
	// z = 8 / (11 * sqrt(0.5)) = 1.0285, Phi = 0.848.
	p := m.WinProbability(8, 20, 0)
	if math.Abs(p-0.848) > 0.003 {
		t.Errorf("win probability = %.4f, want about 0.848", p)
	}
	if fv := m.FairValue(8, 20, 0); fv != 85 {
		t.Errorf("fair value = %d, want 85", fv)
	}
}

func TestFairValueClamped(t *testing.T) {
	m := New(nil)

	if fv := m.FairValue(60, 0.2, 0); fv != 99 {
		t.Errorf("blowout fair value = %d, want clamp at 99", fv)
	}
	if fv := m.FairValue(-60, 0.2, 0); fv != 1 {
		t.Errorf("blowout fair value = %d, want clamp at 1", fv)
	}
}

func TestDeltaPerPoint(t *testing.T) {
	m := New(nil)

	for _, tc := range []struct {
		lead, mins float64
	}{
		{0, 30}, {3, 15}, {-5, 8}, {2, 2}, {10, 1},
	} {
		if d := m.DeltaPerPoint(tc.lead, tc.mins, 0); d < 0 {
			t.Errorf("delta at lead %.0f mins %.1f = %d, want >= 0", tc.lead, tc.mins, d)
		}
	}

	// A point matters more in a close endgame than early on.
	late := m.DeltaPerPoint(2, 1, 0)
	early := m.DeltaPerPoint(2, 35, 0)
	if late <= early {
		t.Errorf("delta late (%d) should exceed delta early (%d)", late, early)
	}
}

func TestSpreadDampening(t *testing.T) {
	m := New(nil)

	cases := []struct {
		spread float64
		want   float64
	}{
		{0, 1.0},
		{4, 1.0},
		{-4, 1.0},
		{6, 0.75},
		{8, 0.5},
		{-10, 0.5},
		{25, 0.5},
	}
	for _, tc := range cases {
		if got := m.dampen(tc.spread); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("dampen(%.0f) = %.3f, want %.3f", tc.spread, got, tc.want)
		}
	}

	// The dampened favorite still prices above a pick'em.
	fav := m.FairValue(0, 30, 12)
	if fav <= 50 {
		t.Errorf("12-point favorite in a tied game priced %d, want > 50", fav)
	}
	// But below what the undampened spread would imply.
	undamped := New(&Config{
		GameLengthMin: 40, Sigma: 11, TotalSigma: 16, ReversionBeta: 0.75,
		DampenFullSpread: 100, DampenLimitSpread: 101, DampenFloor: 1,
	}).FairValue(0, 30, 12)
	if fav >= undamped {
		t.Errorf("dampened value %d should be under undampened %d", fav, undamped)
	}
}

func TestMeanReversion(t *testing.T) {
	m := New(nil)

	// Ten up at halftime with no pregame edge: excess 10, beta 0.75,
	// half the game left -> expect -10 * 0.25 * 0.5 = -1.25 points.
	got := m.MeanReversion(10, 0, 20)
	if math.Abs(got-(-1.25)) > 1e-9 {
		t.Errorf("reversion = %.3f, want -1.25", got)
	}

	// Lead exactly on script reverts nothing.
	if got := m.MeanReversion(5, 10, 20); math.Abs(got) > 1e-9 {
		t.Errorf("on-script lead reverted %.3f, want 0", got)
	}

	// Before tipoff there is nothing to revert.
	if got := m.MeanReversion(0, 7, 40); got != 0 {
		t.Errorf("pregame reversion = %.3f, want 0", got)
	}
}

func TestWinByProbability(t *testing.T) {
	m := New(nil)

	// Line zero must agree with the straight win probability.
	p0 := m.WinByProbability(6, 12, 0, 0)
	pw := m.WinProbability(6, 12, 0)
	if math.Abs(p0-pw) > 1e-12 {
		t.Errorf("line-0 win-by %.6f != win prob %.6f", p0, pw)
	}

	// Raising the line can only lower the probability.
	prev := 1.0
	for _, line := range []float64{-10, -5, 0, 5, 10} {
		p := m.WinByProbability(6, 12, 0, line)
		if p > prev {
			t.Fatalf("win-by probability rose to %.4f at line %.0f", p, line)
		}
		prev = p
	}
}

func TestTotalProbability(t *testing.T) {
	m := New(nil)

	// 80 points through 20 minutes, pace projects about 160; well over
	// a 140 line, well under a 180 line.
	over := m.TotalProbability(80, 20, 160, 140)
	under := m.TotalProbability(80, 20, 160, 180)
	if over <= 0.5 {
		t.Errorf("P(total > 140) = %.3f, want > 0.5", over)
	}
	if under >= 0.5 {
		t.Errorf("P(total > 180) = %.3f, want < 0.5", under)
	}

	// Finished game is decided by the score alone.
	if p := m.TotalProbability(150, 0, 160, 140); p != 1.0 {
		t.Errorf("settled over priced %.3f, want 1", p)
	}
	if p := m.TotalProbability(150, 0, 160, 155); p != 0.0 {
		t.Errorf("settled under priced %.3f, want 0", p)
	}
}

func TestGameStateDerived(t *testing.T) {
	g := GameState{
		HomeScore: 61,
		AwayScore: 55,
		Timestamp: time.Now(),
	}
	if g.Lead() != 6 {
		t.Errorf("lead = %d, want 6", g.Lead())
	}
	if g.TotalPoints() != 116 {
		t.Errorf("total = %d, want 116", g.TotalPoints())
	}
}
