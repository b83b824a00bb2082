package espn

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

const scoreboardFixture = `{
  "events": [
    {
      "id": "401745001",
      "date": "2026-03-14T23:30Z",
      "name": "Duke Blue Devils at North Carolina Tar Heels",
      "competitions": [{
        "competitors": [
          {"homeAway": "home", "score": "58",
           "team": {"displayName": "North Carolina Tar Heels", "abbreviation": "UNC"},
           "curatedRank": {"current": 7}},
          {"homeAway": "away", "score": "61",
           "team": {"displayName": "Duke Blue Devils", "abbreviation": "DUKE"},
           "curatedRank": {"current": 4}}
        ],
        "status": {"displayClock": "12:34", "period": 2, "type": {"state": "in"}},
        "odds": [{
          "details": "DUKE -6.5", "overUnder": 148.5, "spread": 6.5,
          "awayTeamOdds": {"favorite": true},
          "pointSpread": {"home": {"close": {"line": "6.5"}}}
        }]
      }]
    },
    {
      "id": "401745002",
      "date": "2026-03-15T01:00Z",
      "name": "Gonzaga Bulldogs at Saint Mary's Gaels",
      "competitions": [{
        "competitors": [
          {"homeAway": "home", "score": "0",
           "team": {"displayName": "Saint Mary's Gaels", "abbreviation": "SMC"},
           "curatedRank": {"current": 99}},
          {"homeAway": "away", "score": "0",
           "team": {"displayName": "Gonzaga Bulldogs", "abbreviation": "GONZ"},
           "curatedRank": {"current": 12}}
        ],
        "status": {"displayClock": "0:00", "period": 0, "type": {"state": "pre"}},
        "odds": [{
          "details": "SMC -3.5", "overUnder": 141,
          "pointSpread": {"home": {"close": {"line": "-3.5"}}}
        }]
      }]
    },
    {
      "id": "401745003",
      "date": "2026-03-14T21:00Z",
      "name": "Purdue Boilermakers at Indiana Hoosiers",
      "competitions": [{
        "competitors": [
          {"homeAway": "home", "score": "71",
           "team": {"displayName": "Indiana Hoosiers", "abbreviation": "IU"},
           "curatedRank": {"current": 99}},
          {"homeAway": "away", "score": "68",
           "team": {"displayName": "Purdue Boilermakers", "abbreviation": "PUR"},
           "curatedRank": {"current": 15}}
        ],
        "status": {"displayClock": "0:00", "period": 2, "type": {"state": "post"}}
      }]
    }
  ]
}`

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scoreboard" {
			t.Errorf("Wrong path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("groups") != "50" {
			t.Errorf("Wrong groups param: %s", r.URL.Query().Get("groups"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(scoreboardFixture))
	}))
}

func TestLiveGames(t *testing.T) {
	server := fixtureServer(t)
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(100, 10))

	games, err := client.LiveGames(context.Background())
	if err != nil {
		t.Fatalf("LiveGames failed: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("Expected 1 live game, got %d", len(games))
	}

	g := games[0]
	if g.ID != "401745001" {
		t.Errorf("Wrong id: %s", g.ID)
	}
	if g.Name != "Duke Blue Devils @ North Carolina Tar Heels" {
		t.Errorf("Wrong name: %s", g.Name)
	}
	if g.HomeAbbr != "UNC" || g.AwayAbbr != "DUKE" {
		t.Errorf("Wrong abbreviations: %s / %s", g.HomeAbbr, g.AwayAbbr)
	}
	if g.HomeScore != 58 || g.AwayScore != 61 {
		t.Errorf("Wrong scores: %d-%d", g.HomeScore, g.AwayScore)
	}
	if g.Lead() != -3 {
		t.Errorf("Wrong lead: %d", g.Lead())
	}
	if g.Period != 2 || g.Clock != "12:34" {
		t.Errorf("Wrong period/clock: %d %s", g.Period, g.Clock)
	}
	if math.Abs(g.MinutesRemaining-12.6) > 1e-9 {
		t.Errorf("Wrong minutes remaining: %v", g.MinutesRemaining)
	}
	// Home close line +6.5 means the away side is favored.
	if g.Spread != -6.5 {
		t.Errorf("Wrong spread: %v", g.Spread)
	}
	if g.OverUnder != 148.5 {
		t.Errorf("Wrong total: %v", g.OverUnder)
	}
	if !g.Live() || g.Final() {
		t.Errorf("Wrong state flags for %q", g.State)
	}
}

func TestSchedule(t *testing.T) {
	server := fixtureServer(t)
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(100, 10))

	games, err := client.Schedule(context.Background())
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(games) != 3 {
		t.Fatalf("Expected 3 games, got %d", len(games))
	}

	pre := games[1]
	if pre.State != StatePre {
		t.Errorf("Wrong state: %s", pre.State)
	}
	want := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	if !pre.StartTime.Equal(want) {
		t.Errorf("Wrong start time: %v", pre.StartTime)
	}
	// Home close line -3.5 means the home team is favored by 3.5.
	if pre.Spread != 3.5 {
		t.Errorf("Wrong spread: %v", pre.Spread)
	}

	post := games[2]
	if !post.Final() {
		t.Errorf("Expected final state, got %s", post.State)
	}
	if post.Spread != 0 {
		t.Errorf("Game without odds should have zero spread, got %v", post.Spread)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		clock string
		want  float64
	}{
		{"20:00", 20},
		{"12:30", 12.5},
		{"0:45", 0.75},
		{"0:00", 0},
		{"", 0},
		{"5", 0},
		{"aa:bb", 0},
	}
	for _, tc := range cases {
		if got := parseClock(tc.clock); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("parseClock(%q) = %v, want %v", tc.clock, got, tc.want)
		}
	}
}

func TestMinutesRemaining(t *testing.T) {
	cases := []struct {
		name   string
		period int
		clock  float64
		want   float64
	}{
		{"first half start", 1, 20, 40},
		{"first half closing", 1, 0.5, 20.5},
		{"second half", 2, 12.567, 12.6},
		{"second half done", 2, 0, 0},
		{"overtime counts its own clock", 3, 3.35, 3.4},
		{"pregame", 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := minutesRemaining(tc.period, tc.clock); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("minutesRemaining(%d, %v) = %v, want %v", tc.period, tc.clock, got, tc.want)
			}
		})
	}
}

func TestApplyOddsFallback(t *testing.T) {
	// No close line: fall back to the spread magnitude plus the
	// favorite flag for its sign.
	odds := oddsBlock{Spread: 4.5}
	var g Game
	applyOdds(&g, odds)
	if g.Spread != 4.5 {
		t.Errorf("Home favorite spread = %v, want 4.5", g.Spread)
	}

	odds.AwayTeamOdds.Favorite = true
	g = Game{}
	applyOdds(&g, odds)
	if g.Spread != -4.5 {
		t.Errorf("Away favorite spread = %v, want -4.5", g.Spread)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(1000, 10))

	for i := 0; i < 3; i++ {
		if _, err := client.LiveGames(context.Background()); err == nil {
			t.Fatalf("Call %d should have failed", i+1)
		}
	}
	if hits != 3 {
		t.Fatalf("Expected 3 upstream hits, got %d", hits)
	}

	_, err := client.LiveGames(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Expected open breaker, got %v", err)
	}
	if hits != 3 {
		t.Errorf("Open breaker should not hit upstream, got %d hits", hits)
	}
}

func TestMalformedEventsDropped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"events":[{"id":"x","competitions":[{"competitors":[{"homeAway":"home"}]}]}]}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(100, 10))

	games, err := client.Schedule(context.Background())
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(games) != 0 {
		t.Errorf("One-competitor event should be dropped, got %d games", len(games))
	}
}
