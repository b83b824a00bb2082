// Package espn reads the public college-basketball scoreboard feed:
// live scores with period and clock, pregame betting lines, and the
// day's schedule. Fetches run behind a circuit breaker so a feed outage
// degrades to skipped cycles instead of hammering a dead endpoint.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public scoreboard API root.
const DefaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports/basketball/mens-college-basketball"

// groups=50 selects all of Division 1, not just featured games.
const scoreboardQuery = "groups=50&limit=200"

const halfMinutes = 20

// Client fetches and flattens scoreboard data.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker
	breakerFails uint32
	breakerReset time.Duration
	nowFn        func() time.Time
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different feed root.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithRateLimit overrides the request pacing.
func WithRateLimit(perSec float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithBreaker overrides how many consecutive failures trip the circuit
// and how long it stays open.
func WithBreaker(failures int, reset time.Duration) ClientOption {
	return func(c *Client) {
		if failures > 0 {
			c.breakerFails = uint32(failures)
		}
		if reset > 0 {
			c.breakerReset = reset
		}
	}
}

// NewClient creates a scoreboard client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:      rate.NewLimiter(rate.Limit(2), 2),
		breakerFails: 3,
		breakerReset: 60 * time.Second,
		nowFn:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	st := gobreaker.Settings{
		Name:     "scoreboard",
		Interval: 60 * time.Second,
		Timeout:  c.breakerReset,
	}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= c.breakerFails
	}
	c.breaker = gobreaker.NewCircuitBreaker(st)

	return c
}

// LiveGames returns the games currently in progress.
func (c *Client) LiveGames(ctx context.Context) ([]Game, error) {
	games, err := c.scoreboard(ctx)
	if err != nil {
		return nil, err
	}
	live := games[:0]
	for _, g := range games {
		if g.Live() {
			live = append(live, g)
		}
	}
	return live, nil
}

// Schedule returns every game on today's scoreboard, any state.
func (c *Client) Schedule(ctx context.Context) ([]Game, error) {
	return c.scoreboard(ctx)
}

func (c *Client) scoreboard(ctx context.Context) ([]Game, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchScoreboard(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("espn: scoreboard: %w", err)
	}
	resp := out.(*scoreboardResponse)

	now := c.nowFn()
	games := make([]Game, 0, len(resp.Events))
	for _, ev := range resp.Events {
		if g, ok := parseGame(ev, now); ok {
			games = append(games, g)
		}
	}
	return games, nil
}

func (c *Client) fetchScoreboard(ctx context.Context) (*scoreboardResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + "/scoreboard?" + scoreboardQuery
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var sb scoreboardResponse
	if err := json.NewDecoder(resp.Body).Decode(&sb); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &sb, nil
}

// parseGame flattens one scoreboard event. Events without exactly two
// competitors are dropped.
func parseGame(ev scoreboardEvent, now time.Time) (Game, bool) {
	if len(ev.Competitions) == 0 {
		return Game{}, false
	}
	comp := ev.Competitions[0]
	if len(comp.Competitors) != 2 {
		return Game{}, false
	}

	var home, away *competitor
	for i := range comp.Competitors {
		switch comp.Competitors[i].HomeAway {
		case "home":
			home = &comp.Competitors[i]
		case "away":
			away = &comp.Competitors[i]
		}
	}
	if home == nil || away == nil {
		return Game{}, false
	}

	g := Game{
		ID:        ev.ID,
		Name:      away.Team.DisplayName + " @ " + home.Team.DisplayName,
		State:     comp.Status.Type.State,
		HomeTeam:  home.Team.DisplayName,
		AwayTeam:  away.Team.DisplayName,
		HomeAbbr:  home.Team.Abbreviation,
		AwayAbbr:  away.Team.Abbreviation,
		HomeRank:  home.CuratedRank.Current,
		AwayRank:  away.CuratedRank.Current,
		HomeScore: parseScore(home.Score),
		AwayScore: parseScore(away.Score),
		Period:    comp.Status.Period,
		Clock:     comp.Status.DisplayClock,
		FetchedAt: now,
	}
	if t, err := time.Parse("2006-01-02T15:04Z07:00", ev.Date); err == nil {
		g.StartTime = t
	}

	clockMin := parseClock(comp.Status.DisplayClock)
	g.MinutesRemaining = minutesRemaining(comp.Status.Period, clockMin)

	if len(comp.Odds) > 0 {
		applyOdds(&g, comp.Odds[0])
	}
	return g, true
}

func parseScore(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// parseClock converts a "MM:SS" display clock to fractional minutes.
func parseClock(clock string) float64 {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0
	}
	mins, err1 := strconv.Atoi(parts[0])
	secs, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0
	}
	return float64(mins) + float64(secs)/60
}

// minutesRemaining maps period and clock onto full-game minutes: a
// first-half clock has the whole second half still ahead of it, and
// overtime counts only its own clock.
func minutesRemaining(period int, clockMin float64) float64 {
	m := clockMin
	if period == 1 {
		m = halfMinutes + clockMin
	}
	return math.Round(m*10) / 10
}

// applyOdds resolves the feed's favorite-relative lines into a
// home-relative spread, positive when the home team is favored.
func applyOdds(g *Game, odds oddsBlock) {
	g.OverUnder = odds.OverUnder
	g.Details = odds.Details

	if line, err := strconv.ParseFloat(odds.PointSpread.Home.Close.Line, 64); err == nil && line != 0 {
		g.Spread = -line
		return
	}
	if odds.Spread != 0 {
		if odds.AwayTeamOdds.Favorite {
			g.Spread = -odds.Spread
		} else {
			g.Spread = odds.Spread
		}
	}
}
