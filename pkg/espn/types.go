package espn

import "time"

// Game states as the scoreboard reports them.
const (
	StatePre  = "pre"
	StateIn   = "in"
	StatePost = "post"
)

// Game is one scoreboard entry, flattened from the feed's nested JSON.
// Spread is home-relative: positive means the home team was favored.
// Spread and OverUnder are zero when the feed carries no line.
type Game struct {
	ID        string
	Name      string
	State     string
	StartTime time.Time

	HomeTeam  string
	AwayTeam  string
	HomeAbbr  string
	AwayAbbr  string
	HomeRank  int
	AwayRank  int
	HomeScore int
	AwayScore int

	Period           int
	Clock            string
	MinutesRemaining float64

	Spread    float64
	OverUnder float64
	Details   string

	FetchedAt time.Time
}

// Live reports whether the game is in progress.
func (g Game) Live() bool {
	return g.State == StateIn
}

// Final reports whether the game has ended.
func (g Game) Final() bool {
	return g.State == StatePost
}

// Lead returns home score minus away score.
func (g Game) Lead() int {
	return g.HomeScore - g.AwayScore
}

// --- Wire types ---

type scoreboardResponse struct {
	Events []scoreboardEvent `json:"events"`
}

type scoreboardEvent struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	Name         string        `json:"name"`
	Competitions []competition `json:"competitions"`
}

type competition struct {
	Competitors []competitor `json:"competitors"`
	Status      gameStatus   `json:"status"`
	Odds        []oddsBlock  `json:"odds"`
}

type gameStatus struct {
	DisplayClock string `json:"displayClock"`
	Period       int    `json:"period"`
	Type         struct {
		State string `json:"state"`
	} `json:"type"`
}

type competitor struct {
	HomeAway string `json:"homeAway"`
	Score    string `json:"score"`
	Team     struct {
		DisplayName  string `json:"displayName"`
		Abbreviation string `json:"abbreviation"`
	} `json:"team"`
	CuratedRank struct {
		Current int `json:"current"`
	} `json:"curatedRank"`
}

type oddsBlock struct {
	Details      string  `json:"details"`
	OverUnder    float64 `json:"overUnder"`
	Spread       float64 `json:"spread"`
	AwayTeamOdds struct {
		Favorite bool `json:"favorite"`
	} `json:"awayTeamOdds"`
	PointSpread struct {
		Home struct {
			Close struct {
				Line string `json:"line"`
			} `json:"close"`
		} `json:"home"`
	} `json:"pointSpread"`
}
