package hoops

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTeam reduces a team name, abbreviation or ticker code to a bare
// lowercase alphanumeric form so the scoreboard feed and the venue can be
// compared directly ("St. John's" -> "stjohns", "TEX A&M" -> "texam").
func NormalizeTeam(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)

	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TickerParts is a venue market ticker split into its dash segments:
// SERIES-EVENT-TEAM, where EVENT embeds the date and both team codes and
// TEAM is the code of the side the yes contract backs. Spread and total
// tickers append the line to the team segment; the digits are kept in
// Strike-bearing markets and ignored for matching.
type TickerParts struct {
	Series string
	Event  string
	Team   string
}

// ParseTicker splits a market ticker. Missing segments come back empty.
func ParseTicker(ticker string) TickerParts {
	parts := strings.Split(ticker, "-")
	var p TickerParts
	if len(parts) > 0 {
		p.Series = parts[0]
	}
	if len(parts) > 1 {
		p.Event = parts[1]
	}
	if len(parts) > 2 {
		p.Team = strings.TrimRightFunc(parts[2], func(r rune) bool {
			return (r >= '0' && r <= '9') || r == '.'
		})
	}
	return p
}

// MatchTicker reports whether a market ticker belongs to the given game
// and, if so, whether the contract's yes side backs the home team. Both
// team codes must appear in the ticker's event segment before the yes-side
// code is resolved, which keeps same-code collisions across the slate from
// producing false matches.
func MatchTicker(g GameState, ticker string) (homeIsYes bool, ok bool) {
	p := ParseTicker(ticker)
	if p.Event == "" || p.Team == "" {
		return false, false
	}

	home := NormalizeTeam(g.HomeAbbr)
	away := NormalizeTeam(g.AwayAbbr)
	if home == "" || away == "" {
		return false, false
	}

	event := NormalizeTeam(p.Event)
	if !strings.Contains(event, home) || !strings.Contains(event, away) {
		return false, false
	}

	switch NormalizeTeam(p.Team) {
	case home:
		return true, true
	case away:
		return false, true
	}

	// Feeds occasionally abbreviate differently; fall back to the full
	// school name before giving up.
	code := NormalizeTeam(p.Team)
	if nameMatches(code, g.HomeTeam) {
		return true, true
	}
	if nameMatches(code, g.AwayTeam) {
		return false, true
	}
	return false, false
}

func nameMatches(code, name string) bool {
	n := NormalizeTeam(name)
	if n == "" || code == "" {
		return false
	}
	return strings.HasPrefix(n, code) || strings.HasPrefix(code, n)
}
