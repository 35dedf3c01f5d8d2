package sport

import (
	"fmt"
	"strings"
)

// Sport identifies one of the supported competitions.
type Sport string

const (
	NBA Sport = "nba"
	NFL Sport = "nfl"
	UFC Sport = "ufc"
	ATP Sport = "atp"
)

// All lists every supported sport in pipeline order.
var All = []Sport{NBA, NFL, UFC, ATP}

// Market identifies a betting market.
type Market string

const (
	Moneyline       Market = "moneyline"
	Spread          Market = "spread"
	Total           Market = "total"
	GoesTheDistance Market = "goes_the_distance"
	TotalRounds     Market = "total_rounds"
	TotalGames      Market = "total_games"
)

// Parse converts user input into a Sport.
func Parse(s string) (Sport, error) {
	switch Sport(strings.ToLower(strings.TrimSpace(s))) {
	case NBA:
		return NBA, nil
	case NFL:
		return NFL, nil
	case UFC:
		return UFC, nil
	case ATP:
		return ATP, nil
	}
	return "", fmt.Errorf("unknown sport %q", s)
}

// Markets returns the markets predicted for a sport.
func (s Sport) Markets() []Market {
	switch s {
	case NBA, NFL:
		return []Market{Moneyline, Spread, Total}
	case UFC:
		return []Market{Moneyline, GoesTheDistance, TotalRounds}
	case ATP:
		return []Market{Moneyline, TotalGames}
	}
	return nil
}

// IsTeamSport reports whether entities are franchises rather than individuals.
func (s Sport) IsTeamSport() bool {
	return s == NBA || s == NFL
}

// String implements fmt.Stringer.
func (s Sport) String() string { return string(s) }
