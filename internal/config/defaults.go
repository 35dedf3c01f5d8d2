package config

import (
	"time"

	"github.com/fortuna/augur/internal/sport"
)

// NBATeams are the basketball-reference franchise codes scraped by default.
var NBATeams = []string{
	"atl", "bos", "brk", "cho", "chi", "cle", "dal", "den", "det", "gsw",
	"hou", "ind", "lac", "lal", "mem", "mia", "mil", "min", "nop", "nyk",
	"okc", "orl", "phi", "pho", "por", "sac", "sas", "tor", "uta", "was",
}

// NFLTeams are the pro-football-reference franchise codes scraped by default.
var NFLTeams = []string{
	"crd", "atl", "rav", "buf", "car", "chi", "cin", "cle", "dal", "den",
	"det", "gnb", "htx", "clt", "jax", "kan", "rai", "sdg", "ram", "mia",
	"min", "nwe", "nor", "nyg", "nyj", "phi", "pit", "sea", "sfo", "tam",
	"oti", "was",
}

// DefaultSports returns the built-in per-sport configuration.
func DefaultSports() map[sport.Sport]SportConfig {
	return map[sport.Sport]SportConfig{
		sport.NBA: {
			Enabled:     true,
			BaseURL:     "https://www.basketball-reference.com",
			OddsURL:     "https://sportsbook.draftkings.com/leagues/basketball/nba",
			Entities:    NBATeams,
			Windows:     []int{5, 1},
			YearWindows: []int{1},
			Models: map[string]string{
				string(sport.Moneyline): "models/nba/moneyline.json",
				string(sport.Spread):    "models/nba/spread.json",
				string(sport.Total):     "models/nba/total.json",
			},
			PickThreshold:    -120,
			DailyHour:        9,
			OddsPollInterval: 30 * time.Minute,
			SettleLookback:   7 * 24 * time.Hour,
			HistoryStartYear: 2008,
		},
		sport.NFL: {
			Enabled:     true,
			BaseURL:     "https://www.pro-football-reference.com",
			OddsURL:     "https://sportsbook.draftkings.com/leagues/football/nfl",
			Entities:    NFLTeams,
			Windows:     []int{3, 1},
			YearWindows: []int{1},
			Models: map[string]string{
				string(sport.Moneyline): "models/nfl/moneyline.json",
				string(sport.Spread):    "models/nfl/spread.json",
				string(sport.Total):     "models/nfl/total.json",
			},
			PickThreshold:    -120,
			DailyHour:        8,
			OddsPollInterval: time.Hour,
			SettleLookback:   7 * 24 * time.Hour,
			HistoryStartYear: 2005,
		},
		sport.UFC: {
			Enabled:     true,
			BaseURL:     "http://ufcstats.com",
			OddsURL:     "https://sportsbook.draftkings.com/leagues/mma/ufc",
			YearWindows: []int{1, 5},
			Models: map[string]string{
				string(sport.Moneyline):       "models/ufc/moneyline.json",
				string(sport.GoesTheDistance): "models/ufc/goes_the_distance.json",
			},
			PickThreshold:    -120,
			DailyHour:        10,
			OddsPollInterval: 2 * time.Hour,
			SettleLookback:   7 * 24 * time.Hour,
			HistoryStartYear: 2000,
		},
		sport.ATP: {
			Enabled:     true,
			BaseURL:     "https://www.tennisabstract.com",
			OddsURL:     "https://sportsbook.draftkings.com/sports/tennis",
			Windows:     []int{1, 5, 25},
			YearWindows: []int{1},
			Models: map[string]string{
				string(sport.Moneyline):  "models/atp/moneyline.json",
				string(sport.TotalGames): "models/atp/total_games.json",
			},
			PickThreshold:    -120,
			DailyHour:        6,
			OddsPollInterval: time.Hour,
			SettleLookback:   7 * 24 * time.Hour,
			HistoryStartYear: 2010,
		},
	}
}
