// Package bref scrapes team game logs and schedules from basketball-reference.
package bref

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/features"
	"github.com/fortuna/augur/internal/ingest/fetch"
	"github.com/fortuna/augur/internal/reconciliation"
	"github.com/fortuna/augur/internal/sport"
)

const (
	// BaseURL of basketball-reference.
	BaseURL = "https://www.basketball-reference.com"

	// Source tags stored game rows.
	Source = "bref"
)

// gamelogColumns maps data-stat attributes to stat names.
var gamelogColumns = map[string]string{
	"team_game_score":     "points",
	"opp_team_game_score": "opponent_points",
	"fg":                  "field_goals",
	"fga":                 "field_goals_attempted",
	"fg_pct":              "field_goals_percentage",
	"fg3":                 "three_point_field_goals",
	"fg3a":                "three_point_field_goals_attempted",
	"fg3_pct":             "three_point_field_goals_percentage",
	"ft":                  "free_throws",
	"fta":                 "free_throws_attempted",
	"ft_pct":              "free_throws_percentage",
	"orb":                 "offensive_rebounds",
	"trb":                 "total_rebounds",
	"ast":                 "assists",
	"stl":                 "steals",
	"blk":                 "blocks",
	"tov":                 "turnovers",
	"pf":                  "personal_fouls",
	"opp_fg":              "opponent_field_goals",
	"opp_fga":             "opponent_field_goals_attempted",
	"opp_fg_pct":          "opponent_field_goals_percentage",
	"opp_fg3":             "opponent_three_point_field_goals",
	"opp_fg3a":            "opponent_three_point_field_goals_attempted",
	"opp_fg3_pct":         "opponent_three_point_field_goals_percentage",
	"opp_ft":              "opponent_free_throws",
	"opp_fta":             "opponent_free_throws_attempted",
	"opp_ft_pct":          "opponent_free_throws_percentage",
	"opp_orb":             "opponent_offensive_rebounds",
	"opp_trb":             "opponent_total_rebounds",
	"opp_ast":             "opponent_assists",
	"opp_stl":             "opponent_steals",
	"opp_blk":             "opponent_blocks",
	"opp_tov":             "opponent_turnovers",
	"opp_pf":              "opponent_personal_fouls",
}

// CurrentSeason returns the season label for a date: seasons are named by
// the year they end, and a new one starts in September.
func CurrentSeason(now time.Time) int {
	if now.Month() >= time.September {
		return now.Year() + 1
	}
	return now.Year()
}

// FranchiseCode returns the code a franchise used in a season, and false for
// seasons before the franchise existed.
func FranchiseCode(team string, season int) (string, bool) {
	switch strings.ToLower(team) {
	case "brk", "njn":
		if season < 2013 {
			return "njn", true
		}
		return "brk", true
	case "cho", "cha":
		switch {
		case season < 2005:
			return "", false
		case season < 2015:
			return "cha", true
		}
		return "cho", true
	case "okc", "sea":
		if season < 2009 {
			return "sea", true
		}
		return "okc", true
	case "mem", "van":
		if season < 2002 {
			return "van", true
		}
		return "mem", true
	case "nop", "noh", "nok":
		switch {
		case season < 2003:
			return "", false
		case season < 2006:
			return "noh", true
		case season < 2008:
			return "nok", true
		case season < 2014:
			return "noh", true
		}
		return "nop", true
	}
	return strings.ToLower(team), true
}

// Scraper reads basketball-reference pages.
type Scraper struct {
	client  fetch.Fetcher
	baseURL string
	teams   *reconciliation.Registry
	logger  *zap.Logger
}

// NewScraper creates a scraper. An empty baseURL uses BaseURL.
func NewScraper(client fetch.Fetcher, baseURL string, logger *zap.Logger) *Scraper {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		teams:   reconciliation.Teams(sport.NBA),
		logger:  logger.Named("bref"),
	}
}

// Gamelog scrapes a team's completed games for a season. Games are stored
// under the current franchise code.
func (s *Scraper) Gamelog(ctx context.Context, team string, season int) ([]features.Game, error) {
	code, ok := FranchiseCode(team, season)
	if !ok {
		return nil, nil
	}
	url := fmt.Sprintf("%s/teams/%s/%d/gamelog/", s.baseURL, strings.ToUpper(code), season)
	doc, err := s.client.Document(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %d gamelog: %w", team, season, err)
	}
	games := ParseGamelog(doc, s.teams.Canonical(code), s.teams)
	s.logger.Debug("parsed gamelog",
		zap.String("team", team),
		zap.Int("season", season),
		zap.Int("games", len(games)),
	)
	return games, nil
}

// Schedule scrapes a team's unplayed games for a season.
func (s *Scraper) Schedule(ctx context.Context, team string, season int) ([]features.Game, error) {
	code, ok := FranchiseCode(team, season)
	if !ok {
		return nil, nil
	}
	url := fmt.Sprintf("%s/teams/%s/%d_games.html", s.baseURL, strings.ToUpper(code), season)
	doc, err := s.client.Document(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %d schedule: %w", team, season, err)
	}
	return ParseSchedule(doc, s.teams.Canonical(code), s.teams), nil
}

// ParseGamelog reads the regular-season game log table.
func ParseGamelog(doc *goquery.Document, team string, teams *reconciliation.Registry) []features.Game {
	var games []features.Game
	doc.Find(`tr[id^="team_game_log"]`).Each(func(_ int, tr *goquery.Selection) {
		date, err := parseDate(cell(tr, "date"))
		if err != nil {
			return
		}
		opp := strings.ToLower(cell(tr, "opp_name_abbr"))
		if opp == "" {
			return
		}
		g := features.Game{
			Entity:   team,
			Opponent: teams.Canonical(opp),
			Date:     date,
			Home:     cell(tr, "game_location") != "@",
			Win:      cell(tr, "team_game_result") == "W",
			Played:   true,
			Stats:    make(map[string]float64, len(gamelogColumns)),
		}
		for col, name := range gamelogColumns {
			g.Stats[name] = number(cell(tr, col))
		}
		games = append(games, g)
	})
	return games
}

// ParseSchedule reads the season schedule, keeping games without a result.
func ParseSchedule(doc *goquery.Document, team string, teams *reconciliation.Registry) []features.Game {
	var games []features.Game
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if _, classed := tr.Attr("class"); classed {
			return
		}
		td := tr.Find(`td[data-stat="date_game"]`)
		if td.Length() == 0 {
			return
		}
		if cell(tr, "game_result") != "" {
			return
		}
		raw, ok := td.Attr("csk")
		if !ok {
			raw = strings.TrimSpace(td.Text())
		}
		date, err := parseDate(raw)
		if err != nil {
			return
		}
		opp, ok := teams.CodeFor(cell(tr, "opp_name"))
		if !ok {
			return
		}
		games = append(games, features.Game{
			Entity:   team,
			Opponent: opp,
			Date:     date,
			Home:     cell(tr, "game_location") != "@",
		})
	})
	return games
}

func cell(tr *goquery.Selection, stat string) string {
	return strings.TrimSpace(tr.Find(`td[data-stat="` + stat + `"]`).First().Text())
}

var dateLayouts = []string{"2006-01-02", "20060102", "Mon, Jan 2, 2006", "Jan 2, 2006"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	// schedule csk values carry a game suffix, e.g. 202410220BOS
	if len(s) > 8 && s[0] >= '0' && s[0] <= '9' && !strings.Contains(s, "-") {
		s = s[:8]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func number(s string) float64 {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
