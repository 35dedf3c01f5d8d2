// Package pfr scrapes team seasons and play-by-play from
// pro-football-reference.
package pfr

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/features"
	"github.com/fortuna/augur/internal/ingest/fetch"
	"github.com/fortuna/augur/internal/reconciliation"
	"github.com/fortuna/augur/internal/sport"
)

const (
	// BaseURL of pro-football-reference.
	BaseURL = "https://www.pro-football-reference.com"

	// Source tags stored game rows.
	Source = "pfr"

	// StrongPlayYards is the gain that counts a play toward strong drives.
	StrongPlayYards = 15
)

var seasonColumns = map[string]string{
	"pts_off":        "points",
	"pts_def":        "opponent_points",
	"first_down_off": "first_downs_off",
	"yards_off":      "total_yards_off",
	"pass_yds_off":   "pass_yards_off",
	"rush_yds_off":   "rush_yards_off",
	"to_off":         "turnovers_off",
	"first_down_def": "first_downs_def",
	"yards_def":      "total_yards_def",
	"pass_yds_def":   "pass_yards_def",
	"rush_yds_def":   "rush_yards_def",
	"to_def":         "turnovers_def",
}

// SeasonGame is one row of a team's season table.
type SeasonGame struct {
	Game     features.Game
	Week     int
	Outcome  string
	Boxscore string
}

// Completed reports whether the game has a result (ties included).
func (g SeasonGame) Completed() bool {
	return g.Outcome == "W" || g.Outcome == "L" || g.Outcome == "T"
}

// Scraper reads pro-football-reference pages.
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
		teams:   reconciliation.Teams(sport.NFL),
		logger:  logger.Named("pfr"),
	}
}

// Season scrapes a team's season. With lookBackWeeks > 0 only the weeks
// just before the first unplayed week are kept. Completed games get their
// strong-drive counts from the play-by-play page; a failed play-by-play
// fetch leaves them at zero.
func (s *Scraper) Season(ctx context.Context, team string, year, lookBackWeeks int) ([]features.Game, error) {
	url := fmt.Sprintf("%s/teams/%s/%d.htm", s.baseURL, team, year)
	doc, err := s.client.Document(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %d season: %w", team, year, err)
	}

	rows := ParseSeason(doc, team)
	current := CurrentWeek(rows)

	games := make([]features.Game, 0, len(rows))
	for _, r := range rows {
		if lookBackWeeks > 0 && current > 0 && r.Week < current-lookBackWeeks {
			continue
		}
		if r.Completed() && r.Boxscore != "" {
			html, err := s.client.Get(ctx, s.baseURL+r.Boxscore)
			if err != nil {
				s.logger.Warn("play-by-play fetch failed",
					zap.String("team", team),
					zap.String("opponent", r.Game.Opponent),
					zap.Error(err),
				)
			} else {
				own, opp := StrongDrives(html, team, r.Game.Opponent, s.teams)
				r.Game.Stats["team_strong_drives"] = float64(own)
				r.Game.Stats["opp_strong_drives"] = float64(opp)
			}
		}
		games = append(games, r.Game)
	}
	return games, nil
}

// CurrentWeek returns the first week without a result, or 0.
func CurrentWeek(rows []SeasonGame) int {
	for _, r := range rows {
		if r.Outcome != "W" && r.Outcome != "L" {
			return r.Week
		}
	}
	return 0
}

// ParseSeason reads the schedule and game results table.
func ParseSeason(doc *goquery.Document, team string) []SeasonGame {
	table := doc.Find("table").FilterFunction(func(_ int, t *goquery.Selection) bool {
		return t.Find(`th[data-stat="week_num"]`).Length() > 0
	}).First()

	var out []SeasonGame
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		week := strings.TrimSpace(tr.Find(`th[data-stat="week_num"]`).Text())
		if week == "" || week == "Bye Week" || week == "Playoffs" {
			return
		}
		weekNum, err := strconv.Atoi(week)
		if err != nil {
			return
		}

		dateTD := tr.Find(`td[data-stat="game_date"]`)
		date, ok := dateTD.Attr("csk")
		if !ok || date == "" {
			date = strings.TrimSpace(dateTD.Text())
		}
		if date == "" || date == "Playoffs" {
			return
		}

		opp := opponent(tr.Find(`td[data-stat="opp"]`))
		if opp == "" || opp == "bye week" {
			return
		}

		clock := cell(tr, "game_time")
		outcome := cell(tr, "game_outcome")
		home := strconv.FormatBool(cell(tr, "game_location") != "@")
		win := resultFlag(outcome)
		g := features.Game{
			Entity:   team,
			Opponent: opp,
			Date:     features.KickoffTime(date, clock),
			Home:     features.ParseHome(home),
			Win:      features.ParseWin(win),
			Played:   outcome == "W" || outcome == "L" || outcome == "T",
			Stats: map[string]float64{
				"week":               float64(weekNum),
				"team_strong_drives": 0,
				"opp_strong_drives":  0,
			},
			Attrs: map[string]string{"kickoff": clock, "home": home, "win": win},
		}
		for col, name := range seasonColumns {
			g.Stats[name] = number(cell(tr, col))
		}

		box, _ := tr.Find(`td[data-stat="boxscore_word"] a[href]`).Attr("href")
		if box == "" {
			tr.Find(`a[href^="/boxscores/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
				box, _ = a.Attr("href")
				return false
			})
		}

		out = append(out, SeasonGame{Game: g, Week: weekNum, Outcome: outcome, Boxscore: box})
	})
	return out
}

// resultFlag maps W and L to "1" and "0". Ties and unplayed games are "".
func resultFlag(outcome string) string {
	switch outcome {
	case "W":
		return "1"
	case "L":
		return "0"
	}
	return ""
}

// opponent reads the team code from the opponent link (/teams/buf/2024.htm).
func opponent(td *goquery.Selection) string {
	if href, ok := td.Find("a").Attr("href"); ok {
		if parts := strings.Split(href, "/"); len(parts) > 2 {
			return strings.ToLower(parts[2])
		}
	}
	return strings.ToLower(strings.TrimSpace(td.Text()))
}

var lastNumber = regexp.MustCompile(`-?\d+`)

// StrongDrives counts plays of StrongPlayYards or more for each side from a
// box score page's play-by-play table. Possession starts with the coin toss
// receiver and flips at divider rows, the second half and overtime.
// Interception and punt yardage is credited to the defending side; fumbles
// and field goals are not counted.
func StrongDrives(html, team, opp string, teams *reconciliation.Registry) (int, int) {
	pbp := pbpTable(html)
	if pbp == nil {
		return 0, 0
	}

	withBall := team
	var receivers []string
	var tokens []string
	pbp.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		detailTD := tr.Find(`td[data-stat="detail"]`)
		detail := detailTD.Text()
		hasDetail := detailTD.Length() > 0

		if hasDetail && strings.Contains(detail, "coin toss") {
			if before, _, ok := strings.Cut(detail, "to receive"); ok {
				words := strings.Split(before, " ")
				if len(words) >= 2 {
					if code, ok := teams.CodeFor(words[len(words)-2]); ok {
						receivers = append(receivers, code)
						if receivers[0] == team {
							withBall = team
						} else {
							withBall = opp
						}
						if len(receivers) > 1 {
							return
						}
					}
				}
			}
		}

		if tr.HasClass("divider") {
			tokens = append(tokens, "divider")
		}

		if one := tr.Find(`td[data-stat="onecell"]`); one.Length() > 0 {
			txt := one.Text()
			if strings.Contains(txt, "3rd Quarter") {
				tokens = append(tokens, "newhalf")
				return
			}
			if strings.Contains(txt, "Overtime") && !strings.Contains(txt, "End of Overtime") {
				tokens = append(tokens, "overtime")
				return
			}
		}

		if !hasDetail {
			tokens = append(tokens, "")
			return
		}
		tokens = append(tokens, playToken(detail))
	})

	if len(tokens) > 0 {
		tokens = tokens[1:]
	}
	compact := tokens[:0]
	for _, t := range tokens {
		if t != "" {
			compact = append(compact, t)
		}
	}

	other := func(side string) string {
		if side == opp {
			return team
		}
		return opp
	}

	counts := map[string]int{team: 0, opp: 0}
	for i, t := range compact {
		switch t {
		case "newhalf":
			if len(receivers) > 0 && receivers[0] == opp {
				withBall = team
			} else {
				withBall = opp
			}
			continue
		case "overtime":
			if len(receivers) > 1 {
				withBall = receivers[1]
			} else {
				withBall = other(withBall)
			}
			continue
		case "divider":
			if i == 0 || (compact[i-1] != "newhalf" && compact[i-1] != "overtime") {
				withBall = other(withBall)
			}
			continue
		}

		if yards(t) < StrongPlayYards {
			continue
		}
		switch {
		case strings.Contains(t, "interception"), strings.Contains(t, "punts"):
			counts[other(withBall)]++
		case strings.Contains(t, "fumble"), strings.Contains(t, "field goal"):
		default:
			counts[withBall]++
		}
	}
	return counts[team], counts[opp]
}

// playToken reduces a play description to its yardage and play type.
func playToken(detail string) string {
	token := ""
	if nums := lastNumber.FindAllString(detail, -1); len(nums) > 0 {
		token = nums[len(nums)-1]
	}
	if strings.Contains(detail, "intercepted") {
		token += " interception"
	}
	if strings.Contains(detail, "fumble") {
		token += " fumble"
	}
	if strings.Contains(detail, "field goal") {
		token += " field goal"
	}
	if strings.Contains(strings.ToLower(detail), "penalty") && !strings.Contains(detail, "(no play)") {
		token = "penalty"
	}
	if strings.Contains(detail, "punts") {
		words := strings.Split(detail, " ")
		if words[len(words)-1] == "yards" || !strings.Contains(detail, "returned") {
			token = "punts"
		} else {
			token += " punts"
		}
	}
	if strings.Contains(detail, "kicks off") && !strings.Contains(detail, "returned") {
		token = "kickoff"
	}
	return token
}

func yards(token string) int {
	nums := lastNumber.FindAllString(token, -1)
	if len(nums) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(nums[len(nums)-1])
	return n
}

// pbpTable finds the play-by-play table, which is shipped inside an HTML
// comment.
func pbpTable(html string) *goquery.Selection {
	for _, chunk := range []string{html, fetch.Uncomment(html)} {
		doc, err := fetch.ParseHTML(chunk)
		if err != nil {
			continue
		}
		if t := doc.Find("table#pbp"); t.Length() > 0 {
			return t.First()
		}
	}
	return nil
}

func cell(tr *goquery.Selection, stat string) string {
	return strings.TrimSpace(tr.Find(`td[data-stat="` + stat + `"]`).First().Text())
}

func number(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
