// Package tennisabstract scrapes ATP player match histories from
// tennisabstract.com player pages.
package tennisabstract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/features"
	"github.com/fortuna/augur/internal/ingest/fetch"
)

const (
	// BaseURL of tennisabstract.
	BaseURL = "https://www.tennisabstract.com"

	// Source tags stored match rows.
	Source = "tennisabstract"

	rankingsPath = "/reports/atpRankings.html"
)

// matchmx column indices.
const (
	colDate = iota
	colTournament
	colSurface
	colLevel
	colOutcome
	colRank
	colSeed
	colEntry
	colRound
	colScore
	colBestOf
	colOpponent
	colOpponentRank
	colOpponentSeed
	colOpponentEntry
	colOpponentHand
	colOpponentDOB
	colOpponentHeight
	colOpponentCountry
	_
	colMinutes
	colAces
	colDoubleFaults
	colServicePoints
	colFirstIn
	colFirstWon
	colSecondWon
	colServiceGames
	colBPSaved
	colBPFaced
	colOppAces
	colOppDoubleFaults
	colOppServicePoints
	colOppFirstIn
	colOppFirstWon
	colOppSecondWon
	colOppServiceGames
	colOppBPSaved
	colOppBPFaced
	colOpponentBackhand
)

var (
	matchmxPattern  = regexp.MustCompile(`(?s)var matchmx = (\[.*?\]);`)
	emptyBetween    = regexp.MustCompile(`,\s*,`)
	emptyFirst      = regexp.MustCompile(`\[\s*,`)
	emptyLast       = regexp.MustCompile(`,\s*\]`)
	parenthesised   = regexp.MustCompile(`\([^)]*\)`)
	nonDigits       = regexp.MustCompile(`[^0-9]`)
	dobPattern      = regexp.MustCompile(`var dob = (\d+);`)
	heightPattern   = regexp.MustCompile(`var ht = (\d+);`)
	handPattern     = regexp.MustCompile(`var hand = '(\w+)';`)
	backhandPattern = regexp.MustCompile(`var backhand = '(\w+)';`)
	countryPattern  = regexp.MustCompile(`var country = '(\w+)';`)
)

// Scraper reads tennisabstract pages.
type Scraper struct {
	client  fetch.Fetcher
	baseURL string
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
		logger:  logger.Named("tennisabstract"),
	}
}

// RankedPlayers lists the player names on the ATP rankings report.
func (s *Scraper) RankedPlayers(ctx context.Context) ([]string, error) {
	doc, err := s.client.Document(ctx, s.baseURL+rankingsPath)
	if err != nil {
		return nil, fmt.Errorf("fetching rankings: %w", err)
	}
	var names []string
	doc.Find("table#reportable tr").Each(func(_ int, tr *goquery.Selection) {
		a := tr.Find("a").First()
		if a.Length() == 0 {
			return
		}
		if name := strings.TrimSpace(strings.ReplaceAll(a.Text(), "\u00a0", " ")); name != "" {
			names = append(names, name)
		}
	})
	return names, nil
}

// PlayerURL is the career page of a player.
func (s *Scraper) PlayerURL(name string) string {
	return fmt.Sprintf("%s/cgi-bin/player-classic.cgi?p=%s&f=ACareerqq",
		s.baseURL, url.QueryEscape(strings.ReplaceAll(name, " ", "")))
}

// Player scrapes a player's profile and match history.
func (s *Scraper) Player(ctx context.Context, name string) (features.Player, []features.Game, error) {
	html, err := s.client.Get(ctx, s.PlayerURL(name))
	if err != nil {
		return features.Player{}, nil, fmt.Errorf("fetching player %s: %w", name, err)
	}
	profile := ParseProfile(html, name)
	games, err := ParseMatches(html, name)
	if err != nil {
		return profile, nil, fmt.Errorf("parsing matches of %s: %w", name, err)
	}
	s.logger.Debug("parsed player",
		zap.String("player", name),
		zap.Int("matches", len(games)),
	)
	return profile, games, nil
}

// ParseProfile reads the player variables embedded in the page script.
func ParseProfile(html, name string) features.Player {
	p := features.Player{Name: name}
	if m := dobPattern.FindStringSubmatch(html); m != nil {
		if dob, err := time.Parse("20060102", m[1]); err == nil {
			p.DOB = dob
		}
	}
	if m := heightPattern.FindStringSubmatch(html); m != nil {
		p.Height, _ = strconv.Atoi(m[1])
	}
	if m := handPattern.FindStringSubmatch(html); m != nil {
		p.Hand = m[1]
	}
	if m := backhandPattern.FindStringSubmatch(html); m != nil {
		p.Backhand = m[1]
	}
	if m := countryPattern.FindStringSubmatch(html); m != nil {
		p.Country = m[1]
	}
	return p
}

// ParseMatches reads the matchmx array. Completed matches ending in a
// retirement, walkover or default, or missing serve stats, are dropped.
// Scheduled matches (outcome U) are kept unplayed.
func ParseMatches(html, player string) ([]features.Game, error) {
	m := matchmxPattern.FindStringSubmatch(html)
	if m == nil {
		return nil, nil
	}
	raw := m[1]
	// the array is a JavaScript literal with elided elements
	raw = emptyBetween.ReplaceAllString(raw, ",null,")
	raw = emptyBetween.ReplaceAllString(raw, ",null,")
	raw = emptyFirst.ReplaceAllString(raw, "[null,")
	raw = emptyLast.ReplaceAllString(raw, ",null]")
	raw = strings.ReplaceAll(raw, `""`, "null")

	var rows [][]interface{}
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("decoding matchmx: %w", err)
	}

	games := make([]features.Game, 0, len(rows))
	for _, row := range rows {
		if g, ok := parseMatch(row, player); ok {
			games = append(games, g)
		}
	}
	return games, nil
}

func parseMatch(row []interface{}, player string) (features.Game, bool) {
	col := func(i int) string {
		if i >= len(row) || row[i] == nil {
			return ""
		}
		switch v := row[i].(type) {
		case string:
			return strings.TrimSpace(v)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
		return fmt.Sprint(row[i])
	}
	num := func(i int) float64 {
		f, _ := strconv.ParseFloat(col(i), 64)
		return f
	}

	date, err := time.Parse("20060102", col(colDate))
	if err != nil {
		return features.Game{}, false
	}
	outcome := col(colOutcome)
	scheduled := outcome == "U"
	score := col(colScore)
	if !scheduled && (features.SkipScore(score) || col(colFirstWon) == "" || col(colOppServicePoints) == "") {
		return features.Game{}, false
	}

	g := features.Game{
		Entity:   player,
		Opponent: col(colOpponent),
		Date:     date,
		Win:      outcome == "W",
		Played:   !scheduled,
		Stats: map[string]float64{
			"rank":              num(colRank),
			"opponent_rank":     num(colOpponentRank),
			"seed":              num(colSeed),
			"opponent_seed":     num(colOpponentSeed),
			"opponent_height":   num(colOpponentHeight),
			"opponent_backhand": num(colOpponentBackhand),
		},
		Attrs: map[string]string{
			"tournament":       col(colTournament),
			"surface":          col(colSurface),
			"level":            col(colLevel),
			"round":            col(colRound),
			"best_of":          col(colBestOf),
			"entry":            col(colEntry),
			"opponent_hand":    col(colOpponentHand),
			"opponent_dob":     col(colOpponentDOB),
			"opponent_country": col(colOpponentCountry),
			"score":            score,
		},
	}
	if g.Opponent == "" {
		return features.Game{}, false
	}
	if scheduled {
		return g, true
	}

	addSets(g.Stats, parenthesised.ReplaceAllString(score, ""), outcome == "W")

	for name, i := range map[string]int{
		"minutes":                 colMinutes,
		"aces":                    colAces,
		"double_faults":           colDoubleFaults,
		"service_points":          colServicePoints,
		"first_serves_in":         colFirstIn,
		"first_serve_won":         colFirstWon,
		"second_serve_won":        colSecondWon,
		"service_games":           colServiceGames,
		"break_points_saved_n":    colBPSaved,
		"break_points_faced":      colBPFaced,
		"opponent_aces":           colOppAces,
		"opponent_double_faults":  colOppDoubleFaults,
		"opponent_service_points": colOppServicePoints,
		"opponent_first_in":       colOppFirstIn,
		"opponent_first_won":      colOppFirstWon,
		"opponent_second_won":     colOppSecondWon,
		"opponent_service_games":  colOppServiceGames,
		"opponent_bp_saved":       colOppBPSaved,
		"opponent_bp_faced":       colOppBPFaced,
	} {
		g.Stats[name] = num(i)
	}
	addRates(g.Stats)
	return g, true
}

// addSets stores per-set games as w1..w5 (player) and l1..l5 (opponent)
// plus the sets each side won. Scores are written winner first.
func addSets(stats map[string]float64, score string, won bool) {
	for i := 1; i <= 5; i++ {
		n := strconv.Itoa(i)
		stats["w"+n], stats["l"+n] = 0, 0
	}
	stats["player_sets"], stats["opponent_sets"] = 0, 0

	for i, set := range strings.Fields(score) {
		if i >= 5 {
			break
		}
		a, b, ok := strings.Cut(set, "-")
		if !ok {
			continue
		}
		winner, _ := strconv.Atoi(nonDigits.ReplaceAllString(a, ""))
		loser, _ := strconv.Atoi(nonDigits.ReplaceAllString(b, ""))
		own, opp := float64(winner), float64(loser)
		if !won {
			own, opp = opp, own
		}
		n := strconv.Itoa(i + 1)
		stats["w"+n], stats["l"+n] = own, opp
		switch {
		case own > opp:
			stats["player_sets"]++
		case opp > own:
			stats["opponent_sets"]++
		}
	}
}

// addRates derives the percentage stats averaged into feature windows.
// Every ratio is 0 when its denominator is.
func addRates(s map[string]float64) {
	returnWon := s["opponent_service_points"] - (s["opponent_first_won"] + s["opponent_second_won"])
	oppReturnWon := s["service_points"] - (s["first_serve_won"] + s["second_serve_won"])
	pointsWon := s["first_serve_won"] + s["second_serve_won"] + returnWon
	allPoints := s["service_points"] + s["opponent_service_points"]

	s["ace_rate"] = percent(s["aces"], s["service_points"])
	s["double_fault_rate"] = percent(s["double_faults"], s["service_points"])
	s["first_serve_rate"] = percent(s["first_serves_in"], s["service_points"])
	s["first_serve_points_won"] = percent(s["first_serve_won"], s["first_serves_in"])
	s["second_serve_points_won"] = percent(s["second_serve_won"], s["service_points"]-s["first_serves_in"])
	s["break_points_saved"] = percent(s["break_points_saved_n"], s["break_points_faced"])
	s["dominance_ratio"] = percent(
		percent(returnWon, s["opponent_service_points"]),
		percent(oppReturnWon, s["service_points"]),
	)
	s["points_won_percent"] = percent(pointsWon, allPoints)
	s["return_points_won_percent"] = percent(returnWon, pointsWon)
	s["break_points_converted"] = percent(s["opponent_bp_faced"]-s["opponent_bp_saved"], s["opponent_bp_faced"])
}

// percent is num/den*100 rounded to one decimal, or 0 for a zero
// denominator.
func percent(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return math.Round(num/den*1000) / 10
}
