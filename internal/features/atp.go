package features

import (
	"strconv"
	"strings"
	"time"

	"github.com/fortuna/augur/internal/sport"
)

// Player is a tennisabstract player profile.
type Player struct {
	Name     string
	DOB      time.Time
	Height   int
	Hand     string
	Backhand string
	Country  string
}

// ATPRates are the per-match percentage stats averaged into ATP windows.
var ATPRates = []string{
	"ace_rate",
	"double_fault_rate",
	"first_serve_rate",
	"first_serve_points_won",
	"second_serve_points_won",
	"break_points_saved",
	"dominance_ratio",
	"points_won_percent",
	"return_points_won_percent",
	"break_points_converted",
}

var atpCounts = []string{
	"player_1_games", "player_2_games", "player_3_games",
	"opponent_1_games", "opponent_2_games", "opponent_3_games",
	"player_sets", "opponent_sets",
}

var atpSurfaces = []string{"hard", "clay", "grass", "carpet"}

var atpRounds = map[string]int{
	"Q1": 0, "Q2": 1, "Q3": 2, "R128": 3, "R64": 4, "R32": 5, "R16": 6,
	"QF": 7, "SF": 8, "F": 9, "RR": 10, "BR": 11, "ER": 12,
}

// SurfaceIndex encodes a court surface; -1 if unknown.
func SurfaceIndex(surface string) int {
	s := strings.ToLower(strings.TrimSpace(surface))
	for i, v := range atpSurfaces {
		if v == s {
			return i
		}
	}
	return -1
}

// RoundIndex encodes a tournament round; -1 if unknown.
func RoundIndex(round string) int {
	if i, ok := atpRounds[strings.ToUpper(strings.TrimSpace(round))]; ok {
		return i
	}
	return -1
}

// HandIndex encodes R as 0 and L as 1; -1 if unknown.
func HandIndex(hand string) int {
	switch strings.ToUpper(strings.TrimSpace(hand)) {
	case "R":
		return 0
	case "L":
		return 1
	}
	return -1
}

// BestOfIndex encodes best of 3 as 0 and best of 5 as 1.
func BestOfIndex(bestOf string) int {
	switch strings.TrimSpace(bestOf) {
	case "3":
		return 0
	case "5":
		return 1
	}
	return -1
}

// SkipScore reports scores of retirements, walkovers and defaults.
func SkipScore(score string) bool {
	return strings.Contains(score, "RET") ||
		strings.Contains(score, "W/O") ||
		strings.Contains(strings.ToLower(score), "def")
}

func newATPWindow(prefix string) Features {
	f := Features{
		prefix + "wins":          0,
		prefix + "losses":        0,
		prefix + "avg_rank_step": 0,
	}
	for _, s := range atpSurfaces {
		f[prefix+s+"_count"] = 0
	}
	for _, s := range atpCounts {
		f[prefix+s] = 0
	}
	for _, s := range ATPRates {
		f[prefix+"avg_"+s] = 0
	}
	return f
}

func addATPGame(f Features, prefix string, g Game) {
	if g.Win {
		f[prefix+"wins"]++
		if s := strings.ToLower(g.Attr("surface")); SurfaceIndex(s) >= 0 {
			f[prefix+s+"_count"]++
		}
	} else {
		f[prefix+"losses"]++
	}
	for i := 1; i <= 3; i++ {
		n := strconv.Itoa(i)
		f[prefix+"player_"+n+"_games"] += g.Stats["w"+n]
		f[prefix+"opponent_"+n+"_games"] += g.Stats["l"+n]
	}
	f[prefix+"player_sets"] += g.Stats["player_sets"]
	f[prefix+"opponent_sets"] += g.Stats["opponent_sets"]
	for _, s := range ATPRates {
		f[prefix+"avg_"+s] += g.Stats[s]
	}
}

// rankStep averages the change in ranking between consecutive matches,
// newest first. Positive means the ranking number is growing.
func rankStep(ranks []float64) float64 {
	if len(ranks) < 2 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(ranks); i++ {
		sum += ranks[i] - ranks[i+1]
	}
	return sum / float64(len(ranks)-1)
}

// ATPWindows summarises a player's form over the last n matches (rates
// divided by n) and over trailing years (rates divided by the match count).
func ATPWindows(h History, date time.Time, windows, years []int) Features {
	out := Features{}
	prior := h.Before(date)

	for _, n := range windows {
		prefix := "last_" + strconv.Itoa(n) + "_"
		f := newATPWindow(prefix)
		ranks := make([]float64, 0, n)
		for i, g := range prior {
			if i >= n {
				break
			}
			addATPGame(f, prefix, g)
			ranks = append(ranks, g.Stats["rank"])
		}
		f[prefix+"avg_rank_step"] = rankStep(ranks)
		for _, s := range ATPRates {
			f[prefix+"avg_"+s] /= float64(max(n, 1))
		}
		out.Merge(f)
	}

	for _, y := range years {
		prefix := YearPrefix(y)
		f := newATPWindow(prefix)
		from := YearsBefore(date, y)
		var ranks []float64
		for _, g := range prior {
			if g.Date.Before(from) {
				break
			}
			addATPGame(f, prefix, g)
			ranks = append(ranks, g.Stats["rank"])
		}
		f[prefix+"avg_rank_step"] = rankStep(ranks)
		for _, s := range ATPRates {
			f[prefix+"avg_"+s] /= float64(max(len(ranks), 1))
		}
		out.Merge(f)
	}
	return out
}

// ATPOptions tunes ATP feature generation.
type ATPOptions struct {
	Windows     []int
	YearWindows []int
}

// DefaultATPOptions mirrors the deployed ATP models.
func DefaultATPOptions() ATPOptions {
	return ATPOptions{Windows: []int{1, 5, 25}, YearWindows: []int{1}}
}

// TotalGames sums the set scores stored as w1..w5 (own) or l1..l5.
func TotalGames(g Game, own bool) float64 {
	key := "l"
	if own {
		key = "w"
	}
	var total float64
	for i := 1; i <= 5; i++ {
		total += g.Stats[key+strconv.Itoa(i)]
	}
	return total
}

// ProcessATP builds one row per match between two players who both have a
// scraped history. Completed matches alternate between the winner's and the
// loser's perspective; scheduled matches keep the scraped perspective.
func ProcessATP(histories Histories, games []Game, players map[string]Player, opts ATPOptions) []Row {
	if len(opts.Windows) == 0 && len(opts.YearWindows) == 0 {
		opts = DefaultATPOptions()
	}

	seen := make(map[string]struct{}, len(games))
	rows := make([]Row, 0, len(games)/2)
	counter := 0
	for _, g := range games {
		if _, ok := histories[g.Entity]; !ok {
			continue
		}
		if _, ok := histories[g.Opponent]; !ok {
			continue
		}
		key := MatchKey(g.Entity, g.Opponent, g.Date)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		player, opponent := g.Entity, g.Opponent
		playerRank, opponentRank := g.Stats["rank"], g.Stats["opponent_rank"]
		playerGames, opponentGames := TotalGames(g, true), TotalGames(g, false)
		win := g.Win
		if g.Played {
			// even rows from the winner's side, odd rows from the loser's
			wantWin := counter%2 == 0
			if g.Win != wantWin {
				player, opponent = opponent, player
				playerRank, opponentRank = opponentRank, playerRank
				playerGames, opponentGames = opponentGames, playerGames
				win = !win
			}
			counter++
		}

		pp, op := players[player], players[opponent]
		pf := ATPWindows(histories[player], g.Date, opts.Windows, opts.YearWindows)
		of := ATPWindows(histories[opponent], g.Date, opts.Windows, opts.YearWindows)

		row := Row{
			Sport:    sport.ATP,
			Entity:   player,
			Opponent: opponent,
			Date:     g.Date,
			Played:   g.Played,
			Result:   win && g.Played,
			Features: Features{
				"surface":         float64(SurfaceIndex(g.Attr("surface"))),
				"round_count":     float64(RoundIndex(g.Attr("round"))),
				"best_of":         float64(BestOfIndex(g.Attr("best_of"))),
				"player_rank":     playerRank,
				"opponent_rank":   opponentRank,
				"player_hand":     float64(HandIndex(pp.Hand)),
				"opponent_hand":   float64(HandIndex(op.Hand)),
				"player_age":      float64(AgeAt(pp.DOB, g.Date)),
				"opponent_age":    float64(AgeAt(op.DOB, g.Date)),
				"player_height":   float64(pp.Height),
				"opponent_height": float64(op.Height),
			},
			Attrs: map[string]string{
				"tournament": g.Attr("tournament"),
				"surface":    g.Attr("surface"),
				"round":      g.Attr("round"),
			},
		}
		row.Features.Merge(pf.Prefixed("p_"), of.Prefixed("o_"))
		row.HasHistory = len(histories[player].Before(g.Date)) > 0 || len(histories[opponent].Before(g.Date)) > 0

		if g.Played {
			row.Points = playerGames
			row.OpponentPoints = opponentGames
			row.setLabel("player_total_games_won", playerGames)
			row.setLabel("opponent_total_games_won", opponentGames)
			row.setLabel("total_games", playerGames+opponentGames)
		}
		rows = append(rows, row)
	}
	return rows
}

// LabelTotalGames keeps rows with a total games quote and sets
// total_games_result (over) for completed matches. The quote is the row
// player's games-won line.
func LabelTotalGames(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		q, ok := r.Quote(sport.TotalGames)
		if !ok {
			continue
		}
		if r.Played {
			r.Labels = cloneLabels(r.Labels)
			total, _ := r.Label("player_total_games_won")
			r.setLabel("total_games_result", boolFloat(total > q.Line))
		}
		out = append(out, r)
	}
	return out
}
