package features

import (
	"strconv"
	"time"

	"github.com/fortuna/augur/internal/sport"
)

// NBAStats are the per-game team stats averaged into NBA features.
var NBAStats = []string{
	"wins", "losses",
	"points", "opponent_points",
	"field_goals", "field_goals_attempted", "field_goals_percentage",
	"three_point_field_goals", "three_point_field_goals_attempted", "three_point_field_goals_percentage",
	"free_throws", "free_throws_attempted", "free_throws_percentage",
	"offensive_rebounds", "total_rebounds",
	"assists", "steals", "blocks", "turnovers", "personal_fouls",
	"opponent_field_goals", "opponent_field_goals_attempted", "opponent_field_goals_percentage",
	"opponent_three_point_field_goals", "opponent_three_point_field_goals_attempted", "opponent_three_point_field_goals_percentage",
	"opponent_free_throws", "opponent_free_throws_attempted", "opponent_free_throws_percentage",
	"opponent_offensive_rebounds", "opponent_total_rebounds",
	"opponent_assists", "opponent_steals", "opponent_blocks", "opponent_turnovers", "opponent_personal_fouls",
}

// NBARatios are averaged rather than summed in year windows.
var NBARatios = []string{
	"field_goals_percentage", "opponent_field_goals_percentage",
	"three_point_field_goals_percentage", "opponent_three_point_field_goals_percentage",
	"free_throws_percentage", "opponent_free_throws_percentage",
}

// NBAOptions tunes NBA feature generation.
type NBAOptions struct {
	// Windows are trailing game counts, e.g. 5 and 1.
	Windows []int
	// YearWindows are trailing calendar-year spans summed with LastYears.
	YearWindows []int
	// MinGameNumber skips the first games of each season.
	MinGameNumber int
}

// DefaultNBAOptions mirrors the deployed NBA models.
func DefaultNBAOptions() NBAOptions {
	return NBAOptions{Windows: []int{5, 1}, YearWindows: []int{1}, MinGameNumber: 5}
}

// ProcessNBA turns every team-perspective game into a feature row using
// both teams' trailing form. Games early in a season are skipped.
func ProcessNBA(histories Histories, games []Game, opts NBAOptions) []Row {
	if len(opts.Windows) == 0 {
		opts.Windows = DefaultNBAOptions().Windows
	}

	rows := make([]Row, 0, len(games))
	for _, g := range games {
		teamHistory := histories[g.Entity]
		if SeasonGameNumber(teamHistory, g.Date, time.October) <= opts.MinGameNumber {
			continue
		}
		oppHistory := histories[g.Opponent]

		row := Row{
			Sport:      sport.NBA,
			Entity:     g.Entity,
			Opponent:   g.Opponent,
			Date:       g.Date,
			Home:       g.Home,
			Played:     g.Played,
			Result:     g.Win,
			HasHistory: teamHistory.PlayedBefore(g.Date),
			Features:   Features{},
		}

		for _, n := range opts.Windows {
			team, _ := LastN(teamHistory, g.Date, n, windowPrefix(n, "team"), NBAStats)
			opp, _ := LastN(oppHistory, g.Date, n, windowPrefix(n, "opp"), NBAStats)
			row.Features.Merge(team, opp)
		}
		if len(opts.YearWindows) > 0 {
			row.Features.Merge(
				SideYears(teamHistory, g.Date, opts.YearWindows, "team", NBAStats, NBARatios),
				SideYears(oppHistory, g.Date, opts.YearWindows, "opp", NBAStats, NBARatios),
			)
		}

		if g.Played {
			pts := g.Stat("points")
			oppPts := g.Stat("opponent_points")
			row.Points = pts
			row.OpponentPoints = oppPts
			row.setLabel("team_spread", oppPts-pts)
			row.setLabel("opp_spread", pts-oppPts)
			row.setLabel("game_total", pts+oppPts)
		}

		rows = append(rows, row)
	}
	return rows
}

func windowPrefix(n int, side string) string {
	return "last_" + strconv.Itoa(n) + "_" + side + "_"
}
