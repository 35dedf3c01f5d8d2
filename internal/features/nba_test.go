package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seasonGames plays bos against nyk on consecutive November days. bos scores
// 100+i and nyk 90+i in game i.
func seasonGames(n int) []Game {
	var games []Game
	for i := 0; i < n; i++ {
		date := day(2023, 11, i+1)
		bos, nyk := float64(100+i), float64(90+i)
		games = append(games,
			Game{Entity: "bos", Opponent: "nyk", Date: date, Home: true, Win: true, Played: true,
				Stats: map[string]float64{"points": bos, "opponent_points": nyk}},
			Game{Entity: "nyk", Opponent: "bos", Date: date, Win: false, Played: true,
				Stats: map[string]float64{"points": nyk, "opponent_points": bos}},
		)
	}
	return games
}

func TestProcessNBA(t *testing.T) {
	games := seasonGames(7)
	rows := ProcessNBA(GroupHistories(games), games, DefaultNBAOptions())
	require.Len(t, rows, 4)

	var last Row
	for _, r := range rows {
		if r.Entity == "bos" && r.Date.Equal(day(2023, 11, 7)) {
			last = r
		}
	}
	require.Equal(t, "bos", last.Entity)

	assert.True(t, last.HasHistory)
	assert.True(t, last.Home)
	assert.InDelta(t, 105, last.Features["last_1_team_points"], 1e-9)
	assert.InDelta(t, 103, last.Features["last_5_team_points"], 1e-9)
	assert.InDelta(t, 95, last.Features["last_1_opp_points"], 1e-9)
	assert.InDelta(t, 1, last.Features["last_5_team_wins"], 1e-9)
	assert.InDelta(t, 0, last.Features["last_5_opp_wins"], 1e-9)

	spread, ok := last.Label("team_spread")
	require.True(t, ok)
	assert.InDelta(t, -10, spread, 1e-9)
	total, _ := last.Label("game_total")
	assert.InDelta(t, 202, total, 1e-9)
}

func TestProcessNBAUpcomingHasNoLabels(t *testing.T) {
	games := seasonGames(6)
	games = append(games, Game{Entity: "bos", Opponent: "nyk", Date: day(2023, 11, 20)})

	rows := ProcessNBA(GroupHistories(games), games, DefaultNBAOptions())
	var upcoming []Row
	for _, r := range rows {
		if !r.Played {
			upcoming = append(upcoming, r)
		}
	}
	require.Len(t, upcoming, 1)
	assert.Empty(t, upcoming[0].Labels)
	assert.True(t, upcoming[0].HasHistory)
}

func TestBalance(t *testing.T) {
	row := func(entity, opponent string, date time.Time, won, history bool) Row {
		return Row{Entity: entity, Opponent: opponent, Date: date, Played: true, Result: won, HasHistory: history}
	}
	rows := []Row{
		row("bos", "nyk", day(2024, 1, 1), true, true),
		row("nyk", "bos", day(2024, 1, 1), false, true),
		row("mia", "chi", day(2024, 1, 2), true, true),
		row("chi", "mia", day(2024, 1, 2), false, true),
		row("lal", "gsw", day(2024, 1, 3), true, false),
	}

	got := Balance(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "chi", got[0].Entity, "second contest takes the loser's side")
	assert.False(t, got[0].Result)
	assert.Equal(t, "bos", got[1].Entity, "first contest takes the winner's side")
	assert.True(t, got[1].Result)
}

func TestProcessNBAWithoutSingleGameWindow(t *testing.T) {
	games := seasonGames(10)
	opts := NBAOptions{Windows: []int{5, 3}, MinGameNumber: 5}

	rows := ProcessNBA(GroupHistories(games), games, opts)
	require.Len(t, rows, 10)
	for _, r := range rows {
		assert.True(t, r.HasHistory, "%s on %s", r.Entity, r.Date.Format("2006-01-02"))
		assert.NotContains(t, r.Features, "last_1_team_points")
	}
	assert.Len(t, Balance(rows), 5)
}

func TestProcessNBAYearWindows(t *testing.T) {
	games := seasonGames(7)
	rows := ProcessNBA(GroupHistories(games), games, NBAOptions{Windows: []int{1}, YearWindows: []int{1}, MinGameNumber: 5})

	var last Row
	for _, r := range rows {
		if r.Entity == "bos" && r.Date.Equal(day(2023, 11, 7)) {
			last = r
		}
	}
	require.Equal(t, "bos", last.Entity)

	assert.InDelta(t, 615, last.Features["last_1_yr_team_points"], 1e-9, "counting stats are summed")
	assert.InDelta(t, 555, last.Features["last_1_yr_opp_points"], 1e-9)
	assert.InDelta(t, 6, last.Features["last_1_yr_team_wins"], 1e-9)
	assert.Contains(t, last.Features, "last_1_yr_team_field_goals_percentage")

	noYears := ProcessNBA(GroupHistories(games), games, NBAOptions{Windows: []int{1}, MinGameNumber: 5})
	assert.NotContains(t, noYears[0].Features, "last_1_yr_team_points")
}

func TestBalanceVisitsContestsInPairOrder(t *testing.T) {
	row := func(entity, opponent string, date time.Time, won bool) Row {
		return Row{Entity: entity, Opponent: opponent, Date: date, Played: true, Result: won, HasHistory: true}
	}
	rows := []Row{
		row("mia", "chi", day(2024, 1, 2), true),
		row("chi", "mia", day(2024, 1, 2), false),
		row("bos", "nyk", day(2024, 1, 3), true),
		row("nyk", "bos", day(2024, 1, 3), false),
	}

	got := Balance(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "bos", got[0].Entity, "bos-nyk sorts first and takes the winner's side")
	assert.Equal(t, "chi", got[1].Entity, "chi-mia then takes the loser's side")
}
