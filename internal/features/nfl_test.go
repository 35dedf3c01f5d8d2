package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/sport"
)

func TestKickoffTime(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		clock string
		want  time.Time
	}{
		{"eastern season", "2025-09-07", "1:00PM ET", time.Date(2025, 9, 7, 17, 0, 0, 0, time.UTC)},
		{"legacy utc", "2020-09-13", "1:00PM", time.Date(2020, 9, 13, 13, 0, 0, 0, time.UTC)},
		{"short token is noon", "2020-09-13", "--", time.Date(2020, 9, 13, 12, 0, 0, 0, time.UTC)},
		{"bad date", "Sept 13", "1:00PM", fallbackKickoff},
		{"bad clock", "2020-09-13", "13h00", fallbackKickoff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(KickoffTime(tt.date, tt.clock)), "got %v", KickoffTime(tt.date, tt.clock))
		})
	}
}

func TestParseWinAndHome(t *testing.T) {
	assert.True(t, ParseWin("W"))
	assert.True(t, ParseWin("1.0"))
	assert.True(t, ParseWin("win"))
	assert.False(t, ParseWin("L"))
	assert.False(t, ParseWin("0"))

	assert.True(t, ParseHome("True"))
	assert.True(t, ParseHome("1"))
	assert.False(t, ParseHome("@"))
	assert.False(t, ParseHome(""))
}

func TestProcessNFLSkipsEarlyWeeks(t *testing.T) {
	var games []Game
	for week := 1; week <= 5; week++ {
		date := day(2023, 9, 7*week)
		games = append(games,
			Game{Entity: "kan", Opponent: "den", Date: date, Win: true, Played: true,
				Stats: map[string]float64{"week": float64(week), "points": 24, "opponent_points": 17}},
			Game{Entity: "den", Opponent: "kan", Date: date, Played: true,
				Stats: map[string]float64{"week": float64(week), "points": 17, "opponent_points": 24}},
		)
	}
	games = append(games, Game{Entity: "kan", Opponent: "kan", Date: day(2023, 10, 30),
		Stats: map[string]float64{"week": 8}})

	rows := ProcessNFL(GroupHistories(games), games, DefaultNFLOptions())
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.NotEqual(t, r.Entity, r.Opponent)
		assert.Contains(t, []string{"4", "5"}, r.Attrs["week"])
		assert.True(t, r.HasHistory)
	}
}

func TestLabelSpread(t *testing.T) {
	won := Row{Entity: "kan", Opponent: "den", Played: true, Labels: map[string]float64{"team_spread": -7}}

	covered := won
	covered.SetQuote(sport.Spread, Quote{Line: -3.5, OpponentLine: 3.5, Price: -110, Opposite: -110})
	push := won
	push.SetQuote(sport.Spread, Quote{Line: -7})
	upcoming := Row{Entity: "kan", Opponent: "den"}
	upcoming.SetQuote(sport.Spread, Quote{Line: -3})

	got := LabelSpread([]Row{covered, push, won, upcoming})
	require.Len(t, got, 2)

	margin, _ := got[0].Label("spread_margin")
	assert.InDelta(t, 3.5, margin, 1e-9)
	result, _ := got[0].Label("spread_result")
	assert.Equal(t, 1.0, result)
	_, ok := won.Label("spread_result")
	assert.False(t, ok, "input labels must not be mutated")

	_, ok = got[1].Label("spread_result")
	assert.False(t, ok)
}

func TestLabelTotal(t *testing.T) {
	r := Row{Played: true, Labels: map[string]float64{"game_total": 48}}
	r.SetQuote(sport.Total, Quote{Line: 44.5})

	got := LabelTotal([]Row{r, {Played: true}})
	require.Len(t, got, 1)
	over, _ := got[0].Label("total_result")
	assert.Equal(t, 1.0, over)
}

func TestCleanNFL(t *testing.T) {
	games := []Game{
		{Entity: "kan", Opponent: "den", Date: day(2025, 1, 5), Played: true,
			Attrs: map[string]string{"home": "True", "win": "W"}},
		{Entity: "den", Opponent: "kan", Date: day(2025, 1, 5), Home: true, Win: true, Played: true,
			Attrs: map[string]string{"home": "0", "win": "0.0"}},
		{Entity: "kan", Opponent: "kan", Date: day(2024, 9, 8)},
		{Entity: "buf", Opponent: "mia", Date: day(2024, 9, 12), Home: true,
			Attrs: map[string]string{"win": "", "year": "2023"}},
	}

	got := CleanNFL(games)
	require.Len(t, got, 3)

	assert.True(t, got[0].Home)
	assert.True(t, got[0].Win)
	assert.Equal(t, "2024", got[0].Attrs["year"], "January games belong to the previous season")

	assert.False(t, got[1].Home)
	assert.False(t, got[1].Win)

	assert.True(t, got[2].Home, "no home attribute keeps the parsed flag")
	assert.False(t, got[2].Win)
	assert.Equal(t, "2023", got[2].Attrs["year"])

	assert.NotContains(t, games[0].Attrs, "year", "input attributes are not modified")
}

func TestProcessNFLYearWindows(t *testing.T) {
	var games []Game
	for week := 1; week <= 5; week++ {
		date := day(2023, 9, 7*week)
		games = append(games,
			Game{Entity: "kan", Opponent: "den", Date: date, Win: true, Played: true,
				Stats: map[string]float64{"week": float64(week), "points": 24, "opponent_points": 17}},
			Game{Entity: "den", Opponent: "kan", Date: date, Played: true,
				Stats: map[string]float64{"week": float64(week), "points": 17, "opponent_points": 24}},
		)
	}

	rows := ProcessNFL(GroupHistories(games), games, NFLOptions{Windows: []int{3}, YearWindows: []int{1}, MinWeek: 3})
	require.Len(t, rows, 4)

	var kan Row
	for _, r := range rows {
		if r.Entity == "kan" && r.Attrs["week"] == "5" {
			kan = r
		}
	}
	require.Equal(t, "kan", kan.Entity)
	assert.True(t, kan.HasHistory)
	assert.Equal(t, "2023", kan.Attrs["year"])
	assert.InDelta(t, 96, kan.Features["last_1_yr_team_points"], 1e-9)
	assert.InDelta(t, 4, kan.Features["last_1_yr_opp_losses"], 1e-9)
	assert.NotContains(t, kan.Features, "last_1_team_points")
}
