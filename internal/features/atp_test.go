package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/sport"
)

// tennisMatch returns both perspectives of a two-set match; aWon decides the
// winner and sets are 6-4 6-3.
func tennisMatch(date time.Time, aWon bool, aRank, bRank float64) (Game, Game) {
	winSets := map[string]float64{"w1": 6, "w2": 6, "l1": 4, "l2": 3, "player_sets": 2, "opponent_sets": 0}
	loseSets := map[string]float64{"w1": 4, "w2": 3, "l1": 6, "l2": 6, "player_sets": 0, "opponent_sets": 2}

	aStats, bStats := map[string]float64{}, map[string]float64{}
	src := [2]map[string]float64{winSets, loseSets}
	if !aWon {
		src[0], src[1] = src[1], src[0]
	}
	for k, v := range src[0] {
		aStats[k] = v
	}
	for k, v := range src[1] {
		bStats[k] = v
	}
	aStats["rank"], aStats["opponent_rank"], aStats["ace_rate"] = aRank, bRank, 10
	bStats["rank"], bStats["opponent_rank"], bStats["ace_rate"] = bRank, aRank, 5

	attrs := map[string]string{"surface": "Hard", "round": "QF", "best_of": "3", "tournament": "Miami Masters"}
	return Game{Entity: "A", Opponent: "B", Date: date, Win: aWon, Played: true, Stats: aStats, Attrs: attrs},
		Game{Entity: "B", Opponent: "A", Date: date, Win: !aWon, Played: true, Stats: bStats, Attrs: attrs}
}

func TestProcessATP(t *testing.T) {
	a1, b1 := tennisMatch(day(2024, 1, 10), true, 12, 20)
	a2, b2 := tennisMatch(day(2024, 2, 10), false, 10, 18)
	a3, b3 := tennisMatch(day(2024, 3, 10), true, 9, 15)
	stray := Game{Entity: "A", Opponent: "C", Date: day(2024, 3, 1), Win: true, Played: true}

	all := []Game{a1, a2, a3, b1, b2, b3}
	histories := GroupHistories(all)
	games := []Game{b1, b2, b3, a1, a2, a3, stray}

	players := map[string]Player{
		"A": {Name: "A", DOB: day(2000, 5, 1), Height: 185, Hand: "R"},
		"B": {Name: "B", DOB: day(1998, 5, 1), Height: 190, Hand: "L"},
	}

	rows := ProcessATP(histories, games, players, DefaultATPOptions())
	require.Len(t, rows, 3)

	first := rows[0]
	assert.Equal(t, "A", first.Entity, "first row takes the winner's side")
	assert.True(t, first.Result)
	assert.Equal(t, 12.0, first.Features["player_rank"])
	assert.Equal(t, 20.0, first.Features["opponent_rank"])
	assert.Equal(t, 1.0, first.Features["opponent_hand"])
	assert.Equal(t, 23.0, first.Features["player_age"])
	assert.False(t, first.HasHistory)
	total, _ := first.Label("total_games")
	assert.Equal(t, 19.0, total)
	won, _ := first.Label("player_total_games_won")
	assert.Equal(t, 12.0, won)

	second := rows[1]
	assert.Equal(t, "A", second.Entity, "second row takes the loser's side")
	assert.False(t, second.Result)

	third := rows[2]
	assert.Equal(t, "A", third.Entity)
	assert.True(t, third.HasHistory)
	assert.Equal(t, 0.0, third.Features["surface"])
	assert.Equal(t, 7.0, third.Features["round_count"])
	assert.Equal(t, 1.0, third.Features["p_last_1_losses"])
	assert.Equal(t, 1.0, third.Features["p_last_5_wins"])
	assert.Equal(t, 1.0, third.Features["p_last_5_hard_count"])
	assert.InDelta(t, 20.0/5, third.Features["p_last_5_avg_ace_rate"], 1e-9)
	assert.InDelta(t, -2, third.Features["p_last_5_avg_rank_step"], 1e-9)
	assert.InDelta(t, 10, third.Features["p_last_1_yr_avg_ace_rate"], 1e-9)
	assert.Equal(t, 1.0, third.Features["o_last_1_wins"])
}

func TestATPEncodings(t *testing.T) {
	assert.True(t, SkipScore("6-4 3-1 RET"))
	assert.True(t, SkipScore("W/O"))
	assert.True(t, SkipScore("Def."))
	assert.False(t, SkipScore("7-6(5) 6-4"))

	assert.Equal(t, 1, SurfaceIndex("Clay"))
	assert.Equal(t, -1, SurfaceIndex(""))
	assert.Equal(t, 9, RoundIndex("F"))
	assert.Equal(t, 1, BestOfIndex("5"))
	assert.Equal(t, 0, HandIndex("r"))
}

func TestLabelTotalGames(t *testing.T) {
	r := Row{Played: true, Labels: map[string]float64{"player_total_games_won": 11}}
	r.SetQuote(sport.TotalGames, Quote{Line: 10.5})

	got := LabelTotalGames([]Row{r})
	require.Len(t, got, 1)
	over, ok := got[0].Label("total_games_result")
	require.True(t, ok)
	assert.Equal(t, 1.0, over)
}
