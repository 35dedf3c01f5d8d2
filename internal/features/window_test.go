package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func played(entity, opponent string, date time.Time, win bool, stats map[string]float64) Game {
	return Game{Entity: entity, Opponent: opponent, Date: date, Win: win, Played: true, Stats: stats}
}

func TestLastN(t *testing.T) {
	h := NewHistory([]Game{
		played("bos", "nyk", day(2024, 1, 1), true, map[string]float64{"points": 10}),
		played("bos", "nyk", day(2024, 1, 3), false, map[string]float64{"points": 20}),
		played("bos", "nyk", day(2024, 1, 5), true, map[string]float64{"points": 30}),
		{Entity: "bos", Opponent: "nyk", Date: day(2024, 1, 4)},
	})

	got, count := LastN(h, day(2024, 1, 6), 2, "last_2_team_", []string{"points", "wins"})
	assert.Equal(t, 2, count)
	assert.InDelta(t, 25, got["last_2_team_points"], 1e-9)
	assert.InDelta(t, 0.5, got["last_2_team_wins"], 1e-9)

	got, count = LastN(h, day(2024, 1, 1), 5, "p_", []string{"points"})
	assert.Equal(t, 0, count)
	assert.Equal(t, Features{"p_points": 0}, got)
}

func TestLastYears(t *testing.T) {
	h := NewHistory([]Game{
		played("bos", "nyk", day(2024, 1, 1), true, map[string]float64{"points": 10, "pct": 0.5}),
		played("bos", "nyk", day(2022, 1, 1), true, map[string]float64{"points": 20, "pct": 0.3}),
		played("bos", "nyk", day(2018, 1, 1), true, map[string]float64{"points": 40, "pct": 0.9}),
	})

	got := LastYears(h, day(2024, 6, 1), []int{1, 5}, []string{"points", "pct"}, []string{"pct"})
	assert.InDelta(t, 10, got["last_1_yr_points"], 1e-9)
	assert.InDelta(t, 0.5, got["last_1_yr_pct"], 1e-9)
	assert.InDelta(t, 30, got["last_5_yr_points"], 1e-9)
	assert.InDelta(t, 0.4, got["last_5_yr_pct"], 1e-9)
}

func TestSeasonGameNumber(t *testing.T) {
	h := NewHistory([]Game{
		played("bos", "nyk", day(2023, 9, 28), true, nil),
		played("bos", "nyk", day(2023, 10, 20), true, nil),
		played("bos", "nyk", day(2023, 11, 1), true, nil),
	})

	assert.Equal(t, 3, SeasonGameNumber(h, day(2023, 12, 1), time.October))
	assert.Equal(t, 3, SeasonGameNumber(h, day(2024, 2, 1), time.October))
	assert.Equal(t, 1, SeasonGameNumber(h, day(2023, 10, 20), time.October))
}

func TestYearsBefore(t *testing.T) {
	assert.Equal(t, day(2023, 2, 28), YearsBefore(day(2024, 2, 29), 1))
	assert.Equal(t, day(2020, 2, 29), YearsBefore(day(2024, 2, 29), 4))
	assert.Equal(t, day(2019, 6, 1), YearsBefore(day(2024, 6, 1), 5))
}
