package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/features"
	"github.com/fortuna/augur/internal/sport"
)

func TestMigrationsAreOrdered(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_create_game_history.sql", names[0])
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}

func TestStatMapRoundTrip(t *testing.T) {
	v, err := StatMap{"points": 101}.Value()
	require.NoError(t, err)

	var m StatMap
	require.NoError(t, m.Scan(v))
	assert.Equal(t, 101.0, m["points"])

	var empty StatMap
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)
	assert.Error(t, empty.Scan(42))
}

func TestNewForm(t *testing.T) {
	games := []HistoryGame{
		{Win: true, Stats: StatMap{"points": 110}},
		{Win: false, Stats: StatMap{"points": 90}},
		{Win: true, Stats: StatMap{"points": 100}},
	}
	f := NewForm("nba", "bos", games)
	assert.Equal(t, 2, f.Wins)
	assert.Equal(t, 1, f.Losses)
	assert.InDelta(t, 100.0, f.AvgStats["points"], 1e-9)
}

func TestHistoryGameConversion(t *testing.T) {
	g := features.Game{
		Entity:   "bos",
		Opponent: "nyk",
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Home:     true,
		Win:      true,
		Played:   true,
		Stats:    map[string]float64{"points": 120},
	}
	stored := NewHistoryGame(sport.NBA, g, "bref")
	assert.Equal(t, "nba", stored.Sport)
	assert.Equal(t, "bref", stored.Source)
	assert.Equal(t, g, stored.Game())
}

func TestProfilePlayerHeight(t *testing.T) {
	p := Profile{Name: "Carlos Alcaraz"}
	p.Height.String, p.Height.Valid = "183", true
	assert.Equal(t, 183, p.Player().Height)
}
