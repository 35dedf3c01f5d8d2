package bref

import (
	"context"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/ingest/fetch"
)

const gamelogHTML = `<table><tbody>
<tr id="team_game_log_reg.1">
  <td data-stat="date">2024-10-22</td>
  <td data-stat="game_location"></td>
  <td data-stat="opp_name_abbr">NYK</td>
  <td data-stat="team_game_result">W</td>
  <td data-stat="team_game_score">132</td>
  <td data-stat="opp_team_game_score">109</td>
  <td data-stat="fg_pct">.557</td>
  <td data-stat="trb">42</td>
</tr>
<tr id="team_game_log_reg.2">
  <td data-stat="date">2024-10-24</td>
  <td data-stat="game_location">@</td>
  <td data-stat="opp_name_abbr">WAS</td>
  <td data-stat="team_game_result">L</td>
  <td data-stat="team_game_score">118</td>
  <td data-stat="opp_team_game_score">122</td>
</tr>
<tr class="thead"><td data-stat="date">Date</td></tr>
</tbody></table>`

const scheduleHTML = `<table><tbody>
<tr><td data-stat="date_game" csk="202410220BOS">Tue, Oct 22, 2024</td>
  <td data-stat="game_location"></td><td data-stat="opp_name">New York Knicks</td>
  <td data-stat="game_result">W</td></tr>
<tr><td data-stat="date_game" csk="202501100LAL">Fri, Jan 10, 2025</td>
  <td data-stat="game_location">@</td><td data-stat="opp_name">Los Angeles Lakers</td>
  <td data-stat="game_result"></td></tr>
<tr class="thead"><td data-stat="date_game">Date</td></tr>
</tbody></table>`

type pages map[string]string

func (p pages) Get(_ context.Context, url string) (string, error) { return p[url], nil }

func (p pages) Document(ctx context.Context, url string) (*goquery.Document, error) {
	body, _ := p.Get(ctx, url)
	return fetch.ParseHTML(body)
}

func TestFranchiseCode(t *testing.T) {
	tests := []struct {
		team   string
		season int
		want   string
		ok     bool
	}{
		{"brk", 2012, "njn", true},
		{"brk", 2013, "brk", true},
		{"cho", 2004, "", false},
		{"cho", 2014, "cha", true},
		{"cho", 2015, "cho", true},
		{"okc", 2008, "sea", true},
		{"mem", 2001, "van", true},
		{"nop", 2002, "", false},
		{"nop", 2005, "noh", true},
		{"nop", 2007, "nok", true},
		{"nop", 2013, "noh", true},
		{"nop", 2014, "nop", true},
		{"bos", 1999, "bos", true},
	}
	for _, tt := range tests {
		got, ok := FranchiseCode(tt.team, tt.season)
		assert.Equal(t, tt.ok, ok, "%s %d", tt.team, tt.season)
		assert.Equal(t, tt.want, got, "%s %d", tt.team, tt.season)
	}
}

func TestCurrentSeason(t *testing.T) {
	assert.Equal(t, 2026, CurrentSeason(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2025, CurrentSeason(time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)))
}

func TestGamelog(t *testing.T) {
	s := NewScraper(pages{BaseURL + "/teams/BOS/2025/gamelog/": gamelogHTML}, "", nil)

	games, err := s.Gamelog(context.Background(), "bos", 2025)
	require.NoError(t, err)
	require.Len(t, games, 2)

	first := games[0]
	assert.Equal(t, "bos", first.Entity)
	assert.Equal(t, "nyk", first.Opponent)
	assert.True(t, first.Home)
	assert.True(t, first.Win)
	assert.True(t, first.Played)
	assert.Equal(t, 132.0, first.Stats["points"])
	assert.Equal(t, 109.0, first.Stats["opponent_points"])
	assert.InDelta(t, 0.557, first.Stats["field_goals_percentage"], 1e-9)

	assert.False(t, games[1].Home)
	assert.False(t, games[1].Win)
}

func TestSchedule(t *testing.T) {
	s := NewScraper(pages{BaseURL + "/teams/BOS/2025_games.html": scheduleHTML}, "", nil)

	games, err := s.Schedule(context.Background(), "bos", 2025)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "lal", games[0].Opponent)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), games[0].Date)
	assert.False(t, games[0].Home)
	assert.False(t, games[0].Played)
}
