package tennisabstract

import (
	"context"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/ingest/fetch"
)

// playerHTML has a win with a tiebreak, a retirement, a loss in three sets
// and a scheduled match.
const playerHTML = `<html><head><script>
var dob = 20030505;
var ht = 183;
var hand = 'R';
var backhand = '2';
var country = 'ESP';
var matchmx = [
["20240714","Wimbledon","Grass","G","W","3","3",,"F","6-2 6-2 7-6(4)","5","Novak Djokovic","2","2","","R","19870522","188","SRB","","148","6","1","90","60","45","18","15","3","4","3","5","100","65","40","15","14","5","9","1"],
["20240601","Roland Garros","Clay","G","W","3","3",,"R16","6-3 RET","5","Felix Auger Aliassime","21","21","","R","20000808","193","CAN","","60","2","0","30","20","15","5","5","1","1","1","2","28","18","10","4","5","2","3","2"],
["20240520","Rome Masters","Clay","M","L","3","2",,"R32","6-4 3-6 7-5","3","Jannik Sinner","1","1","","R","20010816","191","ITA","","130","4","2","80","50","35","15","13","4","6","8","1","85","55","40","15","13","3","4","2"],
["20240820","US Open","Hard","G","U","3","3",,"R128","","5","Li Tu","185",,,"R","","","AUS","","","","","","","","","","","","","","","","","","","","",""]
];
</script></head></html>`

type pages map[string]string

func (p pages) Get(_ context.Context, url string) (string, error) { return p[url], nil }

func (p pages) Document(ctx context.Context, url string) (*goquery.Document, error) {
	body, _ := p.Get(ctx, url)
	return fetch.ParseHTML(body)
}

func TestParseProfile(t *testing.T) {
	p := ParseProfile(playerHTML, "Carlos Alcaraz")
	assert.Equal(t, "Carlos Alcaraz", p.Name)
	assert.Equal(t, time.Date(2003, 5, 5, 0, 0, 0, 0, time.UTC), p.DOB)
	assert.Equal(t, 183, p.Height)
	assert.Equal(t, "R", p.Hand)
	assert.Equal(t, "2", p.Backhand)
	assert.Equal(t, "ESP", p.Country)
}

func TestParseMatches(t *testing.T) {
	games, err := ParseMatches(playerHTML, "Carlos Alcaraz")
	require.NoError(t, err)
	require.Len(t, games, 3, "the retirement is dropped")

	final := games[0]
	assert.Equal(t, "Novak Djokovic", final.Opponent)
	assert.True(t, final.Played)
	assert.True(t, final.Win)
	assert.Equal(t, time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC), final.Date)
	assert.Equal(t, "Grass", final.Attr("surface"))
	assert.Equal(t, "F", final.Attr("round"))
	assert.Equal(t, "5", final.Attr("best_of"))
	assert.Equal(t, "Wimbledon", final.Attr("tournament"))
	assert.Equal(t, 3.0, final.Stats["rank"])
	assert.Equal(t, 2.0, final.Stats["opponent_rank"])
	assert.Equal(t, 7.0, final.Stats["w3"])
	assert.Equal(t, 6.0, final.Stats["l3"])
	assert.Equal(t, 3.0, final.Stats["player_sets"])
	assert.Equal(t, 0.0, final.Stats["opponent_sets"])
	assert.Equal(t, 0.0, final.Stats["w4"])
	assert.InDelta(t, 6.7, final.Stats["ace_rate"], 1e-9)
	assert.InDelta(t, 66.7, final.Stats["first_serve_rate"], 1e-9)
	assert.InDelta(t, 75.0, final.Stats["first_serve_points_won"], 1e-9)
	assert.InDelta(t, 60.0, final.Stats["second_serve_points_won"], 1e-9)
	assert.InDelta(t, 75.0, final.Stats["break_points_saved"], 1e-9)
	assert.InDelta(t, 44.4, final.Stats["break_points_converted"], 1e-9)

	loss := games[1]
	assert.False(t, loss.Win)
	assert.Equal(t, 4.0, loss.Stats["w1"])
	assert.Equal(t, 6.0, loss.Stats["l1"])
	assert.Equal(t, 6.0, loss.Stats["w2"])
	assert.Equal(t, 1.0, loss.Stats["player_sets"])
	assert.Equal(t, 2.0, loss.Stats["opponent_sets"])

	next := games[2]
	assert.Equal(t, "Li Tu", next.Opponent)
	assert.False(t, next.Played)
	assert.Equal(t, 185.0, next.Stats["opponent_rank"])
	assert.NotContains(t, next.Stats, "ace_rate")
}

func TestParseMatchesWithoutArray(t *testing.T) {
	games, err := ParseMatches("<html></html>", "Nobody")
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, percent(5, 0))
	assert.Equal(t, 33.3, percent(1, 3))
	assert.Equal(t, 50.0, percent(1, 2))
}

func TestPlayer(t *testing.T) {
	s := NewScraper(pages{}, "", nil)
	url := s.PlayerURL("Carlos Alcaraz")
	assert.Equal(t, BaseURL+"/cgi-bin/player-classic.cgi?p=CarlosAlcaraz&f=ACareerqq", url)

	s = NewScraper(pages{url: playerHTML}, "", nil)
	profile, games, err := s.Player(context.Background(), "Carlos Alcaraz")
	require.NoError(t, err)
	assert.Equal(t, "ESP", profile.Country)
	assert.Len(t, games, 3)
}

func TestRankedPlayers(t *testing.T) {
	s := NewScraper(pages{BaseURL + rankingsPath: `<table id="reportable">
<tr><th>Rank</th><th>Player</th></tr>
<tr><td>1</td><td><a href="x">Jannik&nbsp;Sinner</a></td></tr>
<tr><td>2</td><td><a href="y">Carlos Alcaraz</a></td></tr>
</table>`}, "", nil)

	names, err := s.RankedPlayers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Jannik Sinner", "Carlos Alcaraz"}, names)
}
