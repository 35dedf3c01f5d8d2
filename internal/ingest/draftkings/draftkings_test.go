package draftkings

import (
	"context"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/ingest/fetch"
	"github.com/fortuna/augur/internal/sport"
)

const leagueHTML = `<html><script>window.__INITIAL_STATE__ = {"eventGroups":{"9034":{"events":{
"2":{"eventId":"2","urlName":"b-vs-c","name":"Jannik Sinner vs Carlos Alcaraz","eventGroupName":"ATP - Wimbledon","startDate":"2024-07-14T13:00:00.0000000Z"},
"1":{"eventId":"1","urlName":"a-vs-d","name":"Novak Djokovic vs Alex de Minaur","eventGroupName":"ATP - Wimbledon","startDate":"2024-07-10T12:00:00.0000000Z"}
}}},"helpPage":{"content":""}};window.__OTHER__ = 1;</script></html>`

const eventHTML = `<html><script>window.__INITIAL_STATE__ = {"stadiumEventData":{
"markets":[
 {"id":"m1","name":"Moneyline"},
 {"id":"m2","name":"Carlos Alcaraz Player Total Games Won"},
 {"id":"m3","name":"Correct Score"},
 {"id":"m4","name":"Jannik Sinner Player Total Games Won"}
],
"selections":[
 {"marketId":"m1","label":"Jannik Sinner","trueOdds":2.5},
 {"marketId":"m1","label":"Carlos Alcaraz","trueOdds":1.6},
 {"marketId":"m2","label":"Over","trueOdds":1.91,"points":12.5},
 {"marketId":"m2","label":"Under","trueOdds":1.91,"points":12.5},
 {"marketId":"m3","label":"2-0","trueOdds":3.0},
 {"marketId":"m3","label":"2-1","trueOdds":4.0},
 {"marketId":"m3","label":"0-2","trueOdds":3.5},
 {"marketId":"m4","label":"Over","trueOdds":1.8,"points":11.5,"participants":[{"name":"Jannik Sinner","type":"Player"}]},
 {"marketId":"m4","label":"Under","trueOdds":2.0,"points":11.5},
 {"marketId":"gone","label":"x","trueOdds":2.0}
]}}</script></html>`

type pages map[string]string

func (p pages) Get(_ context.Context, url string) (string, error) { return p[url], nil }

func (p pages) Document(ctx context.Context, url string) (*goquery.Document, error) {
	body, _ := p.Get(ctx, url)
	return fetch.ParseHTML(body)
}

type rendered struct {
	pages
	calls int
}

func (r *rendered) Render(ctx context.Context, url string) (string, error) {
	r.calls++
	return r.Get(ctx, url)
}

func TestExtractState(t *testing.T) {
	state, err := ExtractState(leagueHTML)
	require.NoError(t, err)
	assert.Contains(t, state, "eventGroups")
	assert.Contains(t, state, "helpPage")

	_, err = ExtractState("<html></html>")
	assert.ErrorIs(t, err, ErrNoState)
}

func TestParseEvents(t *testing.T) {
	state, err := ExtractState(leagueHTML)
	require.NoError(t, err)

	links := ParseEvents(state)
	require.Len(t, links, 2)
	assert.Equal(t, "1", links[0].ID, "ordered by start time")
	assert.Equal(t, "ATP - Wimbledon", links[0].Tournament)
	assert.Equal(t, time.Date(2024, 7, 14, 13, 0, 0, 0, time.UTC), links[1].StartDate)
}

func TestParseEventQuotes(t *testing.T) {
	state, err := ExtractState(eventHTML)
	require.NoError(t, err)

	link := EventLink{ID: "2", Name: "Jannik Sinner vs Carlos Alcaraz", Tournament: "ATP - Wimbledon",
		StartDate: time.Date(2024, 7, 14, 13, 0, 0, 0, time.UTC)}
	at := time.Date(2024, 7, 14, 9, 0, 0, 0, time.UTC)

	quotes := ParseEventQuotes(state, sport.ATP, link, at)
	require.Len(t, quotes, 3, "three-way and orphan markets are dropped")

	ml := quotes[0]
	assert.Equal(t, "moneyline", ml.Market)
	assert.Equal(t, "m1", ml.MarketID)
	assert.Equal(t, "Jannik Sinner", ml.Player1)
	assert.Equal(t, 150, ml.Player1Odds)
	assert.Equal(t, -167, ml.Player2Odds)
	assert.Equal(t, "2", ml.BookEventID)
	assert.Equal(t, "ATP - Wimbledon", ml.Tournament.String)
	assert.Equal(t, at, ml.ScrapedAt)
	assert.False(t, ml.Participant.Valid)

	games := quotes[1]
	assert.Equal(t, "total_games", games.Market)
	assert.Equal(t, "Carlos Alcaraz", games.Participant.String, "from the market name")
	assert.Equal(t, "Over", games.Player1)
	assert.Equal(t, 12.5, games.Player1Points.Float64)
	assert.Equal(t, -110, games.Player1Odds)

	assert.Equal(t, "Jannik Sinner", quotes[2].Participant.String, "from the participant")
}

func TestMarketFor(t *testing.T) {
	tests := []struct {
		sport sport.Sport
		name  string
		want  sport.Market
		ok    bool
	}{
		{sport.NBA, "Moneyline", sport.Moneyline, true},
		{sport.NBA, "Spread", sport.Spread, true},
		{sport.NFL, "Total Points", sport.Total, true},
		{sport.UFC, "Fight will go the distance?", sport.GoesTheDistance, true},
		{sport.UFC, "Total Rounds", sport.TotalRounds, true},
		{sport.UFC, "Spread", "", false},
		{sport.ATP, "Novak Djokovic Player Total Games Won", sport.TotalGames, true},
		{sport.ATP, "Total Games", "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.sport)+"/"+tt.name, func(t *testing.T) {
			got, ok := MarketFor(tt.sport, tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuotes(t *testing.T) {
	league := BaseURL + "/leagues/tennis/wimbledon"
	client := &rendered{pages: pages{
		league:                      leagueHTML,
		BaseURL + "/event/b-vs-c/2": eventHTML,
		BaseURL + "/event/a-vs-d/1": "<html>blocked</html>",
	}}
	s := NewScraper(client, "", true, nil)
	s.now = func() time.Time { return time.Date(2024, 7, 14, 9, 0, 0, 0, time.UTC) }

	quotes, err := s.Quotes(context.Background(), sport.ATP, league)
	require.NoError(t, err)
	assert.Len(t, quotes, 3)
	assert.Equal(t, 3, client.calls, "pages go through the renderer")
}
