package ufcstats

import (
	"context"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/augur/internal/ingest/fetch"
)

const eventsHTML = `<table><tbody>
<tr><td><a class="b-link b-link_style_white" href="http://ufcstats.com/event-details/next">UFC 310</a></td></tr>
<tr><td><a class="b-link b-link_style_black" href="http://ufcstats.com/event-details/e1">UFC 309</a></td></tr>
<tr><td><a class="b-link b-link_style_black" href="http://ufcstats.com/event-details/e0">UFC 308</a></td></tr>
</tbody></table>`

const eventHTML = `<h2><span class="b-content__title-highlight">UFC 309: Jones vs. Miocic</span></h2>
<ul><li class="b-list__box-list-item"><i>Date:</i>
  November 16, 2024</li></ul>
<table><tbody>
<tr class="b-fight-details__table-row b-fight-details__table-row__hover js-fight-details-click" data-link="http://ufcstats.com/fight-details/f1">
  <td><p class="b-fight-details__table-text"><a class="b-link b-link_style_black" href="http://ufcstats.com/fighter-details/jj">Jon Jones</a></p>
      <p class="b-fight-details__table-text"><a class="b-link b-link_style_black" href="http://ufcstats.com/fighter-details/sm">Stipe Miocic</a></p></td>
  <td><p class="b-fight-details__table-text"> Heavyweight </p></td>
  <td><a class="b-link b-link_style_black" href="http://ufcstats.com/fight-details/f1">View Matchup</a></td>
</tr>
</tbody></table>`

const fightHTML = `<div class="b-fight-details__persons">
  <div><i class="b-fight-details__person-status">W</i><a class="b-link b-fight-details__person-link" href="#">Jon Jones</a></div>
  <div><i class="b-fight-details__person-status">L</i><a class="b-link b-fight-details__person-link" href="#">Stipe Miocic</a></div>
</div>
<i class="b-fight-details__fight-title">UFC Heavyweight Title Bout</i>
<p><i class="b-fight-details__text-item_first"><i>Method:</i> KO/TKO </i>
<i class="b-fight-details__text-item"><i>Round:</i> 3 </i>
<i class="b-fight-details__text-item"><i>Time:</i> 4:29 </i>
<i class="b-fight-details__text-item"><i>Time format:</i> 5 Rnd (5-5-5-5-5) </i>
<i class="b-fight-details__text-item"><i>Referee:</i> Herb Dean </i></p>
<table><thead><tr><th>Fighter</th><th>KD</th><th>Sig. str.</th><th>Sig. str. %</th><th>Total str.</th><th>Td</th><th>Td %</th><th>Sub. att</th><th>Rev.</th><th>Ctrl</th></tr></thead>
<tbody><tr>
  <td><p class="b-fight-details__table-text">Jon Jones</p><p class="b-fight-details__table-text">Stipe Miocic</p></td>
  <td><p class="b-fight-details__table-text">1</p><p class="b-fight-details__table-text">0</p></td>
  <td><p class="b-fight-details__table-text">50 of 81</p><p class="b-fight-details__table-text">30 of 70</p></td>
  <td><p class="b-fight-details__table-text">61%</p><p class="b-fight-details__table-text">42%</p></td>
  <td><p class="b-fight-details__table-text">70 of 104</p><p class="b-fight-details__table-text">35 of 78</p></td>
  <td><p class="b-fight-details__table-text">1 of 4</p><p class="b-fight-details__table-text">0 of 0</p></td>
  <td><p class="b-fight-details__table-text">25%</p><p class="b-fight-details__table-text">---</p></td>
  <td><p class="b-fight-details__table-text">0</p><p class="b-fight-details__table-text">0</p></td>
  <td><p class="b-fight-details__table-text">0</p><p class="b-fight-details__table-text">0</p></td>
  <td><p class="b-fight-details__table-text">2:15</p><p class="b-fight-details__table-text">0:00</p></td>
</tr></tbody></table>
<table class="b-fight-details__table js-fight-table"><thead><tr><th>KD</th></tr></thead>
<tbody><tr><td></td><td><p class="b-fight-details__table-text">9</p><p class="b-fight-details__table-text">9</p></td></tr></tbody></table>
<table><thead><tr><th>Fighter</th><th>Sig. str</th><th>Sig. str. %</th><th>Head</th><th>Body</th><th>Leg</th><th>Distance</th><th>Clinch</th><th>Ground</th></tr></thead>
<tbody><tr>
  <td><p class="b-fight-details__table-text">Jon Jones</p><p class="b-fight-details__table-text">Stipe Miocic</p></td>
  <td><p class="b-fight-details__table-text">50 of 81</p><p class="b-fight-details__table-text">30 of 70</p></td>
  <td><p class="b-fight-details__table-text">61%</p><p class="b-fight-details__table-text">42%</p></td>
  <td><p class="b-fight-details__table-text">20 of 40</p><p class="b-fight-details__table-text">15 of 50</p></td>
  <td><p class="b-fight-details__table-text">20 of 25</p><p class="b-fight-details__table-text">10 of 12</p></td>
  <td><p class="b-fight-details__table-text">10 of 16</p><p class="b-fight-details__table-text">5 of 8</p></td>
  <td><p class="b-fight-details__table-text">30 of 55</p><p class="b-fight-details__table-text">25 of 62</p></td>
  <td><p class="b-fight-details__table-text">15 of 20</p><p class="b-fight-details__table-text">5 of 8</p></td>
  <td><p class="b-fight-details__table-text">5 of 6</p><p class="b-fight-details__table-text">0 of 0</p></td>
</tr></tbody></table>
<i class="b-fight-details__charts-num">40%</i><i class="b-fight-details__charts-num">50%</i>
<i class="b-fight-details__charts-num">40%</i><i class="b-fight-details__charts-num">33%</i>`

const fighterHTML = `<span class="b-content__title-highlight"> Jon Jones </span>
<span class="b-content__title-record"> Record: 28-1-0 (1 NC) </span>
<p class="b-content__Nickname"> Bones </p>
<ul>
<li class="b-list__box-list-item b-list__box-list-item_type_block"><i class="b-list__box-item-title">Height:</i> 6' 4" </li>
<li class="b-list__box-list-item b-list__box-list-item_type_block"><i class="b-list__box-item-title">Weight:</i> 248 lbs. </li>
<li class="b-list__box-list-item b-list__box-list-item_type_block"><i class="b-list__box-item-title">Reach:</i> 84" </li>
<li class="b-list__box-list-item b-list__box-list-item_type_block"><i class="b-list__box-item-title">STANCE:</i> Orthodox </li>
<li class="b-list__box-list-item b-list__box-list-item_type_block"><i class="b-list__box-item-title">DOB:</i> Jul 19, 1987 </li>
</ul>`

type pages map[string]string

func (p pages) Get(_ context.Context, url string) (string, error) { return p[url], nil }

func (p pages) Document(ctx context.Context, url string) (*goquery.Document, error) {
	body, _ := p.Get(ctx, url)
	return fetch.ParseHTML(body)
}

func TestParseFight(t *testing.T) {
	doc, err := fetch.ParseHTML(fightHTML)
	require.NoError(t, err)

	b, err := ParseFight(doc)
	require.NoError(t, err)

	assert.Equal(t, "Jon Jones", b.Fighter1)
	assert.Equal(t, "Stipe Miocic", b.Fighter2)
	assert.Equal(t, "W", b.Result1)
	assert.Equal(t, "L", b.Result2)
	assert.Equal(t, "Heavyweight", b.WeightClass)
	assert.True(t, b.TitleFight)
	assert.Equal(t, "KO/TKO", b.Method)
	assert.Equal(t, 3, b.Round)
	assert.Equal(t, "4:29", b.Clock)
	assert.Equal(t, "5 Rnd (5-5-5-5-5)", b.TimeFormat)
	assert.Equal(t, "Herb Dean", b.Referee)

	assert.Equal(t, 1.0, b.Stats1["kd"])
	assert.Equal(t, 50.0, b.Stats1["sig_str_hit"])
	assert.Equal(t, 81.0, b.Stats1["sig_str_tot"])
	assert.InDelta(t, 0.61, b.Stats1["sig_str_perc"], 1e-9)
	assert.Equal(t, 104.0, b.Stats1["total_str_tot"])
	assert.InDelta(t, 0.25, b.Stats1["td_perc"], 1e-9)
	assert.InDelta(t, -0.01, b.Stats2["td_perc"], 1e-9)
	assert.Equal(t, 135.0, b.Stats1["ctrl"])
	assert.Equal(t, 0.0, b.Stats2["ctrl"])

	assert.Equal(t, 20.0, b.Stats1["head_str_hit"])
	assert.Equal(t, 50.0, b.Stats2["head_str_tot"])
	assert.Equal(t, 6.0, b.Stats1["ground_str_tot"])
	assert.Equal(t, 25.0, b.Stats2["dist_str_hit"])
	assert.InDelta(t, 0.40, b.Stats1["head_str_perc"], 1e-9)
	assert.InDelta(t, 0.33, b.Stats2["body_str_perc"], 1e-9)
}

func TestParseFightWithoutFighters(t *testing.T) {
	doc, err := fetch.ParseHTML("<html></html>")
	require.NoError(t, err)

	_, err = ParseFight(doc)
	assert.ErrorIs(t, err, ErrNoFighters)
}

func TestParseFighter(t *testing.T) {
	doc, err := fetch.ParseHTML(fighterHTML)
	require.NoError(t, err)

	f := ParseFighter(doc)
	assert.Equal(t, "Jon Jones", f.Name)
	assert.Equal(t, "Bones", f.Nickname)
	assert.Equal(t, "28-1-0 (1 NC)", f.Record)
	assert.Equal(t, `6' 4"`, f.Height)
	assert.Equal(t, "248 lbs.", f.Weight)
	assert.Equal(t, `84"`, f.Reach)
	assert.Equal(t, "Orthodox", f.Stance)
	assert.Equal(t, time.Date(1987, 7, 19, 0, 0, 0, 0, time.UTC), f.DOB)
}

func TestNextEvent(t *testing.T) {
	s := NewScraper(pages{
		BaseURL + "/statistics/events/completed?page=all": eventsHTML,
		"http://ufcstats.com/event-details/next":          eventHTML,
		"http://ufcstats.com/fighter-details/jj":          fighterHTML,
		"http://ufcstats.com/fighter-details/sm":          `<span class="b-content__title-highlight">Stipe Miocic</span>`,
	}, "", nil)

	card, err := s.NextEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "UFC 309: Jones vs. Miocic", card.Name)
	assert.Equal(t, time.Date(2024, 11, 16, 0, 0, 0, 0, time.UTC), card.Date)
	require.Len(t, card.Fights, 1)

	f := card.Fights[0]
	assert.Equal(t, "http://ufcstats.com/fight-details/f1", f.URL)
	assert.Equal(t, "Jon Jones", f.Bout.Fighter1)
	assert.Equal(t, "Stipe Miocic", f.Bout.Fighter2)
	assert.Equal(t, "Heavyweight", f.Bout.WeightClass)
	assert.False(t, f.Bout.Played())

	fighters, err := s.CardFighters(context.Background(), card)
	require.NoError(t, err)
	require.Len(t, fighters, 1, "profiles without a DOB are skipped")
	assert.Equal(t, "Jon Jones", fighters[0].Name)
}

func TestRecentFights(t *testing.T) {
	s := NewScraper(pages{
		BaseURL + "/statistics/events/completed?page=all": eventsHTML,
		"http://ufcstats.com/event-details/e1":            eventHTML,
		"http://ufcstats.com/fight-details/f1":            fightHTML,
	}, "", nil)

	fights, err := s.RecentFights(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, fights, 1)

	b := fights["http://ufcstats.com/fight-details/f1"]
	assert.Equal(t, time.Date(2024, 11, 16, 0, 0, 0, 0, time.UTC), b.Date)
	assert.True(t, b.Played())
}
