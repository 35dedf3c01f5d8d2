// Package ufcstats scrapes events, fight details and fighter profiles from
// ufcstats.com.
package ufcstats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/features"
	"github.com/fortuna/augur/internal/ingest/fetch"
)

const (
	// BaseURL of ufcstats.
	BaseURL = "http://ufcstats.com"

	// Source tags stored fights.
	Source = "ufcstats"
)

// ErrNoFighters is returned for a fight page without both corners.
var ErrNoFighters = errors.New("fight page has no fighters")

// zones are the significant-strike targets in page order.
var zones = []string{"head", "body", "leg", "dist", "clinc", "ground"}

// Card is an event page: its date and the bouts on it.
type Card struct {
	URL    string
	Name   string
	Date   time.Time
	Fights []CardFight

	fighterLinks []string
}

// CardFight is one bout listed on an event page. Bout carries the fighters,
// date and weight class only.
type CardFight struct {
	URL  string
	Bout features.Bout
}

// Scraper reads ufcstats pages.
type Scraper struct {
	client  fetch.Fetcher
	baseURL string
	logger  *zap.Logger
}

// NewScraper creates a scraper. An empty baseURL uses BaseURL.
func NewScraper(client fetch.Fetcher, baseURL string, logger *zap.Logger) *Scraper {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Named("ufcstats"),
	}
}

// CompletedEvents lists completed event links, newest first.
func (s *Scraper) CompletedEvents(ctx context.Context) ([]string, error) {
	doc, err := s.client.Document(ctx, s.baseURL+"/statistics/events/completed?page=all")
	if err != nil {
		return nil, fmt.Errorf("fetching completed events: %w", err)
	}
	var links []string
	doc.Find("a.b-link_style_black").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && strings.Contains(href, "/event-details/") {
			links = append(links, s.abs(href))
		}
	})
	return links, nil
}

// NextEvent returns the upcoming card, which the completed list shows first
// with a highlighted link. The card is empty when none is announced.
func (s *Scraper) NextEvent(ctx context.Context) (Card, error) {
	doc, err := s.client.Document(ctx, s.baseURL+"/statistics/events/completed?page=all")
	if err != nil {
		return Card{}, fmt.Errorf("fetching events: %w", err)
	}
	href, ok := doc.Find("a.b-link_style_white").First().Attr("href")
	if !ok {
		return Card{}, nil
	}
	return s.Event(ctx, s.abs(href))
}

// Event scrapes an event page.
func (s *Scraper) Event(ctx context.Context, url string) (Card, error) {
	doc, err := s.client.Document(ctx, url)
	if err != nil {
		return Card{}, fmt.Errorf("fetching event %s: %w", url, err)
	}
	card, err := ParseEvent(doc)
	if err != nil {
		return Card{}, fmt.Errorf("parsing event %s: %w", url, err)
	}
	card.URL = url
	return card, nil
}

// Fight scrapes a fight details page. The page has no date of its own, so
// the event date is passed in.
func (s *Scraper) Fight(ctx context.Context, url string, date time.Time) (features.Bout, error) {
	doc, err := s.client.Document(ctx, url)
	if err != nil {
		return features.Bout{}, fmt.Errorf("fetching fight %s: %w", url, err)
	}
	b, err := ParseFight(doc)
	if err != nil {
		return features.Bout{}, fmt.Errorf("parsing fight %s: %w", url, err)
	}
	b.Date = date
	return b, nil
}

// RecentFights scrapes every fight of the latest completed events. A fight
// page that fails is logged and skipped. The map key is the fight URL.
func (s *Scraper) RecentFights(ctx context.Context, events int) (map[string]features.Bout, error) {
	links, err := s.CompletedEvents(ctx)
	if err != nil {
		return nil, err
	}
	if events > 0 && len(links) > events {
		links = links[:events]
	}

	out := make(map[string]features.Bout)
	for _, link := range links {
		card, err := s.Event(ctx, link)
		if err != nil {
			s.logger.Warn("event scrape failed", zap.String("url", link), zap.Error(err))
			continue
		}
		for _, f := range card.Fights {
			if f.URL == "" {
				continue
			}
			b, err := s.Fight(ctx, f.URL, card.Date)
			if err != nil {
				s.logger.Warn("fight scrape failed", zap.String("url", f.URL), zap.Error(err))
				continue
			}
			out[f.URL] = b
		}
		s.logger.Debug("scraped event",
			zap.String("event", card.Name),
			zap.Time("date", card.Date),
			zap.Int("fights", len(card.Fights)),
		)
	}
	return out, nil
}

// FighterLinks lists profile links for fighters whose last name starts
// with letter.
func (s *Scraper) FighterLinks(ctx context.Context, letter string) ([]string, error) {
	url := fmt.Sprintf("%s/statistics/fighters?char=%s&page=all", s.baseURL, strings.ToLower(letter))
	doc, err := s.client.Document(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching fighters %s: %w", letter, err)
	}
	seen := make(map[string]bool)
	var links []string
	doc.Find("a.b-link_style_black").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !strings.Contains(href, "/fighter-details/") || seen[href] {
			return
		}
		seen[href] = true
		links = append(links, s.abs(href))
	})
	return links, nil
}

// Fighter scrapes a fighter profile.
func (s *Scraper) Fighter(ctx context.Context, url string) (features.Fighter, error) {
	doc, err := s.client.Document(ctx, url)
	if err != nil {
		return features.Fighter{}, fmt.Errorf("fetching fighter %s: %w", url, err)
	}
	return ParseFighter(doc), nil
}

// CardFighters scrapes the profiles of everyone on a card. Fighters without
// a date of birth are skipped.
func (s *Scraper) CardFighters(ctx context.Context, card Card) ([]features.Fighter, error) {
	var out []features.Fighter
	for _, link := range card.fighterLinks {
		f, err := s.Fighter(ctx, s.abs(link))
		if err != nil {
			s.logger.Warn("fighter scrape failed", zap.String("url", link), zap.Error(err))
			continue
		}
		if f.DOB.IsZero() {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *Scraper) abs(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return s.baseURL + "/" + strings.TrimLeft(href, "/")
}

// ParseEvent reads the event name, date and fight rows.
func ParseEvent(doc *goquery.Document) (Card, error) {
	card := Card{Name: strings.TrimSpace(doc.Find("span.b-content__title-highlight").First().Text())}

	raw := strings.TrimSpace(doc.Find("li.b-list__box-list-item").First().Text())
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Date:"))
	date, err := parseDate(raw)
	if err != nil {
		return Card{}, err
	}
	card.Date = date

	classes := features.WeightClasses()
	doc.Find("tr.b-fight-details__table-row__hover").Each(func(_ int, tr *goquery.Selection) {
		var names []string
		tr.Find("a.b-link_style_black").Each(func(_ int, a *goquery.Selection) {
			name := strings.TrimSpace(a.Text())
			href, _ := a.Attr("href")
			if name == "" || !strings.Contains(href, "/fighter-details/") {
				return
			}
			names = append(names, name)
			card.fighterLinks = append(card.fighterLinks, href)
		})
		if len(names) < 2 {
			return
		}

		var class string
		tr.Find("p.b-fight-details__table-text").EachWithBreak(func(_ int, p *goquery.Selection) bool {
			class = matchWeightClass(p.Text(), classes)
			return class == ""
		})

		link, _ := tr.Attr("data-link")
		card.Fights = append(card.Fights, CardFight{
			URL: link,
			Bout: features.Bout{
				Date:        date,
				Fighter1:    names[0],
				Fighter2:    names[1],
				WeightClass: class,
			},
		})
	})
	return card, nil
}

// ParseFight reads a fight details page into a bout without its date.
// Percentages are stored as fractions, with "---" as -0.01. Control time is
// in seconds.
func ParseFight(doc *goquery.Document) (features.Bout, error) {
	var names []string
	doc.Find("a.b-fight-details__person-link").Each(func(_ int, a *goquery.Selection) {
		names = append(names, strings.TrimSpace(a.Text()))
	})
	if len(names) < 2 {
		return features.Bout{}, ErrNoFighters
	}

	b := features.Bout{
		Fighter1: names[0],
		Fighter2: names[1],
		Stats1:   make(map[string]float64),
		Stats2:   make(map[string]float64),
	}

	status := doc.Find("i.b-fight-details__person-status")
	b.Result1 = strings.TrimSpace(status.Eq(0).Text())
	b.Result2 = strings.TrimSpace(status.Eq(1).Text())

	title := strings.TrimSpace(doc.Find("i.b-fight-details__fight-title").First().Text())
	b.WeightClass = matchWeightClass(title, features.WeightClasses())
	b.TitleFight = strings.Contains(strings.ToLower(title), "title bout")

	method := strings.Fields(doc.Find("i.b-fight-details__text-item_first").First().Text())
	if len(method) > 1 {
		b.Method = strings.Join(method[1:], "")
	}

	doc.Find("i.b-fight-details__text-item").Each(func(_ int, i *goquery.Selection) {
		label, value, ok := strings.Cut(strings.Join(strings.Fields(i.Text()), " "), ":")
		if !ok {
			return
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "round":
			b.Round, _ = strconv.Atoi(value)
		case "time":
			b.Clock = value
		case "time format":
			b.TimeFormat = value
		case "referee":
			b.Referee = value
		}
	})

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if table.HasClass("js-fight-table") {
			return
		}
		header := strings.ToLower(table.Find("thead").Text())
		row := table.Find("tbody tr").First()
		switch {
		case strings.Contains(header, "kd"):
			parseTotals(row, b.Stats1, b.Stats2)
		case strings.Contains(header, "head"):
			parseStrikes(row, b.Stats1, b.Stats2)
		}
	})

	doc.Find("i.b-fight-details__charts-num").Each(func(i int, n *goquery.Selection) {
		if i >= 2*len(zones) {
			return
		}
		dst := b.Stats1
		if i%2 == 1 {
			dst = b.Stats2
		}
		dst[zones[i/2]+"_str_perc"] = percent(n.Text())
	})

	return b, nil
}

// parseTotals reads the totals row: fighter, KD, sig. str., sig. str. %,
// total str., TD, TD %, sub. att, rev., ctrl.
func parseTotals(row *goquery.Selection, s1, s2 map[string]float64) {
	row.Find("td").Each(func(col int, td *goquery.Selection) {
		v1, v2 := corners(td)
		switch col {
		case 1:
			s1["kd"], s2["kd"] = number(v1), number(v2)
		case 2:
			ofPair(s1, "sig_str", v1)
			ofPair(s2, "sig_str", v2)
		case 3:
			s1["sig_str_perc"], s2["sig_str_perc"] = percent(v1), percent(v2)
		case 4:
			ofPair(s1, "total_str", v1)
			ofPair(s2, "total_str", v2)
		case 5:
			ofPair(s1, "td", v1)
			ofPair(s2, "td", v2)
		case 6:
			s1["td_perc"], s2["td_perc"] = percent(v1), percent(v2)
		case 7:
			s1["sub_att"], s2["sub_att"] = number(v1), number(v2)
		case 8:
			s1["rev"], s2["rev"] = number(v1), number(v2)
		case 9:
			s1["ctrl"] = float64(features.ClockSeconds(v1))
			s2["ctrl"] = float64(features.ClockSeconds(v2))
		}
	})
}

// parseStrikes reads the significant strikes row: fighter, sig. str.,
// sig. str. %, then one column per zone.
func parseStrikes(row *goquery.Selection, s1, s2 map[string]float64) {
	row.Find("td").Each(func(col int, td *goquery.Selection) {
		zone := col - 3
		if zone < 0 || zone >= len(zones) {
			return
		}
		v1, v2 := corners(td)
		ofPair(s1, zones[zone]+"_str", v1)
		ofPair(s2, zones[zone]+"_str", v2)
	})
}

// corners returns the two fighters' values of a stats cell.
func corners(td *goquery.Selection) (string, string) {
	p := td.Find("p.b-fight-details__table-text")
	return strings.TrimSpace(p.Eq(0).Text()), strings.TrimSpace(p.Eq(1).Text())
}

// ofPair splits "12 of 30" into prefix_hit and prefix_tot.
func ofPair(dst map[string]float64, prefix, v string) {
	hit, tot, _ := strings.Cut(v, " of ")
	dst[prefix+"_hit"] = number(hit)
	dst[prefix+"_tot"] = number(tot)
}

// ParseFighter reads a fighter profile. DOB is zero when the page shows "--".
func ParseFighter(doc *goquery.Document) features.Fighter {
	f := features.Fighter{
		Name:     strings.TrimSpace(doc.Find("span.b-content__title-highlight").First().Text()),
		Nickname: strings.TrimSpace(doc.Find("p.b-content__Nickname").First().Text()),
		Record:   strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(doc.Find("span.b-content__title-record").First().Text()), "Record:")),
	}
	doc.Find("li.b-list__box-list-item_type_block").Each(func(_ int, li *goquery.Selection) {
		label := strings.TrimSuffix(strings.TrimSpace(li.Find("i").First().Text()), ":")
		value := strings.TrimSpace(strings.Replace(li.Text(), li.Find("i").First().Text(), "", 1))
		switch strings.ToUpper(label) {
		case "HEIGHT":
			f.Height = value
		case "WEIGHT":
			f.Weight = value
		case "REACH":
			f.Reach = value
		case "STANCE":
			f.Stance = value
		case "DOB":
			if dob, err := parseDate(value); err == nil {
				f.DOB = dob
			}
		}
	})
	return f
}

func matchWeightClass(text string, classes []string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, c := range classes {
		if strings.Contains(lower, strings.ToLower(c)) {
			return c
		}
	}
	return ""
}

var dateLayouts = []string{"January 2, 2006", "Jan 2, 2006"}

func parseDate(s string) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// percent converts "45%" to 0.45 and "---" to -0.01.
func percent(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "---" {
		return -0.01
	}
	return number(strings.TrimSuffix(s, "%")) / 100
}

func number(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
