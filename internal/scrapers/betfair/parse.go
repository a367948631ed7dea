package betfair

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

const (
	linkSelector    = ".race-link"
	runnerSelector  = "h3.runner-name"
	priceSelector   = `label[class="Zs3u5 AUP11 Qe-26"]`
	volumeSelector  = `label[class="He6+y Qe-26"]`
	refreshSelector = "button.refresh-btn.marketview-resize"
	tomorrowButton  = "button.schedule-filter-button"

	// labelsPerRunner is three back and three lay cells, worst back first.
	labelsPerRunner = 2 * models.Depth

	unknown = "Unknown"
)

var (
	// "14:05 Flemington R5 1200m"; the time must lead the title
	auTitleRe = regexp.MustCompile(`^(\d{2}:\d{2})\s+([\w\s]+?)\s+R(\d+)\s+(\d+)m`)
	// "14:05 Ascot 1m2f", no race number
	ukTitleRe = regexp.MustCompile(`^(\d{2}:\d{2})\s+([\w\s]+?)\s+(\d+m\d*f?)`)
	raceIDRe  = regexp.MustCompile(`market/1\.(\d+)`)
)

// ParseTitle extracts the start time, venue and race number from a market
// page title. UK titles carry no race number and yield
// models.RaceNumberUnknownBetfair.
func ParseTitle(title string) (raceTime, location string, number int, ok bool) {
	title = strings.TrimSpace(title)
	if m := auTitleRe.FindStringSubmatch(title); m != nil {
		n, err := strconv.Atoi(m[3])
		if err == nil {
			return m[1], strings.TrimSpace(m[2]), n, true
		}
	}
	if m := ukTitleRe.FindStringSubmatch(title); m != nil {
		return m[1], strings.TrimSpace(m[2]), models.RaceNumberUnknownBetfair, true
	}
	return "", "", models.RaceNumberUnknownBetfair, false
}

// ParseRaceID returns the market id of a race URL.
func ParseRaceID(url string) string {
	if m := raceIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return unknown
}

// ParseMetadata reads race metadata from a rendered market page. A title
// that matches neither pattern yields "Unknown" fields, which never match
// another source.
func ParseMetadata(html, url string) (models.RaceMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.RaceMetadata{}, fmt.Errorf("%w: parse market page: %w", models.ErrExtractionFailure, err)
	}

	meta := models.RaceMetadata{
		RaceID:     ParseRaceID(url),
		Location:   unknown,
		RaceName:   unknown,
		RaceNumber: models.RaceNumberUnknownBetfair,
		RaceTime:   unknown,
		RaceType:   models.ParseRaceType(url),
		URL:        url,
		Source:     models.SourceBetfair,
	}
	if raceTime, location, number, ok := ParseTitle(doc.Find("title").First().Text()); ok {
		meta.RaceTime = raceTime
		meta.Location = location
		meta.RaceName = location
		meta.RaceNumber = number
	}
	return meta, nil
}

// ParseListing returns the absolute race URLs on a schedule page.
func ParseListing(html, linkBase string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse schedule page: %w", err)
	}

	linkBase = strings.TrimSuffix(linkBase, "/") + "/"
	seen := make(map[string]bool)
	var urls []string
	doc.Find(linkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		u := href
		if !strings.HasPrefix(href, "http") {
			u = linkBase + strings.TrimPrefix(href, "/")
		}
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	})
	return urls, nil
}

// ParseOdds extracts the ladder of every runner on a market page. Runners
// are numbered by position. A runner without a full set of cells gets an
// empty quote.
func ParseOdds(html string) (models.OddsSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse market page: %w", models.ErrExtractionFailure, err)
	}

	runners := doc.Find(runnerSelector)
	if runners.Length() == 0 {
		return nil, fmt.Errorf("%w: no runners on market page", models.ErrExtractionFailure)
	}
	prices := texts(doc.Find(priceSelector))
	volumes := texts(doc.Find(volumeSelector))

	out := make(models.OddsSnapshot, runners.Length())
	runners.Each(func(i int, s *goquery.Selection) {
		name := models.NormalizeRunner(s.Text())
		if name == "" {
			return
		}
		q := models.Quote{Number: strconv.Itoa(i + 1)}
		start := i * labelsPerRunner
		if start+labelsPerRunner <= len(prices) && start+labelsPerRunner <= len(volumes) {
			fillLadder(&q, prices[start:start+labelsPerRunner], volumes[start:start+labelsPerRunner])
		}
		out[name] = q
	})
	return out, nil
}

// fillLadder maps cells ordered 3rd back, 2nd back, 1st back, 1st lay,
// 2nd lay, 3rd lay onto best-first back and lay levels.
func fillLadder(q *models.Quote, prices, volumes []string) {
	for level := range models.Depth {
		back := models.Depth - 1 - level
		lay := models.Depth + level
		q.Back[level] = models.PriceLevel{Price: models.ParsePrice(prices[back]), Size: models.ParsePrice(volumes[back])}
		q.Lay[level] = models.PriceLevel{Price: models.ParsePrice(prices[lay]), Size: models.ParsePrice(volumes[lay])}
	}
}

func texts(s *goquery.Selection) []string {
	out := make([]string, 0, s.Length())
	s.Each(func(_ int, el *goquery.Selection) {
		out = append(out, strings.TrimSpace(el.Text()))
	})
	return out
}
