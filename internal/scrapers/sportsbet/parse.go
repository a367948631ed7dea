package sportsbet

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

const (
	cardSelector  = "div.outcomeCard_f7jc198"
	nameSelector  = "div.outcomeName_f18x6kvm"
	flucsSelector = "span.priceFlucsTextDesktop_fiml4cj"
	priceSelector = "div.priceText_f71sibe"
	linkSelector  = "a.link_fqiekv4"
)

var (
	venueRe      = regexp.MustCompile(`/(?:horse|greyhound)-racing/(?:[^/]+/)*?([^/]+)/race-\d+`)
	urlNumberRe  = regexp.MustCompile(`race-(\d+)-`)
	urlRaceIDRe  = regexp.MustCompile(`race-\d+-(\d+)`)
	nameNumberRe = regexp.MustCompile(`Race (\d+)`)
	raceSuffixRe = regexp.MustCompile(`\s*[-–:]?\s*Race \d+.*$`)
	clockRe      = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*(am|pm)?$`)
	barrierRe    = regexp.MustCompile(`\s*\(\d+\)`)
)

// IsRaceLink reports whether href points at a single race page.
func IsRaceLink(href string) bool {
	return (strings.Contains(href, "/horse-racing/") || strings.Contains(href, "/greyhound-racing/")) &&
		strings.Contains(href, "race-")
}

// ParseListing returns absolute race URLs found on a schedule page, in page
// order without duplicates.
func ParseListing(html, origin string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse schedule page: %w", err)
	}

	origin = strings.TrimSuffix(origin, "/")
	seen := make(map[string]bool)
	var urls []string
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || !IsRaceLink(href) {
			return
		}
		u := href
		if strings.HasPrefix(href, "/") {
			u = origin + href
		}
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	})
	return urls, nil
}

// Origin is the scheme and host of rawURL.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(rawURL, "/")
	}
	return u.Scheme + "://" + u.Host
}

// VenueFromURL title-cases the venue slug of a race URL.
func VenueFromURL(raceURL string) string {
	m := venueRe.FindStringSubmatch(raceURL)
	if m == nil {
		return "Unknown Location"
	}
	return titleCase(strings.ReplaceAll(m[1], "-", " "))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// RaceNumber reads the race number from the page heading, then the URL.
// Unknown yields models.RaceNumberUnknownSportsbet.
func RaceNumber(heading, raceURL string) int {
	for _, m := range [][]string{nameNumberRe.FindStringSubmatch(heading), urlNumberRe.FindStringSubmatch(raceURL)} {
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return models.RaceNumberUnknownSportsbet
}

// RaceID is the event id at the end of the race slug.
func RaceID(raceURL string) string {
	if m := urlRaceIDRe.FindStringSubmatch(raceURL); m != nil {
		return m[1]
	}
	if m := urlNumberRe.FindStringSubmatch(raceURL); m != nil {
		return m[1]
	}
	return "Unknown"
}

// NormalizeClock turns "2:05pm" or "14:05" into "14:05". Other text is
// returned trimmed.
func NormalizeClock(s string) string {
	s = strings.TrimSpace(s)
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	switch strings.ToLower(m[3]) {
	case "pm":
		if h < 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	}
	if h > 23 || mins > 59 {
		return s
	}
	return fmt.Sprintf("%02d:%02d", h, mins)
}

// ParseMetadata reads race metadata from a rendered race page. The race
// name is the heading without its "Race N" suffix, falling back to the
// venue so that it lines up with exchange listings named after the venue.
func ParseMetadata(html, raceURL string) (models.RaceMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.RaceMetadata{}, fmt.Errorf("%w: parse race page: %w", models.ErrExtractionFailure, err)
	}

	heading := ""
	doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if strings.Contains(strings.ToLower(class), "title") {
			heading = strings.TrimSpace(s.Text())
			return false
		}
		return true
	})

	location := VenueFromURL(raceURL)
	name := strings.TrimSpace(raceSuffixRe.ReplaceAllString(heading, ""))
	if name == "" {
		name = location
	}
	raceTime := NormalizeClock(doc.Find("time").First().Text())
	if raceTime == "" {
		raceTime = "Unknown Time"
	}

	return models.RaceMetadata{
		RaceID:     RaceID(raceURL),
		Location:   location,
		RaceName:   name,
		RaceNumber: RaceNumber(heading, raceURL),
		RaceTime:   raceTime,
		RaceType:   models.ParseRaceType(raceURL),
		URL:        raceURL,
		Source:     models.SourceSportsbet,
	}, nil
}

// ParseOdds extracts every outcome card on a race page. The fixed win
// price is the only back level; open and fluctuation prices are kept as
// displayed.
func ParseOdds(html string) (models.OddsSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse race page: %w", models.ErrExtractionFailure, err)
	}

	cards := doc.Find(cardSelector)
	if cards.Length() == 0 {
		return nil, fmt.Errorf("%w: no outcome cards on race page", models.ErrExtractionFailure)
	}

	out := make(models.OddsSnapshot, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		nameTag := card.Find(nameSelector).First()
		if nameTag.Length() == 0 {
			return
		}
		number, rawName := splitOutcomeName(strings.TrimSpace(nameTag.Text()))
		name := models.NormalizeRunner(barrierRe.ReplaceAllString(rawName, ""))
		if name == "" {
			return
		}

		q := models.Quote{Number: number}
		if price := card.Find(priceSelector).First(); price.Length() > 0 {
			q.Back[0].Price = models.ParsePrice(price.Text())
		}

		var flucs []string
		card.Find(flucsSelector).Each(func(_ int, s *goquery.Selection) {
			flucs = append(flucs, strings.TrimSpace(s.Text()))
		})
		fl := &models.Fluctuations{}
		if len(flucs) > 0 {
			fl.Open = flucs[0]
			fl.OpenDecimal = models.ParsePrice(flucs[0])
		}
		if len(flucs) > 1 {
			fl.History = append([]string(nil), flucs[1:min(3, len(flucs))]...)
		}
		q.Fluctuations = fl

		out[name] = q
	})
	return out, nil
}

// splitOutcomeName splits "3. Fastback (4)" into "3" and "Fastback (4)".
func splitOutcomeName(s string) (number, name string) {
	parts := strings.SplitN(s, ". ", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), parts[1]
	}
	return "", s
}
