package models

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies a bookmaker site.
type Source string

const (
	SourceBetfair   Source = "betfair"
	SourceSportsbet Source = "sportsbet"
)

// RaceType is the kind of race a listing describes.
type RaceType string

const (
	RaceTypeHorse     RaceType = "horse"
	RaceTypeGreyhound RaceType = "greyhound"
	RaceTypeUnknown   RaceType = "unknown"
)

// ParseRaceType maps free text (URL segments, labels) to a RaceType.
func ParseRaceType(s string) RaceType {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "greyhound"):
		return RaceTypeGreyhound
	case strings.Contains(s, "horse"):
		return RaceTypeHorse
	default:
		return RaceTypeUnknown
	}
}

// Race numbers reported when a source does not carry one.
const (
	RaceNumberUnknownBetfair   = -1
	RaceNumberUnknownSportsbet = 0
)

// RaceTimeLayout is the local wall-clock format sources report start times in.
const RaceTimeLayout = "15:04"

// RaceMetadata describes one race listing on one source. It is produced once
// per race per source and never modified afterwards.
type RaceMetadata struct {
	RaceID     string   `json:"race_id"`
	Location   string   `json:"location"`
	RaceName   string   `json:"race_name"`
	RaceNumber int      `json:"race_number"`
	RaceTime   string   `json:"race_time"`
	RaceType   RaceType `json:"race_type"`
	URL        string   `json:"url"`
	Source     Source   `json:"source"`
}

// StartOn combines the bare HH:MM race time with the date of day.
func (m RaceMetadata) StartOn(day time.Time) (time.Time, bool) {
	t, err := time.Parse(RaceTimeLayout, strings.TrimSpace(m.RaceTime))
	if err != nil {
		return time.Time{}, false
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, t.Hour(), t.Minute(), 0, 0, day.Location()), true
}

// RaceKey is the identifier downstream consumers index the odds store by.
// It is built from the raw location, not from the normalized MatchKey, so two
// sources spelling a venue differently produce different identifiers.
func (m RaceMetadata) RaceKey() string {
	return fmt.Sprintf("%s_R%d", m.Location, m.RaceNumber)
}

// MatchedRace joins the listings of one physical race across sources.
type MatchedRace map[Source]RaceMetadata

// Primary returns the metadata reported by the given source.
func (r MatchedRace) Primary(source Source) (RaceMetadata, bool) {
	m, ok := r[source]
	return m, ok
}

// Key returns the shared MatchKey of the joined listings.
func (r MatchedRace) Key() MatchKey {
	for _, m := range r {
		return MakeKey(m)
	}
	return MatchKey{}
}
