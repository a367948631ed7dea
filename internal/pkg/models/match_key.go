package models

import (
	"regexp"
	"strconv"
	"strings"
)

// MatchKey ties the listings of one physical race together across sources.
//
// The name part comes from race_name, not location: some sources only report
// the region in location while race_name carries the venue.
type MatchKey struct {
	RaceType   RaceType
	Name       string
	RaceNumber int
}

// String renders the key as race_type_name_number, e.g. horse_flemington_5.
func (k MatchKey) String() string {
	return string(k.RaceType) + "_" + k.Name + "_" + strconv.Itoa(k.RaceNumber)
}

var nameStripper = strings.NewReplacer(
	" ", "",
	"-", "",
	"'", "",
	"’", "",
)

// Normalize lowercases a race name and removes spaces, hyphens and apostrophes.
func Normalize(name string) string {
	return nameStripper.Replace(strings.ToLower(name))
}

// MakeKey builds the MatchKey of a metadata record.
func MakeKey(m RaceMetadata) MatchKey {
	return MatchKey{
		RaceType:   m.RaceType,
		Name:       Normalize(m.RaceName),
		RaceNumber: m.RaceNumber,
	}
}

// RunnerName is the canonical competitor identity shared across sources.
type RunnerName string

var (
	runnerStripper = strings.NewReplacer(
		`"`, "",
		"'", "",
		"‘", "",
		"’", "",
		"“", "",
		"”", "",
		".", "",
		"\u00a0", " ",
	)
	// saddle-cloth numbers, barrier draws, "(NZ)" and similar annotations
	trailingParens = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
)

// NormalizeRunner derives a RunnerName from a source-reported name.
func NormalizeRunner(name string) RunnerName {
	s := runnerStripper.Replace(name)
	for {
		stripped := trailingParens.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	return RunnerName(strings.Join(strings.Fields(s), " "))
}
