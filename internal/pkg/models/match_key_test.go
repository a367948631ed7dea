package models

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Flemington", "flemington"},
		{"Moonee Valley", "mooneevalley"},
		{"Moonee-Valley", "mooneevalley"},
		{"Bet365 Geelong", "bet365geelong"},
		{"O'Brien's Park", "obrienspark"},
		{"Hawke’s Bay", "hawkesbay"},
		{"", ""},
	}

	for _, tt := range tests {
		result := Normalize(tt.input)
		if result != tt.expected {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"Flemington", "Moonee - Valley", "O'Brien's Park", "  Sandown Lakeside  ", "ROSEHILL-GARDENS"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestMakeKey_InvariantToNameFormatting(t *testing.T) {
	variants := []string{"Moonee Valley", "moonee valley", "Moonee-Valley", "MOONEE VALLEY", "Moonee' Valley", "MooneeValley"}
	want := MakeKey(RaceMetadata{RaceName: variants[0], RaceNumber: 7, RaceType: RaceTypeHorse})

	for _, v := range variants[1:] {
		got := MakeKey(RaceMetadata{RaceName: v, RaceNumber: 7, RaceType: RaceTypeHorse})
		if got != want {
			t.Errorf("MakeKey(%q) = %v, want %v", v, got, want)
		}
	}

	if other := MakeKey(RaceMetadata{RaceName: "Moonee Valley", RaceNumber: 7, RaceType: RaceTypeGreyhound}); other == want {
		t.Errorf("keys with different race types should differ: %v", other)
	}
	if other := MakeKey(RaceMetadata{RaceName: "Moonee Valley", RaceNumber: 8, RaceType: RaceTypeHorse}); other == want {
		t.Errorf("keys with different race numbers should differ: %v", other)
	}
}

func TestMatchKey_String(t *testing.T) {
	k := MakeKey(RaceMetadata{RaceName: "Flemington", RaceNumber: 5, RaceType: RaceTypeHorse})
	if got := k.String(); got != "horse_flemington_5" {
		t.Errorf("String() = %q, want %q", got, "horse_flemington_5")
	}
	k = MakeKey(RaceMetadata{RaceName: "Ascot", RaceNumber: -1, RaceType: RaceTypeHorse})
	if got := k.String(); got != "horse_ascot_-1" {
		t.Errorf("String() = %q, want %q", got, "horse_ascot_-1")
	}
}

func TestNormalizeRunner(t *testing.T) {
	tests := []struct {
		in   string
		want RunnerName
	}{
		{"Fastback", "Fastback"},
		{"Fastback (4)", "Fastback"},
		{"Fastback (NZ) (4)", "Fastback"},
		{"Mr. Brightside", "Mr Brightside"},
		{`"Lucky" Lad`, "Lucky Lad"},
		{"Didn't Ask", "Didnt Ask"},
		{"Didn’t Ask", "Didnt Ask"},
		{"  Spaced Out  ", "Spaced Out"},
		{"Half (Term) Break", "Half (Term) Break"},
	}
	for _, tt := range tests {
		if got := NormalizeRunner(tt.in); got != tt.want {
			t.Errorf("NormalizeRunner(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRaceMetadata_StartOn(t *testing.T) {
	day := time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)

	got, ok := RaceMetadata{RaceTime: "14:35"}.StartOn(day)
	if !ok {
		t.Fatal("StartOn: expected ok for 14:35")
	}
	want := time.Date(2026, 3, 7, 14, 35, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("StartOn = %v, want %v", got, want)
	}

	for _, bad := range []string{"Unknown", "", "2:35pm", "25:00"} {
		if _, ok := (RaceMetadata{RaceTime: bad}).StartOn(day); ok {
			t.Errorf("StartOn(%q): expected not ok", bad)
		}
	}
}

func TestRaceMetadata_RaceKey(t *testing.T) {
	m := RaceMetadata{Location: "Flemington", RaceNumber: 5}
	if got := m.RaceKey(); got != "Flemington_R5" {
		t.Errorf("RaceKey() = %q, want %q", got, "Flemington_R5")
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"3.45", 3.45, true},
		{" 12 ", 12, true},
		{"$1,204", 1204, true},
		{"SP", 0, false},
		{"", 0, false},
		{"N/A", 0, false},
	}
	for _, tt := range tests {
		got := ParsePrice(tt.in)
		if (got != nil) != tt.ok {
			t.Errorf("ParsePrice(%q) ok = %v, want %v", tt.in, got != nil, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("ParsePrice(%q) = %v, want %v", tt.in, *got, tt.want)
		}
	}
}

func TestParseRaceType(t *testing.T) {
	tests := []struct {
		in   string
		want RaceType
	}{
		{"/horse-racing/flemington/race-5-123", RaceTypeHorse},
		{"/greyhound-racing/sandown-park/race-2-99", RaceTypeGreyhound},
		{"harness", RaceTypeUnknown},
	}
	for _, tt := range tests {
		if got := ParseRaceType(tt.in); got != tt.want {
			t.Errorf("ParseRaceType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
