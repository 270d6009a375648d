package timeslot

import (
	"errors"
	"testing"
	"time"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := LoadZone(name)
	if err != nil {
		t.Fatalf("LoadZone(%q): %v", name, err)
	}
	return loc
}

func TestNormalizeConvertsBranchLocalToUTC(t *testing.T) {
	tokyo := mustZone(t, "Asia/Tokyo")
	start, end, err := Normalize("2025-03-10 10:00:00", "2025-03-10 11:00:00", tokyo)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	wantStart := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestNormalizeTruncatesSeconds(t *testing.T) {
	tokyo := mustZone(t, "Asia/Tokyo")
	start, _, err := Normalize("2025-03-10 10:00:59", "2025-03-10 11:00:00", tokyo)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := start.Second(); got != 0 {
		t.Errorf("seconds not truncated: %d", got)
	}
	if want := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
}

func TestNormalizeRejectsMalformedInput(t *testing.T) {
	tokyo := mustZone(t, "Asia/Tokyo")
	cases := []struct {
		name       string
		start, end string
		wantField  string
	}{
		{"garbage start", "not a time", "2025-03-10 11:00:00", "start_time"},
		{"garbage end", "2025-03-10 10:00:00", "11 o'clock", "end_time"},
		{"wrong layout", "2025/03/10 10:00:00", "2025-03-10 11:00:00", "start_time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Normalize(tc.start, tc.end, tokyo)
			var convErr *ConversionError
			if !errors.As(err, &convErr) {
				t.Fatalf("err = %v, want ConversionError", err)
			}
			if convErr.Field != tc.wantField {
				t.Errorf("field = %q, want %q", convErr.Field, tc.wantField)
			}
		})
	}
}

func TestLoadZoneUnknownName(t *testing.T) {
	_, err := LoadZone("Mars/Olympus_Mons")
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("err = %v, want ConversionError", err)
	}
	if convErr.Field != "timezone" {
		t.Errorf("field = %q, want timezone", convErr.Field)
	}
}

// Normalizing to UTC and viewing the instant back through the branch
// timezone must reproduce the wall-clock minute that was entered
// (modulo the seconds truncation).
func TestNormalizeRoundTrip(t *testing.T) {
	cases := []struct {
		zone string
		text string
	}{
		{"Asia/Tokyo", "2025-03-10 10:15:00"},
		{"America/New_York", "2025-07-01 09:45:00"},
		{"Europe/Berlin", "2025-12-24 23:30:00"},
		{"Asia/Kathmandu", "2025-05-05 08:00:00"}, // +05:45 offset
		{"Pacific/Chatham", "2025-05-05 12:45:00"}, // +12:45 offset
	}
	for _, tc := range cases {
		t.Run(tc.zone, func(t *testing.T) {
			loc := mustZone(t, tc.zone)
			start, _, err := Normalize(tc.text, tc.text[:11]+"23:45:00", loc)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if got := start.In(loc).Format(Layout); got != tc.text {
				t.Errorf("round trip = %q, want %q", got, tc.text)
			}
		})
	}
}

// A wall-clock time inside the spring-forward gap does not exist; Go
// reads it with the post-transition offset.  2024-03-10 02:30 never
// happened in New York: taken as UTC-4 it is 06:30 UTC, an instant
// that sits just before the jump (01:30 EST locally).
func TestNormalizeDSTGapUsesPostTransitionOffset(t *testing.T) {
	ny := mustZone(t, "America/New_York")
	start, _, err := Normalize("2024-03-10 02:30:00", "2024-03-10 04:00:00", ny)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := time.Date(2024, 3, 10, 6, 30, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Errorf("gap time = %v, want %v", start, want)
	}
}

// A wall-clock time inside the fall-back fold occurs twice; Go resolves
// it to the first occurrence (the pre-transition offset).  2024-11-03
// 01:30 in New York resolves to 01:30 EDT (05:30 UTC), not 01:30 EST.
func TestNormalizeDSTFoldTakesFirstOccurrence(t *testing.T) {
	ny := mustZone(t, "America/New_York")
	start, _, err := Normalize("2024-11-03 01:30:00", "2024-11-03 03:00:00", ny)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Errorf("fold time = %v, want %v", start, want)
	}
}

func TestValidateAlignment(t *testing.T) {
	tokyo := mustZone(t, "Asia/Tokyo")
	at := func(h, m int) time.Time {
		return time.Date(2025, 3, 10, h, m, 0, 0, tokyo).UTC()
	}
	cases := []struct {
		name         string
		start, end   time.Time
		wantEndpoint string // empty means valid
	}{
		{"on the hour", at(10, 0), at(11, 0), ""},
		{"quarter marks", at(10, 15), at(10, 45), ""},
		{"half past", at(10, 30), at(11, 30), ""},
		{"start off grid", at(10, 7), at(11, 0), "start_time"},
		{"end off grid", at(10, 0), at(10, 50), "end_time"},
		{"both off grid reports start", at(10, 1), at(10, 59), "start_time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.start, tc.end, tokyo)
			if tc.wantEndpoint == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			var alignErr *AlignmentError
			if !errors.As(err, &alignErr) {
				t.Fatalf("err = %v, want AlignmentError", err)
			}
			if alignErr.Endpoint != tc.wantEndpoint {
				t.Errorf("endpoint = %q, want %q", alignErr.Endpoint, tc.wantEndpoint)
			}
		})
	}
}

// Alignment is judged on the local wall clock.  In Kathmandu (+05:45)
// a local 10:00 booking maps to 04:15 UTC; both are on the grid there,
// but the check must look at the local minutes, not assume UTC.
func TestValidateAlignmentUsesLocalWallClock(t *testing.T) {
	ktm := mustZone(t, "Asia/Kathmandu")
	start := time.Date(2025, 5, 5, 10, 0, 0, 0, ktm).UTC()
	end := time.Date(2025, 5, 5, 11, 0, 0, 0, ktm).UTC()
	if start.Minute() != 15 {
		t.Fatalf("precondition: UTC minute = %d, want 15", start.Minute())
	}
	if err := Validate(start, end, ktm); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRange(t *testing.T) {
	tokyo := mustZone(t, "Asia/Tokyo")
	at := time.Date(2025, 3, 10, 10, 0, 0, 0, tokyo).UTC()
	if err := Validate(at, at, tokyo); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("equal endpoints: err = %v, want ErrInvalidRange", err)
	}
	if err := Validate(at.Add(time.Hour), at, tokyo); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("end before start: err = %v, want ErrInvalidRange", err)
	}
}

func TestOverlapsHalfOpenLaw(t *testing.T) {
	base := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }
	cases := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"identical", at(0), at(60), at(0), at(60), true},
		{"contained", at(0), at(60), at(15), at(45), true},
		{"straddles start", at(30), at(90), at(0), at(60), true},
		{"straddles end", at(0), at(60), at(30), at(90), true},
		{"adjacent after", at(60), at(120), at(0), at(60), false},
		{"adjacent before", at(0), at(60), at(60), at(120), false},
		{"disjoint", at(0), at(60), at(120), at(180), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.s1, tc.e1, tc.s2, tc.e2); got != tc.want {
				t.Errorf("Overlaps = %v, want %v", got, tc.want)
			}
			// The predicate is symmetric.
			if got := Overlaps(tc.s2, tc.e2, tc.s1, tc.e1); got != tc.want {
				t.Errorf("Overlaps (swapped) = %v, want %v", got, tc.want)
			}
		})
	}
}
