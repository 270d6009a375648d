// Package timeslot converts branch-local wall-clock input into UTC
// instants and enforces the 15-minute booking grid.  Booking times are
// entered as "YYYY-MM-DD HH:MM:SS" text in the branch's timezone and
// stored in UTC; alignment is always judged against the local wall
// clock, not UTC, because a zone's UTC offset is not required to be a
// multiple of 15 minutes.
package timeslot

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the wall-clock format accepted from clients and stored in
// DATETIME columns ("2006-01-02 15:04:05").
const Layout = "2006-01-02 15:04:05"

// slotMinutes is the booking grid.  Start and end instants must fall on
// a multiple of this many minutes in branch-local time.
const slotMinutes = 15

// ErrInvalidRange is returned when an end instant is not strictly after
// its start instant.
var ErrInvalidRange = errors.New("end time must be after start time")

// ConversionError reports that wall-clock text or a timezone name could
// not be interpreted.  Field names which input was at fault ("timezone",
// "start_time" or "end_time").
type ConversionError struct {
	Field string // offending input
	Value string // the rejected text
	Err   error  // underlying parse error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot interpret %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// AlignmentError reports that a booking boundary does not sit on the
// 15-minute grid in branch-local time.  Endpoint is "start_time" or
// "end_time".
type AlignmentError struct {
	Endpoint string    // which boundary is misaligned
	Local    time.Time // the offending instant in branch-local time
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("%s %s is not on a %d-minute boundary", e.Endpoint, e.Local.Format(Layout), slotMinutes)
}

// LoadZone resolves an IANA timezone name.  Unknown names yield a
// ConversionError so callers can surface them as client errors rather
// than server failures.
func LoadZone(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &ConversionError{Field: "timezone", Value: name, Err: err}
	}
	return loc, nil
}

// Normalize interprets start and end wall-clock text in the given
// location, converts both to UTC and truncates them to the start of
// their minute.  It does not check ordering or grid alignment; that is
// Validate's job.  Nonexistent local times inside a DST gap resolve by
// reading the entered wall clock with the post-transition offset, so
// the instant lands just before the jump; ambiguous times in a DST
// fold resolve to the first occurrence.  Both follow
// time.ParseInLocation's normalization and are pinned by tests.
func Normalize(startText, endText string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := parseLocal("start_time", startText, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseLocal("end_time", endText, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// parseLocal parses one wall-clock string in loc and returns the UTC
// instant truncated to the minute.
func parseLocal(field, text string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, text, loc)
	if err != nil {
		return time.Time{}, &ConversionError{Field: field, Value: text, Err: err}
	}
	// Drop seconds before converting; the grid is defined on whole minutes.
	t = t.Add(-time.Duration(t.Second()) * time.Second)
	return t.UTC(), nil
}

// Validate checks that both UTC instants sit on the 15-minute grid when
// viewed in the branch's timezone and that end is strictly after start.
// The ordering check is deliberately repeated here even though callers
// normalize first; Normalize does not enforce it.
func Validate(start, end time.Time, loc *time.Location) error {
	if !end.After(start) {
		return ErrInvalidRange
	}
	if !aligned(start, loc) {
		return &AlignmentError{Endpoint: "start_time", Local: start.In(loc)}
	}
	if !aligned(end, loc) {
		return &AlignmentError{Endpoint: "end_time", Local: end.In(loc)}
	}
	return nil
}

// aligned reports whether the instant falls exactly on a grid boundary
// in local wall-clock terms: minute divisible by 15, zero seconds.
func aligned(t time.Time, loc *time.Location) bool {
	lt := t.In(loc)
	return lt.Minute()%slotMinutes == 0 && lt.Second() == 0 && lt.Nanosecond() == 0
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect.  Two bookings that merely touch (one ends exactly when the
// other starts) do not overlap.  The SQL range query in the repository
// implements this same predicate; this form backs the notification
// endpoints and tests.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}
