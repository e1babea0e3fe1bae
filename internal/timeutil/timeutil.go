// Package timeutil provides timezone-aware calendar boundary helpers.
// All dashboard day/week math goes through these so that a user in
// Tokyo and a user in Denver see activity bucketed on their own
// calendar, not the server's.
package timeutil

import "time"

// LocationOrUTC loads an IANA timezone name, falling back to UTC
// when the name is empty or unknown.
func LocationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns midnight of the Monday of t's ISO week in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	// time.Weekday numbers Sunday as 0; shift so Monday is 0.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfYear returns midnight of January 1 of t's year in loc.
func StartOfYear(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), 1, 1, 0, 0, 0, 0, loc)
}

// ISODate formats t as YYYY-MM-DD in its own location.
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseISODate parses a YYYY-MM-DD string as midnight in loc.
func ParseISODate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, loc)
}
