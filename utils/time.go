// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// TruncateToDay drops the clock part of t, keeping its location
func TruncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// InLocation converts t into the named IANA zone, falling back to UTC for an unknown or empty name
func InLocation(t time.Time, name string) time.Time {
	if name == "" {
		return t.UTC()
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return t.UTC()
	}
	return t.In(loc)
}

// InQuietHours reports whether hour falls inside the [start, end) window.
// Windows where start > end wrap past midnight; start == end is an empty window.
func InQuietHours(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// ParseClockHour parses "HH:MM" (or "HH") and returns the hour
func ParseClockHour(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	layout := "15:04"
	if len(s) <= 2 {
		layout = "15"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, false
	}
	return t.Hour(), true
}
