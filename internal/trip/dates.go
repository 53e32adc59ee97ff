package trip

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, E(KindInvalidInput, "invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// FormatDateRange renders the trip_summary.dates form "START to END".
func FormatDateRange(start, end string) string {
	return start + " to " + end
}

// ParseDateRange splits a "START to END" range into its endpoints.
func ParseDateRange(s string) (start, end string, err error) {
	parts := strings.Split(s, " to ")
	if len(parts) != 2 {
		return "", "", E(KindInvalidInput, "invalid date range %q (want \"YYYY-MM-DD to YYYY-MM-DD\")", s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// DateSpanDays returns the inclusive day count between two dates.
func DateSpanDays(start, end string) (int, error) {
	s, err := ParseDate(start)
	if err != nil {
		return 0, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return 0, err
	}
	if e.Before(s) {
		return 0, E(KindInvalidInput, "end date %s precedes start date %s", end, start)
	}
	return int(e.Sub(s).Hours()/24) + 1, nil
}

// ParseClock parses an HH:MM wall-clock value into minutes since midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, E(KindInvalidInput, "invalid time %q (want HH:MM)", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, E(KindInvalidInput, "time %q out of range", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as HH:MM, clamped to the day.
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes > 23*60+59 {
		minutes = 23*60 + 59
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
