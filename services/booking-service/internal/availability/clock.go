package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AllDay is the sentinel slot time used when a blocking holiday blanks out an
// entire date. It never appears alongside regular HH:mm slots.
const AllDay = "all-day"

const dateLayout = "2006-01-02"

// ParseClock converts an HH:mm wall-clock string to minutes since midnight.
// No timezone handling: all times are local wall-clock values.
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as zero-padded HH:mm. Zero
// padding keeps lexicographic ordering equal to chronological ordering.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate parses a YYYY-MM-DD string into a day-granular time.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
