package availability

import (
	"fmt"
	"time"
)

// DateFormat is the wire format for calendar dates.
const DateFormat = "2006-01-02"

// ParseClock converts a "HH:MM" string into minutes since midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("availability: bad clock value %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("availability: clock value %q out of range", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// FormatDisplay renders minutes since midnight as a human-readable time,
// e.g. "9:00 AM".
func FormatDisplay(mins int) string {
	t := time.Date(2000, time.January, 1, mins/60, mins%60, 0, 0, time.UTC)
	return t.Format("3:04 PM")
}

// Overlaps reports whether the half-open minute intervals [aStart, aEnd)
// and [bStart, bEnd) intersect once the first interval is expanded by
// bufferMins on both sides. An appointment 13:00-13:30 with a 15 minute
// buffer therefore conflicts with anything touching [12:45, 13:45).
func Overlaps(aStart, aEnd, bStart, bEnd, bufferMins int) bool {
	return bStart < aEnd+bufferMins && bEnd > aStart-bufferMins
}
