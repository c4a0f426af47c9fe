package availability

import (
	"time"
)

// Day is one bookable calendar day offered to the widget.
type Day struct {
	Date    string `json:"date"`    // "2006-01-02"
	Display string `json:"display"` // "Mon, Jan 2"
	DayName string `json:"dayName"` // "Monday"
}

// Slot is one bookable start time on a day.
type Slot struct {
	Time    string `json:"time"`    // "15:04", 24h
	Display string `json:"display"` // "3:04 PM"
}

// Busy is a confirmed appointment interval. Callers must pre-filter to
// confirmed status; cancelled and completed rows never block a slot.
type Busy struct {
	Date  string // "2006-01-02"
	Start string // "15:04"
	End   string
}

// Block is an owner-declared unavailability window. An empty Start and End
// blocks the whole day. Recurring blocks ignore Date and apply to every
// date whose weekday appears in RecurringDays.
type Block struct {
	Date          string
	Start         string
	End           string
	Recurring     bool
	RecurringDays []int
}

func (b Block) wholeDay() bool {
	return b.Start == "" && b.End == ""
}

func (b Block) appliesTo(dateKey string, wd time.Weekday) bool {
	if b.Recurring {
		for _, d := range b.RecurringDays {
			if d == int(wd) {
				return true
			}
		}
		return false
	}
	return b.Date == dateKey
}

// FreeSlots computes the bookable start times for date, in chronological
// order. The date is interpreted in the business timezone; now is the
// moment the advance-notice rule is measured from. A date outside business
// weekdays, fully blocked, or in the past yields no slots.
func FreeSlots(s Settings, busy []Busy, blocks []Block, now time.Time, date time.Time) []Slot {
	loc := s.Location()
	now = now.In(loc)
	date = date.In(loc)
	dateKey := date.Format(DateFormat)
	weekday := date.Weekday()

	if !s.allowsWeekday(weekday) {
		return nil
	}
	for _, b := range blocks {
		if b.wholeDay() && b.appliesTo(dateKey, weekday) {
			return nil
		}
	}

	cutoff := now.Add(time.Duration(s.MinAdvanceHours) * time.Hour)

	busyToday := make([][2]int, 0, len(busy))
	for _, a := range busy {
		if a.Date != dateKey {
			continue
		}
		start, err := ParseClock(a.Start)
		if err != nil {
			continue
		}
		end, err := ParseClock(a.End)
		if err != nil {
			continue
		}
		busyToday = append(busyToday, [2]int{start, end})
	}

	blockedToday := make([][2]int, 0, len(blocks))
	for _, b := range blocks {
		if b.wholeDay() || !b.appliesTo(dateKey, weekday) {
			continue
		}
		start, err := ParseClock(b.Start)
		if err != nil {
			continue
		}
		end, err := ParseClock(b.End)
		if err != nil {
			continue
		}
		blockedToday = append(blockedToday, [2]int{start, end})
	}

	var slots []Slot
	dayStart := s.StartHour * 60
	dayEnd := s.EndHour * 60
	// The final partial slot is dropped, never truncated.
	for start := dayStart; start+s.DurationMins <= dayEnd; start += s.DurationMins {
		end := start + s.DurationMins

		startAt := time.Date(date.Year(), date.Month(), date.Day(), start/60, start%60, 0, 0, loc)
		if startAt.Before(cutoff) {
			continue
		}

		conflict := false
		for _, b := range busyToday {
			if Overlaps(b[0], b[1], start, end, s.BufferMins) {
				conflict = true
				break
			}
		}
		if !conflict {
			for _, b := range blockedToday {
				if Overlaps(b[0], b[1], start, end, 0) {
					conflict = true
					break
				}
			}
		}
		if conflict {
			continue
		}

		slots = append(slots, Slot{Time: FormatClock(start), Display: FormatDisplay(start)})
	}
	return slots
}

// AvailableDays lists the days within the booking window that still have at
// least one free slot, in chronological order. horizonDays caps how far out
// the list goes; zero or negative means the settings' MaxAdvanceDays.
func AvailableDays(s Settings, busy []Busy, blocks []Block, now time.Time, horizonDays int) []Day {
	loc := s.Location()
	now = now.In(loc)

	horizon := s.MaxAdvanceDays
	if horizonDays > 0 && horizonDays < horizon {
		horizon = horizonDays
	}

	var days []Day
	for offset := 0; offset <= horizon; offset++ {
		date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, offset)
		if len(FreeSlots(s, busy, blocks, now, date)) == 0 {
			continue
		}
		days = append(days, Day{
			Date:    date.Format(DateFormat),
			Display: date.Format("Mon, Jan 2"),
			DayName: date.Weekday().String(),
		})
	}
	return days
}
