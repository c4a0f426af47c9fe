package availability

import (
	"errors"
	"time"
)

var (
	// ErrInvalidHours is returned when the business day is empty or inverted.
	ErrInvalidHours = errors.New("availability: start hour must be before end hour")

	// ErrInvalidDuration is returned when the slot duration is not positive.
	ErrInvalidDuration = errors.New("availability: slot duration must be positive")

	// ErrInvalidBuffer is returned when the buffer is negative.
	ErrInvalidBuffer = errors.New("availability: buffer time cannot be negative")

	// ErrInvalidTimezone is returned when the IANA zone cannot be loaded.
	ErrInvalidTimezone = errors.New("availability: unknown timezone")

	// ErrNoWeekdays is returned when no weekday accepts bookings.
	ErrNoWeekdays = errors.New("availability: at least one available weekday required")
)

// Settings describes a business's booking rules. Weekdays use 0=Sunday
// through 6=Saturday. All slot math runs in Timezone.
type Settings struct {
	BusinessID      string `json:"business_id"`
	Timezone        string `json:"timezone"`
	AvailableDays   []int  `json:"available_days"`
	StartHour       int    `json:"start_hour"`
	EndHour         int    `json:"end_hour"`
	DurationMins    int    `json:"default_duration_mins"`
	BufferMins      int    `json:"buffer_mins"`
	MinAdvanceHours int    `json:"min_advance_hours"`
	MaxAdvanceDays  int    `json:"max_advance_days"`
}

// Validate checks the structural invariants of the settings.
func (s Settings) Validate() error {
	if s.StartHour >= s.EndHour {
		return ErrInvalidHours
	}
	if s.DurationMins <= 0 {
		return ErrInvalidDuration
	}
	if s.BufferMins < 0 {
		return ErrInvalidBuffer
	}
	if len(s.AvailableDays) == 0 {
		return ErrNoWeekdays
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return ErrInvalidTimezone
		}
	}
	return nil
}

// Location returns the business timezone, falling back to UTC when the
// zone is empty or invalid.
func (s Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s Settings) allowsWeekday(wd time.Weekday) bool {
	for _, d := range s.AvailableDays {
		if d == int(wd) {
			return true
		}
	}
	return false
}
