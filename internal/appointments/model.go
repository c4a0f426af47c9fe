package appointments

import (
	"regexp"
	"strings"
	"time"

	"github.com/pixelcraft/concierge/internal/availability"
)

// Status is the lifecycle state of an appointment. Only confirmed
// appointments block a slot; the other three states are terminal.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// Customer is the booking contact captured by the inline form.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate checks the form fields. Phone is optional.
func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNameRequired
	}
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// Appointment is a booked slot. Rows are never hard-deleted; cancellations
// keep the row for the audit trail.
type Appointment struct {
	ID           string     `json:"id"`
	BusinessID   string     `json:"business_id"`
	Date         string     `json:"date"`       // "2006-01-02"
	StartTime    string     `json:"start_time"` // "15:04"
	EndTime      string     `json:"end_time"`
	DurationMins int        `json:"duration_mins"`
	Customer     Customer   `json:"customer"`
	Status       Status     `json:"status"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CreateRequest carries everything the store needs to book a slot. The
// buffer travels with the request because the conflict re-check at write
// time must apply the same gap rule the calculator used.
type CreateRequest struct {
	BusinessID string
	Date       string // "2006-01-02"
	StartTime  string // "15:04"
	EndTime    string
	BufferMins int
	Customer   Customer
}

// Validate checks shape only; slot conflicts are detected at write time.
func (r *CreateRequest) Validate() error {
	if _, err := time.Parse(availability.DateFormat, r.Date); err != nil {
		return ErrInvalidInterval
	}
	start, err := availability.ParseClock(r.StartTime)
	if err != nil {
		return ErrInvalidInterval
	}
	end, err := availability.ParseClock(r.EndTime)
	if err != nil {
		return ErrInvalidInterval
	}
	if start >= end {
		return ErrInvalidInterval
	}
	if r.BufferMins < 0 {
		return ErrInvalidInterval
	}
	return r.Customer.Validate()
}

// DurationMins derives the length from the validated interval.
func (r *CreateRequest) DurationMins() int {
	start, err := availability.ParseClock(r.StartTime)
	if err != nil {
		return 0
	}
	end, err := availability.ParseClock(r.EndTime)
	if err != nil {
		return 0
	}
	return end - start
}

// BusyIntervals maps confirmed appointments to the calculator's input shape.
func BusyIntervals(appts []Appointment) []availability.Busy {
	busy := make([]availability.Busy, 0, len(appts))
	for _, a := range appts {
		if a.Status != StatusConfirmed {
			continue
		}
		busy = append(busy, availability.Busy{Date: a.Date, Start: a.StartTime, End: a.EndTime})
	}
	return busy
}
