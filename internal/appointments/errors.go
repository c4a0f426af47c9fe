package appointments

import "errors"

var (
	// ErrSlotConflict is returned when a create loses the race for a slot.
	ErrSlotConflict = errors.New("appointments: slot already taken")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the appointment's current state.
	ErrInvalidTransition = errors.New("appointments: invalid status transition")

	// ErrNotFound is returned when an appointment does not exist.
	ErrNotFound = errors.New("appointments: not found")

	// ErrNameRequired is returned when the customer name is missing.
	ErrNameRequired = errors.New("appointments: customer name is required")

	// ErrEmailRequired is returned when the customer email is missing.
	ErrEmailRequired = errors.New("appointments: customer email is required")

	// ErrInvalidEmail is returned when the customer email is malformed.
	ErrInvalidEmail = errors.New("appointments: customer email is invalid")

	// ErrInvalidInterval is returned when the requested times are malformed
	// or inverted.
	ErrInvalidInterval = errors.New("appointments: invalid time interval")
)
