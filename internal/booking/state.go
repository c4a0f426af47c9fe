package booking

import (
	"errors"
	"time"

	"github.com/pixelcraft/concierge/internal/appointments"
	"github.com/pixelcraft/concierge/internal/availability"
)

var (
	ErrInvalidTransition = errors.New("booking: event not valid in current state")
	ErrUnknownDay        = errors.New("booking: picked day was not offered")
	ErrUnknownSlot       = errors.New("booking: picked slot was not offered")
)

// State is the widget-side position in the booking conversation.
type State string

const (
	StateIdle         State = "idle"
	StateDaysOffered  State = "days_offered"
	StateSlotsOffered State = "slots_offered"
	StateFormOpen     State = "form_open"
	StateSubmitting   State = "submitting"
)

// Session is the per-conversation booking context. It lives in Redis
// between turns; Redis is only a carrier, every transition goes through
// Apply.
type Session struct {
	ConversationID string               `json:"conversation_id"`
	BusinessID     string               `json:"business_id"`
	State          State                `json:"state"`
	OfferedDays    []availability.Day   `json:"offered_days,omitempty"`
	OfferedSlots   []availability.Slot  `json:"offered_slots,omitempty"`
	SelectedDate   string               `json:"selected_date,omitempty"`
	SelectedTime   string               `json:"selected_time,omitempty"`
	Customer       appointments.Customer `json:"customer,omitempty"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// NewSession returns an idle session for a conversation.
func NewSession(conversationID, businessID string) Session {
	return Session{
		ConversationID: conversationID,
		BusinessID:     businessID,
		State:          StateIdle,
	}
}

func (s Session) offersDay(date string) bool {
	for _, d := range s.OfferedDays {
		if d.Date == date {
			return true
		}
	}
	return false
}

func (s Session) offersSlot(t string) bool {
	for _, sl := range s.OfferedSlots {
		if sl.Time == t {
			return true
		}
	}
	return false
}

// Event is a user action fed into the reducer.
type Event interface{ isEvent() }

type ScheduleRequested struct{}

type DayPicked struct{ Date string }

type SlotPicked struct{ Time string }

type FormSubmitted struct{ Customer appointments.Customer }

type FormCancelled struct{}

type Reset struct{}

func (ScheduleRequested) isEvent() {}
func (DayPicked) isEvent()         {}
func (SlotPicked) isEvent()        {}
func (FormSubmitted) isEvent()     {}
func (FormCancelled) isEvent()     {}
func (Reset) isEvent()             {}

// Action tells the flow which side effect a transition requires.
type Action int

const (
	ActionNone Action = iota
	ActionOfferDays
	ActionOfferSlots
	ActionOpenForm
	ActionCreateAppointment
)

// Apply is the pure transition function. It never performs I/O: offered
// lists are filled in by the flow after it runs the action. On error the
// returned session equals the input session.
func Apply(s Session, e Event) (Session, Action, error) {
	switch ev := e.(type) {
	case Reset:
		next := NewSession(s.ConversationID, s.BusinessID)
		return next, ActionNone, nil

	case ScheduleRequested:
		if s.State == StateSubmitting {
			return s, ActionNone, ErrInvalidTransition
		}
		next := NewSession(s.ConversationID, s.BusinessID)
		next.State = StateDaysOffered
		return next, ActionOfferDays, nil

	case DayPicked:
		// A new day selection from the form abandons the pending form.
		if s.State != StateDaysOffered && s.State != StateFormOpen {
			return s, ActionNone, ErrInvalidTransition
		}
		if !s.offersDay(ev.Date) {
			return s, ActionNone, ErrUnknownDay
		}
		next := s
		next.State = StateSlotsOffered
		next.SelectedDate = ev.Date
		next.SelectedTime = ""
		next.OfferedSlots = nil
		next.Customer = appointments.Customer{}
		return next, ActionOfferSlots, nil

	case SlotPicked:
		if s.State != StateSlotsOffered {
			return s, ActionNone, ErrInvalidTransition
		}
		if !s.offersSlot(ev.Time) {
			return s, ActionNone, ErrUnknownSlot
		}
		next := s
		next.State = StateFormOpen
		next.SelectedTime = ev.Time
		return next, ActionOpenForm, nil

	case FormSubmitted:
		if s.State != StateFormOpen {
			return s, ActionNone, ErrInvalidTransition
		}
		if err := ev.Customer.Validate(); err != nil {
			return s, ActionNone, err
		}
		next := s
		next.State = StateSubmitting
		next.Customer = ev.Customer
		return next, ActionCreateAppointment, nil

	case FormCancelled:
		if s.State != StateFormOpen {
			return s, ActionNone, ErrInvalidTransition
		}
		return NewSession(s.ConversationID, s.BusinessID), ActionNone, nil
	}
	return s, ActionNone, ErrInvalidTransition
}

// IsValidationError reports whether err is a form-field problem the widget
// should surface inline rather than as a failure.
func IsValidationError(err error) bool {
	return errors.Is(err, appointments.ErrNameRequired) ||
		errors.Is(err, appointments.ErrEmailRequired) ||
		errors.Is(err, appointments.ErrInvalidEmail)
}
