package chat

import "github.com/pixelcraft/concierge/internal/availability"

// UIComponent types the widget knows how to render.
const (
	UITypeAvailableDays = "available_days"
	UITypeTimeSlots     = "time_slots"
)

// UIComponent is the structured payload attached to an assistant message.
// The form step carries no payload; the widget renders it locally.
type UIComponent struct {
	Type  string              `json:"type"`
	Days  []availability.Day  `json:"days,omitempty"`
	Date  string              `json:"date,omitempty"`
	Slots []availability.Slot `json:"slots,omitempty"`
}

func AvailableDaysComponent(days []availability.Day) *UIComponent {
	return &UIComponent{Type: UITypeAvailableDays, Days: days}
}

func TimeSlotsComponent(date string, slots []availability.Slot) *UIComponent {
	return &UIComponent{Type: UITypeTimeSlots, Date: date, Slots: slots}
}
