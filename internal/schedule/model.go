package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/pixelcraft/concierge/internal/availability"
)

var (
	// ErrSettingsNotFound is returned when a business has no settings row.
	ErrSettingsNotFound = errors.New("schedule: settings not found")

	// ErrBlockedSlotNotFound is returned for an unknown blocked slot id.
	ErrBlockedSlotNotFound = errors.New("schedule: blocked slot not found")

	// ErrInvalidBlock is returned when a blocked slot is malformed.
	ErrInvalidBlock = errors.New("schedule: invalid blocked slot")
)

// BlockedSlot is an owner-declared unavailability window: a holiday, a
// vacation day, or a weekly recurring break. It never carries customer
// data.
type BlockedSlot struct {
	ID            string    `json:"id"`
	BusinessID    string    `json:"business_id"`
	Date          string    `json:"date,omitempty"` // "2006-01-02"; empty for recurring blocks
	StartTime     string    `json:"start_time,omitempty"`
	EndTime       string    `json:"end_time,omitempty"` // both empty = whole day
	Recurring     bool      `json:"is_recurring"`
	RecurringDays []int     `json:"recurring_days,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate checks the structural rules: a block targets either a concrete
// date or a recurring weekday set, and partial windows need both ends.
func (b *BlockedSlot) Validate() error {
	if b.Recurring {
		if len(b.RecurringDays) == 0 {
			return ErrInvalidBlock
		}
		for _, d := range b.RecurringDays {
			if d < 0 || d > 6 {
				return ErrInvalidBlock
			}
		}
	} else {
		if b.Date == "" {
			return ErrInvalidBlock
		}
		if _, err := time.Parse(availability.DateFormat, b.Date); err != nil {
			return ErrInvalidBlock
		}
	}
	if (b.StartTime == "") != (b.EndTime == "") {
		return ErrInvalidBlock
	}
	if b.StartTime != "" {
		start, err := availability.ParseClock(b.StartTime)
		if err != nil {
			return ErrInvalidBlock
		}
		end, err := availability.ParseClock(b.EndTime)
		if err != nil {
			return ErrInvalidBlock
		}
		if start >= end {
			return ErrInvalidBlock
		}
	}
	return nil
}

// Block converts to the calculator's input shape.
func (b *BlockedSlot) Block() availability.Block {
	return availability.Block{
		Date:          b.Date,
		Start:         b.StartTime,
		End:           b.EndTime,
		Recurring:     b.Recurring,
		RecurringDays: b.RecurringDays,
	}
}

// Blocks maps a slice of blocked slots for the calculator.
func Blocks(slots []BlockedSlot) []availability.Block {
	out := make([]availability.Block, 0, len(slots))
	for i := range slots {
		out = append(out, slots[i].Block())
	}
	return out
}

// SettingsStore persists per-business booking rules.
type SettingsStore interface {
	Get(ctx context.Context, businessID string) (*availability.Settings, error)
	Upsert(ctx context.Context, settings availability.Settings) error
}

// BlockedSlotStore persists unavailability windows.
type BlockedSlotStore interface {
	List(ctx context.Context, businessID string) ([]BlockedSlot, error)
	Create(ctx context.Context, slot *BlockedSlot) (*BlockedSlot, error)
	Delete(ctx context.Context, businessID, id string) error
}
