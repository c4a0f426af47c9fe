package schedule

import (
	"errors"
	"testing"
)

func TestBlockedSlotValidate(t *testing.T) {
	cases := []struct {
		name string
		slot BlockedSlot
		ok   bool
	}{
		{"whole day", BlockedSlot{Date: "2024-12-25"}, true},
		{"partial day", BlockedSlot{Date: "2024-12-24", StartTime: "12:00", EndTime: "13:00"}, true},
		{"recurring lunch", BlockedSlot{Recurring: true, RecurringDays: []int{2}, StartTime: "12:00", EndTime: "13:00"}, true},
		{"recurring whole day", BlockedSlot{Recurring: true, RecurringDays: []int{0, 6}}, true},
		{"no target", BlockedSlot{}, false},
		{"recurring without days", BlockedSlot{Recurring: true}, false},
		{"weekday out of range", BlockedSlot{Recurring: true, RecurringDays: []int{7}}, false},
		{"bad date", BlockedSlot{Date: "Christmas"}, false},
		{"half interval", BlockedSlot{Date: "2024-12-24", StartTime: "12:00"}, false},
		{"inverted interval", BlockedSlot{Date: "2024-12-24", StartTime: "13:00", EndTime: "12:00"}, false},
		{"bad clock", BlockedSlot{Date: "2024-12-24", StartTime: "noon", EndTime: "13:00"}, false},
	}
	for _, tc := range cases {
		err := tc.slot.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidBlock) {
			t.Errorf("%s: expected ErrInvalidBlock, got %v", tc.name, err)
		}
	}
}

func TestBlocksMapping(t *testing.T) {
	slots := []BlockedSlot{
		{Date: "2024-12-25"},
		{Recurring: true, RecurringDays: []int{2}, StartTime: "12:00", EndTime: "13:00"},
	}
	blocks := Blocks(slots)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Date != "2024-12-25" || blocks[0].Start != "" {
		t.Fatalf("whole-day mapping wrong: %+v", blocks[0])
	}
	if !blocks[1].Recurring || blocks[1].RecurringDays[0] != 2 {
		t.Fatalf("recurring mapping wrong: %+v", blocks[1])
	}
}
