package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pixelcraft/concierge/internal/availability"
)

func validRequest() *CreateRequest {
	return &CreateRequest{
		BusinessID: "biz-1",
		Date:       "2024-06-03",
		StartTime:  "14:00",
		EndTime:    "14:30",
		Customer:   Customer{Name: "Ada Lovelace", Email: "ada@example.com"},
	}
}

func TestMemoryCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	appt, err := store.Create(ctx, validRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if appt.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", appt.Status)
	}
	if appt.DurationMins != 30 {
		t.Fatalf("expected 30 minute duration, got %d", appt.DurationMins)
	}

	got, err := store.Get(ctx, "biz-1", appt.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Customer.Email != "ada@example.com" {
		t.Fatalf("unexpected customer: %+v", got.Customer)
	}

	if _, err := store.Get(ctx, "other-biz", appt.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant get should be not found, got %v", err)
	}
}

func TestMemoryCreateConflicts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Create(ctx, validRequest()); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := store.Create(ctx, validRequest()); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("duplicate create should conflict, got %v", err)
	}

	// Overlapping but not identical interval.
	overlapping := validRequest()
	overlapping.StartTime = "14:15"
	overlapping.EndTime = "14:45"
	if _, err := store.Create(ctx, overlapping); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("overlapping create should conflict, got %v", err)
	}

	// Adjacent slot is fine with no buffer.
	adjacent := validRequest()
	adjacent.StartTime = "14:30"
	adjacent.EndTime = "15:00"
	if _, err := store.Create(ctx, adjacent); err != nil {
		t.Fatalf("adjacent create should succeed, got %v", err)
	}

	// With a buffer the next adjacent slot conflicts.
	buffered := validRequest()
	buffered.StartTime = "15:00"
	buffered.EndTime = "15:30"
	buffered.BufferMins = 15
	if _, err := store.Create(ctx, buffered); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("buffered adjacent create should conflict, got %v", err)
	}
}

func TestMemoryCreateRespectsBlocks(t *testing.T) {
	store := NewMemoryStore()
	store.SetBlocks("biz-1", []availability.Block{{Date: "2024-06-03", Start: "14:00", End: "15:00"}})

	if _, err := store.Create(context.Background(), validRequest()); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("blocked interval should conflict, got %v", err)
	}

	// Whole-day block.
	store.SetBlocks("biz-1", []availability.Block{{Date: "2024-06-03"}})
	if _, err := store.Create(context.Background(), validRequest()); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("whole-day block should conflict, got %v", err)
	}
}

func TestMemoryCreateValidation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateRequest)
		want   error
	}{
		{"missing name", func(r *CreateRequest) { r.Customer.Name = " " }, ErrNameRequired},
		{"missing email", func(r *CreateRequest) { r.Customer.Email = "" }, ErrEmailRequired},
		{"bad email", func(r *CreateRequest) { r.Customer.Email = "not-an-email" }, ErrInvalidEmail},
		{"inverted interval", func(r *CreateRequest) { r.StartTime = "15:00"; r.EndTime = "14:00" }, ErrInvalidInterval},
		{"bad date", func(r *CreateRequest) { r.Date = "June 3rd" }, ErrInvalidInterval},
		{"bad clock", func(r *CreateRequest) { r.StartTime = "2pm" }, ErrInvalidInterval},
	}
	for _, tc := range cases {
		req := validRequest()
		tc.mutate(req)
		if _, err := store.Create(ctx, req); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestConcurrentCreatesExactlyOneWins(t *testing.T) {
	store := NewMemoryStore()
	const racers = 8

	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(context.Background(), validRequest())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if conflicts != racers-1 {
		t.Fatalf("expected %d conflicts, got %d", racers-1, conflicts)
	}
}

func TestCancelFreesSlot(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	settings := availability.Settings{
		BusinessID:      "biz-1",
		Timezone:        "UTC",
		AvailableDays:   []int{1, 2, 3, 4, 5},
		StartHour:       9,
		EndHour:         17,
		DurationMins:    30,
		MinAdvanceHours: 0,
		MaxAdvanceDays:  14,
	}
	now := time.Date(2024, time.June, 2, 8, 0, 0, 0, time.UTC)
	date := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

	appt, err := store.Create(ctx, validRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	listed, err := store.ListForDate(ctx, "biz-1", "2024-06-03")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	slots := availability.FreeSlots(settings, BusyIntervals(listed), nil, now, date)
	for _, slot := range slots {
		if slot.Time == "14:00" {
			t.Fatal("booked slot should not appear in free slots")
		}
	}

	cancelled, err := store.Cancel(ctx, "biz-1", appt.ID, "customer asked")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("cancel did not record state: %+v", cancelled)
	}
	if cancelled.CancelReason != "customer asked" {
		t.Fatalf("reason not stored: %q", cancelled.CancelReason)
	}

	// Cancelled rows no longer block the slot.
	listed, _ = store.ListForDate(ctx, "biz-1", "2024-06-03")
	slots = availability.FreeSlots(settings, BusyIntervals(listed), nil, now, date)
	found := false
	for _, slot := range slots {
		if slot.Time == "14:00" {
			found = true
		}
	}
	if !found {
		t.Fatal("cancelled slot should reappear in free slots")
	}

	// Cancelling again is an invalid transition; the row is kept.
	if _, err := store.Cancel(ctx, "biz-1", appt.ID, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second cancel should be invalid, got %v", err)
	}
	if _, err := store.Cancel(ctx, "biz-1", "missing-id", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancel of unknown id should be not found, got %v", err)
	}
}

func TestListForDateSortedAllStatuses(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	late := validRequest()
	late.StartTime = "16:00"
	late.EndTime = "16:30"
	if _, err := store.Create(ctx, late); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	early, err := store.Create(ctx, validRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := store.Cancel(ctx, "biz-1", early.ID, ""); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	listed, err := store.ListForDate(ctx, "biz-1", "2024-06-03")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected both rows regardless of status, got %d", len(listed))
	}
	if listed[0].StartTime != "14:00" || listed[1].StartTime != "16:00" {
		t.Fatalf("rows not in start-time order: %+v", listed)
	}
}
