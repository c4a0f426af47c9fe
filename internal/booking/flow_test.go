package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pixelcraft/concierge/internal/appointments"
	"github.com/pixelcraft/concierge/internal/availability"
	"github.com/pixelcraft/concierge/internal/schedule"
	"github.com/pixelcraft/concierge/pkg/logging"
)

type recordingNotifier struct {
	mu    sync.Mutex
	appts []appointments.Appointment
	done  chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{done: make(chan struct{}, 4)}
}

func (n *recordingNotifier) BookingConfirmed(_ context.Context, appt *appointments.Appointment) error {
	n.mu.Lock()
	n.appts = append(n.appts, *appt)
	n.mu.Unlock()
	n.done <- struct{}{}
	return nil
}

func (n *recordingNotifier) wait(t *testing.T) appointments.Appointment {
	t.Helper()
	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never called")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.appts[len(n.appts)-1]
}

type flowFixture struct {
	flow     *Flow
	appts    *appointments.MemoryStore
	notifier *recordingNotifier
}

// newFlowFixture wires an in-memory flow for biz-1: Mon-Fri 9-17, 30 min
// slots, 15 min buffer, 24h notice, and a frozen clock at Saturday
// 2024-06-01 10:00 UTC so Monday 2024-06-03 is the first bookable day.
func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	settings := schedule.NewMemorySettingsStore()
	if err := settings.Upsert(context.Background(), testSettings()); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	appts := appointments.NewMemoryStore()
	notifier := newRecordingNotifier()
	flow := NewFlow(FlowConfig{
		Sessions:     NewMemorySessionStore(),
		Settings:     settings,
		BlockedSlots: schedule.NewMemoryBlockedSlotStore(),
		Appointments: appts,
		Notifier:     notifier,
		Logger:       logging.Default(),
		Now:          func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) },
		HorizonDays:  7,
	})
	return &flowFixture{flow: flow, appts: appts, notifier: notifier}
}

func testSettings() availability.Settings {
	return availability.Settings{
		BusinessID:      "biz-1",
		Timezone:        "UTC",
		AvailableDays:   []int{1, 2, 3, 4, 5},
		StartHour:       9,
		EndHour:         17,
		DurationMins:    30,
		BufferMins:      15,
		MinAdvanceHours: 24,
		MaxAdvanceDays:  14,
	}
}

func TestFlowHappyPath(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	reply, err := fx.flow.Handle(ctx, "conv-1", "biz-1", ScheduleRequested{})
	if err != nil {
		t.Fatalf("ScheduleRequested: %v", err)
	}
	if len(reply.Days) == 0 {
		t.Fatal("no days offered")
	}
	if reply.Days[0].Date != "2024-06-03" {
		t.Errorf("first day = %s, want Monday 2024-06-03", reply.Days[0].Date)
	}

	reply, err = fx.flow.Handle(ctx, "conv-1", "biz-1", DayPicked{Date: "2024-06-03"})
	if err != nil {
		t.Fatalf("DayPicked: %v", err)
	}
	if reply.SlotsDate != "2024-06-03" || len(reply.Slots) == 0 {
		t.Fatalf("no slots offered: %+v", reply)
	}
	if reply.Slots[0].Time != "09:00" {
		t.Errorf("first slot = %s, want 09:00", reply.Slots[0].Time)
	}

	reply, err = fx.flow.Handle(ctx, "conv-1", "biz-1", SlotPicked{Time: "14:00"})
	if err != nil {
		t.Fatalf("SlotPicked: %v", err)
	}
	if !reply.OpenForm {
		t.Fatal("form did not open after slot pick")
	}

	reply, err = fx.flow.Handle(ctx, "conv-1", "biz-1", FormSubmitted{
		Customer: appointments.Customer{Name: "Ada Lovelace", Email: "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("FormSubmitted: %v", err)
	}
	if reply.Confirmed == nil {
		t.Fatal("no confirmed appointment in reply")
	}
	if reply.Confirmed.Date != "2024-06-03" || reply.Confirmed.StartTime != "14:00" || reply.Confirmed.EndTime != "14:30" {
		t.Errorf("confirmed %+v", reply.Confirmed)
	}

	sent := fx.notifier.wait(t)
	if sent.ID != reply.Confirmed.ID {
		t.Errorf("notifier got %s, booked %s", sent.ID, reply.Confirmed.ID)
	}

	// Session resets to idle; picking a slot now is rejected gracefully.
	if _, err := fx.flow.Handle(ctx, "conv-1", "biz-1", SlotPicked{Time: "14:00"}); err == nil {
		t.Error("slot pick after reset should fail the transition")
	}
}

func TestFlowSlotConflictReoffersSlots(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	if _, err := fx.flow.Handle(ctx, "conv-1", "biz-1", ScheduleRequested{}); err != nil {
		t.Fatalf("ScheduleRequested: %v", err)
	}
	if _, err := fx.flow.Handle(ctx, "conv-1", "biz-1", DayPicked{Date: "2024-06-03"}); err != nil {
		t.Fatalf("DayPicked: %v", err)
	}
	if _, err := fx.flow.Handle(ctx, "conv-1", "biz-1", SlotPicked{Time: "14:00"}); err != nil {
		t.Fatalf("SlotPicked: %v", err)
	}

	// Someone else grabs 14:00 before the form comes back.
	if _, err := fx.appts.Create(ctx, &appointments.CreateRequest{
		BusinessID: "biz-1", Date: "2024-06-03",
		StartTime: "14:00", EndTime: "14:30", BufferMins: 15,
		Customer: appointments.Customer{Name: "Grace Hopper", Email: "grace@example.com"},
	}); err != nil {
		t.Fatalf("rival create: %v", err)
	}

	reply, err := fx.flow.Handle(ctx, "conv-1", "biz-1", FormSubmitted{
		Customer: appointments.Customer{Name: "Ada Lovelace", Email: "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("FormSubmitted: %v", err)
	}
	if reply.Confirmed != nil {
		t.Fatal("conflicting submit must not confirm")
	}
	if len(reply.Slots) == 0 {
		t.Fatal("conflict should re-offer fresh slots")
	}
	for _, s := range reply.Slots {
		if s.Time == "14:00" {
			t.Error("taken slot still offered after conflict")
		}
	}
	if !strings.Contains(reply.Messages[0], "just taken") {
		t.Errorf("missing apology: %q", reply.Messages[0])
	}

	// The session is back in slots_offered; picking a surviving slot works.
	reply, err = fx.flow.Handle(ctx, "conv-1", "biz-1", SlotPicked{Time: "15:00"})
	if err != nil {
		t.Fatalf("SlotPicked after conflict: %v", err)
	}
	if !reply.OpenForm {
		t.Error("form did not reopen after picking a fresh slot")
	}
}

func TestFlowValidationKeepsFormOpen(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	fx.mustAdvanceToForm(t, "conv-1")

	reply, err := fx.flow.Handle(ctx, "conv-1", "biz-1", FormSubmitted{
		Customer: appointments.Customer{Name: "Ada", Email: "not-an-email"},
	})
	if err != nil {
		t.Fatalf("FormSubmitted: %v", err)
	}
	if !reply.OpenForm {
		t.Error("form should stay open on validation failure")
	}
	if !strings.Contains(reply.Messages[0], "email") {
		t.Errorf("message %q should mention the email", reply.Messages[0])
	}

	// Fixing the email succeeds from the same session.
	reply, err = fx.flow.Handle(ctx, "conv-1", "biz-1", FormSubmitted{
		Customer: appointments.Customer{Name: "Ada", Email: "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if reply.Confirmed == nil {
		t.Fatal("corrected submit did not confirm")
	}
}

func TestFlowFullDayDropsFromOffer(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	if _, err := fx.flow.Handle(ctx, "conv-1", "biz-1", ScheduleRequested{}); err != nil {
		t.Fatalf("ScheduleRequested: %v", err)
	}

	// Fill every Monday slot behind the session's back.
	for hour := 9; hour < 17; hour++ {
		for _, min := range []int{0, 30} {
			fx.appts.Create(ctx, &appointments.CreateRequest{
				BusinessID: "biz-1", Date: "2024-06-03",
				StartTime: clockAt(hour, min), EndTime: clockAt(hour, min+30),
				Customer: appointments.Customer{Name: "Filler", Email: "fill@example.com"},
			})
		}
	}

	reply, err := fx.flow.Handle(ctx, "conv-1", "biz-1", DayPicked{Date: "2024-06-03"})
	if err != nil {
		t.Fatalf("DayPicked on full day: %v", err)
	}
	if len(reply.Slots) != 0 {
		t.Fatalf("full day still offered slots: %+v", reply.Slots)
	}
	if len(reply.Days) == 0 {
		t.Error("full day should fall back to the day list")
	}
	for _, d := range reply.Days {
		if d.Date == "2024-06-03" {
			t.Error("full day still in the re-offered day list")
		}
	}
}

func TestFlowNoSettingsConfigured(t *testing.T) {
	fx := newFlowFixture(t)
	reply, err := fx.flow.Handle(context.Background(), "conv-1", "biz-2", ScheduleRequested{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(reply.Days) != 0 {
		t.Error("unconfigured business offered days")
	}
	if !strings.Contains(reply.Messages[0], "isn't set up") {
		t.Errorf("message %q", reply.Messages[0])
	}
}

func TestFlowCancelledBookingFreesSlotForNextSession(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	fx.mustAdvanceToForm(t, "conv-1")
	reply, err := fx.flow.Handle(ctx, "conv-1", "biz-1", FormSubmitted{
		Customer: appointments.Customer{Name: "Ada", Email: "ada@example.com"},
	})
	if err != nil || reply.Confirmed == nil {
		t.Fatalf("book: %v %+v", err, reply)
	}

	if _, err := fx.appts.Cancel(ctx, "biz-1", reply.Confirmed.ID, "customer request"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if _, err := fx.flow.Handle(ctx, "conv-2", "biz-1", ScheduleRequested{}); err != nil {
		t.Fatalf("second session: %v", err)
	}
	next, err := fx.flow.Handle(ctx, "conv-2", "biz-1", DayPicked{Date: "2024-06-03"})
	if err != nil {
		t.Fatalf("DayPicked: %v", err)
	}
	found := false
	for _, s := range next.Slots {
		if s.Time == "14:00" {
			found = true
		}
	}
	if !found {
		t.Error("cancelled slot 14:00 not offered again")
	}
}

// mustAdvanceToForm walks conv through day and slot selection of Monday
// 14:00 so tests can start at the form step.
func (fx *flowFixture) mustAdvanceToForm(t *testing.T, conv string) {
	t.Helper()
	ctx := context.Background()
	steps := []Event{ScheduleRequested{}, DayPicked{Date: "2024-06-03"}, SlotPicked{Time: "14:00"}}
	for _, ev := range steps {
		if _, err := fx.flow.Handle(ctx, conv, "biz-1", ev); err != nil {
			t.Fatalf("%T: %v", ev, err)
		}
	}
}

func clockAt(hour, min int) string {
	hour += min / 60
	min = min % 60
	return fmt.Sprintf("%02d:%02d", hour, min)
}
