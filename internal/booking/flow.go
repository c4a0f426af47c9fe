package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixelcraft/concierge/internal/appointments"
	"github.com/pixelcraft/concierge/internal/availability"
	"github.com/pixelcraft/concierge/internal/observability/metrics"
	"github.com/pixelcraft/concierge/internal/schedule"
	"github.com/pixelcraft/concierge/pkg/logging"
)

const defaultHorizonDays = 14

// Notifier receives the booked appointment after a successful create.
type Notifier interface {
	BookingConfirmed(ctx context.Context, appt *appointments.Appointment) error
}

// Reply is what a turn of the booking conversation sends back to the
// widget. Days and Slots become uiComponent payloads at the transport
// layer; booking itself stays wire-agnostic.
type Reply struct {
	Messages  []string
	Days      []availability.Day
	SlotsDate string
	Slots     []availability.Slot
	OpenForm  bool
	Confirmed *appointments.Appointment
}

// FlowConfig wires the flow's dependencies.
type FlowConfig struct {
	Sessions     SessionStore
	Settings     schedule.SettingsStore
	BlockedSlots schedule.BlockedSlotStore
	Appointments appointments.Store
	Notifier     Notifier
	Metrics      *metrics.BookingMetrics
	Logger       *logging.Logger
	Tracer       trace.Tracer
	Now          func() time.Time
	HorizonDays  int
}

// Flow drives booking sessions: it loads the session, runs the reducer,
// executes the resulting action against the stores and saves the session
// back. All domain errors are absorbed here into Reply messages; only
// infrastructure failures escape as errors.
type Flow struct {
	sessions    SessionStore
	settings    schedule.SettingsStore
	blocked     schedule.BlockedSlotStore
	appts       appointments.Store
	notifier    Notifier
	metrics     *metrics.BookingMetrics
	logger      *logging.Logger
	tracer      trace.Tracer
	now         func() time.Time
	horizonDays int
}

func NewFlow(cfg FlowConfig) *Flow {
	if cfg.Sessions == nil || cfg.Settings == nil || cfg.BlockedSlots == nil || cfg.Appointments == nil {
		panic("booking: flow requires sessions, settings, blocked slots and appointments stores")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("concierge.internal.booking.flow")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = defaultHorizonDays
	}
	return &Flow{
		sessions:    cfg.Sessions,
		settings:    cfg.Settings,
		blocked:     cfg.BlockedSlots,
		appts:       cfg.Appointments,
		notifier:    cfg.Notifier,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		tracer:      cfg.Tracer,
		now:         cfg.Now,
		horizonDays: cfg.HorizonDays,
	}
}

// Handle advances the conversation's session with one event.
func (f *Flow) Handle(ctx context.Context, conversationID, businessID string, ev Event) (*Reply, error) {
	ctx, span := f.tracer.Start(ctx, "booking.handle")
	defer span.End()

	cur := NewSession(conversationID, businessID)
	if loaded, err := f.sessions.Load(ctx, conversationID); err != nil {
		f.logger.Error("session load failed, starting fresh", "error", err, "conversation_id", conversationID)
	} else if loaded != nil {
		cur = *loaded
	}

	next, action, err := Apply(cur, ev)
	if err != nil {
		f.metrics.ObserveEvent(eventName(ev), "rejected")
		switch {
		case IsValidationError(err):
			return &Reply{OpenForm: true, Messages: []string{validationMessage(err)}}, nil
		case errors.Is(err, ErrUnknownDay):
			return &Reply{Messages: []string{"That day isn't in the list anymore. Please pick one of the offered days."}, Days: cur.OfferedDays}, nil
		case errors.Is(err, ErrUnknownSlot):
			return &Reply{Messages: []string{"That time isn't in the list anymore. Please pick one of the offered times."}, SlotsDate: cur.SelectedDate, Slots: cur.OfferedSlots}, nil
		default:
			span.RecordError(err)
			return nil, err
		}
	}

	reply, final, err := f.run(ctx, next, action)
	if err != nil {
		f.metrics.ObserveEvent(eventName(ev), "error")
		span.RecordError(err)
		return nil, err
	}
	f.metrics.ObserveEvent(eventName(ev), "ok")

	if err := f.sessions.Save(ctx, &final); err != nil {
		f.logger.Error("session save failed", "error", err, "conversation_id", conversationID)
	}
	return reply, nil
}

// run executes the side effect an Apply transition asked for and returns
// the session that should be persisted.
func (f *Flow) run(ctx context.Context, s Session, action Action) (*Reply, Session, error) {
	switch action {
	case ActionOfferDays:
		return f.offerDays(ctx, s)
	case ActionOfferSlots:
		return f.offerSlots(ctx, s, "")
	case ActionOpenForm:
		msg := fmt.Sprintf("Great choice. To lock in %s on %s I just need your name and email.",
			displayTime(s.SelectedTime), displayDate(s.SelectedDate))
		return &Reply{OpenForm: true, Messages: []string{msg}}, s, nil
	case ActionCreateAppointment:
		return f.createAppointment(ctx, s)
	}

	// No side effect: FormCancelled and Reset both land back at idle.
	return &Reply{Messages: []string{"Okay, let me know if you'd like to schedule a consultation."}}, s, nil
}

func (f *Flow) offerDays(ctx context.Context, s Session) (*Reply, Session, error) {
	st, err := f.settings.Get(ctx, s.BusinessID)
	if err != nil {
		if errors.Is(err, schedule.ErrSettingsNotFound) {
			idle := NewSession(s.ConversationID, s.BusinessID)
			return &Reply{Messages: []string{"Online scheduling isn't set up yet. Please reach out by email and we'll find a time."}}, idle, nil
		}
		return nil, s, err
	}

	blocks, busy, err := f.scheduleInputs(ctx, s.BusinessID, *st)
	if err != nil {
		return nil, s, err
	}

	days := availability.AvailableDays(*st, busy, blocks, f.now(), f.horizonDays)
	if len(days) == 0 {
		idle := NewSession(s.ConversationID, s.BusinessID)
		return &Reply{Messages: []string{"I don't see any openings in the next couple of weeks. Please reach out by email and we'll find a time."}}, idle, nil
	}

	s.OfferedDays = days
	return &Reply{
		Messages: []string{"I'd be happy to set up a consultation. Which day works for you?"},
		Days:     days,
	}, s, nil
}

// offerSlots fills the session's offered slots for the selected date.
// preface, when set, replaces the default message (conflict apology).
func (f *Flow) offerSlots(ctx context.Context, s Session, preface string) (*Reply, Session, error) {
	st, err := f.settings.Get(ctx, s.BusinessID)
	if err != nil {
		return nil, s, err
	}
	blocks, busy, err := f.scheduleInputs(ctx, s.BusinessID, *st)
	if err != nil {
		return nil, s, err
	}

	date, err := time.ParseInLocation(availability.DateFormat, s.SelectedDate, st.Location())
	if err != nil {
		return nil, s, fmt.Errorf("booking: bad selected date %q: %w", s.SelectedDate, err)
	}

	slots := availability.FreeSlots(*st, busy, blocks, f.now(), date)
	if len(slots) == 0 {
		s.State = StateDaysOffered
		s.SelectedDate = ""
		s.OfferedSlots = nil
		s.OfferedDays = availability.AvailableDays(*st, busy, blocks, f.now(), f.horizonDays)
		if len(s.OfferedDays) == 0 {
			idle := NewSession(s.ConversationID, s.BusinessID)
			return &Reply{Messages: []string{"I don't see any openings in the next couple of weeks. Please reach out by email and we'll find a time."}}, idle, nil
		}
		msg := "That day just filled up. Could you pick another one?"
		if preface != "" {
			msg = preface + " That day has no times left, could you pick another one?"
		}
		return &Reply{Messages: []string{msg}, Days: s.OfferedDays}, s, nil
	}

	s.OfferedSlots = slots
	msg := fmt.Sprintf("Here are the open times for %s. Which one suits you?", displayDate(s.SelectedDate))
	if preface != "" {
		msg = preface + " Here are the times still open, which one suits you?"
	}
	return &Reply{Messages: []string{msg}, SlotsDate: s.SelectedDate, Slots: slots}, s, nil
}

func (f *Flow) createAppointment(ctx context.Context, s Session) (*Reply, Session, error) {
	st, err := f.settings.Get(ctx, s.BusinessID)
	if err != nil {
		return nil, s, err
	}

	start, err := availability.ParseClock(s.SelectedTime)
	if err != nil {
		return nil, s, fmt.Errorf("booking: bad selected time %q: %w", s.SelectedTime, err)
	}

	req := &appointments.CreateRequest{
		BusinessID: s.BusinessID,
		Date:       s.SelectedDate,
		StartTime:  s.SelectedTime,
		EndTime:    availability.FormatClock(start + st.DurationMins),
		BufferMins: st.BufferMins,
		Customer:   s.Customer,
	}

	began := time.Now()
	appt, err := f.appts.Create(ctx, req)
	f.metrics.ObserveCreateLatency(time.Since(began).Seconds())
	if err != nil {
		if errors.Is(err, appointments.ErrSlotConflict) {
			f.metrics.ObserveSlotConflict()
			s.State = StateSlotsOffered
			s.SelectedTime = ""
			return f.offerSlots(ctx, s, "Sorry, that time was just taken.")
		}
		if IsValidationError(err) {
			s.State = StateFormOpen
			return &Reply{OpenForm: true, Messages: []string{validationMessage(err)}}, s, nil
		}
		return nil, s, err
	}

	f.metrics.ObserveConfirmed()
	if f.notifier != nil {
		go func(a appointments.Appointment) {
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			if err := f.notifier.BookingConfirmed(nctx, &a); err != nil {
				f.logger.Error("booking notification failed", "error", err, "appointment_id", a.ID)
			}
		}(*appt)
	}

	idle := NewSession(s.ConversationID, s.BusinessID)
	msg := fmt.Sprintf("You're all set, %s. Your consultation is booked for %s at %s. A confirmation email is on its way.",
		appt.Customer.Name, displayDate(appt.Date), displayTime(appt.StartTime))
	return &Reply{Messages: []string{msg}, Confirmed: appt}, idle, nil
}

// scheduleInputs loads blocked slots and the confirmed appointments across
// the booking window, mapped to the calculator's input shapes.
func (f *Flow) scheduleInputs(ctx context.Context, businessID string, st availability.Settings) ([]availability.Block, []availability.Busy, error) {
	slots, err := f.blocked.List(ctx, businessID)
	if err != nil {
		return nil, nil, err
	}
	blocks := schedule.Blocks(slots)

	horizon := f.horizonDays
	if st.MaxAdvanceDays > 0 && st.MaxAdvanceDays < horizon {
		horizon = st.MaxAdvanceDays
	}

	loc := st.Location()
	today := f.now().In(loc)
	var busy []availability.Busy
	for offset := 0; offset <= horizon; offset++ {
		day := today.AddDate(0, 0, offset).Format(availability.DateFormat)
		appts, err := f.appts.ListForDate(ctx, businessID, day)
		if err != nil {
			return nil, nil, err
		}
		busy = append(busy, appointments.BusyIntervals(appts)...)
	}
	return blocks, busy, nil
}

func eventName(e Event) string {
	switch e.(type) {
	case ScheduleRequested:
		return "schedule_requested"
	case DayPicked:
		return "day_picked"
	case SlotPicked:
		return "slot_picked"
	case FormSubmitted:
		return "form_submitted"
	case FormCancelled:
		return "form_cancelled"
	case Reset:
		return "reset"
	}
	return "unknown"
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, appointments.ErrNameRequired):
		return "I still need your name to book this."
	case errors.Is(err, appointments.ErrEmailRequired):
		return "I still need your email to book this."
	case errors.Is(err, appointments.ErrInvalidEmail):
		return "That email doesn't look right, could you double-check it?"
	}
	return "Something about the form doesn't look right, could you check it?"
}

func displayDate(date string) string {
	d, err := time.Parse(availability.DateFormat, date)
	if err != nil {
		return date
	}
	return d.Format("Mon, Jan 2")
}

func displayTime(clock string) string {
	mins, err := availability.ParseClock(clock)
	if err != nil {
		return clock
	}
	return availability.FormatDisplay(mins)
}
