package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixelcraft/concierge/internal/appointments"
	"github.com/pixelcraft/concierge/internal/booking"
	"github.com/pixelcraft/concierge/internal/observability/metrics"
	"github.com/pixelcraft/concierge/pkg/logging"
)

const defaultSystemPrompt = "You are the Pixelcraft Studio assistant, a friendly guide on a web-design agency's site. Keep answers short and concrete. Help visitors understand services and pricing, and offer to set up a consultation when they show interest."

const apologyMessage = "Sorry, something went wrong on my end. Please send that again."

// Streamer is the gateway surface the service needs; satisfied by
// *GatewayClient and by test fakes.
type Streamer interface {
	Stream(ctx context.Context, messages []Message) (*StreamReader, error)
}

// Request is one widget turn: either a free-text message or a structured
// widget event (day pill, time pill, form submit/cancel).
type Request struct {
	ConversationID string       `json:"conversation_id,omitempty"`
	BusinessID     string       `json:"business_id"`
	Message        string       `json:"message,omitempty"`
	Event          *WidgetEvent `json:"event,omitempty"`
}

// WidgetEvent mirrors the pills and form of the booking UI.
type WidgetEvent struct {
	Type  string `json:"type"` // day_selected, slot_selected, form_submitted, form_cancelled, reset
	Date  string `json:"date,omitempty"`
	Time  string `json:"time,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

var errUnknownEvent = errors.New("chat: unknown widget event type")

func (e *WidgetEvent) bookingEvent() (booking.Event, error) {
	switch e.Type {
	case "day_selected":
		return booking.DayPicked{Date: e.Date}, nil
	case "slot_selected":
		return booking.SlotPicked{Time: e.Time}, nil
	case "form_submitted":
		return booking.FormSubmitted{Customer: appointments.Customer{Name: e.Name, Email: e.Email, Phone: e.Phone}}, nil
	case "form_cancelled":
		return booking.FormCancelled{}, nil
	case "reset":
		return booking.Reset{}, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownEvent, e.Type)
}

// Service routes widget turns: structured events and scheduling intents go
// to the booking flow, everything else streams through the LLM gateway
// with Redis-backed history.
type Service struct {
	gateway Streamer
	history *HistoryStore
	flow    *booking.Flow
	metrics *metrics.ChatMetrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

func NewService(gateway Streamer, history *HistoryStore, flow *booking.Flow, m *metrics.ChatMetrics, logger *logging.Logger) *Service {
	if history == nil {
		panic("chat: history store cannot be nil")
	}
	if flow == nil {
		panic("chat: booking flow cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		gateway: gateway,
		history: history,
		flow:    flow,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("concierge.internal.chat.service"),
	}
}

// Stream handles one turn and emits reply fragments in order. The emit
// callback is called once per fragment; returning an error from it stops
// the turn (the client went away).
func (s *Service) Stream(ctx context.Context, req *Request, emit func(Fragment) error) (conversationID string, err error) {
	ctx, span := s.tracer.Start(ctx, "chat.stream")
	defer span.End()

	conversationID = req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	span.SetAttributes(
		attribute.String("concierge.business_id", req.BusinessID),
		attribute.String("concierge.conversation_id", conversationID),
	)

	if req.Event != nil {
		ev, err := req.Event.bookingEvent()
		if err != nil {
			return conversationID, err
		}
		return conversationID, s.runBooking(ctx, conversationID, req.BusinessID, ev, "", emit)
	}

	if IsSchedulingRequest(req.Message) {
		s.metrics.ObserveIntentMatch()
		return conversationID, s.runBooking(ctx, conversationID, req.BusinessID, booking.ScheduleRequested{}, req.Message, emit)
	}

	return conversationID, s.runLLM(ctx, conversationID, req.Message, emit)
}

// runBooking drives the state machine and renders its reply as fragments.
// userText, when set, is recorded in the transcript so the LLM keeps
// context if the visitor drifts back to free text.
func (s *Service) runBooking(ctx context.Context, conversationID, businessID string, ev booking.Event, userText string, emit func(Fragment) error) error {
	reply, err := s.flow.Handle(ctx, conversationID, businessID, ev)
	if err != nil {
		if errors.Is(err, booking.ErrInvalidTransition) {
			return emit(Fragment{Content: "Let's start over. Would you like to schedule a consultation?"})
		}
		s.logger.Error("booking flow failed", "error", err, "conversation_id", conversationID)
		s.metrics.ObserveRequest("booking_error")
		return emit(Fragment{Content: apologyMessage})
	}

	var transcript []string
	for _, msg := range reply.Messages {
		if err := emit(Fragment{Content: msg}); err != nil {
			return err
		}
		transcript = append(transcript, msg)
	}
	if len(reply.Days) > 0 {
		if err := emit(Fragment{UIComponent: AvailableDaysComponent(reply.Days)}); err != nil {
			return err
		}
	}
	if len(reply.Slots) > 0 {
		if err := emit(Fragment{UIComponent: TimeSlotsComponent(reply.SlotsDate, reply.Slots)}); err != nil {
			return err
		}
	}

	s.appendTranscript(ctx, conversationID, userText, strings.Join(transcript, "\n"))
	s.metrics.ObserveRequest("booking")
	return nil
}

// runLLM streams a gateway completion, forwarding fragments as they
// arrive. Any transport failure collapses into one apology fragment.
func (s *Service) runLLM(ctx context.Context, conversationID, message string, emit func(Fragment) error) error {
	history, err := s.history.Load(ctx, conversationID)
	if err != nil {
		s.logger.Error("history load failed, starting fresh", "error", err, "conversation_id", conversationID)
	}
	if len(history) == 0 {
		history = []Message{{Role: RoleSystem, Content: defaultSystemPrompt}}
	}
	history = append(history, Message{Role: RoleUser, Content: message})

	began := time.Now()
	stream, err := s.gateway.Stream(ctx, history)
	if err != nil {
		return s.apologize(ctx, conversationID, history, err, emit)
	}
	defer stream.Close()

	var assistant strings.Builder
	for {
		frag, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.metrics.ObserveStreamError()
			return s.apologize(ctx, conversationID, history, err, emit)
		}
		if frag.Content != "" {
			assistant.WriteString(frag.Content)
		}
		if err := emit(frag); err != nil {
			return err
		}
	}
	s.metrics.ObserveGatewayLatency(time.Since(began).Seconds())

	history = append(history, Message{Role: RoleAssistant, Content: assistant.String()})
	if err := s.history.Save(ctx, conversationID, history); err != nil {
		s.logger.Error("history save failed", "error", err, "conversation_id", conversationID)
	}
	s.metrics.ObserveRequest("llm")
	return nil
}

// apologize turns a transport failure into a single generic assistant
// message, recorded in the transcript. No partial reply survives.
func (s *Service) apologize(ctx context.Context, conversationID string, history []Message, cause error, emit func(Fragment) error) error {
	s.logger.Error("gateway stream failed", "error", cause, "conversation_id", conversationID)
	s.metrics.ObserveRequest("transport_error")

	history = append(history, Message{Role: RoleAssistant, Content: apologyMessage})
	if err := s.history.Save(ctx, conversationID, history); err != nil {
		s.logger.Error("history save failed", "error", err, "conversation_id", conversationID)
	}
	return emit(Fragment{Content: apologyMessage})
}

// appendTranscript records a booking exchange in the conversation history.
func (s *Service) appendTranscript(ctx context.Context, conversationID, userText, assistantText string) {
	if assistantText == "" {
		return
	}
	history, err := s.history.Load(ctx, conversationID)
	if err != nil {
		s.logger.Error("history load failed", "error", err, "conversation_id", conversationID)
		return
	}
	if len(history) == 0 {
		history = []Message{{Role: RoleSystem, Content: defaultSystemPrompt}}
	}
	if userText != "" {
		history = append(history, Message{Role: RoleUser, Content: userText})
	}
	history = append(history, Message{Role: RoleAssistant, Content: assistantText})
	if err := s.history.Save(ctx, conversationID, history); err != nil {
		s.logger.Error("history save failed", "error", err, "conversation_id", conversationID)
	}
}
