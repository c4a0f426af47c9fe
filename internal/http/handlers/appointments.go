package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pixelcraft/concierge/internal/appointments"
	"github.com/pixelcraft/concierge/internal/availability"
	"github.com/pixelcraft/concierge/internal/schedule"
	"github.com/pixelcraft/concierge/internal/tenancy"
	"github.com/pixelcraft/concierge/pkg/logging"
)

// AppointmentsHandler serves the direct booking endpoints: the widget's
// inline form posts here, and the owner dashboard cancels and lists.
type AppointmentsHandler struct {
	store    appointments.Store
	settings schedule.SettingsStore
	notifier Notifier
	logger   *logging.Logger
}

// Notifier is invoked after a successful booking.
type Notifier interface {
	BookingConfirmed(ctx context.Context, appt *appointments.Appointment) error
}

func NewAppointmentsHandler(store appointments.Store, settings schedule.SettingsStore, notifier Notifier, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{store: store, settings: settings, notifier: notifier, logger: logger}
}

type createAppointmentRequest struct {
	BusinessID string                `json:"business_id"`
	Date       string                `json:"date"`
	StartTime  string                `json:"start_time"`
	Customer   appointments.Customer `json:"customer"`
}

// Create handles POST /api/appointments.
func (h *AppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BusinessID == "" {
		http.Error(w, "business_id is required", http.StatusBadRequest)
		return
	}

	st, err := h.settings.Get(r.Context(), req.BusinessID)
	if err != nil {
		if errors.Is(err, schedule.ErrSettingsNotFound) {
			http.Error(w, "business not configured", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load settings", "error", err, "business_id", req.BusinessID)
		http.Error(w, "failed to book appointment", http.StatusInternalServerError)
		return
	}

	start, err := availability.ParseClock(req.StartTime)
	if err != nil {
		http.Error(w, "start_time must be HH:MM", http.StatusBadRequest)
		return
	}

	appt, err := h.store.Create(r.Context(), &appointments.CreateRequest{
		BusinessID: req.BusinessID,
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    availability.FormatClock(start + st.DurationMins),
		BufferMins: st.BufferMins,
		Customer:   req.Customer,
	})
	if err != nil {
		switch {
		case errors.Is(err, appointments.ErrSlotConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "slot_conflict"})
		case errors.Is(err, appointments.ErrNameRequired),
			errors.Is(err, appointments.ErrEmailRequired),
			errors.Is(err, appointments.ErrInvalidEmail),
			errors.Is(err, appointments.ErrInvalidInterval):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("failed to create appointment", "error", err, "business_id", req.BusinessID)
			http.Error(w, "failed to book appointment", http.StatusInternalServerError)
		}
		return
	}

	if h.notifier != nil {
		go func(a appointments.Appointment) {
			nctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 15*time.Second)
			defer cancel()
			if err := h.notifier.BookingConfirmed(nctx, &a); err != nil {
				h.logger.Error("booking notification failed", "error", err, "appointment_id", a.ID)
			}
		}(*appt)
	}

	writeJSON(w, http.StatusCreated, appt)
}

// Cancel handles POST /admin/appointments/{businessID}/{id}/cancel.
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	id := chi.URLParam(r, "id")
	if !tenancy.Allowed(r.Context(), businessID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	appt, err := h.store.Cancel(r.Context(), businessID, id, body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, appointments.ErrNotFound):
			http.Error(w, "appointment not found", http.StatusNotFound)
		case errors.Is(err, appointments.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "invalid_transition"})
		default:
			h.logger.Error("failed to cancel appointment", "error", err, "appointment_id", id)
			http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// ListForDate handles GET /admin/appointments/{businessID}?date=<YYYY-MM-DD>.
func (h *AppointmentsHandler) ListForDate(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	if !tenancy.Allowed(r.Context(), businessID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date parameter required", http.StatusBadRequest)
		return
	}

	appts, err := h.store.ListForDate(r.Context(), businessID, date)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err, "business_id", businessID)
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	if appts == nil {
		appts = []appointments.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "appointments": appts})
}
