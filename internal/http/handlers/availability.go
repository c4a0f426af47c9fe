package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pixelcraft/concierge/internal/appointments"
	"github.com/pixelcraft/concierge/internal/availability"
	"github.com/pixelcraft/concierge/internal/schedule"
	"github.com/pixelcraft/concierge/pkg/logging"
)

const defaultHorizonDays = 14

// AvailabilityHandler serves the public day and slot queries the widget
// polls before the visitor commits to anything.
type AvailabilityHandler struct {
	settings schedule.SettingsStore
	blocked  schedule.BlockedSlotStore
	appts    appointments.Store
	logger   *logging.Logger
	now      func() time.Time
}

func NewAvailabilityHandler(settings schedule.SettingsStore, blocked schedule.BlockedSlotStore, appts appointments.Store, logger *logging.Logger) *AvailabilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{
		settings: settings,
		blocked:  blocked,
		appts:    appts,
		logger:   logger,
		now:      time.Now,
	}
}

// GetDays handles GET /api/availability/days?business=<id>.
func (h *AvailabilityHandler) GetDays(w http.ResponseWriter, r *http.Request) {
	businessID := r.URL.Query().Get("business")
	if businessID == "" {
		http.Error(w, "business parameter required", http.StatusBadRequest)
		return
	}

	st, err := h.settings.Get(r.Context(), businessID)
	if err != nil {
		if errors.Is(err, schedule.ErrSettingsNotFound) {
			http.Error(w, "business not configured", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load settings", "error", err, "business_id", businessID)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}

	blocks, busy, err := h.calendarInputs(r, businessID, *st)
	if err != nil {
		h.logger.Error("failed to load calendar", "error", err, "business_id", businessID)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}

	days := availability.AvailableDays(*st, busy, blocks, h.now(), defaultHorizonDays)
	if days == nil {
		days = []availability.Day{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// GetSlots handles GET /api/availability/slots?business=<id>&date=<YYYY-MM-DD>.
func (h *AvailabilityHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	businessID := r.URL.Query().Get("business")
	dateParam := r.URL.Query().Get("date")
	if businessID == "" || dateParam == "" {
		http.Error(w, "business and date parameters required", http.StatusBadRequest)
		return
	}

	st, err := h.settings.Get(r.Context(), businessID)
	if err != nil {
		if errors.Is(err, schedule.ErrSettingsNotFound) {
			http.Error(w, "business not configured", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load settings", "error", err, "business_id", businessID)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}

	date, err := time.ParseInLocation(availability.DateFormat, dateParam, st.Location())
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	blocks, busy, err := h.calendarInputs(r, businessID, *st)
	if err != nil {
		h.logger.Error("failed to load calendar", "error", err, "business_id", businessID)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}

	slots := availability.FreeSlots(*st, busy, blocks, h.now(), date)
	if slots == nil {
		slots = []availability.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": dateParam, "slots": slots})
}

func (h *AvailabilityHandler) calendarInputs(r *http.Request, businessID string, st availability.Settings) ([]availability.Block, []availability.Busy, error) {
	slots, err := h.blocked.List(r.Context(), businessID)
	if err != nil {
		return nil, nil, err
	}

	horizon := defaultHorizonDays
	if st.MaxAdvanceDays > 0 && st.MaxAdvanceDays < horizon {
		horizon = st.MaxAdvanceDays
	}

	today := h.now().In(st.Location())
	var busy []availability.Busy
	for offset := 0; offset <= horizon; offset++ {
		day := today.AddDate(0, 0, offset).Format(availability.DateFormat)
		appts, err := h.appts.ListForDate(r.Context(), businessID, day)
		if err != nil {
			return nil, nil, err
		}
		busy = append(busy, appointments.BusyIntervals(appts)...)
	}
	return schedule.Blocks(slots), busy, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
