package schedule

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pixelcraft/concierge/internal/availability"
	"github.com/pixelcraft/concierge/internal/tenancy"
	"github.com/pixelcraft/concierge/pkg/logging"
)

// Handler exposes the owner-facing settings and blocked-slot endpoints.
type Handler struct {
	settings SettingsStore
	blocked  BlockedSlotStore
	logger   *logging.Logger
}

// NewHandler creates a schedule handler.
func NewHandler(settings SettingsStore, blocked BlockedSlotStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{settings: settings, blocked: blocked, logger: logger}
}

// requireBusiness extracts the businessID route param and enforces the
// tenant scope carried by the admin token.
func requireBusiness(w http.ResponseWriter, r *http.Request) (string, bool) {
	businessID := chi.URLParam(r, "businessID")
	if businessID == "" {
		http.Error(w, "missing business id", http.StatusBadRequest)
		return "", false
	}
	if !tenancy.Allowed(r.Context(), businessID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return businessID, true
}

// GetSettings handles GET /api/admin/businesses/{businessID}/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}

	settings, err := h.settings.Get(r.Context(), businessID)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			http.Error(w, "settings not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load settings", "error", err, "business_id", businessID)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// UpsertSettings handles PUT /api/admin/businesses/{businessID}/settings.
func (h *Handler) UpsertSettings(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}

	var settings availability.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	settings.BusinessID = businessID

	if err := h.settings.Upsert(r.Context(), settings); err != nil {
		h.logger.Error("failed to save settings", "error", err, "business_id", businessID)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("settings updated", "business_id", businessID)
	writeJSON(w, http.StatusOK, settings)
}

// ListBlockedSlots handles GET /api/admin/businesses/{businessID}/blocked-slots.
func (h *Handler) ListBlockedSlots(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}

	slots, err := h.blocked.List(r.Context(), businessID)
	if err != nil {
		h.logger.Error("failed to list blocked slots", "error", err, "business_id", businessID)
		http.Error(w, "failed to list blocked slots", http.StatusInternalServerError)
		return
	}
	if slots == nil {
		slots = []BlockedSlot{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"blocked_slots": slots})
}

// CreateBlockedSlot handles POST /api/admin/businesses/{businessID}/blocked-slots.
func (h *Handler) CreateBlockedSlot(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}

	var slot BlockedSlot
	if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	slot.BusinessID = businessID

	created, err := h.blocked.Create(r.Context(), &slot)
	if err != nil {
		if errors.Is(err, ErrInvalidBlock) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to create blocked slot", "error", err, "business_id", businessID)
		http.Error(w, "failed to create blocked slot", http.StatusInternalServerError)
		return
	}

	h.logger.Info("blocked slot created", "business_id", businessID, "id", created.ID, "recurring", created.Recurring)
	writeJSON(w, http.StatusCreated, created)
}

// DeleteBlockedSlot handles DELETE /api/admin/businesses/{businessID}/blocked-slots/{slotID}.
func (h *Handler) DeleteBlockedSlot(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	slotID := chi.URLParam(r, "slotID")
	if slotID == "" {
		http.Error(w, "missing slot id", http.StatusBadRequest)
		return
	}

	if err := h.blocked.Delete(r.Context(), businessID, slotID); err != nil {
		if errors.Is(err, ErrBlockedSlotNotFound) {
			http.Error(w, "blocked slot not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete blocked slot", "error", err, "business_id", businessID)
		http.Error(w, "failed to delete blocked slot", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
