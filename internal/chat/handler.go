package chat

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/pixelcraft/concierge/pkg/logging"
)

// Handler serves POST /chat/stream. The response body uses the same
// framing the gateway emits, so the widget consumes one format end to
// end: `data: <json>` per fragment, closed by `data: [DONE]`.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("chat: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BusinessID == "" {
		http.Error(w, "business_id is required", http.StatusBadRequest)
		return
	}
	if req.Message == "" && req.Event == nil {
		http.Error(w, "message or event is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// The id has to be in the headers before the first body byte, so the
	// handler mints it rather than the service.
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Conversation-Id", req.ConversationID)

	wroteHeader := false
	emit := func(frag Fragment) error {
		data, err := json.Marshal(frag)
		if err != nil {
			return fmt.Errorf("chat: failed to marshal fragment: %w", err)
		}
		if !wroteHeader {
			w.WriteHeader(http.StatusOK)
			wroteHeader = true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if _, err := h.service.Stream(r.Context(), &req, emit); err != nil {
		if !wroteHeader {
			h.logger.Error("chat stream failed", "error", err)
			http.Error(w, "chat unavailable", http.StatusInternalServerError)
			return
		}
		h.logger.Error("chat stream aborted mid-response", "error", err)
		return
	}

	if !wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	fmt.Fprint(w, "data: [DONE]\n")
	flusher.Flush()
}
