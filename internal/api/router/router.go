package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pixelcraft/concierge/internal/chat"
	"github.com/pixelcraft/concierge/internal/http/handlers"
	httpmiddleware "github.com/pixelcraft/concierge/internal/http/middleware"
	"github.com/pixelcraft/concierge/internal/schedule"
	"github.com/pixelcraft/concierge/internal/webchat"
	"github.com/pixelcraft/concierge/pkg/logging"
)

// Config wires the handlers into the route tree. Nil handlers disable
// their routes so tests and the migrate binary can run partial stacks.
type Config struct {
	Logger          *logging.Logger
	ChatHandler     *chat.Handler
	WebchatHandler  *webchat.Handler
	ScheduleHandler *schedule.Handler
	Availability    *handlers.AvailabilityHandler
	Appointments    *handlers.AppointmentsHandler
	MetricsHandler  http.Handler

	AdminJWTSecret     string
	CORSAllowedOrigins []string

	// RateLimitPerSec <= 0 disables rate limiting (tests, local dev).
	RateLimitPerSec float64
	RateLimitBurst  int
}

// New creates the Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: everything the embedded widget touches.
	r.Group(func(public chi.Router) {
		if cfg.RateLimitPerSec > 0 {
			public.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst))
		}

		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.ChatHandler != nil {
			public.Post("/chat/stream", cfg.ChatHandler.Stream)
		}
		if cfg.WebchatHandler != nil {
			public.Get("/webchat/ws", cfg.WebchatHandler.HandleWebSocket)
			public.Post("/webchat/message", cfg.WebchatHandler.HandleMessage)
			public.Get("/webchat/widget.js", cfg.WebchatHandler.HandleWidgetJS)
		}
		if cfg.Availability != nil {
			public.Get("/api/availability/days", cfg.Availability.GetDays)
			public.Get("/api/availability/slots", cfg.Availability.GetSlots)
		}
		if cfg.Appointments != nil {
			public.Post("/api/appointments", cfg.Appointments.Create)
		}
	})

	// Owner dashboard endpoints behind the admin JWT.
	if cfg.AdminJWTSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))

			if cfg.ScheduleHandler != nil {
				admin.Route("/schedule/{businessID}", func(s chi.Router) {
					s.Get("/settings", cfg.ScheduleHandler.GetSettings)
					s.Put("/settings", cfg.ScheduleHandler.UpsertSettings)
					s.Get("/blocked-slots", cfg.ScheduleHandler.ListBlockedSlots)
					s.Post("/blocked-slots", cfg.ScheduleHandler.CreateBlockedSlot)
					s.Delete("/blocked-slots/{slotID}", cfg.ScheduleHandler.DeleteBlockedSlot)
				})
			}
			if cfg.Appointments != nil {
				admin.Get("/appointments/{businessID}", cfg.Appointments.ListForDate)
				admin.Post("/appointments/{businessID}/{id}/cancel", cfg.Appointments.Cancel)
			}
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
