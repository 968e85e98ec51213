package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/avirajsharma-ops/DTPS-sub006/internal/appointments"
	httpmiddleware "github.com/avirajsharma-ops/DTPS-sub006/internal/http/middleware"
	"github.com/avirajsharma-ops/DTPS-sub006/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	RealtimeHandler     http.HandlerFunc
	MetricsHandler      http.Handler
	AuthJWTSecret       string
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Authenticated API
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.Auth(cfg.AuthJWTSecret))

		if cfg.AppointmentsHandler != nil {
			api.Route("/api/appointments", func(r chi.Router) {
				r.Get("/", cfg.AppointmentsHandler.List)
				r.Post("/", cfg.AppointmentsHandler.Create)
				r.Get("/available-slots", cfg.AppointmentsHandler.AvailableSlots)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.AppointmentsHandler.Get)
					r.Get("/history", cfg.AppointmentsHandler.History)
					r.Post("/cancel", cfg.AppointmentsHandler.Cancel)
					r.Post("/reschedule", cfg.AppointmentsHandler.Reschedule)
					r.Post("/complete", cfg.AppointmentsHandler.Complete)
				})
			})
			api.Post("/api/client/appointments", cfg.AppointmentsHandler.CreateSelf)
		}

		if cfg.RealtimeHandler != nil {
			api.Get("/ws", cfg.RealtimeHandler)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
