package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flowkey/flowkey-booking/internal/http/handlers"
	httpmiddleware "github.com/flowkey/flowkey-booking/internal/http/middleware"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Public             *handlers.PublicHandler
	StaffRequests      *handlers.StaffRequestsHandler
	StaffNotifications *handlers.StaffNotificationsHandler
	RateLimiter        *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Now is the clock used for staff session expiry. Defaults to time.Now.
	Now func() time.Time
}

// New creates a new Chi router with all routes configured
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

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if pub := cfg.Public; pub != nil {
		r.Route("/public", func(public chi.Router) {
			if cfg.RateLimiter != nil {
				public.Use(cfg.RateLimiter.Middleware)
			}
			public.Route("/flows/{flowID}", func(f chi.Router) {
				f.Get("/", pub.GetFlow)
				f.Post("/service", pub.SelectService)
				f.Post("/slot", pub.SelectSlot)
				f.Post("/staff", pub.SelectStaff)
				f.Post("/location", pub.SelectLocation)
				f.Post("/details", pub.UpdateDetails)
				f.Post("/advance", pub.Advance)
				f.Post("/retreat", pub.Retreat)
				f.Post("/reset", pub.Reset)
				f.Post("/submit", pub.Submit)
			})
			public.Route("/bookings/{reference}", func(b chi.Router) {
				b.Get("/confirmation", pub.Confirmation)
				b.Post("/cancel", pub.CancelBooking)
				b.Post("/reschedule", pub.RescheduleBooking)
			})
			public.Route("/{slug}", func(biz chi.Router) {
				biz.Use(httpmiddleware.BusinessSlug)
				biz.Post("/flows", pub.StartFlow)
				biz.Get("/services", pub.ListServices)
				biz.Route("/services/{serviceID}", func(svc chi.Router) {
					svc.Get("/availability", pub.Availability)
					svc.Get("/availability/range", pub.AvailabilityRange)
					svc.Get("/staff", pub.Staff)
					svc.Get("/locations", pub.Locations)
				})
			})
		})
	}

	if cfg.StaffRequests != nil || cfg.StaffNotifications != nil {
		r.Route("/staff", func(staff chi.Router) {
			staff.Use(httpmiddleware.StaffSession(cfg.Now))
			if h := cfg.StaffRequests; h != nil {
				staff.Get("/booking-requests", h.List)
				staff.Post("/booking-requests/{requestID}/approve", h.Approve)
				staff.Post("/booking-requests/{requestID}/reject", h.Reject)
				staff.Post("/booking-requests/{requestID}/cancel", h.Cancel)
			}
			if h := cfg.StaffNotifications; h != nil {
				staff.Get("/notifications", h.List)
				staff.Post("/notifications/read-all", h.MarkAllRead)
				staff.Post("/notifications/{notificationID}/read", h.MarkRead)
			}
		})
	}

	return r
}
