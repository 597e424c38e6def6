package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Patients     PatientLookup
	Appointments AppointmentService
	Notifier     Notifier
	Reminders    ReminderService
	Directory    ReferenceData
	Health       *HealthHandler
	// Metrics serves /metrics when set, normally promhttp.Handler().
	Metrics http.Handler
	Logger  zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/patients/lookup", lookupPatientHandler(cfg.Patients))

		r.Post("/appointments/book", bookAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/confirm", confirmAppointmentHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Get("/appointments/{id}/reminders", reminderHistoryHandler(cfg.Reminders))

		r.Post("/notifications/send", sendNotificationHandler(cfg.Notifier))
		r.Post("/reminders/send", sendReminderHandler(cfg.Reminders))

		r.Get("/doctors", listDoctorsHandler(cfg.Directory))
		r.Get("/locations", listLocationsHandler(cfg.Directory))
	})

	return r
}
