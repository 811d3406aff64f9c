package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type RouterConfig struct {
	Appointments AppointmentService
	Labs         LabService
	Dependencies []Dependency
	CORSOrigins  []string
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	log := cfg.Logger

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoveryMiddleware(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", ActorHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Timeout(30 * time.Second))

	// Health endpoints
	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	appts := cfg.Appointments
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(appts, log))
		r.Get("/", listAppointmentsHandler(appts, log))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getAppointmentHandler(appts, log))
			r.Patch("/reschedule", rescheduleAppointmentHandler(appts, log))
			r.Patch("/status", updateStatusHandler(appts, log))
			r.Post("/confirm", transitionHandler(appts, log, appointment.StatusConfirmed))
			r.Post("/start", transitionHandler(appts, log, appointment.StatusInProgress))
			r.Post("/complete", transitionHandler(appts, log, appointment.StatusCompleted))
			r.Post("/no-show", transitionHandler(appts, log, appointment.StatusNoShow))
			r.Post("/cancel", cancelAppointmentHandler(appts, log))

			r.Post("/lab-tests", requestLabTestHandler(cfg.Labs, log))
			r.Get("/lab-tests", listLabTestsHandler(cfg.Labs, log))
		})
	})

	r.Route("/clinicians/{id}", func(r chi.Router) {
		r.Get("/slots", availableSlotsHandler(appts, log))
		r.Get("/conflicts", conflictCheckHandler(appts, log))
	})

	r.Route("/lab-tests/{id}", func(r chi.Router) {
		r.Get("/", getLabTestHandler(cfg.Labs, log))
		r.Post("/assign", assignLabTestHandler(cfg.Labs, log))
		r.Post("/auto-assign", autoAssignLabTestHandler(cfg.Labs, log))
		r.Post("/start", startLabTestHandler(cfg.Labs, log))
		r.Post("/complete", completeLabTestHandler(cfg.Labs, log))
		r.Post("/review", reviewLabTestHandler(cfg.Labs, log))
		r.Post("/cancel", cancelLabTestHandler(cfg.Labs, log))
	})

	r.Get("/lab-technicians/workload", workloadHandler(cfg.Labs, log))

	return r
}
