package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"eventcheckin/internal/delivery/http/controllers"
	"eventcheckin/internal/delivery/http/middleware"
	"eventcheckin/internal/domain"
)

// RouterDeps holds what NewRouter needs to build the route table.
type RouterDeps struct {
	Logger       *slog.Logger
	Verifier     domain.TokenVerifier
	Registration *controllers.RegistrationController
	Attendance   *controllers.AttendanceController
	SubmitLimit  *middleware.RateLimiter
}

// NewRouter initializes the HTTP router with all application routes.
func NewRouter(d RouterDeps) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(d.Verifier, d.Logger)

	// Public
	mux.HandleFunc("POST /events/{eventID}/registrations", d.SubmitLimit.Wrap(d.Registration.Submit))
	mux.HandleFunc("GET /healthz", controllers.Health)

	// Organizer
	mux.HandleFunc("GET /events/{eventID}/registrations", auth(d.Registration.ListByEvent))
	mux.HandleFunc("GET /events/{eventID}/attendance", auth(d.Attendance.Stats))
	mux.HandleFunc("GET /registrations/{registrationID}", auth(d.Registration.GetByID))
	mux.HandleFunc("PUT /registrations/{registrationID}/approve", auth(d.Registration.Approve))
	mux.HandleFunc("PUT /registrations/{registrationID}/reject", auth(d.Registration.Reject))
	mux.HandleFunc("POST /check-ins", auth(d.Registration.CheckIn))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
