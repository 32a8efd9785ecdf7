package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"rendezvous-api/internal/auth"
	"rendezvous-api/internal/grpcweb"
	"rendezvous-api/internal/metrics"
	"rendezvous-api/internal/middleware"
	"rendezvous-api/internal/model"
	"rendezvous-api/internal/service"
)

const msgRunning = "Serveur en marche"

type AuthService interface {
	Register(ctx context.Context, name, email, password string) error
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
}

type AppointmentService interface {
	Create(ctx context.Context, id auth.Identity, in service.CreateInput) (string, error)
	ListForPatient(ctx context.Context, id auth.Identity) ([]model.Appointment, error)
	ListForPractitioner(ctx context.Context, id auth.Identity) ([]model.Appointment, error)
}

type Config struct {
	Auth         AuthService
	Appointments AppointmentService
	Verifier     middleware.Verifier
	Logger       *slog.Logger
	Metrics      metrics.Recorder
	Gatherer     prometheus.Gatherer // nil disables /metrics
	GRPCWeb      *grpcweb.Bridge     // nil disables the browser gRPC bridge
	CORSOrigin   string
	Checks       []Check
	Env          string
}

type Handler struct {
	auth  AuthService
	appts AppointmentService
}

// NewRouter wires every HTTP route behind the shared middleware stack.
func NewRouter(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Handler{auth: cfg.Auth, appts: cfg.Appointments}
	health := &Health{checks: cfg.Checks, env: cfg.Env}

	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(cfg.Logger, cfg.Metrics))
	if cfg.CORSOrigin != "" {
		r.Use(middleware.CORS(cfg.CORSOrigin))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, messageResponse{Message: msgRunning})
	})
	r.Get("/health/live", health.Live)
	r.Get("/health/ready", health.Ready)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	if cfg.GRPCWeb != nil {
		r.Handle(cfg.GRPCWeb.Pattern(), cfg.GRPCWeb)
	}

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	r.Route("/rendezvous", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Verifier))
		r.Post("/", h.CreateAppointment)
		r.Get("/patient", h.ListPatientAppointments)
		r.Get("/medecin", h.ListPractitionerAppointments)
	})

	return r
}
