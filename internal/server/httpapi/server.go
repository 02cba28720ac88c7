// Package httpapi exposes the ridehail REST API over chi.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/ridehail/internal/logging"
	"github.com/dmitrijs2005/ridehail/internal/server/auth"
	"github.com/dmitrijs2005/ridehail/internal/server/metrics"
	"github.com/dmitrijs2005/ridehail/internal/server/models"
	"github.com/dmitrijs2005/ridehail/internal/server/ratelimit"
	"github.com/dmitrijs2005/ridehail/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

type RideService interface {
	RequestRide(ctx context.Context, caller *models.Identity, in services.RideInput) (*models.Ride, error)
	History(ctx context.Context, caller *models.Identity) ([]*models.Ride, error)
	Cancel(ctx context.Context, caller *models.Identity, rideID, reason string) (*models.Ride, error)
	Available(ctx context.Context, caller *models.Identity) ([]*models.Ride, error)
	Accept(ctx context.Context, caller *models.Identity, rideID string) (*models.Ride, error)
	UpdateStatus(ctx context.Context, caller *models.Identity, rideID, status string) (*models.Ride, error)
	Rate(ctx context.Context, caller *models.Identity, rideID string, in services.RatingInput) (*models.Ride, error)
}

type DriverService interface {
	Dashboard(ctx context.Context, caller *models.Identity) (*models.DriverDashboard, error)
	Earnings(ctx context.Context, caller *models.Identity, period string) ([]models.EarningsBucket, error)
}

type AdminService interface {
	Dashboard(ctx context.Context) (*models.Stats, error)
	ListUsers(ctx context.Context, role string, page services.Page) ([]*models.User, error)
	SetUserActive(ctx context.Context, userID string, active bool) (*models.Identity, error)
	ToggleUserActive(ctx context.Context, userID string) (*models.Identity, error)
	ListRides(ctx context.Context, status string, page services.Page) ([]*models.Ride, error)
	Analytics(ctx context.Context, period string) (*models.Analytics, error)
}

// Authenticator is satisfied by *auth.Resolver.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) auth.Result
}

type Deps struct {
	Users      UserService
	Rides      RideService
	Drivers    DriverService
	Admin      AdminService
	Auth       Authenticator
	Limiter    ratelimit.Limiter
	Metrics    *metrics.Metrics
	Logger     logging.Logger
	CORSOrigin string
	Version    string
}

type Server struct {
	address string
	users   UserService
	rides   RideService
	drivers DriverService
	admin   AdminService
	auth    Authenticator
	limiter ratelimit.Limiter
	metrics *metrics.Metrics
	logger  logging.Logger
	origin  string
	version string
}

func NewServer(address string, d Deps) *Server {
	s := &Server{
		address: address,
		users:   d.Users,
		rides:   d.Rides,
		drivers: d.Drivers,
		admin:   d.Admin,
		auth:    d.Auth,
		limiter: d.Limiter,
		metrics: d.Metrics,
		logger:  d.Logger,
		origin:  d.CORSOrigin,
		version: d.Version,
	}
	if s.logger == nil {
		s.logger = logging.Nop{}
	}
	s.logger = s.logger.With("module", "http_server")
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.version == "" {
		s.version = "dev"
	}
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(withRequestID, s.withAccessLog, s.withRecover)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "RateLimit-Remaining", "RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", s.handleRoot)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if s.limiter != nil {
					r.Use(s.rateLimit)
				}
				r.Post("/register", s.handleRegister)
				r.Post("/login", s.handleLogin)
			})
			r.With(s.authenticate).Get("/me", s.handleMe)
		})

		r.Route("/rides", func(r chi.Router) {
			r.Use(s.authenticate)
			r.With(requireRole(models.RoleRider)).Post("/request", s.handleRequestRide)
			r.Get("/history", s.handleRideHistory)
			r.With(requireRole(models.RoleRider)).Put("/{id}/cancel", s.handleCancelRide)
			r.Put("/{id}/rate", s.handleRateRide)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(models.RoleDriver))
				r.Get("/available", s.handleAvailableRides)
				r.Put("/{id}/accept", s.handleAcceptRide)
				r.Put("/{id}/status", s.handleRideStatus)
			})
		})

		r.Route("/drivers", func(r chi.Router) {
			r.Use(s.authenticate, requireRole(models.RoleDriver))
			r.Get("/dashboard", s.handleDriverDashboard)
			r.Get("/earnings", s.handleDriverEarnings)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authenticate, requireRole(models.RoleAdmin))
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/users", s.handleListUsers)
			r.Put("/users/{id}/toggle-status", s.handleToggleUser)
			r.Get("/rides", s.handleListRides)
			r.Get("/analytics", s.handleAnalytics)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen, shutdownTimeout)
}

func (s *Server) Serve(ctx context.Context, listen net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		errCh <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-errCh
}
