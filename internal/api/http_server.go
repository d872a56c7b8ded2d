package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"carrental/internal/config"
	"carrental/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services bundles what the HTTP handlers call into.
type Services struct {
	Auth      *service.AuthService
	Cars      *service.CarService
	Customers *service.CustomerService
	Bookings  *service.BookingService
	Users     *service.UserService
	DB        Pinger
}

// HTTPServer exposes the REST API under /api/v1.
type HTTPServer struct {
	cfg       config.APIConfig
	auth      *service.AuthService
	cars      *service.CarService
	customers *service.CustomerService
	bookings  *service.BookingService
	users     *service.UserService
	db        Pinger
	handler   http.Handler
	server    *http.Server
	logger    *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	httpLogger := logger.With().Str("component", "http").Logger()

	srv := &HTTPServer{
		cfg:       cfg,
		auth:      svc.Auth,
		cars:      svc.Cars,
		customers: svc.Customers,
		bookings:  svc.Bookings,
		users:     svc.Users,
		db:        svc.DB,
		logger:    &httpLogger,
	}

	router := mux.NewRouter()
	router.Use(
		routeTemplateMiddleware,
		rateLimitMiddleware(newRateLimiter(cfg.RateLimit)),
	)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.HandleFunc("/healthz", srv.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", srv.handleReady).Methods(http.MethodGet)
	srv.registerRoutes(router.PathPrefix("/api/v1").Subrouter())

	srv.handler = requestIDMiddleware(accessMiddleware(srv.logger)(corsMiddleware(cfg.CORS.AllowedOrigins)(router)))
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// registerRoutes wires every endpoint. Fixed paths are registered before
// their {id} siblings so that /bookings/export does not match /bookings/{id}.
func (s *HTTPServer) registerRoutes(r *mux.Router) {
	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.Handle("/auth/logout", s.authed(s.handleLogout)).Methods(http.MethodPost)

	r.Handle("/me", s.authed(s.handleGetProfile)).Methods(http.MethodGet)
	r.Handle("/me", s.authed(s.handleUpdateProfile)).Methods(http.MethodPut)
	r.Handle("/me/bookings", s.authed(s.handleMyBookings)).Methods(http.MethodGet)
	r.Handle("/me/bookings", s.authed(s.handleCreateUserBooking)).Methods(http.MethodPost)

	r.Handle("/cars", s.authed(s.handleListCars)).Methods(http.MethodGet)
	r.Handle("/cars", s.admin(s.handleCreateCar)).Methods(http.MethodPost)
	r.Handle("/cars/{id}/availability", s.authed(s.handleCarAvailability)).Methods(http.MethodGet)
	r.Handle("/cars/{id}", s.authed(s.handleGetCar)).Methods(http.MethodGet)
	r.Handle("/cars/{id}", s.admin(s.handleUpdateCar)).Methods(http.MethodPut)
	r.Handle("/cars/{id}", s.admin(s.handleDeleteCar)).Methods(http.MethodDelete)

	r.Handle("/customers", s.admin(s.handleListCustomers)).Methods(http.MethodGet)
	r.Handle("/customers", s.admin(s.handleCreateCustomer)).Methods(http.MethodPost)
	r.Handle("/customers/{id}/bookings", s.admin(s.handleCustomerBookings)).Methods(http.MethodGet)
	r.Handle("/customers/{id}", s.admin(s.handleGetCustomer)).Methods(http.MethodGet)
	r.Handle("/customers/{id}", s.admin(s.handleUpdateCustomer)).Methods(http.MethodPut)
	r.Handle("/customers/{id}", s.admin(s.handleDeleteCustomer)).Methods(http.MethodDelete)

	r.Handle("/bookings", s.admin(s.handleListBookings)).Methods(http.MethodGet)
	r.Handle("/bookings", s.admin(s.handleCreateAdminBooking)).Methods(http.MethodPost)
	r.Handle("/bookings/filter", s.authed(s.handleFilterBookings)).Methods(http.MethodPost)
	r.Handle("/bookings/export", s.admin(s.handleExportBookings)).Methods(http.MethodGet)
	r.Handle("/bookings/{id}", s.authed(s.handleGetBooking)).Methods(http.MethodGet)
	r.Handle("/bookings/{id}", s.admin(s.handleUpdateBooking)).Methods(http.MethodPut)
	r.Handle("/bookings/{id}", s.admin(s.handleDeleteBooking)).Methods(http.MethodDelete)

	r.Handle("/dashboard", s.admin(s.handleDashboard)).Methods(http.MethodGet)

	r.Handle("/users", s.admin(s.handleListUsers)).Methods(http.MethodGet)
	r.Handle("/users/{id}/role", s.admin(s.handleChangeRole)).Methods(http.MethodPut)
	r.Handle("/users/{id}", s.admin(s.handleDeleteUser)).Methods(http.MethodDelete)
}

func (s *HTTPServer) authed(h http.HandlerFunc) http.Handler {
	return s.authMiddleware(h)
}

func (s *HTTPServer) admin(h http.HandlerFunc) http.Handler {
	return s.authMiddleware(adminOnly(h))
}

// Handler returns the fully wrapped router.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, http.StatusOK, "ok", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeOK(w, http.StatusOK, "ready", nil)
}
