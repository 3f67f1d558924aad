package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hongminglow/taheel-be/internal/auth"
	"github.com/hongminglow/taheel-be/internal/config"
	"github.com/hongminglow/taheel-be/internal/events"
	"github.com/hongminglow/taheel-be/internal/http/handlers"
	"github.com/hongminglow/taheel-be/internal/middleware"
	"go.uber.org/zap"
)

// Deps are the domain services the HTTP layer fronts.
type Deps struct {
	Dashboard     handlers.DashboardLoader
	Wallet        handlers.TopUpEngine
	Notifications handlers.NotificationLedger
	Publisher     events.Publisher
	Tokens        *auth.TokenManager
	Logger        *zap.SugaredLogger
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return &Server{inner: httpServer}
}

// NewRouter assembles the chi router. Exposed for handler tests.
func NewRouter(cfg config.Config, deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	handlers.NewHealthHandler(time.Now()).Register(r)
	handlers.NewPaymentHandler(deps.Wallet, cfg.PaymentWebhookSecret, deps.Logger).Register(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAccount(deps.Tokens))
		handlers.NewDashboardHandler(deps.Dashboard, cfg.DefaultLang, deps.Logger).Register(r)
		handlers.NewWalletHandler(deps.Wallet, cfg.DefaultLang, deps.Logger).Register(r)
		handlers.NewNotificationHandler(deps.Notifications, deps.Publisher, deps.Logger).Register(r)
	})
	return r
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
