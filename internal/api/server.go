// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It is the composition root of the transport: identity filter, access
    policy and domain routes are assembled here and nowhere else.
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/gatekeeper/internal/platform/access"
	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/config"
	"github.com/taibuivan/gatekeeper/internal/platform/constants"
	"github.com/taibuivan/gatekeeper/internal/platform/metrics"
	"github.com/taibuivan/gatekeeper/internal/platform/middleware"
	"github.com/taibuivan/gatekeeper/internal/platform/respond"
	"github.com/taibuivan/gatekeeper/internal/users/account"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
)

var errMethodNotAllowed = &apperr.AppError{
	Code:       "METHOD_NOT_ALLOWED",
	Message:    "Method not allowed",
	HTTPStatus: http.StatusMethodNotAllowed,
}

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
type Handlers struct {
	// Liveness is the /health handler. Always 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. 200 when all dependencies respond.
	Readiness http.HandlerFunc

	// Auth handles registration, login, refresh, logout and the current identity.
	Auth *auth.Handler

	// Users handles account lookups and administration.
	Users *account.Handler
}

// Security groups the collaborators of the identity filter and access policy.
type Security struct {
	Verifier   middleware.AccessTokenVerifier
	Identities middleware.IdentityLoader

	// Policy decides every request. Nil selects [access.DefaultRules].
	Policy *access.Policy
}

// PublicPaths lists the paths the identity filter never inspects.
// Their access is still decided by the policy.
func PublicPaths() []string {
	return []string{
		constants.APIPrefix + "/auth/register",
		constants.APIPrefix + "/auth/login",
		constants.APIPrefix + "/auth/refresh",
		"/health",
		"/ready",
		"/metrics",
	}
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
//
// The rate limiter janitor stops when context is cancelled.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger, collectors *metrics.Metrics, security Security, h Handlers) (*Server, error) {
	policy := security.Policy
	if policy == nil {
		var err error
		if policy, err = access.NewPolicy(access.DefaultRules()...); err != nil {
			return nil, fmt.Errorf("api_policy_invalid: %w", err)
		}
	}

	bypass, err := access.NewPathSet(PublicPaths()...)
	if err != nil {
		return nil, fmt.Errorf("api_bypass_invalid: %w", err)
	}

	proxies, err := middleware.NewProxyTrust(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("api_trusted_proxies_invalid: %w", err)
	}

	limiter := middleware.NewRateLimiter(context, constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst, proxies)

	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log, proxies))
	r.Use(middleware.Instrument(collectors))
	r.Use(middleware.PanicRecovery())
	r.Use(limiter.Middleware)
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	// Everything below, routing included, sees the cleaned path.
	r.Use(middleware.CanonicalPath)
	r.Use(middleware.CORS(cfg))

	// Identity is established before any route runs, then the policy decides.
	r.Use(middleware.Identify(security.Verifier, security.Identities, bypass, collectors))
	r.Use(middleware.Authorize(policy, collectors))

	r.NotFound(func(writer http.ResponseWriter, request *http.Request) {
		respond.Error(writer, request, apperr.NotFound("Route"))
	})
	r.MethodNotAllowed(func(writer http.ResponseWriter, request *http.Request) {
		respond.Error(writer, request, errMethodNotAllowed)
	})

	// # Infrastructure Endpoints
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	r.Method(http.MethodGet, "/metrics", collectors.Handler())

	// # Application API
	r.Route(constants.APIPrefix, func(api chi.Router) {
		api.Mount("/auth", h.Auth.Routes())
		api.Mount("/users", h.Users.Routes())
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
