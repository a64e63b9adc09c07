// Package stubserver is an in-memory stand-in for the field-visit backend.
// It serves the portal endpoints under /api, the token refresh endpoint
// under /live and Prometheus metrics at /metrics.
//
// Access tokens are short-lived HS256 JWTs; reference tokens are random,
// single use and rotated on every refresh. RevokeAccessTokens invalidates
// all outstanding access tokens at once so tests can force a 401.
package stubserver

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	cfg     *Config
	log     logging.Logger
	tokens  *tokenIssuer
	data    *backend
	reg     *prometheus.Registry
	metrics *metrics

	refreshes atomic.Int64
}

func New(cfg *Config, log logging.Logger) *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		cfg:     cfg,
		log:     log.With("component", "stubserver"),
		tokens:  newTokenIssuer([]byte(cfg.SecretKey), cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		data:    newBackend(),
		reg:     reg,
		metrics: newMetrics(reg),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)

	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))

	r.Put("/live/account/refresh-authentication", s.refresh)

	r.Route("/api", func(r chi.Router) {
		r.Post("/account/patient-authenticate", s.authenticate)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/account/logout", s.logout)
			r.Put("/patients/check-user-list", s.checkUserList)
			r.Get("/SalesVisit/FetchVisits", s.fetchVisits)
			r.Get("/resources/locations", s.locations)
			r.Post("/providers/fetch-provider-list-items", s.providerList)
			r.Post("/SalesVisit/AddVisit", s.addVisit)
			r.Post("/SalesVisit/SalesVisitLogin", s.dutyOn)
			r.Put("/SalesVisit/UpdateSalesVisitLogin", s.dutyOff)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "stub server listening", "addr", s.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.log.Info(ctx, "stub server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Refreshes is the number of refresh calls received so far.
func (s *Server) Refreshes() int64 {
	return s.refreshes.Load()
}

// RevokeAccessTokens makes every access token issued so far answer 401.
func (s *Server) RevokeAccessTokens() {
	s.tokens.revokeAccess()
}
