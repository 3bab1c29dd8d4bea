// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api assembles the HTTP surface: the middleware chain, the health
probes and the versioned chapter routes, served by one [http.Server].

Only this package and cmd/api touch net/http server primitives.
*/
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/inkshelf/internal/core/chapter"
	"github.com/taibuivan/inkshelf/internal/platform/config"
	"github.com/taibuivan/inkshelf/internal/platform/constants"
	"github.com/taibuivan/inkshelf/internal/platform/middleware"
)

// Handlers groups the handlers mounted by [NewServer].
type Handlers struct {
	Liveness  http.HandlerFunc // GET /health
	Readiness http.HandlerFunc // GET /ready
	Chapter   *chapter.Handler // /api/v1 works, chapters and pages
}

// Server owns the router, the rate limiter and the listening server.
type Server struct {
	httpServer *http.Server
	limiter    *middleware.RateLimiter
	log        *slog.Logger
}

// NewServer builds the router.
//
// Probes sit outside the rate limiter and authentication so orchestrators
// can always reach them; everything under /api/v1 passes through both.
func NewServer(cfg *config.Config, log *slog.Logger, verifier middleware.TokenVerifier, h Handlers) *Server {
	limiter := middleware.NewRateLimiter(middleware.RateLimitPolicy{
		Default: middleware.RateBudget{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
		Upload:  middleware.RateBudget{RPS: cfg.UploadRateLimitRPS, Burst: cfg.UploadRateLimitBurst},
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	r.Group(func(guarded chi.Router) {
		guarded.Use(limiter.Middleware)
		guarded.Use(middleware.Authenticate(verifier))
		guarded.Route("/api/v1", h.Chapter.RegisterRoutes)
	})

	return &Server{
		limiter: limiter,
		log:     log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to [constants.ShutdownTimeout]. It returns nil after a clean drain.
func (s *Server) Run(ctx context.Context) error {
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go s.limiter.Janitor(janitorCtx)

	serveErr := make(chan error, 1)
	go func() {
		s.log.Info("server_listening", slog.String("addr", s.httpServer.Addr))
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("server_draining", slog.Duration("timeout", constants.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
