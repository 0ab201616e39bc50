// Package server assembles the yachtvault HTTP server: catalog backend,
// cache, API and page routes, middleware and background jobs.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/yachtvault/yachtvault/internal/cache"
	"github.com/yachtvault/yachtvault/internal/catalog"
	"github.com/yachtvault/yachtvault/internal/config"
	"github.com/yachtvault/yachtvault/internal/httpapi"
	"github.com/yachtvault/yachtvault/internal/logging"
	"github.com/yachtvault/yachtvault/internal/metrics"
	"github.com/yachtvault/yachtvault/internal/middleware"
	"github.com/yachtvault/yachtvault/internal/quiz"
	"github.com/yachtvault/yachtvault/internal/web"
)

const (
	shutdownTimeout      = 30 * time.Second
	limiterCleanupPeriod = 5 * time.Minute
)

// Server is a configured yachtvault HTTP server.
type Server struct {
	cfg     config.Config
	logger  *logging.Logger
	handler http.Handler
	limiter *middleware.RateLimiter
	warmer  *cache.Warmer
	closers []closeFunc
}

// New opens the configured backend and cache and builds the server.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Server, error) {
	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}
	c, closeCache := OpenCache(ctx, cfg, logger)

	s, err := NewWithStore(cfg, logger, store, c)
	if err != nil {
		_ = closeCache()
		_ = closeStore()
		return nil, err
	}
	s.closers = append(s.closers, closeCache, closeStore)
	return s, nil
}

// NewWithStore builds a server around an existing store and cache.
func NewWithStore(cfg config.Config, logger *logging.Logger, store catalog.Store, c cache.Cache) (*Server, error) {
	cached := catalog.NewCachedStore(catalog.Instrument(store, cfg.Backend), c, cfg.CacheTTL, logger)
	gen := quiz.NewGenerator(cached)

	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	httpapi.New(cached, gen, logger).Register(r)

	if cfg.WebEnabled {
		pages, err := web.New(cached, gen, logger, web.Options{
			SessionSecret: []byte(cfg.QuizSessionSecret),
			SecureCookies: cfg.Env == "production",
		})
		if err != nil {
			return nil, fmt.Errorf("build web pages: %w", err)
		}
		pages.Register(r)
		r.NotFoundHandler = http.HandlerFunc(pages.NotFound)
	} else {
		r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			httpapi.WriteError(w, http.StatusNotFound, "Not found")
		})
	}

	s := &Server{cfg: cfg, logger: logger}

	var h http.Handler = r
	if cfg.RateLimitRPS > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
		s.limiter.TrustForwarded = cfg.VercelURL != ""
		h = s.limiter.Handler(h)
	}
	h = middleware.NewCORSMiddleware(cfg.AllowedOrigins(), "/api/").Handler(h)
	h = middleware.Recover(logger)(h)
	h = middleware.NewTracingMiddleware(logger).Handler(h)
	s.handler = h

	if cfg.CacheWarmSchedule != "" {
		warmer, err := cache.NewWarmer(cfg.CacheWarmSchedule, func(ctx context.Context) error {
			_, err := cached.RefreshBuilders(ctx)
			if errors.Is(err, catalog.ErrNotConfigured) {
				return nil
			}
			return err
		}, logger)
		if err != nil {
			return nil, err
		}
		s.warmer = warmer
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. Background jobs run for the lifetime of the server.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.WithField("addr", ln.Addr().String()).
			WithField("backend", s.cfg.Backend).
			Info("http server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if s.warmer != nil {
		g.Go(func() error { return s.warmer.Run(ctx) })
	}
	if s.limiter != nil {
		g.Go(func() error {
			s.limiter.RunCleanup(ctx, limiterCleanupPeriod)
			return nil
		})
	}

	return g.Wait()
}

// Close releases the store and cache connections.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
