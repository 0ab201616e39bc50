package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/yachtvault/yachtvault/internal/cache"
	"github.com/yachtvault/yachtvault/internal/catalog"
	"github.com/yachtvault/yachtvault/internal/catalog/memory"
	"github.com/yachtvault/yachtvault/internal/catalog/postgres"
	"github.com/yachtvault/yachtvault/internal/catalog/postgrest"
	"github.com/yachtvault/yachtvault/internal/config"
	"github.com/yachtvault/yachtvault/internal/logging"
	"github.com/yachtvault/yachtvault/internal/supabase"
)

// closeFunc releases a resource opened alongside a store or cache.
type closeFunc func() error

func noopClose() error { return nil }

// OpenStore builds the catalog backend selected by cfg. A postgrest backend
// without credentials yields a store that reports itself as not configured
// on every request.
func OpenStore(ctx context.Context, cfg config.Config, logger *logging.Logger) (catalog.Store, closeFunc, error) {
	switch cfg.Backend {
	case config.BackendPostgREST:
		client, err := supabase.New(supabase.Config{
			URL:     cfg.ResolvedSupabaseURL(),
			APIKey:  cfg.SupabaseServiceKey,
			Timeout: cfg.DBTimeout,
			Breaker: circuitBreakerConfig(logger),
		})
		if errors.Is(err, supabase.ErrNotConfigured) {
			logger.Warn("supabase url or service key missing; catalog requests will fail")
			return catalog.Unconfigured{}, noopClose, nil
		}
		if err != nil {
			return nil, nil, err
		}
		return postgrest.New(client, postgrest.Config{
			YachtsTable: cfg.YachtsTable,
			DetailTable: cfg.DetailTable,
		}), noopClose, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(db, postgres.Config{
			YachtsTable: cfg.YachtsTable,
			DetailTable: cfg.DetailTable,
		}), db.Close, nil

	case config.BackendMemory:
		s, err := memory.Load(cfg.FixturePath)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("yachts", s.Len()).Info("loaded catalog fixture")
		return s, noopClose, nil

	default:
		return nil, nil, fmt.Errorf("unknown catalog backend %q", cfg.Backend)
	}
}

func circuitBreakerConfig(logger *logging.Logger) supabase.CircuitBreakerConfig {
	cb := supabase.DefaultCircuitBreakerConfig()
	cb.OnStateChange = func(from, to supabase.CircuitState) {
		logger.WithField("from", from.String()).WithField("to", to.String()).Warn("supabase circuit breaker state changed")
	}
	return cb
}

// OpenCache connects to REDIS_URL when set and otherwise returns an
// in-process cache. An unreachable Redis falls back to the in-process cache.
func OpenCache(ctx context.Context, cfg config.Config, logger *logging.Logger) (cache.Cache, closeFunc) {
	if cfg.RedisURL == "" {
		return cache.NewMemory(), noopClose
	}
	r, err := cache.NewRedis(ctx, cfg.RedisURL, "yachtvault:")
	if err != nil {
		logger.WithError(err).Warn("redis unavailable; using in-process cache")
		return cache.NewMemory(), noopClose
	}
	return r, r.Close
}
