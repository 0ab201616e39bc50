package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/yachtvault/yachtvault/internal/cache"
	"github.com/yachtvault/yachtvault/internal/logging"
	"github.com/yachtvault/yachtvault/internal/metrics"
)

const (
	buildersKey     = "catalog:builders"
	yachtKeyPrefix  = "catalog:yacht:"
	cacheKindBuilds = "builders"
	cacheKindYacht  = "yacht"
)

// CachedStore caches the builder list and yacht detail lookups of another
// Store. Lists and quiz pools always reach the underlying store because they
// depend on user filters or randomness.
type CachedStore struct {
	next  Store
	cache cache.Cache
	ttl   time.Duration
	log   *logging.Logger
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps next. Cache failures are logged and treated as misses.
func NewCachedStore(next Store, c cache.Cache, ttl time.Duration, log *logging.Logger) *CachedStore {
	if log == nil {
		log = logging.NewNop()
	}
	return &CachedStore{next: next, cache: c, ttl: ttl, log: log}
}

func (s *CachedStore) ListYachts(ctx context.Context, q ListQuery) (ListResult, error) {
	return s.next.ListYachts(ctx, q)
}

func (s *CachedStore) QuizPool(ctx context.Context, q PoolQuery) ([]Yacht, error) {
	return s.next.QuizPool(ctx, q)
}

func (s *CachedStore) GetYacht(ctx context.Context, id string) (Yacht, error) {
	key := yachtKeyPrefix + id

	var y Yacht
	if s.lookup(ctx, cacheKindYacht, key, &y) {
		return y, nil
	}

	y, err := s.next.GetYacht(ctx, id)
	if err != nil {
		return Yacht{}, err
	}
	s.store(ctx, key, y)
	return y, nil
}

func (s *CachedStore) DistinctBuilders(ctx context.Context) ([]string, error) {
	var builders []string
	if s.lookup(ctx, cacheKindBuilds, buildersKey, &builders) {
		return builders, nil
	}
	return s.RefreshBuilders(ctx)
}

// RefreshBuilders reloads the builder list from the underlying store and
// replaces the cached copy. The cache warmer calls it on a schedule.
func (s *CachedStore) RefreshBuilders(ctx context.Context) ([]string, error) {
	builders, err := s.next.DistinctBuilders(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, buildersKey, builders)
	return builders, nil
}

func (s *CachedStore) lookup(ctx context.Context, kind, key string, dest any) bool {
	ok, err := cache.GetJSON(ctx, s.cache, key, dest)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("key", key).Warn("cache read failed")
	}
	metrics.RecordCacheLookup(kind, ok)
	return ok
}

func (s *CachedStore) store(ctx context.Context, key string, value any) {
	if err := cache.SetJSON(ctx, s.cache, key, value, s.ttl); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

// =============================================================================
// Instrumentation
// =============================================================================

// InstrumentedStore records query counts and latency for another Store.
type InstrumentedStore struct {
	next    Store
	backend string
}

var _ Store = (*InstrumentedStore)(nil)

// Instrument wraps next, labelling metrics with backend.
func Instrument(next Store, backend string) *InstrumentedStore {
	return &InstrumentedStore{next: next, backend: backend}
}

func (s *InstrumentedStore) ListYachts(ctx context.Context, q ListQuery) (res ListResult, err error) {
	defer s.observe("list_yachts", time.Now(), &err)
	return s.next.ListYachts(ctx, q)
}

func (s *InstrumentedStore) GetYacht(ctx context.Context, id string) (Yacht, error) {
	start := time.Now()
	y, err := s.next.GetYacht(ctx, id)
	// a miss is a successful query
	observed := err
	if errors.Is(err, ErrNotFound) {
		observed = nil
	}
	s.observe("get_yacht", start, &observed)
	return y, err
}

func (s *InstrumentedStore) DistinctBuilders(ctx context.Context) (b []string, err error) {
	defer s.observe("distinct_builders", time.Now(), &err)
	return s.next.DistinctBuilders(ctx)
}

func (s *InstrumentedStore) QuizPool(ctx context.Context, q PoolQuery) (ys []Yacht, err error) {
	defer s.observe("quiz_pool", time.Now(), &err)
	return s.next.QuizPool(ctx, q)
}

func (s *InstrumentedStore) observe(op string, start time.Time, err *error) {
	metrics.RecordStoreQuery(s.backend, op, time.Since(start), *err)
}
