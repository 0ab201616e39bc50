// Package memory provides an in-memory catalog.Store loaded from a fixture
// file. It is safe for concurrent use and intended for local development and
// tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yachtvault/yachtvault/internal/catalog"
)

// Store is an in-memory catalog.
type Store struct {
	mu     sync.RWMutex
	yachts []catalog.Yacht
	byID   map[string]int
	rng    *rand.Rand
	rngMu  sync.Mutex
}

var _ catalog.Store = (*Store)(nil)

// New creates a store holding yachts. Records without an id are given their
// position as id.
func New(yachts []catalog.Yacht) *Store {
	s := &Store{
		byID: make(map[string]int, len(yachts)),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for i, y := range yachts {
		if y.ID == "" {
			y.ID = fmt.Sprintf("%d", i+1)
		}
		s.byID[y.ID] = len(s.yachts)
		s.yachts = append(s.yachts, y)
	}
	return s
}

// Load reads a JSON or YAML fixture holding a list of yachts. The format is
// chosen by file extension.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var yachts []catalog.Yacht
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &yachts)
	case ".json":
		err = json.Unmarshal(data, &yachts)
	default:
		return nil, fmt.Errorf("unsupported fixture format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return New(yachts), nil
}

// Seed replaces the random source used for quiz pools.
func (s *Store) Seed(seed int64) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.yachts)
}

func (s *Store) ListYachts(_ context.Context, q catalog.ListQuery) (catalog.ListResult, error) {
	s.mu.RLock()
	matched := make([]catalog.Yacht, 0, len(s.yachts))
	for _, y := range s.yachts {
		if q.Matches(y) {
			matched = append(matched, y)
		}
	}
	s.mu.RUnlock()

	catalog.SortYachts(matched, q.Sort())

	total := len(matched)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return catalog.ListResult{Yachts: matched[start:end], Total: total}, nil
}

func (s *Store) GetYacht(_ context.Context, id string) (catalog.Yacht, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return catalog.Yacht{}, catalog.ErrNotFound
	}
	return s.yachts[idx], nil
}

func (s *Store) DistinctBuilders(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	builders := []string{}
	for _, y := range s.yachts {
		b := y.BuilderName()
		if b == "" {
			continue
		}
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		builders = append(builders, b)
	}
	sort.Strings(builders)
	return builders, nil
}

// QuizPool returns a random sample of eligible yachts.
func (s *Store) QuizPool(_ context.Context, q catalog.PoolQuery) ([]catalog.Yacht, error) {
	s.mu.RLock()
	pool := make([]catalog.Yacht, 0, len(s.yachts))
	for _, y := range s.yachts {
		if q.Matches(y) {
			pool = append(pool, y)
		}
	}
	s.mu.RUnlock()

	s.rngMu.Lock()
	s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	s.rngMu.Unlock()

	if limit := q.EffectiveLimit(); len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}
