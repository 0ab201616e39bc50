package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a yacht id does not exist.
	ErrNotFound = errors.New("catalog: yacht not found")
	// ErrNotConfigured is returned when no database connection is configured.
	ErrNotConfigured = errors.New("catalog: database connection not configured")
)

// Store reads the yacht catalog.
type Store interface {
	// ListYachts returns one filtered, sorted page with the exact total.
	ListYachts(ctx context.Context, q ListQuery) (ListResult, error)
	// GetYacht returns the enriched record for id or ErrNotFound.
	GetYacht(ctx context.Context, id string) (Yacht, error)
	// DistinctBuilders returns every builder name once.
	DistinctBuilders(ctx context.Context) ([]string, error)
	// QuizPool returns up to q.Limit quiz eligible yachts.
	QuizPool(ctx context.Context, q PoolQuery) ([]Yacht, error)
}

// Unconfigured is a Store that fails every call with ErrNotConfigured. It
// stands in for the hosted database when credentials are missing so the
// server can still start and report the problem per request.
type Unconfigured struct{}

var _ Store = Unconfigured{}

func (Unconfigured) ListYachts(context.Context, ListQuery) (ListResult, error) {
	return ListResult{}, ErrNotConfigured
}

func (Unconfigured) GetYacht(context.Context, string) (Yacht, error) {
	return Yacht{}, ErrNotConfigured
}

func (Unconfigured) DistinctBuilders(context.Context) ([]string, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) QuizPool(context.Context, PoolQuery) ([]Yacht, error) {
	return nil, ErrNotConfigured
}

// Matches reports whether y passes the list filters: search is a
// case-insensitive substring of name or builder, the builder filter is a
// case-insensitive substring of builder and length bounds are inclusive.
func (q ListQuery) Matches(y Yacht) bool {
	if q.Search != "" {
		s := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(y.DisplayName()), s) &&
			!strings.Contains(strings.ToLower(y.BuilderName()), s) {
			return false
		}
	}
	if q.Builder != "" && !strings.Contains(strings.ToLower(y.BuilderName()), strings.ToLower(q.Builder)) {
		return false
	}
	if q.MinLength != nil && (y.LengthM == nil || *y.LengthM < *q.MinLength) {
		return false
	}
	if q.MaxLength != nil && (y.LengthM == nil || *y.LengthM > *q.MaxLength) {
		return false
	}
	return true
}

// Matches reports whether y fits the pool's length bounds and is quiz
// eligible.
func (p PoolQuery) Matches(y Yacht) bool {
	if !y.QuizEligible() {
		return false
	}
	if p.MinLength != nil && (y.LengthM == nil || *y.LengthM < float64(*p.MinLength)) {
		return false
	}
	if p.MaxLength != nil && (y.LengthM == nil || *y.LengthM > float64(*p.MaxLength)) {
		return false
	}
	return true
}

// SortYachts orders ys in place. Null values sort last in either direction.
func SortYachts(ys []Yacht, s Sort) {
	key := func(y Yacht) (float64, bool) {
		switch s.Field {
		case "year_built":
			if y.YearBuilt == nil {
				return 0, false
			}
			return float64(*y.YearBuilt), true
		case "max_speed_kn":
			return floatKey(y.MaxSpeedKn)
		case "volume_gt":
			return floatKey(y.VolumeGT)
		default:
			return floatKey(y.LengthM)
		}
	}
	sort.SliceStable(ys, func(i, j int) bool {
		a, okA := key(ys[i])
		b, okB := key(ys[j])
		switch {
		case !okA:
			return false
		case !okB:
			return true
		case s.Ascending:
			return a < b
		default:
			return a > b
		}
	})
}

func floatKey(f *float64) (float64, bool) {
	if f == nil {
		return 0, false
	}
	return *f, true
}
