// Package postgrest implements catalog.Store over the Supabase REST API.
package postgrest

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/yachtvault/yachtvault/internal/catalog"
	"github.com/yachtvault/yachtvault/internal/supabase"
)

// BuildersRPC is the database function returning [{builder}] rows.
const BuildersRPC = "get_distinct_builders"

const quizColumns = "id,name,builder,yacht_pictures,length_m,year_built,max_speed_kn,volume_gt,price,owner,detail_url"

// Config names the tables read by the store.
type Config struct {
	// YachtsTable backs the list endpoint.
	YachtsTable string
	// DetailTable backs detail lookups and quiz pools.
	DetailTable string
}

// Store implements catalog.Store backed by PostgREST.
type Store struct {
	client *supabase.Client
	cfg    Config
}

var _ catalog.Store = (*Store)(nil)

// New creates a Store using the provided client.
func New(client *supabase.Client, cfg Config) *Store {
	if cfg.YachtsTable == "" {
		cfg.YachtsTable = "yachts"
	}
	if cfg.DetailTable == "" {
		cfg.DetailTable = "yachts_enhance_data"
	}
	return &Store{client: client, cfg: cfg}
}

// ListYachts returns one page of the list table with an exact count.
func (s *Store) ListYachts(ctx context.Context, q catalog.ListQuery) (catalog.ListResult, error) {
	query := s.client.From(s.cfg.YachtsTable).Select("*").Count("exact")

	if q.Search != "" {
		pattern := supabase.Quote(catalog.ContainsPattern(q.Search))
		query = query.Or("name.ilike."+pattern, "builder.ilike."+pattern)
	}
	if q.MinLength != nil {
		query = query.Gte("length_m", *q.MinLength)
	}
	if q.MaxLength != nil {
		query = query.Lte("length_m", *q.MaxLength)
	}
	if q.Builder != "" {
		query = query.ILike("builder", catalog.ContainsPattern(q.Builder))
	}

	sort := q.Sort()
	query = query.Order(sort.Field, sort.Ascending).Offset(q.Offset()).Limit(q.Limit)

	var yachts []catalog.Yacht
	resp, err := query.ExecuteInto(ctx, &yachts)
	if err != nil {
		return catalog.ListResult{}, fmt.Errorf("list yachts: %w", err)
	}

	total := resp.Total()
	if total < 0 {
		total = 0
	}
	if yachts == nil {
		yachts = []catalog.Yacht{}
	}
	return catalog.ListResult{Yachts: yachts, Total: total}, nil
}

// GetYacht fetches one enriched record by id.
func (s *Store) GetYacht(ctx context.Context, id string) (catalog.Yacht, error) {
	var y catalog.Yacht
	_, err := s.client.From(s.cfg.DetailTable).Select("*").Eq("id", id).Single().ExecuteInto(ctx, &y)
	if supabase.IsNoRows(err) {
		return catalog.Yacht{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Yacht{}, fmt.Errorf("get yacht %s: %w", id, err)
	}
	return y, nil
}

// DistinctBuilders calls the builders RPC.
func (s *Store) DistinctBuilders(ctx context.Context) ([]string, error) {
	resp, err := s.client.RPC(ctx, BuildersRPC, nil)
	if err != nil {
		return nil, fmt.Errorf("distinct builders: %w", err)
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, fmt.Errorf("distinct builders: invalid JSON payload")
	}

	result := gjson.ParseBytes(resp.Body)
	if !result.IsArray() {
		return nil, fmt.Errorf("distinct builders: expected array, got %s", result.Type)
	}

	builders := make([]string, 0, len(result.Array()))
	result.ForEach(func(_, row gjson.Result) bool {
		if b := row.Get("builder"); b.Exists() && b.Type == gjson.String {
			if name := strings.TrimSpace(b.String()); name != "" {
				builders = append(builders, b.String())
			}
		}
		return true
	})
	return builders, nil
}

// QuizPool returns up to q.Limit yachts with a name, a builder and a
// non-empty picture list. Rows come back in table order.
func (s *Store) QuizPool(ctx context.Context, q catalog.PoolQuery) ([]catalog.Yacht, error) {
	query := s.client.From(s.cfg.DetailTable).
		Select(quizColumns).
		Not("yacht_pictures", "is", "null").
		Neq("yacht_pictures", "{}").
		Not("name", "is", "null").
		Not("builder", "is", "null").
		Limit(q.EffectiveLimit())

	if q.MinLength != nil {
		query = query.Gte("length_m", *q.MinLength)
	}
	if q.MaxLength != nil {
		query = query.Lte("length_m", *q.MaxLength)
	}

	var yachts []catalog.Yacht
	if _, err := query.ExecuteInto(ctx, &yachts); err != nil {
		return nil, fmt.Errorf("quiz pool: %w", err)
	}
	return yachts, nil
}
