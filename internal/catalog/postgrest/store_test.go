package postgrest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yachtvault/yachtvault/internal/catalog"
	"github.com/yachtvault/yachtvault/internal/supabase"
)

func newStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := supabase.New(supabase.Config{URL: srv.URL, APIKey: "key", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return New(client, Config{})
}

func TestListYachts_BuildsFilters(t *testing.T) {
	var got url.Values
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/yachts", r.URL.Path)
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		got = r.URL.Query()
		w.Header().Set("Content-Range", "12-23/30")
		_, _ = w.Write([]byte(`[{"id":"1","name":"Sea, Breeze","builder":"Lurssen","length_m":61.5,"owner":null}]`))
	})

	q := catalog.ParseListQuery(url.Values{
		"page":      {"2"},
		"limit":     {"12"},
		"search":    {"sea, (b)"},
		"minLength": {"30"},
		"maxLength": {"90.5"},
		"builder":   {"lur"},
		"sortBy":    {"year_built.asc"},
	})
	res, err := s.ListYachts(context.Background(), q)
	require.NoError(t, err)

	want := url.Values{
		"select":   {"*"},
		"or":       {`(name.ilike."%sea, (b)%",builder.ilike."%sea, (b)%")`},
		"length_m": {"gte.30", "lte.90.5"},
		"builder":  {"ilike.%lur%"},
		"order":    {"year_built.asc"},
		"limit":    {"12"},
		"offset":   {"12"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 30, res.Total)
	require.Len(t, res.Yachts, 1)
	assert.Equal(t, "Sea, Breeze", res.Yachts[0].DisplayName())
	assert.Nil(t, res.Yachts[0].Owner)
	assert.Equal(t, 61.5, *res.Yachts[0].LengthM)
}

func TestListYachts_EscapesWildcards(t *testing.T) {
	var got url.Values
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(`[]`))
	})

	q := catalog.ParseListQuery(url.Values{"search": {"50%_off"}, "builder": {"b_v"}})
	_, err := s.ListYachts(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, `(name.ilike."%50\\%\\_off%",builder.ilike."%50\\%\\_off%")`, got.Get("or"))
	assert.Equal(t, `ilike.%b\_v%`, got.Get("builder"))
}

func TestListYachts_InvalidSortFallsBack(t *testing.T) {
	var order string
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		order = r.URL.Query().Get("order")
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := s.ListYachts(context.Background(), catalog.ParseListQuery(url.Values{"sortBy": {"price.asc"}}))
	require.NoError(t, err)
	assert.Equal(t, "length_m.desc", order)
}

func TestListYachts_PastLastPage(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "*/5")
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	})

	res, err := s.ListYachts(context.Background(), catalog.ParseListQuery(url.Values{"page": {"9"}}))
	require.NoError(t, err)
	assert.Empty(t, res.Yachts)
	assert.NotNil(t, res.Yachts)
	assert.Equal(t, 5, res.Total)
}

func TestGetYacht(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/yachts_enhance_data", r.URL.Path)
		if r.URL.Query().Get("id") == "eq.42" {
			_, _ = w.Write([]byte(`{"id":"42","name":"Aurora","yacht_pictures":["a.jpg","b.jpg"]}`))
			return
		}
		w.WriteHeader(http.StatusNotAcceptable)
		_, _ = w.Write([]byte(`{"code":"PGRST116","message":"no rows"}`))
	})

	y, err := s.GetYacht(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Aurora", y.DisplayName())
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, y.YachtPictures)

	_, err = s.GetYacht(context.Background(), "nope")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestGetYacht_ServerError(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"22P02","message":"invalid input syntax for type uuid"}`))
	})

	_, err := s.GetYacht(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrNotFound)
}

func TestDistinctBuilders(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/get_distinct_builders", r.URL.Path)
		_, _ = w.Write([]byte(`[{"builder":"Feadship"},{"builder":null},{"builder":""},{"builder":"Lurssen"}]`))
	})

	got, err := s.DistinctBuilders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Feadship", "Lurssen"}, got)
}

func TestDistinctBuilders_BadPayload(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"builder":"Feadship"}`))
	})

	_, err := s.DistinctBuilders(context.Background())
	assert.Error(t, err)
}

func TestQuizPool(t *testing.T) {
	var got url.Values
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(`[{"id":"1","name":"A","builder":"B","yacht_pictures":["x.jpg"]}]`))
	})

	minLen, maxLen := 30, 180
	ys, err := s.QuizPool(context.Background(), catalog.PoolQuery{MinLength: &minLen, MaxLength: &maxLen})
	require.NoError(t, err)
	require.Len(t, ys, 1)

	want := url.Values{
		"select":         {quizColumns},
		"yacht_pictures": {"not.is.null", "neq.{}"},
		"name":           {"not.is.null"},
		"builder":        {"not.is.null"},
		"length_m":       {"gte.30", "lte.180"},
		"limit":          {"40"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
}
