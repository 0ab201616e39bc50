package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yachtvault/yachtvault/internal/catalog"
	"github.com/yachtvault/yachtvault/internal/catalog/memory"
	"github.com/yachtvault/yachtvault/internal/logging"
	"github.com/yachtvault/yachtvault/internal/quiz"
)

type failingStore struct {
	err error
}

func (f failingStore) ListYachts(context.Context, catalog.ListQuery) (catalog.ListResult, error) {
	return catalog.ListResult{}, f.err
}

func (f failingStore) GetYacht(context.Context, string) (catalog.Yacht, error) {
	return catalog.Yacht{}, f.err
}

func (f failingStore) DistinctBuilders(context.Context) ([]string, error) {
	return nil, f.err
}

func (f failingStore) QuizPool(context.Context, catalog.PoolQuery) ([]catalog.Yacht, error) {
	return nil, f.err
}

func newRouter(t *testing.T, store catalog.Store) *mux.Router {
	t.Helper()
	gen := quiz.NewGeneratorWithRand(store, rand.New(rand.NewSource(1)))
	h := New(store, gen, logging.NewNop())
	h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	r := mux.NewRouter()
	h.Register(r)
	return r
}

func fixtureStore(t *testing.T) catalog.Store {
	t.Helper()
	s, err := memory.Load(filepath.Join("..", "catalog", "memory", "testdata", "yachts.json"))
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return rec, body
}

func TestHealth(t *testing.T) {
	rec, body := get(t, newRouter(t, catalog.Unconfigured{}), "/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]any{
		"status":    "healthy",
		"timestamp": "2024-05-01T12:00:00Z",
		"service":   "yacht-backend-api",
		"version":   "1.0.0",
	}, body)
}

func TestListYachts(t *testing.T) {
	r := newRouter(t, fixtureStore(t))

	rec, body := get(t, r, "/api/yachts?limit=2&page=2&builder=lurssen&sortBy=length_m.asc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	data := body["data"].([]any)
	assert.Empty(t, data, "two lurssen yachts fit on page one")

	assert.Equal(t, map[string]any{
		"page": 2.0, "limit": 2.0, "total": 2.0, "totalPages": 1.0, "hasNext": false, "hasPrev": true,
	}, body["pagination"])
	assert.Equal(t, map[string]any{
		"search": "", "minLength": nil, "maxLength": nil, "builder": "lurssen", "sortBy": "length_m.asc",
	}, body["filters"])
}

func TestListYachts_Defaults(t *testing.T) {
	rec, body := get(t, newRouter(t, fixtureStore(t)), "/api/yachts?minLength=100")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].([]any)
	require.Len(t, data, 4)
	first := data[0].(map[string]any)
	assert.Equal(t, "Azzam", first["name"], "default order is length descending")

	filters := body["filters"].(map[string]any)
	assert.Equal(t, "100", filters["minLength"])
	assert.Equal(t, "length_m.desc", filters["sortBy"])

	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, 20.0, pagination["limit"])
}

func TestListYachts_HugePage(t *testing.T) {
	rec, body := get(t, newRouter(t, fixtureStore(t)), "/api/yachts?page=92233720368547760&limit=100")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, body["data"])
	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, 6.0, pagination["total"])
	assert.Equal(t, 1.0, pagination["totalPages"])
	assert.Equal(t, false, pagination["hasNext"])
	assert.Equal(t, true, pagination["hasPrev"])
}

func TestBuilders(t *testing.T) {
	rec, body := get(t, newRouter(t, fixtureStore(t)), "/api/yachts/builders")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"Benetti", "Blohm+Voss", "Feadship", "Heesen", "Lurssen"}, body["data"])
}

func TestGetYacht(t *testing.T) {
	r := newRouter(t, fixtureStore(t))

	rec, body := get(t, r, "/api/yachts/2")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Eclipse", data["name"])
	assert.Equal(t, "Blohm+Voss", data["builder"])

	rec, body = get(t, r, "/api/yachts/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "error": "Yacht not found."}, body)

	rec, body = get(t, r, "/api/yachts/")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Yacht ID is required.", body["error"])

	rec, body = get(t, r, "/api/yachts/%20")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Yacht ID is required.", body["error"])
}

func TestQuiz(t *testing.T) {
	r := newRouter(t, fixtureStore(t))

	for _, qType := range []string{"name", "builder", "mixed"} {
		t.Run(qType, func(t *testing.T) {
			rec, body := get(t, r, "/api/quiz?type="+qType+"&minLength=20&maxLength=200.5")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, true, body["success"])

			questions := body["questions"].([]any)
			require.Len(t, questions, 1, "four eligible yachts make one question")
			q := questions[0].(map[string]any)
			assert.Len(t, q["options"], 4)
			assert.Contains(t, q["options"], q["correctAnswer"])
			assert.NotEmpty(t, q["questionId"])
			assert.NotNil(t, q["yacht"].(map[string]any)["yacht_pictures"])
		})
	}

	rec, body := get(t, r, "/api/quiz?minLength=170")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to generate quiz question", body["error"])
}

func TestNotConfigured(t *testing.T) {
	r := newRouter(t, catalog.Unconfigured{})

	for _, target := range []string{"/api/yachts", "/api/yachts/builders", "/api/yachts/1", "/api/quiz"} {
		rec, body := get(t, r, target)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
		assert.Equal(t, "Database connection not configured.", body["error"], target)
	}
}

func TestStoreFailuresAreNotEchoed(t *testing.T) {
	r := newRouter(t, failingStore{err: errors.New("connection refused to 10.0.0.5")})

	tests := []struct {
		target string
		want   string
	}{
		{"/api/yachts", "Failed to fetch yachts from database"},
		{"/api/yachts/builders", "Failed to fetch builders from database"},
		{"/api/yachts/1", "Internal server error"},
		{"/api/quiz", "Failed to generate quiz question"},
	}
	for _, tt := range tests {
		rec, body := get(t, r, tt.target)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, tt.target)
		assert.Equal(t, tt.want, body["error"], tt.target)
		assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	}
}

func TestUnknownRoutes(t *testing.T) {
	r := newRouter(t, catalog.Unconfigured{})

	rec, body := get(t, r, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", body["error"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/yachts", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
