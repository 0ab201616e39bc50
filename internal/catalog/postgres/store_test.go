package postgres

import (
	"context"
	"database/sql"
	"os"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yachtvault/yachtvault/internal/catalog"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres"), Config{}), mock
}

func TestListYachts(t *testing.T) {
	s, mock := newMockStore(t)

	minLen := 30.0
	q := catalog.ListQuery{
		Page:      2,
		Limit:     12,
		Search:    "50%_off",
		MinLength: &minLen,
		SortBy:    "year_built.asc",
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "yachts" WHERE (name ILIKE $1 OR builder ILIKE $1) AND length_m >= $2`)).
		WithArgs(`%50\%\_off%`, 30.0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(14))

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY "year_built" ASC NULLS LAST, id LIMIT $3 OFFSET $4`)).
		WithArgs(`%50\%\_off%`, 30.0, int64(12), int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "builder", "length_m", "yacht_pictures"}).
			AddRow("a", "50%_off", "Benetti", 44.2, "{x.jpg,y.jpg}").
			AddRow("b", nil, "Feadship", nil, nil))

	res, err := s.ListYachts(context.Background(), q)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 14, res.Total)
	require.Len(t, res.Yachts, 2)
	assert.Equal(t, "50%_off", res.Yachts[0].DisplayName())
	assert.Equal(t, []string{"x.jpg", "y.jpg"}, res.Yachts[0].YachtPictures)
	assert.Nil(t, res.Yachts[1].Name)
	assert.Nil(t, res.Yachts[1].LengthM)
}

func TestListYachts_NoFilters(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "yachts"`) + `$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY "length_m" DESC NULLS LAST, id LIMIT $1 OFFSET $2`)).
		WithArgs(int64(20), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	res, err := s.ListYachts(context.Background(), catalog.ListQuery{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, res.Yachts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetYacht(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "yachts_enhance_data" WHERE id = $1`)).
		WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "year_built", "interior_pictures"}).
			AddRow("42", "Aurora", int64(2019), "{}"))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	y, err := s.GetYacht(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Aurora", y.DisplayName())
	require.NotNil(t, y.YearBuilt)
	assert.Equal(t, 2019, *y.YearBuilt)
	assert.Empty(t, y.InteriorPictures)

	_, err = s.GetYacht(context.Background(), "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistinctBuilders(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT builder FROM get_distinct_builders()`)).
		WillReturnRows(sqlmock.NewRows([]string{"builder"}).AddRow("Benetti").AddRow("Lurssen"))

	got, err := s.DistinctBuilders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Benetti", "Lurssen"}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizPool(t *testing.T) {
	s, mock := newMockStore(t)

	maxLen := 180
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE yacht_pictures IS NOT NULL AND cardinality(yacht_pictures) > 0 AND name IS NOT NULL AND builder IS NOT NULL AND length_m <= $1 ORDER BY random() LIMIT $2`)).
		WithArgs(int64(180), int64(40)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "builder", "yacht_pictures"}).
			AddRow("1", "A", "B", "{a.jpg}"))

	ys, err := s.QuizPool(context.Background(), catalog.PoolQuery{MaxLength: &maxLen})
	require.NoError(t, err)
	require.Len(t, ys, 1)
	assert.True(t, ys[0].QuizEligible())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := New(db, Config{})
	if _, err := store.ListYachts(ctx, catalog.ListQuery{Page: 1, Limit: 5}); err != nil {
		t.Fatalf("list yachts: %v", err)
	}
	if _, err := store.DistinctBuilders(ctx); err != nil {
		t.Fatalf("distinct builders: %v", err)
	}
}
