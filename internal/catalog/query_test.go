package catalog

import (
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListQuery_Defaults(t *testing.T) {
	q := ParseListQuery(url.Values{})

	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 20, q.Limit)
	assert.Equal(t, "length_m.desc", q.SortBy)
	assert.Nil(t, q.MinLength)
	assert.Nil(t, q.MaxLength)
	assert.Equal(t, Filters{SortBy: "length_m.desc"}, q.Echo)
}

func TestParseListQuery_Values(t *testing.T) {
	q := ParseListQuery(url.Values{
		"page":      {"3"},
		"limit":     {"12"},
		"search":    {" sea "},
		"minLength": {"30.5"},
		"maxLength": {"abc"},
		"builder":   {"Feadship"},
		"sortBy":    {"year_built.asc"},
	})

	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 12, q.Limit)
	assert.Equal(t, 24, q.Offset())
	assert.Equal(t, "sea", q.Search)
	require.NotNil(t, q.MinLength)
	assert.Equal(t, 30.5, *q.MinLength)
	assert.Nil(t, q.MaxLength, "invalid numbers are ignored")
	assert.Equal(t, Sort{Field: "year_built", Ascending: true}, q.Sort())

	require.NotNil(t, q.Echo.MaxLength)
	assert.Equal(t, "abc", *q.Echo.MaxLength, "raw value is echoed")
	require.NotNil(t, q.Echo.Builder)
	assert.Equal(t, "Feadship", *q.Echo.Builder)
}

func TestParseListQuery_BadPaging(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		limit     string
		wantPage  int
		wantLimit int
	}{
		{"non numeric", "x", "y", 1, 20},
		{"zero", "0", "0", 1, 20},
		{"negative", "-2", "-5", 1, 20},
		{"limit capped", "2", "5000", 2, MaxLimit},
		{"page capped", "92233720368547760", "100", MaxPage, MaxLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ParseListQuery(url.Values{"page": {tt.page}, "limit": {tt.limit}})
			assert.Equal(t, tt.wantPage, q.Page)
			assert.Equal(t, tt.wantLimit, q.Limit)
		})
	}
}

func TestOffset_DoesNotOverflow(t *testing.T) {
	q := ParseListQuery(url.Values{"page": {"92233720368547760"}, "limit": {"100"}})
	assert.Equal(t, (MaxPage-1)*MaxLimit, q.Offset())
	assert.Positive(t, q.Offset())

	assert.Equal(t, math.MaxInt, ListQuery{Page: math.MaxInt, Limit: 50}.Offset())
	assert.Zero(t, ListQuery{Page: 0, Limit: 50}.Offset())

	p := NewPagination(q, 6)
	assert.Equal(t, 1, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.True(t, p.HasPrev)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%lur%", ContainsPattern("lur"))
	assert.Equal(t, `%50\%\_off\\%`, ContainsPattern(`50%_off\`))
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		raw  string
		want Sort
	}{
		{"length_m.asc", Sort{"length_m", true}},
		{"max_speed_kn.desc", Sort{"max_speed_kn", false}},
		{"volume_gt.asc", Sort{"volume_gt", true}},
		{"price.asc", DefaultSort},
		{"year_built.sideways", DefaultSort},
		{"year_built", DefaultSort},
		{"", DefaultSort},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSort(tt.raw), tt.raw)
	}
	assert.Equal(t, "length_m.desc", DefaultSort.String())
}

func TestNewPagination(t *testing.T) {
	q := ListQuery{Page: 2, Limit: 20}
	p := NewPagination(q, 45)

	assert.Equal(t, Pagination{Page: 2, Limit: 20, Total: 45, TotalPages: 3, HasNext: true, HasPrev: true}, p)

	last := NewPagination(ListQuery{Page: 3, Limit: 20}, 45)
	assert.False(t, last.HasNext)

	empty := NewPagination(ListQuery{Page: 1, Limit: 20}, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)

	exact := NewPagination(ListQuery{Page: 2, Limit: 20}, 40)
	assert.Equal(t, 2, exact.TotalPages)
	assert.False(t, exact.HasNext)
}

func TestParsePoolQuery(t *testing.T) {
	p := ParsePoolQuery(url.Values{"minLength": {"30.9"}, "maxLength": {"nope"}})
	require.NotNil(t, p.MinLength)
	assert.Equal(t, 30, *p.MinLength)
	assert.Nil(t, p.MaxLength)
	assert.Equal(t, DefaultPoolSize, p.EffectiveLimit())
}
