package catalog

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// List query defaults.
const (
	DefaultPage     = 1
	DefaultLimit    = 20
	MaxLimit        = 100
	DefaultSortBy   = "length_m.desc"
	DefaultPoolSize = 40
)

// MaxPage bounds the page number so the row offset fits in an int.
const MaxPage = math.MaxInt / MaxLimit

// SortFields lists the columns a list may be ordered by.
var SortFields = []string{"length_m", "year_built", "max_speed_kn", "volume_gt"}

// ListQuery describes one page of the yacht list.
type ListQuery struct {
	Page      int
	Limit     int
	Search    string
	MinLength *float64
	MaxLength *float64
	Builder   string
	SortBy    string

	// Echo holds the raw filter values as received, for the response.
	Echo Filters
}

// Filters is the echo of the request filters. Optional values that were not
// supplied serialize as null.
type Filters struct {
	Search    string  `json:"search"`
	MinLength *string `json:"minLength"`
	MaxLength *string `json:"maxLength"`
	Builder   *string `json:"builder"`
	SortBy    string  `json:"sortBy"`
}

// Offset returns the zero-based row offset of the page, saturating at
// math.MaxInt.
func (q ListQuery) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Sort returns the validated ordering.
func (q ListQuery) Sort() Sort {
	return ParseSort(q.SortBy)
}

// ParseListQuery reads a list query from URL parameters. Invalid numbers are
// ignored and non-positive page or limit values fall back to the defaults.
func ParseListQuery(values url.Values) ListQuery {
	q := ListQuery{
		Page:   positiveInt(values.Get("page"), DefaultPage),
		Limit:  positiveInt(values.Get("limit"), DefaultLimit),
		Search: strings.TrimSpace(values.Get("search")),
		SortBy: values.Get("sortBy"),
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.SortBy == "" {
		q.SortBy = DefaultSortBy
	}
	q.MinLength = optionalFloat(values.Get("minLength"))
	q.MaxLength = optionalFloat(values.Get("maxLength"))
	q.Builder = strings.TrimSpace(values.Get("builder"))

	q.Echo = Filters{
		Search:    q.Search,
		MinLength: optionalString(values, "minLength"),
		MaxLength: optionalString(values, "maxLength"),
		Builder:   optionalString(values, "builder"),
		SortBy:    q.SortBy,
	}
	return q
}

// Sort is a validated list ordering.
type Sort struct {
	Field     string
	Ascending bool
}

// DefaultSort orders by length, longest first.
var DefaultSort = Sort{Field: "length_m", Ascending: false}

// ParseSort parses "<field>.<asc|desc>". Unknown fields or directions yield
// DefaultSort.
func ParseSort(raw string) Sort {
	field, dir, ok := strings.Cut(raw, ".")
	if !ok || !isSortField(field) {
		return DefaultSort
	}
	switch dir {
	case "asc":
		return Sort{Field: field, Ascending: true}
	case "desc":
		return Sort{Field: field, Ascending: false}
	default:
		return DefaultSort
	}
}

// String formats the sort as "<field>.<asc|desc>".
func (s Sort) String() string {
	if s.Ascending {
		return s.Field + ".asc"
	}
	return s.Field + ".desc"
}

func isSortField(field string) bool {
	for _, f := range SortFields {
		if f == field {
			return true
		}
	}
	return false
}

// ListResult is one page of yachts plus the exact number of matching rows.
type ListResult struct {
	Yachts []Yacht
	Total  int
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPagination computes pagination for q given the total row count.
func NewPagination(q ListQuery, total int) Pagination {
	if total < 0 {
		total = 0
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	totalPages := (total + limit - 1) / limit
	return Pagination{
		Page:       q.Page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    q.Page < totalPages,
		HasPrev:    q.Page > 1,
	}
}

// PoolQuery selects candidate yachts for a quiz.
type PoolQuery struct {
	Limit     int
	MinLength *int
	MaxLength *int
}

// ParsePoolQuery reads integer length bounds from URL parameters. Fractions
// are truncated and non-numeric values ignored.
func ParsePoolQuery(values url.Values) PoolQuery {
	return PoolQuery{
		Limit:     DefaultPoolSize,
		MinLength: optionalInt(values.Get("minLength")),
		MaxLength: optionalInt(values.Get("maxLength")),
	}
}

// EffectiveLimit returns Limit or DefaultPoolSize when unset.
func (p PoolQuery) EffectiveLimit() int {
	if p.Limit <= 0 {
		return DefaultPoolSize
	}
	return p.Limit
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func optionalFloat(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func optionalInt(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return &n
	}
	// "30.5" reads as 30
	f := optionalFloat(raw)
	if f == nil {
		return nil
	}
	n := int(math.Trunc(*f))
	return &n
}

func optionalString(values url.Values, key string) *string {
	if _, ok := values[key]; !ok {
		return nil
	}
	v := values.Get(key)
	if v == "" {
		return nil
	}
	return &v
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern builds a case-insensitive LIKE pattern that matches s
// literally anywhere in a value. Wildcards in s are escaped.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
