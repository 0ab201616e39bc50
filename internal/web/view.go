package web

import (
	"html/template"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/yachtvault/yachtvault/internal/catalog"
)

// PaginationWindow is the number of pages shown on each side of the current
// page.
const PaginationWindow = 2

// PageItem is one entry of the pagination bar. Gap items render as "...".
type PageItem struct {
	Number  int
	Gap     bool
	Current bool
	URL     string
}

// PageItems returns the pagination bar for page out of totalPages: the first
// and last pages, a window around the current page and gaps in between. A
// single page yields no items.
func PageItems(page, totalPages int) []PageItem {
	if totalPages <= 1 {
		return nil
	}

	items := []PageItem{{Number: 1, Current: page == 1}}
	if page > PaginationWindow+2 {
		items = append(items, PageItem{Gap: true})
	}
	start := max(2, page-PaginationWindow)
	end := min(totalPages-1, page+PaginationWindow)
	for i := start; i <= end; i++ {
		items = append(items, PageItem{Number: i, Current: i == page})
	}
	if page < totalPages-PaginationWindow-1 {
		items = append(items, PageItem{Gap: true})
	}
	items = append(items, PageItem{Number: totalPages, Current: page == totalPages})
	return items
}

// Carousel is the state of an image carousel positioned at Index.
type Carousel struct {
	Images  []string
	Index   int
	Prev    int
	Next    int
	Current string
}

// NewCarousel positions a carousel over images at index, wrapping out of
// range values. An empty image list yields an empty carousel.
func NewCarousel(images []string, index int) Carousel {
	n := len(images)
	if n == 0 {
		return Carousel{}
	}
	index = ((index % n) + n) % n
	return Carousel{
		Images:  images,
		Index:   index,
		Prev:    (index - 1 + n) % n,
		Next:    (index + 1) % n,
		Current: images[index],
	}
}

// Count returns the number of images.
func (c Carousel) Count() int { return len(c.Images) }

// Position returns the one-based index for display.
func (c Carousel) Position() int { return c.Index + 1 }

// SortOption is one entry of the sort selector.
type SortOption struct {
	Value string
	Label string
}

// SortOptions lists the orderings offered on the list page.
var SortOptions = []SortOption{
	{"length_m.desc", "Length (High to Low)"},
	{"length_m.asc", "Length (Low to High)"},
	{"year_built.desc", "Year (Newest First)"},
	{"year_built.asc", "Year (Oldest First)"},
	{"max_speed_kn.desc", "Max Speed (Fastest First)"},
	{"volume_gt.desc", "Volume (Largest First)"},
}

// listURL returns the list page URL for values with key set to value. An
// empty value removes the key.
func listURL(values url.Values, key, value string) string {
	next := url.Values{}
	for k, v := range values {
		next[k] = append([]string(nil), v...)
	}
	if value == "" {
		next.Del(key)
	} else {
		next.Set(key, value)
	}
	if len(next) == 0 {
		return "/"
	}
	return "/?" + next.Encode()
}

// yachtURL returns the detail page path of a yacht.
func yachtURL(id string) string {
	return "/yacht/" + url.PathEscape(id)
}

// =============================================================================
// Formatting
// =============================================================================

var templateFuncs = template.FuncMap{
	"float":    formatFloat,
	"int":      formatInt,
	"number":   formatNumber,
	"str":      formatString,
	"yachtURL": yachtURL,
	"firstPic": firstPicture,
	"percent":  func(f float64) string { return strconv.Itoa(int(math.Round(f))) },
}

// placeholderImage is served when a yacht has no pictures.
const placeholderImage = "/static/placeholder.svg"

func firstPicture(y catalog.Yacht) string {
	if pics := y.Pictures(); len(pics) > 0 && pics[0] != "" {
		return pics[0]
	}
	return placeholderImage
}

func formatFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(i *int) string {
	if i == nil {
		return "-"
	}
	return strconv.Itoa(*i)
}

func formatString(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// formatNumber renders f with thousands separators and at most two
// decimals: 1234567.5 reads "1,234,567.5".
func formatNumber(f *float64) string {
	if f == nil {
		return "-"
	}
	v := *f
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	raw := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	whole, frac, _ := strings.Cut(raw, ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
