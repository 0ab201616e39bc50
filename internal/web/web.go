// Package web renders the catalog browser and the quiz as server-side HTML.
package web

import (
	"bytes"
	"crypto/rand"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/yachtvault/yachtvault/internal/catalog"
	"github.com/yachtvault/yachtvault/internal/logging"
	"github.com/yachtvault/yachtvault/internal/quiz"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// List page defaults.
const (
	DefaultListSort  = "year_built.desc"
	DefaultListLimit = 12
	byNameLimit      = 10
)

const (
	msgNotConfigured = "Database connection not configured."
	msgFetchYachts   = "Failed to fetch yachts."
	msgFetchYacht    = "Failed to fetch yacht data."
)

// Options configure the web handler.
type Options struct {
	// SessionSecret signs quiz cookies. A random secret is generated when
	// empty, so sessions do not survive a restart.
	SessionSecret []byte
	SessionTTL    time.Duration
	SecureCookies bool
}

// Handler serves the HTML pages.
type Handler struct {
	store    catalog.Store
	quiz     *quiz.Generator
	logger   *logging.Logger
	sessions *SessionCodec
	pages    map[string]*template.Template
}

// New parses the embedded templates and creates a handler.
func New(store catalog.Store, gen *quiz.Generator, logger *logging.Logger, opts Options) (*Handler, error) {
	secret := opts.SessionSecret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		logger.Warn("QUIZ_SESSION_SECRET not set; using a random secret")
	}
	sessions, err := NewSessionCodec(secret, opts.SessionTTL, opts.SecureCookies)
	if err != nil {
		return nil, err
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	if gen == nil {
		gen = quiz.NewGenerator(store)
	}
	return &Handler{store: store, quiz: gen, logger: logger, sessions: sessions, pages: pages}, nil
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"list", "detail", "quiz", "message"} {
		t, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// Register mounts the page routes on r.
func (h *Handler) Register(r *mux.Router) {
	static, _ := fs.Sub(staticFS, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.HandleFunc("/", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/yacht/by-name/{name}", h.handleByName).Methods(http.MethodGet)
	r.HandleFunc("/yacht/{id}", h.handleDetail).Methods(http.MethodGet)
	r.HandleFunc("/quiz", h.handleQuiz).Methods(http.MethodGet)
	r.HandleFunc("/quiz/answer", h.handleAnswer).Methods(http.MethodPost)
	r.HandleFunc("/quiz/next", h.handleNext).Methods(http.MethodPost)
	r.HandleFunc("/quiz/reset", h.handleReset).Methods(http.MethodGet)
}

// NotFound renders the generic not-found page.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderMessage(w, r, http.StatusNotFound, "Page Not Found", "The page you are looking for does not exist.")
}

type pageData struct {
	Title  string
	Active string
	Data   any
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.WithContext(r.Context()).WithError(err).WithField("page", page).Error("render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type messageView struct {
	Heading string
	Text    string
}

func (h *Handler) renderMessage(w http.ResponseWriter, r *http.Request, status int, heading, text string) {
	h.render(w, r, status, "message", pageData{Title: heading, Data: messageView{Heading: heading, Text: text}})
}

func (h *Handler) yachtNotFound(w http.ResponseWriter, r *http.Request) {
	h.renderMessage(w, r, http.StatusNotFound, "Yacht Not Found",
		"The yacht you are looking for does not exist or is no longer available.")
}

func (h *Handler) storeFailure(w http.ResponseWriter, r *http.Request, op string, err error, msg string) {
	if errors.Is(err, catalog.ErrNotConfigured) {
		msg = msgNotConfigured
	} else {
		h.logger.WithContext(r.Context()).WithError(err).WithField("operation", op).Error("page load failed")
	}
	h.renderMessage(w, r, http.StatusInternalServerError, "Error", msg)
}

// =============================================================================
// Catalog pages
// =============================================================================

type listView struct {
	Search    string
	MinLength string
	MaxLength string
	Builder   string
	SortBy    string
	Limit     int

	Builders    []string
	SortOptions []SortOption
	Yachts      []catalog.Yacht
	Pagination  catalog.Pagination
	Pages       []PageItem
	FirstURL    string
	PrevURL     string
	NextURL     string
	LastURL     string
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	params := r.URL.Query()
	if params.Get("sortBy") == "" {
		params.Set("sortBy", DefaultListSort)
	}
	if params.Get("limit") == "" {
		params.Set("limit", strconv.Itoa(DefaultListLimit))
	}
	q := catalog.ParseListQuery(params)

	var (
		res      catalog.ListResult
		builders []string
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		res, err = h.store.ListYachts(ctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		builders, err = h.store.DistinctBuilders(ctx)
		if err != nil && !errors.Is(err, catalog.ErrNotConfigured) {
			// the filter dropdown degrades to empty
			h.logger.WithContext(ctx).WithError(err).Warn("builders lookup failed")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		h.storeFailure(w, r, "list_yachts", err, msgFetchYachts)
		return
	}

	p := catalog.NewPagination(q, res.Total)
	pages := PageItems(p.Page, p.TotalPages)
	for i := range pages {
		if !pages[i].Gap {
			pages[i].URL = listURL(values, "page", strconv.Itoa(pages[i].Number))
		}
	}

	view := listView{
		Search:      values.Get("search"),
		MinLength:   values.Get("minLength"),
		MaxLength:   values.Get("maxLength"),
		Builder:     values.Get("builder"),
		SortBy:      q.SortBy,
		Limit:       q.Limit,
		Builders:    builders,
		SortOptions: SortOptions,
		Yachts:      res.Yachts,
		Pagination:  p,
		Pages:       pages,
	}
	if p.TotalPages > 1 {
		view.FirstURL = listURL(values, "page", "1")
		view.LastURL = listURL(values, "page", strconv.Itoa(p.TotalPages))
	}
	if p.HasPrev {
		view.PrevURL = listURL(values, "page", strconv.Itoa(p.Page-1))
	}
	if p.HasNext {
		view.NextURL = listURL(values, "page", strconv.Itoa(p.Page+1))
	}

	h.render(w, r, http.StatusOK, "list", pageData{Title: "Yacht Collection", Active: "list", Data: view})
}

type detailView struct {
	Yacht    catalog.Yacht
	Name     string
	Carousel Carousel
}

func (h *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		h.yachtNotFound(w, r)
		return
	}

	y, err := h.store.GetYacht(r.Context(), id)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		h.yachtNotFound(w, r)
		return
	case err != nil:
		h.storeFailure(w, r, "get_yacht", err, msgFetchYacht)
		return
	}

	index, _ := strconv.Atoi(r.URL.Query().Get("img"))
	view := detailView{
		Yacht:    y,
		Name:     y.DisplayName(),
		Carousel: NewCarousel(y.Pictures(), index),
	}
	h.render(w, r, http.StatusOK, "detail", pageData{Title: view.Name, Active: "list", Data: view})
}

// handleByName redirects to the yacht whose name matches, preferring an
// exact case-insensitive match over the first search hit.
func (h *Handler) handleByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(mux.Vars(r)["name"])
	if name == "" {
		h.yachtNotFound(w, r)
		return
	}

	q := catalog.ListQuery{Page: 1, Limit: byNameLimit, Search: name, SortBy: catalog.DefaultSortBy}
	res, err := h.store.ListYachts(r.Context(), q)
	if err != nil {
		h.storeFailure(w, r, "find_by_name", err, msgFetchYacht)
		return
	}
	if len(res.Yachts) == 0 {
		h.yachtNotFound(w, r)
		return
	}

	match := res.Yachts[0]
	for _, y := range res.Yachts {
		if strings.EqualFold(y.DisplayName(), name) {
			match = y
			break
		}
	}
	http.Redirect(w, r, yachtURL(match.ID), http.StatusFound)
}
