// Package httpapi serves the JSON catalog and quiz API under /api.
package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/yachtvault/yachtvault/internal/catalog"
	"github.com/yachtvault/yachtvault/internal/logging"
	"github.com/yachtvault/yachtvault/internal/quiz"
)

const (
	// ServiceName is reported by the health endpoint.
	ServiceName = "yacht-backend-api"
	// Version is reported by the health endpoint.
	Version = "1.0.0"
)

// Response messages. Store errors are logged and never echoed to clients.
const (
	msgNotConfigured   = "Database connection not configured."
	msgListFailed      = "Failed to fetch yachts from database"
	msgBuildersFailed  = "Failed to fetch builders from database"
	msgYachtNotFound   = "Yacht not found."
	msgYachtIDRequired = "Yacht ID is required."
	msgQuizFailed      = "Failed to generate quiz question"
	msgInternal        = "Internal server error"
	msgNotFound        = "Not found"
	msgMethod          = "Method not allowed"
)

// Handler serves the API routes.
type Handler struct {
	store  catalog.Store
	quiz   *quiz.Generator
	logger *logging.Logger
	now    func() time.Time
}

// New creates an API handler. A nil generator is built from store.
func New(store catalog.Store, gen *quiz.Generator, logger *logging.Logger) *Handler {
	if gen == nil {
		gen = quiz.NewGenerator(store)
	}
	return &Handler{store: store, quiz: gen, logger: logger, now: time.Now}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/yachts", h.handleListYachts).Methods(http.MethodGet)
	api.HandleFunc("/yachts/builders", h.handleBuilders).Methods(http.MethodGet)
	api.HandleFunc("/yachts/", h.handleYachtIDRequired).Methods(http.MethodGet)
	api.HandleFunc("/yachts/{id}", h.handleGetYacht).Methods(http.MethodGet)
	api.HandleFunc("/quiz", h.handleQuiz).Methods(http.MethodGet)
	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, msgNotFound)
	})
	api.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, msgMethod)
	})
}

// =============================================================================
// Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Service:   ServiceName,
		Version:   Version,
	})
}

func (h *Handler) handleListYachts(w http.ResponseWriter, r *http.Request) {
	q := catalog.ParseListQuery(r.URL.Query())

	res, err := h.store.ListYachts(r.Context(), q)
	if err != nil {
		h.storeError(w, r, "list_yachts", err, msgListFailed)
		return
	}

	yachts := res.Yachts
	if yachts == nil {
		yachts = []catalog.Yacht{}
	}
	WriteJSON(w, http.StatusOK, ListResponse{
		Success:    true,
		Data:       yachts,
		Pagination: catalog.NewPagination(q, res.Total),
		Filters:    q.Echo,
	})
}

func (h *Handler) handleBuilders(w http.ResponseWriter, r *http.Request) {
	builders, err := h.store.DistinctBuilders(r.Context())
	if err != nil {
		h.storeError(w, r, "distinct_builders", err, msgBuildersFailed)
		return
	}
	if builders == nil {
		builders = []string{}
	}
	WriteSuccess(w, builders)
}

func (h *Handler) handleYachtIDRequired(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusBadRequest, msgYachtIDRequired)
}

func (h *Handler) handleGetYacht(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		h.handleYachtIDRequired(w, r)
		return
	}

	y, err := h.store.GetYacht(r.Context(), id)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		WriteError(w, http.StatusNotFound, msgYachtNotFound)
		return
	case err != nil:
		h.storeError(w, r, "get_yacht", err, msgInternal)
		return
	}
	WriteSuccess(w, y)
}

func (h *Handler) handleQuiz(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	pool := catalog.ParsePoolQuery(values)

	questions, err := h.quiz.Generate(r.Context(), quiz.Request{
		Type:      quiz.ParseType(values.Get("type")),
		MinLength: pool.MinLength,
		MaxLength: pool.MaxLength,
	})
	if err != nil {
		h.storeError(w, r, "generate_quiz", err, msgQuizFailed)
		return
	}

	WriteJSON(w, http.StatusOK, QuizResponse{Success: true, Questions: questions})
}

// storeError logs err and writes a 500 carrying msg, or the not-configured
// message when the store has no database.
func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, op string, err error, msg string) {
	if errors.Is(err, catalog.ErrNotConfigured) {
		h.logger.WithContext(r.Context()).WithField("operation", op).Warn("catalog store not configured")
		WriteError(w, http.StatusInternalServerError, msgNotConfigured)
		return
	}
	h.logger.WithContext(r.Context()).
		WithError(err).
		WithField("operation", op).
		WithField("query", r.URL.RawQuery).
		Error("api request failed")
	WriteError(w, http.StatusInternalServerError, msg)
}
