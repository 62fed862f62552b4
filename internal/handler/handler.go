package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/exampaper/internal/imagecache"
	"github.com/pavelanni/exampaper/internal/model"
	"github.com/pavelanni/exampaper/internal/store"
)

// Config holds the server-side export settings.
type Config struct {
	// DefaultTemplate is applied when an export request names none.
	DefaultTemplate string
	// ImageBaseDir confines relative image paths; ImageBaseURL is tried when
	// a relative path is not found there.
	ImageBaseDir    string
	ImageBaseURL    string
	ImageTimeout    time.Duration
	// FontFile is the TrueType font used for PDF output.
	FontFile        string
	PrefetchWorkers int
	MaxUploadBytes  int64
}

const (
	defaultMaxUpload    = 10 << 20
	defaultImageTimeout = 10 * time.Second
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	config   Config
	fetcher  imagecache.Fetcher
	validate *validator.Validate
	trans    ut.Translator
}

// New creates a new Handler.
func New(s *store.Store, cfg Config) (*Handler, error) {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.ImageTimeout <= 0 {
		cfg.ImageTimeout = defaultImageTimeout
	}
	v, trans := newValidator()
	return &Handler{
		store:    s,
		config:   cfg,
		fetcher:  imagecache.NewHTTPFetcher(cfg.ImageBaseDir, cfg.ImageBaseURL, cfg.ImageTimeout),
		validate: v,
		trans:    trans,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/api/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/api/logout", h.handleLogout)

		r.Get("/api/questions", h.handleListQuestions)
		r.Post("/api/questions/import", h.handleImportQuestions)
		r.Get("/api/questions/{id}", h.handleGetQuestion)
		r.Delete("/api/questions/{id}", h.handleDeleteQuestion)
		r.Get("/api/subjects", h.handleListSubjects)

		r.Get("/api/presets", h.handleListPresets)
		r.Get("/api/templates", h.handleListTemplates)
		r.Get("/api/templates/{name}", h.handleGetTemplate)
		r.Put("/api/templates/{name}", h.handleSaveTemplate)
		r.Delete("/api/templates/{name}", h.handleDeleteTemplate)

		r.Post("/api/export/{format}", h.handleExport)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/api/users", h.handleListUsers)
			r.Post("/api/users", h.handleCreateUser)
			r.Patch("/api/users/{userID}", h.handleUpdateUser)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a JSON body into dst and validates it. On failure the
// response has been written and false is returned.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: h.translateErrors(err)})
		return false
	}
	return true
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.QuestionCount()
	if err != nil {
		slog.Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "questions": count})
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.QuestionFilter{
		Subject:    q.Get("subject"),
		Difficulty: model.Difficulty(q.Get("difficulty")),
	}
	if t := q.Get("type"); t != "" {
		typ, ok := model.ParseType(t)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown question type: "+t)
			return
		}
		f.Type = typ
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}
	questions, err := h.store.ListQuestions(f)
	if err != nil {
		slog.Error("failed to list questions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]model.QuestionExport, len(questions))
	for i, q := range questions {
		out[i] = model.NewQuestionExport(q)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.store.GetQuestion(chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}
	if err != nil {
		slog.Error("failed to get question", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, model.NewQuestionExport(q))
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.DeleteQuestion(chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("failed to delete question", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.store.ListSubjects()
	if err != nil {
		slog.Error("failed to list subjects", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if subjects == nil {
		subjects = []string{}
	}
	writeJSON(w, http.StatusOK, subjects)
}
