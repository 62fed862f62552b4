package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/export"
	"github.com/pavelanni/exampaper/internal/i18n"
	"github.com/pavelanni/exampaper/internal/model"
	"github.com/pavelanni/exampaper/internal/question"
	"github.com/pavelanni/exampaper/internal/store"
)

// exportRequest carries either inline questions or IDs of stored ones.
// Template names a saved template or built-in preset; Config is merged
// over it.
type exportRequest struct {
	Questions   []question.Raw              `json:"questions" validate:"required_without=QuestionIDs,max=2000"`
	QuestionIDs []string                    `json:"questionIds" validate:"max=2000,dive,required"`
	Template    string                      `json:"template" validate:"max=64"`
	Config      *config.ExportConfiguration `json:"config"`
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req exportRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	name := req.Template
	if name == "" {
		name = h.config.DefaultTemplate
	}
	var base *config.ExportConfiguration
	if name != "" {
		base, err = h.resolveTemplate(name)
		if errors.Is(err, store.ErrTemplateNotFound) {
			writeError(w, http.StatusBadRequest, "unknown template: "+name)
			return
		}
		if err != nil {
			slog.Error("failed to resolve template", "name", name, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	var questions []model.QuestionRecord
	if len(req.QuestionIDs) > 0 {
		var missing []string
		questions, missing, err = h.storedQuestions(req.QuestionIDs)
		if err != nil {
			slog.Error("failed to load questions", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if len(missing) > 0 {
			writeError(w, http.StatusNotFound, "questions not found: "+strings.Join(missing, ", "))
			return
		}
	} else {
		questions = question.NormalizeAll(req.Questions)
	}

	// The font is a server path; callers cannot choose it.
	cfg := config.Merge(config.Merge(base, req.Config), &config.ExportConfiguration{
		Typography: &config.TypographyConfig{FontFile: config.String(h.config.FontFile)},
	})

	res := export.Run(r.Context(), export.Request{
		Format:          format,
		Questions:       questions,
		Config:          cfg,
		Catalog:         i18n.FromContext(r.Context()),
		Fetcher:         h.fetcher,
		PrefetchWorkers: h.config.PrefetchWorkers,
	})
	if !res.Success {
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}

	disposition := "attachment"
	if r.URL.Query().Get("preview") == "1" {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": res.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Export-Call-Id", res.CallID)
	w.Header().Set("X-Export-Questions", strconv.Itoa(res.Questions))
	if res.Pages > 0 {
		w.Header().Set("X-Export-Pages", strconv.Itoa(res.Pages))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		slog.Warn("failed to write export", "call_id", res.CallID, "error", err)
	}
}

// storedQuestions loads questions by ID in the requested order and reports
// the IDs that do not exist.
func (h *Handler) storedQuestions(ids []string) ([]model.QuestionRecord, []string, error) {
	found, err := h.store.ListQuestions(store.QuestionFilter{IDs: ids})
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]model.QuestionRecord, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	var (
		out     = make([]model.QuestionRecord, 0, len(ids))
		missing []string
	)
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, q)
	}
	return out, missing, nil
}
