package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/exampaper/internal/config"
	"github.com/pavelanni/exampaper/internal/store"
)

var templateName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,63}$`)

type saveTemplateRequest struct {
	Description string                      `json:"description" validate:"max=256"`
	Config      *config.ExportConfiguration `json:"config" validate:"required"`
}

// resolveTemplate returns the configuration stored under name. Saved
// templates shadow built-in presets of the same name.
func (h *Handler) resolveTemplate(name string) (*config.ExportConfiguration, error) {
	t, err := h.store.GetTemplate(name)
	if err == nil {
		cfg := t.Config
		return &cfg, nil
	}
	if !errors.Is(err, store.ErrTemplateNotFound) {
		return nil, err
	}
	cfg, err := config.Preset(name)
	if errors.Is(err, config.ErrUnknownPreset) {
		return nil, store.ErrTemplateNotFound
	}
	return cfg, err
}

func (h *Handler) handleListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.Presets())
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.ListTemplates()
	if err != nil {
		slog.Error("failed to list templates", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if templates == nil {
		templates = []store.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	t, err := h.store.GetTemplate(name)
	if err == nil {
		writeJSON(w, http.StatusOK, t)
		return
	}
	if !errors.Is(err, store.ErrTemplateNotFound) {
		slog.Error("failed to get template", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	cfg, err := config.Preset(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	writeJSON(w, http.StatusOK, store.Template{Name: name, Description: "built-in preset", Config: *cfg})
}

func (h *Handler) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !templateName.MatchString(name) {
		writeError(w, http.StatusBadRequest, "invalid template name")
		return
	}
	var req saveTemplateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.store.SaveTemplate(store.Template{Name: name, Description: req.Description, Config: *req.Config}); err != nil {
		slog.Error("failed to save template", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	t, err := h.store.GetTemplate(name)
	if err != nil {
		slog.Error("failed to reload template", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("saved template", "name", name)
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.store.DeleteTemplate(name)
	if errors.Is(err, store.ErrTemplateNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete template", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
