package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-chi/chi/v5"
	"github.com/pavelanni/exampaper/internal/model"
)

type createUserRequest struct {
	Username    string         `json:"username" validate:"required,min=3,max=64"`
	DisplayName string         `json:"displayName" validate:"max=128"`
	Password    string         `json:"password" validate:"required,min=8,max=128"`
	Role        model.UserRole `json:"role" validate:"omitempty,oneof=admin editor"`
}

type updateUserRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		slog.Error("failed to list users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	existing, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}
	if req.Role == "" {
		req.Role = model.UserRoleEditor
	}

	id, err := h.store.CreateUser(model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	user, err := h.store.GetUserByID(id)
	if err != nil || user == nil {
		slog.Error("failed to reload user", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	var req updateUserRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByID(id)
	if err != nil {
		slog.Error("failed to get user", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if self := model.UserFromContext(r.Context()); self != nil && self.ID == id && !*req.Active {
		writeError(w, http.StatusBadRequest, "cannot deactivate yourself")
		return
	}

	if err := h.store.SetUserActive(id, *req.Active); err != nil {
		slog.Error("failed to update user", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	user.Active = *req.Active
	slog.Info("updated user", "id", id, "active", user.Active)
	writeJSON(w, http.StatusOK, user)
}

// handleImportQuestions accepts a multipart upload in the "questions_file"
// field or a raw JSON body named by the "source" query parameter.
func (h *Handler) handleImportQuestions(w http.ResponseWriter, r *http.Request) {
	var (
		source string
		data   []byte
		err    error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.config.MaxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "file too large")
			return
		}
		file, header, err := r.FormFile("questions_file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "no file uploaded")
			return
		}
		defer file.Close()
		source = header.Filename
		data, err = io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read file")
			return
		}
	} else {
		source = r.URL.Query().Get("source")
		if source == "" {
			writeError(w, http.StatusBadRequest, "source query parameter required")
			return
		}
		data, err = io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, "body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}
	}

	res, err := h.store.ImportQuestions(source, data)
	if err != nil {
		slog.Error("failed to import questions", "source", source, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Info("imported questions via API", "source", source, "count", res.Imported, "unchanged", res.Unchanged)
	writeJSON(w, http.StatusOK, res)
}
