package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/exampaper/internal/model"
	"github.com/pavelanni/exampaper/internal/store"
)

const authRealm = `Basic realm="exampaper"`

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

// requireAuth accepts either a bearer token issued by /api/login or HTTP
// basic credentials.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.authenticate(r)
		if err != nil {
			slog.Error("failed to authenticate request", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if user == nil {
			w.Header().Set("WWW-Authenticate", authRealm)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate returns the active user behind the request credentials, or
// nil when there are none or they are invalid.
func (h *Handler) authenticate(r *http.Request) (*model.User, error) {
	if token, ok := bearerToken(r); ok {
		sess, err := h.store.GetAuthSession(token)
		if err != nil || sess == nil {
			return nil, err
		}
		user, err := h.store.GetUserByID(sess.UserID)
		if err != nil || user == nil || !user.Active {
			return nil, err
		}
		return user, nil
	}
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, nil
	}
	return h.checkPassword(username, password)
}

func (h *Handler) checkPassword(username, password string) (*model.User, error) {
	user, err := h.store.GetUserByUsername(username)
	if err != nil || user == nil || !user.Active {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}
	return user, nil
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	user, err := h.checkPassword(req.Username, req.Password)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		slog.Warn("login failed", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := h.store.CreateAuthSession(user.ID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("user logged in", "username", user.Username)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(store.AuthTokenTTL),
		User:      user,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := bearerToken(r); ok {
		if err := h.store.DeleteAuthSession(token); err != nil {
			slog.Error("failed to delete auth session", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
