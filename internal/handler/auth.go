package handler

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tasktrack/tasktrack-go/internal/cache"
	"github.com/tasktrack/tasktrack-go/internal/crypto"
	"github.com/tasktrack/tasktrack-go/internal/middleware"
	"github.com/tasktrack/tasktrack-go/internal/model"
	"github.com/tasktrack/tasktrack-go/internal/service"
)

// AuthHandler handles registration, login and the current user's account.
type AuthHandler struct {
	service      *service.UserService
	tokens       *crypto.TokenService
	loader       *cache.Loader
	secureCookie bool
	log          *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.UserService, tokens *crypto.TokenService, loader *cache.Loader, secureCookie bool, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service:      svc,
		tokens:       tokens,
		loader:       loader,
		secureCookie: secureCookie,
		log:          log,
	}
}

// HandleRegister handles POST /register requests.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailRequired),
			errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrPasswordRequired),
			errors.Is(err, service.ErrPasswordTooLong),
			errors.Is(err, service.ErrDuplicateEmail):
			writeJSON(w, http.StatusBadRequest, detail(err.Error()))
		default:
			h.internalError(w, "register", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleLogin handles POST /login requests. Credentials arrive as an
// OAuth2-style form with the email in the username field.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, detail("invalid form body"))
		return
	}

	user, err := h.service.Authenticate(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrBadCredentials) {
			writeJSON(w, http.StatusBadRequest, detail(err.Error()))
			return
		}
		h.internalError(w, "login", err)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.internalError(w, "issue token", err)
		return
	}

	http.SetCookie(w, h.sessionCookie(token, int(h.tokens.TTL().Seconds())))
	writeJSON(w, http.StatusOK, detail("Login successful"))
}

// HandleLogout handles POST /logout requests.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.clearedCookie())
	writeJSON(w, http.StatusOK, detail("Successfully logged out"))
}

// HandleMe handles GET /users/me requests.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, detail("Not authenticated"))
		return
	}

	resp, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeJSON(w, http.StatusUnauthorized, detail("Not authenticated"))
			return
		}
		h.internalError(w, "get user", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleDeleteMe handles DELETE /users/me requests.
func (h *AuthHandler) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, detail("Not authenticated"))
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeJSON(w, http.StatusUnauthorized, detail("Not authenticated"))
			return
		}
		h.internalError(w, "delete user", err)
		return
	}

	h.loader.Invalidate(r.Context(), listKey(userID))
	http.SetCookie(w, h.clearedCookie())
	writeJSON(w, http.StatusOK, detail("User deleted successfully"))
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *AuthHandler) clearedCookie() *http.Cookie {
	c := h.sessionCookie("", -1)
	c.Expires = time.Unix(0, 0)
	return c
}

func (h *AuthHandler) internalError(w http.ResponseWriter, op string, err error) {
	h.log.Error(op+" failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, detail("internal server error"))
}
