package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tasktrack/tasktrack-go/internal/crypto"
)

// CookieName is the cookie carrying the session token.
const CookieName = "access_token"

type contextKey string

const userIDKey contextKey = "userID"

// CookieAuth returns middleware that resolves the session cookie to a user ID.
// Missing, malformed, forged and expired tokens all get 401.
func CookieAuth(tokens *crypto.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				writeJSONError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			claims, err := tokens.Decode(cookie.Value)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}

			userID, err := crypto.ExtractUserID(claims)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Could not validate credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}
