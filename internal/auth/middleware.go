package auth

import (
	"context"
	"net/http"
)

// CookieName is the HttpOnly cookie that carries the session JWT.
const CookieName = "token"

// contextKey is unexported so no other package can read or shadow our values.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth reads the JWT from the session cookie, validates it and stores
// the user ID in the request context. Missing or invalid tokens get a JSON
// 401 and the chain stops.
//
// HttpOnly means page scripts cannot read the cookie, so an XSS bug cannot
// steal the session.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"Unauthorized"}` + "\n"))
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// ContextWithUserID returns a copy of ctx carrying userID. Handler tests use
// it to skip the cookie round trip.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns ("", false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
