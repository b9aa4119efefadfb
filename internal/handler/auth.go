package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/mymume/internal/auth"
	"github.com/sakif/mymume/internal/model"
	"github.com/sakif/mymume/internal/service"
)

const stateCookie = "oauth_state"

// OAuthProvider is the login provider. *auth.GoogleProvider implements it.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// AuthService is the part of *service.AuthService the handlers use.
type AuthService interface {
	LoginOrRegisterGoogle(ctx context.Context, gUser *auth.GoogleUser) (*service.AuthResult, error)
	DevLogin(ctx context.Context, email, name string) (*service.AuthResult, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// CookieOptions controls the session cookie.
type CookieOptions struct {
	MaxAge time.Duration
	// Secure should be true in production (HTTPS only).
	Secure bool
}

// AuthHandler manages the Google login flow and the session cookie.
//
//   - HandleGoogleLogin    → redirect the browser to Google's consent page
//   - HandleGoogleCallback → receive the code, exchange it, issue the JWT cookie
//   - HandleDevLogin       → sign in by email (local development only)
//   - HandleLogout         → clear the JWT cookie
//   - HandleMe             → return the currently logged-in user
type AuthHandler struct {
	provider OAuthProvider
	auth     AuthService
	cookie   CookieOptions
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. provider may be nil when Google
// login is not configured; the login routes then answer 503.
func NewAuthHandler(provider OAuthProvider, authSvc AuthService, cookie CookieOptions, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		auth:     authSvc,
		cookie:   cookie,
		logger:   logger,
	}
}

// HandleGoogleLogin redirects the user to Google.
//
// HTTP: GET /auth/google/login
//
// A random state goes into a short-lived HttpOnly cookie and into the
// authorization URL; the callback checks they match (CSRF protection).
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		http.Error(w, "Google login is not configured", http.StatusServiceUnavailable)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth login flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a Google profile
//  3. Upsert the user and issue a JWT (service layer)
//  4. Set the HttpOnly cookie and redirect to the app
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		http.Error(w, "Google login is not configured", http.StatusServiceUnavailable)
		return
	}

	// --- Step 1: Validate CSRF state ---
	sc, err := r.Cookie(stateCookie)
	if err != nil || sc.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != sc.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for the Google profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	gUser, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: Google exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	// --- Step 3: Upsert user, issue token ---
	result, err := h.auth.LoginOrRegisterGoogle(r.Context(), gUser)
	if err != nil {
		h.logger.Error("auth callback: login failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 4: Cookie + redirect ---
	h.setSession(w, result.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type devLoginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// HandleDevLogin signs in without Google.
//
// HTTP: POST /auth/dev/login {"email": "...", "name": "..."}
//
// Only routed when auth.dev_login is enabled.
func (h *AuthHandler) HandleDevLogin(w http.ResponseWriter, r *http.Request) {
	var req devLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.DevLogin(r.Context(), req.Email, req.Name)
	if err != nil {
		logFailure(h.logger, "dev login failed", err)
		writeError(w, err)
		return
	}

	h.setSession(w, result.Token)
	writeJSON(w, http.StatusOK, result.User)
}

// setSession stores the JWT in an HttpOnly cookie.
// SameSite=Lax: sent on top-level navigations but not on cross-site POSTs.
func (h *AuthHandler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /auth/logout
//
// Logout changes state, so it is a POST. The token itself stays valid until
// it expires; without the cookie the browser just stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user with their profile.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		logFailure(h.logger, "HandleMe: loading user failed", err, slog.String("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// writeUnauthorized covers handlers reached without RequireAuth in front of them.
func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Unauthorized"})
}
