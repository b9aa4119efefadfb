package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/auth"
	"github.com/sakif/mymume/internal/handler"
	"github.com/sakif/mymume/internal/model"
	"github.com/sakif/mymume/internal/service"
)

type MockProvider struct {
	User        *auth.GoogleUser
	ExchangeErr error
	Code        string
}

func (m *MockProvider) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (m *MockProvider) Exchange(ctx context.Context, code string) (*auth.GoogleUser, error) {
	m.Code = code
	return m.User, m.ExchangeErr
}

type MockAuthService struct {
	User      *model.User
	ReturnErr error
	Email     string
}

func (m *MockAuthService) LoginOrRegisterGoogle(ctx context.Context, g *auth.GoogleUser) (*service.AuthResult, error) {
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return &service.AuthResult{User: m.User, Token: "jwt-for-" + g.Sub}, nil
}

func (m *MockAuthService) DevLogin(ctx context.Context, email, name string) (*service.AuthResult, error) {
	m.Email = email
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return &service.AuthResult{User: m.User, Token: "dev-jwt"}, nil
}

func (m *MockAuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return m.User, m.ReturnErr
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

var cookieOpts = handler.CookieOptions{MaxAge: time.Hour}

func TestAuthHandler_LoginSetsState(t *testing.T) {
	h := handler.NewAuthHandler(&MockProvider{}, &MockAuthService{}, cookieOpts, quietLogger())

	rr := httptest.NewRecorder()
	h.HandleGoogleLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	state := cookieNamed(rr, "oauth_state")
	require.NotNil(t, state)
	assert.True(t, state.HttpOnly)
	assert.Contains(t, rr.Header().Get("Location"), "state="+state.Value)
}

func TestAuthHandler_LoginWithoutProvider(t *testing.T) {
	h := handler.NewAuthHandler(nil, &MockAuthService{}, cookieOpts, quietLogger())

	rr := httptest.NewRecorder()
	h.HandleGoogleLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAuthHandler_Callback(t *testing.T) {
	callback := func(query string, stateCookie string, p *MockProvider, s *MockAuthService) *httptest.ResponseRecorder {
		h := handler.NewAuthHandler(p, s, cookieOpts, quietLogger())
		req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+query, nil)
		if stateCookie != "" {
			req.AddCookie(&http.Cookie{Name: "oauth_state", Value: stateCookie})
		}
		rr := httptest.NewRecorder()
		h.HandleGoogleCallback(rr, req)
		return rr
	}

	t.Run("success sets the session cookie", func(t *testing.T) {
		p := &MockProvider{User: &auth.GoogleUser{Sub: "42"}}
		rr := callback("code=abc&state=s1", "s1", p, &MockAuthService{User: &model.User{ID: "u1"}})

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"))
		assert.Equal(t, "abc", p.Code)

		session := cookieNamed(rr, auth.CookieName)
		require.NotNil(t, session)
		assert.Equal(t, "jwt-for-42", session.Value)
		assert.True(t, session.HttpOnly)
		assert.Equal(t, 3600, session.MaxAge)
	})

	t.Run("state mismatch", func(t *testing.T) {
		rr := callback("code=abc&state=evil", "s1", &MockProvider{}, &MockAuthService{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing state cookie", func(t *testing.T) {
		rr := callback("code=abc&state=s1", "", &MockProvider{}, &MockAuthService{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("user denied", func(t *testing.T) {
		rr := callback("error=access_denied&state=s1", "s1", &MockProvider{}, &MockAuthService{})
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/?auth=denied", rr.Header().Get("Location"))
	})

	t.Run("exchange failure", func(t *testing.T) {
		rr := callback("code=abc&state=s1", "s1", &MockProvider{ExchangeErr: errors.New("bad code")}, &MockAuthService{})
		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Nil(t, cookieNamed(rr, auth.CookieName))
	})
}

func TestAuthHandler_DevLogin(t *testing.T) {
	s := &MockAuthService{User: &model.User{ID: "u1", Email: "dev@example.com"}}
	h := handler.NewAuthHandler(nil, s, cookieOpts, quietLogger())

	rr := httptest.NewRecorder()
	h.HandleDevLogin(rr, httptest.NewRequest(http.MethodPost, "/auth/dev/login", strings.NewReader(`{"email":"dev@example.com"}`)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "dev@example.com", s.Email)
	require.NotNil(t, cookieNamed(rr, auth.CookieName))
	assert.Contains(t, rr.Body.String(), `"id":"u1"`)

	s.ReturnErr = apperror.ValidationFailed("email", "A valid email is required")
	rr = httptest.NewRecorder()
	h.HandleDevLogin(rr, httptest.NewRequest(http.MethodPost, "/auth/dev/login", strings.NewReader(`{"email":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthHandler_LogoutAndMe(t *testing.T) {
	s := &MockAuthService{User: &model.User{ID: "u1", Subject: "google:42", Name: "Ada"}}
	h := handler.NewAuthHandler(nil, s, cookieOpts, quietLogger())

	rr := httptest.NewRecorder()
	h.HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	session := cookieNamed(rr, auth.CookieName)
	require.NotNil(t, session)
	assert.Equal(t, -1, session.MaxAge)

	rr = httptest.NewRecorder()
	h.HandleMe(rr, authed(http.MethodGet, "/api/me", "", "u1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"Ada"`)
	assert.NotContains(t, rr.Body.String(), "google:42", "subject is never exposed")
}
