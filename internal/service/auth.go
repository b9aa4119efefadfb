package service

// AUTHENTICATION:
// AuthService sits between the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/auth"
	"github.com/sakif/mymume/internal/model"
	"github.com/sakif/mymume/internal/repository"
)

// AuthService handles the authentication business logic.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginOrRegisterGoogle handles the OAuth callback after the handler has
// exchanged the code for a Google profile.
//
// The Google subject is stable, so we always upsert on it: first login
// inserts, later logins refresh email, name and picture. Cookies and
// redirects stay in the handler.
func (s *AuthService) LoginOrRegisterGoogle(ctx context.Context, gUser *auth.GoogleUser) (*AuthResult, error) {
	if gUser == nil {
		return nil, fmt.Errorf("service/auth: Google user must not be nil")
	}

	user := &model.User{
		Subject: gUser.Subject(),
		Email:   gUser.Email,
		Name:    gUser.Name,
		Image:   gUser.Picture,
	}
	return s.login(ctx, user, "google")
}

// DevLogin signs in by email alone. It is only routed when auth.dev_login is
// enabled and exists for local development and end-to-end tests.
func (s *AuthService) DevLogin(ctx context.Context, email, name string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "A valid email is required")
	}
	if strings.TrimSpace(name) == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	user := &model.User{
		Subject: "dev:" + email,
		Email:   email,
		Name:    strings.TrimSpace(name),
	}
	return s.login(ctx, user, "dev")
}

func (s *AuthService) login(ctx context.Context, user *model.User, provider string) (*AuthResult, error) {
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (subject=%s): %w", user.Subject, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.String("provider", provider),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{
		User:  user,
		Token: token,
	}, nil
}

// GetUserByID backs /api/me once the middleware has put the ID in the context.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}
