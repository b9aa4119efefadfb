package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/mymume/internal/analyzer"
	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/model"
	"github.com/sakif/mymume/internal/repository"
)

// Analyzer turns a corpus into an identity. *analyzer.Analyzer implements it.
type Analyzer interface {
	Analyze(ctx context.Context, corpus string) (*analyzer.Result, error)
}

// IdentityService runs the stored corpus through the analyzer and stores the
// result, replacing any earlier one.
type IdentityService struct {
	users    repository.UserRepository
	analyzer Analyzer
	logger   *slog.Logger
}

func NewIdentityService(users repository.UserRepository, a Analyzer, logger *slog.Logger) *IdentityService {
	return &IdentityService{users: users, analyzer: a, logger: logger}
}

// AnalyzeIdentity returns NotFound when the user has no stored corpus, and
// NotAPlaylist or Upstream errors from the analyzer unchanged.
func (s *IdentityService) AnalyzeIdentity(ctx context.Context, userID string) (*analyzer.Result, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/identity: loading %s: %w", userID, err)
	}
	if strings.TrimSpace(user.PlaylistText) == "" {
		return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "No text playlist found"}
	}

	res, err := s.analyzer.Analyze(ctx, user.PlaylistText)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.UpdateProfile(ctx, userID, model.ProfileUpdate{MusicIdentity: &res.Text}); err != nil {
		return nil, fmt.Errorf("service/identity: storing identity for %s: %w", userID, err)
	}

	s.logger.Info("identity analyzed",
		slog.String("userID", userID),
		slog.Int("categories", len(res.Categories)),
	)
	return res, nil
}
