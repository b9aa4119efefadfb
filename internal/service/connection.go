package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/ingest"
	"github.com/sakif/mymume/internal/model"
	"github.com/sakif/mymume/internal/repository"
)

// ConnectionService records compatibility-test outcomes and gates access to
// another user's songs on them.
type ConnectionService struct {
	users       repository.UserRepository
	connections repository.ConnectionRepository
	logger      *slog.Logger
}

func NewConnectionService(users repository.UserRepository, connections repository.ConnectionRepository, logger *slog.Logger) *ConnectionService {
	return &ConnectionService{users: users, connections: connections, logger: logger}
}

// SetConnection upserts the sender→receiver outcome. The reverse direction is
// never touched.
func (s *ConnectionService) SetConnection(ctx context.Context, senderID, receiverID string, status model.ConnectionStatus) (*model.Connection, error) {
	if receiverID == "" || status == "" {
		return nil, apperror.ValidationFailed("receiverId", "Missing receiverId or status")
	}
	if !status.Valid() {
		return nil, apperror.ValidationFailed("status", "Invalid status")
	}
	if receiverID == senderID {
		return nil, apperror.ValidationFailed("receiverId", "Cannot connect to yourself")
	}
	if _, err := s.users.GetUserByID(ctx, receiverID); err != nil {
		return nil, fmt.Errorf("service/connection: loading receiver: %w", err)
	}

	conn, err := s.connections.UpsertConnection(ctx, senderID, receiverID, status)
	if err != nil {
		return nil, fmt.Errorf("service/connection: saving %s->%s: %w", senderID, receiverID, err)
	}

	s.logger.Info("connection recorded",
		slog.String("sender", senderID),
		slog.String("receiver", receiverID),
		slog.String("status", string(status)),
	)
	return conn, nil
}

// MatchingSongs is the target's nickname and corpus lines.
type MatchingSongs struct {
	Nickname string   `json:"nickname"`
	Songs    []string `json:"songs"`
}

// MatchingSongs returns targetID's songs if viewerID has a positive
// connection toward them.
func (s *ConnectionService) MatchingSongs(ctx context.Context, viewerID, targetID string) (*MatchingSongs, error) {
	if targetID == "" {
		return nil, apperror.ValidationFailed("userId", "Missing userId")
	}

	conn, err := s.connections.GetConnection(ctx, viewerID, targetID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return nil, apperror.Forbidden("Access denied. Mutual match required.")
	case err != nil:
		return nil, fmt.Errorf("service/connection: checking access: %w", err)
	case conn.Status != model.ConnectionPositive:
		return nil, apperror.Forbidden("Access denied. Mutual match required.")
	}

	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "User not found"}
		}
		return nil, fmt.Errorf("service/connection: loading target: %w", err)
	}

	return &MatchingSongs{Nickname: target.Nickname, Songs: ingest.CorpusLines(target.PlaylistText)}, nil
}
