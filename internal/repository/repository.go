// Package repository declares the storage interfaces the services depend on.
// Implementations live in subpackages (see sqldb).
package repository

import (
	"context"

	"github.com/sakif/mymume/internal/model"
)

// PublicFeedLimit is how many profiles the discovery feed returns.
const PublicFeedLimit = 20

type UserRepository interface {
	// Upsert creates the user on first login and refreshes identity fields
	// (email, name, image) afterwards. Subject is the lookup key; ID and
	// timestamps are filled in on return.
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// UpdateProfile applies the non-nil fields of upd and returns the
	// updated user. Fields are written as given; last write wins.
	UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error)
	// ResetProfile clears every profile field except the avatar seed.
	ResetProfile(ctx context.Context, id string) error
	// ListPublicProfiles returns analyzed profiles other than viewerID, most
	// recently updated first, with viewerID's connection status toward each.
	ListPublicProfiles(ctx context.Context, viewerID string, limit int) ([]model.PublicProfile, error)
}

type ConnectionRepository interface {
	// UpsertConnection records status for the ordered pair, replacing any
	// earlier status. There is at most one row per pair.
	UpsertConnection(ctx context.Context, senderID, receiverID string, status model.ConnectionStatus) (*model.Connection, error)
	// GetConnection returns apperror.ErrNotFound when the pair has no row.
	GetConnection(ctx context.Context, senderID, receiverID string) (*model.Connection, error)
}
