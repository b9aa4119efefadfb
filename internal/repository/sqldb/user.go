package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/model"
	"github.com/sakif/mymume/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, subject, email, name, image,
	nickname, voice_type, musical_attributes, city, country,
	playlist_text, playlist_url, source_type, music_identity, avatar_seed,
	created_at, updated_at`

// Upsert inserts a new user or refreshes the identity fields of an existing
// one, keyed by subject. The stored row is read back into user so the
// caller sees the canonical ID and timestamps.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	ts := now()
	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO users (id, subject, email, name, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subject) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			image = excluded.image,
			updated_at = excluded.updated_at`),
		xid.New().String(), user.Subject, user.Email, user.Name, user.Image, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("sqldb: upserting user %s: %w", user.Subject, err)
	}

	var stored model.User
	err = db.conn.GetContext(ctx, &stored,
		db.conn.Rebind(`SELECT `+userColumns+` FROM users WHERE subject = ?`), user.Subject)
	if err != nil {
		return fmt.Errorf("sqldb: reading back user %s: %w", user.Subject, err)
	}
	*user = stored
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u,
		db.conn.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqldb: getting user %s: %w", id, err)
	}
	return &u, nil
}

// UpdateProfile builds the SET clause from the non-nil fields only, so
// concurrent updates to different fields do not overwrite each other.
func (db *DB) UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if upd.Nickname != nil {
		set("nickname", *upd.Nickname)
	}
	if upd.VoiceType != nil {
		set("voice_type", string(*upd.VoiceType))
	}
	if upd.MusicalAttributes != nil {
		set("musical_attributes", *upd.MusicalAttributes)
	}
	if upd.City != nil {
		set("city", *upd.City)
	}
	if upd.Country != nil {
		set("country", *upd.Country)
	}
	if upd.PlaylistText != nil {
		set("playlist_text", *upd.PlaylistText)
	}
	if upd.PlaylistURL != nil {
		set("playlist_url", *upd.PlaylistURL)
	}
	if upd.SourceType != nil {
		set("source_type", string(*upd.SourceType))
	}
	if upd.MusicIdentity != nil {
		set("music_identity", *upd.MusicIdentity)
	}
	if upd.AvatarSeed != nil {
		set("avatar_seed", *upd.AvatarSeed)
	}
	set("updated_at", now())
	args = append(args, id)

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("sqldb: updating profile %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, apperror.NotFound("user", id)
	}
	return db.GetUserByID(ctx, id)
}

func (db *DB) ResetProfile(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		UPDATE users SET
			nickname = '', voice_type = '', musical_attributes = '',
			city = '', country = '', playlist_url = '', playlist_text = '',
			music_identity = '', source_type = ?, updated_at = ?
		WHERE id = ?`),
		string(model.SourceSpotifyURL), now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqldb: resetting profile %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func (db *DB) ListPublicProfiles(ctx context.Context, viewerID string, limit int) ([]model.PublicProfile, error) {
	if limit <= 0 {
		limit = repository.PublicFeedLimit
	}

	profiles := []model.PublicProfile{}
	err := db.conn.SelectContext(ctx, &profiles, db.conn.Rebind(`
		SELECT u.id, u.nickname, u.image, u.voice_type, u.musical_attributes,
		       u.music_identity, u.city, u.country, u.avatar_seed,
		       c.status AS connection_status
		FROM users u
		LEFT JOIN connections c ON c.sender_id = ? AND c.receiver_id = u.id
		WHERE u.music_identity <> '' AND u.id <> ?
		ORDER BY u.updated_at DESC
		LIMIT ?`),
		viewerID, viewerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing public profiles: %w", err)
	}
	return profiles, nil
}
