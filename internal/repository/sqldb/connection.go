package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/model"
	"github.com/sakif/mymume/internal/repository"
)

var _ repository.ConnectionRepository = (*DB)(nil)

// UpsertConnection relies on the UNIQUE (sender_id, receiver_id) constraint:
// a repeated test of the same pair updates the status in place.
func (db *DB) UpsertConnection(ctx context.Context, senderID, receiverID string, status model.ConnectionStatus) (*model.Connection, error) {
	ts := now()
	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO connections (id, sender_id, receiver_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (sender_id, receiver_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at`),
		xid.New().String(), senderID, receiverID, string(status), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("sqldb: upserting connection %s->%s: %w", senderID, receiverID, err)
	}
	return db.GetConnection(ctx, senderID, receiverID)
}

func (db *DB) GetConnection(ctx context.Context, senderID, receiverID string) (*model.Connection, error) {
	var c model.Connection
	err := db.conn.GetContext(ctx, &c, db.conn.Rebind(`
		SELECT id, sender_id, receiver_id, status, created_at, updated_at
		FROM connections
		WHERE sender_id = ? AND receiver_id = ?`),
		senderID, receiverID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("connection", senderID+"->"+receiverID)
		}
		return nil, fmt.Errorf("sqldb: getting connection %s->%s: %w", senderID, receiverID, err)
	}
	return &c, nil
}

// CountConnections returns how many rows exist for the ordered pair. It is
// only ever 0 or 1; used by tests and diagnostics.
func (db *DB) CountConnections(ctx context.Context, senderID, receiverID string) (int, error) {
	var n int
	err := db.conn.GetContext(ctx, &n, db.conn.Rebind(
		`SELECT COUNT(*) FROM connections WHERE sender_id = ? AND receiver_id = ?`),
		senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("sqldb: counting connections: %w", err)
	}
	return n, nil
}
