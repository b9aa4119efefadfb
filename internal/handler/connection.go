package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/mymume/internal/auth"
	"github.com/sakif/mymume/internal/model"
	"github.com/sakif/mymume/internal/service"
)

type ConnectionService interface {
	SetConnection(ctx context.Context, senderID, receiverID string, status model.ConnectionStatus) (*model.Connection, error)
	MatchingSongs(ctx context.Context, viewerID, targetID string) (*service.MatchingSongs, error)
}

// ConnectionHandler records compatibility tests and serves the songs they unlock.
type ConnectionHandler struct {
	connections ConnectionService
	logger      *slog.Logger
}

func NewConnectionHandler(connections ConnectionService, logger *slog.Logger) *ConnectionHandler {
	return &ConnectionHandler{connections: connections, logger: logger}
}

type connectionRequest struct {
	ReceiverID string                 `json:"receiverId"`
	Status     model.ConnectionStatus `json:"status"`
}

// HandleSetConnection upserts the caller's outcome toward receiverId.
//
// HTTP: POST /api/mume-connection {"receiverId": "...", "status": "positive"|"negative"}
func (h *ConnectionHandler) HandleSetConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req connectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.connections.SetConnection(r.Context(), userID, req.ReceiverID, req.Status)
	if err != nil {
		logFailure(h.logger, "saving connection failed", err, slog.String("userID", userID))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "connection": conn})
}

// HandleSongs returns another user's songs once the caller has a positive
// connection toward them.
//
// HTTP: GET /api/profile/songs?userId=...
func (h *ConnectionHandler) HandleSongs(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	songs, err := h.connections.MatchingSongs(r.Context(), userID, r.URL.Query().Get("userId"))
	if err != nil {
		logFailure(h.logger, "loading matching songs failed", err, slog.String("userID", userID))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}
