package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/mymume/internal/auth"
	"github.com/sakif/mymume/internal/geo"
	"github.com/sakif/mymume/internal/ingest"
	"github.com/sakif/mymume/internal/model"
	"github.com/sakif/mymume/internal/service"
)

// ProfileService is the part of *service.ProfileService the handlers use.
type ProfileService interface {
	GetPlaylist(ctx context.Context, userID string) (*service.PlaylistView, error)
	UpdateProfile(ctx context.Context, userID string, in service.ProfileInput, clientIP string) (string, error)
	IngestPlaylist(ctx context.Context, userID string, src ingest.Source, progress ingest.ProgressFunc) (string, error)
	DetectLocation(ctx context.Context, userID, clientIP string) (*service.LocationResult, error)
	Reset(ctx context.Context, userID string) error
	PublicProfiles(ctx context.Context, viewerID string) ([]model.PublicProfile, error)
}

// ProfileHandler serves the profile and playlist endpoints.
type ProfileHandler struct {
	profiles ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// HandleGetPlaylist returns the profile with the stored playlist source.
//
// HTTP: GET /api/playlist
func (h *ProfileHandler) HandleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	view, err := h.profiles.GetPlaylist(r.Context(), userID)
	if err != nil {
		logFailure(h.logger, "loading playlist failed", err, slog.String("userID", userID))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// playlistRequest is the POST /api/playlist body. Profile fields take
// precedence: a body carrying any of them is a profile update and the
// playlist fields are ignored.
type playlistRequest struct {
	service.ProfileInput
	URL  string `json:"url"`
	Text string `json:"text"`
}

type profileUpdateResponse struct {
	Success bool   `json:"success"`
	City    string `json:"city,omitempty"`
}

// HandlePostPlaylist updates profile fields or ingests a playlist.
//
// HTTP: POST /api/playlist
//
//   - {nickname|voiceType|musicalAttributes} → {"success": true, "city": "..."}
//   - {text}                                 → {"type": "text", "content": "..."}
//   - {url}                                  → NDJSON stream (see streamIngest)
//
// Sources are validated before anything streams, so a bad URL is a plain 400.
func (h *ProfileHandler) HandlePostPlaylist(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req playlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if !req.ProfileInput.IsEmpty() {
		city, err := h.profiles.UpdateProfile(r.Context(), userID, req.ProfileInput, geo.ClientIP(r))
		if err != nil {
			logFailure(h.logger, "updating profile failed", err, slog.String("userID", userID))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profileUpdateResponse{Success: true, City: city})
		return
	}

	src, err := ingest.ParseSource(req.Text, req.URL)
	if err != nil {
		writeError(w, err)
		return
	}

	if src.IsURL() {
		h.streamIngest(w, r, userID, src)
		return
	}

	content, err := h.profiles.IngestPlaylist(r.Context(), userID, src, nil)
	if err != nil {
		logFailure(h.logger, "saving text playlist failed", err, slog.String("userID", userID))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, textMessage{Type: "text", Content: content})
}

// streamIngest runs a URL ingestion and streams its progress as NDJSON:
//
//	{"type":"progress","count":12}
//	{"type":"progress","count":40}
//	{"type":"text","content":"Artist - Title\n..."}
//
// or, on failure, a single {"error": "...", "details": "..."} line.
//
// Ingestion runs on a context detached from the request: a client that
// disconnects stops receiving messages but the scrape finishes and is stored.
func (h *ProfileHandler) streamIngest(w http.ResponseWriter, r *http.Request, userID string, src ingest.Source) {
	stream := startNDJSON(w)
	defer stream.close()

	h.logger.Info("playlist ingestion started",
		slog.String("userID", userID),
		slog.String("playlistID", src.PlaylistID),
	)

	ctx := context.WithoutCancel(r.Context())
	corpus, err := h.profiles.IngestPlaylist(ctx, userID, src, func(count int) {
		stream.send(progressMessage{Type: "progress", Count: count})
	})
	if err != nil {
		h.logger.Error("playlist ingestion failed",
			slog.String("userID", userID),
			slog.String("playlistID", src.PlaylistID),
			slog.String("error", err.Error()),
		)
		stream.send(streamErrorFor(err, "Failed to scrape playlist"))
		return
	}

	stream.send(textMessage{Type: "text", Content: corpus})
}

// HandleDetectCity fills in the user's city and country from their IP.
//
// HTTP: POST /api/detect-city
func (h *ProfileHandler) HandleDetectCity(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	res, err := h.profiles.DetectLocation(r.Context(), userID, geo.ClientIP(r))
	if err != nil {
		logFailure(h.logger, "detecting city failed", err, slog.String("userID", userID))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleReset clears the user's profile.
//
// HTTP: POST /api/profile/reset
func (h *ProfileHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	if err := h.profiles.Reset(r.Context(), userID); err != nil {
		logFailure(h.logger, "resetting profile failed", err, slog.String("userID", userID))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandlePublicProfiles returns the discovery feed.
//
// HTTP: GET /api/public-profiles
func (h *ProfileHandler) HandlePublicProfiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	profiles, err := h.profiles.PublicProfiles(r.Context(), userID)
	if err != nil {
		logFailure(h.logger, "listing public profiles failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}
