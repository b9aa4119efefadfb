package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/mymume/internal/apperror"
	"github.com/sakif/mymume/internal/avatar"
)

const (
	DefaultAvatarSize = 64
	MinAvatarSize     = 16
	MaxAvatarSize     = 512
)

// AvatarHandler renders seeded avatars. Rendering is pure, so these routes
// need no session and responses are cacheable forever.
type AvatarHandler struct {
	logger *slog.Logger
}

func NewAvatarHandler(logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{logger: logger}
}

type avatarResponse struct {
	avatar.Descriptor
	Scene avatar.Scene `json:"scene"`
}

// HandleAvatar renders the avatar for a seed.
//
// HTTP: GET /api/avatar?seed=...&format=svg|png|json&size=64
//
// A missing seed is the empty seed, which is valid. size is clamped to
// [16, 512].
func (h *AvatarHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	size, err := parseSize(q.Get("size"))
	if err != nil {
		writeError(w, err)
		return
	}

	d := avatar.Generate(q.Get("seed"))
	scene := avatar.BuildScene(d)

	format := q.Get("format")
	if format == "json" {
		writeJSON(w, http.StatusOK, avatarResponse{Descriptor: d, Scene: scene})
		return
	}

	var (
		buf         bytes.Buffer
		contentType string
	)
	switch format {
	case "", "svg":
		contentType = "image/svg+xml"
		err = avatar.RenderSVG(&buf, scene, size)
	case "png":
		contentType = "image/png"
		err = avatar.RenderPNG(&buf, scene, size)
	default:
		writeError(w, apperror.ValidationFailed("format", "format must be one of svg, png, json"))
		return
	}
	if err != nil {
		h.logger.Error("rendering avatar failed",
			slog.String("format", format),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", fmt.Sprintf(`"%08x-%s-%d"`, d.Hash, contentType, size))
	w.Write(buf.Bytes())
}

// HandleRandom returns a fresh seed for the shuffle button.
//
// HTTP: GET /api/avatar/random → {"seed": "..."}
func (h *AvatarHandler) HandleRandom(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{"seed": avatar.RandomSeed()})
}

func parseSize(raw string) (int, error) {
	if raw == "" {
		return DefaultAvatarSize, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed("size", "size must be an integer")
	}
	return min(max(n, MinAvatarSize), MaxAvatarSize), nil
}
