package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/mymume/internal/analyzer"
	"github.com/sakif/mymume/internal/auth"
)

type IdentityService interface {
	AnalyzeIdentity(ctx context.Context, userID string) (*analyzer.Result, error)
}

type IdentityHandler struct {
	identity IdentityService
	logger   *slog.Logger
}

func NewIdentityHandler(identity IdentityService, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{identity: identity, logger: logger}
}

// HandleAnalyze analyzes the stored playlist and replaces the stored identity.
//
// HTTP: POST /api/analyze-identity → {"result": "...", "prompt": "..."}
func (h *IdentityHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	res, err := h.identity.AnalyzeIdentity(r.Context(), userID)
	if err != nil {
		logFailure(h.logger, "identity analysis failed", err, slog.String("userID", userID))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
