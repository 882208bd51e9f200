package moderation

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Handler serves content moderation over HTTP.
type Handler struct {
	moderator *Moderator
	logger    *logging.Logger
}

// NewHandler creates a new moderation handler
func NewHandler(moderator *Moderator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{moderator: moderator, logger: logger}
}

// ModerateRequest is the body of POST /v1/moderation.
type ModerateRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Moderate handles POST /v1/moderation requests
func (h *Handler) Moderate(w http.ResponseWriter, r *http.Request) {
	var req ModerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	ev := h.moderator.Evaluate(r.Context(), Request{
		Text:     req.Text,
		ImageRef: strings.TrimSpace(req.ImageURL),
		Kind:     "api",
	})
	h.logger.Info("content moderated",
		"status", ev.Result.Status,
		"score", ev.Result.Score,
		"path", ev.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ev.Result); err != nil {
		h.logger.Error("failed to encode moderation response", "error", err)
	}
}
