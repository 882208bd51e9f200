package hatespeech

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Handler serves hate-speech detection over HTTP.
type Handler struct {
	detector *Detector
	logger   *logging.Logger
}

// NewHandler creates a new hate-speech handler
func NewHandler(detector *Detector, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{detector: detector, logger: logger}
}

// DetectRequest is the body of POST /v1/hate-speech.
type DetectRequest struct {
	Text string `json:"text"`
}

// Detect handles POST /v1/hate-speech requests
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	result := h.detector.Detect(r.Context(), req.Text)
	if result.IsHateSpeech {
		h.logger.Info("hate speech detected",
			"confidence", result.Confidence,
			"category", result.Category,
			"language", result.Language,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("failed to encode hate speech response", "error", err)
	}
}
