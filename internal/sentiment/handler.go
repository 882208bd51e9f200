package sentiment

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Handler serves sentiment analysis over HTTP.
type Handler struct {
	analyzer *Analyzer
	logger   *logging.Logger
}

// NewHandler creates a new sentiment handler
func NewHandler(analyzer *Analyzer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{analyzer: analyzer, logger: logger}
}

// AnalyzeRequest is the body of POST /v1/sentiment.
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// Analyze handles POST /v1/sentiment requests
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	result := h.analyzer.Analyze(r.Context(), req.Text)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("failed to encode sentiment response", "error", err)
	}
}
