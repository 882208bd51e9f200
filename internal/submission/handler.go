package submission

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/loop-safety/internal/safety"
	"github.com/wolfman30/loop-safety/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Handler serves the submission gate over HTTP.
type Handler struct {
	gate   *Gate
	logger *logging.Logger
}

func NewHandler(gate *Gate, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{gate: gate, logger: logger}
}

// SubmitRequest is the body of POST /v1/submissions.
type SubmitRequest struct {
	AccountID string `json:"accountId"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// Submit handles POST /v1/submissions.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	decision, err := h.gate.Submit(r.Context(), Submission{
		AccountID: req.AccountID,
		Kind:      Kind(req.Kind),
		Text:      req.Text,
		ImageRef:  req.ImageURL,
	})
	switch {
	case errors.Is(err, ErrInvalidSubmission):
		http.Error(w, "accountId, kind (post|comment|share|message) and text are required", http.StatusBadRequest)
		return
	case errors.Is(err, ErrAccountRestricted):
		http.Error(w, "Account is suspended or terminated", http.StatusForbidden)
		return
	case errors.Is(err, safety.ErrAccountNotFound):
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("submission failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(decision); err != nil {
		h.logger.Error("failed to encode submission decision", "error", err)
	}
}
