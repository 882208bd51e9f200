package safety

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

const maxBodyBytes = 16 << 10

// Handler exposes safety records over HTTP.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a safety handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreateAccountRequest is the body of POST /v1/accounts.
type CreateAccountRequest struct {
	AccountID string `json:"accountId"`
}

// CreateAccount handles POST /v1/accounts. It is idempotent.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		http.Error(w, "accountId is required", http.StatusBadRequest)
		return
	}

	rec, err := h.repo.Create(r.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to create safety record", "error", err, "account_id", accountID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetSafety handles GET /v1/accounts/{accountID}/safety.
func (h *Handler) GetSafety(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(chi.URLParam(r, "accountID"))
	if accountID == "" {
		http.Error(w, "missing accountID", http.StatusBadRequest)
		return
	}

	rec, err := h.repo.Get(r.Context(), accountID)
	if errors.Is(err, ErrAccountNotFound) {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load safety record", "error", err, "account_id", accountID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListViolations handles GET /admin/accounts/{accountID}/violations.
func (h *Handler) ListViolations(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(chi.URLParam(r, "accountID"))
	if accountID == "" {
		http.Error(w, "missing accountID", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	rec, err := h.repo.Get(r.Context(), accountID)
	if errors.Is(err, ErrAccountNotFound) {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load safety record", "error", err, "account_id", accountID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	violations, err := h.repo.ListViolations(r.Context(), accountID, limit)
	if err != nil {
		h.logger.Error("failed to list violations", "error", err, "account_id", accountID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if violations == nil {
		violations = []Violation{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"record":     rec,
		"violations": violations,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
