package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

// Handler serves the moderation audit trail to admins.
type Handler struct {
	service *AuditService
	logger  *logging.Logger
}

func NewHandler(service *AuditService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// List handles GET /admin/moderation/audit.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		AccountID: q.Get("accountId"),
		Status:    q.Get("status"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		filter.Since = since
	}

	entries, err := h.service.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query moderation audit", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"entries": entries}); err != nil {
		h.logger.Error("failed to encode audit entries", "error", err)
	}
}
