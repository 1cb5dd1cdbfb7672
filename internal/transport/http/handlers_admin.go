package httptransport

import (
	"context"
	"net/http"

	"eduro/pkg/platform/audit"
)

// AuditLog is the read side of the audit trail exposed to administrators.
type AuditLog interface {
	ListByUser(ctx context.Context, userID string) ([]audit.Event, error)
}

// AdminHandler serves operator-only endpoints.
type AdminHandler struct {
	auditLog AuditLog
}

// handleAuditByUser lists the security trail for one user.
func (h *AdminHandler) handleAuditByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_input", "message": "user_id is required"})
		return
	}
	events, err := h.auditLog.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
