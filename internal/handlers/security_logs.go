package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/authguard/internal/models"
	pkghttp "github.com/BradenHooton/authguard/pkg/http"
)

const maxSecurityLogLimit = 100

// SecurityLogResponse represents a security log entry in HTTP response
type SecurityLogResponse struct {
	ID        string  `json:"id"`
	UserID    *string `json:"user_id,omitempty"`
	Action    string  `json:"action"`
	Details   string  `json:"details"`
	Success   bool    `json:"success"`
	IPAddress string  `json:"ip_address"`
	UserAgent string  `json:"user_agent"`
	Timestamp string  `json:"timestamp"`
}

// SecurityLogs handles GET /security/logs?user_id=&limit=, newest entries
// first. Only the signed-in account's own entries are returned.
func (h *AuthHandler) SecurityLogs(w http.ResponseWriter, r *http.Request) {
	session := h.guard.CurrentSession()
	if !session.IsAuthenticated || session.Identity == nil {
		pkghttp.WriteUnauthorized(w, "Sign in to view security logs")
		return
	}

	userID := session.Identity.ID
	if id := strings.TrimSpace(r.URL.Query().Get("user_id")); id != "" && id != userID {
		pkghttp.WriteForbidden(w, "Security logs are only available for your own account")
		return
	}

	limit := maxSecurityLogLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			pkghttp.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(l, maxSecurityLogLimit)
	}

	entries := h.guard.GetSecurityLogs(&userID)
	total := len(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}

	response := make([]SecurityLogResponse, len(entries))
	for i, entry := range entries {
		response[i] = securityLogToResponse(entry)
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  response,
		"total": total,
		"limit": limit,
	})
}

func securityLogToResponse(entry models.SecurityLogEntry) SecurityLogResponse {
	return SecurityLogResponse{
		ID:        entry.ID.String(),
		UserID:    entry.UserID,
		Action:    string(entry.Action),
		Details:   entry.Details,
		Success:   entry.Success,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		Timestamp: entry.Timestamp.Format(time.RFC3339Nano),
	}
}
