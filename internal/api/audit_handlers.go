package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/beavernet/beavernet/internal/clock"
)

// handleAuditQuery serves the audit trail. Query params: start, end
// (RFC 3339), action, user, limit.
func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		WriteError(w, http.StatusServiceUnavailable, "Audit log not enabled")
		return
	}

	q := r.URL.Query()

	end := clock.Now()
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid end time")
			return
		}
		end = t
	}

	start := end.AddDate(0, 0, -7)
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid start time")
			return
		}
		start = t
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.auditLog.Query(start, end, q.Get("action"), q.Get("user"), limit)
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"events": entries,
		"count":  len(entries),
	})
}

// handleStatus is a public health endpoint for monitoring.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "online",
		"uptime":       clock.Since(s.startTime).Round(time.Second).String(),
		"rules":        s.repo.RuleCount(),
		"proxyConfigs": s.repo.ProxyCount(),
		"needsSetup":   !s.users.HasUsers(),
	})
}
