package httpapi

import (
	"net/http"
	"strconv"
)

func (s *Server) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid limit", map[string]any{"limit": "must be an integer"})
			return
		}
		limit = n
	}
	es, err := s.Audit.List(r.Context(), p, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]AuditEntry, 0, len(es))
	for _, e := range es {
		out = append(out, auditEntryFromDomain(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
