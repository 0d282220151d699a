package api

import (
	"net/http"

	"castingai/internal/apierr"
)

func (s *Server) handleUsageReport(w http.ResponseWriter, r *http.Request) {
	if s.usageTracker == nil {
		writeError(w, r, apierr.New(apierr.ProviderUnavailable, "usage tracking not configured"))
		return
	}
	writeJSON(w, http.StatusOK, s.usageTracker.Report())
}
