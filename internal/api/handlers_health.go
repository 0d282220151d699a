package api

import (
	"net/http"

	"castingai/internal/health"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, health.Report{Status: health.StatusHealthy})
		return
	}
	report := s.health.Report(r.Context())
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	report := s.health.Report(r.Context())
	if !health.Ready(report.Status) {
		writeJSON(w, http.StatusServiceUnavailable, report)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	report := s.health.Report(r.Context())
	if !health.Live(report.Status) {
		writeJSON(w, http.StatusServiceUnavailable, report)
		return
	}
	w.WriteHeader(http.StatusOK)
}
