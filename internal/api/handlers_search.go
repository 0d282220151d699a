package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"castingai/internal/apierr"
	"castingai/internal/domain"
	"castingai/internal/indexmanager"
)

const defaultSemanticSearchLimit = 20

func (s *Server) handleSemanticSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeError(w, r, apierr.New(apierr.ProviderUnavailable, "search pipeline not configured"))
		return
	}
	var req semanticSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSemanticSearchLimit
	}
	result, err := s.search.Search(r.Context(), req.Query, req.toCriteria(), limit)
	if err != nil {
		writeError(w, r, apierr.Wrap(apierr.Internal, "semantic search failed", err))
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: result.Results, Degraded: result.Degraded})
}

// handleSimilarTalent runs the hybrid pipeline with the talent id itself as
// the text query, plus any criteria and limit from an optional JSON body. It
// asks for one extra result, drops the reference talent from the results and
// trims to the limit. The reference profile's stored vector and attributes
// are not looked up.
func (s *Server) handleSimilarTalent(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeError(w, r, apierr.New(apierr.ProviderUnavailable, "search pipeline not configured"))
		return
	}
	talentID := chi.URLParam(r, "talentID")
	if talentID == "" {
		writeError(w, r, apierr.New(apierr.Validation, "talentID is required"))
		return
	}

	var req semanticSearchRequest
	_ = decodeJSON(r, &req)
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSemanticSearchLimit
	}

	result, err := s.search.Search(r.Context(), talentID, req.toCriteria(), limit+1)
	if err != nil {
		writeError(w, r, apierr.Wrap(apierr.Internal, "similar talent search failed", err))
		return
	}
	filtered := make([]domain.RankedResult, 0, len(result.Results))
	for _, res := range result.Results {
		if res.TalentID == talentID {
			continue
		}
		filtered = append(filtered, res)
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: filtered, Degraded: result.Degraded})
}

func (s *Server) handleIndexTalent(w http.ResponseWriter, r *http.Request) {
	if s.indexManager == nil {
		writeError(w, r, apierr.New(apierr.ProviderUnavailable, "index manager not configured"))
		return
	}
	var req indexTalentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	priority := indexmanager.PriorityNormal
	if req.Priority == string(indexmanager.PriorityHigh) {
		priority = indexmanager.PriorityHigh
	}
	err := s.indexManager.QueueUpdate(r.Context(), indexmanager.UpdateMessage{
		TalentID: req.TalentID,
		Op:       indexmanager.OpUpsert,
		Priority: priority,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDeindexTalent(w http.ResponseWriter, r *http.Request) {
	if s.indexManager == nil {
		writeError(w, r, apierr.New(apierr.ProviderUnavailable, "index manager not configured"))
		return
	}
	talentID := chi.URLParam(r, "talentID")
	err := s.indexManager.QueueUpdate(r.Context(), indexmanager.UpdateMessage{
		TalentID: talentID,
		Op:       indexmanager.OpDelete,
		Priority: indexmanager.PriorityHigh,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	if s.indexManager == nil {
		writeError(w, r, apierr.New(apierr.ProviderUnavailable, "index manager not configured"))
		return
	}
	if err := s.indexManager.Reindex(r.Context()); err != nil {
		writeError(w, r, apierr.Wrap(apierr.Internal, "reindex failed", err))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	resp := indexStatsResponse{Dimensions: s.vectorDims}
	if s.index != nil {
		count, err := s.index.Count(r.Context())
		if err != nil {
			writeError(w, r, apierr.Wrap(apierr.Internal, "index count failed", err))
			return
		}
		resp.Count = count
	}
	if s.indexManager != nil {
		stats := s.indexManager.Stats()
		resp.ManagerStats = managerStatsView{DeadLetters: stats.DeadLetters, QueueDepth: stats.QueueDepth}
	}
	writeJSON(w, http.StatusOK, resp)
}
