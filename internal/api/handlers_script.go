package api

import (
	"net/http"

	"castingai/internal/apierr"
)

func (s *Server) handleAnalyzeScript(w http.ResponseWriter, r *http.Request) {
	if s.scriptPipe == nil {
		writeError(w, r, apierr.New(apierr.ProviderUnavailable, "script analysis pipeline not configured"))
		return
	}
	var req analyzeScriptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.scriptPipe.Analyze(r.Context(), req.ScriptText)
	if err != nil {
		writeError(w, r, apierr.Wrap(apierr.Internal, "script analysis failed", err))
		return
	}

	// Neither flag set means "extract everything" (the endpoint's behavior
	// before these flags existed); setting either narrows the response to
	// just the requested section.
	if req.ExtractCharacters || req.ExtractRequirements {
		if !req.ExtractCharacters {
			result.Characters = nil
		}
		if !req.ExtractRequirements {
			result.Requirements = nil
			result.Suggestions = nil
		}
	}
	writeJSON(w, http.StatusOK, result)
}
