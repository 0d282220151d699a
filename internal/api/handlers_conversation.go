package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"castingai/internal/apierr"
	"castingai/internal/orchestrator"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := s.orchestrator.Handle(r.Context(), orchestrator.Request{
		SessionID: req.SessionID,
		UserID:    userIDFromContext(r.Context()),
		Text:      req.Text,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(resp))
}

// handleChatStream streams the assistant response as Server-Sent Events,
// one `data:` line per delta and a final `event: done` frame carrying the
// full chatResponse, grounded on the orchestrator's own chunk/terminal-
// chunk distinction (internal/orchestrator/stream.go).
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	stream, err := s.orchestrator.HandleStream(r.Context(), orchestrator.Request{
		SessionID: req.SessionID,
		UserID:    userIDFromContext(r.Context()),
		Text:      req.Text,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, apierr.New(apierr.Internal, "streaming unsupported by this connection"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for chunk := range stream {
		if chunk.Done {
			writeSSEEvent(w, "done", toChatResponse(*chunk.Final))
			flusher.Flush()
			return
		}
		writeSSEEvent(w, "delta", sseDelta{Delta: chunk.Delta})
		flusher.Flush()
	}
}

type sseDelta struct {
	Delta string `json:"delta"`
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "conversationID")
	turns := s.orchestrator.Turns(sessionID)
	writeJSON(w, http.StatusOK, conversationView{SessionID: sessionID, Turns: turns})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "conversationID")
	s.orchestrator.EndSession(sessionID)
	w.WriteHeader(http.StatusNoContent)
}
