package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"castingai/internal/orchestrator"
)

const wsTurnTimeout = 30 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsFrame is one JSON frame exchanged over /ws/chat/{conversation_id},
// grounded on the AleutianLocal orchestrator's action/type-tagged WebSocket
// frame shape (§6: "JSON frames {type: connection|typing|message|error}").
type wsFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	*chatResponse
}

func (s *Server) handleWebSocketChat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "conversationID")

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("api: websocket upgrade failed")
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsFrame{Type: "connection", Content: "connected"}); err != nil {
		return
	}

	for {
		var in struct {
			Text string `json:"text"`
		}
		if err := conn.ReadJSON(&in); err != nil {
			return
		}

		_ = conn.WriteJSON(wsFrame{Type: "typing"})

		ctx, cancel := context.WithTimeout(r.Context(), wsTurnTimeout)
		resp, err := s.orchestrator.Handle(ctx, orchestrator.Request{
			SessionID: sessionID,
			UserID:    userIDFromContext(r.Context()),
			Text:      in.Text,
		})
		cancel()
		if err != nil {
			_ = conn.WriteJSON(wsFrame{Type: "error", Error: err.Error()})
			continue
		}
		cr := toChatResponse(resp)
		_ = conn.WriteJSON(wsFrame{Type: "message", chatResponse: &cr})
	}
}
