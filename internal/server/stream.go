// ABOUTME: SSE variant of the tool call endpoint
// ABOUTME: Streams tool results as result/error events so long calls need no buffering

package server

import (
	"encoding/json"
	"net/http"

	"github.com/tmaxmax/go-sse"
)

// handleStreamTool executes one tool call and streams the outcome over SSE.
// Query parameters: tool_name (required), session_id, and arguments as a
// JSON-encoded object. The result rides in a "result" event; failures in an
// "error" event.
func (s *Server) handleStreamTool(w http.ResponseWriter, r *http.Request) {
	svc := s.resolveService(w, r)
	if svc == nil {
		return
	}

	q := r.URL.Query()
	toolName := q.Get("tool_name")
	if toolName == "" {
		writeError(w, http.StatusBadRequest, "tool_name is required")
		return
	}
	sessionID := q.Get("session_id")

	var args map[string]any
	if raw := q.Get("arguments"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			writeError(w, http.StatusBadRequest, "arguments must be a JSON object")
			return
		}
	}

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		s.logger.Error("sse upgrade failed", "error", err)
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	result := svc.CallTool(r.Context(), toolName, args, sessionID)

	eventType := "result"
	if _, failed := result["error"]; failed {
		eventType = "error"
	}

	payload, err := json.Marshal(buildCallResponse(result, sessionID))
	if err != nil {
		s.logger.Error("encoding stream result failed", "error", err)
		return
	}

	msg := sse.Message{Type: sse.Type(eventType)}
	msg.AppendData(string(payload))
	if err := sess.Send(&msg); err != nil {
		s.logger.Error("sending stream event failed", "error", err)
		return
	}
	if err := sess.Flush(); err != nil {
		s.logger.Error("flushing stream failed", "error", err)
	}
}
