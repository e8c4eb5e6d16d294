// ABOUTME: HTTP handlers for the openmcp API surface
// ABOUTME: Implements key management, service listing, and the always-200 tool call shape

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openmcp-ai/openmcp/internal/auth"
	"github.com/openmcp-ai/openmcp/internal/service"
)

// toolCallRequest is the body of POST /services/{service}/call.
type toolCallRequest struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	SessionID string         `json:"session_id"`
}

// toolCallResponse is always returned with HTTP 200; failures ride in the
// success flag and error field.
type toolCallResponse struct {
	Success   bool           `json:"success"`
	Result    map[string]any `json:"result"`
	SessionID string         `json:"session_id,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type createKeyRequest struct {
	Name        string          `json:"name"`
	ExpiresDays int             `json:"expires_days"`
	Permissions map[string]bool `json:"permissions"`
}

type serviceInfo struct {
	Name   string         `json:"name"`
	Status string         `json:"status"`
	Tools  []string       `json:"tools"`
	Config map[string]any `json:"config"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":            "Welcome to openmcp - Optimized MCP services for AI Agents",
		"version":            Version,
		"available_services": s.registry.Available(),
		"running_services":   s.registry.List(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := make(map[string]service.Status)
	for _, name := range s.registry.Available() {
		status, err := s.registry.Status(name)
		if err != nil {
			continue
		}
		services[name] = status
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"services": services,
	})
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	token := s.auth.CreateKey(req.Name, req.ExpiresDays, req.Permissions)
	writeJSON(w, http.StatusOK, map[string]any{
		"api_key":      token,
		"name":         req.Name,
		"expires_days": req.ExpiresDays,
	})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys := s.auth.ListKeys()

	// Tokens never leave the server through this endpoint.
	entries := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, map[string]any{
			"name":        key.Name,
			"created_at":  key.CreatedAt,
			"expires_at":  key.ExpiresAt,
			"is_active":   key.Active,
			"permissions": key.Permissions,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": entries})
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	available := s.registry.Available()
	running := s.registry.List()

	details := make(map[string]serviceInfo, len(available))
	for _, name := range available {
		info := serviceInfo{Name: name, Status: "available", Tools: []string{}, Config: map[string]any{}}
		if sc, ok := s.cfg.Service(name); ok && sc.Config != nil {
			info.Config = sc.Config
		}
		if svc, err := s.registry.Get(name); err == nil {
			info.Status = "running"
			for _, tool := range svc.Tools() {
				info.Tools = append(info.Tools, tool.Name)
			}
		}
		details[name] = info
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"available_services": available,
		"running_services":   running,
		"service_details":    details,
	})
}

// resolveService runs the permission check and service lookup shared by the
// tool endpoints. A nil return means the response has already been written.
func (s *Server) resolveService(w http.ResponseWriter, r *http.Request) service.Service {
	name := mux.Vars(r)["service"]
	key := auth.MustFromContext(r.Context())

	if !key.Allows(name) {
		writeError(w, http.StatusForbidden, "No permission for service: "+name)
		return nil
	}

	svc, err := s.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Service not found or not running: "+name)
		return nil
	}
	return svc
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	svc := s.resolveService(w, r)
	if svc == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": svc.Name(),
		"tools":   svc.Tools(),
	})
}

func (s *Server) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["service"]

	status, err := s.registry.Status(name)
	if err != nil {
		if errors.Is(err, service.ErrUnknownService) {
			writeError(w, http.StatusNotFound, "Service not found: "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	svc := s.resolveService(w, r)
	if svc == nil {
		return
	}

	var req toolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ToolName == "" {
		writeError(w, http.StatusBadRequest, "tool_name is required")
		return
	}

	result := svc.CallTool(r.Context(), req.ToolName, req.Arguments, req.SessionID)
	writeJSON(w, http.StatusOK, buildCallResponse(result, req.SessionID))
}

// buildCallResponse maps a tool result to the wire shape. The session ID in
// the result wins over the request's so create_session round-trips.
func buildCallResponse(result map[string]any, requestSessionID string) toolCallResponse {
	sessionID := requestSessionID
	if v, ok := result["session_id"].(string); ok && v != "" {
		sessionID = v
	}

	resp := toolCallResponse{
		Success:   true,
		Result:    result,
		SessionID: sessionID,
	}
	if errMsg, ok := result["error"].(string); ok {
		resp.Success = false
		resp.Error = errMsg
	}
	return resp
}
