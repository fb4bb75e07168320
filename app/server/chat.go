package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

type chatRequest struct {
	Query      string `json:"query"`
	SessionID  string `json:"session_id"`
	ModuleCode string `json:"module_code"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, sources, err := s.assistant.Answer(r.Context(), req.Query, req.ModuleCode, req.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response": answer,
		"sources":  sources,
	})
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.assistant.ClearSession(r.Context(), req.SessionID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	maxMessages := 10
	if raw := r.URL.Query().Get("max_messages"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid max_messages")
			return
		}
		maxMessages = parsed
	}

	history, err := s.assistant.History(r.Context(), sessionID, maxMessages)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// handleChatModules merges module codes known to the vector store with
// those present on disk, for the extension's module dropdown.
func (s *Server) handleChatModules(w http.ResponseWriter, r *http.Request) {
	type moduleEntry struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}

	seen := map[string]bool{}
	var entries []moduleEntry

	collections, err := s.gateway.ListCollections(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, collection := range collections {
		code, ok := strings.CutPrefix(collection, "module_")
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		entries = append(entries, moduleEntry{Code: code, Name: fmt.Sprintf("Module %s", code)})
	}

	manifests, err := s.files.ListModules()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, manifest := range manifests {
		if manifest.ModuleCode == "" || seen[manifest.ModuleCode] {
			continue
		}
		seen[manifest.ModuleCode] = true
		entries = append(entries, moduleEntry{
			Code: manifest.ModuleCode,
			Name: fmt.Sprintf("Module %s", manifest.ModuleCode),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"modules": entries})
}
