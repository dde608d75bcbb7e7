/*-------------------------------------------------------------------------
 *
 * QueryChat Natural Language SQL Agent
 *
 * Copyright (c) 2025, the QueryChat authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"querychat/internal/database"
	"querychat/internal/logging"
	"querychat/internal/sqlguard"
)

// ChatRequest is the request body for POST /api/chat
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatData is the data payload for a successful chat turn
type ChatData struct {
	SessionID string           `json:"session_id"`
	Answer    string           `json:"answer"`
	SQLQuery  string           `json:"sql_query,omitempty"`
	RowCount  int              `json:"row_count,omitempty"`
	Result    *database.Result `json:"result,omitempty"`
}

// ExecuteRequest is the request body for POST /api/execute
type ExecuteRequest struct {
	SQL string `json:"sql"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = newSessionID()
	}

	answer, err := s.engine.Ask(r.Context(), sessionID, req.Message)
	if err != nil {
		logging.Error("chat turn failed", "session", sessionID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "chat failed: %v", err)
		return
	}

	data := ChatData{
		SessionID: sessionID,
		Answer:    answer.Text,
		SQLQuery:  answer.SQL,
		Result:    answer.Result,
	}
	if answer.Result != nil {
		data.RowCount = answer.Result.TotalRows
	}

	writeSuccess(w, "", data)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")

	if !s.engine.Store().Clear(sessionID) {
		writeError(w, http.StatusNotFound, "session not found: %s", sessionID)
		return
	}
	writeSuccess(w, "session cleared", nil)
}

// handleExecute runs caller-supplied SQL through the same gate and
// executor the model uses. Rejections are client errors; execution
// failures are server errors.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(w, http.StatusBadRequest, "sql is required")
		return
	}

	result, err := database.Execute(r.Context(), s.handle, req.SQL)
	if err != nil {
		var rejection *sqlguard.RejectionError
		if errors.As(err, &rejection) {
			writeError(w, http.StatusBadRequest, "%v", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	writeSuccess(w, "", result)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := database.Describe(r.Context(), s.handle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeSuccess(w, "", map[string]string{"schema": schema})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":   "ok",
		"database": s.handle.Alive(r.Context()),
		"backend":  string(s.handle.Kind()),
		"sessions": s.engine.Store().Len(),
	}
	writeSuccess(w, "", status)
}

func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read only fails when the OS entropy source is broken
		panic(err)
	}
	return hex.EncodeToString(buf)
}
