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
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"

	"querychat/internal/chatsvc"
	"querychat/internal/database"
	"querychat/internal/logging"
)

// Server exposes the chat engine and query executor over HTTP
type Server struct {
	engine *chatsvc.Engine
	handle *database.Handle
}

// NewServer creates an HTTP server over the given engine and database
// handle.
func NewServer(engine *chatsvc.Engine, handle *database.Handle) *Server {
	return &Server{
		engine: engine,
		handle: handle,
	}
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("DELETE /api/chat/{session}", s.handleClearSession)
	mux.HandleFunc("POST /api/execute", s.handleExecute)
	mux.HandleFunc("GET /api/schema", s.handleSchema)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return mux
}

// TLSSettings configures optional HTTPS serving
type TLSSettings struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

// Run serves until the listener fails
func (s *Server) Run(addr string, tlsSettings TLSSettings) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	if tlsSettings.Enabled {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		logging.Info("starting HTTPS server", "addr", addr)
		return httpServer.ListenAndServeTLS(tlsSettings.CertFile, tlsSettings.KeyFile)
	}

	logging.Info("starting HTTP server", "addr", addr)
	return httpServer.ListenAndServe()
}

type successEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type errorEnvelope struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

func writeSuccess(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(successEnvelope{Success: true, Message: message, Data: data}); err != nil {
		logging.Error("failed to encode response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	env := errorEnvelope{
		Success:    false,
		Error:      fmt.Sprintf(format, args...),
		StatusCode: status,
	}
	if err := json.NewEncoder(w).Encode(env); err != nil {
		logging.Error("failed to encode error response", "error", err.Error())
	}
}
