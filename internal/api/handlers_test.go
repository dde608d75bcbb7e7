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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"querychat/internal/chatsvc"
	"querychat/internal/database"
	"querychat/internal/llm"
	"querychat/internal/tools"
)

// scriptedClient replays a fixed sequence of model turns
type scriptedClient struct {
	turns []llm.Response
	calls int
}

func (c *scriptedClient) Chat(ctx context.Context, messages []llm.Message, defs []llm.ToolDef) (llm.Response, error) {
	if c.calls >= len(c.turns) {
		return llm.Response{
			StopReason: "end_turn",
			Content:    []interface{}{llm.TextContent{Type: "text", Text: "Done."}},
		}, nil
	}
	turn := c.turns[c.calls]
	c.calls++
	return turn, nil
}

func testServer(t *testing.T, client llm.Client) *Server {
	t.Helper()

	h, err := database.Open(context.Background(), database.Config{
		Kind: database.KindMemory,
		Datasets: map[string]database.Dataset{
			"products": {
				Columns: []string{"name", "price"},
				Rows: [][]interface{}{
					{"anvil", 99.5},
					{"rope", 12.0},
					{"dynamite", 45.25},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })

	schema, err := database.Describe(context.Background(), h)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}

	reg := tools.NewRegistry()
	reg.Register("execute_sql", tools.NewExecuteSQLTool(h))

	engine := chatsvc.NewEngine(client, reg, schema, chatsvc.NewStore())
	return NewServer(engine, h)
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestExecuteEndpointReturnsRows(t *testing.T) {
	server := testServer(t, &scriptedClient{})

	rec := postJSON(t, server.Handler(), "/api/execute",
		ExecuteRequest{SQL: "SELECT name FROM products ORDER BY price DESC"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var env struct {
		Success bool            `json:"success"`
		Data    database.Result `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if !env.Success {
		t.Error("success should be true")
	}
	if env.Data.TotalRows != 3 {
		t.Errorf("total_rows = %d, want 3", env.Data.TotalRows)
	}
	if env.Data.Rows[0]["name"] != "anvil" {
		t.Errorf("first row = %v", env.Data.Rows[0])
	}
}

func TestExecuteEndpointRejectionIs400(t *testing.T) {
	server := testServer(t, &scriptedClient{})

	tests := []struct {
		name string
		sql  string
	}{
		{"write statement", "DROP TABLE products"},
		{"stacked statements", "SELECT 1; SELECT 2"},
		{"not a query", "products"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, server.Handler(), "/api/execute", ExecuteRequest{SQL: tt.sql})

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
			}

			var env errorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("failed to decode envelope: %v", err)
			}
			if env.Success {
				t.Error("success should be false")
			}
			if env.StatusCode != http.StatusBadRequest {
				t.Errorf("status_code = %d", env.StatusCode)
			}
		})
	}
}

func TestExecuteEndpointBackendFailureIs500(t *testing.T) {
	server := testServer(t, &scriptedClient{})

	rec := postJSON(t, server.Handler(), "/api/execute",
		ExecuteRequest{SQL: "SELECT * FROM missing_table"})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500, body = %s", rec.Code, rec.Body.String())
	}

	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if !strings.Contains(env.Error, "query execution failed") {
		t.Errorf("error = %q", env.Error)
	}
}

func TestChatEndpointEndToEnd(t *testing.T) {
	const query = "SELECT name, price FROM products ORDER BY price DESC LIMIT 3"

	client := &scriptedClient{turns: []llm.Response{
		{
			StopReason: "tool_use",
			Content: []interface{}{
				llm.ToolUse{
					Type:  "tool_use",
					ID:    "toolu_1",
					Name:  "execute_sql",
					Input: map[string]interface{}{"sql": query},
				},
			},
		},
		{
			StopReason: "end_turn",
			Content: []interface{}{
				llm.TextContent{Type: "text", Text: "The most expensive product is the anvil."},
			},
		},
	}}

	server := testServer(t, client)

	rec := postJSON(t, server.Handler(), "/api/chat",
		ChatRequest{Message: "what is the most expensive product?"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var env struct {
		Success bool     `json:"success"`
		Data    ChatData `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if !env.Success {
		t.Error("success should be true")
	}
	if env.Data.SessionID == "" {
		t.Error("a session ID should be generated")
	}
	if env.Data.SQLQuery != query {
		t.Errorf("sql_query = %q", env.Data.SQLQuery)
	}
	if env.Data.RowCount != 3 {
		t.Errorf("row_count = %d, want 3", env.Data.RowCount)
	}
	if !strings.Contains(env.Data.Answer, "anvil") {
		t.Errorf("answer = %q", env.Data.Answer)
	}
}

func TestChatEndpointRequiresMessage(t *testing.T) {
	server := testServer(t, &scriptedClient{})

	rec := postJSON(t, server.Handler(), "/api/chat", ChatRequest{Message: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestClearSessionEndpoint(t *testing.T) {
	server := testServer(t, &scriptedClient{})

	// Create a session via chat, then clear it.
	rec := postJSON(t, server.Handler(), "/api/chat", ChatRequest{Message: "hi", SessionID: "sess-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/chat/sess-1", nil)
	del := httptest.NewRecorder()
	server.Handler().ServeHTTP(del, req)
	if del.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", del.Code, del.Body.String())
	}

	// Clearing again is a 404.
	again := httptest.NewRecorder()
	server.Handler().ServeHTTP(again, httptest.NewRequest(http.MethodDelete, "/api/chat/sess-1", nil))
	if again.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", again.Code)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	server := testServer(t, &scriptedClient{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schema", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "products") {
		t.Errorf("schema should name the products table: %s", rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := testServer(t, &scriptedClient{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var env struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if env.Data["status"] != "ok" {
		t.Errorf("status = %v", env.Data["status"])
	}
	if env.Data["database"] != true {
		t.Errorf("database = %v, want true", env.Data["database"])
	}
}
