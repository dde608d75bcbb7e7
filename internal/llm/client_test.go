/*-------------------------------------------------------------------------
 *
 * QueryChat Natural Language SQL Agent
 *
 * Copyright (c) 2025, the QueryChat authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func executeSQLToolDef() ToolDef {
	return ToolDef{
		Name:        "execute_sql",
		Description: "Run a read-only SQL query",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"sql": map[string]interface{}{
					"type":        "string",
					"description": "The SQL query to execute",
				},
			},
			Required: []string{"sql"},
		},
	}
}

func TestAnthropicChatParsesToolUse(t *testing.T) {
	var gotReq anthropicRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing x-api-key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		resp := map[string]interface{}{
			"id":   "msg_1",
			"type": "message",
			"role": "assistant",
			"content": []map[string]interface{}{
				{"type": "text", "text": "Let me check."},
				{
					"type":  "tool_use",
					"id":    "toolu_1",
					"name":  "execute_sql",
					"input": map[string]interface{}{"sql": "SELECT 1"},
				},
			},
			"stop_reason": "tool_use",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck // test server
	}))
	defer server.Close()

	client := &anthropicClient{
		apiKey:    "test-key",
		baseURL:   server.URL,
		model:     "claude-sonnet-4-5",
		maxTokens: 1024,
		client:    server.Client(),
	}

	resp, err := client.Chat(context.Background(),
		[]Message{{Role: "user", Content: "how many products?"}},
		[]ToolDef{executeSQLToolDef()})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.StopReason != "tool_use" {
		t.Errorf("StopReason = %q, want tool_use", resp.StopReason)
	}
	if len(resp.Content) != 2 {
		t.Fatalf("got %d content blocks, want 2", len(resp.Content))
	}
	text, ok := resp.Content[0].(TextContent)
	if !ok || text.Text != "Let me check." {
		t.Errorf("first block = %#v, want text", resp.Content[0])
	}
	use, ok := resp.Content[1].(ToolUse)
	if !ok {
		t.Fatalf("second block = %#v, want ToolUse", resp.Content[1])
	}
	if use.Name != "execute_sql" || use.Input["sql"] != "SELECT 1" {
		t.Errorf("unexpected tool use: %#v", use)
	}

	// The tool definitions must ride along in the request.
	if len(gotReq.Tools) != 1 || gotReq.Tools[0].Name != "execute_sql" {
		t.Errorf("request tools = %#v", gotReq.Tools)
	}
}

func TestAnthropicChatSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := &anthropicClient{
		apiKey:  "test-key",
		baseURL: server.URL,
		model:   "claude-sonnet-4-5",
		client:  server.Client(),
	}

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestOllamaChatParsesToolCallJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := ollamaResponse{
			Model: "llama3",
			Message: ollamaMessage{
				Role:    "assistant",
				Content: `{"tool": "execute_sql", "arguments": {"sql": "SELECT COUNT(*) FROM products"}}`,
			},
			Done: true,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck // test server
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3")

	resp, err := client.Chat(context.Background(),
		[]Message{{Role: "user", Content: "count products"}},
		[]ToolDef{executeSQLToolDef()})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.StopReason != "tool_use" {
		t.Errorf("StopReason = %q, want tool_use", resp.StopReason)
	}
	use, ok := resp.Content[0].(ToolUse)
	if !ok {
		t.Fatalf("content = %#v, want ToolUse", resp.Content[0])
	}
	if use.Name != "execute_sql" {
		t.Errorf("tool name = %q", use.Name)
	}
}

func TestOllamaChatPlainTextIsEndTurn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := ollamaResponse{
			Model:   "llama3",
			Message: ollamaMessage{Role: "assistant", Content: "There are 3 products."},
			Done:    true,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck // test server
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3")

	resp, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.StopReason != "end_turn" {
		t.Errorf("StopReason = %q, want end_turn", resp.StopReason)
	}
	text, ok := resp.Content[0].(TextContent)
	if !ok || text.Text != "There are 3 products." {
		t.Errorf("content = %#v", resp.Content[0])
	}
}
