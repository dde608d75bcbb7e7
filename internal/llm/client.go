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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultAnthropicBaseURL = "https://api.anthropic.com/v1"

// Message represents a chat message
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// TextContent represents text content in a message
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolUse represents a tool invocation requested by the model
type ToolUse struct {
	Type  string                 `json:"type"`
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ToolResult carries the outcome of a tool execution back to the model
type ToolResult struct {
	Type      string      `json:"type"`
	ToolUseID string      `json:"tool_use_id"`
	Content   interface{} `json:"content"`
	IsError   bool        `json:"is_error,omitempty"`
}

// InputSchema is a JSON Schema fragment describing a tool's arguments
type InputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

// ToolDef describes a tool the model may call
type ToolDef struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// Response is a provider-neutral model turn
type Response struct {
	Content    []interface{} // TextContent or ToolUse
	StopReason string
}

// Client provides a unified interface for different LLM providers
type Client interface {
	// Chat sends messages and available tools to the model and returns
	// its next turn.
	Chat(ctx context.Context, messages []Message, tools []ToolDef) (Response, error)
}

// anthropicClient implements Client for the Anthropic messages API
type anthropicClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(apiKey, model string, maxTokens int, temperature float64) Client {
	return &anthropicClient{
		apiKey:      apiKey,
		baseURL:     defaultAnthropicBaseURL,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		client:      &http.Client{},
	}
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	Tools       []ToolDef `json:"tools,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	ID         string                   `json:"id"`
	Type       string                   `json:"type"`
	Role       string                   `json:"role"`
	Content    []map[string]interface{} `json:"content"`
	StopReason string                   `json:"stop_reason"`
}

func (c *anthropicClient) Chat(ctx context.Context, messages []Message, tools []ToolDef) (Response, error) {
	req := anthropicRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Messages:    messages,
		Tools:       tools,
		Temperature: c.temperature,
	}

	reqData, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewBuffer(reqData))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Response{}, fmt.Errorf("API error %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return Response{}, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var anthropicResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}

	// Convert response content to typed structs
	content := make([]interface{}, 0, len(anthropicResp.Content))
	for _, item := range anthropicResp.Content {
		itemType, ok := item["type"].(string)
		if !ok {
			continue
		}
		switch itemType {
		case "text":
			text, ok := item["text"].(string)
			if !ok {
				continue
			}
			content = append(content, TextContent{
				Type: "text",
				Text: text,
			})
		case "tool_use":
			id, ok := item["id"].(string)
			if !ok {
				continue
			}
			name, ok := item["name"].(string)
			if !ok {
				continue
			}
			input, ok := item["input"].(map[string]interface{})
			if !ok {
				input = make(map[string]interface{})
			}
			content = append(content, ToolUse{
				Type:  "tool_use",
				ID:    id,
				Name:  name,
				Input: input,
			})
		}
	}

	return Response{
		Content:    content,
		StopReason: anthropicResp.StopReason,
	}, nil
}

// ollamaClient implements Client for Ollama
type ollamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(baseURL, model string) Client {
	return &ollamaClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// toolCallRequest represents a tool call parsed from Ollama's response
type toolCallRequest struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (c *ollamaClient) Chat(ctx context.Context, messages []Message, tools []ToolDef) (Response, error) {
	// Ollama has no native tool-use channel, so tools are described in a
	// system message and calls come back as a bare JSON object.
	systemMessage := fmt.Sprintf(`You are a helpful database assistant. You have access to the following tools:

%s

IMPORTANT INSTRUCTIONS:
1. When you need to use a tool, respond with ONLY a JSON object - no other text before or after:
{
    "tool": "tool_name",
    "arguments": {
        "param1": "value1"
    }
}

2. After calling a tool, you will receive actual results from the database.
3. You MUST base your response ONLY on the actual tool results provided - never make up or guess data.
4. If you receive tool results, format them clearly for the user.
5. Only use tools when necessary to answer the user's question.`, formatToolsForPrompt(tools))

	ollamaMessages := []ollamaMessage{
		{
			Role:    "system",
			Content: systemMessage,
		},
	}

	for _, msg := range messages {
		switch content := msg.Content.(type) {
		case string:
			ollamaMessages = append(ollamaMessages, ollamaMessage{
				Role:    msg.Role,
				Content: content,
			})
		case []interface{}:
			// Flatten tool results into plain text
			var parts []string
			for _, item := range content {
				if tr, ok := item.(ToolResult); ok {
					parts = append(parts, fmt.Sprintf("Tool result:\n%s", flattenToolResult(tr.Content)))
				}
			}
			if len(parts) > 0 {
				ollamaMessages = append(ollamaMessages, ollamaMessage{
					Role:    msg.Role,
					Content: strings.Join(parts, "\n\n"),
				})
			}
		}
	}

	req := ollamaRequest{
		Model:    c.model,
		Messages: ollamaMessages,
		Stream:   false,
	}

	reqData, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewBuffer(reqData))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Response{}, fmt.Errorf("API error %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return Response{}, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}

	content := ollamaResp.Message.Content

	var toolCall toolCallRequest
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &toolCall); err == nil && toolCall.Tool != "" {
		return Response{
			Content: []interface{}{
				ToolUse{
					Type:  "tool_use",
					ID:    "ollama-tool-1", // Ollama doesn't provide IDs
					Name:  toolCall.Tool,
					Input: toolCall.Arguments,
				},
			},
			StopReason: "tool_use",
		}, nil
	}

	return Response{
		Content: []interface{}{
			TextContent{
				Type: "text",
				Text: content,
			},
		},
		StopReason: "end_turn",
	}, nil
}

func flattenToolResult(content interface{}) string {
	switch c := content.(type) {
	case string:
		return c
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Sprintf("%v", c)
		}
		return string(data)
	}
}

func formatToolsForPrompt(tools []ToolDef) string {
	var toolDescriptions []string
	for _, tool := range tools {
		toolDesc := fmt.Sprintf("- %s: %s", tool.Name, tool.Description)

		if len(tool.InputSchema.Properties) > 0 {
			var params []string
			for paramName, paramInfo := range tool.InputSchema.Properties {
				paramMap, ok := paramInfo.(map[string]interface{})
				if !ok {
					continue
				}
				paramType, _ := paramMap["type"].(string)        //nolint:errcheck // Optional field, default to empty
				paramDesc, _ := paramMap["description"].(string) //nolint:errcheck // Optional field, default to empty
				if paramType == "" {
					paramType = "any"
				}
				params = append(params, fmt.Sprintf("%s (%s): %s", paramName, paramType, paramDesc))
			}
			if len(params) > 0 {
				toolDesc += "\n  Parameters:\n    " + strings.Join(params, "\n    ")
			}
		}

		toolDescriptions = append(toolDescriptions, toolDesc)
	}

	return strings.Join(toolDescriptions, "\n")
}
