/*-------------------------------------------------------------------------
 *
 * QueryChat Natural Language SQL Agent
 *
 * Copyright (c) 2025, the QueryChat authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"

	"querychat/internal/database"
	"querychat/internal/llm"
)

// ContentItem is one piece of tool output
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response is the outcome of a tool execution. Failures a model should
// see (rejected SQL, backend errors) come back with IsError set, not as
// a Go error; Go errors are reserved for infrastructure faults.
type Response struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"is_error,omitempty"`

	// SQL and Result carry the structured outcome for callers that
	// need more than the model-facing text, such as the HTTP API.
	SQL    string           `json:"-"`
	Result *database.Result `json:"-"`
}

// Handler is a function that executes a tool
type Handler func(ctx context.Context, args map[string]interface{}) (Response, error)

// Tool pairs a model-facing definition with its handler
type Tool struct {
	Definition llm.ToolDef
	Handler    Handler
}

// Registry manages the tools exposed to the model
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry
func (r *Registry) Register(name string, tool Tool) {
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tool definitions in registration order
func (r *Registry) List() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Execute runs a tool by name with the given arguments
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (Response, error) {
	tool, exists := r.Get(name)
	if !exists {
		return errorResponse("Tool not found: " + name), nil
	}
	return tool.Handler(ctx, args)
}

func textResponse(text string) Response {
	return Response{
		Content: []ContentItem{{Type: "text", Text: text}},
	}
}

func errorResponse(text string) Response {
	return Response{
		Content: []ContentItem{{Type: "text", Text: text}},
		IsError: true,
	}
}
