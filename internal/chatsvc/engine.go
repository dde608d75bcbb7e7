/*-------------------------------------------------------------------------
 *
 * QueryChat Natural Language SQL Agent
 *
 * Copyright (c) 2025, the QueryChat authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package chatsvc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"querychat/internal/database"
	"querychat/internal/llm"
	"querychat/internal/logging"
	"querychat/internal/tools"
)

// maxToolRounds bounds the agentic loop so a confused model cannot spin
// forever calling tools.
const maxToolRounds = 10

// Answer is the outcome of one conversation turn: the model's prose plus
// the last SQL query it ran and that query's result, when it ran one.
type Answer struct {
	Text   string
	SQL    string
	Result *database.Result
}

// Engine turns natural-language questions into answered conversation
// turns. It owns the tool loop: the model decides when to call tools,
// the engine executes them through the registry and feeds results back
// until the model produces a final text response.
type Engine struct {
	registry *tools.Registry
	schema   string
	store    *Store

	mu     sync.RWMutex
	client llm.Client
}

// NewEngine creates an engine over the given model client, tool
// registry, and schema description.
func NewEngine(client llm.Client, registry *tools.Registry, schema string, store *Store) *Engine {
	return &Engine{
		client:   client,
		registry: registry,
		schema:   schema,
		store:    store,
	}
}

// Store exposes the session store for callers that manage sessions
// directly, such as the HTTP API's session-clearing endpoint.
func (e *Engine) Store() *Store {
	return e.store
}

// SetClient replaces the model client. Configuration reloads use this
// to apply provider and model changes without a restart; sessions in
// flight finish their current round on the old client.
func (e *Engine) SetClient(client llm.Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client = client
}

func (e *Engine) chatClient() llm.Client {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client
}

// Ask runs one conversation turn in the given session. The session is
// created on first use; its history carries across calls.
func (e *Engine) Ask(ctx context.Context, sessionID, message string) (Answer, error) {
	if strings.TrimSpace(message) == "" {
		return Answer{}, fmt.Errorf("message must not be empty")
	}

	sess := e.store.GetOrCreate(sessionID)

	// One turn at a time per session: a concurrent request for the same
	// session waits its turn instead of racing on the history.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// The schema rides in the first user turn of the session; the model
	// can re-read it later through the describe_schema tool.
	content := message
	if len(sess.Messages) == 0 {
		content = e.preamble() + "\n\nQuestion: " + message
	}
	sess.Messages = append(sess.Messages, llm.Message{Role: "user", Content: content})

	var answer Answer

	for round := 0; round < maxToolRounds; round++ {
		response, err := e.chatClient().Chat(ctx, sess.Messages, e.registry.List())
		if err != nil {
			return Answer{}, fmt.Errorf("LLM error: %w", err)
		}

		if response.StopReason == "tool_use" {
			var toolUses []llm.ToolUse
			for _, item := range response.Content {
				if use, ok := item.(llm.ToolUse); ok {
					toolUses = append(toolUses, use)
				}
			}

			sess.Messages = append(sess.Messages, llm.Message{
				Role:    "assistant",
				Content: response.Content,
			})

			toolResults := make([]interface{}, 0, len(toolUses))
			for _, use := range toolUses {
				logging.Debug("executing tool", "tool", use.Name, "session", sessionID)

				result, err := e.registry.Execute(ctx, use.Name, use.Input)
				if err != nil {
					toolResults = append(toolResults, llm.ToolResult{
						Type:      "tool_result",
						ToolUseID: use.ID,
						Content:   fmt.Sprintf("Error: %v", err),
						IsError:   true,
					})
					continue
				}

				if result.SQL != "" {
					answer.SQL = result.SQL
					answer.Result = result.Result
				}

				toolResults = append(toolResults, llm.ToolResult{
					Type:      "tool_result",
					ToolUseID: use.ID,
					Content:   joinContent(result.Content),
					IsError:   result.IsError,
				})
			}

			sess.Messages = append(sess.Messages, llm.Message{
				Role:    "user",
				Content: toolResults,
			})
			continue
		}

		// Final response
		var textParts []string
		for _, item := range response.Content {
			if text, ok := item.(llm.TextContent); ok {
				textParts = append(textParts, text.Text)
			}
		}
		answer.Text = strings.Join(textParts, "\n")

		sess.Messages = append(sess.Messages, llm.Message{
			Role:    "assistant",
			Content: answer.Text,
		})

		// Some models answer with a bare SQL statement instead of
		// calling the tool. Run it through the same gate and executor
		// so the caller still gets structured results.
		if answer.SQL == "" {
			e.executeInlineSQL(ctx, &answer)
		}

		sess.LastSQL = answer.SQL
		sess.LastResult = answer.Result
		return answer, nil
	}

	return Answer{}, fmt.Errorf("reached maximum number of tool calls (%d)", maxToolRounds)
}

func (e *Engine) executeInlineSQL(ctx context.Context, answer *Answer) {
	sqlText := llm.CleanSQL(answer.Text)
	if sqlText == "" {
		return
	}

	result, err := e.registry.Execute(ctx, "execute_sql", map[string]interface{}{"sql": sqlText})
	if err != nil || result.IsError {
		return
	}
	answer.SQL = result.SQL
	answer.Result = result.Result
}

func (e *Engine) preamble() string {
	return fmt.Sprintf(`You are a helpful assistant that answers questions about a database by writing and running read-only SQL queries.

Database schema:
%s

Use the execute_sql tool to run queries. Only SELECT and WITH statements are allowed. Base every answer on actual query results, never on guesses.`, e.schema)
}

func joinContent(items []tools.ContentItem) string {
	var parts []string
	for _, item := range items {
		parts = append(parts, item.Text)
	}
	return strings.Join(parts, "\n")
}
