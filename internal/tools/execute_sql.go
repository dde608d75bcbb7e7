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
	"encoding/json"
	"fmt"
	"strings"

	"querychat/internal/database"
	"querychat/internal/llm"
)

// NewExecuteSQLTool exposes read-only query execution to the model. The
// handler reports rejected and failed queries through IsError so the
// model can correct itself and try again; it never returns a Go error
// for them.
func NewExecuteSQLTool(h *database.Handle) Tool {
	return Tool{
		Definition: llm.ToolDef{
			Name: "execute_sql",
			Description: "Execute a read-only SQL query against the connected database. " +
				"Only SELECT and WITH statements are accepted. " +
				"Results are returned as a JSON array of row objects, capped at " +
				fmt.Sprintf("%d rows.", database.MaxRows),
			InputSchema: llm.InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"sql": map[string]interface{}{
						"type":        "string",
						"description": "The SQL query to execute",
					},
				},
				Required: []string{"sql"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (Response, error) {
			sqlText, ok := args["sql"].(string)
			if !ok || strings.TrimSpace(sqlText) == "" {
				return errorResponse("Missing required parameter: sql"), nil
			}

			result, err := database.Execute(ctx, h, sqlText)
			if err != nil {
				return errorResponse(err.Error()), nil
			}

			data, err := json.Marshal(result.Rows)
			if err != nil {
				return Response{}, fmt.Errorf("failed to marshal result rows: %w", err)
			}

			text := string(data)
			if result.Note != "" {
				text += "\n\n" + result.Note
			}

			resp := textResponse(text)
			resp.SQL = sqlText
			resp.Result = result
			return resp, nil
		},
	}
}

// NewDescribeSchemaTool lets the model re-read the schema mid-session,
// for example after its first query fails on a misspelled column.
func NewDescribeSchemaTool(h *database.Handle) Tool {
	return Tool{
		Definition: llm.ToolDef{
			Name:        "describe_schema",
			Description: "Describe the tables and columns of the connected database.",
			InputSchema: llm.InputSchema{
				Type:       "object",
				Properties: map[string]interface{}{},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (Response, error) {
			schema, err := database.Describe(ctx, h)
			if err != nil {
				return errorResponse(err.Error()), nil
			}
			return textResponse(schema), nil
		},
	}
}
