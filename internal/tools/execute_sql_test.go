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
	"strings"
	"testing"

	"querychat/internal/database"
)

func testHandle(t *testing.T) *database.Handle {
	t.Helper()

	rows := make([][]interface{}, 150)
	for i := range rows {
		rows[i] = []interface{}{i + 1, "item"}
	}

	h, err := database.Open(context.Background(), database.Config{
		Kind: database.KindMemory,
		Datasets: map[string]database.Dataset{
			"items": {Columns: []string{"id", "label"}, Rows: rows},
		},
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func testRegistry(t *testing.T) (*Registry, *database.Handle) {
	t.Helper()

	h := testHandle(t)
	reg := NewRegistry()
	reg.Register("execute_sql", NewExecuteSQLTool(h))
	reg.Register("describe_schema", NewDescribeSchemaTool(h))
	return reg, h
}

func TestExecuteSQLReturnsRowsAsJSON(t *testing.T) {
	reg, _ := testRegistry(t)

	resp, err := reg.Execute(context.Background(), "execute_sql",
		map[string]interface{}{"sql": "SELECT id FROM items WHERE id <= 2 ORDER BY id"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.IsError {
		t.Fatalf("unexpected tool error: %s", resp.Content[0].Text)
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal([]byte(resp.Content[0].Text), &rows); err != nil {
		t.Fatalf("tool output is not a JSON array: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want 2", len(rows))
	}
	if resp.SQL == "" || resp.Result == nil {
		t.Error("structured SQL and Result should be populated on success")
	}
}

func TestExecuteSQLAppendsTruncationNote(t *testing.T) {
	reg, _ := testRegistry(t)

	resp, err := reg.Execute(context.Background(), "execute_sql",
		map[string]interface{}{"sql": "SELECT * FROM items"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	text := resp.Content[0].Text
	if !strings.Contains(text, "Showing first 100 of 150 rows") {
		t.Errorf("truncation note missing from tool output:\n%s", text)
	}
	if resp.Result.TotalRows != 150 {
		t.Errorf("TotalRows = %d, want 150", resp.Result.TotalRows)
	}
}

func TestExecuteSQLRejectionIsToolError(t *testing.T) {
	reg, _ := testRegistry(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"write statement", map[string]interface{}{"sql": "DELETE FROM items"}},
		{"stacked statements", map[string]interface{}{"sql": "SELECT 1; SELECT 2"}},
		{"missing argument", map[string]interface{}{}},
		{"blank argument", map[string]interface{}{"sql": "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := reg.Execute(context.Background(), "execute_sql", tt.args)
			if err != nil {
				t.Fatalf("tool failures must not be Go errors: %v", err)
			}
			if !resp.IsError {
				t.Errorf("expected IsError for %s", tt.name)
			}
		})
	}
}

func TestExecuteSQLBackendFailureIsToolError(t *testing.T) {
	reg, _ := testRegistry(t)

	resp, err := reg.Execute(context.Background(), "execute_sql",
		map[string]interface{}{"sql": "SELECT * FROM missing_table"})
	if err != nil {
		t.Fatalf("tool failures must not be Go errors: %v", err)
	}
	if !resp.IsError {
		t.Error("expected IsError for a backend failure")
	}
	if !strings.Contains(resp.Content[0].Text, "query execution failed") {
		t.Errorf("error text should identify an execution failure: %s", resp.Content[0].Text)
	}
}

func TestDescribeSchemaTool(t *testing.T) {
	reg, _ := testRegistry(t)

	resp, err := reg.Execute(context.Background(), "describe_schema", nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.IsError {
		t.Fatalf("unexpected tool error: %s", resp.Content[0].Text)
	}
	if !strings.Contains(resp.Content[0].Text, "items") {
		t.Errorf("schema should name the items table:\n%s", resp.Content[0].Text)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	reg, _ := testRegistry(t)

	resp, err := reg.Execute(context.Background(), "drop_database", nil)
	if err != nil {
		t.Fatalf("unknown tool must not be a Go error: %v", err)
	}
	if !resp.IsError {
		t.Error("expected IsError for unknown tool")
	}
}

func TestRegistryListIsOrdered(t *testing.T) {
	reg, _ := testRegistry(t)

	defs := reg.List()
	if len(defs) != 2 {
		t.Fatalf("got %d tools, want 2", len(defs))
	}
	if defs[0].Name != "execute_sql" || defs[1].Name != "describe_schema" {
		t.Errorf("tools out of registration order: %s, %s", defs[0].Name, defs[1].Name)
	}
}
