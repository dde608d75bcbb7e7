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

import "testing"

func TestCleanSQL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain query",
			input: "SELECT * FROM products",
			want:  "SELECT * FROM products",
		},
		{
			name:  "markdown fence",
			input: "```sql\nSELECT name FROM products\n```",
			want:  "SELECT name FROM products",
		},
		{
			name:  "bare fence",
			input: "```\nSELECT 1\n```",
			want:  "SELECT 1",
		},
		{
			name:  "leading prose",
			input: "Here is the query you asked for:\n\nSELECT COUNT(*) FROM orders",
			want:  "SELECT COUNT(*) FROM orders",
		},
		{
			name:  "trailing explanation",
			input: "SELECT id FROM users\nThis query returns all user IDs.",
			want:  "SELECT id FROM users",
		},
		{
			name:  "line comments stripped",
			input: "-- fetch everything\nSELECT * FROM t -- inline note",
			want:  "SELECT * FROM t",
		},
		{
			name:  "block comment stripped",
			input: "SELECT /* all columns */ * FROM t",
			want:  "SELECT * FROM t",
		},
		{
			name:  "stops at first semicolon",
			input: "SELECT 1; SELECT 2",
			want:  "SELECT 1",
		},
		{
			name:  "multiline statement collapses",
			input: "SELECT name,\n  price\nFROM products\nORDER BY price",
			want:  "SELECT name, price FROM products ORDER BY price",
		},
		{
			name:  "cte preserved",
			input: "WITH top AS (SELECT 1) SELECT * FROM top",
			want:  "WITH top AS (SELECT 1) SELECT * FROM top",
		},
		{
			name:  "no sql at all",
			input: "I cannot answer that question.",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanSQL(tt.input); got != tt.want {
				t.Errorf("CleanSQL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
