/*-------------------------------------------------------------------------
 *
 * QueryChat Natural Language SQL Agent
 *
 * Copyright (c) 2025, the QueryChat authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package sqlguard is the read-only gate between LLM-generated SQL and a
// live connection. It is a lexical classifier, not a parser: cheap, fast,
// and deliberately conservative. Pair it with a database role that has no
// write grants; the gate is defense-in-depth, not a security boundary.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// RejectionError is returned when a candidate query fails validation.
// The reason is written for direct display to an end user.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

// denylist holds statement keywords that indicate mutation or
// privilege/schema operations. Matched as whole words only, so
// identifiers like dropout_rate or update_log_view pass.
var denylist = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE",
	"TRUNCATE", "REPLACE", "GRANT", "REVOKE", "ATTACH", "DETACH",
	"PRAGMA", "EXEC",
}

var (
	leadingToken = regexp.MustCompile(`^(SELECT|WITH)\b`)
	denyPatterns = compileDenylist()
)

func compileDenylist() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(denylist))
	for _, kw := range denylist {
		patterns[kw] = regexp.MustCompile(`\b` + kw + `\b`)
	}
	return patterns
}

// Validate classifies a candidate SQL statement as safe to execute
// read-only. A nil return is an accept; a non-nil return is always a
// *RejectionError whose reason names the offending keyword or the missing
// leading token. Validation is pure: it never touches a connection and
// the input string is not modified (classification runs on a case-folded
// working copy).
func Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return &RejectionError{
			Reason: "Query is empty. Only SELECT or WITH (CTE) statements are allowed.",
		}
	}

	upper := strings.ToUpper(trimmed)

	if !leadingToken.MatchString(upper) {
		return &RejectionError{
			Reason: "Only SELECT or WITH (CTE) statements are allowed. The query must begin with SELECT or WITH.",
		}
	}

	for _, kw := range denylist {
		if denyPatterns[kw].MatchString(upper) {
			return &RejectionError{
				Reason: fmt.Sprintf("Query contains forbidden keyword: %s. Only read-only SELECT statements are allowed.", kw),
			}
		}
	}

	// Reject stacked statements. The separator check runs on a copy with
	// string literals and comments stripped so a ';' inside a literal does
	// not false-positive; a single trailing semicolon is tolerated.
	stripped := stripLiteralsAndComments(trimmed)
	if idx := strings.Index(stripped, ";"); idx != -1 {
		if strings.TrimSpace(stripped[idx+1:]) != "" {
			return &RejectionError{
				Reason: "Multiple SQL statements are not allowed. Submit a single SELECT statement.",
			}
		}
	}

	return nil
}

// stripLiteralsAndComments replaces string literal contents and removes
// SQL comments so keyword and separator scans cannot be defeated by
// payloads hidden inside quotes or comments. Handles single-quoted
// strings with '' escaping, double-quoted and backtick-quoted
// identifiers, -- line comments, and /* */ block comments.
func stripLiteralsAndComments(sql string) string {
	var out strings.Builder
	i := 0
	n := len(sql)

	for i < n {
		// Line comment.
		if i+1 < n && sql[i] == '-' && sql[i+1] == '-' {
			for i < n && sql[i] != '\n' {
				i++
			}
			out.WriteByte(' ')
			continue
		}

		// Block comment.
		if i+1 < n && sql[i] == '/' && sql[i+1] == '*' {
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2
			out.WriteByte(' ')
			continue
		}

		// Single-quoted string literal, '' is an escaped quote.
		if sql[i] == '\'' {
			i++
			for i < n {
				if sql[i] == '\'' {
					if i+1 < n && sql[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			out.WriteString("''")
			continue
		}

		// Double-quoted identifier.
		if sql[i] == '"' {
			out.WriteByte('"')
			i++
			for i < n {
				if sql[i] == '"' {
					if i+1 < n && sql[i+1] == '"' {
						out.WriteString(`""`)
						i += 2
						continue
					}
					out.WriteByte('"')
					i++
					break
				}
				out.WriteByte(sql[i])
				i++
			}
			continue
		}

		// Backtick-quoted identifier (MySQL compatibility).
		if sql[i] == '`' {
			out.WriteByte('`')
			i++
			for i < n && sql[i] != '`' {
				out.WriteByte(sql[i])
				i++
			}
			if i < n {
				out.WriteByte('`')
				i++
			}
			continue
		}

		out.WriteByte(sql[i])
		i++
	}

	return out.String()
}
