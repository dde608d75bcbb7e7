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

import "strings"

// CleanSQL extracts a single SQL statement from model output: markdown
// fences, comments, and surrounding prose are stripped, and everything
// after the first semicolon is dropped. The result is normalization
// only; safety is the gate's job, which runs on the cleaned text.
func CleanSQL(input string) string {
	input = strings.TrimSpace(input)

	if after, found := strings.CutPrefix(input, "```sql"); found {
		input = after
	} else if after, found := strings.CutPrefix(input, "```"); found {
		input = after
	}
	input = strings.TrimSuffix(input, "```")
	input = strings.TrimSpace(input)

	// Remove block comments before splitting into lines
	for {
		start := strings.Index(input, "/*")
		if start == -1 {
			break
		}
		end := strings.Index(input[start:], "*/")
		if end == -1 {
			break
		}
		end += start + 2
		input = input[:start] + " " + input[end:]
	}

	lines := strings.Split(input, "\n")
	var sqlLines []string
	foundSQL := false
	hitSemicolon := false

	for _, line := range lines {
		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "--") {
			continue
		}
		if idx := strings.Index(line, "--"); idx > 0 {
			line = strings.TrimSpace(line[:idx])
		}

		if strings.Contains(line, ";") {
			parts := strings.SplitN(line, ";", 2)
			line = strings.TrimSpace(parts[0])
			hitSemicolon = true
		}

		upperLine := strings.ToUpper(line)
		isSQLStart := strings.HasPrefix(upperLine, "SELECT") ||
			strings.HasPrefix(upperLine, "WITH") ||
			strings.HasPrefix(upperLine, "EXPLAIN")

		if isSQLStart {
			foundSQL = true
		}

		if foundSQL && line != "" {
			// Prose after the statement means the model started
			// explaining; the statement is over.
			if !isSQLStart && (strings.HasPrefix(upperLine, "THIS ") ||
				strings.HasPrefix(upperLine, "THE ") ||
				strings.HasPrefix(upperLine, "WILL ") ||
				strings.HasPrefix(upperLine, "RETURNS ") ||
				strings.HasPrefix(upperLine, "NOTE:") ||
				strings.HasPrefix(upperLine, "EXPLANATION:")) {
				break
			}

			sqlLines = append(sqlLines, line)
		}

		if hitSemicolon {
			break
		}
	}

	result := strings.Join(sqlLines, " ")
	result = strings.TrimSuffix(strings.TrimSpace(result), "```")

	// Normalize whitespace
	return strings.Join(strings.Fields(result), " ")
}
