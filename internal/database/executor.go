/*-------------------------------------------------------------------------
 *
 * QueryChat Natural Language SQL Agent
 *
 * Copyright (c) 2025, the QueryChat authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"context"
	"fmt"
	"time"

	"querychat/internal/logging"
	"querychat/internal/sqlguard"
)

// MaxRows caps the number of rows returned to the caller. The true row
// count is always reported separately in Result.TotalRows.
const MaxRows = 100

// Execute runs a validated query against the handle and materializes the
// result. The candidate is re-validated here defensively: a caller that
// skipped the gate gets the same *sqlguard.RejectionError it would have
// gotten up front, and nothing reaches the backend. Backend failures come
// back as *ExecError so callers can distinguish "unsafe" from "failed to
// run".
func Execute(ctx context.Context, h *Handle, sqlText string) (*Result, error) {
	if err := sqlguard.Validate(sqlText); err != nil {
		return nil, err
	}

	if err := h.Ensure(ctx); err != nil {
		return nil, &ExecError{Err: err}
	}

	queryCtx, cancel := context.WithTimeout(ctx, h.Timeout())
	defer cancel()

	start := time.Now()
	rows, err := h.DB().QueryContext(queryCtx, sqlText)
	if err != nil {
		return nil, &ExecError{Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecError{Err: err}
	}

	result := &Result{Columns: columns, Rows: []Row{}}

	values := make([]interface{}, len(columns))
	scanArgs := make([]interface{}, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		result.TotalRows++
		if result.TotalRows > MaxRows {
			// Keep counting; the remainder is materialized only for the
			// true total, never returned.
			continue
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, &ExecError{Err: err}
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, &ExecError{Err: err}
	}

	if result.Truncated() {
		result.Note = fmt.Sprintf(
			"Showing first %d of %d rows. Narrow the query with a LIMIT clause or additional filters to see specific rows.",
			MaxRows, result.TotalRows)
	}

	logging.Debug("query executed",
		"rows", result.TotalRows,
		"truncated", result.Truncated(),
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// normalizeValue maps driver-specific scan values onto the scalar set the
// rest of the system speaks: string, number, bool, or nil.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}
