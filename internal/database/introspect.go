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
	"database/sql"
	"fmt"
	"strings"
	"time"

	"querychat/internal/logging"
)

// NoTablesSentinel is returned when the database has no user tables, so
// the result is always safe to interpolate into a prompt.
const NoTablesSentinel = "No tables found in the database."

// maxSchemaBytes caps the rendered schema so very wide schemas cannot
// blow up the system prompt. Truncation happens on block boundaries.
const maxSchemaBytes = 32 * 1024

const schemaTruncatedMarker = "... (schema truncated)"

// Describe renders the schema of the connected database as a prompt-ready
// text block: one block per table, blank line between blocks, one
// indented line per column with declared type, NOT NULL, and PRIMARY KEY
// markers where available.
//
// Metadata is fetched per table through a three-tier fallback: the
// backend's rich metadata query, then a zero-row probe, then a plain
// column-name listing. A failing tier degrades that table only; sibling
// tables are introspected independently.
func Describe(ctx context.Context, h *Handle) (string, error) {
	if err := h.Ensure(ctx); err != nil {
		return "", fmt.Errorf("schema introspection failed: %w", err)
	}
	return newIntrospector(h).describe(ctx)
}

// introspector holds the tier implementations for one backend dialect.
// The function fields exist so the degrade chain is testable without a
// backend that fails on cue.
type introspector struct {
	listTables func(ctx context.Context) ([]string, error)
	rich       func(ctx context.Context, table string) ([]ColumnInfo, error)
	probe      func(ctx context.Context, table string) ([]ColumnInfo, error)
	names      func(ctx context.Context, table string) ([]string, error)
}

func newIntrospector(h *Handle) *introspector {
	db := h.DB()
	timeout := h.Timeout()

	in := &introspector{
		probe: func(ctx context.Context, table string) ([]ColumnInfo, error) {
			return probeColumns(ctx, db, timeout, quoteTable(h.dialect, table))
		},
		names: func(ctx context.Context, table string) ([]string, error) {
			return probeNames(ctx, db, timeout, quoteTable(h.dialect, table))
		},
	}

	switch h.dialect {
	case "postgres":
		in.listTables = func(ctx context.Context) ([]string, error) {
			return queryStrings(ctx, db, timeout,
				`SELECT table_name FROM information_schema.tables
				 WHERE table_schema = 'public' AND table_type IN ('BASE TABLE', 'VIEW')
				 ORDER BY table_name`)
		}
		in.rich = func(ctx context.Context, table string) ([]ColumnInfo, error) {
			return postgresColumns(ctx, db, timeout, table)
		}
	case "mysql":
		in.listTables = func(ctx context.Context) ([]string, error) {
			return queryStrings(ctx, db, timeout,
				`SELECT table_name FROM information_schema.tables
				 WHERE table_schema = DATABASE()
				 ORDER BY table_name`)
		}
		in.rich = func(ctx context.Context, table string) ([]ColumnInfo, error) {
			return mysqlColumns(ctx, db, timeout, table)
		}
	default: // sqlite, both file-backed and in-memory
		in.listTables = func(ctx context.Context) ([]string, error) {
			return queryStrings(ctx, db, timeout,
				`SELECT name FROM sqlite_master
				 WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
				 ORDER BY name`)
		}
		in.rich = func(ctx context.Context, table string) ([]ColumnInfo, error) {
			return sqliteColumns(ctx, db, timeout, table)
		}
	}

	return in
}

func (in *introspector) describe(ctx context.Context) (string, error) {
	tables, err := in.listTables(ctx)
	if err != nil {
		return "", fmt.Errorf("schema introspection failed: %w", err)
	}
	if len(tables) == 0 {
		return NoTablesSentinel, nil
	}

	var blocks []string
	for _, table := range tables {
		info := TableInfo{Name: table, Columns: in.columnsFor(ctx, table)}
		blocks = append(blocks, renderTable(info))
	}

	return capSchema(blocks), nil
}

// columnsFor walks the fallback chain for one table. Tier failures are
// debug-logged, never surfaced: a table we cannot fully describe still
// gets the best block we can produce.
func (in *introspector) columnsFor(ctx context.Context, table string) []ColumnInfo {
	cols, err := in.rich(ctx, table)
	if err == nil {
		return cols
	}
	logging.Debug("rich metadata unavailable, probing", "table", table, "error", err.Error())

	cols, err = in.probe(ctx, table)
	if err == nil {
		return cols
	}
	logging.Debug("zero-row probe failed, listing names", "table", table, "error", err.Error())

	names, err := in.names(ctx, table)
	if err != nil {
		logging.Debug("column listing failed", "table", table, "error", err.Error())
		return nil
	}
	cols = make([]ColumnInfo, len(names))
	for i, name := range names {
		cols[i] = ColumnInfo{Name: name}
	}
	return cols
}

func sqliteColumns(ctx context.Context, db *sql.DB, timeout time.Duration, table string) ([]ColumnInfo, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx,
		`SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var name, dataType string
		var notNull, pk int
		if err := rows.Scan(&name, &dataType, &notNull, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{
			Name:       name,
			DataType:   dataType,
			NotNull:    notNull == 1,
			PrimaryKey: pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no column metadata for table %s", table)
	}
	return cols, nil
}

func postgresColumns(ctx context.Context, db *sql.DB, timeout time.Duration, table string) ([]ColumnInfo, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, `
		SELECT c.column_name, c.data_type, c.is_nullable,
		       CASE WHEN pk.column_name IS NOT NULL THEN 'PRI' ELSE '' END
		FROM information_schema.columns c
		LEFT JOIN (
		    SELECT kcu.column_name
		    FROM information_schema.table_constraints tc
		    JOIN information_schema.key_column_usage kcu
		      ON kcu.constraint_name = tc.constraint_name
		     AND kcu.table_schema = tc.table_schema
		     AND kcu.table_name = tc.table_name
		    WHERE tc.constraint_type = 'PRIMARY KEY'
		      AND tc.table_schema = 'public'
		      AND tc.table_name = $1
		) pk ON pk.column_name = c.column_name
		WHERE c.table_schema = 'public' AND c.table_name = $1
		ORDER BY c.ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInfoColumns(rows, table)
}

func mysqlColumns(ctx context.Context, db *sql.DB, timeout time.Duration, table string) ([]ColumnInfo, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, `
		SELECT column_name, column_type, is_nullable, column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInfoColumns(rows, table)
}

// scanInfoColumns reads (name, type, is_nullable, key) rows as produced
// by information_schema-style metadata queries.
func scanInfoColumns(rows *sql.Rows, table string) ([]ColumnInfo, error) {
	var cols []ColumnInfo
	for rows.Next() {
		var name, dataType, nullable, key string
		if err := rows.Scan(&name, &dataType, &nullable, &key); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{
			Name:       name,
			DataType:   dataType,
			NotNull:    strings.EqualFold(nullable, "NO"),
			PrimaryKey: key == "PRI",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no column metadata for table %s", table)
	}
	return cols, nil
}

// probeColumns recovers column names and coarse types from a zero-row
// query when the rich metadata path is unavailable.
func probeColumns(ctx context.Context, db *sql.DB, timeout time.Duration, quotedTable string) ([]ColumnInfo, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, "SELECT * FROM "+quotedTable+" WHERE 1=0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	cols := make([]ColumnInfo, len(types))
	for i, ct := range types {
		col := ColumnInfo{Name: ct.Name(), DataType: ct.DatabaseTypeName()}
		if nullable, ok := ct.Nullable(); ok {
			col.NotNull = !nullable
		}
		cols[i] = col
	}
	return cols, rows.Err()
}

func probeNames(ctx context.Context, db *sql.DB, timeout time.Duration, quotedTable string) ([]string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, "SELECT * FROM "+quotedTable+" WHERE 1=0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	return names, rows.Err()
}

func queryStrings(ctx context.Context, db *sql.DB, timeout time.Duration, query string) ([]string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func renderTable(t TableInfo) string {
	var sb strings.Builder
	sb.WriteString(sanitize(t.Name))
	sb.WriteString("\n")

	if len(t.Columns) == 0 {
		sb.WriteString("  (columns unavailable)\n")
		return sb.String()
	}

	for _, col := range t.Columns {
		sb.WriteString("  ")
		sb.WriteString(sanitize(col.Name))
		if col.DataType != "" {
			sb.WriteString(" ")
			sb.WriteString(sanitize(col.DataType))
		}
		if col.NotNull {
			sb.WriteString(" NOT NULL")
		}
		if col.PrimaryKey {
			sb.WriteString(" PRIMARY KEY")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// capSchema joins blocks with blank lines, truncating on a block
// boundary once the prompt budget is exhausted.
func capSchema(blocks []string) string {
	var sb strings.Builder
	for i, block := range blocks {
		if sb.Len()+len(block) > maxSchemaBytes {
			sb.WriteString(schemaTruncatedMarker)
			break
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(block)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// sanitize strips control characters so identifiers cannot break the
// prompt structure the schema text is embedded into.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' {
			return -1
		}
		return r
	}, s)
}

func quoteTable(dialect, table string) string {
	if dialect == "mysql" {
		return "`" + strings.ReplaceAll(table, "`", "``") + "`"
	}
	return quoteIdent(table)
}
