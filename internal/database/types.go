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

// ColumnInfo describes one column of a table
type ColumnInfo struct {
	Name       string
	DataType   string
	NotNull    bool
	PrimaryKey bool
}

// TableInfo describes a table and its ordered columns
type TableInfo struct {
	Name    string
	Columns []ColumnInfo
}

// Row is a single result row keyed by column name. Values are scalars:
// string, number, bool, or nil.
type Row map[string]interface{}

// Result is the outcome of executing a validated query. Rows holds at
// most MaxRows entries; TotalRows is the true count before truncation.
type Result struct {
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"rows"`
	TotalRows int      `json:"total_rows"`
	Note      string   `json:"note,omitempty"`
}

// Truncated reports whether rows were dropped to honor the cap
func (r *Result) Truncated() bool {
	return r.TotalRows > len(r.Rows)
}

// Dataset is an in-process columnar table used to seed the in-memory
// backend. Each row must have exactly len(Columns) values.
type Dataset struct {
	Columns []string
	Rows    [][]interface{}
}
