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
	"sort"
	"strings"
)

// validateDatasets rejects seeds the in-memory strategy cannot load:
// an empty mapping, a blank table name, or a name that collides after
// case folding.
func validateDatasets(datasets map[string]Dataset) error {
	if len(datasets) == 0 {
		return fmt.Errorf("in-memory backend requires at least one dataset")
	}

	seen := make(map[string]string, len(datasets))
	for name, ds := range datasets {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("in-memory dataset has a blank table name")
		}
		folded := strings.ToLower(name)
		if prev, dup := seen[folded]; dup {
			return fmt.Errorf("duplicate table name in datasets: %q collides with %q", name, prev)
		}
		seen[folded] = name

		if len(ds.Columns) == 0 {
			return fmt.Errorf("dataset %q has no columns", name)
		}
		for i, row := range ds.Rows {
			if len(row) != len(ds.Columns) {
				return fmt.Errorf("dataset %q row %d has %d values, want %d", name, i, len(row), len(ds.Columns))
			}
		}
	}
	return nil
}

// loadDatasets materializes each dataset as a table named after its key.
// Table order is deterministic so reseeding after a reconnect produces
// the same database.
func loadDatasets(ctx context.Context, db *sql.DB, datasets map[string]Dataset) error {
	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ds := datasets[name]
		if err := createTable(ctx, db, name, ds); err != nil {
			return fmt.Errorf("failed to load dataset %q: %w", name, err)
		}
	}
	return nil
}

func createTable(ctx context.Context, db *sql.DB, name string, ds Dataset) error {
	defs := make([]string, len(ds.Columns))
	for i, col := range ds.Columns {
		defs[i] = quoteIdent(col) + " " + inferColumnType(ds.Rows, i)
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return err
	}

	if len(ds.Rows) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ds.Columns)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), placeholders)

	stmt, err := db.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range ds.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return err
		}
	}
	return nil
}

// inferColumnType picks a sqlite affinity from the first non-nil value
// in the column; TEXT when the column is all nulls.
func inferColumnType(rows [][]interface{}, col int) string {
	for _, row := range rows {
		switch row[col].(type) {
		case nil:
			continue
		case int, int32, int64:
			return "INTEGER"
		case float32, float64:
			return "REAL"
		case bool:
			return "BOOLEAN"
		case []byte:
			return "BLOB"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
