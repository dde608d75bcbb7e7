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
	"fmt"
	"strings"
)

// NotFoundError reports that a local database file does not exist.
// Surfaced at startup with remediation instructions; config-error class.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("database file not found: %s. Provide an existing SQLite database file, or point QUERYCHAT_SQLITE_PATH at one.", e.Path)
}

// UnsupportedError reports a remote driver this build does not carry.
type UnsupportedError struct {
	Driver    string
	Supported []string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported database driver %q: this build supports %s. Rebuild with the driver linked in, or use one of the supported drivers.",
		e.Driver, strings.Join(e.Supported, ", "))
}

// InvalidConfigError reports an unrecognized backend discriminator.
type InvalidConfigError struct {
	Kind    string
	Allowed []Kind
}

func (e *InvalidConfigError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, k := range e.Allowed {
		allowed[i] = string(k)
	}
	return fmt.Sprintf("invalid backend kind %q: allowed values are %s", e.Kind, strings.Join(allowed, ", "))
}

// ExecError wraps a backend failure during query execution. Distinct from
// a sqlguard rejection so callers can map the two to different status
// codes and user guidance.
type ExecError struct {
	Err error
}

func (e *ExecError) Error() string {
	return "query execution failed: " + e.Err.Error()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
