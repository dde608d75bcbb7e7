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
	"os"
	"strings"
	"sync"
	"time"

	"querychat/internal/logging"

	_ "github.com/go-sql-driver/mysql" // MySQL driver for the remote strategy
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Kind discriminates the backend strategies
type Kind string

const (
	KindSQLite Kind = "sqlite"
	KindMemory Kind = "memory"
	KindRemote Kind = "remote"
)

// AllKinds lists the recognized backend discriminators
var AllKinds = []Kind{KindSQLite, KindMemory, KindRemote}

// remoteDrivers lists the driver identifiers the remote strategy supports
var remoteDrivers = []string{"postgres", "mysql"}

// DefaultQueryTimeout bounds connection attempts, execution, and
// introspection probes when the config does not set one.
const DefaultQueryTimeout = 60 * time.Second

// Config selects and parameterizes a backend strategy
type Config struct {
	Kind Kind

	// Path is the database file for the sqlite strategy
	Path string

	// Datasets seed the in-memory strategy, keyed by table name
	Datasets map[string]Dataset

	// Driver and URL configure the remote strategy
	Driver string
	URL    string

	QueryTimeout time.Duration
}

func (c *Config) timeout() time.Duration {
	if c.QueryTimeout > 0 {
		return c.QueryTimeout
	}
	return DefaultQueryTimeout
}

// Handle is one open link to a relational backend. It is safe for
// concurrent read use; liveness is re-checked and the connection
// re-acquired transparently via Ensure, since chat sessions outlive
// individual connections.
type Handle struct {
	kind    Kind
	dialect string // "sqlite", "postgres", or "mysql"
	timeout time.Duration

	mu     sync.Mutex
	db     *sql.DB
	reopen func(ctx context.Context) (*sql.DB, error)
}

// Open resolves a backend configuration into a Handle. The Kind field is
// the dispatch discriminator; an unrecognized value fails with
// *InvalidConfigError naming the allowed set.
func Open(ctx context.Context, cfg Config) (*Handle, error) {
	switch cfg.Kind {
	case KindSQLite:
		return openSQLite(ctx, cfg)
	case KindMemory:
		return openMemory(ctx, cfg)
	case KindRemote:
		return openRemote(ctx, cfg)
	default:
		return nil, &InvalidConfigError{Kind: string(cfg.Kind), Allowed: AllKinds}
	}
}

func openSQLite(ctx context.Context, cfg Config) (*Handle, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, &NotFoundError{Path: cfg.Path}
	}

	open := func(ctx context.Context) (*sql.DB, error) {
		// mode=ro plus PRAGMA query_only is engine-level read-only,
		// independent of the lexical gate.
		db, err := sql.Open("sqlite", "file:"+cfg.Path+"?mode=ro")
		if err != nil {
			return nil, fmt.Errorf("unable to open sqlite database: %w", err)
		}
		if err := pingTimeout(ctx, db, cfg.timeout()); err != nil {
			db.Close()
			return nil, fmt.Errorf("unable to ping sqlite database %s: %w", cfg.Path, err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("unable to enforce read-only mode: %w", err)
		}
		return db, nil
	}

	return newHandle(ctx, KindSQLite, "sqlite", cfg.timeout(), open)
}

func openMemory(ctx context.Context, cfg Config) (*Handle, error) {
	if err := validateDatasets(cfg.Datasets); err != nil {
		return nil, err
	}

	open := func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, fmt.Errorf("unable to open in-memory database: %w", err)
		}
		// Each pooled connection would otherwise see its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
		if err := loadDatasets(ctx, db, cfg.Datasets); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}

	return newHandle(ctx, KindMemory, "sqlite", cfg.timeout(), open)
}

func openRemote(ctx context.Context, cfg Config) (*Handle, error) {
	var open func(ctx context.Context) (*sql.DB, error)
	var dialect string

	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql", "pgx":
		dialect = "postgres"
		open = func(ctx context.Context) (*sql.DB, error) {
			connConfig, err := pgx.ParseConfig(cfg.URL)
			if err != nil {
				return nil, fmt.Errorf("unable to parse connection string: %w", err)
			}
			// Read-only at the session level, the strongest guarantee
			// available without DBA-managed grants.
			if connConfig.RuntimeParams == nil {
				connConfig.RuntimeParams = make(map[string]string)
			}
			connConfig.RuntimeParams["default_transaction_read_only"] = "on"
			if !hasParam(connConfig.RuntimeParams, "application_name") {
				connConfig.RuntimeParams["application_name"] = "QueryChat"
			}

			db := stdlib.OpenDB(*connConfig)
			if err := pingTimeout(ctx, db, cfg.timeout()); err != nil {
				db.Close()
				return nil, fmt.Errorf("unable to ping database: %w", err)
			}
			return db, nil
		}
	case "mysql":
		dialect = "mysql"
		open = func(ctx context.Context) (*sql.DB, error) {
			db, err := sql.Open("mysql", cfg.URL)
			if err != nil {
				return nil, fmt.Errorf("unable to open mysql connection: %w", err)
			}
			if err := pingTimeout(ctx, db, cfg.timeout()); err != nil {
				db.Close()
				return nil, fmt.Errorf("unable to ping database: %w", err)
			}
			// Best-effort defense-in-depth; the gate remains the
			// primary control for pooled connections.
			if _, err := db.ExecContext(ctx, "SET SESSION TRANSACTION READ ONLY"); err != nil {
				logging.Debug("could not set read-only session", "error", err.Error())
			}
			return db, nil
		}
	default:
		return nil, &UnsupportedError{Driver: cfg.Driver, Supported: remoteDrivers}
	}

	return newHandle(ctx, KindRemote, dialect, cfg.timeout(), open)
}

func newHandle(ctx context.Context, kind Kind, dialect string, timeout time.Duration, open func(ctx context.Context) (*sql.DB, error)) (*Handle, error) {
	db, err := open(ctx)
	if err != nil {
		return nil, err
	}
	return &Handle{
		kind:    kind,
		dialect: dialect,
		timeout: timeout,
		db:      db,
		reopen:  open,
	}, nil
}

func hasParam(params map[string]string, name string) bool {
	_, ok := params[name]
	return ok
}

func pingTimeout(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.PingContext(pingCtx)
}

// Kind returns the backend discriminator this handle was opened with
func (h *Handle) Kind() Kind {
	return h.kind
}

// Alive reports whether the underlying connection still answers a ping
func (h *Handle) Alive(ctx context.Context) bool {
	h.mu.Lock()
	db := h.db
	h.mu.Unlock()

	if db == nil {
		return false
	}
	return pingTimeout(ctx, db, h.timeout) == nil
}

// Ensure re-acquires the underlying connection if it has gone away.
// Callers use the handle through DB() only after a successful Ensure.
func (h *Handle) Ensure(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db != nil {
		if pingTimeout(ctx, h.db, h.timeout) == nil {
			return nil
		}
		logging.Warn("database connection lost, reconnecting", "kind", string(h.kind))
		h.db.Close()
		h.db = nil
	}

	db, err := h.reopen(ctx)
	if err != nil {
		return err
	}
	h.db = db
	return nil
}

// DB exposes the underlying pool for query execution
func (h *Handle) DB() *sql.DB {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.db
}

// Timeout returns the per-call deadline this handle was configured with
func (h *Handle) Timeout() time.Duration {
	return h.timeout
}

// Close releases the underlying connection
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}
