// Package sqltool provides read-only query execution against the Northwind
// SQLite database.
//
// Information Hiding:
// - SQLite connection management hidden behind Executor
// - Schema discovery via PRAGMA encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package sqltool

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/copilot/internal/jsonx"
)

// Result is the envelope for a query execution. Execution never raises: all
// failures surface in Err, and Columns/Rows stay empty-but-valid.
type Result struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
	Err     string          `json:"error,omitempty"`
}

// Failed reports whether the execution carried an error.
func (r Result) Failed() bool {
	return r.Err != ""
}

// Executor runs SQL against a SQLite database file.
// Safe for concurrent read-only use.
type Executor struct {
	db     *sql.DB
	schema string
}

// Open opens the database at the given path and caches its schema summary.
// Returns an error if the file does not exist.
func Open(path string) (*Executor, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found at %s: %w", path, err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	e := &Executor{db: db}
	if err := e.loadSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

// OpenInMemory creates an in-memory database (useful for testing).
func OpenInMemory() (*Executor, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	return &Executor{db: db}, nil
}

// Close closes the database connection.
func (e *Executor) Close() error {
	return e.db.Close()
}

// Exec runs a statement directly, bypassing the result envelope.
// Intended for test fixtures that need to create tables and seed rows.
func (e *Executor) Exec(ctx context.Context, stmt string, args ...interface{}) error {
	if _, err := e.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

// RefreshSchema rebuilds the cached schema summary. Call after Exec has
// created tables on an in-memory database.
func (e *Executor) RefreshSchema() error {
	return e.loadSchema()
}

// Execute runs a query and returns a result envelope. It never returns a Go
// error: all failures are reported in Result.Err. Code fences are stripped
// defensively even though the generation path already strips them.
func (e *Executor) Execute(ctx context.Context, query string) Result {
	query = jsonx.StripCodeFences(query)

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return e.failureResult(ctx, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return e.failureResult(ctx, err)
	}

	result := Result{Columns: columns, Rows: [][]interface{}{}}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return e.failureResult(ctx, err)
		}
		for i, v := range values {
			// Text columns come back as []byte; normalize for JSON output.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return e.failureResult(ctx, err)
	}

	return result
}

// failureResult wraps an execution error into an empty envelope. "no such
// table" errors carry the list of available tables to help repair.
func (e *Executor) failureResult(ctx context.Context, err error) Result {
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "no such table") {
		tables, tErr := e.tableNames(ctx)
		if tErr == nil && len(tables) > 0 {
			msg = fmt.Sprintf("table not found: %s; available tables: %s", msg, strings.Join(tables, ", "))
		}
	}
	return Result{Columns: []string{}, Rows: [][]interface{}{}, Err: msg}
}

// SchemaSummary returns a concise "Table: col (TYPE), ..." summary for
// prompts.
func (e *Executor) SchemaSummary() string {
	return e.schema
}

func (e *Executor) loadSchema() error {
	ctx := context.Background()
	tables, err := e.tableNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	var parts []string
	for _, table := range tables {
		cols, err := e.tableColumns(ctx, table)
		if err != nil {
			continue // skip problematic tables
		}
		if len(cols) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", table, strings.Join(cols, ", ")))
		}
	}

	e.schema = strings.Join(parts, "\n")
	return nil
}

func (e *Executor) tableNames(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (e *Executor) tableColumns(ctx context.Context, table string) ([]string, error) {
	// Quote table name to handle spaces ("Order Details")
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, fmt.Sprintf("%s (%s)", name, colType))
	}
	return cols, rows.Err()
}
