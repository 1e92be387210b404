// Package explorer provides safe, read-only browsing of database
// tables. Its catalog listing doubles as the identifier allow-list for
// every table-scoped operation, including the query gateway's.
package explorer

import (
	"context"
	"strings"
	"time"

	"opsdeck/internal/config"
	"opsdeck/internal/opserr"
)

// Column is one (name, type) pair in catalog order.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableDescriptor describes one table. RowEstimate comes from planner
// statistics, never a row scan.
type TableDescriptor struct {
	Name        string   `json:"name"`
	RowEstimate int64    `json:"rowEstimate"`
	Columns     []Column `json:"columns"`
}

// QueryResult is a transient page of rows. Rows are positional,
// matching Columns.
type QueryResult struct {
	Columns         []string `json:"columns"`
	Rows            [][]any  `json:"rows"`
	RowCount        int      `json:"rowCount"`
	ExecutionTimeMs int64    `json:"executionTimeMs"`
	Truncated       bool     `json:"truncated"`
}

// Catalog reads table metadata from the backing store.
type Catalog interface {
	Tables(ctx context.Context) ([]TableDescriptor, error)

	// PrimaryKey returns the table's primary key columns in index
	// order, or an empty slice when the table has none.
	PrimaryKey(ctx context.Context, table string) ([]string, error)
}

// RowReader executes a built query and returns positional rows.
type RowReader interface {
	ReadRows(ctx context.Context, query string, args ...any) ([]string, [][]any, error)
}

// Explorer lists tables and pages through their rows.
type Explorer struct {
	catalog Catalog
	reader  RowReader
	pag     config.PaginationConfig
}

func New(catalog Catalog, reader RowReader, pag config.PaginationConfig) *Explorer {
	return &Explorer{catalog: catalog, reader: reader, pag: pag}
}

// ListTables returns the current catalog view. This result is the
// authoritative allow-list consulted before any table-scoped query.
func (e *Explorer) ListTables(ctx context.Context) ([]TableDescriptor, error) {
	tables, err := e.catalog.Tables(ctx)
	if err != nil {
		return nil, opserr.Wrap(opserr.KindUnavailable, err, "catalog unavailable")
	}
	return tables, nil
}

// GetTableRows returns one page of rows from an allow-listed table.
// The table name is validated against the catalog before any SQL is
// built, so caller input is never interpolated into a query. Ordering
// is stable (primary key, or physical order when there is none) so
// concatenated pages form a complete, non-overlapping scan.
func (e *Explorer) GetTableRows(ctx context.Context, table string, page, pageSize int) (QueryResult, error) {
	page, pageSize, err := e.pag.Resolve(page, pageSize)
	if err != nil {
		return QueryResult{}, opserr.Wrap(opserr.KindValidation, err, "invalid pagination")
	}

	tables, err := e.catalog.Tables(ctx)
	if err != nil {
		return QueryResult{}, opserr.Wrap(opserr.KindUnavailable, err, "catalog unavailable")
	}
	if !tableKnown(tables, table) {
		return QueryResult{}, opserr.New(opserr.KindValidation, "unknown table %q", table)
	}

	orderBy := "ctid"
	if pk, err := e.catalog.PrimaryKey(ctx, table); err == nil && len(pk) > 0 {
		quoted := make([]string, len(pk))
		for i, col := range pk {
			quoted[i] = quoteIdent(col)
		}
		orderBy = strings.Join(quoted, ", ")
	}

	query := "SELECT * FROM " + quoteIdent(table) +
		" ORDER BY " + orderBy +
		" LIMIT $1 OFFSET $2"

	start := time.Now()
	cols, rows, err := e.reader.ReadRows(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return QueryResult{}, opserr.Wrap(opserr.KindExecution, err, "failed to read rows from %q", table)
	}

	return QueryResult{
		Columns:         cols,
		Rows:            rows,
		RowCount:        len(rows),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func tableKnown(tables []TableDescriptor, name string) bool {
	for _, t := range tables {
		if t.Name == name {
			return true
		}
	}
	return false
}

// quoteIdent double-quotes an identifier. Names come from the catalog
// or config, never raw caller input, but quoting keeps unusual names
// (mixed case, reserved words) working.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
