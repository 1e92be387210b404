package explorer

import (
	"context"
	"database/sql"
	"fmt"
)

// PGCatalog reads table metadata from postgres system catalogs.
type PGCatalog struct {
	db *sql.DB
}

func NewPGCatalog(db *sql.DB) *PGCatalog {
	return &PGCatalog{db: db}
}

func (c *PGCatalog) Tables(ctx context.Context) ([]TableDescriptor, error) {
	const tablesQuery = `
		SELECT c.relname, GREATEST(c.reltuples, 0)::bigint
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'r' AND n.nspname = 'public'
		ORDER BY c.relname`

	rows, err := c.db.QueryContext(ctx, tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	byName := map[string]*TableDescriptor{}
	var ordered []*TableDescriptor
	for rows.Next() {
		var t TableDescriptor
		if err := rows.Scan(&t.Name, &t.RowEstimate); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		byName[t.Name] = &t
		ordered = append(ordered, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	const columnsQuery = `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`

	colRows, err := c.db.QueryContext(ctx, columnsQuery)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer colRows.Close()

	for colRows.Next() {
		var table string
		var col Column
		if err := colRows.Scan(&table, &col.Name, &col.Type); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		if t, ok := byName[table]; ok {
			t.Columns = append(t.Columns, col)
		}
	}
	if err := colRows.Err(); err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	out := make([]TableDescriptor, len(ordered))
	for i, t := range ordered {
		out[i] = *t
	}
	return out, nil
}

func (c *PGCatalog) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	const pkQuery = `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY (i.indkey)
		WHERE i.indisprimary AND n.nspname = 'public' AND c.relname = $1
		ORDER BY array_position(i.indkey, a.attnum)`

	rows, err := c.db.QueryContext(ctx, pkQuery, table)
	if err != nil {
		return nil, fmt.Errorf("read primary key: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan primary key row: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// DBReader executes page queries against the shared pool.
type DBReader struct {
	db *sql.DB
}

func NewDBReader(db *sql.DB) *DBReader {
	return &DBReader{db: db}
}

func (r *DBReader) ReadRows(ctx context.Context, query string, args ...any) ([]string, [][]any, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		row, err := scanRow(rows, len(cols))
		if err != nil {
			return nil, nil, err
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}

// scanRow scans one row into positional values, decoding byte slices
// to strings so the result serializes cleanly.
func scanRow(rows *sql.Rows, n int) ([]any, error) {
	values := make([]any, n)
	targets := make([]any, n)
	for i := range values {
		targets[i] = &values[i]
	}
	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values, nil
}
