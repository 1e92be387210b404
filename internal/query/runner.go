package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBRunner executes statements inside a dedicated read-only
// transaction. Two independent guards bound each run: a server-side
// statement_timeout and the context deadline.
type DBRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewDBRunner(db *sql.DB, timeout time.Duration) *DBRunner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DBRunner{db: db, timeout: timeout}
}

func (r *DBRunner) Run(ctx context.Context, sqlText string, maxRows int) ([]string, [][]any, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, false, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer tx.Rollback()

	// statement_timeout is an integer of milliseconds from our own
	// config, not caller input.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", r.timeout.Milliseconds())); err != nil {
		return nil, nil, false, fmt.Errorf("set statement timeout: %w", err)
	}

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, false, err
	}

	var out [][]any
	for len(out) < maxRows && rows.Next() {
		values := make([]any, len(cols))
		targets := make([]any, len(cols))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, nil, false, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}

	// One extra Next tells us whether the cap truncated the result.
	more := rows.Next()
	if err := rows.Err(); err != nil {
		return nil, nil, false, err
	}

	return cols, out, more, nil
}
