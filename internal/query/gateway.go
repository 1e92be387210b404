// Package query executes operator-supplied read-only SQL. Validation
// via sqlguard is one layer; execution always happens inside a
// read-only, statement-timeout-bounded transaction as well, and both
// must hold.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"opsdeck/internal/config"
	"opsdeck/internal/explorer"
	"opsdeck/internal/opserr"
	"opsdeck/internal/sqlguard"
)

// Runner executes already-validated SQL, reading at most maxRows rows
// and reporting whether more were available.
type Runner interface {
	Run(ctx context.Context, sqlText string, maxRows int) (cols []string, rows [][]any, more bool, err error)
}

// AllowLister supplies the table allow-list; in production this is the
// explorer's catalog.
type AllowLister interface {
	ListTables(ctx context.Context) ([]explorer.TableDescriptor, error)
}

// Gateway validates and executes single read-only statements.
type Gateway struct {
	runner Runner
	allow  AllowLister
	cfg    config.GatewayConfig
}

func New(runner Runner, allow AllowLister, cfg config.GatewayConfig) *Gateway {
	return &Gateway{runner: runner, allow: allow, cfg: cfg}
}

// ExecuteReadOnly runs one SELECT (or WITH…SELECT) statement. Shape
// violations come back as ValidationError so callers can tell a bad
// request from a backend failure. Results are capped at the configured
// maximum row count; Truncated reports whether the cap cut the result.
func (g *Gateway) ExecuteReadOnly(ctx context.Context, raw string) (explorer.QueryResult, error) {
	st := sqlguard.Classify(raw)
	if st.Kind != sqlguard.KindSelect {
		return explorer.QueryResult{}, opserr.New(opserr.KindValidation, "%s", st.Reason)
	}

	if len(st.References) > 0 {
		tables, err := g.allow.ListTables(ctx)
		if err != nil {
			return explorer.QueryResult{}, err
		}
		for _, ref := range st.References {
			if !allowed(tables, ref) {
				return explorer.QueryResult{}, opserr.New(opserr.KindValidation, "unknown table %q", ref)
			}
		}
	}

	start := time.Now()
	cols, rows, more, err := g.runner.Run(ctx, st.SQL, g.cfg.MaxRows)
	if err != nil {
		return explorer.QueryResult{}, classifyExecError(err)
	}

	return explorer.QueryResult{
		Columns:         cols,
		Rows:            rows,
		RowCount:        len(rows),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Truncated:       more,
	}, nil
}

func allowed(tables []explorer.TableDescriptor, name string) bool {
	for _, t := range tables {
		if t.Name == name {
			return true
		}
	}
	return false
}

// classifyExecError maps a backend failure onto the taxonomy with a
// sanitized message. The raw error is kept as the cause for logging
// but never surfaces in a response.
func classifyExecError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opserr.Wrap(opserr.KindTimeout, err, "query exceeded its time budget")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 57014 is query_canceled, raised when statement_timeout fires.
		if pgErr.Code == "57014" {
			return opserr.Wrap(opserr.KindTimeout, err, "query exceeded its time budget")
		}
		// PG error messages describe the statement, not the connection.
		return opserr.Wrap(opserr.KindExecution, err, "database error: %s", pgErr.Message)
	}

	return opserr.Wrap(opserr.KindExecution, err, "query execution failed")
}
