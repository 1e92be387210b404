package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"opsdeck/internal/config"
	"opsdeck/internal/explorer"
	"opsdeck/internal/opserr"
)

type fakeRunner struct {
	sql     string
	maxRows int
	cols    []string
	rows    [][]any
	more    bool
	err     error
	calls   int
}

func (f *fakeRunner) Run(ctx context.Context, sqlText string, maxRows int) ([]string, [][]any, bool, error) {
	f.calls++
	f.sql = sqlText
	f.maxRows = maxRows
	if f.err != nil {
		return nil, nil, false, f.err
	}
	return f.cols, f.rows, f.more, nil
}

type fakeAllow struct {
	tables []string
	err    error
	calls  int
}

func (f *fakeAllow) ListTables(ctx context.Context) ([]explorer.TableDescriptor, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]explorer.TableDescriptor, len(f.tables))
	for i, name := range f.tables {
		out[i] = explorer.TableDescriptor{Name: name}
	}
	return out, nil
}

func newTestGateway(runner *fakeRunner, allow *fakeAllow) *Gateway {
	return New(runner, allow, config.GatewayConfig{MaxRows: 1000, StatementTimeoutMs: 5000})
}

func TestExecuteReadOnlyHappyPath(t *testing.T) {
	runner := &fakeRunner{cols: []string{"id", "email"}, rows: [][]any{{"1", "a@b.c"}}}
	allow := &fakeAllow{tables: []string{"users"}}
	gw := newTestGateway(runner, allow)

	res, err := gw.ExecuteReadOnly(context.Background(), "SELECT id, email FROM users")
	if err != nil {
		t.Fatalf("ExecuteReadOnly error: %v", err)
	}
	if res.RowCount != 1 || res.Truncated {
		t.Fatalf("unexpected result: %+v", res)
	}
	if runner.maxRows != 1000 {
		t.Fatalf("row cap = %d, want 1000", runner.maxRows)
	}
}

func TestExecuteReadOnlyRejectsStackedStatements(t *testing.T) {
	runner := &fakeRunner{}
	gw := newTestGateway(runner, &fakeAllow{tables: []string{"users"}})

	_, err := gw.ExecuteReadOnly(context.Background(), "SELECT 1; DROP TABLE users;")
	if !opserr.Is(err, opserr.KindValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if runner.calls != 0 {
		t.Fatal("rejected statement must never reach the runner")
	}
}

func TestExecuteReadOnlyRejectsWrites(t *testing.T) {
	for _, sql := range []string{
		"DELETE FROM users",
		"UPDATE users SET email = 'x'",
		"INSERT INTO users VALUES (1)",
		"EXPLAIN SELECT 1",
	} {
		runner := &fakeRunner{}
		gw := newTestGateway(runner, &fakeAllow{tables: []string{"users"}})

		_, err := gw.ExecuteReadOnly(context.Background(), sql)
		if !opserr.Is(err, opserr.KindValidation) {
			t.Errorf("%q: expected ValidationError, got %v", sql, err)
		}
		if runner.calls != 0 {
			t.Errorf("%q: rejected statement reached the runner", sql)
		}
	}
}

func TestExecuteReadOnlyUnknownTable(t *testing.T) {
	runner := &fakeRunner{}
	gw := newTestGateway(runner, &fakeAllow{tables: []string{"users"}})

	_, err := gw.ExecuteReadOnly(context.Background(), "SELECT * FROM pg_shadow")
	if !opserr.Is(err, opserr.KindValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if runner.calls != 0 {
		t.Fatal("disallowed table reference reached the runner")
	}
}

func TestExecuteReadOnlyCommaJoinedTablesChecked(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM users, secret_schema.secrets",
		"SELECT * FROM users u, pg_shadow s",
		"SELECT * FROM users JOIN orders ON true, pg_shadow",
	} {
		runner := &fakeRunner{}
		gw := newTestGateway(runner, &fakeAllow{tables: []string{"users", "orders"}})

		_, err := gw.ExecuteReadOnly(context.Background(), sql)
		if !opserr.Is(err, opserr.KindValidation) {
			t.Errorf("%q: expected ValidationError, got %v", sql, err)
		}
		if runner.calls != 0 {
			t.Errorf("%q: disallowed relation reached the runner", sql)
		}
	}
}

func TestExecuteReadOnlyCTENamesAreNotChecked(t *testing.T) {
	runner := &fakeRunner{}
	allow := &fakeAllow{tables: []string{"users"}}
	gw := newTestGateway(runner, allow)

	sql := "WITH recent AS (SELECT * FROM users) SELECT * FROM recent"
	if _, err := gw.ExecuteReadOnly(context.Background(), sql); err != nil {
		t.Fatalf("ExecuteReadOnly error: %v", err)
	}
	if runner.calls != 1 {
		t.Fatal("valid statement did not reach the runner")
	}
}

func TestExecuteReadOnlyNoReferencesSkipsCatalog(t *testing.T) {
	runner := &fakeRunner{cols: []string{"?column?"}, rows: [][]any{{int64(1)}}}
	allow := &fakeAllow{tables: []string{"users"}}
	gw := newTestGateway(runner, allow)

	if _, err := gw.ExecuteReadOnly(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("ExecuteReadOnly error: %v", err)
	}
	if allow.calls != 0 {
		t.Fatal("catalog consulted for a statement with no table references")
	}
}

func TestExecuteReadOnlyTruncationFlag(t *testing.T) {
	runner := &fakeRunner{cols: []string{"id"}, rows: [][]any{{"1"}}, more: true}
	gw := newTestGateway(runner, &fakeAllow{tables: []string{"users"}})

	res, err := gw.ExecuteReadOnly(context.Background(), "SELECT id FROM users")
	if err != nil {
		t.Fatalf("ExecuteReadOnly error: %v", err)
	}
	if !res.Truncated {
		t.Fatal("expected truncated result")
	}
}

func TestExecuteReadOnlySmallLimitNotTruncated(t *testing.T) {
	runner := &fakeRunner{cols: []string{"id"}, rows: [][]any{{"1"}, {"2"}}, more: false}
	gw := newTestGateway(runner, &fakeAllow{tables: []string{"users"}})

	res, err := gw.ExecuteReadOnly(context.Background(), "SELECT id FROM users LIMIT 10")
	if err != nil {
		t.Fatalf("ExecuteReadOnly error: %v", err)
	}
	if res.Truncated {
		t.Fatal("result under the cap must not report truncation")
	}
}

func TestExecuteReadOnlyTimeout(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"context deadline", context.DeadlineExceeded},
		{"statement timeout", &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"}},
	}
	for _, tc := range cases {
		runner := &fakeRunner{err: tc.err}
		gw := newTestGateway(runner, &fakeAllow{tables: []string{"users"}})

		_, err := gw.ExecuteReadOnly(context.Background(), "SELECT * FROM users")
		if !opserr.Is(err, opserr.KindTimeout) {
			t.Errorf("%s: expected Timeout, got %v", tc.name, err)
		}
	}
}

func TestExecuteReadOnlyDatabaseErrorSanitized(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:    "42703",
		Message: `column "emial" does not exist`,
	}
	runner := &fakeRunner{err: pgErr}
	gw := newTestGateway(runner, &fakeAllow{tables: []string{"users"}})

	_, err := gw.ExecuteReadOnly(context.Background(), "SELECT emial FROM users")
	if !opserr.Is(err, opserr.KindExecution) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	msg := opserr.SafeMessage(err)
	if !strings.Contains(msg, "does not exist") {
		t.Fatalf("statement-level detail dropped: %q", msg)
	}
}

func TestExecuteReadOnlyOpaqueErrorSanitized(t *testing.T) {
	runner := &fakeRunner{err: errors.New("dial tcp 10.0.0.5:5432: password=hunter2 refused")}
	gw := newTestGateway(runner, &fakeAllow{tables: []string{"users"}})

	_, err := gw.ExecuteReadOnly(context.Background(), "SELECT * FROM users")
	if !opserr.Is(err, opserr.KindExecution) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if msg := opserr.SafeMessage(err); strings.Contains(msg, "hunter2") {
		t.Fatalf("driver error leaked into safe message: %q", msg)
	}
}

func TestExecuteReadOnlyCatalogDownPropagates(t *testing.T) {
	allowErr := opserr.New(opserr.KindUnavailable, "catalog unavailable")
	gw := newTestGateway(&fakeRunner{}, &fakeAllow{err: allowErr})

	_, err := gw.ExecuteReadOnly(context.Background(), "SELECT * FROM users")
	if !opserr.Is(err, opserr.KindUnavailable) {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}
